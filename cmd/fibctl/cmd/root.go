// Package cmd implements the fibctl subcommands, following the
// cobra subcommand-per-operation layout cilium's CLI and kbgp's command
// package use.
package cmd

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gatekeeper-fib/fibcore"
	"github.com/gatekeeper-fib/fibcore/internal/drain"
	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
	"github.com/gatekeeper-fib/fibcore/internal/resolver"
	"github.com/gatekeeper-fib/fibcore/internal/types"
)

var rootCmd = &cobra.Command{
	Use:   "fibctl",
	Short: "Manually exercise the fibcore FIB manager",
	Long: "fibctl builds an in-memory fibcore.Manager from the --front-*/--back-* " +
		"interface flags and runs a single add/delete/dump/dump-neighbors operation " +
		"against it. State does not persist across invocations.",
	SilenceUsage: true,
}

var ifaceFlags struct {
	frontMAC, backMAC     string
	frontVLAN, backVLAN   uint16
	frontProto, backProto uint16
	frontV4, frontV6      string
	backV4, backV6        string
	maxFIBv4, maxFIBv6    int
	verbose               bool
}

func init() {
	registerInterfaceFlags(rootCmd.PersistentFlags())
}

// registerInterfaceFlags is typed against *pflag.FlagSet directly (rather
// than relying on cobra's returned flag set going unnamed) so a
// subcommand that needs its own isolated interface flags, rather than the
// persistent ones on rootCmd, can reuse it.
func registerInterfaceFlags(f *pflag.FlagSet) {
	f.StringVar(&ifaceFlags.frontMAC, "front-mac", "02:00:00:00:00:01", "front interface MAC address")
	f.StringVar(&ifaceFlags.backMAC, "back-mac", "02:00:00:00:00:02", "back interface MAC address")
	f.Uint16Var(&ifaceFlags.frontVLAN, "front-vlan", 0, "front interface 802.1Q VLAN tag (0 = untagged)")
	f.Uint16Var(&ifaceFlags.backVLAN, "back-vlan", 0, "back interface 802.1Q VLAN tag (0 = untagged)")
	f.Uint16Var(&ifaceFlags.frontProto, "front-proto", 0x0800, "front interface EtherType")
	f.Uint16Var(&ifaceFlags.backProto, "back-proto", 0x0800, "back interface EtherType")
	f.StringVar(&ifaceFlags.frontV4, "front-v4", "", "front interface IPv4 LAN, e.g. 10.0.0.1/24")
	f.StringVar(&ifaceFlags.frontV6, "front-v6", "", "front interface IPv6 LAN")
	f.StringVar(&ifaceFlags.backV4, "back-v4", "", "back interface IPv4 LAN, e.g. 10.0.1.1/24")
	f.StringVar(&ifaceFlags.backV6, "back-v6", "", "back interface IPv6 LAN")
	f.IntVar(&ifaceFlags.maxFIBv4, "max-fib-v4", fibcore.DefaultMaxFIBEntries, "max IPv4 FIB slots")
	f.IntVar(&ifaceFlags.maxFIBv6, "max-fib-v6", fibcore.DefaultMaxFIBEntries, "max IPv6 FIB slots")
	f.BoolVarP(&ifaceFlags.verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the fibctl root command.
func Execute() error {
	return rootCmd.Execute()
}

func newManager() (*fibcore.Manager, error) {
	front, err := buildInterface(ifconfig.Front, ifaceFlags.frontMAC, ifaceFlags.frontVLAN, ifaceFlags.frontProto, ifaceFlags.frontV4, ifaceFlags.frontV6)
	if err != nil {
		return nil, fmt.Errorf("front interface: %w", err)
	}
	back, err := buildInterface(ifconfig.Back, ifaceFlags.backMAC, ifaceFlags.backVLAN, ifaceFlags.backProto, ifaceFlags.backV4, ifaceFlags.backV6)
	if err != nil {
		return nil, fmt.Errorf("back interface: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	return fibcore.New(fibcore.Config{
		Front:           front,
		Back:            back,
		MaxFIBEntriesV4: ifaceFlags.maxFIBv4,
		MaxFIBEntriesV6: ifaceFlags.maxFIBv6,
		Resolver:        resolver.NewFake(),
		Drain:           drain.Immediate{},
		Logger:          logger.Sugar(),
	})
}

func newLogger() (*zap.Logger, error) {
	if ifaceFlags.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func buildInterface(side ifconfig.Side, mac string, vlan, proto uint16, v4, v6 string) (ifconfig.Interface, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return ifconfig.Interface{}, fmt.Errorf("invalid MAC %q: %w", mac, err)
	}

	iface := ifconfig.Interface{Side: side, MAC: hw, VLAN: vlan, Proto: proto}

	if v4 != "" {
		pfx, err := netip.ParsePrefix(v4)
		if err != nil {
			return ifconfig.Interface{}, fmt.Errorf("invalid IPv4 LAN %q: %w", v4, err)
		}
		iface.V4 = pfx.Masked()
	}
	if v6 != "" {
		pfx, err := netip.ParsePrefix(v6)
		if err != nil {
			return ifconfig.Interface{}, fmt.Errorf("invalid IPv6 LAN %q: %w", v6, err)
		}
		iface.V6 = pfx.Masked()
	}

	return iface, nil
}

func parseFamily(s string) (types.Family, error) {
	switch s {
	case "v4", "4", "ipv4":
		return types.V4, nil
	case "v6", "6", "ipv6":
		return types.V6, nil
	default:
		return 0, fmt.Errorf("unknown family %q, want v4 or v6", s)
	}
}

func parseSide(s string) (ifconfig.Side, error) {
	switch s {
	case "front":
		return ifconfig.Front, nil
	case "back":
		return ifconfig.Back, nil
	default:
		return 0, fmt.Errorf("unknown side %q, want front or back", s)
	}
}
