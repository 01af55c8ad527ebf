package cmd

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatekeeper-fib/fibcore"
)

var addFlags struct {
	proto    uint8
	priority uint32
	gateway  string
	grantors []string
}

var addCmd = &cobra.Command{
	Use:   "add <prefix> <drop|grantor|gateway-front|gateway-back>",
	Short: "Install a FIB entry",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

func init() {
	f := addCmd.Flags()
	f.Uint8Var(&addFlags.proto, "proto", 0, "route protocol tag")
	f.Uint32Var(&addFlags.priority, "priority", 0, "route priority")
	f.StringVar(&addFlags.gateway, "gateway", "", "gateway IP (required for gateway-front/gateway-back)")
	f.StringArrayVar(&addFlags.grantors, "grantor", nil, "grantor_ip:gateway_ip pair (required, repeatable, for grantor)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(_ *cobra.Command, args []string) error {
	pfx, err := netip.ParsePrefix(args[0])
	if err != nil {
		return fmt.Errorf("invalid prefix %q: %w", args[0], err)
	}

	action, err := parseAction(args[1])
	if err != nil {
		return err
	}

	m, err := newManager()
	if err != nil {
		return err
	}

	var gatewayIP netip.Addr
	if addFlags.gateway != "" {
		gatewayIP, err = netip.ParseAddr(addFlags.gateway)
		if err != nil {
			return fmt.Errorf("invalid --gateway %q: %w", addFlags.gateway, err)
		}
	}

	var grantors []fibcore.GrantorPair
	for _, g := range addFlags.grantors {
		pair, err := parseGrantorPair(g)
		if err != nil {
			return err
		}
		grantors = append(grantors, pair)
	}

	props := fibcore.RouteProps{Proto: addFlags.proto, Priority: addFlags.priority}
	if err := m.AddEntry(pfx, action, props, gatewayIP, grantors); err != nil {
		return fmt.Errorf("add %s: %w", pfx, err)
	}

	fmt.Printf("installed %s -> %s\n", pfx, action)
	return nil
}

func parseAction(s string) (fibcore.Action, error) {
	switch strings.ToLower(s) {
	case "drop":
		return fibcore.ActionDrop, nil
	case "grantor":
		return fibcore.ActionGrantor, nil
	case "gateway-front":
		return fibcore.ActionGatewayFront, nil
	case "gateway-back":
		return fibcore.ActionGatewayBack, nil
	default:
		return 0, fmt.Errorf("unknown action %q, want drop, grantor, gateway-front or gateway-back", s)
	}
}

func parseGrantorPair(s string) (fibcore.GrantorPair, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return fibcore.GrantorPair{}, fmt.Errorf("invalid --grantor %q, want grantor_ip:gateway_ip", s)
	}
	grantorIP, err := netip.ParseAddr(parts[0])
	if err != nil {
		return fibcore.GrantorPair{}, fmt.Errorf("invalid grantor IP %q: %w", parts[0], err)
	}
	gatewayIP, err := netip.ParseAddr(parts[1])
	if err != nil {
		return fibcore.GrantorPair{}, fmt.Errorf("invalid gateway IP %q: %w", parts[1], err)
	}
	return fibcore.GrantorPair{GrantorIP: grantorIP, GatewayIP: gatewayIP}, nil
}
