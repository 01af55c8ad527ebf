package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gatekeeper-fib/fibcore"
)

var dumpNeighborsFlags struct {
	family string
	side   string
}

var dumpNeighborsCmd = &cobra.Command{
	Use:   "dump-neighbors",
	Short: "List occupied neighbor-cache entries for one interface/family",
	RunE:  runDumpNeighbors,
}

func init() {
	f := dumpNeighborsCmd.Flags()
	f.StringVar(&dumpNeighborsFlags.family, "family", "v4", "address family: v4 or v6")
	f.StringVar(&dumpNeighborsFlags.side, "side", "front", "interface: front or back")
	rootCmd.AddCommand(dumpNeighborsCmd)
}

func runDumpNeighbors(_ *cobra.Command, _ []string) error {
	fam, err := parseFamily(dumpNeighborsFlags.family)
	if err != nil {
		return err
	}
	side, err := parseSide(dumpNeighborsFlags.side)
	if err != nil {
		return err
	}

	m, err := newManager()
	if err != nil {
		return err
	}

	slotID, ok := m.NeighborSlotID(fam, side)
	if !ok {
		return fmt.Errorf("%s interface has no %s configured", side, fam)
	}
	fmt.Fprintf(os.Stdout, "# NEIGHBOR_%s slot %d\n", side, slotID)

	w := tabwriter.NewWriter(os.Stdout, 4, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NEIGHBOR\tREFCOUNT\tSTALE")

	err = m.DumpNeighbors(fam, side, func(batch []fibcore.NeighborEntry) bool {
		for _, e := range batch {
			fmt.Fprintf(w, "%s\t%d\t%t\n", e.IP, e.RefCount, e.Stale)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("dump-neighbors: %w", err)
	}

	return w.Flush()
}
