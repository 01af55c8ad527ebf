package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gatekeeper-fib/fibcore"
)

var dumpFamily string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "List installed FIB routes for one address family",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFamily, "family", "v4", "address family: v4 or v6")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(_ *cobra.Command, _ []string) error {
	fam, err := parseFamily(dumpFamily)
	if err != nil {
		return err
	}

	m, err := newManager()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 4, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PREFIX\tACTION\tPROTO\tPRIORITY")

	err = m.Dump(fam, func(batch []fibcore.DumpEntry) bool {
		for _, e := range batch {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", e.Prefix, e.Action, e.Props.Proto, e.Props.Priority)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	return w.Flush()
}
