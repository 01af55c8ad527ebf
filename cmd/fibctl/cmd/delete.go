package cmd

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <prefix>",
	Short: "Remove a FIB entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(_ *cobra.Command, args []string) error {
	pfx, err := netip.ParsePrefix(args[0])
	if err != nil {
		return fmt.Errorf("invalid prefix %q: %w", args[0], err)
	}

	m, err := newManager()
	if err != nil {
		return err
	}

	if err := m.DeleteEntry(context.Background(), pfx); err != nil {
		return fmt.Errorf("delete %s: %w", pfx, err)
	}

	fmt.Printf("removed %s\n", pfx)
	return nil
}
