package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Re-index scripts left out of the key index",
	Long: `Scan the ledger for script records the key index does not list, such as
those left behind by an interrupted create, and append the decodable ones.
Needs a backend that can list keys (s3, redis, bolt).`,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.manager.Repair(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "indexed:     %d\n", report.Indexed)
	fmt.Fprintf(out, "restored:    %s\n", listOrNone(report.Restored))
	fmt.Fprintf(out, "undecodable: %s\n", listOrNone(report.Undecodable))
	fmt.Fprintf(out, "dangling:    %s\n", listOrNone(report.Dangling))
	return nil
}

func listOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
