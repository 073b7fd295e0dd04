package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/archive-service/internal/script"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze ID",
	Short: "Analyze a pending script",
	Long:  `Run thematic analysis on the encrypted content of a pending script you own.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args[0], (*lifecycle.Manager).Analyze)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Archive an analyzed script",
	Long:  `Move an analyzed script you own to its final archived status.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args[0], (*lifecycle.Manager).Archive)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(archiveCmd)
}

type transition func(m *lifecycle.Manager, ctx context.Context, id string) (script.Script, error)

func runTransition(cmd *cobra.Command, id string, step transition) error {
	ctx := cmd.Context()
	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := step(a.manager, ctx, id)
	if err != nil {
		return err
	}
	printScript(cmd.OutOrStdout(), s)
	return nil
}
