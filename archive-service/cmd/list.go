package cmd

import (
	"github.com/spf13/cobra"

	"github.com/redhat-et/script-archive/archive-service/internal/view"
)

var (
	listQuery    string
	listPage     int
	listPageSize int
	listThemes   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scripts in the archive",
	Long: `Load the collection from the ledger and print one page of it, newest
first. --query filters on title, era and status.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Case-insensitive filter on title, era and status")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "Scripts per page (default archive.page_size)")
	listCmd.Flags().BoolVar(&listThemes, "themes", false, "Print the most frequent themes instead")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.manager.Reload(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listThemes {
		printThemes(out, view.TopThemes(snap.Scripts, a.cfg.Archive.TopThemes))
		return nil
	}

	size := listPageSize
	if size <= 0 {
		size = a.cfg.Archive.PageSize
	}
	printScripts(out, view.Query(snap.Scripts, listQuery, listPage, size))
	return nil
}
