package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
)

var (
	createTitle   string
	createEra     string
	createContent string
	createFile    string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Encrypt and register a new script",
	Long: `Encrypt a script and register it in the ledger as pending, owned by the
connected account. The text comes from --content or --file.`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createTitle, "title", "", "Script title")
	createCmd.Flags().StringVar(&createEra, "era", "", "Era (Ancient, Medieval, Renaissance, Elizabethan, Restoration, Modern)")
	createCmd.Flags().StringVar(&createContent, "content", "", "Script text")
	createCmd.Flags().StringVar(&createFile, "file", "", "Read the script text from a file")
	createCmd.MarkFlagsMutuallyExclusive("content", "file")
}

func runCreate(cmd *cobra.Command, args []string) error {
	content := createContent
	if createFile != "" {
		data, err := os.ReadFile(createFile)
		if err != nil {
			return fmt.Errorf("failed to read script file: %w", err)
		}
		content = string(data)
	}

	ctx := cmd.Context()
	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.manager.Create(ctx, lifecycle.CreateRequest{
		Title:   createTitle,
		Era:     createEra,
		Content: content,
	})
	if err != nil {
		return err
	}
	printScript(cmd.OutOrStdout(), s)
	return nil
}
