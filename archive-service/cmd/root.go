package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redhat-et/script-archive/pkg/config"
)

var (
	cfgFile     string
	autoApprove bool
	v           *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "archive-service",
	Short: "Encrypted theater script archive",
	Long: `Archive Service keeps a collection of encrypted theater scripts in a
remote key/value ledger. Scripts are registered as pending, analyzed for
themes and character networks, and finally archived by their owner.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	v = config.InitViper("archive-service")
	config.BindFlags(rootCmd, v)

	// Session flags for the command line wallet
	rootCmd.PersistentFlags().String("account", "", "Account to connect the CLI wallet with")
	rootCmd.PersistentFlags().BoolVarP(&autoApprove, "yes", "y", false, "Approve every ledger write without prompting")

	v.BindPFlag("cli.account", rootCmd.PersistentFlags().Lookup("account"))
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
}
