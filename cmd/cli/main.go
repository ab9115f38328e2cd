package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vpnda/statement-relay/pkg/config"
)

var (
	configPath string
	rootCmd    *cobra.Command
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "relay",
		Short: "Relay bank statements from logged-in pages to a UI",
		Long: `relay runs a coordinator that caches bank data for a UI, tab connections
that speak to a bank on behalf of a logged-in page, and a REPL client.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetConfigPath(configPath)
			cfg, err := config.GetConfig()
			if err != nil {
				return err
			}
			level, err := cfg.LogLevel()
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator",
		Long:  `Run the coordinator HTTP server that tabs connect to and the UI talks to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	var curlFile string
	tabCmd := &cobra.Command{
		Use:   "tab",
		Short: "Connect a bank page to the coordinator",
		Long: `Connect a bank page to the coordinator. The page is described by the tab
section of the configuration, or by a "copy as cURL" command read from a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTab(cmd.Context(), curlFile)
		},
	}
	tabCmd.Flags().StringVar(&curlFile, "curl", "", "File holding a curl command copied from the bank page, - for stdin")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive REPL",
		Long:  `Start an interactive REPL for browsing accounts and statements through the coordinator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initReplState()
			if err != nil {
				return err
			}
			runREPL(cmd.Context(), state, os.Stdin)
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Long:  `Show the current configuration loaded from relay.yaml. Cookie values are masked.`,
		Run: func(cmd *cobra.Command, args []string) {
			showConfig()
		},
	}

	rootCmd.AddCommand(serveCmd, tabCmd, replCmd, configCmd)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
