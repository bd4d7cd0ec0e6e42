// Package commands implements the CLI commands for the obsync server.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "obsync",
	Short: "Obsync - self-hosted end-to-end encrypted note vault sync",
	Long: `Obsync is a self-hosted synchronization server for end-to-end encrypted
note vaults. It keeps an append-only operation log per vault, fans committed
operations out to connected clients in real time, and stores encrypted note
content as content-addressed chunked blobs.

Use "obsync [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/obsync/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(tokenCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("obsync %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

// loadConfig loads the configuration and initializes the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}
