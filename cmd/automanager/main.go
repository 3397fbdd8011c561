package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leengari/automanager/internal/config"
	"github.com/leengari/automanager/internal/logging"
	"github.com/leengari/automanager/internal/manager"
	"github.com/leengari/automanager/internal/repl"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "automanager",
	Short: "AutoManager - CSV-backed table manager",
	Long: `AutoManager keeps named tables of string fields in CSV files,
with a JSON catalog, per-table undo/redo and local LZ4 backups.

Run without arguments to start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, closeLog = logging.SetupLogger(cfg.Logging)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			closeLog()
		}
	},
	RunE: runShell,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	RunE:  runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "automanager.yaml", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	ws, _, err := manager.Open(cfg, logger)
	if err != nil {
		return err
	}
	slog.Info("Starting shell...", "data_dir", cfg.DataDir)
	repl.Start(ws, cmd.InOrStdin(), cmd.OutOrStdout())
	return nil
}
