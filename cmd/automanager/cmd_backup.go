package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/leengari/automanager/internal/backup"
	"github.com/leengari/automanager/internal/catalog"
)

// backupCmd archives table files directly, without a session
var backupCmd = &cobra.Command{
	Use:   "backup [table...]",
	Short: "Archive table files as LZ4",
	Long: `Compress the backing files of the named tables (all tables when
none are given) into the configured backup directory.`,
	RunE: runBackup,
}

// restoreCmd puts an archived table file back in place
var restoreCmd = &cobra.Command{
	Use:   "restore <archive> <table>",
	Short: "Replace a table file with an LZ4 archive",
	Long: `Decompress an archive written by 'backup' over the backing file of a
registered table. Run it while no shell or server has the table open.`,
	Args: cobra.ExactArgs(2),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	path, err := cat.Path(args[1])
	if err != nil {
		return err
	}
	if err := backup.Restore(args[0], path); err != nil {
		return err
	}
	logger.Info("table restored", "table", args[1], "archive", args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s restored from %s\n", args[1], args[0])
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cat, err := catalog.Open(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = cat.ListTables()
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := cat.Path(name)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}

	results, err := backup.All(ctx, backup.NewLocal(cfg.Backup.Dir, logger), paths, cfg.Backup.Parallelism)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes, %s)\n", res.Source, res.Destination, res.Bytes, res.Took)
	}
	return nil
}
