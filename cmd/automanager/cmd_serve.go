package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leengari/automanager/internal/manager"
	"github.com/leengari/automanager/internal/network"
)

var servePort int

// serveCmd runs the JSON-over-TCP front end
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workspace over TCP",
	Long: `Listen for newline-delimited JSON requests.

Each request names an op (login, tables, create, rows, add, update, delete,
find, findall, undo, redo, history, rename, drop, path, backup) and gets one
JSON response back.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	ws, _, err := manager.Open(cfg, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", port, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		listener.Close()
	}()

	logger.Info("Running on port", "port", port)
	return network.NewServer(ws, logger).Serve(listener)
}
