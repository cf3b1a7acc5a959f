// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/scribe/pkg/onewire"
	"github.com/spf13/cobra"
)

var (
	bridgeListen string
	bridgePath   string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Share the local bus over WebSocket",
	Long: `Serve the bus selected with --port or --sim to remote scribe clients.

Clients connect with --url ws://host:port/path. One client owns the bus at a
time; others are refused until it disconnects. When --username is set, clients
must authenticate with HTTP Basic auth using that username and the password
from SCRIBE_PASSWORD (or the prompt).

Example:
  scribe -p /dev/ttyUSB0 bridge --listen :8431
  scribe -u ws://pi.local:8431/onewire dump`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVarP(&bridgeListen, "listen", "l", ":8431", "Address to listen on")
	bridgeCmd.Flags().StringVar(&bridgePath, "path", "/onewire", "HTTP path of the bridge endpoint")
}

func runBridge(cmd *cobra.Command, args []string) error {
	if bridgeURL != "" {
		return fmt.Errorf("bridge serves a local bus; use --port or --sim instead of --url")
	}

	password := ""
	if bridgeUser != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	logger, err := NewLogger(slog.LevelInfo)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	mux := http.NewServeMux()
	mux.Handle(bridgePath, onewire.NewBridgeServer(conn, bridgeUser, password, logger))
	server := &http.Server{
		Addr:              bridgeListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("Scribe - 1-Wire Bridge\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Listening: %s%s\n", bridgeListen, bridgePath)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	return nil
}
