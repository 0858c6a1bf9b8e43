package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/internal/mcp"
)

var withHistory bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the query tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		// stdout carries the protocol
		defer setupLogger(cfg, "stderr")()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		svc, cleanup, err := newQueryService(ctx, cfg, withHistory)
		if err != nil {
			zap.S().Fatalw("initializing query service", "error", err)
		}
		defer cleanup()

		if err := mcp.NewServer(svc).ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&withHistory, "history", false, "Record executions in the database")
}
