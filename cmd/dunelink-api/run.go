package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apiserver "github.com/dunelink/dunelink/internal/api_server"
	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/internal/mcp"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dunelink api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		defer setupLogger(cfg)()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")
		zap.S().Infof("Using config: %s", cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		svc, cleanup, err := newQueryService(ctx, cfg, true)
		if err != nil {
			zap.S().Fatalw("initializing query service", "error", err)
		}
		defer cleanup()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				return err
			}
			server := apiserver.New(cfg, svc, mcp.NewServer(svc).Handler(), listener)
			return server.Run(ctx)
		})

		g.Go(func() error {
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				return err
			}
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener).Run(ctx)
		})

		g.Go(func() error {
			return pruneHistory(ctx, svc, cfg.Database.HistoryRetention)
		})

		if err := g.Wait(); err != nil {
			zap.S().Errorw("server stopped with error", "error", err)
			return err
		}
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
