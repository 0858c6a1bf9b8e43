package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:          "dunelink-api",
	Short:        "Bridge between agents and the Dune Analytics API",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mcpCmd)
}

// setupLogger installs the global logger and returns the function restoring the previous one.
func setupLogger(cfg *config.Config, outputPaths ...string) func() {
	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel), outputPaths...)
	undo := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		undo()
	}
}
