package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dunelink/dunelink/internal/cli"
)

func main() {
	command := NewDunelinkCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewDunelinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dunelink [flags] [options]",
		Short: "dunelink queries Dune Analytics through the dunelink bridge.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdLatest())
	cmd.AddCommand(cli.NewCmdExecute())
	cmd.AddCommand(cli.NewCmdExecutions())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
