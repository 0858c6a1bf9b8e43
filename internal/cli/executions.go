package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dunelink/dunelink/internal/handlers"
)

type ExecutionsOptions struct {
	GlobalOptions

	Limit int

	queryID int64
	out     io.Writer
}

func DefaultExecutionsOptions() *ExecutionsOptions {
	return &ExecutionsOptions{
		GlobalOptions: DefaultGlobalOptions(),
		out:           os.Stdout,
	}
}

func NewCmdExecutions() *cobra.Command {
	o := DefaultExecutionsOptions()
	cmd := &cobra.Command{
		Use:   "executions QUERY_ID",
		Short: "List the recorded executions of a query, newest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ExecutionsOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.IntVarP(&o.Limit, "limit", "l", o.Limit, "Maximum number of executions to list. The server default applies when unset.")
}

func (o *ExecutionsOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	id, err := parseQueryID(args[0])
	if err != nil {
		return err
	}
	o.queryID = id
	return nil
}

func (o *ExecutionsOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

func (o *ExecutionsOptions) Run(ctx context.Context, args []string) error {
	reply, err := o.Client().Executions(ctx, o.queryID, o.Limit)
	if err != nil {
		return fmt.Errorf("listing executions of query %d: %w", o.queryID, err)
	}
	if o.Output != "" {
		return printReply(o.out, reply, o.Output)
	}
	return printExecutionsTable(o.out, reply)
}

func printExecutionsTable(out io.Writer, reply *handlers.ExecutionsReply) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "ID\tEXECUTION\tOUTCOME\tSTATE\tATTEMPTS\tROWS\tSTARTED\tDURATION")
	for _, e := range reply.Executions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.ID, e.ExecutionID, e.Outcome, e.State, e.Attempts, e.RowCount,
			e.StartedAt.Format(time.RFC3339), time.Duration(e.DurationMs)*time.Millisecond)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "showing %d of %d executions\n", len(reply.Executions), reply.Total)
	return err
}
