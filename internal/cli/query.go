package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/dunelink/dunelink/internal/handlers"
)

type queryCall func(c *BridgeClient, ctx context.Context, queryID int64) (*handlers.ResultReply, error)

type QueryOptions struct {
	GlobalOptions

	queryID int64
	call    queryCall
	out     io.Writer
}

func DefaultQueryOptions(call queryCall) *QueryOptions {
	return &QueryOptions{
		GlobalOptions: DefaultGlobalOptions(),
		call:          call,
		out:           os.Stdout,
	}
}

func NewCmdLatest() *cobra.Command {
	o := DefaultQueryOptions((*BridgeClient).Latest)
	cmd := &cobra.Command{
		Use:   "latest QUERY_ID",
		Short: "Print the latest stored result of a query as CSV.",
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

func NewCmdExecute() *cobra.Command {
	o := DefaultQueryOptions((*BridgeClient).Execute)
	cmd := &cobra.Command{
		Use:   "execute QUERY_ID",
		Short: "Run a query, wait for it to finish and print the result as CSV.",
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

func (o *QueryOptions) Complete(cmd *cobra.Command, args []string) error {
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

func (o *QueryOptions) Run(ctx context.Context, args []string) error {
	reply, err := o.call(o.Client(), ctx, o.queryID)
	if err != nil {
		var serverErr *ErrServer
		if errors.As(err, &serverErr) && serverErr.Reply.Result != "" {
			return fmt.Errorf("query %d: %s", o.queryID, serverErr.Reply.Result)
		}
		return fmt.Errorf("query %d: %w", o.queryID, err)
	}
	return printReply(o.out, reply, o.Output)
}

func printReply(w io.Writer, reply any, output string) error {
	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(reply)
		if err != nil {
			return fmt.Errorf("marshalling reply: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", string(marshalled))
		return err
	case yamlFormat:
		marshalled, err := yaml.Marshal(reply)
		if err != nil {
			return fmt.Errorf("marshalling reply: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s", string(marshalled))
		return err
	}

	if r, ok := reply.(*handlers.ResultReply); ok {
		_, err := io.WriteString(w, r.Result)
		if err == nil && (len(r.Result) == 0 || r.Result[len(r.Result)-1] != '\n') {
			_, err = io.WriteString(w, "\n")
		}
		return err
	}
	return fmt.Errorf("no default output for %T", reply)
}

func parseQueryID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid query id %q: must be a positive integer", arg)
	}
	return id, nil
}
