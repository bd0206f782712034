package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/rpc"
)

type invokeOptions struct {
	address string
	method  string
	args    string
	traceID string
	timeout time.Duration
}

func newInvokeCmd() *cobra.Command {
	opts := &invokeOptions{}
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Call a method on a running commandable endpoint and print the JSON result",
		Example: `  dummyservice invoke --address 127.0.0.1:8090 --method dummy.get_dummies --args '{"paging":{"total":true}}'
  dummyservice invoke --address 127.0.0.1:8090 --method dummy.check_trace_id --trace-id abc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			result, err := invoke(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.address, "address", "127.0.0.1:8090", "endpoint host:port")
	cmd.Flags().StringVar(&opts.method, "method", "", "method as service.command")
	cmd.Flags().StringVar(&opts.args, "args", "", "JSON object of arguments")
	cmd.Flags().StringVar(&opts.traceID, "trace-id", "", "trace id (generated when empty)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "call timeout")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func invoke(ctx context.Context, opts *invokeOptions) (string, error) {
	service, command, ok := strings.Cut(opts.method, ".")
	if !ok || service == "" || command == "" {
		return "", fmt.Errorf("method %q must be service.command", opts.method)
	}
	var args any
	if opts.args != "" {
		if !json.Valid([]byte(opts.args)) {
			return "", fmt.Errorf("args are not valid JSON")
		}
		args = json.RawMessage(opts.args)
	}
	traceID := opts.traceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	params := config.FromTuples("connection.uri", "http://"+opts.address)
	if opts.timeout > 0 {
		params["options.timeout"] = opts.timeout.String()
	}
	client := rpc.NewCommandableClient(service)
	if err := client.Configure(params); err != nil {
		return "", err
	}
	if err := client.Open(ctx, traceID); err != nil {
		return "", err
	}
	defer client.Close(ctx, traceID)

	result, err := client.CallCommand(ctx, command, traceID, args)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "null", nil
	}
	return string(result), nil
}
