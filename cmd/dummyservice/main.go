// Package main is the entrypoint for the dummy service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morezero/components/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dummyservice: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dummyservice",
		Short: "Dummy business service served over the commandable gRPC endpoint",
		Long: `dummyservice runs a component container holding the dummy controller,
its persistence and the gRPC endpoint that exposes it.

Environment:
  CONFIG_FILE        component list (yaml, toml or json); built from the variables below when unset
  GRPC_HOST, GRPC_PORT, DISCOVERY_KEY, NATS_URL
  DATABASE_URL       Postgres persistence; memory when unset
  RUN_MIGRATIONS, MIGRATION_PATH
  ENSURE_DB_NAME, DB_EXTENSIONS   used by ensure-db
  HTTP_PORT          /health, /ready and /metrics
  LOG_LEVEL, LOG_FORMAT, RATE_LIMIT, SHUTDOWN_TIMEOUT`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newEnsureDBCmd(),
		newClearCmd(),
		newInvokeCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the service (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	return server.Run()
}
