package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-sched/domlb/internal/config"
	"github.com/kestrel-sched/domlb/internal/mcpserver"
)

// newMCPCmd starts the controller's tick loop in the background and
// serves read-only introspection over the Model Context Protocol on
// stdio, so an AI agent (or an operator) can ask about current balance
// without parsing logs.
func newMCPCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the Model Context Protocol introspection server",
		Long: `Starts a JSON-RPC server implementing the Model Context Protocol.
The controller's tick loop runs in the background; tools expose its most
recent outcome (load average, per-domain load, planned migrations) over
stdio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime(*opts)
			if err != nil {
				return err
			}
			defer rt.coll.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go tickLoop(ctx, rt, *opts)

			srv := mcpserver.NewServer(version, rt.state)
			return srv.Start(ctx)
		},
	}
}
