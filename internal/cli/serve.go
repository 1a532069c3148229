package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/witness/internal/gateway"
	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		stdio    bool
		withHTTP bool
		port     int
		bind     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the witness tools over stdio and/or HTTP",
		Long: "Serve answers JSON-RPC (MCP) requests. With no transport flag it reads " +
			"line-delimited requests on stdin; --http starts the HTTP/WebSocket gateway. " +
			"Both may run together; the process exits when stdin closes or on SIGINT/SIGTERM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdio && !withHTTP {
				stdio = true
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				rpc := mcp.NewServer(a.svc, log)
				g, gctx := errgroup.WithContext(ctx)

				if withHTTP {
					srv := gateway.New(cfg.Server, rpc, a.svc, log,
						gateway.WithHooks(a.hooks),
						gateway.WithMetrics(a.metrics.Handler()),
					)
					g.Go(func() error {
						return srv.Start(gctx)
					})
				} else {
					a.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{"transport": "stdio"})
					defer a.hooks.Emit(context.Background(), hooks.EventServerStop, map[string]any{"transport": "stdio"})
				}

				if stdio {
					g.Go(func() error {
						// Closing stdin ends the whole process, gateway included
						defer cancel()
						return rpc.Serve(gctx, cmd.InOrStdin(), cmd.OutOrStdout())
					})
				}

				return g.Wait()
			})
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve JSON-RPC on stdin/stdout (default when no transport is given)")
	cmd.Flags().BoolVar(&withHTTP, "http", false, "start the HTTP/WebSocket gateway")
	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
