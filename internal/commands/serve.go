package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trustledger/trustledger/internal/monitor"
	"github.com/trustledger/trustledger/internal/server"
)

func newServeCommand(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the balance monitor with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default metrics.addr)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string) error {
	mon := monitor.New(a.db, a.engine, a.log, monitor.Options{
		Interval:    a.cfg.Monitor.Interval,
		Concurrency: a.cfg.Monitor.Concurrency,
		Metrics:     a.metrics,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, server.Config{
			Addr:    addr,
			DB:      a.db,
			Metrics: a.metrics.Handler(),
			Logger:  a.log,
		})
	})
	g.Go(func() error {
		return mon.Run(ctx)
	})
	return g.Wait()
}
