package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/statelift/internal/bench"
	"github.com/vango-dev/statelift/internal/config"
	"github.com/vango-dev/statelift/internal/errors"
	"github.com/vango-dev/statelift/pkg/inspector"
	"github.com/vango-dev/statelift/pkg/store"
)

func inspectCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		interval time.Duration
		rows     int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve live stats of a store running the rows workload",
		Long: `Run the keyed rows workload in a loop and serve the inspector.

Routes:
  GET /stats            counters of every store
  GET /stats/{store}    counters of one store
  GET /events           websocket stream of store events
  GET /metrics          Prometheus metrics

Examples:
  statelift inspect
  statelift inspect --addr=:7070 --interval=100ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("addr") {
				cfg.Inspector.Addr = addr
			}
			if fs.Changed("interval") {
				cfg.Inspector.Interval = config.Duration(interval)
			}
			if fs.Changed("rows") {
				cfg.Bench.Rows = rows
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := setupTracing(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer shutdownTracing(context.Background())

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())

			table, err := bench.NewTable(cfg.Bench.Seed,
				store.WithName(cfg.Store.Name),
				store.WithStrict(cfg.Store.Strict),
				store.WithMaxFlush(cfg.Store.MaxFlush),
				store.WithRegistry(reg),
				store.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer table.Close()

			srv := inspector.New([]*store.Store{table.Store()},
				inspector.WithAddr(cfg.Inspector.Addr),
				inspector.WithGatherer(reg),
				inspector.WithRegistry(reg),
				inspector.WithLogger(logger),
			)

			go bench.Loop(ctx, table, cfg.Bench.Rows, cfg.Inspector.Interval.Std())

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			success("Inspector on http://%s", cfg.Inspector.Addr)
			info("store %q, %d rows every %s", cfg.Store.Name, cfg.Bench.Rows, cfg.Inspector.Interval.Std())

			select {
			case err := <-errCh:
				if err != nil {
					return errors.New("SL302").Wrap(err).WithDetail(err.Error())
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from statelift.json)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Pause between workload steps")
	cmd.Flags().IntVar(&rows, "rows", 0, "Rows per table")

	return cmd
}
