package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statelift/internal/bench"
	"github.com/vango-dev/statelift/internal/config"
)

type benchOptions struct {
	rows       int
	lotsRows   int
	iterations int
	seed       int64
	ops        []string
	strict     bool
	jsonOut    string
	upload     string
}

func benchCmd(flags *globalFlags) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the keyed rows workload",
		Long: `Measure the keyed rows workload.

Every operation runs on a fresh table of rows rendered by one list handle
and one selector handle per row. The summary reports timings together with
the notifications delivered and the handles that re-rendered.

Operations: ` + strings.Join(opNames(), ", ") + `

Examples:
  statelift bench
  statelift bench --rows=500 --iterations=10 --ops=select,update
  statelift bench --json=report.json
  statelift bench --upload=s3://my-bucket/statelift`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBench(cmd, cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.rows, "rows", 0, "Rows per table (default from statelift.json)")
	cmd.Flags().IntVar(&opts.lotsRows, "lots", 0, "Rows of the createLots operation")
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 0, "Iterations per operation")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed of the label generator")
	cmd.Flags().StringSliceVar(&opts.ops, "ops", nil, "Operations to run (default all)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Run the stores in strict mode")
	cmd.Flags().StringVar(&opts.jsonOut, "json", "", "Write the JSON report to a file, or - for stdout")
	cmd.Flags().StringVar(&opts.upload, "upload", "", "Upload the JSON report to s3://bucket/prefix")

	return cmd
}

// apply overrides cfg with the flags that were set explicitly.
func (o *benchOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("rows") {
		cfg.Bench.Rows = o.rows
	}
	if fs.Changed("lots") {
		cfg.Bench.LotsRows = o.lotsRows
	}
	if fs.Changed("iterations") {
		cfg.Bench.Iterations = o.iterations
	}
	if fs.Changed("seed") {
		cfg.Bench.Seed = o.seed
	}
	if fs.Changed("strict") {
		cfg.Store.Strict = o.strict
	}
	if fs.Changed("upload") {
		cfg.Upload.Target = o.upload
	}
}

func runBench(cmd *cobra.Command, cfg *config.Config, opts *benchOptions) error {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("trace export failed", "error", err)
		}
	}()

	var uploader *bench.Uploader
	if cfg.Upload.Target != "" {
		uploader, err = bench.NewUploader(cfg.Upload.Target, bench.UploadOptions{
			Region:   cfg.Upload.Region,
			Endpoint: cfg.Upload.Endpoint,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	}

	runner := bench.NewRunner(bench.Config{
		StoreName:  cfg.Store.Name,
		Rows:       cfg.Bench.Rows,
		LotsRows:   cfg.Bench.LotsRows,
		Iterations: cfg.Bench.Iterations,
		Seed:       cfg.Bench.Seed,
		Ops:        opts.ops,
		MaxFlush:   cfg.Store.MaxFlush,
		Strict:     cfg.Store.Strict,
		Logger:     logger,
	})
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if opts.jsonOut != "-" {
		report.WriteSummary(cmd.OutOrStdout())
	}
	if opts.jsonOut != "" {
		if err := report.WriteJSON(opts.jsonOut); err != nil {
			return err
		}
	}

	if uploader != nil {
		location, err := uploader.Upload(ctx, report)
		if err != nil {
			return err
		}
		if opts.jsonOut != "-" {
			fmt.Fprintln(cmd.OutOrStdout())
			success("Report uploaded to %s", location)
		}
	}
	return nil
}

func opNames() []string {
	names := make([]string, len(bench.Ops))
	for i, op := range bench.Ops {
		names[i] = op.Name
	}
	return names
}
