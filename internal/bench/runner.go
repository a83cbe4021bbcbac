package bench

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/statelift/pkg/store"
)

// Defaults for Config.
const (
	DefaultRows       = 1000
	DefaultLotsRows   = 10000
	DefaultIterations = 5
)

// Config configures a Runner.
type Config struct {
	// StoreName names the stores created for each iteration.
	StoreName string

	// Rows is the table size of most operations; LotsRows the size of
	// "createLots".
	Rows     int
	LotsRows int

	// Iterations is how many times each operation is timed.
	Iterations int

	// Seed seeds the label generator.
	Seed int64

	// Ops restricts the run to the named operations. All run when empty.
	Ops []string

	// MaxFlush overrides the table's flush bound when positive.
	MaxFlush int

	Strict   bool
	Registry prometheus.Registerer
	Logger   *slog.Logger
}

func (c *Config) normalize() {
	if c.StoreName == "" {
		c.StoreName = "bench"
	}
	if c.Rows <= 0 {
		c.Rows = DefaultRows
	}
	if c.LotsRows <= 0 {
		c.LotsRows = DefaultLotsRows
	}
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Op is one measured operation. Setup prepares a fresh table outside the
// timing; Run is timed.
type Op struct {
	Name  string
	Setup func(t *Table, cfg Config)
	Run   func(t *Table, cfg Config)
}

// Ops lists the operations in the order they run.
var Ops = []Op{
	{
		Name: "create",
		Run:  func(t *Table, cfg Config) { t.Run(cfg.Rows) },
	},
	{
		Name:  "replace",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.Run(cfg.Rows) },
	},
	{
		Name:  "update",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.Update() },
	},
	{
		Name:  "select",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.Select(t.IDAt(t.Len() / 2)) },
	},
	{
		Name:  "swap",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.SwapRows() },
	},
	{
		Name:  "remove",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.Remove(t.IDAt(t.Len() / 2)) },
	},
	{
		Name:  "append",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.Add(cfg.Rows) },
	},
	{
		Name: "createLots",
		Run:  func(t *Table, cfg Config) { t.Run(cfg.LotsRows) },
	},
	{
		Name:  "clear",
		Setup: func(t *Table, cfg Config) { t.Run(cfg.Rows) },
		Run:   func(t *Table, cfg Config) { t.Clear() },
	},
}

// Runner times the operations of Ops.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	cfg.normalize()
	return &Runner{cfg: cfg}
}

// Run times every selected operation and returns the report. It stops
// between iterations when ctx is done.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	cfg := r.cfg
	report := newReport(cfg)

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	for _, op := range r.selected() {
		result, err := r.measure(ctx, op)
		if err != nil {
			return nil, err
		}
		cfg.Logger.Info("bench op finished",
			"op", op.Name,
			"iterations", result.Iterations,
			"mean_ms", result.MeanMS,
			"notifications", result.Notifications,
		)
		report.Results = append(report.Results, result)
	}

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	report.GC = gcInfo(before, after)
	return report, nil
}

func (r *Runner) selected() []Op {
	if len(r.cfg.Ops) == 0 {
		return Ops
	}
	want := make(map[string]bool, len(r.cfg.Ops))
	for _, name := range r.cfg.Ops {
		want[name] = true
	}
	var out []Op
	for _, op := range Ops {
		if want[op.Name] {
			out = append(out, op)
		}
	}
	return out
}

func (r *Runner) measure(ctx context.Context, op Op) (Result, error) {
	cfg := r.cfg
	result := Result{Op: op.Name}
	samples := make([]time.Duration, 0, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		opts := []store.Option{
			store.WithName(cfg.StoreName),
			store.WithStrict(cfg.Strict),
			store.WithRegistry(cfg.Registry),
			store.WithLogger(cfg.Logger),
		}
		if cfg.MaxFlush > 0 {
			opts = append(opts, store.WithMaxFlush(cfg.MaxFlush))
		}
		t, err := NewTable(cfg.Seed+int64(i), opts...)
		if err != nil {
			return Result{}, err
		}
		if op.Setup != nil {
			op.Setup(t, cfg)
		}

		notified := t.Store().Stats().Notifications
		lists, rows := t.Renders()

		start := time.Now()
		t.Store().BatchNamed(ctx, op.Name, func() { op.Run(t, cfg) })
		samples = append(samples, time.Since(start))

		afterLists, afterRows := t.Renders()
		result.Notifications = t.Store().Stats().Notifications - notified
		result.ListRenders = afterLists - lists
		result.RowRenders = afterRows - rows
		t.Close()
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	result.Iterations = len(samples)
	result.MinMS = ms(samples[0])
	result.P50MS = ms(percentile(samples, 0.50))
	result.P95MS = ms(percentile(samples, 0.95))
	result.MaxMS = ms(samples[len(samples)-1])
	result.MeanMS = ms(mean(samples))
	return result, nil
}

// DefaultLoopInterval is the pause Loop uses when given none.
const DefaultLoopInterval = 250 * time.Millisecond

// Loop drives t with a cycle of the operations until ctx is done, pausing
// interval between steps. It keeps a live store busy for the inspector.
func Loop(ctx context.Context, t *Table, rows int, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultLoopInterval
	}
	steps := []func(){
		func() { t.Run(rows) },
		func() { t.Select(t.IDAt(0)) },
		t.Update,
		func() { t.Select(t.IDAt(t.Len() - 1)) },
		t.SwapRows,
		func() { t.Remove(t.IDAt(t.Len() / 2)) },
		func() { t.Add(rows / 10) },
		t.Clear,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			steps[i%len(steps)]()
		}
	}
}
