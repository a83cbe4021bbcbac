package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerRunsEveryOp(t *testing.T) {
	r := NewRunner(Config{Rows: 20, LotsRows: 40, Iterations: 2, Seed: 3})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, len(Ops))

	for i, op := range Ops {
		res := report.Results[i]
		assert.Equal(t, op.Name, res.Op)
		assert.Equal(t, 2, res.Iterations)
		assert.LessOrEqual(t, res.MinMS, res.MaxMS)
	}

	sel, ok := report.Result("select")
	require.True(t, ok)
	assert.Equal(t, int64(0), sel.ListRenders)
	assert.Equal(t, int64(1), sel.RowRenders)
	assert.Equal(t, uint64(20), sel.Notifications, "every row selector is notified")

	upd, ok := report.Result("update")
	require.True(t, ok)
	assert.Equal(t, int64(1), upd.ListRenders)

	swap, ok := report.Result("swap")
	require.True(t, ok)
	assert.Equal(t, uint64(0), swap.Notifications, "20 rows are too few to swap")

	_, ok = report.Result("missing")
	assert.False(t, ok)
}

func TestRunnerSelectedOps(t *testing.T) {
	r := NewRunner(Config{Rows: 10, Iterations: 1, Ops: []string{"clear", "create"}})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "create", report.Results[0].Op, "ops keep their declared order")
	assert.Equal(t, "clear", report.Results[1].Op)
}

func TestRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Config{Rows: 10}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRunner(Config{Rows: 10, Iterations: 1, Ops: []string{"create"}, StoreName: "rows", Registry: reg})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "statelift_notifications_total")
}

func TestReportOutput(t *testing.T) {
	report, err := NewRunner(Config{Rows: 10, Iterations: 1, Ops: []string{"create"}, Seed: 9}).Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	report.WriteSummary(&buf)
	assert.Contains(t, buf.String(), "create")
	assert.Contains(t, buf.String(), "Seed: 9")

	data, err := report.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "bench", decoded["store"])
	assert.Len(t, decoded["results"], 1)
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, time.Duration(5), percentile(samples, 0.50))
	assert.Equal(t, time.Duration(10), percentile(samples, 0.95))
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))
	assert.Equal(t, time.Duration(5), mean([]time.Duration{4, 6}))
}

func TestLoopStopsWithContext(t *testing.T) {
	table := newTestTable(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		Loop(ctx, table, 10, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Greater(t, table.Store().Stats().Notifications, uint64(0))
}
