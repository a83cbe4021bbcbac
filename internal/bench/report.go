package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"time"
)

// Report is the outcome of a Runner.
type Report struct {
	Version    string   `json:"version"`
	Run        RunInfo  `json:"run"`
	Store      string   `json:"store"`
	Rows       int      `json:"rows"`
	LotsRows   int      `json:"lots_rows"`
	Iterations int      `json:"iterations"`
	Seed       int64    `json:"seed"`
	Results    []Result `json:"results"`
	GC         GCInfo   `json:"gc"`
}

// RunInfo describes the machine a report was produced on.
type RunInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Go        string    `json:"go"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	CPUCount  int       `json:"cpu_count"`
}

// Result holds the timings of one operation. The counters are those of
// the last iteration.
type Result struct {
	Op            string  `json:"op"`
	Iterations    int     `json:"iterations"`
	MinMS         float64 `json:"min_ms"`
	P50MS         float64 `json:"p50_ms"`
	P95MS         float64 `json:"p95_ms"`
	MaxMS         float64 `json:"max_ms"`
	MeanMS        float64 `json:"mean_ms"`
	Notifications uint64  `json:"notifications"`
	ListRenders   int64   `json:"list_renders"`
	RowRenders    int64   `json:"row_renders"`
}

// GCInfo summarizes allocation over the whole run.
type GCInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
}

func newReport(cfg Config) *Report {
	return &Report{
		Version: "1",
		Run: RunInfo{
			Timestamp: time.Now().UTC(),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
		},
		Store:      cfg.StoreName,
		Rows:       cfg.Rows,
		LotsRows:   cfg.LotsRows,
		Iterations: cfg.Iterations,
		Seed:       cfg.Seed,
	}
}

// Result returns the result of the named operation.
func (r *Report) Result(op string) (Result, bool) {
	for _, res := range r.Results {
		if res.Op == op {
			return res, true
		}
	}
	return Result{}, false
}

// WriteSummary prints a human readable table of the results.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintln(w, "=== statelift keyed rows ===")
	fmt.Fprintf(w, "Store: %s  Rows: %d  Lots: %d  Iterations: %d  Seed: %d\n",
		r.Store, r.Rows, r.LotsRows, r.Iterations, r.Seed)
	fmt.Fprintf(w, "Go %s %s/%s, %d CPUs\n", r.Run.Go, r.Run.OS, r.Run.Arch, r.Run.CPUCount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-12s %9s %9s %9s %9s %8s %6s %6s\n",
		"op", "mean ms", "p50 ms", "p95 ms", "max ms", "notify", "list", "rows")
	for _, res := range r.Results {
		fmt.Fprintf(w, "%-12s %9.3f %9.3f %9.3f %9.3f %8d %6d %6d\n",
			res.Op, res.MeanMS, res.P50MS, res.P95MS, res.MaxMS,
			res.Notifications, res.ListRenders, res.RowRenders)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:    %.2f MB\n", r.GC.AllocMB)
	fmt.Fprintf(w, "  num_gc:   %d\n", r.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause: %.2f ms (total)\n", r.GC.PauseTotalMS)
}

// JSON encodes the report with indentation.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteJSON writes the report to path, or to stdout when path is "-".
func (r *Report) WriteJSON(path string) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func gcInfo(before, after runtime.MemStats) GCInfo {
	return GCInfo{
		AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
		NumGC:        after.NumGC - before.NumGC,
		PauseTotalMS: ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
	}
}

// percentile expects sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
