package metrics

import (
	"expvar"
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	payrollRuns       uint64
	payrollGenerated  uint64
	payrollSkipped    uint64
	payrollDurationMs uint64

	mu          sync.Mutex
	transitions map[string]uint64
}

func New() *Collector {
	return &Collector{transitions: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordPayrollRun counts one processing run and its outcome.
func (c *Collector) RecordPayrollRun(generated, skipped int, duration time.Duration) {
	atomic.AddUint64(&c.payrollRuns, 1)
	atomic.AddUint64(&c.payrollGenerated, uint64(generated))
	atomic.AddUint64(&c.payrollSkipped, uint64(skipped))
	atomic.AddUint64(&c.payrollDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordPayrollTransition(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions[action]++
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]uint64, len(c.transitions))
	for k, v := range c.transitions {
		transitions[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requests_total":            total,
		"errors_total":              atomic.LoadUint64(&c.errorRequests),
		"rate_limited_total":        atomic.LoadUint64(&c.rateLimited),
		"avg_duration_ms":           avg,
		"total_duration_ms":         totalMs,
		"payroll_runs_total":        atomic.LoadUint64(&c.payrollRuns),
		"payroll_entries_total":     atomic.LoadUint64(&c.payrollGenerated),
		"payroll_skipped_total":     atomic.LoadUint64(&c.payrollSkipped),
		"payroll_run_duration_ms":   atomic.LoadUint64(&c.payrollDurationMs),
		"payroll_transitions_total": transitions,
	}
}

var publishOnce sync.Once

// Publish exposes the collector under name on the expvar /debug/vars map.
// Only the first call per process registers.
func (c *Collector) Publish(name string) {
	publishOnce.Do(func() {
		expvar.Publish(name, expvar.Func(func() any { return c.Snapshot() }))
	})
}
