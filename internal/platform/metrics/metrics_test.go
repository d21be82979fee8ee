package metrics

import (
	"expvar"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCollectorCounts(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(429, 2*time.Millisecond)
	c.Record(503, 8*time.Millisecond)

	snap := c.Snapshot()
	if snap["requests_total"].(uint64) != 3 {
		t.Fatalf("expected 3 requests, got %v", snap["requests_total"])
	}
	if snap["errors_total"].(uint64) != 1 || snap["rate_limited_total"].(uint64) != 1 {
		t.Fatalf("unexpected error counters %v", snap)
	}
	if snap["avg_duration_ms"].(float64) != 20.0/3 {
		t.Fatalf("unexpected average %v", snap["avg_duration_ms"])
	}
}

func TestPayrollCounters(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordPayrollRun(3, 1, time.Second)
			c.RecordPayrollTransition("approve")
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap["payroll_runs_total"].(uint64) != 8 || snap["payroll_entries_total"].(uint64) != 24 {
		t.Fatalf("unexpected payroll counters %v", snap)
	}
	transitions := snap["payroll_transitions_total"].(map[string]uint64)
	if transitions["approve"] != 8 {
		t.Fatalf("expected 8 approvals, got %v", transitions)
	}
}

func TestPublish(t *testing.T) {
	c := New()
	c.RecordPayrollTransition("process")
	c.Publish("timeledger_test")
	c.Publish("timeledger_test")

	v := expvar.Get("timeledger_test")
	if v == nil {
		t.Fatal("expected published var")
	}
	if !strings.Contains(v.String(), `"process":1`) {
		t.Fatalf("unexpected expvar payload %s", v.String())
	}
}
