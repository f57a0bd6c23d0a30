package evictor

import (
	"fmt"
	"testing"
	"time"

	"github.com/appshell/engine/pkg/scheduler"
)

func testStrategy() Strategy {
	return Strategy{SoftLimitMB: 120, HardLimitMB: 200, CheckInterval: 30 * time.Second}
}

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// unmountRecorder captures the eviction callbacks.
type unmountRecorder struct {
	unmounted []string
}

func (u *unmountRecorder) fn(moduleID string) {
	u.unmounted = append(u.unmounted, moduleID)
}

func newTestEvictor(t *testing.T) (*Evictor, *unmountRecorder, *clock, *scheduler.Manual) {
	t.Helper()
	rec := &unmountRecorder{}
	sched := scheduler.NewManual()
	e := New(testStrategy(), nil, rec.fn, sched)
	c := &clock{t: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)}
	e.now = c.Now
	return e, rec, c, sched
}

func TestUsageIncludesBaseline(t *testing.T) {
	e, _, _, _ := newTestEvictor(t)

	usage := e.Usage()
	if usage.TotalMB != baselineMB || usage.BaselineMB != baselineMB {
		t.Errorf("empty usage = %+v, want baseline %v", usage, baselineMB)
	}
	if usage.Level != LevelNone {
		t.Errorf("empty level = %v, want none", usage.Level)
	}

	e.RegisterMount("notes", 40)
	if got := e.Usage().TotalMB; got != baselineMB+40 {
		t.Errorf("TotalMB = %v, want %v", got, baselineMB+40)
	}
}

func TestPressureLevels(t *testing.T) {
	// Hard limit 200 with baseline 30: the mounted size needed for each level
	// boundary is threshold% of 200 minus the baseline.
	tests := []struct {
		mountedMB float64
		want      Level
	}{
		{0, LevelNone},     // 15%
		{60, LevelNone},    // 45%
		{70, LevelLow},     // 50%
		{100, LevelLow},    // 65%
		{110, LevelMedium}, // 70%
		{150, LevelHigh},   // 90%
		{160, LevelCritical},
		{300, LevelCritical},
	}
	for _, tt := range tests {
		e, _, _, _ := newTestEvictor(t)
		if tt.mountedMB > 0 {
			e.RegisterMount("m", tt.mountedMB)
		}
		if got := e.Usage().Level; got != tt.want {
			t.Errorf("level at %vMB mounted = %v, want %v", tt.mountedMB, got, tt.want)
		}
	}
}

func TestLevelNeverDropsAsUsageGrows(t *testing.T) {
	e, _, _, _ := newTestEvictor(t)

	prev := e.Usage().Level
	for n := 0; n < 30; n++ {
		e.RegisterMount(fmt.Sprintf("m%d", n), 10)
		level := e.Usage().Level
		if level.Rank() < prev.Rank() {
			t.Fatalf("level dropped from %v to %v as usage grew", prev, level)
		}
		prev = level
	}
	if prev != LevelCritical {
		t.Errorf("level after 300MB mounted = %v, want critical", prev)
	}
}

func TestRegisterMountRefreshResetsAccessCount(t *testing.T) {
	e, _, c, _ := newTestEvictor(t)

	e.RegisterMount("notes", 10)
	e.RecordAccess("notes")
	e.RecordAccess("notes")
	c.Advance(time.Minute)
	e.RegisterMount("notes", 12)

	stats := e.Stats()
	if len(stats.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(stats.Records))
	}
	r := stats.Records[0]
	if r.AccessCount != 1 || r.EstimatedSizeMB != 12 {
		t.Errorf("refreshed record = %+v, want count 1 size 12", r)
	}
}

type fixedRegistry struct {
	sizeMB float64
}

func (f fixedRegistry) EstimateSize(string) float64 { return f.sizeMB }

func TestRegisterMountFallsBackToRegistry(t *testing.T) {
	rec := &unmountRecorder{}
	e := New(testStrategy(), fixedRegistry{sizeMB: 25}, rec.fn, scheduler.NewManual())

	e.RegisterMount("notes", 0)
	if got := e.Usage().TotalMB; got != baselineMB+25 {
		t.Errorf("TotalMB = %v, want registry estimate applied", got)
	}
}

func TestCleanupEvictsLeastRecentlyUsed(t *testing.T) {
	e, rec, c, _ := newTestEvictor(t)

	// 30 modules of 10MB each: 330MB total against a 120MB soft limit.
	for n := 0; n < 30; n++ {
		e.RegisterMount(fmt.Sprintf("m%d", n), 10)
		c.Advance(time.Second)
	}
	e.RecordAccess("m0") // oldest mount becomes the most recent access
	e.SetCurrent("m29")

	result := e.Cleanup()
	if result.UsageAfterMB > testStrategy().SoftLimitMB {
		t.Errorf("usage after cleanup = %v, want at or under soft limit", result.UsageAfterMB)
	}
	if result.OverSoftLimit {
		t.Error("OverSoftLimit set despite eligible candidates")
	}
	if result.FreedMB != float64(len(result.Evicted))*10 {
		t.Errorf("FreedMB = %v for %d evictions", result.FreedMB, len(result.Evicted))
	}
	for _, id := range result.Evicted {
		if id == "m0" {
			t.Error("recently accessed module evicted before stale ones")
		}
		if id == "m29" {
			t.Error("current module evicted")
		}
	}
	if len(rec.unmounted) != len(result.Evicted) {
		t.Errorf("unmount callbacks = %d, evictions = %d", len(rec.unmounted), len(result.Evicted))
	}
	if e.Stats().TotalEvictions != int64(len(result.Evicted)) {
		t.Errorf("TotalEvictions = %d, want %d", e.Stats().TotalEvictions, len(result.Evicted))
	}
}

func TestCleanupSparesPinnedAndCurrent(t *testing.T) {
	e, rec, c, _ := newTestEvictor(t)

	e.RegisterMount("pinned", 100)
	e.Pin("pinned")
	c.Advance(time.Second)
	e.RegisterMount("current", 100)
	e.SetCurrent("current")

	result := e.Cleanup()
	if len(result.Evicted) != 0 || len(rec.unmounted) != 0 {
		t.Fatalf("protected modules evicted: %v", result.Evicted)
	}
	if !result.OverSoftLimit {
		t.Error("OverSoftLimit not reported with only protected modules over the limit")
	}

	e.Unpin("pinned")
	result = e.Cleanup()
	if len(result.Evicted) != 1 || result.Evicted[0] != "pinned" {
		t.Errorf("after unpin, evicted = %v, want [pinned]", result.Evicted)
	}
}

func TestCleanupBelowSoftLimitIsNoOp(t *testing.T) {
	e, rec, _, _ := newTestEvictor(t)
	e.RegisterMount("notes", 10)

	result := e.Cleanup()
	if len(result.Evicted) != 0 || len(rec.unmounted) != 0 {
		t.Errorf("cleanup under the limit evicted %v", result.Evicted)
	}
	if result.UsageBeforeMB != result.UsageAfterMB {
		t.Errorf("usage changed: %v to %v", result.UsageBeforeMB, result.UsageAfterMB)
	}
}

func TestUnmountRemovesRecord(t *testing.T) {
	e, _, _, _ := newTestEvictor(t)

	e.RegisterMount("notes", 10)
	e.SetCurrent("notes")
	e.RegisterUnmount("notes")

	if e.Mounted("notes") {
		t.Error("record survived unmount")
	}
	if got := e.Usage().TotalMB; got != baselineMB {
		t.Errorf("TotalMB = %v, want baseline only", got)
	}
}

func TestMonitoringRunsPeriodicCleanup(t *testing.T) {
	e, rec, _, sched := newTestEvictor(t)

	for n := 0; n < 20; n++ {
		e.RegisterMount(fmt.Sprintf("m%d", n), 10)
	}
	e.StartMonitoring()
	e.StartMonitoring() // second call must not double the schedule
	if sched.Pending() != 1 {
		t.Fatalf("pending checks = %d, want 1", sched.Pending())
	}

	sched.Advance(30 * time.Second)
	if len(rec.unmounted) == 0 {
		t.Error("pressure check did not trigger cleanup")
	}
	if sched.Pending() != 1 {
		t.Errorf("check did not reschedule itself, pending = %d", sched.Pending())
	}

	e.StopMonitoring()
	e.StopMonitoring()
	if sched.Pending() != 0 {
		t.Errorf("pending checks after stop = %d, want 0", sched.Pending())
	}
	evicted := len(rec.unmounted)
	sched.Advance(time.Hour)
	if len(rec.unmounted) != evicted {
		t.Error("cleanup ran after monitoring stopped")
	}
}

func TestResetClearsRecordsAndCounters(t *testing.T) {
	e, _, _, _ := newTestEvictor(t)

	for n := 0; n < 20; n++ {
		e.RegisterMount(fmt.Sprintf("m%d", n), 10)
	}
	e.Cleanup()
	e.Reset()

	stats := e.Stats()
	if stats.MountedModules != 0 || stats.TotalEvictions != 0 {
		t.Errorf("stats after reset = %+v", stats)
	}
	if got := e.Usage().TotalMB; got != baselineMB {
		t.Errorf("TotalMB after reset = %v, want baseline", got)
	}
}

func TestStrategyClamping(t *testing.T) {
	e, _, _, _ := newTestEvictor(t)

	e.UpdateStrategy(StrategyPatch{SoftLimitMB: floatPtr(300)})
	got := e.Strategy()
	if got.HardLimitMB < got.SoftLimitMB {
		t.Errorf("hard limit %v below soft limit %v", got.HardLimitMB, got.SoftLimitMB)
	}

	interval := -time.Second
	e.UpdateStrategy(StrategyPatch{CheckInterval: &interval})
	if got := e.Strategy().CheckInterval; got != 30*time.Second {
		t.Errorf("CheckInterval = %v, want 30s default", got)
	}
}

func floatPtr(v float64) *float64 { return &v }
