// Package evictor implements the memory pressure evictor: it tracks the
// estimated memory cost of every mounted module and reclaims the least
// valuable ones under pressure, never touching pinned or current modules.
package evictor

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/appshell/engine/pkg/logger"
	"github.com/appshell/engine/pkg/scheduler"
)

const (
	// Component names the evictor in logs.
	Component = "memory-evictor"

	// baselineMB is the fixed cost of the shell itself, included in every
	// usage total.
	baselineMB = 30.0
)

// Record tracks one mounted module. It exists only while the module is
// mounted and is removed on unmount.
type Record struct {
	ModuleID        string    `json:"module_id"`
	EstimatedSizeMB float64   `json:"estimated_size_mb"`
	MountedAt       time.Time `json:"mounted_at"`
	LastAccessedAt  time.Time `json:"last_accessed_at"`
	AccessCount     int       `json:"access_count"`
	Pinned          bool      `json:"pinned"`
}

// Level is a coarse classification of how close aggregate usage is to the
// hard limit.
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Rank orders levels for monotonicity checks and gauges: none=0 … critical=4.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	default:
		return 0
	}
}

// Usage is the aggregate memory picture.
type Usage struct {
	TotalMB     float64 `json:"total_mb"`
	BaselineMB  float64 `json:"baseline_mb"`
	PercentHard float64 `json:"percent_of_hard_limit"`
	Level       Level   `json:"level"`
}

// CleanupResult reports what a cleanup pass did. OverSoftLimit is true when
// usage stayed above the soft limit because every remaining module was
// pinned or current.
type CleanupResult struct {
	Evicted       []string `json:"evicted"`
	FreedMB       float64  `json:"freed_mb"`
	UsageBeforeMB float64  `json:"usage_before_mb"`
	UsageAfterMB  float64  `json:"usage_after_mb"`
	OverSoftLimit bool     `json:"over_soft_limit"`
}

// Stats summarizes the evictor's state.
type Stats struct {
	MountedModules int      `json:"mounted_modules"`
	PinnedModules  int      `json:"pinned_modules"`
	TotalEvictions int64    `json:"total_evictions"`
	Usage          Usage    `json:"usage"`
	Records        []Record `json:"records"`
}

// Registry supplies per-module size estimates; consulted at mount time when
// the caller does not provide one.
type Registry interface {
	EstimateSize(moduleID string) float64
}

// UnmountFunc tears down a module's resources. Invoked synchronously from
// Cleanup.
type UnmountFunc func(moduleID string)

// Evictor bounds aggregate estimated memory of mounted modules. All methods
// are safe for concurrent use.
type Evictor struct {
	mu       sync.Mutex
	strategy Strategy
	records  map[string]*Record
	current  string

	evictions  int64
	monitoring bool
	monitor    scheduler.Cancel

	registry Registry
	unmount  UnmountFunc
	sched    scheduler.Scheduler
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an evictor. registry may be nil when callers always pass
// explicit sizes; unmount must not be nil.
func New(strategy Strategy, registry Registry, unmount UnmountFunc, sched scheduler.Scheduler) *Evictor {
	return &Evictor{
		strategy: strategy.normalized(),
		records:  make(map[string]*Record),
		registry: registry,
		unmount:  unmount,
		sched:    sched,
		logger:   logger.WithComponent(Component),
		now:      time.Now,
	}
}

// RegisterMount creates or refreshes the record for a module. AccessCount
// starts at 1. When sizeMB is not positive the registry estimate is used.
func (e *Evictor) RegisterMount(moduleID string, sizeMB float64) {
	if moduleID == "" {
		return
	}
	if sizeMB <= 0 && e.registry != nil {
		sizeMB = e.registry.EstimateSize(moduleID)
	}
	if sizeMB < 0 {
		sizeMB = 0
	}
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.records[moduleID]; ok {
		existing.EstimatedSizeMB = sizeMB
		existing.MountedAt = now
		existing.LastAccessedAt = now
		existing.AccessCount = 1
		return
	}
	e.records[moduleID] = &Record{
		ModuleID:        moduleID,
		EstimatedSizeMB: sizeMB,
		MountedAt:       now,
		LastAccessedAt:  now,
		AccessCount:     1,
	}
}

// Mounted reports whether a record exists for the module.
func (e *Evictor) Mounted(moduleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.records[moduleID]
	return ok
}

// RecordAccess bumps the access count and recency of a mounted module.
// Unknown modules are a no-op.
func (e *Evictor) RecordAccess(moduleID string) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.records[moduleID]; ok {
		r.AccessCount++
		r.LastAccessedAt = now
	}
}

// RegisterUnmount removes the record for a module. Absent ids are a no-op.
func (e *Evictor) RegisterUnmount(moduleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.records, moduleID)
	if e.current == moduleID {
		e.current = ""
	}
}

// Pin exempts a module from eviction. Unknown modules are a no-op.
func (e *Evictor) Pin(moduleID string) {
	e.setPinned(moduleID, true)
}

// Unpin removes the eviction exemption. Unknown modules are a no-op.
func (e *Evictor) Unpin(moduleID string) {
	e.setPinned(moduleID, false)
}

func (e *Evictor) setPinned(moduleID string, pinned bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.records[moduleID]; ok {
		r.Pinned = pinned
	}
}

// SetCurrent marks the module the user is looking at; it is never evicted.
func (e *Evictor) SetCurrent(moduleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = moduleID
}

// Usage sums the estimated sizes of all mounted modules plus the baseline
// and classifies the total against the hard limit.
func (e *Evictor) Usage() Usage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usageLocked()
}

func (e *Evictor) usageLocked() Usage {
	total := baselineMB
	for _, r := range e.records {
		total += r.EstimatedSizeMB
	}
	percent := 0.0
	if e.strategy.HardLimitMB > 0 {
		percent = total / e.strategy.HardLimitMB * 100
	}
	return Usage{
		TotalMB:     total,
		BaselineMB:  baselineMB,
		PercentHard: percent,
		Level:       classify(percent),
	}
}

// classify maps percent-of-hard-limit to a pressure level using ascending
// thresholds, so growing usage never lowers the level.
func classify(percent float64) Level {
	switch {
	case percent < 50:
		return LevelNone
	case percent < 70:
		return LevelLow
	case percent < 85:
		return LevelMedium
	case percent < 95:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Cleanup evicts least-recently-used modules, skipping pinned and current,
// until usage drops to the soft limit or no eligible candidates remain. Each
// eviction invokes the unmount callback synchronously. When everything left
// is pinned or current the overage is reported, not forced.
func (e *Evictor) Cleanup() CleanupResult {
	e.mu.Lock()
	before := e.usageLocked()
	result := CleanupResult{UsageBeforeMB: before.TotalMB, UsageAfterMB: before.TotalMB}
	if before.TotalMB <= e.strategy.SoftLimitMB {
		e.mu.Unlock()
		return result
	}

	candidates := make([]*Record, 0, len(e.records))
	for _, r := range e.records {
		if r.Pinned || r.ModuleID == e.current {
			continue
		}
		candidates = append(candidates, r)
	}
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].LastAccessedAt.Before(candidates[b].LastAccessedAt)
	})

	remaining := before.TotalMB
	for _, r := range candidates {
		if remaining <= e.strategy.SoftLimitMB {
			break
		}
		delete(e.records, r.ModuleID)
		remaining -= r.EstimatedSizeMB
		result.Evicted = append(result.Evicted, r.ModuleID)
		result.FreedMB += r.EstimatedSizeMB
	}
	result.UsageAfterMB = remaining
	result.OverSoftLimit = remaining > e.strategy.SoftLimitMB
	e.evictions += int64(len(result.Evicted))
	e.mu.Unlock()

	for _, moduleID := range result.Evicted {
		e.logger.Info("evicting module", "module_id", moduleID)
		e.unmount(moduleID)
	}
	if result.OverSoftLimit {
		e.logger.Warn("usage remains above soft limit after cleanup",
			"usage_mb", result.UsageAfterMB,
			"soft_limit_mb", e.strategy.SoftLimitMB,
		)
	}
	return result
}

// Stats reports the mounted records and eviction counters.
func (e *Evictor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	records := make([]Record, 0, len(e.records))
	pinned := 0
	for _, r := range e.records {
		records = append(records, *r)
		if r.Pinned {
			pinned++
		}
	}
	sort.Slice(records, func(a, b int) bool {
		return records[a].ModuleID < records[b].ModuleID
	})
	return Stats{
		MountedModules: len(records),
		PinnedModules:  pinned,
		TotalEvictions: e.evictions,
		Usage:          e.usageLocked(),
		Records:        records,
	}
}

// Strategy returns the active memory strategy.
func (e *Evictor) Strategy() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy
}

// UpdateStrategy merges the patch into the strategy; unspecified fields are
// preserved and out-of-range values clamped.
func (e *Evictor) UpdateStrategy(patch StrategyPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy = e.strategy.merge(patch)
}

// Reset removes all records and counters. The strategy is kept.
func (e *Evictor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = make(map[string]*Record)
	e.current = ""
	e.evictions = 0
}

// StartMonitoring begins periodic pressure checks that run Cleanup whenever
// usage exceeds the soft limit. Calling it while already monitoring is a
// no-op.
func (e *Evictor) StartMonitoring() {
	e.mu.Lock()
	if e.monitoring {
		e.mu.Unlock()
		return
	}
	e.monitoring = true
	e.mu.Unlock()
	e.scheduleCheck()
	e.logger.Info("memory monitoring started", "interval", e.Strategy().CheckInterval)
}

// StopMonitoring halts future pressure checks. Records are untouched.
// Calling it when not monitoring is a no-op.
func (e *Evictor) StopMonitoring() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.monitoring {
		return
	}
	e.monitoring = false
	if e.monitor != nil {
		e.monitor()
		e.monitor = nil
	}
	e.logger.Info("memory monitoring stopped")
}

func (e *Evictor) scheduleCheck() {
	e.mu.Lock()
	if !e.monitoring {
		e.mu.Unlock()
		return
	}
	interval := e.strategy.CheckInterval
	e.monitor = e.sched.Schedule(interval, func() {
		usage := e.Usage()
		if usage.TotalMB > e.Strategy().SoftLimitMB {
			e.logger.Info("pressure check triggered cleanup",
				"usage_mb", usage.TotalMB,
				"level", usage.Level,
			)
			e.Cleanup()
		}
		e.scheduleCheck()
	})
	e.mu.Unlock()
}
