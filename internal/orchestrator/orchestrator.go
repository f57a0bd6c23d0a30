// Package orchestrator wires the engine components together: it constructs
// explicit instances (no shared globals), fans module-enter events out to the
// predictor and the evictor, and drives speculative pre-loading through an
// injected Loader.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/appshell/engine/internal/evictor"
	"github.com/appshell/engine/internal/index"
	"github.com/appshell/engine/internal/predictor"
	"github.com/appshell/engine/pkg/config"
	"github.com/appshell/engine/pkg/logger"
	"github.com/appshell/engine/pkg/metrics"
	"github.com/appshell/engine/pkg/persistence"
	"github.com/appshell/engine/pkg/scheduler"
)

// Loader pre-loads a module's resources ahead of navigation. The engine only
// decides what to load; the Loader owns the loading itself.
type Loader interface {
	Preload(ctx context.Context, moduleID string)
}

// Orchestrator owns one instance of each engine component.
type Orchestrator struct {
	index     *index.Index
	predictor *predictor.Predictor
	evictor   *evictor.Evictor

	loader  Loader
	sched   scheduler.Scheduler
	metrics *metrics.Metrics
	logger  *slog.Logger

	prefetchMu sync.Mutex
	prefetch   scheduler.Cancel
}

// New builds the engine from configuration. Each component persists under
// its own namespace of the shared adapter. metrics may be nil; loader and
// unmount must not be.
func New(
	cfg *config.Config,
	adapter persistence.Adapter,
	registry evictor.Registry,
	loader Loader,
	unmount evictor.UnmountFunc,
	sched scheduler.Scheduler,
	m *metrics.Metrics,
) *Orchestrator {
	window := cfg.Persistence.SaveDebounce

	indexStore := persistence.Namespaced(adapter, "index")
	predictorStore := persistence.Namespaced(adapter, "predictor")
	if m != nil {
		indexStore = instrumented(indexStore, "index", m)
		predictorStore = instrumented(predictorStore, "predictor", m)
	}

	idx := index.New(
		index.Config{
			MinWordLength:   cfg.Index.MinWordLength,
			MaxWordsPerItem: cfg.Index.MaxWordsPerItem,
			Stopwords:       cfg.Index.Stopwords,
		},
		indexStore,
		sched,
		window,
	)
	pred := predictor.New(
		predictor.Strategy{
			MaxPrefetch:    cfg.Prefetch.MaxPrefetch,
			MinProbability: cfg.Prefetch.MinProbability,
			PrefetchDelay:  cfg.Prefetch.PrefetchDelay,
		},
		predictorStore,
		sched,
		window,
	)
	ev := evictor.New(
		evictor.Strategy{
			SoftLimitMB:   cfg.Memory.SoftLimitMB,
			HardLimitMB:   cfg.Memory.HardLimitMB,
			CheckInterval: cfg.Memory.CheckInterval,
		},
		registry,
		unmount,
		sched,
	)

	return &Orchestrator{
		index:     idx,
		predictor: pred,
		evictor:   ev,
		loader:    loader,
		sched:     sched,
		metrics:   m,
		logger:    logger.WithComponent("orchestrator"),
	}
}

// Start loads persisted snapshots for all components in parallel and begins
// memory monitoring. Component loads never fail, so Start only returns a
// context error.
func (o *Orchestrator) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.index.Load(gctx)
		return nil
	})
	g.Go(func() error {
		o.predictor.Load(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	o.evictor.StartMonitoring()
	o.logger.Info("engine started")
	return ctx.Err()
}

// Stop halts monitoring and flushes pending snapshot writes.
func (o *Orchestrator) Stop() {
	o.evictor.StopMonitoring()
	o.prefetchMu.Lock()
	if o.prefetch != nil {
		o.prefetch()
		o.prefetch = nil
	}
	o.prefetchMu.Unlock()
	o.index.Close()
	o.predictor.Close()
	o.logger.Info("engine stopped")
}

// ModuleEntered handles a module-enter event: the evictor registers the
// mount (or access), the predictor learns the transition, and a prefetch of
// the predicted next modules is scheduled after the configured delay. A new
// navigation supersedes any pending prefetch.
func (o *Orchestrator) ModuleEntered(ctx context.Context, moduleID string, sizeMB float64) {
	if moduleID == "" {
		return
	}
	if o.evictor.Mounted(moduleID) {
		o.evictor.RecordAccess(moduleID)
	} else {
		o.evictor.RegisterMount(moduleID, sizeMB)
	}
	o.evictor.SetCurrent(moduleID)
	o.predictor.Enter(moduleID)
	if o.metrics != nil {
		o.metrics.TransitionsRecordedTotal.Inc()
		o.observeMemory()
	}

	// The prefetch outlives the triggering request, so detach its context:
	// the caller's values (request id) carry over, its cancellation does not.
	prefetchCtx := context.WithoutCancel(ctx)
	delay := o.predictor.Strategy().PrefetchDelay
	o.prefetchMu.Lock()
	if o.prefetch != nil {
		o.prefetch()
	}
	o.prefetch = o.sched.Schedule(delay, func() {
		o.prefetchFor(prefetchCtx, moduleID)
	})
	o.prefetchMu.Unlock()
}

func (o *Orchestrator) prefetchFor(ctx context.Context, moduleID string) {
	predictions := o.predictor.Predict(moduleID)
	if o.metrics != nil {
		o.metrics.PredictionsServedTotal.Inc()
	}
	for _, p := range predictions {
		o.logger.Debug("prefetching predicted module",
			"from", moduleID,
			"module_id", p.ModuleID,
			"probability", p.Probability,
			"reason", p.Reason,
		)
		o.loader.Preload(ctx, p.ModuleID)
	}
}

// ModuleExited handles an explicit unmount signalled by the shell.
func (o *Orchestrator) ModuleExited(moduleID string) {
	o.evictor.RegisterUnmount(moduleID)
	if o.metrics != nil {
		o.observeMemory()
	}
}

// Search serves a ranked free-text query from the content index.
func (o *Orchestrator) Search(query string, opts index.SearchOptions) []index.Result {
	start := time.Now()
	results := o.index.Search(query, opts)
	if o.metrics != nil {
		o.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		o.metrics.SearchResultsCount.Observe(float64(len(results)))
		switch {
		case query == "":
			o.metrics.SearchesTotal.WithLabelValues("empty_query").Inc()
		case len(results) == 0:
			o.metrics.SearchesTotal.WithLabelValues("zero_result").Inc()
		default:
			o.metrics.SearchesTotal.WithLabelValues("hit").Inc()
		}
	}
	return results
}

// AddItem indexes a new content item.
func (o *Orchestrator) AddItem(item index.Item) error {
	if err := o.index.Add(item); err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.ItemsIndexedTotal.Inc()
	}
	return nil
}

// UpdateItem replaces an indexed content item.
func (o *Orchestrator) UpdateItem(item index.Item) error {
	if err := o.index.Update(item); err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.ItemsIndexedTotal.Inc()
	}
	return nil
}

// RemoveItem drops a content item from the index.
func (o *Orchestrator) RemoveItem(id string) {
	o.index.Remove(id)
	if o.metrics != nil {
		o.metrics.ItemsRemovedTotal.Inc()
	}
}

// RebuildIndex clears and re-indexes the given items.
func (o *Orchestrator) RebuildIndex(items []index.Item) {
	o.index.Rebuild(items)
}

// IndexStats returns content index statistics.
func (o *Orchestrator) IndexStats() index.Stats {
	return o.index.Stats()
}

// Predictions returns the predicted next modules for the given module.
func (o *Orchestrator) Predictions(moduleID string) []predictor.Prediction {
	predictions := o.predictor.Predict(moduleID)
	if o.metrics != nil {
		o.metrics.PredictionsServedTotal.Inc()
	}
	return predictions
}

// PredictorStats returns transition and pattern statistics.
func (o *Orchestrator) PredictorStats() predictor.Stats {
	return o.predictor.Stats()
}

// MemoryUsage returns the aggregate memory picture.
func (o *Orchestrator) MemoryUsage() evictor.Usage {
	usage := o.evictor.Usage()
	if o.metrics != nil {
		o.metrics.MemoryUsageMB.Set(usage.TotalMB)
		o.metrics.MemoryPressureLevel.Set(float64(usage.Level.Rank()))
	}
	return usage
}

// Cleanup runs an eviction pass and returns what it did.
func (o *Orchestrator) Cleanup() evictor.CleanupResult {
	result := o.evictor.Cleanup()
	if o.metrics != nil {
		o.metrics.ModulesEvictedTotal.Add(float64(len(result.Evicted)))
		o.observeMemory()
	}
	return result
}

// PinModule exempts a module from eviction; UnpinModule reverses it.
func (o *Orchestrator) PinModule(moduleID string)   { o.evictor.Pin(moduleID) }
func (o *Orchestrator) UnpinModule(moduleID string) { o.evictor.Unpin(moduleID) }

// EvictorStats returns mounted-module statistics.
func (o *Orchestrator) EvictorStats() evictor.Stats {
	return o.evictor.Stats()
}

func (o *Orchestrator) observeMemory() {
	usage := o.evictor.Usage()
	stats := o.evictor.Stats()
	o.metrics.MemoryUsageMB.Set(usage.TotalMB)
	o.metrics.MemoryPressureLevel.Set(float64(usage.Level.Rank()))
	o.metrics.ModulesMounted.Set(float64(stats.MountedModules))
}
