// Package predictor implements the transition predictor: a frequency and
// recency based sequence model over module-to-module navigation, used to
// decide what to pre-load before the user asks for it.
//
// Transitions are the persisted unit of truth; the pattern table and all
// probabilities are derived views, so the model can grow decay or weighting
// later without a storage-format change.
package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/appshell/engine/pkg/logger"
	"github.com/appshell/engine/pkg/persistence"
	"github.com/appshell/engine/pkg/resilience"
	"github.com/appshell/engine/pkg/scheduler"
)

const (
	// Component names the predictor in logs.
	Component = "transition-predictor"

	snapshotKey = "snapshot"

	// maxTransitions caps the stored history; the oldest entry is evicted
	// first once the cap is reached.
	maxTransitions = 1000

	saveTimeout = 10 * time.Second
)

// Transition records one module-to-module navigation step.
type Transition struct {
	From    string `json:"from"`
	To      string `json:"to"`
	At      int64  `json:"at"`
	DwellMs int64  `json:"dwell_ms"`
}

// Prediction is one candidate next module.
type Prediction struct {
	ModuleID    string  `json:"module_id"`
	Probability float64 `json:"probability"`
	Reason      string  `json:"reason"`
}

// PatternCount is one (from, to) pair with its occurrence count, as exposed
// by Stats.
type PatternCount struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Stats summarizes the predictor's state.
type Stats struct {
	TotalTransitions int            `json:"total_transitions"`
	DistinctPatterns int            `json:"distinct_patterns"`
	TopPatterns      []PatternCount `json:"top_patterns"`
}

type pair struct {
	from string
	to   string
}

// Predictor learns navigation sequences and predicts probable next modules.
// All methods are safe for concurrent use.
type Predictor struct {
	mu          sync.Mutex
	strategy    Strategy
	transitions []Transition
	patterns    map[pair]int

	current      string
	currentSince time.Time

	adapter persistence.Adapter
	saver   *scheduler.Debouncer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty predictor. Snapshot writes are debounced by window on
// the given scheduler.
func New(strategy Strategy, adapter persistence.Adapter, sched scheduler.Scheduler, window time.Duration) *Predictor {
	p := &Predictor{
		strategy: strategy.normalized(),
		patterns: make(map[pair]int),
		adapter:  adapter,
		logger:   logger.WithComponent(Component),
		now:      time.Now,
	}
	p.saver = scheduler.NewDebouncer(sched, window, p.save)
	return p
}

// Enter records that the user entered a module. When a previous module was
// active it appends a transition with the dwell time spent there and bumps
// the pattern counter for the pair.
func (p *Predictor) Enter(moduleID string) {
	if moduleID == "" {
		return
	}
	now := p.now()
	p.mu.Lock()
	if p.current != "" && p.current != moduleID {
		p.appendLocked(Transition{
			From:    p.current,
			To:      moduleID,
			At:      now.UnixMilli(),
			DwellMs: now.Sub(p.currentSince).Milliseconds(),
		})
	}
	p.current = moduleID
	p.currentSince = now
	p.mu.Unlock()
	p.saver.Trigger()
}

// appendLocked adds a transition, evicting the oldest when at capacity, and
// keeps the pattern table in step so it always equals a full recount.
func (p *Predictor) appendLocked(t Transition) {
	if len(p.transitions) >= maxTransitions {
		oldest := p.transitions[0]
		p.transitions = p.transitions[1:]
		key := pair{from: oldest.From, to: oldest.To}
		if p.patterns[key] <= 1 {
			delete(p.patterns, key)
		} else {
			p.patterns[key]--
		}
	}
	p.transitions = append(p.transitions, t)
	p.patterns[pair{from: t.From, to: t.To}]++
}

// Predict returns candidate next modules for the current module, sorted by
// descending probability and deduplicated.
//
// Sequence patterns are the primary signal: probability is the pair count
// over the total outgoing count for the module. Time-of-day suggestions
// supplement the list: they fill remaining MaxPrefetch slots for modules
// not already predicted, so the result is never empty even with no history.
func (p *Predictor) Predict(currentModule string) []Prediction {
	p.mu.Lock()
	strategy := p.strategy
	var total int
	counts := make(map[string]int)
	for key, count := range p.patterns {
		if key.from != currentModule {
			continue
		}
		counts[key.to] = count
		total += count
	}
	p.mu.Unlock()

	predictions := make([]Prediction, 0, strategy.MaxPrefetch)
	seen := map[string]struct{}{currentModule: {}}
	for to, count := range counts {
		probability := float64(count) / float64(total)
		if probability < strategy.MinProbability {
			continue
		}
		predictions = append(predictions, Prediction{
			ModuleID:    to,
			Probability: probability,
			Reason:      "frequent next module",
		})
		seen[to] = struct{}{}
	}
	sort.Slice(predictions, func(a, b int) bool {
		if predictions[a].Probability != predictions[b].Probability {
			return predictions[a].Probability > predictions[b].Probability
		}
		return predictions[a].ModuleID < predictions[b].ModuleID
	})

	for _, suggestion := range timeOfDaySuggestions(p.now()) {
		if len(predictions) >= strategy.MaxPrefetch {
			break
		}
		if _, dup := seen[suggestion.ModuleID]; dup {
			continue
		}
		if suggestion.Probability < strategy.MinProbability {
			continue
		}
		predictions = append(predictions, suggestion)
		seen[suggestion.ModuleID] = struct{}{}
	}

	if len(predictions) > strategy.MaxPrefetch {
		predictions = predictions[:strategy.MaxPrefetch]
	}
	return predictions
}

// Stats reports transition and pattern counts plus the top patterns.
func (p *Predictor) Stats() Stats {
	const topN = 10
	p.mu.Lock()
	defer p.mu.Unlock()

	top := make([]PatternCount, 0, len(p.patterns))
	for key, count := range p.patterns {
		top = append(top, PatternCount{From: key.from, To: key.to, Count: count})
	}
	sort.Slice(top, func(a, b int) bool {
		if top[a].Count != top[b].Count {
			return top[a].Count > top[b].Count
		}
		if top[a].From != top[b].From {
			return top[a].From < top[b].From
		}
		return top[a].To < top[b].To
	})
	if len(top) > topN {
		top = top[:topN]
	}
	return Stats{
		TotalTransitions: len(p.transitions),
		DistinctPatterns: len(p.patterns),
		TopPatterns:      top,
	}
}

// Strategy returns the active prefetch strategy.
func (p *Predictor) Strategy() Strategy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.strategy
}

// UpdateStrategy merges the patch into the strategy; unspecified fields are
// preserved and out-of-range values clamped.
func (p *Predictor) UpdateStrategy(patch StrategyPatch) {
	p.mu.Lock()
	p.strategy = p.strategy.merge(patch)
	p.mu.Unlock()
}

// Clear resets history and patterns and removes the persisted snapshot.
func (p *Predictor) Clear(ctx context.Context) {
	p.mu.Lock()
	p.transitions = nil
	p.patterns = make(map[pair]int)
	p.current = ""
	p.mu.Unlock()
	p.saver.Stop()
	if err := p.adapter.RemoveAll(ctx, snapshotKey); err != nil {
		p.logger.Error("snapshot removal failed", "error", err)
	}
}

// Load restores persisted transitions and recomputes the pattern table. Any
// persistence failure is logged and leaves the predictor empty and usable.
func (p *Predictor) Load(ctx context.Context) {
	data, err := p.adapter.Get(ctx, snapshotKey)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			p.logger.Error("snapshot load failed, starting empty", "error", err)
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.logger.Error("snapshot decode failed, starting empty", "error", err)
		return
	}
	transitions := snap.Transitions
	if len(transitions) > maxTransitions {
		transitions = transitions[len(transitions)-maxTransitions:]
	}
	p.mu.Lock()
	p.transitions = transitions
	p.patterns = make(map[pair]int, len(transitions))
	for _, t := range transitions {
		p.patterns[pair{from: t.From, to: t.To}]++
	}
	p.mu.Unlock()
	p.logger.Info("snapshot loaded", "transitions", len(transitions))
}

// Close flushes a pending snapshot write.
func (p *Predictor) Close() {
	p.saver.Flush()
}

type snapshot struct {
	Transitions []Transition `json:"transitions"`
}

func (p *Predictor) save() {
	p.mu.Lock()
	snap := snapshot{Transitions: append([]Transition(nil), p.transitions...)}
	p.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		p.logger.Error("snapshot encode failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err = resilience.Retry(ctx, "predictor snapshot", resilience.RetryConfig{}, func() error {
		return p.adapter.Set(ctx, snapshotKey, data)
	})
	if err != nil {
		p.logger.Error("snapshot write failed", "error", err)
		return
	}
	p.logger.Debug("snapshot written", "transitions", len(snap.Transitions), "bytes", len(data))
}
