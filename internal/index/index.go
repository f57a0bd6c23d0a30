// Package index implements the content index: an incrementally-updatable
// inverted index over heterogeneous application content with ranked
// free-text search.
//
// The index owns its in-memory structures exclusively. Snapshots are written
// through a debounced, fire-and-forget saver; a persistence failure never
// affects the live index.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	engineerrors "github.com/appshell/engine/pkg/errors"
	"github.com/appshell/engine/pkg/logger"
	"github.com/appshell/engine/pkg/persistence"
	"github.com/appshell/engine/pkg/resilience"
	"github.com/appshell/engine/pkg/scheduler"
)

const (
	// Component names the index in logs and errors.
	Component = "content-index"

	snapshotKey = "snapshot"

	// baseWeight scores a token match in the searchable text; titleBoost is
	// added on top for title matches and is strictly greater than baseWeight
	// so a single title hit outranks any single body hit.
	baseWeight = 1.0
	titleBoost = 2.0

	saveTimeout = 10 * time.Second
)

type entry struct {
	item Item
	seq  int64
	// tokens holds the exact postings written for this item (token → inTitle),
	// captured under the config active at insert time. Removal replays this
	// set instead of re-tokenizing, so config changes never strand postings.
	tokens map[string]bool
}

// Index is the content index. All methods are safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	cfg      Config
	stops    map[string]struct{}
	items    map[string]*entry
	postings map[string]map[string]bool // word → itemID → inTitle
	nextSeq  int64

	adapter persistence.Adapter
	saver   *scheduler.Debouncer
	logger  *slog.Logger
}

// New creates an empty index. Snapshot writes are debounced by window on the
// given scheduler and written to adapter under the index's namespace.
func New(cfg Config, adapter persistence.Adapter, sched scheduler.Scheduler, window time.Duration) *Index {
	idx := &Index{
		cfg:      cfg,
		stops:    stopwordSet(cfg.Stopwords),
		items:    make(map[string]*entry),
		postings: make(map[string]map[string]bool),
		adapter:  adapter,
		logger:   logger.WithComponent(Component),
	}
	idx.saver = scheduler.NewDebouncer(sched, window, idx.save)
	return idx
}

// Add inserts a new item. It fails with ErrDuplicateID when the id is
// already indexed; callers wanting replace semantics use Update.
func (i *Index) Add(item Item) error {
	if item.ID == "" {
		return engineerrors.New(engineerrors.ErrInvalidInput, Component, "item id must not be empty")
	}
	i.mu.Lock()
	if _, exists := i.items[item.ID]; exists {
		i.mu.Unlock()
		return engineerrors.Newf(engineerrors.ErrDuplicateID, Component, "id %q", item.ID)
	}
	i.insertLocked(item)
	i.mu.Unlock()
	i.saver.Trigger()
	return nil
}

// Update replaces the indexed version of the item, removing all postings for
// the old version and re-tokenizing. An unknown id behaves like Add.
func (i *Index) Update(item Item) error {
	if item.ID == "" {
		return engineerrors.New(engineerrors.ErrInvalidInput, Component, "item id must not be empty")
	}
	i.mu.Lock()
	if old, exists := i.items[item.ID]; exists {
		i.removePostingsLocked(old)
		delete(i.items, item.ID)
	}
	i.insertLocked(item)
	i.mu.Unlock()
	i.saver.Trigger()
	return nil
}

// Remove deletes the item and all its postings. Unknown ids are a no-op.
func (i *Index) Remove(id string) {
	i.mu.Lock()
	old, exists := i.items[id]
	if exists {
		i.removePostingsLocked(old)
		delete(i.items, id)
	}
	i.mu.Unlock()
	if exists {
		i.saver.Trigger()
	}
}

// Get returns the indexed item for id, if present.
func (i *Index) Get(id string) (Item, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.items[id]
	if !ok {
		return Item{}, false
	}
	return e.item, true
}

// Search tokenizes the query with the same pipeline as indexing and returns
// items ranked by score: baseWeight per matched token plus titleBoost when
// the token occurs in the title. Ties go to the most recently added item.
// An empty query returns an empty result set.
func (i *Index) Search(query string, opts SearchOptions) []Result {
	i.mu.RLock()
	defer i.mu.RUnlock()

	tokens := tokenize(query, i.cfg.MinWordLength, i.stops, i.cfg.MaxWordsPerItem)
	if len(tokens) == 0 {
		return []Result{}
	}

	var allowed map[string]struct{}
	if len(opts.ModuleTypes) > 0 {
		allowed = make(map[string]struct{}, len(opts.ModuleTypes))
		for _, mt := range opts.ModuleTypes {
			allowed[mt] = struct{}{}
		}
	}

	scores := make(map[string]float64)
	for _, token := range tokens {
		for id, inTitle := range i.postings[token] {
			if allowed != nil {
				if _, ok := allowed[i.items[id].item.ModuleType]; !ok {
					continue
				}
			}
			scores[id] += baseWeight
			if inTitle {
				scores[id] += titleBoost
			}
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{Item: i.items[id].item, Score: score})
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return i.items[results[a].Item.ID].seq > i.items[results[b].Item.ID].seq
	})
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results
}

// Stats reports item count, distinct indexed words, an estimated size, and a
// per-module-type breakdown.
func (i *Index) Stats() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	stats := Stats{
		TotalItems:    len(i.items),
		DistinctWords: len(i.postings),
		ByModuleType:  make(map[string]int),
	}
	for _, e := range i.items {
		stats.ByModuleType[e.item.ModuleType]++
		stats.EstimatedSizeBytes += int64(len(e.item.Title) + len(e.item.SearchableText) + len(e.item.ID) + 48)
	}
	for word, ids := range i.postings {
		stats.EstimatedSizeBytes += int64(len(word) + len(ids)*24)
	}
	return stats
}

// Rebuild clears all state and re-indexes the given items atomically. A
// repeated id within items replaces the earlier occurrence.
func (i *Index) Rebuild(items []Item) {
	i.mu.Lock()
	i.items = make(map[string]*entry, len(items))
	i.postings = make(map[string]map[string]bool)
	i.nextSeq = 0
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if old, exists := i.items[item.ID]; exists {
			i.removePostingsLocked(old)
		}
		i.insertLocked(item)
	}
	i.mu.Unlock()
	i.saver.Trigger()
}

// UpdateConfig merges the patch into the tokenization config. It applies to
// subsequent operations only; already-indexed items keep their postings.
func (i *Index) UpdateConfig(patch ConfigPatch) {
	i.mu.Lock()
	i.cfg = i.cfg.merge(patch)
	i.stops = stopwordSet(i.cfg.Stopwords)
	i.mu.Unlock()
	i.saver.Trigger()
}

// Config returns the active tokenization config.
func (i *Index) Config() Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.cfg
}

// Load restores the last persisted snapshot. Any persistence failure is
// logged and leaves the index empty and usable.
func (i *Index) Load(ctx context.Context) {
	data, err := i.adapter.Get(ctx, snapshotKey)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			i.logger.Error("snapshot load failed, starting empty", "error", err)
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		i.logger.Error("snapshot decode failed, starting empty", "error", err)
		return
	}
	i.mu.Lock()
	i.cfg = snap.Config
	i.stops = stopwordSet(i.cfg.Stopwords)
	i.items = make(map[string]*entry, len(snap.Items))
	i.postings = make(map[string]map[string]bool)
	i.nextSeq = 0
	for _, item := range snap.Items {
		i.insertLocked(item)
	}
	i.mu.Unlock()
	i.logger.Info("snapshot loaded", "items", len(snap.Items))
}

// Close flushes a pending snapshot write.
func (i *Index) Close() {
	i.saver.Flush()
}

// insertLocked tokenizes title and searchable text, caps the distinct tokens
// retained (title tokens first), and writes the postings.
func (i *Index) insertLocked(item Item) {
	limit := i.cfg.MaxWordsPerItem
	titleTokens := tokenize(item.Title, i.cfg.MinWordLength, i.stops, limit)
	bodyTokens := tokenize(item.SearchableText, i.cfg.MinWordLength, i.stops, limit)

	tokens := make(map[string]bool, len(titleTokens)+len(bodyTokens))
	for _, t := range titleTokens {
		if limit > 0 && len(tokens) >= limit {
			break
		}
		tokens[t] = true
	}
	for _, t := range bodyTokens {
		if _, already := tokens[t]; already {
			continue
		}
		if limit > 0 && len(tokens) >= limit {
			break
		}
		tokens[t] = false
	}

	i.nextSeq++
	i.items[item.ID] = &entry{item: item, seq: i.nextSeq, tokens: tokens}
	for token, inTitle := range tokens {
		ids, ok := i.postings[token]
		if !ok {
			ids = make(map[string]bool)
			i.postings[token] = ids
		}
		ids[item.ID] = inTitle
	}
}

func (i *Index) removePostingsLocked(e *entry) {
	for token := range e.tokens {
		ids := i.postings[token]
		delete(ids, e.item.ID)
		if len(ids) == 0 {
			delete(i.postings, token)
		}
	}
}

type snapshot struct {
	Config Config `json:"config"`
	Items  []Item `json:"items"`
}

// save serializes the items in insertion order and writes the snapshot.
// Failures are retried once with backoff, then logged and dropped; the
// in-memory index is never rolled back.
func (i *Index) save() {
	i.mu.RLock()
	snap := snapshot{Config: i.cfg, Items: make([]Item, 0, len(i.items))}
	order := make([]*entry, 0, len(i.items))
	for _, e := range i.items {
		order = append(order, e)
	}
	sort.Slice(order, func(a, b int) bool { return order[a].seq < order[b].seq })
	for _, e := range order {
		snap.Items = append(snap.Items, e.item)
	}
	i.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		i.logger.Error("snapshot encode failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err = resilience.Retry(ctx, "index snapshot", resilience.RetryConfig{}, func() error {
		return i.adapter.Set(ctx, snapshotKey, data)
	})
	if err != nil {
		i.logger.Error("snapshot write failed", "error", err)
		return
	}
	i.logger.Debug("snapshot written", "items", len(snap.Items), "bytes", len(data))
}
