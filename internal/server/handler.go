// Package server exposes the engine over HTTP: search, index mutations,
// module lifecycle events, predictions, and memory pressure queries.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/appshell/engine/internal/index"
	"github.com/appshell/engine/internal/orchestrator"
	engineerrors "github.com/appshell/engine/pkg/errors"
	"github.com/appshell/engine/pkg/health"
	"github.com/appshell/engine/pkg/logger"
)

// Handler serves the engine API.
type Handler struct {
	engine  *orchestrator.Orchestrator
	checker *health.Checker
	logger  *slog.Logger
}

func NewHandler(engine *orchestrator.Orchestrator, checker *health.Checker) *Handler {
	return &Handler{
		engine:  engine,
		checker: checker,
		logger:  logger.WithComponent("http"),
	}
}

// Health serves the aggregated health report.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.checker.Handler()(w, r)
}

// Search handles GET /api/v1/search?q=&limit=&types=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	query := r.URL.Query().Get("q")
	opts := index.SearchOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			opts.MaxResults = limit
		}
	}
	if v := r.URL.Query().Get("types"); v != "" {
		opts.ModuleTypes = strings.Split(v, ",")
	}
	results := h.engine.Search(query, opts)
	log.Info("search completed",
		"query", query,
		"returned", len(results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"total":   len(results),
		"results": results,
	})
}

// AddItem handles POST /api/v1/index/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var item index.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid item payload")
		return
	}
	if err := h.engine.AddItem(item); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, engineerrors.ErrDuplicateID) {
			status = http.StatusConflict
		}
		logger.FromContext(r.Context()).Error("item indexing failed", "id", item.ID, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": item.ID})
}

// UpdateItem handles PUT /api/v1/index/items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var item index.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid item payload")
		return
	}
	item.ID = r.PathValue("id")
	if err := h.engine.UpdateItem(item); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": item.ID})
}

// RemoveItem handles DELETE /api/v1/index/items/{id}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.engine.RemoveItem(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// RebuildIndex handles POST /api/v1/index/rebuild with a JSON item array.
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	var items []index.Item
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid items payload")
		return
	}
	h.engine.RebuildIndex(items)
	writeJSON(w, http.StatusOK, h.engine.IndexStats())
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.IndexStats())
}

// ModuleEnter handles POST /api/v1/modules/{id}/enter.
func (h *Handler) ModuleEnter(w http.ResponseWriter, r *http.Request) {
	moduleID := r.PathValue("id")
	var body struct {
		EstimatedSizeMB float64 `json:"estimated_size_mb"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	h.engine.ModuleEntered(r.Context(), moduleID, body.EstimatedSizeMB)
	logger.FromContext(r.Context()).Info("module entered",
		"module_id", moduleID,
		"estimated_size_mb", body.EstimatedSizeMB,
	)
	writeJSON(w, http.StatusOK, map[string]string{"module_id": moduleID})
}

// ModuleExit handles POST /api/v1/modules/{id}/exit.
func (h *Handler) ModuleExit(w http.ResponseWriter, r *http.Request) {
	h.engine.ModuleExited(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// Predictions handles GET /api/v1/modules/{id}/predictions.
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	moduleID := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"module_id":   moduleID,
		"predictions": h.engine.Predictions(moduleID),
	})
}

// PinModule handles POST /api/v1/modules/{id}/pin.
func (h *Handler) PinModule(w http.ResponseWriter, r *http.Request) {
	h.engine.PinModule(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// UnpinModule handles POST /api/v1/modules/{id}/unpin.
func (h *Handler) UnpinModule(w http.ResponseWriter, r *http.Request) {
	h.engine.UnpinModule(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// MemoryUsage handles GET /api/v1/memory.
func (h *Handler) MemoryUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.MemoryUsage())
}

// MemoryCleanup handles POST /api/v1/memory/cleanup.
func (h *Handler) MemoryCleanup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Cleanup())
}

// Stats handles GET /api/v1/stats with a combined statistics view.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"index":     h.engine.IndexStats(),
		"predictor": h.engine.PredictorStats(),
		"memory":    h.engine.EvictorStats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
