package server

import (
	"net/http"

	"github.com/appshell/engine/pkg/metrics"
	"github.com/appshell/engine/pkg/middleware"
)

// NewRouter builds the engine HTTP handler.
//
// Route table:
//
//	GET    /health                                health report
//	GET    /api/v1/search                         ranked free-text search
//	POST   /api/v1/index/items                    add item
//	PUT    /api/v1/index/items/{id}               update item
//	DELETE /api/v1/index/items/{id}               remove item
//	POST   /api/v1/index/rebuild                  bulk re-index
//	GET    /api/v1/index/stats                    index statistics
//	POST   /api/v1/modules/{id}/enter             module-enter event
//	POST   /api/v1/modules/{id}/exit              module unmount event
//	GET    /api/v1/modules/{id}/predictions       predicted next modules
//	POST   /api/v1/modules/{id}/pin|/unpin        eviction exemption
//	GET    /api/v1/memory                         usage + pressure level
//	POST   /api/v1/memory/cleanup                 eviction pass
//	GET    /api/v1/stats                          combined statistics
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → handler
func NewRouter(h *Handler, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/v1/search", h.Search)

	mux.HandleFunc("POST /api/v1/index/items", h.AddItem)
	mux.HandleFunc("PUT /api/v1/index/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/v1/index/items/{id}", h.RemoveItem)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.RebuildIndex)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)

	mux.HandleFunc("POST /api/v1/modules/{id}/enter", h.ModuleEnter)
	mux.HandleFunc("POST /api/v1/modules/{id}/exit", h.ModuleExit)
	mux.HandleFunc("GET /api/v1/modules/{id}/predictions", h.Predictions)
	mux.HandleFunc("POST /api/v1/modules/{id}/pin", h.PinModule)
	mux.HandleFunc("POST /api/v1/modules/{id}/unpin", h.UnpinModule)

	mux.HandleFunc("GET /api/v1/memory", h.MemoryUsage)
	mux.HandleFunc("POST /api/v1/memory/cleanup", h.MemoryCleanup)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
