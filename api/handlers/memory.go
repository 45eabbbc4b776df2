package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shreyasgurav/UniMemory/ingest"
	"github.com/shreyasgurav/UniMemory/search"
	"github.com/shreyasgurav/UniMemory/types"
)

// Engine is the slice of the memory engine the API dispatches to.
type Engine interface {
	Remember(ctx context.Context, scope types.Scope, content string) (*ingest.Result, error)
	RememberBatch(ctx context.Context, scope types.Scope, contents []string) ([]*ingest.Result, error)
	Recall(ctx context.Context, scope types.Scope, query string, opts search.Options) (*search.Response, error)
	Forget(ctx context.Context, scope types.Scope, id string) error
	Get(ctx context.Context, scope types.Scope, ids ...string) ([]*types.Memory, error)
}

// MemoryHandler serves the memory ingestion, retrieval and deletion routes.
type MemoryHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewMemoryHandler creates the handler.
func NewMemoryHandler(engine Engine, logger *zap.Logger) *MemoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "memory_handler")),
	}
}

type addMemoryRequest struct {
	OwnerID  string   `json:"owner_id"`
	UserID   string   `json:"user_id"`
	Content  string   `json:"content"`
	Contents []string `json:"contents,omitempty"`
}

// HandleAdd ingests one input (content) or several (contents).
//
//	POST /api/v1/memories
func (h *MemoryHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, types.NewError(types.ErrInvalidInput, "method not allowed"), nil)
		return
	}

	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, types.NewError(types.ErrInvalidInput, "invalid request body").WithCause(err), h.logger)
		return
	}
	scope := types.Scope{OwnerID: req.OwnerID, UserID: req.UserID}

	if len(req.Contents) > 0 {
		results, err := h.engine.RememberBatch(r.Context(), scope, req.Contents)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, results)
		return
	}

	result, err := h.engine.Remember(r.Context(), scope, req.Content)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleSearch ranks memories against a query.
//
//	GET /api/v1/memories/search?owner_id=&user_id=&q=&limit=&sector=&min_salience=&debug=
func (h *MemoryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, types.NewError(types.ErrInvalidInput, "method not allowed"), nil)
		return
	}

	q := r.URL.Query()
	scope := types.Scope{OwnerID: q.Get("owner_id"), UserID: q.Get("user_id")}

	opts := search.Options{
		Sector: types.Sector(q.Get("sector")),
		Debug:  q.Get("debug") == "true",
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, types.NewError(types.ErrInvalidInput, "invalid limit"), nil)
			return
		}
		opts.Limit = limit
	}
	if v := q.Get("min_salience"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			WriteError(w, types.NewError(types.ErrInvalidInput, "invalid min_salience"), nil)
			return
		}
		opts.MinSalience = min
	}

	resp, err := h.engine.Recall(r.Context(), scope, q.Get("q"), opts)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resp)
}

// HandleMemory fetches or deletes one memory by ID.
//
//	GET    /api/v1/memories/{id}?owner_id=&user_id=
//	DELETE /api/v1/memories/{id}?owner_id=&user_id=
func (h *MemoryHandler) HandleMemory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/memories/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, types.NewError(types.ErrNotFound, "memory not found"), nil)
		return
	}

	q := r.URL.Query()
	scope := types.Scope{OwnerID: q.Get("owner_id"), UserID: q.Get("user_id")}

	switch r.Method {
	case http.MethodGet:
		memories, err := h.engine.Get(r.Context(), scope, id)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		if len(memories) == 0 {
			WriteError(w, types.NewError(types.ErrNotFound, "memory not found: "+id), nil)
			return
		}
		WriteSuccess(w, memories[0])

	case http.MethodDelete:
		if err := h.engine.Forget(r.Context(), scope, id); err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})

	default:
		WriteError(w, types.NewError(types.ErrInvalidInput, "method not allowed"), nil)
	}
}
