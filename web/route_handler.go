package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/internal/state"
	"github.com/RezaEskandarii/tablequeue/types"
)

// StatusSource is the read side of the job manager the status API reports on.
type StatusSource interface {
	List(ctx context.Context) ([]types.QueueInfo, error)
	Counts(ctx context.Context, name string) (map[state.JobStatus]int, error)
}

// HttpRouteHandler serves a read-only JSON view of the registered queues.
type HttpRouteHandler struct {
	source StatusSource
	logger *slog.Logger
}

func NewRouteHandler(source StatusSource, logger *slog.Logger) *HttpRouteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HttpRouteHandler{source: source, logger: logger}
}

// Register mounts the status routes on mux.
func (handler *HttpRouteHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/queues", handler.handleQueues)
	mux.HandleFunc("GET /api/queues/{name}/counts", handler.handleCounts)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (handler *HttpRouteHandler) handleQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := handler.source.List(r.Context())
	if errors.Is(err, custom_errors.ErrNoQueues) {
		queues, err = []types.QueueInfo{}, nil
	}
	if err != nil {
		handler.logger.Error("list queues failed", "err", err)
		http.Error(w, "Failed to list queues", http.StatusInternalServerError)
		return
	}
	handler.writeJSON(w, queues)
}

func (handler *HttpRouteHandler) handleCounts(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	counts, err := handler.source.Counts(r.Context(), name)
	if errors.Is(err, custom_errors.ErrQueueNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		handler.logger.Error("count jobs failed", "queue", name, "err", err)
		http.Error(w, "Failed to count jobs", http.StatusInternalServerError)
		return
	}

	data := make(map[string]int, len(state.AllStatuses))
	for _, status := range state.AllStatuses {
		data[status.String()] = counts[status]
	}
	handler.writeJSON(w, map[string]any{
		"queue":  name,
		"counts": data,
	})
}

func (handler *HttpRouteHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		handler.logger.Warn("encode response failed", "err", err)
	}
}
