// Package httpapi exposes the log hub and command history over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// keepAliveInterval spaces SSE comment frames on idle streams.
const keepAliveInterval = 15 * time.Second

// LogFeed is the subset of the log hub the API serves.
type LogFeed interface {
	FetchRecent(ctx context.Context, level domain.LogLevel, limit int) ([]domain.LogRecord, error)
	Subscribe(level domain.LogLevel) (<-chan domain.LogRecord, func())
}

// Options configures the handler.
type Options struct {
	Logs      LogFeed
	History   ports.HistoryStore
	Logger    ports.Logger
	RateLimit float64
	Burst     int
}

// Handler provides the HTTP API.
type Handler struct {
	logs    LogFeed
	history ports.HistoryStore
	logger  ports.Logger
	limiter *clientLimiter
	router  chi.Router
}

type historyResponse struct {
	Items    []domain.HistoryRecord `json:"items"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates the HTTP API handler.
func New(opts Options) *Handler {
	rps, burst := opts.RateLimit, opts.Burst
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	h := &Handler{
		logs:    opts.Logs,
		history: opts.History,
		logger:  opts.Logger,
		limiter: newClientLimiter(rps, burst),
	}
	h.router = h.buildRouter()
	return h
}

// Router returns the HTTP router.
func (h *Handler) Router() chi.Router {
	return h.router
}

func (h *Handler) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.limiter.Middleware)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/logs", h.handleRecentLogs)
			r.Get("/history", h.handleListHistory)
			r.Delete("/history/{id}", h.handleDeleteHistory)
		})
		r.Get("/logs/stream", h.handleLogStream)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return r
}

func (h *Handler) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "log hub unavailable")
		return
	}
	level := domain.ParseLogLevel(r.URL.Query().Get("level"))
	limit := atoiDefault(r.URL.Query().Get("limit"), domain.DefaultBackfillLimit)
	if limit > domain.LogBufferCapacity {
		limit = domain.LogBufferCapacity
	}
	records, err := h.logs.FetchRecent(r.Context(), level, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.LogRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleLogStream(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "log hub unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	level := domain.ParseLogLevel(r.URL.Query().Get("level"))
	records, cancel := h.logs.Subscribe(level)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case rec, ok := <-records:
			if !ok {
				return
			}
			writeSSE(w, rec)
			flusher.Flush()
		}
	}
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.HistoryQuery{
		Page:     atoiDefault(q.Get("page"), 1),
		PageSize: atoiDefault(q.Get("pageSize"), domain.DefaultHistoryPageSize),
		Search:   q.Get("search"),
	}.Normalize()

	page, err := h.history.Query(r.Context(), query)
	if err != nil {
		h.logger.Error("history query failed", err, nil)
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if page.Items == nil {
		page.Items = []domain.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Items:    page.Items,
		Total:    page.Total,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.history.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("history delete failed", err, map[string]interface{}{"id": id})
		writeError(w, http.StatusInternalServerError, "failed to delete history record")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "history record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
			"request":  middleware.GetReqID(r.Context()),
		})
	})
}

func atoiDefault(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeSSE(w http.ResponseWriter, rec domain.LogRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
}
