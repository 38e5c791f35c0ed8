// Package demo serves the demo application backend: a health check for the
// load balancer and a JSON endpoint that forwards a prompt to a model.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/appfleet/internal/shell/llm"
)

// maxBodyBytes bounds invoke request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides the demo backend's HTTP handlers.
type Handler struct {
	app      string
	basePath string
	invoker  llm.Invoker
	metrics  *Metrics
	logger   *slog.Logger

	// invokeTimeout bounds each model call. Zero means no bound.
	invokeTimeout time.Duration
}

// NewHandler creates a handler serving app under basePath ("/chat-app").
// An empty basePath serves from the root.
func NewHandler(app, basePath string, invoker llm.Invoker, metrics *Metrics, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(app)
	}
	return &Handler{
		app:      app,
		basePath: normalizeBasePath(basePath),
		invoker:  invoker,
		metrics:  metrics,
		logger:   l.With("component", "demo", "app", app),
	}
}

// WithInvokeTimeout bounds each model call to d and returns h.
func (h *Handler) WithInvokeTimeout(d time.Duration) *Handler {
	h.invokeTimeout = d
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)

	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	app := func(r chi.Router) {
		r.Get("/", h.handleHealth)
		r.Post("/api/invoke", h.handleInvoke)
	}
	if h.basePath == "" {
		app(r)
	} else {
		r.Route(h.basePath, app)
	}

	return r
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Handlers
// =============================================================================

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
}

// InvokeRequest is the body of an invoke call.
type InvokeRequest struct {
	Prompt string `json:"prompt"`
}

// InvokeResponse carries the completion text and the model's raw JSON.
type InvokeResponse struct {
	Model      string          `json:"model"`
	Completion string          `json:"completion"`
	Response   json.RawMessage `json:"response"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", App: h.app})
}

func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req InvokeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.metrics.observe(OutcomeInvalid, 0)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	if h.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.invokeTimeout)
		defer cancel()
	}

	resp, err := h.invoker.Invoke(ctx, req.Prompt)
	if err != nil {
		status, outcome := invokeErrorStatus(err)
		h.metrics.observe(outcome, time.Since(start).Seconds())
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			h.logger.Error("model invocation failed", "error", err,
				"request_id", middleware.GetReqID(r.Context()))
		}
		writeError(w, status, err.Error())
		return
	}

	h.metrics.observe(OutcomeSuccess, time.Since(start).Seconds())
	h.logger.Info("model invoked", "model", resp.Model, "duration", time.Since(start))

	writeJSON(w, http.StatusOK, InvokeResponse{
		Model:      resp.Model,
		Completion: resp.Completion,
		Response:   resp.Raw,
	})
}

// invokeErrorStatus maps an invoker error to an HTTP status and metric outcome.
func invokeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrEmptyPrompt):
		return http.StatusBadRequest, OutcomeInvalid
	case errors.Is(err, llm.ErrThrottled):
		return http.StatusTooManyRequests, OutcomeThrottled
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, OutcomeError
	default:
		return http.StatusBadGateway, OutcomeError
	}
}

// =============================================================================
// Helpers
// =============================================================================

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"errors": []map[string]any{
			{
				"status": fmt.Sprintf("%d", status),
				"title":  http.StatusText(status),
				"detail": message,
			},
		},
	})
}
