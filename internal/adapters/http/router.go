package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teamply/intent-resolver/internal/core/domain"
	"github.com/teamply/intent-resolver/internal/core/ports"
	"github.com/teamply/intent-resolver/internal/observability/metrics"
)

const serviceName = "intent-resolver"

type Router struct {
	resolver  ports.IntentResolver
	sessions  ports.SessionStore
	publisher ports.IntentEventPublisher
	metrics   *metrics.ServerMetrics
	logger    *slog.Logger
	limiter   *clientLimiter
}

type RouterOptions struct {
	// Publisher may be nil; resolved intents are then not broadcast.
	Publisher ports.IntentEventPublisher
	Metrics   *metrics.ServerMetrics
	Logger    *slog.Logger
	RateLimit RateLimitOptions
}

func NewRouter(resolver ports.IntentResolver, sessions ports.SessionStore, options RouterOptions) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		resolver:  resolver,
		sessions:  sessions,
		publisher: options.Publisher,
		metrics:   options.Metrics,
		logger:    logger,
		limiter:   newClientLimiter(options.RateLimit),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/intent/resolve", rt.resolveIntent)
	mux.HandleFunc("/v1/intent/stats", rt.sessionStats)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.limiter.middleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) resolveIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Message string `json:"message"`
		UserID  int64  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.UserID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	result, err := rt.resolver.Resolve(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.publishResolved(req.UserID, result)
	writeJSON(w, http.StatusOK, result)
}

// publishResolved broadcasts the result on the bus. Failures are logged
// and never affect the HTTP response.
func (rt *Router) publishResolved(userID int64, result *domain.IntentResult) {
	if rt.publisher == nil || result == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rt.publisher.PublishIntentResolved(ctx, userID, *result); err != nil {
		rt.logger.Warn("intent_event_publish_failed", "user_id", userID, "action", result.Action, "error", err)
	}
}

func (rt *Router) sessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.sessions.Stats(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
