// Package api exposes the question pipeline over HTTP and MCP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"adoptiq/internal/agent"
	"adoptiq/internal/answer"
	"adoptiq/internal/audit"
	"adoptiq/internal/cache"
	"adoptiq/internal/docs"
	"adoptiq/internal/fault"
	"adoptiq/internal/metric"
	"adoptiq/internal/template"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP surface reads from. Service is
// required; nil optional deps disable their endpoint section.
type Deps struct {
	Service *agent.Service
	Matcher *template.Matcher
	Cache   *cache.Cache
	Audit   *audit.Logger
	Faults  *fault.Handler
	Docs    *docs.Service
	Metrics *metric.Metrics
	Token   string
	Limiter *Limiter
	Log     *slog.Logger
}

// NewHandler returns the REST API router. When Token is set every
// endpoint except /health requires a bearer token.
func NewHandler(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware)
		}

		r.Post("/api/ai/ask", handleAsk(deps.Service, log))
		r.Get("/api/ai/templates", handleTemplates(deps.Matcher))
		r.Get("/api/ai/stats", handleStats(deps))
		r.Get("/api/ai/audit", handleAudit(deps.Audit))

		if deps.Metrics != nil {
			r.Handle("/metrics", deps.Metrics.Handler())
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAsk(svc *agent.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req answer.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		resp := svc.ProcessQuestion(r.Context(), req)
		log.Debug("question handled",
			"user", req.UserID,
			"template", resp.Metadata.TemplateUsed,
			"cached", resp.Metadata.Cached,
			"error", resp.Error != "")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// templateInfo is the public view of a template. Patterns stay
// internal; examples are what a UI surfaces.
type templateInfo struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Examples    []string `json:"examples"`
}

func handleTemplates(m *template.Matcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "templates unavailable")
			return
		}

		templates := m.Templates()
		out := make([]templateInfo, len(templates))
		for i, t := range templates {
			out[i] = templateInfo{
				ID:          t.ID,
				Description: t.Description,
				Category:    t.Category,
				Examples:    t.Examples,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"templates": out, "count": len(out)})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{}
		if deps.Cache != nil {
			stats["cache"] = deps.Cache.Stats()
		}
		if deps.Audit != nil {
			stats["questions"] = deps.Audit.Stats()
		}
		if deps.Faults != nil {
			stats["errors"] = deps.Faults.Stats()
		}
		if deps.Matcher != nil {
			stats["templateCount"] = len(deps.Matcher.Templates())
		}
		if deps.Docs != nil {
			stats["documentCount"] = deps.Docs.Count()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleAudit(logger *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger == nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "audit log unavailable")
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"entries": logger.Recent(limit)})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
