package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adoptiq/internal/agent"
	"adoptiq/internal/answer"
	"adoptiq/internal/audit"
	"adoptiq/internal/cache"
	"adoptiq/internal/catalog"
	"adoptiq/internal/executor"
	"adoptiq/internal/fault"
	"adoptiq/internal/format"
	"adoptiq/internal/metric"
	"adoptiq/internal/query"
	"adoptiq/internal/rbac"
	"adoptiq/internal/template"
)

type stubStore struct {
	rows []executor.Row
}

func (s *stubStore) FindMany(ctx context.Context, d query.Descriptor) ([]executor.Row, error) {
	return s.rows, nil
}

func (s *stubStore) FindFirst(ctx context.Context, d query.Descriptor) (executor.Row, error) {
	if len(s.rows) == 0 {
		return nil, nil
	}
	return s.rows[0], nil
}

func (s *stubStore) FindUnique(ctx context.Context, d query.Descriptor) (executor.Row, error) {
	return s.FindFirst(ctx, d)
}

func (s *stubStore) Count(ctx context.Context, d query.Descriptor) (int, error) {
	return len(s.rows), nil
}

type openPerms struct{}

func (openPerms) AccessibleResources(ctx context.Context, userID string, resource rbac.ResourceType) (rbac.Access, error) {
	return rbac.Access{All: true}, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	cat := catalog.New()
	matcher := template.NewMatcher(nil)
	faults := fault.NewHandler(1, time.Millisecond, nil)
	store := &stubStore{rows: []executor.Row{
		{"id": "p1", "name": "Cisco Duo"},
	}}
	auditor := audit.NewLogger(nil)
	t.Cleanup(func() { auditor.Close() })
	c := cache.New(cache.DefaultConfig(), nil)

	svc := agent.New(agent.Deps{
		Matcher:   matcher,
		Filter:    rbac.NewFilter(openPerms{}, nil),
		Executor:  executor.New(store, cat, 100, time.Second, nil),
		Formatter: format.New(format.DefaultOptions(), nil),
		Faults:    faults,
		Cache:     c,
		Audit:     auditor,
	})

	return Deps{
		Service: svc,
		Matcher: matcher,
		Cache:   c,
		Audit:   auditor,
		Faults:  faults,
		Metrics: metric.New(),
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAsk(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	body := `{"question":"Show me all products","userId":"u1","userRole":"ADMIN"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ai/ask", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp answer.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if !strings.Contains(resp.Answer, "Cisco Duo") {
		t.Errorf("answer missing result: %q", resp.Answer)
	}
	if resp.Metadata.TemplateUsed != "list_products" {
		t.Errorf("templateUsed = %q, want list_products", resp.Metadata.TemplateUsed)
	}
}

func TestAsk_InvalidBody(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ai/ask", strings.NewReader("{not json")))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestBearerAuth(t *testing.T) {
	deps := newTestDeps(t)
	deps.Token = "secret-token"
	h := NewHandler(deps)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ai/templates", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ai/templates", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, want %d", rr.Code, http.StatusOK)
	}

	// Health stays open.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health: status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestTemplates(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ai/templates", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var body struct {
		Templates []templateInfo `json:"templates"`
		Count     int            `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count == 0 || len(body.Templates) != body.Count {
		t.Fatalf("count = %d, templates = %d", body.Count, len(body.Templates))
	}
	if body.Templates[0].ID == "" || len(body.Templates[0].Examples) == 0 {
		t.Errorf("template view incomplete: %+v", body.Templates[0])
	}
}

func TestStats(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	// Answer one question so the stats have something to report.
	body := `{"question":"Show me all products","userId":"u1","userRole":"ADMIN"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ai/ask", strings.NewReader(body)))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ai/stats", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var stats map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	for _, key := range []string{"cache", "questions", "errors", "templateCount"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q section", key)
		}
	}
}

func TestAudit_BadLimit(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ai/audit?limit=nope", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRateLimit(t *testing.T) {
	deps := newTestDeps(t)
	deps.Limiter = NewLimiter(1, 1)
	h := NewHandler(deps)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ai/templates", nil)
	req.Header.Set("X-User-ID", "u1")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rr.Code, http.StatusOK)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// A different caller has its own budget.
	rr = httptest.NewRecorder()
	other := httptest.NewRequest(http.MethodGet, "/api/ai/templates", nil)
	other.Header.Set("X-User-ID", "u2")
	h.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("other caller: status = %d, want %d", rr.Code, http.StatusOK)
	}
}
