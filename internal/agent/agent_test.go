package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adoptiq/internal/answer"
	"adoptiq/internal/audit"
	"adoptiq/internal/cache"
	"adoptiq/internal/catalog"
	"adoptiq/internal/docs"
	"adoptiq/internal/executor"
	"adoptiq/internal/fault"
	"adoptiq/internal/format"
	"adoptiq/internal/generator"
	"adoptiq/internal/llm"
	"adoptiq/internal/metric"
	"adoptiq/internal/query"
	"adoptiq/internal/rbac"
	"adoptiq/internal/template"
)

type fakeStore struct {
	rows []executor.Row
	err  error
}

func (s *fakeStore) FindMany(ctx context.Context, d query.Descriptor) ([]executor.Row, error) {
	return s.rows, s.err
}

func (s *fakeStore) FindFirst(ctx context.Context, d query.Descriptor) (executor.Row, error) {
	if len(s.rows) == 0 {
		return nil, s.err
	}
	return s.rows[0], s.err
}

func (s *fakeStore) FindUnique(ctx context.Context, d query.Descriptor) (executor.Row, error) {
	return s.FindFirst(ctx, d)
}

func (s *fakeStore) Count(ctx context.Context, d query.Descriptor) (int, error) {
	return len(s.rows), s.err
}

type fakePerms struct{}

func (fakePerms) AccessibleResources(ctx context.Context, userID string, resource rbac.ResourceType) (rbac.Access, error) {
	return rbac.Access{All: true}, nil
}

func productRows(n int) []executor.Row {
	rows := make([]executor.Row, n)
	for i := range rows {
		rows[i] = executor.Row{
			"id":   "prod-" + string(rune('a'+i)),
			"name": "Product " + string(rune('A'+i)),
		}
	}
	return rows
}

func newService(t *testing.T, store executor.Store, provider llm.Provider) *Service {
	t.Helper()
	cat := catalog.New()

	var gen *generator.Generator
	if provider != nil {
		gen = generator.New(provider, cat, nil, 100, nil)
	}

	svc := New(Deps{
		Matcher:   template.NewMatcher(nil),
		Generator: gen,
		Filter:    rbac.NewFilter(fakePerms{}, nil),
		Executor:  executor.New(store, cat, 100, time.Second, nil),
		Formatter: format.New(format.DefaultOptions(), nil),
		Faults:    fault.NewHandler(1, time.Millisecond, nil),
		Cache:     cache.New(cache.DefaultConfig(), nil),
		Audit:     audit.NewLogger(nil),
		Metrics:   metric.New(),
		Provider:  "mock",
	})
	t.Cleanup(func() { svc.deps.Audit.Close() })
	return svc
}

func ask(svc *Service, question, role string) answer.Response {
	return svc.ProcessQuestion(context.Background(), answer.Request{
		Question: question,
		UserID:   "user-1",
		UserRole: role,
	})
}

func TestProcessQuestionTemplate(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(2)}, &llm.Mock{})

	resp := ask(svc, "Show me all products", "ADMIN")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Metadata.TemplateUsed != "list_products" {
		t.Fatalf("TemplateUsed = %q, want list_products", resp.Metadata.TemplateUsed)
	}
	if !strings.Contains(resp.Answer, "Found 2 products") {
		t.Fatalf("answer missing result header: %q", resp.Answer)
	}
	if resp.Metadata.Cached {
		t.Fatal("first answer must not be marked cached")
	}
}

func TestProcessQuestionCacheHit(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(1)}, &llm.Mock{})

	first := ask(svc, "Show me all products", "ADMIN")
	if first.Metadata.Cached {
		t.Fatal("first answer marked cached")
	}
	second := ask(svc, "  show me ALL products ", "ADMIN")
	if !second.Metadata.Cached {
		t.Fatal("normalized repeat question should hit the cache")
	}
	if second.Answer != first.Answer {
		t.Fatal("cached answer differs from original")
	}
}

func TestProcessQuestionCacheIsPerRole(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(1)}, &llm.Mock{})

	ask(svc, "Show me all products", "ADMIN")
	resp := ask(svc, "Show me all products", "CSS")
	if resp.Metadata.Cached {
		t.Fatal("different role must not see the cached answer")
	}
}

func TestProcessQuestionValidation(t *testing.T) {
	svc := newService(t, &fakeStore{}, &llm.Mock{})

	cases := []struct {
		name string
		req  answer.Request
	}{
		{"empty question", answer.Request{UserID: "u", UserRole: "ADMIN"}},
		{"question too long", answer.Request{
			Question: strings.Repeat("x", maxQuestionLen+1), UserID: "u", UserRole: "ADMIN"}},
		{"missing user", answer.Request{Question: "show products", UserRole: "ADMIN"}},
		{"bad role", answer.Request{Question: "show products", UserID: "u", UserRole: "WIZARD"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := svc.ProcessQuestion(context.Background(), tc.req)
			if resp.Error == "" {
				t.Fatalf("expected an error response, got answer %q", resp.Answer)
			}
		})
	}
}

func TestProcessQuestionGeneratedFallback(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(1)}, &llm.Mock{})

	// No template pattern covers this phrasing, so the generator runs.
	resp := ask(svc, "frobnicate the quarterly product synergy", "ADMIN")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Metadata.TemplateUsed != "generated" {
		t.Fatalf("TemplateUsed = %q, want generated", resp.Metadata.TemplateUsed)
	}
}

func TestProcessQuestionProviderNetworkFailure(t *testing.T) {
	provider := &llm.Mock{Err: errors.New("dial tcp 10.0.0.1:443: connect: connection refused")}
	svc := newService(t, &fakeStore{}, provider)

	resp := ask(svc, "frobnicate the quarterly product synergy", "ADMIN")
	if resp.Error == "" {
		t.Fatal("network failure must populate the error field")
	}
	if !strings.Contains(resp.Answer, "Network connectivity issue") {
		t.Fatalf("expected the network message, got %q", resp.Answer)
	}
	if strings.Contains(resp.Answer, "Template Matching") {
		t.Fatalf("network failure must not serve the template-mode fallback: %q", resp.Answer)
	}
	if strings.Contains(resp.Answer+resp.Error, "10.0.0.1") {
		t.Fatal("transport detail leaked to the user")
	}
}

func TestProcessQuestionRecordsLLMMetrics(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(1)}, &llm.Mock{})

	ask(svc, "frobnicate the quarterly product synergy", "ADMIN")

	families, err := svc.deps.Metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var requests float64
	for _, f := range families {
		if f.GetName() == "adoptiq_llm_requests_total" {
			for _, m := range f.GetMetric() {
				requests += m.GetCounter().GetValue()
			}
		}
	}
	if requests == 0 {
		t.Fatal("generator call did not record an llm request")
	}
}

func TestProcessQuestionNoMatchWithoutGenerator(t *testing.T) {
	svc := newService(t, &fakeStore{}, nil)

	resp := ask(svc, "frobnicate the quarterly synergy", "ADMIN")
	if !strings.Contains(resp.Answer, "couldn't") {
		t.Fatalf("expected a no-match answer, got %q", resp.Answer)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("no-match answer should carry example suggestions")
	}
}

func TestProcessQuestionAccessDenied(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(1)}, &llm.Mock{})

	// SME has no customer entitlement.
	resp := ask(svc, "Show me all customers", "SME")
	if !strings.Contains(resp.Answer, "Access denied") {
		t.Fatalf("expected an access refusal, got %q", resp.Answer)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("refusal should suggest queries the role can run")
	}
}

func TestProcessQuestionStoreFailure(t *testing.T) {
	svc := newService(t, &fakeStore{err: errors.New("disk on fire")}, &llm.Mock{})

	resp := ask(svc, "Show me all products", "ADMIN")
	if resp.Answer == "" && resp.Error == "" {
		t.Fatal("failure must still produce a user-facing response")
	}
	if strings.Contains(resp.Answer+resp.Error, "disk on fire") {
		t.Fatal("internal error detail leaked to the user")
	}
}

func TestProcessQuestionErrorsNotCached(t *testing.T) {
	store := &fakeStore{err: errors.New("transient")}
	svc := newService(t, store, &llm.Mock{})

	ask(svc, "Show me all products", "ADMIN")
	store.err = nil
	store.rows = productRows(1)

	resp := ask(svc, "Show me all products", "ADMIN")
	if resp.Metadata.Cached {
		t.Fatal("failed answer must not be served from cache")
	}
	if resp.Error != "" {
		t.Fatalf("retry after recovery failed: %s", resp.Error)
	}
}

func TestProcessQuestionDocs(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "guides"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "# Importing Products\n\nUse the CSV importer under Settings."
	if err := os.WriteFile(filepath.Join(dir, "guides", "import.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds := docs.New(nil, nil)
	if err := ds.Load(dir); err != nil {
		t.Fatal(err)
	}

	svc := newService(t, &fakeStore{}, &llm.Mock{})
	svc.deps.Docs = ds

	resp := ask(svc, "How do I import products?", "ADMIN")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if !strings.Contains(resp.Answer, "CSV importer") {
		t.Fatalf("documentation content missing from answer: %q", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "Importing Products") {
		t.Fatalf("source attribution missing: %q", resp.Answer)
	}
}

func TestExecutionTimeRecorded(t *testing.T) {
	svc := newService(t, &fakeStore{rows: productRows(1)}, &llm.Mock{})

	resp := ask(svc, "Show me all products", "ADMIN")
	if resp.Metadata.ExecutionTime <= 0 {
		t.Fatal("execution time not recorded")
	}
}
