// Package agent orchestrates the question pipeline: validation,
// cache, documentation, template matching, generative fallback,
// permission filtering, execution, and formatting. Every dependency
// is injected so each stage can be replaced in tests.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adoptiq/internal/answer"
	"adoptiq/internal/audit"
	"adoptiq/internal/cache"
	"adoptiq/internal/docs"
	"adoptiq/internal/executor"
	"adoptiq/internal/fault"
	"adoptiq/internal/format"
	"adoptiq/internal/generator"
	"adoptiq/internal/metric"
	"adoptiq/internal/query"
	"adoptiq/internal/rbac"
	"adoptiq/internal/template"
)

// maxQuestionLen bounds a single question.
const maxQuestionLen = 1000

// Deps wires the pipeline together. Matcher, Filter, Executor,
// Formatter and Faults are required; the rest are optional and
// disable their stage when nil.
type Deps struct {
	Matcher   *template.Matcher
	Generator *generator.Generator
	Filter    *rbac.Filter
	Executor  *executor.Executor
	Formatter *format.Formatter
	Faults    *fault.Handler
	Cache     *cache.Cache
	Docs      *docs.Service
	Audit     *audit.Logger
	Metrics   *metric.Metrics
	Provider  string
	Log       *slog.Logger
}

// Service answers natural-language questions about the adoption data.
type Service struct {
	deps Deps
	log  *slog.Logger
}

// New builds a Service.
func New(deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Service{deps: deps, log: deps.Log}
}

// ProcessQuestion answers one question. It never returns an error:
// every failure becomes a user-safe Response.
func (s *Service) ProcessQuestion(ctx context.Context, req answer.Request) answer.Response {
	start := time.Now()
	question := strings.TrimSpace(req.Question)

	role, ferr := s.validate(question, req)
	if ferr != nil {
		return s.fail(req, ferr, "", start)
	}
	user := rbac.Context{UserID: req.UserID, Role: role}

	if s.deps.Cache != nil {
		if resp, ok := s.deps.Cache.Get(question, string(role)); ok {
			s.count(metric.PathCached, role)
			if s.deps.Metrics != nil {
				s.deps.Metrics.CacheHit()
			}
			s.record(req, role, resp, audit.Entry{Cached: true}, start)
			return resp
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.CacheMiss()
		}
	}

	if s.deps.Docs != nil && docs.IsQuestion(question) {
		return s.answerFromDocs(ctx, req, user, question, start)
	}

	desc, match, matched, ferr := s.buildDescriptor(ctx, question)
	if ferr != nil {
		return s.fail(req, ferr, "", start)
	}
	if !matched && s.deps.Generator == nil {
		resp := s.deps.Formatter.NoMatch(question, s.exampleQuestions())
		resp.Metadata.ExecutionTime = time.Since(start)
		s.count(metric.PathNoMatch, role)
		s.record(req, role, resp, audit.Entry{}, start)
		return resp
	}

	filtered, err := s.deps.Filter.Apply(ctx, user, desc)
	if err != nil {
		return s.denied(req, user, err, match, start)
	}

	result, err := s.deps.Executor.Execute(ctx, filtered)
	if err != nil {
		templateID := ""
		if match.Template != nil {
			templateID = match.Template.ID
		}
		return s.fail(req, err, templateID, start)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Query(filtered.Model, result.ExecutionTime)
	}

	var resp answer.Response
	if match.Template != nil {
		resp = s.deps.Formatter.Success(match, filtered, result)
	} else {
		resp = s.deps.Formatter.Generated(filtered, result)
	}
	resp.Metadata.ExecutionTime = time.Since(start)

	if s.deps.Cache != nil {
		s.deps.Cache.Set(question, req.UserID, string(role), resp)
	}

	path := metric.PathTemplate
	if match.Template == nil {
		path = metric.PathGenerated
	}
	s.count(path, role)
	s.record(req, role, resp, audit.Entry{
		TemplateUsed: resp.Metadata.TemplateUsed,
		LLMUsed:      match.Template == nil,
		LLMProvider:  s.llmProvider(match.Template == nil),
	}, start)
	return resp
}

// validate enforces the request contract before any work happens.
func (s *Service) validate(question string, req answer.Request) (rbac.Role, error) {
	if question == "" {
		return "", fault.New(fault.Validation, "question must not be empty")
	}
	if len(question) > maxQuestionLen {
		return "", fault.New(fault.Validation,
			fmt.Sprintf("question exceeds %d characters", maxQuestionLen))
	}
	if strings.TrimSpace(req.UserID) == "" {
		return "", fault.New(fault.Validation, "userId is required")
	}
	role, err := rbac.ParseRole(req.UserRole)
	if err != nil {
		return "", fault.Wrap(fault.Validation, "invalid user role", err)
	}
	return role, nil
}

// buildDescriptor tries the template matcher, then the generator.
func (s *Service) buildDescriptor(ctx context.Context, question string) (query.Descriptor, template.Match, bool, error) {
	if match, ok := s.deps.Matcher.Find(question); ok {
		desc := match.Template.Build(match.Params)
		s.log.Debug("template matched",
			"template", match.Template.ID, "confidence", match.Confidence)
		return desc, match, true, nil
	}

	if s.deps.Generator == nil {
		return query.Descriptor{}, template.Match{}, false, nil
	}

	start := time.Now()
	desc, err := s.deps.Generator.Generate(ctx, question)
	if s.deps.Metrics != nil {
		s.deps.Metrics.LLM(s.deps.Provider, err, time.Since(start))
	}
	if err != nil {
		return query.Descriptor{}, template.Match{}, false, err
	}
	return desc, template.Match{}, true, nil
}

func (s *Service) answerFromDocs(ctx context.Context, req answer.Request, user rbac.Context, question string, start time.Time) answer.Response {
	text, sources, err := s.deps.Docs.Answer(ctx, question)
	if err != nil {
		return s.fail(req, err, "", start)
	}

	resp := answer.Response{
		Answer:      text,
		Suggestions: s.exampleQuestions(),
		Metadata:    answer.Metadata{ExecutionTime: time.Since(start)},
	}
	if len(sources) > 0 {
		resp.Answer += "\n\n_Sources: " + strings.Join(sources, ", ") + "_"
	}

	if s.deps.Cache != nil {
		s.deps.Cache.Set(question, user.UserID, string(user.Role), resp)
	}
	s.count(metric.PathDocs, user.Role)
	s.record(req, user.Role, resp, audit.Entry{}, start)
	return resp
}

// denied renders an authorization refusal; other filter errors go
// through the normal failure path.
func (s *Service) denied(req answer.Request, user rbac.Context, err error, match template.Match, start time.Time) answer.Response {
	fe := fault.Classify(err)
	if fe.Type != fault.Authorization {
		templateID := ""
		if match.Template != nil {
			templateID = match.Template.ID
		}
		return s.fail(req, err, templateID, start)
	}

	category := ""
	if match.Template != nil {
		category = match.Template.Category
	}
	resp := s.deps.Formatter.AccessDenied(category, string(user.Role), rbac.Restrictions(user.Role))
	resp.Metadata.ExecutionTime = time.Since(start)

	s.count(metric.PathDenied, user.Role)
	s.record(req, user.Role, resp, audit.Entry{AccessDenied: true}, start)
	return resp
}

// fail converts any pipeline error to a response, preferring a
// degraded answer over a bare error when one exists.
func (s *Service) fail(req answer.Request, err error, templateID string, start time.Time) answer.Response {
	fe := fault.Classify(err)

	resp, ok := s.deps.Faults.Fallback(fe)
	if !ok {
		resp = s.deps.Faults.Response(fe)
	}
	resp.Metadata.ExecutionTime = time.Since(start)
	if templateID != "" {
		resp.Metadata.TemplateUsed = templateID
	}

	role, _ := rbac.ParseRole(req.UserRole)
	s.count(metric.PathError, role)
	s.record(req, role, resp, audit.Entry{
		TemplateUsed: templateID,
		HasError:     true,
		ErrorMessage: fe.Message,
	}, start)
	return resp
}

// exampleQuestions samples one example per template for suggestions.
func (s *Service) exampleQuestions() []string {
	var out []string
	for _, t := range s.deps.Matcher.Templates() {
		if len(t.Examples) == 0 {
			continue
		}
		out = append(out, t.Examples[0])
		if len(out) == 4 {
			break
		}
	}
	return out
}

func (s *Service) count(path string, role rbac.Role) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Question(path, string(role))
	}
}

func (s *Service) llmProvider(used bool) string {
	if !used {
		return ""
	}
	return s.deps.Provider
}

func (s *Service) record(req answer.Request, role rbac.Role, resp answer.Response, entry audit.Entry, start time.Time) {
	if s.deps.Audit == nil {
		return
	}
	entry.UserID = req.UserID
	entry.UserRole = string(role)
	entry.Question = req.Question
	entry.ConversationID = req.ConversationID
	entry.ExecutionTime = time.Since(start)
	entry.RowCount = resp.Metadata.RowCount
	if entry.TemplateUsed == "" {
		entry.TemplateUsed = resp.Metadata.TemplateUsed
	}
	if !entry.Cached {
		entry.Cached = resp.Metadata.Cached
	}
	s.deps.Audit.Record(entry)
}
