// Package docs indexes the product documentation and answers "how do
// I" questions from it, so procedural questions never hit the
// database pipeline. Markdown, HTML, and PDF files are supported.
package docs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"adoptiq/internal/llm"
)

// Doc is one indexed document.
type Doc struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"-"`
}

// scored pairs a doc with its relevance to one query.
type scored struct {
	doc   *Doc
	score int
}

// Service holds the index. Load may be called again to refresh it.
type Service struct {
	mu   sync.RWMutex
	docs map[string]*Doc
	llm  llm.Provider
	log  *slog.Logger
}

// New builds an empty Service. The provider is optional; without one
// answers quote the matching documents directly.
func New(provider llm.Provider, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		docs: make(map[string]*Doc),
		llm:  provider,
		log:  log,
	}
}

// Load walks root and indexes every supported file. Unreadable files
// are logged and skipped so one bad PDF cannot block startup.
func (s *Service) Load(root string) error {
	docs := make(map[string]*Doc)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".html" && ext != ".htm" && ext != ".pdf" {
			return nil
		}

		content, err := extract(path, ext)
		if err != nil {
			s.log.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		docs[rel] = &Doc{
			ID:       rel,
			Title:    title(rel, content),
			Category: category(rel),
			Content:  content,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index documentation: %w", err)
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()

	s.log.Info("documentation indexed", "root", root, "documents", len(docs))
	return nil
}

// Count reports the number of indexed documents.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

var docCues = []string{
	"how do i", "how to", "how can i",
	"documentation", "docs",
	"guide", "tutorial",
	"setup", "set up", "install", "configure", "deploy",
	"what does", "what is a", "explain",
}

// IsQuestion reports whether a question asks about procedure rather
// than data. Matching is deliberately narrow; a data question routed
// to docs is worse than the reverse.
func IsQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, cue := range docCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

// Search ranks documents by keyword relevance. Title matches
// outweigh content matches; per-term content hits are capped so one
// repetitive page cannot dominate.
func (s *Service) Search(query string, max int) []Doc {
	if max <= 0 {
		max = 3
	}
	normalized := strings.ToLower(strings.TrimSpace(query))
	terms := queryTerms(normalized)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []scored
	for _, doc := range s.docs {
		lowerTitle := strings.ToLower(doc.Title)
		lowerContent := strings.ToLower(doc.Content)

		score := 0
		if strings.Contains(lowerTitle, normalized) {
			score += 50
		}
		for _, term := range terms {
			if strings.Contains(lowerTitle, term) {
				score += 10
			}
		}
		if strings.Contains(lowerContent, normalized) {
			score += 20
		}
		for _, term := range terms {
			n := strings.Count(lowerContent, term)
			if n > 5 {
				n = 5
			}
			score += n
		}

		if score > 0 {
			results = append(results, scored{doc, score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].doc.ID < results[j].doc.ID
	})
	if len(results) > max {
		results = results[:max]
	}

	out := make([]Doc, len(results))
	for i, r := range results {
		out[i] = *r.doc
	}
	return out
}

const contextCharLimit = 2000

// Answer responds to a documentation question. With a provider the
// matching pages become LLM context; without one the best excerpts
// are returned directly.
func (s *Service) Answer(ctx context.Context, question string) (string, []string, error) {
	matches := s.Search(question, 3)
	if len(matches) == 0 {
		return "I couldn't find anything in the documentation about that. " +
			"Try rephrasing, or ask a data question instead.", nil, nil
	}

	sources := make([]string, len(matches))
	var b strings.Builder
	for i, doc := range matches {
		sources[i] = doc.Title
		fmt.Fprintf(&b, "--- Document: %s (%s) ---\n", doc.Title, doc.ID)
		b.WriteString(clip(doc.Content, contextCharLimit))
		b.WriteString("\n\n")
	}

	if s.llm == nil {
		return excerptAnswer(matches), sources, nil
	}

	reply, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You answer questions about the adoption tracking platform " +
			"using only the documentation provided. Answer in markdown. If the documentation does " +
			"not cover the question, say so.\n\nRelevant documentation:\n\n" + b.String()},
		{Role: llm.RoleUser, Content: question},
	})
	if err != nil {
		s.log.Warn("documentation completion failed, serving excerpts", "error", err)
		return excerptAnswer(matches), sources, nil
	}
	return reply, sources, nil
}

func excerptAnswer(matches []Doc) string {
	var b strings.Builder
	b.WriteString("Here's what the documentation says:\n\n")
	for _, doc := range matches {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", doc.Title, clip(doc.Content, 500))
	}
	return strings.TrimSpace(b.String())
}

var headingPattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// title prefers the first markdown heading, then the filename.
func title(rel, content string) string {
	if m := headingPattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	base := filepath.Base(rel)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}

func category(rel string) string {
	rel = filepath.ToSlash(rel)
	switch {
	case strings.Contains(rel, "development/"):
		return "Development"
	case strings.Contains(rel, "deployment/"):
		return "Deployment"
	case strings.Contains(rel, "guides/"):
		return "Guides"
	case strings.Contains(rel, "releases/"):
		return "Releases"
	}
	return "General"
}

func queryTerms(q string) []string {
	var terms []string
	for _, t := range strings.Fields(q) {
		if len(t) > 2 {
			terms = append(terms, t)
		}
	}
	return terms
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[truncated]..."
}
