// Package generator produces query descriptors from natural-language
// questions via an LLM, constrained by the schema catalog. It is the
// fallback path for questions no template covers.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"adoptiq/internal/catalog"
	"adoptiq/internal/fault"
	"adoptiq/internal/llm"
	"adoptiq/internal/query"
)

// StatsFunc supplies live row counts per model. When present they are
// appended to the prompt so the model can judge result sizes.
type StatsFunc func(ctx context.Context) map[string]int

// Generator turns questions into validated query descriptors.
type Generator struct {
	provider llm.Provider
	catalog  *catalog.Catalog
	stats    StatsFunc
	maxRows  int
	log      *slog.Logger
}

// New builds a Generator. stats may be nil.
func New(provider llm.Provider, cat *catalog.Catalog, stats StatsFunc, maxRows int, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		provider: provider,
		catalog:  cat,
		stats:    stats,
		maxRows:  maxRows,
		log:      log,
	}
}

// Generate asks the provider for a descriptor and validates it against
// the catalog. Bad model output comes back as a generator fault so the
// pipeline can degrade to template suggestions; transport failures keep
// their network/timeout/rate-limit type.
func (g *Generator) Generate(ctx context.Context, question string) (query.Descriptor, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: g.systemPrompt(ctx)},
		{Role: llm.RoleUser, Content: question},
	}

	raw, err := g.provider.CompleteStructured(ctx, messages, descriptorSchema())
	if err != nil {
		// Transport-shaped failures keep their own type so the handler
		// picks the right fallback (or none, for network errors). The
		// raw transport detail stays out of the user-visible message.
		switch fault.Classify(err).Type {
		case fault.Network:
			return query.Descriptor{}, fault.Wrap(fault.Network, "llm provider unreachable", err)
		case fault.Timeout:
			return query.Descriptor{}, fault.Wrap(fault.Timeout, "llm completion timed out", err)
		case fault.RateLimit:
			return query.Descriptor{}, fault.Wrap(fault.RateLimit, "llm rate limited", err)
		}
		return query.Descriptor{}, fault.Wrap(fault.Generator, "llm completion failed", err)
	}

	d, err := parseDescriptor(raw)
	if err != nil {
		g.log.Warn("generator produced unparseable descriptor", "error", err, "raw", truncate(raw, 400))
		return query.Descriptor{}, fault.Wrap(fault.Generator, "llm produced an invalid query", err)
	}

	if !readOnly(d.Op) {
		return query.Descriptor{}, fault.New(fault.Generator,
			fmt.Sprintf("llm requested non-read operation %q", d.Op))
	}
	if err := g.catalog.Validate(d); err != nil {
		g.log.Warn("generated descriptor failed validation", "error", err, "descriptor", d.String())
		return query.Descriptor{}, fault.Wrap(fault.Generator, "llm query failed schema validation", err)
	}
	g.canonicalize(&d)

	if d.Args.Take <= 0 || d.Args.Take > g.maxRows {
		d.Args.Take = g.maxRows
	}

	g.log.Debug("descriptor generated", "provider", g.provider.Name(), "descriptor", d.String())
	return d, nil
}

// canonicalize rewrites model names to the catalog's casing so
// downstream maps (permissions, categories) match. Models differing
// only in case validate identically, so lookups here cannot fail.
func (g *Generator) canonicalize(d *query.Descriptor) {
	if m, err := g.catalog.Model(d.Model); err == nil {
		d.Model = m.Name
	}
	for i, name := range d.Args.Models {
		if m, err := g.catalog.Model(name); err == nil {
			d.Args.Models[i] = m.Name
		}
	}
}

func readOnly(op query.Op) bool {
	switch op {
	case query.FindMany, query.FindUnique, query.FindFirst, query.Count, query.Aggregate:
		return true
	}
	return false
}

// parseDescriptor tolerates markdown fences around the JSON body,
// which smaller models still emit despite structured output.
func parseDescriptor(raw string) (query.Descriptor, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		body = strings.TrimSpace(body)
	}

	var d query.Descriptor
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return query.Descriptor{}, fmt.Errorf("parse descriptor: %w", err)
	}
	if d.Op != query.Aggregate && d.Model == "" {
		return query.Descriptor{}, fmt.Errorf("descriptor missing model")
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
