// Package template matches natural-language questions against a ranked
// set of pre-built query templates. Template hits skip the generator
// entirely, so they are both faster and safer than generated queries.
package template

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"adoptiq/internal/query"
)

// matchThreshold is the minimum confidence for a template hit. Matches
// below it fall through to the generator.
const matchThreshold = 0.5

// ParamType tells the extractor how to coerce a captured value.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "bool"
)

// Param declares one extractable parameter of a template.
type Param struct {
	Name     string
	Type     ParamType
	Extract  *regexp.Regexp
	Default  any
	Required bool
}

// Template pairs trigger patterns with a descriptor builder.
type Template struct {
	ID          string
	Description string
	Category    string
	Patterns    []*regexp.Regexp
	Params      []Param
	Build       func(params map[string]any) query.Descriptor
	Examples    []string
}

// Match is a template hit with its extracted parameters.
type Match struct {
	Template   *Template
	Params     map[string]any
	Confidence float64
}

// Matcher holds the ranked template set.
type Matcher struct {
	templates []*Template
	log       *slog.Logger
}

// NewMatcher builds a Matcher over the built-in template set.
func NewMatcher(log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{templates: buildTemplates(), log: log}
}

// Templates returns the full template set in rank order.
func (m *Matcher) Templates() []*Template {
	out := make([]*Template, len(m.templates))
	copy(out, m.templates)
	return out
}

// Template returns the template with the given ID.
func (m *Matcher) Template(id string) (*Template, bool) {
	for _, t := range m.templates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Find returns the best template match for the question, or false when
// no template clears the confidence threshold. Confidence is pattern
// coverage of the question plus small bonuses for explicit list/show
// phrasing; on equal confidence the earlier template wins.
func (m *Matcher) Find(question string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(question))

	var best Match
	for _, t := range m.templates {
		for _, pattern := range t.Patterns {
			loc := pattern.FindString(q)
			if loc == "" {
				continue
			}
			confidence := m.confidence(loc, q)
			if confidence > best.Confidence {
				best = Match{
					Template:   t,
					Params:     extractParams(t, q),
					Confidence: confidence,
				}
			}
		}
	}

	if best.Template == nil || best.Confidence < matchThreshold {
		m.log.Debug("no template match", "question", q, "best_confidence", best.Confidence)
		return Match{}, false
	}

	m.log.Debug("template matched",
		"template", best.Template.ID,
		"confidence", best.Confidence,
		"params", best.Params)
	return best, true
}

func (m *Matcher) confidence(matched, question string) float64 {
	if len(question) == 0 {
		return 0
	}
	coverage := float64(len(matched)) / float64(len(question))

	bonus := 0.0
	if strings.Contains(question, "show") || strings.Contains(question, "list") || strings.Contains(question, "find") {
		bonus += 0.1
	}
	if strings.Contains(question, "all") {
		bonus += 0.05
	}

	if coverage+bonus > 1.0 {
		return 1.0
	}
	return coverage + bonus
}

func extractParams(t *Template, question string) map[string]any {
	params := make(map[string]any)
	for _, p := range t.Params {
		if p.Extract != nil {
			if groups := p.Extract.FindStringSubmatch(question); groups != nil {
				if captured := firstGroup(groups); captured != "" {
					params[p.Name] = parseValue(strings.TrimSpace(captured), p.Type)
					continue
				}
			}
		}
		if p.Default != nil {
			params[p.Name] = p.Default
		}
	}
	return params
}

// firstGroup returns the first non-empty capture group. Extraction
// patterns use alternations, so only one branch's groups populate.
func firstGroup(groups []string) string {
	for _, g := range groups[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func parseValue(value string, typ ParamType) any {
	switch typ {
	case ParamNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value
		}
		return n
	case ParamBool:
		return value == "true" || value == "1"
	default:
		return value
	}
}

// str reads a string parameter, tolerating missing keys.
func str(params map[string]any, name string) string {
	v, _ := params[name].(string)
	return v
}

// num reads a numeric parameter, falling back when absent.
func num(params map[string]any, name string, fallback float64) float64 {
	if v, ok := params[name].(float64); ok {
		return v
	}
	return fallback
}
