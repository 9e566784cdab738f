// Package format renders execution results as markdown answers. It
// sanitizes raw rows before they leave the service, builds preview
// lists and tables, and proposes follow-up questions.
package format

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"adoptiq/internal/answer"
	"adoptiq/internal/executor"
	"adoptiq/internal/query"
	"adoptiq/internal/template"
)

// Options controls how much detail a Formatter emits.
type Options struct {
	MaxPreviewItems int
	IncludeData     bool
	IncludeQuery    bool
	TableColumns    int
}

// DefaultOptions matches the detail level of the web UI.
func DefaultOptions() Options {
	return Options{
		MaxPreviewItems: 5,
		IncludeData:     true,
		IncludeQuery:    true,
		TableColumns:    8,
	}
}

type categoryInfo struct {
	singular  string
	plural    string
	keyFields []string
}

var categories = map[string]categoryInfo{
	"products":  {"product", "products", []string{"name", "description", "tasks"}},
	"solutions": {"solution", "solutions", []string{"name", "description", "products"}},
	"customers": {"customer", "customers", []string{"name", "description", "adoptionPlan"}},
	"tasks":     {"task", "tasks", []string{"name", "description", "weight", "estMinutes"}},
	"telemetry": {"telemetry attribute", "telemetry attributes", []string{"name", "successCriteria"}},
	"adoption":  {"adoption plan", "adoption plans", []string{"name", "progressPercentage"}},
	"analytics": {"metric", "metrics", []string{"count", "total", "average"}},
}

// modelCategories maps descriptor models onto display categories for
// results produced without a template.
var modelCategories = map[string]string{
	"product":            "products",
	"solution":           "solutions",
	"customer":           "customers",
	"customerProduct":    "customers",
	"task":               "tasks",
	"customerTask":       "tasks",
	"telemetryAttribute": "telemetry",
	"adoptionPlan":       "adoption",
	"license":            "products",
	"outcome":            "products",
	"release":            "products",
}

// Formatter renders answers. Safe for concurrent use.
type Formatter struct {
	opts Options
	log  *slog.Logger
}

// New builds a Formatter.
func New(opts Options, log *slog.Logger) *Formatter {
	if opts.MaxPreviewItems <= 0 {
		opts.MaxPreviewItems = 5
	}
	if opts.TableColumns <= 0 {
		opts.TableColumns = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Formatter{opts: opts, log: log}
}

// Success renders a template-matched result.
func (f *Formatter) Success(m template.Match, d query.Descriptor, res executor.Result) answer.Response {
	category := m.Template.Category
	confidence := int(m.Confidence*100 + 0.5)

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", m.Template.Description)
	fmt.Fprintf(&b, "Query executed in %dms (%d%% match)\n\n", res.ExecutionTime.Milliseconds(), confidence)
	b.WriteString(f.body(res, category))
	b.WriteString(f.footer(res))

	return answer.Response{
		Answer:      b.String(),
		Data:        f.includedData(res.Data, category),
		Query:       f.includedQuery(d),
		Suggestions: f.Suggestions(category, res.RowCount),
		Metadata: answer.Metadata{
			ExecutionTime: res.ExecutionTime,
			RowCount:      res.RowCount,
			Truncated:     res.Truncated,
			TemplateUsed:  m.Template.ID,
		},
	}
}

// Generated renders a result produced by the generative path.
func (f *Formatter) Generated(d query.Descriptor, res executor.Result) answer.Response {
	category := modelCategories[d.Model]
	if d.Op == query.Aggregate {
		category = "analytics"
	}
	if category == "" {
		category = "products"
	}

	var b strings.Builder
	b.WriteString("**Here's what I found**\n\n")
	fmt.Fprintf(&b, "Query executed in %dms\n\n", res.ExecutionTime.Milliseconds())
	b.WriteString(f.body(res, category))
	b.WriteString(f.footer(res))

	return answer.Response{
		Answer:      b.String(),
		Data:        f.includedData(res.Data, category),
		Query:       f.includedQuery(d),
		Suggestions: f.Suggestions(category, res.RowCount),
		Metadata: answer.Metadata{
			ExecutionTime: res.ExecutionTime,
			RowCount:      res.RowCount,
			Truncated:     res.Truncated,
			TemplateUsed:  "generated",
		},
	}
}

// NoMatch renders the response for a question nothing could answer.
func (f *Formatter) NoMatch(question string, suggestions []string) answer.Response {
	var b strings.Builder
	b.WriteString("I couldn't find an exact match for your question:\n")
	fmt.Fprintf(&b, "> %q\n\n", question)
	b.WriteString("**Current capabilities:**\n")
	b.WriteString("I can answer questions about:\n")
	b.WriteString("- Products and their telemetry\n")
	b.WriteString("- Customers and adoption progress\n")
	b.WriteString("- Tasks and their attributes\n")
	b.WriteString("- Counts and summaries\n\n")
	b.WriteString("Try one of the suggestions below, or rephrase your question.")

	return answer.Response{Answer: b.String(), Suggestions: suggestions}
}

// AccessDenied renders a permission refusal without leaking data shape.
func (f *Formatter) AccessDenied(category, role, restrictions string) answer.Response {
	var b strings.Builder
	b.WriteString("**Access denied**\n\n")
	b.WriteString("You do not have permission to access this data.\n\n")
	fmt.Fprintf(&b, "Your role (**%s**): %s", role, restrictions)

	return answer.Response{
		Answer:      b.String(),
		Suggestions: accessDeniedSuggestions(role),
	}
}

// Summary renders entity counts as a markdown list. A count of -1
// means that entity could not be counted.
func (f *Formatter) Summary(stats map[string]int) string {
	var b strings.Builder
	b.WriteString("**Data summary**\n\n")
	for _, key := range sortedKeys(stats) {
		if stats[key] < 0 {
			fmt.Fprintf(&b, "- %s: unavailable\n", titleCase(key))
			continue
		}
		fmt.Fprintf(&b, "- %s: **%d**\n", titleCase(key), stats[key])
	}
	return b.String()
}

func (f *Formatter) includedData(data any, category string) any {
	if !f.opts.IncludeData {
		return nil
	}
	return Sanitize(data, category)
}

func (f *Formatter) includedQuery(d query.Descriptor) string {
	if !f.opts.IncludeQuery {
		return ""
	}
	return d.String()
}

func (f *Formatter) body(res executor.Result, category string) string {
	info, ok := categories[category]
	if !ok {
		info = categories["products"]
	}

	switch data := res.Data.(type) {
	case []executor.Row:
		return f.list(data, res, info, category)
	case executor.Row:
		return "**Result:**\n" + f.item(data, info, category)
	case map[string]int:
		return f.counts(data)
	case int:
		return fmt.Sprintf("**Count:** %d\n", data)
	case int64:
		return fmt.Sprintf("**Count:** %d\n", data)
	case nil:
		return "**No results found.**\n"
	default:
		return fmt.Sprintf("**Result:** %v\n", data)
	}
}

func (f *Formatter) list(rows []executor.Row, res executor.Result, info categoryInfo, category string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("**No %s found.**\n\nNo %s match your criteria.\n", info.plural, info.plural)
	}

	noun := info.plural
	if res.RowCount == 1 {
		noun = info.singular
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Found %d %s**", res.RowCount, noun)
	if res.Truncated {
		fmt.Fprintf(&b, " (showing first %d)", len(rows))
	}
	b.WriteString("\n\n")

	preview := len(rows)
	if preview > f.opts.MaxPreviewItems {
		preview = f.opts.MaxPreviewItems
	}
	for _, row := range rows[:preview] {
		b.WriteString(f.item(row, info, category))
	}
	if len(rows) > preview {
		fmt.Fprintf(&b, "\n_...and %d more. See the full table below for complete data._\n", len(rows)-preview)
		b.WriteString(f.table(rows, category))
	}
	return b.String()
}

// item renders one row as a bullet with its category's key fields.
func (f *Formatter) item(row executor.Row, info categoryInfo, category string) string {
	name := displayName(row)
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(navLink(category, row, name))
	if desc, ok := row["description"].(string); ok && desc != "" {
		fmt.Fprintf(&b, " - %s", clip(desc, 50))
	}
	b.WriteString("\n")

	for _, field := range info.keyFields {
		if field == "name" || field == "description" {
			continue
		}
		value, ok := row[field]
		if !ok || value == nil {
			continue
		}

		if field == "adoptionPlan" {
			if plan, ok := value.(executor.Row); ok {
				if pct, ok := number(plan["progressPercentage"]); ok {
					fmt.Fprintf(&b, "  - Progress: %.0f%% %s\n", pct, progressBar(pct))
				}
			}
			continue
		}
		if nested, ok := value.([]executor.Row); ok {
			if len(nested) > 0 {
				fmt.Fprintf(&b, "  - %s: %s\n", titleCase(field), nestedNames(nested))
			}
			continue
		}
		switch value.(type) {
		case executor.Row, []any:
			continue
		}
		fmt.Fprintf(&b, "  - %s: %v\n", titleCase(field), value)
	}
	return b.String()
}

func (f *Formatter) counts(counts map[string]int) string {
	var b strings.Builder
	b.WriteString("**Results:**\n")
	for _, key := range sortedKeys(counts) {
		if counts[key] < 0 {
			fmt.Fprintf(&b, "- %s: unavailable\n", titleCase(key))
			continue
		}
		fmt.Fprintf(&b, "- %s: **%d**\n", titleCase(key), counts[key])
	}
	return b.String()
}

// tablePriority orders columns most useful first.
var tablePriority = []string{
	"name", "title", "description",
	"weight", "estMinutes",
	"status", "level",
	"howToDoc", "howToVideo",
	"product",
}

func (f *Formatter) table(rows []executor.Row, category string) string {
	if len(rows) == 0 {
		return ""
	}

	columns := tableColumns(rows[0], f.opts.TableColumns)
	if len(columns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n| ")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(titleCase(col))
	}
	b.WriteString(" |\n|")
	b.WriteString(strings.Repeat(" --- |", len(columns)))
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString("| ")
		for i, col := range columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(cell(row, col, category, col == columns[0] && isNameColumn(col)))
		}
		b.WriteString(" |\n")
	}
	b.WriteString("\n")
	return b.String()
}

func tableColumns(row executor.Row, max int) []string {
	var columns []string
	for key := range row {
		if hiddenColumn(key) {
			continue
		}
		columns = append(columns, key)
	}

	rank := func(col string) int {
		lower := strings.ToLower(col)
		for i, p := range tablePriority {
			if strings.ToLower(p) == lower {
				return i
			}
		}
		return len(tablePriority)
	}
	sort.SliceStable(columns, func(i, j int) bool {
		ri, rj := rank(columns[i]), rank(columns[j])
		if ri != rj {
			return ri < rj
		}
		return columns[i] < columns[j]
	})

	// name and title both present means title is redundant.
	if contains(columns, "name") && contains(columns, "title") {
		columns = remove(columns, "title")
	}
	if len(columns) > max {
		columns = columns[:max]
	}
	return columns
}

func cell(row executor.Row, col, category string, link bool) string {
	value := row[col]

	if link {
		if name, ok := value.(string); ok && name != "" {
			return navLink(category, row, name)
		}
	}
	lower := strings.ToLower(col)
	if lower == "howtodoc" || lower == "howtovideo" {
		urls, _ := value.([]any)
		parts := make([]string, 0, len(urls))
		for i, u := range urls {
			parts = append(parts, fmt.Sprintf("[Link %d](%v)", i+1, u))
		}
		return strings.Join(parts, ", ")
	}
	if value == nil {
		return "-"
	}

	switch v := value.(type) {
	case []executor.Row:
		return fmt.Sprintf("%d items", len(v))
	case []any:
		return fmt.Sprintf("%d items", len(v))
	case executor.Row:
		return "[object]"
	}

	s := fmt.Sprintf("%v", value)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return clip(s, 50)
}

func (f *Formatter) footer(res executor.Result) string {
	if !res.Truncated {
		return ""
	}
	return fmt.Sprintf("\n_Results truncated at %d rows. Narrow your question to see the rest._\n", res.RowCount)
}

// navLink wraps a display name in a navigation marker the UI resolves
// to a detail page. Rows without an id render as plain bold text.
func navLink(category string, row executor.Row, name string) string {
	id, _ := row["id"].(string)
	typ := linkType(category, row)
	if id == "" || typ == "" {
		return "**" + name + "**"
	}
	return fmt.Sprintf("[%s](nav:%s:%s)", name, typ, id)
}

// linkType picks the navigation target. The query category wins; a
// nested row falls back to shape hints.
func linkType(category string, row executor.Row) string {
	switch category {
	case "products", "customers", "tasks", "solutions":
		return category
	}
	if _, ok := row["estMinutes"]; ok {
		return "tasks"
	}
	if _, ok := row["weight"]; ok {
		return "tasks"
	}
	if _, ok := row["adoptionPlan"]; ok {
		return "customers"
	}
	if _, ok := row["product"]; ok {
		return "products"
	}
	return ""
}

func displayName(row executor.Row) string {
	for _, key := range []string{"name", "title", "id"} {
		if v, ok := row[key].(string); ok && v != "" {
			return v
		}
	}
	return "Unknown"
}

func nestedNames(rows []executor.Row) string {
	names := make([]string, 0, 3)
	for _, r := range rows {
		if len(names) == 3 {
			return strings.Join(names, ", ") + "..."
		}
		names = append(names, displayName(r))
	}
	return strings.Join(names, ", ")
}

func progressBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct/10 + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// titleCase renders a camelCase field name for display.
func titleCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(toUpper(r))
		case r >= 'A' && r <= 'Z':
			b.WriteRune(' ')
			b.WriteRune(r)
		case r == '_':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

func remove(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

func isNameColumn(col string) bool {
	lower := strings.ToLower(col)
	return lower == "name" || lower == "title"
}

func accessDeniedSuggestions(role string) []string {
	suggestions := []string{"What can I access with my role?"}
	switch role {
	case "CSS", "CS":
		suggestions = append(suggestions,
			"Show me my customers",
			"List customers with low adoption")
	case "SME":
		suggestions = append(suggestions,
			"Show me all products",
			"List solutions")
	default:
		suggestions = append(suggestions, "Show me available data")
	}
	return suggestions
}
