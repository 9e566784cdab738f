package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"adoptiq/internal/llm"
)

// systemPrompt assembles the catalog rendering, the wire format
// documentation, worked examples, and current data volumes.
func (g *Generator) systemPrompt(ctx context.Context) string {
	var b strings.Builder

	b.WriteString(`You translate natural-language questions about product adoption into JSON query descriptors.

Respond with a single JSON object:
{"model": "<model name>", "operation": "<operation>", "args": {...}}

Operations: findMany, findUnique, findFirst, count, aggregate.
The aggregate operation counts several models at once and uses {"args": {"models": ["product", ...]}} with no model field.

args may contain:
- "where": a condition object
- "orderBy": [{"field": "<field>", "desc": true|false}]
- "take": maximum number of rows
- "include": related models to load, e.g. ["product"]

Condition objects use exactly these forms:
- {"op": "eq|ne|lt|lte|gt|gte", "field": "<field>", "value": <value>}
- {"op": "contains", "field": "<field>", "value": "<substring>"}  (case-insensitive)
- {"op": "in", "field": "<field>", "values": [<values>]}
- {"op": "isNull", "field": "<field>"} / {"op": "notNull", "field": "<field>"}
- {"op": "and", "conds": [...]} / {"op": "or", "conds": [...]} / {"op": "not", "cond": {...}}
- {"op": "some", "relation": "<relation>", "cond": {...}}  (at least one related row matches)
- {"op": "none", "relation": "<relation>", "cond": {...}}  (no related row matches)

Rules:
- Queries are strictly read-only. Never produce create, update or delete operations.
- Models with a deletedAt field are soft-deleted; always add {"op": "isNull", "field": "deletedAt"} for them.
- Use only models, fields and relations from the data model below.
- Prefer "contains" over "eq" when matching names the user typed.

`)

	b.WriteString(g.catalog.Prompt())

	b.WriteString(`
### Examples

Question: tasks for Cisco Duo with weight under 20
{"model":"task","operation":"findMany","args":{"where":{"op":"and","conds":[{"op":"isNull","field":"deletedAt"},{"op":"some","relation":"product","cond":{"op":"contains","field":"name","value":"cisco duo"}},{"op":"lt","field":"weight","value":20}]},"orderBy":[{"field":"weight","desc":true}],"include":["product"]}}

Question: how many customers are there
{"model":"customer","operation":"count","args":{"where":{"op":"isNull","field":"deletedAt"}}}

Question: adoption plans that are fully complete
{"model":"adoptionPlan","operation":"findMany","args":{"where":{"op":"gte","field":"progressPercentage","value":100},"include":["customerProduct"]}}

Question: products with no tasks at all
{"model":"product","operation":"findMany","args":{"where":{"op":"and","conds":[{"op":"isNull","field":"deletedAt"},{"op":"none","relation":"tasks","cond":{"op":"notNull","field":"id"}}]}}}
`)

	if g.stats != nil {
		if counts := g.stats(ctx); len(counts) > 0 {
			b.WriteString("\n### Current Data Volumes\n\n")
			models := make([]string, 0, len(counts))
			for m := range counts {
				models = append(models, m)
			}
			sort.Strings(models)
			for _, m := range models {
				fmt.Fprintf(&b, "- %s: %d rows\n", m, counts[m])
			}
		}
	}

	fmt.Fprintf(&b, "\nResults are truncated beyond %d rows; set take accordingly.\n", g.maxRows)
	return b.String()
}

// descriptorSchema loosely constrains the completion shape. The parser
// and catalog validation enforce the strict rules; the schema only
// keeps the model on the JSON rails.
func descriptorSchema() *llm.Schema {
	return &llm.Schema{
		Type: "object",
		Properties: map[string]llm.Property{
			"model":     {Type: "string", Description: "target model name, omitted for aggregate"},
			"operation": {Type: "string", Enum: []string{"findMany", "findUnique", "findFirst", "count", "aggregate"}},
			"args":      {Type: "object", Description: "where, orderBy, take, include, models"},
		},
		Required: []string{"operation", "args"},
	}
}
