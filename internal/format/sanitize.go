package format

import (
	"strings"

	"adoptiq/internal/executor"
)

// hiddenFields never leave the service. Foreign keys are covered by
// the *Id suffix rule in hiddenKey; these are named exclusions.
var hiddenFields = map[string]bool{
	"completedat":         true,
	"completedreason":     true,
	"softdeletequeued":    true,
	"rawtelemetrymapping": true,
	"deletedat":           true,
}

// hiddenColumns additionally drops audit noise from tables. The bare
// id still exists on the row for navigation but is not a column.
var hiddenColumns = map[string]bool{
	"id":          true,
	"customattrs": true,
	"createdat":   true,
	"updatedat":   true,
}

// hiddenKey reports whether a field is stripped from outgoing data.
// Foreign keys like productId are dropped; the bare id is kept so the
// UI can navigate to the record.
func hiddenKey(key string) bool {
	lower := strings.ToLower(key)
	if lower != "id" && strings.HasSuffix(lower, "id") {
		return true
	}
	return hiddenFields[lower]
}

func hiddenColumn(key string) bool {
	lower := strings.ToLower(key)
	return hiddenKey(key) || hiddenColumns[lower]
}

// Sanitize strips internal fields from result data and tags each
// addressable record with its navigation type. It never mutates the
// input.
func Sanitize(data any, category string) any {
	switch v := data.(type) {
	case nil:
		return nil
	case []executor.Row:
		out := make([]any, len(v))
		for i, row := range v {
			out[i] = sanitizeRow(row, category)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Sanitize(item, category)
		}
		return out
	case executor.Row:
		return sanitizeRow(v, category)
	default:
		return data
	}
}

func sanitizeRow(row executor.Row, category string) map[string]any {
	clean := make(map[string]any, len(row))

	if _, ok := row["id"]; ok {
		if typ := linkType(category, row); typ != "" {
			clean["_type"] = typ
		}
	}
	for key, value := range row {
		if hiddenKey(key) {
			continue
		}
		// Nested records carry no category; mislabeling a child as its
		// parent's type would send the UI to the wrong page.
		clean[key] = Sanitize(value, "")
	}
	return clean
}
