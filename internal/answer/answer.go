// Package answer defines the wire types exchanged between the question
// pipeline and its callers. It is a leaf package so that every stage
// (cache, formatter, fault handling, API) can share the same shapes
// without import cycles.
package answer

import (
	"encoding/json"
	"time"
)

// Request is a single natural-language question from an authenticated user.
type Request struct {
	Question       string `json:"question"`
	UserID         string `json:"userId"`
	UserRole       string `json:"userRole"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Response is the answer returned for a Request. Query holds a compact
// description of the database query that produced Data, when one ran.
type Response struct {
	Answer      string   `json:"answer"`
	Data        any      `json:"data,omitempty"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Error       string   `json:"error,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata describes how a Response was produced.
type Metadata struct {
	ExecutionTime time.Duration `json:"-"`
	RowCount      int           `json:"rowCount"`
	Truncated     bool          `json:"truncated"`
	Cached        bool          `json:"cached"`
	TemplateUsed  string        `json:"templateUsed,omitempty"`
}

// MarshalJSON reports the execution time in whole milliseconds.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias Metadata
	return json.Marshal(struct {
		ExecutionTimeMs int64 `json:"executionTimeMs"`
		alias
	}{
		ExecutionTimeMs: m.ExecutionTime.Milliseconds(),
		alias:           alias(m),
	})
}
