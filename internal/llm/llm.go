// Package llm abstracts chat-completion providers behind a small
// interface so the generator can run against OpenAI in production and
// a deterministic mock in tests and keyless deployments.
package llm

import (
	"context"
	"encoding/json"
)

// Schema is a JSON schema constraining structured completions.
type Schema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties,omitempty"`
	Items                *Schema             `json:"items,omitempty"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

// Property is one property of an object schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Items       *Schema  `json:"items,omitempty"`
}

// MarshalJSON lets Schema satisfy json.Marshaler so it can be passed
// where the OpenAI SDK expects a self-marshaling schema value.
func (s *Schema) MarshalJSON() ([]byte, error) {
	type alias Schema
	return json.Marshal((*alias)(s))
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Provider is a chat-completion backend.
type Provider interface {
	// Name identifies the provider in logs and health output.
	Name() string
	// Complete returns a free-form completion.
	Complete(ctx context.Context, messages []Message) (string, error)
	// CompleteStructured returns a completion constrained to the given
	// JSON schema.
	CompleteStructured(ctx context.Context, messages []Message, schema *Schema) (string, error)
	// Ready reports whether the provider can serve requests.
	Ready(ctx context.Context) error
}
