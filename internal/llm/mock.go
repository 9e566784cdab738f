package llm

import (
	"context"
	"strings"
)

// Mock is a deterministic Provider for tests and keyless deployments.
// Without a custom Respond func it answers generator prompts with a
// plain findMany on whichever model the question mentions.
type Mock struct {
	// Respond overrides the default keyword heuristic when set.
	Respond func(messages []Message, schema *Schema) (string, error)
	// Err, when set, is returned from every completion.
	Err error
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, messages []Message) (string, error) {
	return m.CompleteStructured(ctx, messages, nil)
}

func (m *Mock) CompleteStructured(ctx context.Context, messages []Message, schema *Schema) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Respond != nil {
		return m.Respond(messages, schema)
	}
	return keywordDescriptor(lastUser(messages)), nil
}

func (m *Mock) Ready(ctx context.Context) error { return m.Err }

func lastUser(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func keywordDescriptor(question string) string {
	q := strings.ToLower(question)
	model := "product"
	softDelete := true
	switch {
	case strings.Contains(q, "customer task"):
		model, softDelete = "customerTask", false
	case strings.Contains(q, "adoption plan"):
		model, softDelete = "adoptionPlan", false
	case strings.Contains(q, "customer"):
		model = "customer"
	case strings.Contains(q, "task"):
		model = "task"
	case strings.Contains(q, "telemetry"):
		model, softDelete = "telemetryAttribute", false
	case strings.Contains(q, "solution"):
		model = "solution"
	case strings.Contains(q, "license"):
		model, softDelete = "license", false
	}
	if !softDelete {
		return `{"model":"` + model + `","operation":"findMany","args":{}}`
	}
	return `{"model":"` + model + `","operation":"findMany","args":{"where":{"op":"isNull","field":"deletedAt"}}}`
}
