package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMockKeywordHeuristic(t *testing.T) {
	m := &Mock{}

	cases := []struct {
		question string
		model    string
	}{
		{"show every customer we track", "customer"},
		{"which tasks exist", "task"},
		{"adoption plan overview", "adoptionPlan"},
		{"telemetry coverage", "telemetryAttribute"},
		{"anything else", "product"},
	}
	for _, tc := range cases {
		raw, err := m.CompleteStructured(context.Background(),
			[]Message{{Role: RoleUser, Content: tc.question}}, nil)
		if err != nil {
			t.Fatalf("CompleteStructured: %v", err)
		}
		var out struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			t.Fatalf("mock output not JSON: %v", err)
		}
		if out.Model != tc.model {
			t.Errorf("%q: got model %s, want %s", tc.question, out.Model, tc.model)
		}
	}
}

func TestMockRespondOverride(t *testing.T) {
	m := &Mock{Respond: func(messages []Message, schema *Schema) (string, error) {
		if schema == nil {
			t.Error("expected schema to be forwarded")
		}
		return `{"model":"task"}`, nil
	}}

	raw, err := m.CompleteStructured(context.Background(),
		[]Message{{Role: RoleUser, Content: "q"}}, &Schema{Type: "object"})
	if err != nil || raw != `{"model":"task"}` {
		t.Errorf("got %q, %v", raw, err)
	}
}

func TestMockErr(t *testing.T) {
	wantErr := errors.New("provider down")
	m := &Mock{Err: wantErr}

	if _, err := m.Complete(context.Background(), nil); !errors.Is(err, wantErr) {
		t.Errorf("Complete: got %v", err)
	}
	if err := m.Ready(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Ready: got %v", err)
	}
}

func TestSchemaMarshal(t *testing.T) {
	s := &Schema{
		Type: "object",
		Properties: map[string]Property{
			"model": {Type: "string", Enum: []string{"product", "task"}},
		},
		Required: []string{"model"},
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["type"] != "object" {
		t.Errorf("unexpected schema: %v", back)
	}
	if _, ok := back["additionalProperties"]; !ok {
		t.Error("expected additionalProperties to be serialized")
	}
}
