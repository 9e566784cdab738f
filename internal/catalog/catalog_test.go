package catalog

import (
	"strings"
	"testing"

	"adoptiq/internal/query"
)

func TestModelLookup(t *testing.T) {
	c := New()

	m, err := c.Model("adoptionPlan")
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	if m.Table != "adoption_plans" {
		t.Errorf("expected table adoption_plans, got %s", m.Table)
	}
	f, ok := m.Field("progressPercentage")
	if !ok {
		t.Fatal("expected progressPercentage field")
	}
	if f.Column != "progress_percentage" {
		t.Errorf("expected column progress_percentage, got %s", f.Column)
	}

	if _, err := c.Model("invoice"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestModelLookupIgnoresCase(t *testing.T) {
	c := New()
	for _, name := range []string{"Product", "PRODUCT", "TelemetryAttribute", "customertask"} {
		m, err := c.Model(name)
		if err != nil {
			t.Errorf("Model(%q): %v", name, err)
			continue
		}
		if m.Name == name {
			t.Errorf("Model(%q) should return the canonical name, got %q", name, m.Name)
		}
	}

	m, _ := c.Model("TelemetryAttribute")
	if m.Name != "telemetryAttribute" {
		t.Errorf("canonical name: got %q, want %q", m.Name, "telemetryAttribute")
	}

	if err := c.Validate(query.Descriptor{Model: "Product", Op: query.FindMany}); err != nil {
		t.Errorf("Validate with cased model: %v", err)
	}
}

func TestRelationLookup(t *testing.T) {
	c := New()

	m, err := c.Model("product")
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	rel, ok := m.Relation("solutions")
	if !ok {
		t.Fatal("expected solutions relation")
	}
	if rel.Kind != ManyToMany || rel.JoinTable != "solution_products" {
		t.Errorf("unexpected relation: %+v", rel)
	}
}

func TestPromptContainsModelsEnumsAndRules(t *testing.T) {
	c := New()
	prompt := c.Prompt()

	for _, want := range []string{
		"**product**",
		"**customerTask**",
		"**LicenseLevel**: ESSENTIAL, ADVANTAGE, SIGNATURE",
		"weighted sum of completed tasks",
		"tasks -> task (hasMany)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestInvalidateRebuildsPrompt(t *testing.T) {
	c := New()
	before := c.Prompt()

	c.BusinessRules = append(c.BusinessRules, "Trial customers are excluded from adoption reporting.")
	c.Invalidate()

	after := c.Prompt()
	if after == before {
		t.Fatal("prompt not rebuilt after Invalidate")
	}
	if !strings.Contains(after, "Trial customers are excluded") {
		t.Errorf("rebuilt prompt missing new rule")
	}
}

func TestValidateAcceptsWellFormedDescriptor(t *testing.T) {
	c := New()
	where := query.And(
		query.Lt("weight", 30),
		query.Some("telemetryAttributes", query.Eq("isRequired", true)),
	)
	d := query.Descriptor{
		Model: "task",
		Op:    query.FindMany,
		Args: query.Args{
			Where:   &where,
			OrderBy: []query.Order{{Field: "weight", Desc: true}},
			Include: []string{"product"},
			Take:    50,
		},
	}
	if err := c.Validate(d); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsBadShapes(t *testing.T) {
	c := New()
	cases := []struct {
		name string
		d    query.Descriptor
	}{
		{"unknown op", query.Descriptor{Model: "task", Op: "deleteMany"}},
		{"unknown model", query.Descriptor{Model: "invoice", Op: query.FindMany}},
		{"unknown field", query.Descriptor{Model: "task", Op: query.FindMany, Args: query.Args{Where: condPtr(query.Eq("salary", 1))}}},
		{"unknown relation", query.Descriptor{Model: "task", Op: query.FindMany, Args: query.Args{Where: condPtr(query.Some("owners", query.Eq("id", "x")))}}},
		{"unknown include", query.Descriptor{Model: "task", Op: query.FindMany, Args: query.Args{Include: []string{"owners"}}}},
		{"negative take", query.Descriptor{Model: "task", Op: query.FindMany, Args: query.Args{Take: -1}}},
		{"bad aggregate model", query.Descriptor{Op: query.Aggregate, Args: query.Args{Models: []string{"invoice"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := c.Validate(tc.d); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateNestedRelationCondUsesRelatedModel(t *testing.T) {
	c := New()
	// status exists on customerTask but not on adoptionPlan
	where := query.Some("tasks", query.Eq("status", "COMPLETED"))
	d := query.Descriptor{Model: "adoptionPlan", Op: query.FindMany, Args: query.Args{Where: &where}}
	if err := c.Validate(d); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := query.Some("tasks", query.Eq("progressPercentage", 10))
	d.Args.Where = &bad
	if err := c.Validate(d); err == nil {
		t.Error("expected error for field on wrong model")
	}
}

func condPtr(c query.Cond) *query.Cond { return &c }
