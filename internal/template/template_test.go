package template

import (
	"testing"

	"adoptiq/internal/catalog"
	"adoptiq/internal/query"
)

func TestFindMatchesCommonQuestions(t *testing.T) {
	m := NewMatcher(nil)

	cases := []struct {
		question string
		template string
	}{
		{"Show me all products", "list_products"},
		{"What products do we have?", "list_products"},
		{"Show products without telemetry", "products_without_telemetry"},
		{"Find unassigned products", "products_without_customers"},
		{"Find tasks with zero weight", "tasks_zero_weight"},
		{"Tasks with no description", "tasks_missing_descriptions"},
		{"Tasks with high estimated time", "tasks_high_time"},
		{"Tasks with zero estimated minutes", "tasks_missing_time"},
		{"Find tasks with high weight", "tasks_high_weight"},
		{"List customers", "list_customers"},
		{"Find struggling customers", "customers_low_adoption"},
		{"Customers with zero progress", "customers_not_started"},
		{"List all adoption plans", "list_adoption_plans"},
		{"Show telemetry without success criteria", "telemetry_no_criteria"},
		{"How many products do we have?", "count_entities"},
		{"Give me an overview", "count_entities"},
	}

	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			match, ok := m.Find(tc.question)
			if !ok {
				t.Fatalf("expected a template match for %q", tc.question)
			}
			if match.Template.ID != tc.template {
				t.Errorf("got template %s, want %s", match.Template.ID, tc.template)
			}
			if match.Confidence < matchThreshold {
				t.Errorf("confidence %f below threshold", match.Confidence)
			}
		})
	}
}

func TestFindExtractsProductName(t *testing.T) {
	m := NewMatcher(nil)

	match, ok := m.Find("List all the tasks for Cisco Secure Access without telemetry")
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Template.ID != "tasks_for_product_no_telemetry" {
		t.Fatalf("got template %s", match.Template.ID)
	}
	if got := match.Params["productName"]; got != "cisco secure access" {
		t.Errorf("got productName %q", got)
	}

	d := match.Template.Build(match.Params)
	if d.Model != "task" || d.Op != query.FindMany {
		t.Errorf("unexpected descriptor: %s", d.String())
	}
}

func TestFindExtractsThresholdWithDefault(t *testing.T) {
	m := NewMatcher(nil)

	match, ok := m.Find("Show customers with adoption below 30")
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Template.ID != "customers_low_adoption" {
		t.Fatalf("got template %s", match.Template.ID)
	}
	if got := match.Params["threshold"]; got != float64(30) {
		t.Errorf("got threshold %v", got)
	}

	match, ok = m.Find("Find struggling customers")
	if !ok {
		t.Fatal("expected a match")
	}
	if got := match.Params["threshold"]; got != float64(50) {
		t.Errorf("got default threshold %v", got)
	}
}

func TestFindReturnsFalseForUnmatchedQuestion(t *testing.T) {
	m := NewMatcher(nil)

	if match, ok := m.Find("why is adoption tracking important in general"); ok {
		t.Errorf("expected no match, got %s", match.Template.ID)
	}
}

func TestSpecificTemplateOutranksGeneralOne(t *testing.T) {
	m := NewMatcher(nil)

	// Matches both the telemetry-specific and the generic per-product
	// template; the specific one ranks first.
	match, ok := m.Find("Tasks of Cisco Duo with no telemetry")
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Template.ID != "tasks_for_product_no_telemetry" {
		t.Errorf("got template %s", match.Template.ID)
	}
}

func TestAllTemplateDescriptorsValidateAgainstCatalog(t *testing.T) {
	m := NewMatcher(nil)
	c := catalog.New()

	defaults := map[string]any{
		"productName":  "demo",
		"customerName": "demo",
		"threshold":    float64(50),
	}

	for _, tpl := range m.Templates() {
		t.Run(tpl.ID, func(t *testing.T) {
			d := tpl.Build(defaults)
			if err := c.Validate(d); err != nil {
				t.Errorf("descriptor invalid: %v", err)
			}
		})
	}
}
