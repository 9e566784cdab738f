package format

import (
	"fmt"
	"strings"
)

var categorySuggestions = map[string][]string{
	"products": {
		"Show products without telemetry",
		"List products with their tasks",
		"How many products do we have?",
	},
	"solutions": {
		"Show all solutions",
		"List solutions with their products",
		"How many solutions are there?",
	},
	"customers": {
		"Show customers with low adoption",
		"List customers with their adoption progress",
		"How many customers do we have?",
	},
	"tasks": {
		"Find tasks without descriptions",
		"Show tasks without telemetry",
		"List high-weight tasks",
	},
	"telemetry": {
		"Show telemetry attributes",
		"Find tasks with missing telemetry",
	},
	"adoption": {
		"List all adoption plans",
		"Show customers with low adoption",
	},
	"analytics": {
		"Give me a summary of the data",
		"How many products, solutions, and customers?",
	},
}

var crossSuggestions = []string{
	"Give me a summary of the data",
	"Show customers with low adoption",
	"Find products without telemetry",
	"List all solutions",
}

// Suggestions proposes up to four follow-up questions: two from the
// result's own category, then result-shaped prompts, then questions
// that lead somewhere else.
func (f *Formatter) Suggestions(category string, rowCount int) []string {
	own, ok := categorySuggestions[category]
	if !ok {
		own = categorySuggestions["products"]
	}

	suggestions := make([]string, 0, 4)
	for _, s := range own {
		if len(suggestions) == 2 {
			break
		}
		suggestions = append(suggestions, s)
	}

	if rowCount > 10 {
		suggestions = append(suggestions, fmt.Sprintf("Show me the top 5 %s by name", category))
	}
	if rowCount == 0 {
		suggestions = append(suggestions, fmt.Sprintf("Show me all %s", category))
	}

	for _, s := range crossSuggestions {
		if len(suggestions) == 4 {
			break
		}
		if strings.Contains(strings.ToLower(s), category) || contains(suggestions, s) {
			continue
		}
		suggestions = append(suggestions, s)
	}
	if len(suggestions) > 4 {
		suggestions = suggestions[:4]
	}
	return suggestions
}
