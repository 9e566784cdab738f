package template

import (
	"regexp"

	"adoptiq/internal/query"
)

// active prepends the soft-delete guard to a condition set.
func active(conds ...query.Cond) *query.Cond {
	all := append([]query.Cond{query.IsNull("deletedAt")}, conds...)
	c := query.And(all...)
	return &c
}

func where(c query.Cond) *query.Cond { return &c }

// hasNone matches rows with no related rows at all. The id check is
// trivially true, so the relation condition reduces to pure existence.
func hasNone(relation string) query.Cond {
	return query.None(relation, query.NotNull("id"))
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

func buildTemplates() []*Template {
	return []*Template{
		{
			ID:          "list_products",
			Description: "List all products in the system",
			Category:    "products",
			Patterns: patterns(
				`(?:show|list|get|display)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?products?(?:\s+we\s+have)?`,
				`what\s+products?\s+(?:do\s+we\s+have|are\s+there|exist)`,
				`products?\s+list`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "product",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   where(query.IsNull("deletedAt")),
						OrderBy: []query.Order{{Field: "name"}},
					},
				}
			},
			Examples: []string{"Show me all products", "List products", "What products do we have?"},
		},
		{
			ID:          "products_without_telemetry",
			Description: "Find products that have tasks without telemetry attributes configured",
			Category:    "products",
			Patterns: patterns(
				`products?\s+(?:without|missing|with\s+no)\s+telemetry`,
				`products?\s+(?:that\s+)?(?:have|with)\s+tasks?\s+(?:without|missing|with\s+no)\s+telemetry`,
				`(?:find|show|list)\s+products?\s+(?:without|missing|with\s+no)\s+telemetry`,
				`products?\s+(?:that\s+)?have\s+no\s+telemetry`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "product",
					Op:    query.FindMany,
					Args: query.Args{
						Where: active(query.Some("tasks", query.And(
							query.IsNull("deletedAt"),
							hasNone("telemetryAttributes"),
						))),
						Include: []string{"tasks"},
					},
				}
			},
			Examples: []string{"Show products without telemetry", "Products with no telemetry configured"},
		},
		{
			ID:          "products_without_customers",
			Description: "Find products that have no customers assigned",
			Category:    "products",
			Patterns: patterns(
				`products?\s+(?:with(?:out)?|with\s+no|missing)\s+customers?`,
				`products?\s+(?:not\s+)?assigned\s+to\s+(?:any\s+)?customers?`,
				`(?:find|show|list)\s+products?\s+(?:with(?:out)?|with\s+no)\s+customers?`,
				`unassigned\s+products?`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "product",
					Op:    query.FindMany,
					Args: query.Args{
						Where: active(hasNone("customers")),
					},
				}
			},
			Examples: []string{"Show products without customers", "Find unassigned products"},
		},
		{
			ID:          "tasks_zero_weight",
			Description: "Find tasks that have zero or no weight assigned",
			Category:    "tasks",
			Patterns: patterns(
				`tasks?\s+with\s+(?:zero|0|no)\s+weight`,
				`tasks?\s+(?:missing|without)\s+weight`,
				`(?:find|show|list)\s+tasks?\s+(?:with\s+)?(?:zero|0|no)\s+weight`,
				`unweighted\s+tasks?`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Eq("weight", 0)),
						Include: []string{"product", "solution"},
					},
				}
			},
			Examples: []string{"Find tasks with zero weight", "Show tasks without weight"},
		},
		{
			ID:          "tasks_missing_descriptions",
			Description: "Find tasks that have no description",
			Category:    "tasks",
			Patterns: patterns(
				`tasks?\s+(?:with(?:out)?|missing|with\s+no|without\s+a?)\s+descriptions?`,
				`tasks?\s+(?:that\s+)?(?:have|has)\s+no\s+descriptions?`,
				`(?:find|show|list)\s+tasks?\s+(?:with(?:out)?|missing)\s+descriptions?`,
				`incomplete\s+tasks?`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Or(query.IsNull("description"), query.Eq("description", ""))),
						Include: []string{"product", "solution"},
					},
				}
			},
			Examples: []string{"Find tasks missing descriptions", "Tasks with no description"},
		},
		{
			ID:          "tasks_for_product_no_telemetry",
			Description: "Find tasks for a specific product that have no telemetry",
			Category:    "tasks",
			Patterns: patterns(
				`(?:find|show|list|get)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?tasks?\s+(?:of|for)\s+(.+?)\s+(?:without|missing|with\s+no)\s+telemetry`,
				`tasks?\s+(?:of|for)\s+(.+?)\s+(?:with\s+no|without)\s+telemetry`,
				`(?:find|show|list|get)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?tasks?\s+(?:of|for)\s+(.+?)\s+that\s+(?:does\s+not\s+have|doesn'?t\s+have|do\s+not\s+have|don'?t\s+have|has\s+no|lacks?)\s+telemetry`,
				`(?:find|show|list|get)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?tasks?\s+(?:of|for)\s+(.+?)\s+(?:lacking|missing)\s+telemetry`,
				`(?:find|show|list|get)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?tasks?\s+(?:without|missing|with\s+no)\s+telemetry\s+(?:of|for|in)\s+(.+)`,
				`(.+?)\s+tasks?\s+(?:without|missing|with\s+no|that\s+(?:does\s+not\s+have|doesn'?t\s+have|lacks?))\s+telemetry`,
				`(.+?)\s+tasks?\s+(?:with\s+)?no\s+telemetry`,
				`(?:find|show|list|get)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?tasks?\s+(?:of|for)\s+(.+?)\s+(?:for\s+which|where|that\s+have)\s+telemetry\s+is\s+not\s+(?:configured|set\s*up|defined|available)`,
				`tasks?\s+(?:of|for)\s+(.+?)\s+(?:for\s+which|where|that\s+have)\s+telemetry\s+(?:is\s+)?not\s+(?:configured|set\s*up|defined)`,
				`(.+?)\s+tasks?\s+(?:for\s+which|where)\s+telemetry\s+(?:is\s+)?(?:not\s+)?(?:configured|set\s*up|defined|missing)`,
			),
			Params: []Param{{
				Name:     "productName",
				Type:     ParamString,
				Required: true,
				Extract:  regexp.MustCompile(`(?i)(?:tasks?\s+(?:of|for)\s+)(.+?)(?:\s+(?:that\s+)?(?:without|missing|with\s+no|do(?:es)?n?'?t?\s+have|has\s+no|lacking|for\s+which|where)\s+(?:no\s+)?telemetry)|(?:(?:without|missing|with\s+no)\s+telemetry\s+(?:of|for|in)\s+)(.+)|^(.+?)\s+tasks?\s+(?:with\s+)?(?:no|without|where|for\s+which)`),
			}},
			Build: func(params map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where: active(
							query.Some("product", query.Contains("name", str(params, "productName"))),
							hasNone("telemetryAttributes"),
						),
						Include: []string{"product"},
					},
				}
			},
			Examples: []string{
				"List all the tasks for Cisco Secure Access without telemetry",
				"Cisco Secure Access tasks without telemetry",
				"Tasks for Product X where telemetry is not set up",
			},
		},
		{
			ID:          "tasks_high_time",
			Description: "Find tasks with high estimated time",
			Category:    "tasks",
			Patterns: patterns(
				`tasks?\s+(?:with\s+)?(?:high|long|lengthy|over\s+\d+)\s+(?:est(?:imated)?\.?\s*)?(?:time|minutes?|hours?)`,
				`(?:time|minute)?\s*consuming\s+tasks?`,
				`(?:find|show|list)\s+tasks?\s+(?:that\s+)?take\s+(?:a\s+)?long\s+time`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Gt("estMinutes", 60)),
						OrderBy: []query.Order{{Field: "estMinutes", Desc: true}},
						Include: []string{"product"},
					},
				}
			},
			Examples: []string{"Find tasks with high estimated time", "Show time-consuming tasks"},
		},
		{
			ID:          "tasks_missing_time",
			Description: "Find tasks with zero or no estimated time",
			Category:    "tasks",
			Patterns: patterns(
				`tasks?\s+(?:with\s+)?(?:zero|0|no|missing)\s+(?:est(?:imated)?\.?\s*)?(?:time|minutes?)`,
				`tasks?\s+(?:without|missing)\s+(?:est(?:imated)?\.?\s*)?(?:time|minutes?)`,
				`(?:find|show|list)\s+tasks?\s+(?:with\s+)?(?:no|zero|missing)\s+(?:est(?:imated)?\.?\s*)?time`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Or(query.IsNull("estMinutes"), query.Eq("estMinutes", 0))),
						Include: []string{"product"},
					},
				}
			},
			Examples: []string{"Find tasks with no estimated time", "Tasks with zero estimated minutes"},
		},
		{
			ID:          "tasks_for_product",
			Description: "List all tasks for a specific product",
			Category:    "tasks",
			Patterns: patterns(
				`(?:find|show|list|get)\s+(?:all\s+)?(?:the\s+)?tasks?\s+(?:of|for|in)\s+(?:product\s+)?(.+)`,
				`tasks?\s+(?:of|for|in)\s+(?:product\s+)?(.+)`,
				`what\s+(?:are\s+)?(?:all\s+)?(?:the\s+)?tasks?\s+(?:of|for|in)\s+(.+)`,
				`(.+?)\s+tasks?\s*$`,
			),
			Params: []Param{{
				Name:     "productName",
				Type:     ParamString,
				Required: true,
				Extract:  regexp.MustCompile(`(?i)(?:of|for|in)\s+(?:product\s+)?(.+)`),
			}},
			Build: func(params map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Some("product", query.Contains("name", str(params, "productName")))),
						OrderBy: []query.Order{{Field: "sequenceNumber"}},
						Include: []string{"product"},
					},
				}
			},
			Examples: []string{"List all tasks for Cisco Secure Access", "Tasks of Secure Firewall"},
		},
		{
			ID:          "tasks_high_weight",
			Description: "Find tasks with high weight",
			Category:    "tasks",
			Patterns: patterns(
				`tasks?\s+(?:with\s+)?(?:high|heavy|large)\s+weight`,
				`(?:important|critical|weighted)\s+tasks?`,
				`(?:find|show|list)\s+(?:high|heavy)(?:\s+weight)?\s+tasks?`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "task",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Gt("weight", 50)),
						OrderBy: []query.Order{{Field: "weight", Desc: true}},
						Include: []string{"product"},
					},
				}
			},
			Examples: []string{"Find tasks with high weight", "Show important tasks"},
		},
		{
			ID:          "list_customers",
			Description: "List all customers in the system",
			Category:    "customers",
			Patterns: patterns(
				`(?:show|list|get|display)\s+(?:me\s+)?(?:all\s+)?customers?`,
				`what\s+customers?\s+(?:do\s+we\s+have|are\s+there|exist)`,
				`customers?\s+list`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "customer",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   where(query.IsNull("deletedAt")),
						OrderBy: []query.Order{{Field: "name"}},
					},
				}
			},
			Examples: []string{"Show me all customers", "What customers do we have?"},
		},
		{
			ID:          "customers_low_adoption",
			Description: "Find customers with adoption progress below a threshold",
			Category:    "customers",
			Patterns: patterns(
				`customers?\s+(?:with\s+)?(?:adoption|progress)\s+(?:below|under|less\s+than)\s+(\d+)`,
				`customers?\s+(?:with\s+)?low\s+adoption`,
				`(?:find|show|list)\s+customers?\s+(?:with\s+)?(?:adoption|progress)\s+(?:below|under|<)\s*(\d+)`,
				`struggling\s+customers?`,
			),
			Params: []Param{{
				Name:    "threshold",
				Type:    ParamNumber,
				Extract: regexp.MustCompile(`(?i)(?:below|under|less\s+than|<)\s*(\d+)`),
				Default: float64(50),
			}},
			Build: func(params map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "customer",
					Op:    query.FindMany,
					Args: query.Args{
						Where: active(query.Some("products",
							query.Some("adoptionPlan",
								query.Lt("progressPercentage", num(params, "threshold", 50))))),
						Include: []string{"products"},
					},
				}
			},
			Examples: []string{"Show customers with adoption below 50%", "Find struggling customers"},
		},
		{
			ID:          "customers_not_started",
			Description: "Find customers who have not started their adoption",
			Category:    "customers",
			Patterns: patterns(
				`customers?\s+(?:that\s+)?(?:have\s+)?(?:not\s+)?started`,
				`customers?\s+(?:with\s+)?(?:zero|0|no)\s+(?:adoption\s+)?progress`,
				`(?:find|show|list)\s+customers?\s+(?:not\s+)?started`,
				`inactive\s+customers?`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "customer",
					Op:    query.FindMany,
					Args: query.Args{
						Where: active(query.Some("products",
							query.Some("adoptionPlan", query.Eq("progressPercentage", 0)))),
						Include: []string{"products"},
					},
				}
			},
			Examples: []string{"Show customers not started", "Customers with zero progress"},
		},
		{
			ID:          "list_adoption_plans",
			Description: "List all adoption plans",
			Category:    "adoption",
			Patterns: patterns(
				`(?:list|show|find)\s+(?:all\s+)?(?:adoption\s+plans?|assignments?)`,
				`(?:list|show|find)\s+(?:all\s+)?(?:product|solution)\s+(?:adoption\s+plans?|assignments?)`,
				`(?:adoption\s+plans?|assignments?)\s+(?:for\s+)?(?:all\s+)?customers?`,
				`what\s+(?:adoption\s+plans?|assignments?)\s+(?:do\s+we\s+have|exist)`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "adoptionPlan",
					Op:    query.FindMany,
					Args: query.Args{
						OrderBy: []query.Order{{Field: "progressPercentage", Desc: true}},
						Include: []string{"customerProduct"},
					},
				}
			},
			Examples: []string{"List all adoption plans", "What adoption plans do we have?"},
		},
		{
			ID:          "adoption_plans_for_customer",
			Description: "Find adoption plans for a specific customer",
			Category:    "adoption",
			Patterns: patterns(
				`(?:adoption\s+plans?|assignments?)\s+(?:for|of)\s+(?:customer\s+)?(.+)`,
				`(?:list|show|find)\s+(?:adoption\s+plans?|assignments?)\s+(?:for|of)\s+(.+)`,
				`(.+?)(?:'s)?\s+(?:adoption\s+plans?|assignments?)`,
				`what\s+(?:products?|solutions?)\s+(?:is|are)\s+(.+?)\s+(?:using|adopting|assigned)`,
			),
			Params: []Param{{
				Name:     "customerName",
				Type:     ParamString,
				Required: true,
				Extract:  regexp.MustCompile(`(?i)(?:(?:for|of)\s+(?:customer\s+)?|^)(.+?)(?:\s+(?:adoption|assignment)|'s\s+(?:adoption|assignment)|$)`),
			}},
			Build: func(params map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "customer",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   active(query.Contains("name", str(params, "customerName"))),
						Include: []string{"products"},
					},
				}
			},
			Examples: []string{"Adoption plans for Acme Corp", "What products is Cisco using?"},
		},
		{
			ID:          "telemetry_no_criteria",
			Description: "Find telemetry attributes that have no success criteria defined",
			Category:    "telemetry",
			Patterns: patterns(
				`telemetry\s+(?:attributes?\s+)?(?:with(?:out)?|missing|with\s+no)\s+(?:success\s+)?criteria`,
				`(?:find|show|list)\s+telemetry\s+(?:with(?:out)?|missing)\s+criteria`,
				`unconfigured\s+telemetry`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Model: "telemetryAttribute",
					Op:    query.FindMany,
					Args: query.Args{
						Where:   where(query.Or(query.IsNull("successCriteria"), query.Eq("successCriteria", "{}"))),
						Include: []string{"task"},
					},
				}
			},
			Examples: []string{"Show telemetry without success criteria", "Unconfigured telemetry attributes"},
		},
		{
			ID:          "count_entities",
			Description: "Get counts of products, solutions, customers and tasks",
			Category:    "analytics",
			Patterns: patterns(
				`(?:how\s+many|count\s+of|count|number\s+of)\s*(?:products?|solutions?|customers?|tasks?)?`,
				`(?:total|overall)\s+(?:products?|solutions?|customers?|tasks?)`,
				`(?:show|give)\s+(?:me\s+)?(?:the\s+|an\s+)?(?:counts?|overview|summary)`,
				`summary\s+(?:of\s+)?(?:data|entities|counts)`,
				`^overview$`,
				`give\s+(?:me\s+)?(?:an?\s+)?overview`,
			),
			Build: func(map[string]any) query.Descriptor {
				return query.Descriptor{
					Op: query.Aggregate,
					Args: query.Args{
						Models: []string{"product", "solution", "customer", "task"},
					},
				}
			},
			Examples: []string{"How many products do we have?", "Give me an overview"},
		},
	}
}
