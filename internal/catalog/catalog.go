// Package catalog holds the typed description of the adoption data
// model. The catalog is built once at startup and drives three
// consumers: the generator prompt, descriptor validation, and the SQL
// compiler's table and join mapping.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// RelationKind describes how two models are connected.
type RelationKind string

const (
	HasMany    RelationKind = "hasMany"
	HasOne     RelationKind = "hasOne"
	BelongsTo  RelationKind = "belongsTo"
	ManyToMany RelationKind = "manyToMany"
)

// Field is one column of a model.
type Field struct {
	Name        string
	Column      string
	Type        string
	Nullable    bool
	PrimaryKey  bool
	Description string
	Samples     []string
}

// Relation is a named edge from one model to another. BelongsTo and
// HasMany use ForeignKey; ManyToMany uses the join table columns.
type Relation struct {
	Name       string
	Model      string
	Kind       RelationKind
	ForeignKey string
	JoinTable  string
	JoinSelf   string
	JoinOther  string
}

// Model is one queryable entity.
type Model struct {
	Name        string
	Table       string
	Description string
	Fields      []Field
	Relations   []Relation
	SoftDelete  bool

	fieldIdx    map[string]Field
	relationIdx map[string]Relation
}

// Catalog is the full data model plus the enum values and business
// rules surfaced to the generator.
type Catalog struct {
	models        map[string]*Model
	order         []string
	Enums         map[string][]string
	BusinessRules []string

	prompt string
}

// Model returns the named model, or an error naming the known models
// so generator failures stay diagnosable. Lookup is case-insensitive;
// the returned model carries the canonical name.
func (c *Catalog) Model(name string) (*Model, error) {
	m, ok := c.models[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (known: %s)", name, strings.Join(c.order, ", "))
	}
	return m, nil
}

// Models returns all model names in declaration order.
func (c *Catalog) Models() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Invalidate rebuilds the rendered prompt from the current model set.
func (c *Catalog) Invalidate() {
	c.prompt = c.renderPrompt()
}

// Field returns the named field of the model.
func (m *Model) Field(name string) (Field, bool) {
	f, ok := m.fieldIdx[name]
	return f, ok
}

// Relation returns the named relation of the model.
func (m *Model) Relation(name string) (Relation, bool) {
	r, ok := m.relationIdx[name]
	return r, ok
}

// New builds the catalog for the adoption data model.
func New() *Catalog {
	c := &Catalog{
		models: make(map[string]*Model),
		Enums: map[string][]string{
			"SystemRole":         {"ADMIN", "USER", "SME", "CSS", "VIEWER"},
			"LicenseLevel":       {"ESSENTIAL", "ADVANTAGE", "SIGNATURE"},
			"TelemetryDataType":  {"BOOLEAN", "NUMBER", "STRING", "TIMESTAMP", "JSON"},
			"CustomerTaskStatus": {"NOT_STARTED", "IN_PROGRESS", "COMPLETED", "DONE", "NOT_APPLICABLE", "NO_LONGER_USING"},
			"StatusUpdateSource": {"MANUAL", "TELEMETRY", "IMPORT", "SYSTEM"},
		},
		BusinessRules: []string{
			"Adoption progress is the weighted sum of completed tasks, not a simple task count.",
			"Progress percentage = (sum of completed task weights) / (total weight) * 100.",
			"CustomerTaskStatus DONE and COMPLETED are equivalent; both mean the task is finished.",
			"NOT_APPLICABLE means the task does not apply to that specific customer.",
			"NO_LONGER_USING means telemetry shows the feature was adopted and then abandoned.",
			"Manual status updates take precedence over telemetry updates.",
			"License levels are hierarchical: SIGNATURE includes ADVANTAGE includes ESSENTIAL.",
			"Soft-deleted records keep a deletedAt timestamp; active-record queries exclude them.",
			"A customerTask is a snapshot of the original task and can diverge from its source.",
			"A task belongs to either a product or a solution, never both.",
			"Assigning a product to a customer (customerProduct) creates an adoptionPlan with customerTask copies.",
		},
	}

	for _, m := range buildModels() {
		c.register(m)
	}
	c.prompt = c.renderPrompt()
	return c
}

func (c *Catalog) register(m *Model) {
	m.fieldIdx = make(map[string]Field, len(m.Fields))
	for _, f := range m.Fields {
		m.fieldIdx[f.Name] = f
	}
	m.relationIdx = make(map[string]Relation, len(m.Relations))
	for _, r := range m.Relations {
		m.relationIdx[r.Name] = r
	}
	c.models[strings.ToLower(m.Name)] = m
	c.order = append(c.order, m.Name)
}

func buildModels() []*Model {
	id := Field{Name: "id", Column: "id", Type: "string", PrimaryKey: true}
	created := Field{Name: "createdAt", Column: "created_at", Type: "datetime"}
	updated := Field{Name: "updatedAt", Column: "updated_at", Type: "datetime"}
	deleted := Field{Name: "deletedAt", Column: "deleted_at", Type: "datetime", Nullable: true, Description: "soft delete timestamp"}

	return []*Model{
		{
			Name:        "product",
			Table:       "products",
			Description: "Software products that customers can adopt. Each product has tasks, licenses, outcomes and releases.",
			SoftDelete:  true,
			Fields: []Field{
				id,
				{Name: "name", Column: "name", Type: "string", Description: "unique product name", Samples: []string{"Cisco Duo", "Secure Firewall", "SD-WAN", "ISE"}},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				created, updated, deleted,
			},
			Relations: []Relation{
				{Name: "tasks", Model: "task", Kind: HasMany, ForeignKey: "product_id"},
				{Name: "licenses", Model: "license", Kind: HasMany, ForeignKey: "product_id"},
				{Name: "outcomes", Model: "outcome", Kind: HasMany, ForeignKey: "product_id"},
				{Name: "releases", Model: "release", Kind: HasMany, ForeignKey: "product_id"},
				{Name: "solutions", Model: "solution", Kind: ManyToMany, JoinTable: "solution_products", JoinSelf: "product_id", JoinOther: "solution_id"},
				{Name: "customers", Model: "customerProduct", Kind: HasMany, ForeignKey: "product_id"},
			},
		},
		{
			Name:        "solution",
			Table:       "solutions",
			Description: "Bundles of products. Solutions can carry their own tasks and aggregate product progress.",
			SoftDelete:  true,
			Fields: []Field{
				id,
				{Name: "name", Column: "name", Type: "string", Samples: []string{"Hybrid Private Access", "SASE Bundle"}},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				created, updated, deleted,
			},
			Relations: []Relation{
				{Name: "products", Model: "product", Kind: ManyToMany, JoinTable: "solution_products", JoinSelf: "solution_id", JoinOther: "product_id"},
				{Name: "tasks", Model: "task", Kind: HasMany, ForeignKey: "solution_id"},
				{Name: "licenses", Model: "license", Kind: HasMany, ForeignKey: "solution_id"},
				{Name: "outcomes", Model: "outcome", Kind: HasMany, ForeignKey: "solution_id"},
				{Name: "releases", Model: "release", Kind: HasMany, ForeignKey: "solution_id"},
			},
		},
		{
			Name:        "customer",
			Table:       "customers",
			Description: "Organizations adopting products or solutions. Their progress is tracked through adoption plans.",
			SoftDelete:  true,
			Fields: []Field{
				id,
				{Name: "name", Column: "name", Type: "string"},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				created, updated, deleted,
			},
			Relations: []Relation{
				{Name: "products", Model: "customerProduct", Kind: HasMany, ForeignKey: "customer_id"},
			},
		},
		{
			Name:        "task",
			Table:       "tasks",
			Description: "Implementation steps for a product or solution with weight, estimated time and telemetry attributes.",
			SoftDelete:  true,
			Fields: []Field{
				id,
				{Name: "productId", Column: "product_id", Type: "string", Nullable: true, Description: "parent product, mutually exclusive with solutionId"},
				{Name: "solutionId", Column: "solution_id", Type: "string", Nullable: true, Description: "parent solution, mutually exclusive with productId"},
				{Name: "name", Column: "name", Type: "string", Samples: []string{"Configure SSO", "Enable Logging", "Deploy Agents"}},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				{Name: "estMinutes", Column: "est_minutes", Type: "int", Description: "estimated minutes to complete", Samples: []string{"30", "60", "120"}},
				{Name: "weight", Column: "weight", Type: "decimal", Description: "weight percentage 0-100", Samples: []string{"10", "25.5", "50"}},
				{Name: "sequenceNumber", Column: "sequence_number", Type: "int", Description: "execution order"},
				{Name: "licenseLevel", Column: "license_level", Type: "LicenseLevel", Description: "required license level"},
				{Name: "notes", Column: "notes", Type: "string", Nullable: true},
				{Name: "softDeleteQueued", Column: "soft_delete_queued", Type: "bool", Description: "marked for deletion"},
				deleted,
			},
			Relations: []Relation{
				{Name: "product", Model: "product", Kind: BelongsTo, ForeignKey: "product_id"},
				{Name: "solution", Model: "solution", Kind: BelongsTo, ForeignKey: "solution_id"},
				{Name: "telemetryAttributes", Model: "telemetryAttribute", Kind: HasMany, ForeignKey: "task_id"},
			},
		},
		{
			Name:        "telemetryAttribute",
			Table:       "telemetry_attributes",
			Description: "Metrics tracked for tasks. Success criteria can auto-complete the task.",
			Fields: []Field{
				id,
				{Name: "taskId", Column: "task_id", Type: "string"},
				{Name: "name", Column: "name", Type: "string", Samples: []string{"users_synced", "policies_active"}},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				{Name: "dataType", Column: "data_type", Type: "TelemetryDataType"},
				{Name: "isRequired", Column: "is_required", Type: "bool", Description: "required for task completion"},
				{Name: "successCriteria", Column: "success_criteria", Type: "json", Nullable: true, Description: "criteria definition with and/or logic"},
				{Name: "isActive", Column: "is_active", Type: "bool"},
			},
			Relations: []Relation{
				{Name: "task", Model: "task", Kind: BelongsTo, ForeignKey: "task_id"},
			},
		},
		{
			Name:        "license",
			Table:       "licenses",
			Description: "License tiers for a product or solution. Higher levels include lower level features.",
			Fields: []Field{
				id,
				{Name: "name", Column: "name", Type: "string"},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				{Name: "level", Column: "level", Type: "int", Description: "hierarchical level, higher includes lower"},
				{Name: "isActive", Column: "is_active", Type: "bool"},
				{Name: "productId", Column: "product_id", Type: "string", Nullable: true},
				{Name: "solutionId", Column: "solution_id", Type: "string", Nullable: true},
			},
			Relations: []Relation{
				{Name: "product", Model: "product", Kind: BelongsTo, ForeignKey: "product_id"},
				{Name: "solution", Model: "solution", Kind: BelongsTo, ForeignKey: "solution_id"},
			},
		},
		{
			Name:        "outcome",
			Table:       "outcomes",
			Description: "Business outcomes that tasks contribute to.",
			Fields: []Field{
				id,
				{Name: "name", Column: "name", Type: "string"},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				{Name: "productId", Column: "product_id", Type: "string", Nullable: true},
				{Name: "solutionId", Column: "solution_id", Type: "string", Nullable: true},
			},
			Relations: []Relation{
				{Name: "product", Model: "product", Kind: BelongsTo, ForeignKey: "product_id"},
				{Name: "solution", Model: "solution", Kind: BelongsTo, ForeignKey: "solution_id"},
			},
		},
		{
			Name:        "release",
			Table:       "releases",
			Description: "Version releases for a product or solution. Tasks can be scoped to a release.",
			Fields: []Field{
				id,
				{Name: "name", Column: "name", Type: "string"},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				{Name: "level", Column: "level", Type: "float", Description: "version level such as 1.0 or 2.0"},
				{Name: "isActive", Column: "is_active", Type: "bool"},
				{Name: "productId", Column: "product_id", Type: "string", Nullable: true},
				{Name: "solutionId", Column: "solution_id", Type: "string", Nullable: true},
			},
			Relations: []Relation{
				{Name: "product", Model: "product", Kind: BelongsTo, ForeignKey: "product_id"},
				{Name: "solution", Model: "solution", Kind: BelongsTo, ForeignKey: "solution_id"},
			},
		},
		{
			Name:        "customerProduct",
			Table:       "customer_products",
			Description: "Assignment of a product to a customer. Creating one creates its adoption plan.",
			Fields: []Field{
				id,
				{Name: "customerId", Column: "customer_id", Type: "string"},
				{Name: "productId", Column: "product_id", Type: "string"},
				{Name: "name", Column: "name", Type: "string", Description: "assignment name", Samples: []string{"Production", "Staging"}},
				{Name: "licenseLevel", Column: "license_level", Type: "LicenseLevel"},
				{Name: "purchasedAt", Column: "purchased_at", Type: "datetime"},
			},
			Relations: []Relation{
				{Name: "customer", Model: "customer", Kind: BelongsTo, ForeignKey: "customer_id"},
				{Name: "product", Model: "product", Kind: BelongsTo, ForeignKey: "product_id"},
				{Name: "adoptionPlan", Model: "adoptionPlan", Kind: HasOne, ForeignKey: "customer_product_id"},
			},
		},
		{
			Name:        "adoptionPlan",
			Table:       "adoption_plans",
			Description: "Tracks a customer's progress on one product. Holds a snapshot of the tasks at creation time.",
			Fields: []Field{
				id,
				{Name: "customerProductId", Column: "customer_product_id", Type: "string"},
				{Name: "productId", Column: "product_id", Type: "string"},
				{Name: "productName", Column: "product_name", Type: "string", Description: "snapshot of the product name"},
				{Name: "licenseLevel", Column: "license_level", Type: "LicenseLevel"},
				{Name: "totalTasks", Column: "total_tasks", Type: "int"},
				{Name: "completedTasks", Column: "completed_tasks", Type: "int"},
				{Name: "totalWeight", Column: "total_weight", Type: "decimal"},
				{Name: "completedWeight", Column: "completed_weight", Type: "decimal"},
				{Name: "progressPercentage", Column: "progress_percentage", Type: "decimal", Description: "weighted completion percentage", Samples: []string{"0", "42.5", "100"}},
				{Name: "lastSyncedAt", Column: "last_synced_at", Type: "datetime", Nullable: true},
			},
			Relations: []Relation{
				{Name: "customerProduct", Model: "customerProduct", Kind: BelongsTo, ForeignKey: "customer_product_id"},
				{Name: "tasks", Model: "customerTask", Kind: HasMany, ForeignKey: "adoption_plan_id"},
			},
		},
		{
			Name:        "customerTask",
			Table:       "customer_tasks",
			Description: "Customer-specific copy of a task with status tracking, updated manually or via telemetry.",
			Fields: []Field{
				id,
				{Name: "adoptionPlanId", Column: "adoption_plan_id", Type: "string"},
				{Name: "originalTaskId", Column: "original_task_id", Type: "string", Description: "reference to the product task"},
				{Name: "name", Column: "name", Type: "string"},
				{Name: "description", Column: "description", Type: "string", Nullable: true},
				{Name: "estMinutes", Column: "est_minutes", Type: "int"},
				{Name: "weight", Column: "weight", Type: "decimal"},
				{Name: "sequenceNumber", Column: "sequence_number", Type: "int"},
				{Name: "licenseLevel", Column: "license_level", Type: "LicenseLevel"},
				{Name: "status", Column: "status", Type: "CustomerTaskStatus", Samples: []string{"NOT_STARTED", "IN_PROGRESS", "COMPLETED"}},
				{Name: "statusUpdatedAt", Column: "status_updated_at", Type: "datetime", Nullable: true},
				{Name: "statusUpdatedBy", Column: "status_updated_by", Type: "string", Nullable: true, Description: "user ID or \"telemetry\""},
				{Name: "statusUpdateSource", Column: "status_update_source", Type: "StatusUpdateSource", Nullable: true},
				{Name: "isComplete", Column: "is_complete", Type: "bool"},
				{Name: "completedAt", Column: "completed_at", Type: "datetime", Nullable: true},
			},
			Relations: []Relation{
				{Name: "adoptionPlan", Model: "adoptionPlan", Kind: BelongsTo, ForeignKey: "adoption_plan_id"},
			},
		},
	}
}

// Prompt returns the schema description rendered for the generator.
// It is built once in New.
func (c *Catalog) Prompt() string { return c.prompt }

func (c *Catalog) renderPrompt() string {
	var b strings.Builder
	b.WriteString("## Data Model\n\n### Models\n\n")
	for _, name := range c.order {
		m := c.models[strings.ToLower(name)]
		fmt.Fprintf(&b, "**%s**: %s\n", m.Name, m.Description)

		fields := make([]string, 0, len(m.Fields))
		for _, f := range m.Fields {
			desc := f.Name + " " + f.Type
			if f.Nullable {
				desc += "?"
			}
			if f.Description != "" {
				desc += " (" + f.Description + ")"
			}
			if len(f.Samples) > 0 {
				desc += " [examples: " + strings.Join(f.Samples, ", ") + "]"
			}
			fields = append(fields, desc)
		}
		b.WriteString("- Fields: " + strings.Join(fields, ", ") + "\n")

		if len(m.Relations) > 0 {
			rels := make([]string, 0, len(m.Relations))
			for _, r := range m.Relations {
				rels = append(rels, fmt.Sprintf("%s -> %s (%s)", r.Name, r.Model, r.Kind))
			}
			b.WriteString("- Relations: " + strings.Join(rels, ", ") + "\n")
		}
		b.WriteByte('\n')
	}

	b.WriteString("### Enums\n\n")
	names := make([]string, 0, len(c.Enums))
	for name := range c.Enums {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- **%s**: %s\n", name, strings.Join(c.Enums[name], ", "))
	}

	b.WriteString("\n### Business Rules\n\n")
	for _, rule := range c.BusinessRules {
		b.WriteString("- " + rule + "\n")
	}
	return b.String()
}
