// Package rbac rewrites query descriptors so users only ever query
// rows they are entitled to see. Filters are injected into the
// descriptor before execution; denial surfaces as an authorization
// fault carrying the role's restriction summary.
package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"adoptiq/internal/fault"
	"adoptiq/internal/query"
)

// Role is a system role.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleSME    Role = "SME"
	RoleCSS    Role = "CSS"
	RoleUser   Role = "USER"
	RoleViewer Role = "VIEWER"
)

// ParseRole normalizes a role string. CS is a legacy alias of CSS.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSME:
		return RoleSME, nil
	case RoleCSS, "CS":
		return RoleCSS, nil
	case RoleUser:
		return RoleUser, nil
	case RoleViewer:
		return RoleViewer, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Restrictions summarizes what a role may query.
func Restrictions(role Role) string {
	switch role {
	case RoleAdmin:
		return "Full access to all data"
	case RoleSME:
		return "Access to all products and solutions"
	case RoleCSS:
		return "Access to all customers, read-only access to products and solutions"
	case RoleViewer:
		return "Read-only access to all data"
	case RoleUser:
		return "Access based on specific permissions"
	}
	return "Limited access based on permissions"
}

// Context identifies the requesting user.
type Context struct {
	UserID string
	Role   Role
}

// ResourceType groups models for permission checks.
type ResourceType string

const (
	ResourceProduct  ResourceType = "PRODUCT"
	ResourceSolution ResourceType = "SOLUTION"
	ResourceCustomer ResourceType = "CUSTOMER"
)

// Access is a per-resource-type entitlement: everything, nothing, or a
// specific ID set.
type Access struct {
	All bool
	IDs []string
}

// PermissionStore resolves a USER role's entitlements per resource
// type. Other roles never hit the store.
type PermissionStore interface {
	AccessibleResources(ctx context.Context, userID string, resource ResourceType) (Access, error)
}

var modelResource = map[string]ResourceType{
	"product":            ResourceProduct,
	"task":               ResourceProduct,
	"telemetryAttribute": ResourceProduct,
	"license":            ResourceProduct,
	"outcome":            ResourceProduct,
	"release":            ResourceProduct,
	"solution":           ResourceSolution,
	"customer":           ResourceCustomer,
	"customerProduct":    ResourceCustomer,
	"adoptionPlan":       ResourceCustomer,
	"customerTask":       ResourceCustomer,
}

// Filter applies role entitlements to descriptors.
type Filter struct {
	store PermissionStore
	log   *slog.Logger
}

// NewFilter builds a Filter. store may be nil when no USER-role
// accounts exist; USER queries are then denied.
func NewFilter(store PermissionStore, log *slog.Logger) *Filter {
	if log == nil {
		log = slog.Default()
	}
	return &Filter{store: store, log: log}
}

// Apply returns the descriptor with the user's entitlement filter
// merged into its condition tree, or an authorization fault. For
// aggregate queries the model list is reduced to accessible models.
func (f *Filter) Apply(ctx context.Context, user Context, d query.Descriptor) (query.Descriptor, error) {
	if user.Role == RoleAdmin || user.Role == RoleViewer {
		return d, nil
	}

	if d.Op == query.Aggregate {
		return f.applyAggregate(ctx, user, d)
	}

	resource, ok := modelResource[d.Model]
	if !ok {
		return query.Descriptor{}, f.deny(user, fmt.Sprintf("model %q has no permission mapping", d.Model))
	}

	access, err := f.access(ctx, user, resource)
	if err != nil {
		return query.Descriptor{}, err
	}
	if access.All {
		return d, nil
	}
	if len(access.IDs) == 0 {
		return query.Descriptor{}, f.deny(user,
			fmt.Sprintf("no %s access", strings.ToLower(string(resource))))
	}

	scope := scopeCond(d.Model, access.IDs)
	if d.Args.Where != nil {
		merged := query.And(scope, *d.Args.Where)
		d.Args.Where = &merged
	} else {
		d.Args.Where = &scope
	}

	f.log.Debug("rbac filter applied",
		"user", user.UserID,
		"role", user.Role,
		"model", d.Model,
		"scoped_ids", len(access.IDs))
	return d, nil
}

// applyAggregate keeps only models the user can count.
func (f *Filter) applyAggregate(ctx context.Context, user Context, d query.Descriptor) (query.Descriptor, error) {
	allowed := make([]string, 0, len(d.Args.Models))
	for _, model := range d.Args.Models {
		resource, ok := modelResource[model]
		if !ok {
			continue
		}
		access, err := f.access(ctx, user, resource)
		if err != nil {
			continue
		}
		if access.All || len(access.IDs) > 0 {
			allowed = append(allowed, model)
		}
	}
	if len(allowed) == 0 {
		return query.Descriptor{}, f.deny(user, "no access to any of the requested entities")
	}
	d.Args.Models = allowed
	return d, nil
}

// access resolves one resource type for the user's role. SME covers
// the product catalog but not customer data; CSS covers everything a
// read path needs; USER consults the permission store.
func (f *Filter) access(ctx context.Context, user Context, resource ResourceType) (Access, error) {
	switch user.Role {
	case RoleSME:
		if resource == ResourceCustomer {
			return Access{}, nil
		}
		return Access{All: true}, nil
	case RoleCSS:
		return Access{All: true}, nil
	case RoleUser:
		if f.store == nil {
			return Access{}, nil
		}
		access, err := f.store.AccessibleResources(ctx, user.UserID, resource)
		if err != nil {
			return Access{}, fault.Wrap(fault.Persistence, "permission lookup failed", err)
		}
		return access, nil
	}
	return Access{}, nil
}

func (f *Filter) deny(user Context, reason string) error {
	f.log.Warn("query denied", "user", user.UserID, "role", user.Role, "reason", reason)
	e := fault.New(fault.Authorization, reason)
	e.UserMessage = fmt.Sprintf("You don't have permission to access this information. Your role allows: %s.",
		Restrictions(user.Role))
	return e.WithContext("role", string(user.Role))
}

// scopeCond builds the entitlement condition for a model. Child models
// are scoped through their parent chain so a product entitlement also
// bounds tasks and telemetry, and a customer entitlement bounds plans
// and customer tasks.
func scopeCond(model string, ids []string) query.Cond {
	in := func(field string) query.Cond {
		return query.In(field, anySlice(ids)...)
	}
	switch model {
	case "product", "solution", "customer":
		return in("id")
	case "task", "license", "outcome", "release":
		return in("productId")
	case "telemetryAttribute":
		return query.Some("task", in("productId"))
	case "customerProduct":
		return in("customerId")
	case "adoptionPlan":
		return query.Some("customerProduct", in("customerId"))
	case "customerTask":
		return query.Some("adoptionPlan", query.Some("customerProduct", in("customerId")))
	}
	return in("id")
}

func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
