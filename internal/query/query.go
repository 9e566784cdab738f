// Package query defines the intermediate representation for database
// queries. Both the template matcher and the LLM generator produce a
// Descriptor; the permission filter rewrites it and the executor runs
// it. Conditions form a small closed algebra so that every stage can
// inspect and transform them without string parsing.
package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op is a read-only query operation.
type Op string

const (
	FindMany   Op = "findMany"
	FindUnique Op = "findUnique"
	FindFirst  Op = "findFirst"
	Count      Op = "count"
	Aggregate  Op = "aggregate"
)

var validOps = map[Op]bool{
	FindMany:   true,
	FindUnique: true,
	FindFirst:  true,
	Count:      true,
	Aggregate:  true,
}

// Valid reports whether op is one of the supported read operations.
func (op Op) Valid() bool { return validOps[op] }

// Descriptor is a complete, executable query: a model, an operation and
// the operation's arguments.
type Descriptor struct {
	Model string `json:"model"`
	Op    Op     `json:"operation"`
	Args  Args   `json:"args"`
}

// Order is a single ordering directive. Desc false means ascending.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Args holds the arguments of a query. Models is only used by the
// aggregate operation, which counts several models at once.
type Args struct {
	Where   *Cond    `json:"where,omitempty"`
	OrderBy []Order  `json:"orderBy,omitempty"`
	Take    int      `json:"take,omitempty"`
	Include []string `json:"include,omitempty"`
	Models  []string `json:"models,omitempty"`
}

// Kind discriminates the condition union.
type Kind string

const (
	KindEq       Kind = "eq"
	KindNe       Kind = "ne"
	KindLt       Kind = "lt"
	KindLte      Kind = "lte"
	KindGt       Kind = "gt"
	KindGte      Kind = "gte"
	KindContains Kind = "contains"
	KindIn       Kind = "in"
	KindIsNull   Kind = "isNull"
	KindNotNull  Kind = "notNull"
	KindAnd      Kind = "and"
	KindOr       Kind = "or"
	KindNot      Kind = "not"
	KindSome     Kind = "some"
	KindNone     Kind = "none"
)

// Cond is one node of a condition tree. Exactly one group of fields is
// meaningful per Kind: comparison kinds use Field and Value (In uses
// Values), relation kinds use Relation and Sub[0], and logical kinds
// use Sub.
type Cond struct {
	Kind     Kind
	Field    string
	Value    any
	Values   []any
	Relation string
	Sub      []Cond
}

// Comparison constructors.

func Eq(field string, value any) Cond  { return Cond{Kind: KindEq, Field: field, Value: value} }
func Ne(field string, value any) Cond  { return Cond{Kind: KindNe, Field: field, Value: value} }
func Lt(field string, value any) Cond  { return Cond{Kind: KindLt, Field: field, Value: value} }
func Lte(field string, value any) Cond { return Cond{Kind: KindLte, Field: field, Value: value} }
func Gt(field string, value any) Cond  { return Cond{Kind: KindGt, Field: field, Value: value} }
func Gte(field string, value any) Cond { return Cond{Kind: KindGte, Field: field, Value: value} }

// Contains matches substrings case-insensitively.
func Contains(field, value string) Cond {
	return Cond{Kind: KindContains, Field: field, Value: value}
}

func In(field string, values ...any) Cond {
	return Cond{Kind: KindIn, Field: field, Values: values}
}

func IsNull(field string) Cond  { return Cond{Kind: KindIsNull, Field: field} }
func NotNull(field string) Cond { return Cond{Kind: KindNotNull, Field: field} }

// Logical constructors. And and Or flatten single-child trees so that
// filter composition never produces needless nesting.

func And(conds ...Cond) Cond {
	if len(conds) == 1 {
		return conds[0]
	}
	return Cond{Kind: KindAnd, Sub: conds}
}

func Or(conds ...Cond) Cond {
	if len(conds) == 1 {
		return conds[0]
	}
	return Cond{Kind: KindOr, Sub: conds}
}

func Not(cond Cond) Cond { return Cond{Kind: KindNot, Sub: []Cond{cond}} }

// Some matches rows where at least one related row satisfies cond.
func Some(relation string, cond Cond) Cond {
	return Cond{Kind: KindSome, Relation: relation, Sub: []Cond{cond}}
}

// None matches rows where no related row satisfies cond.
func None(relation string, cond Cond) Cond {
	return Cond{Kind: KindNone, Relation: relation, Sub: []Cond{cond}}
}

// Inner returns the child condition of a relation or Not node.
func (c Cond) Inner() Cond {
	if len(c.Sub) == 0 {
		return Cond{}
	}
	return c.Sub[0]
}

type condJSON struct {
	Op       string          `json:"op"`
	Field    string          `json:"field,omitempty"`
	Value    any             `json:"value,omitempty"`
	Values   []any           `json:"values,omitempty"`
	Relation string          `json:"relation,omitempty"`
	Cond     *Cond           `json:"cond,omitempty"`
	Conds    []Cond          `json:"conds,omitempty"`
}

// MarshalJSON renders the condition in the wire form the generator
// prompt documents, e.g. {"op":"lt","field":"weight","value":30} or
// {"op":"some","relation":"tasks","cond":{...}}.
func (c Cond) MarshalJSON() ([]byte, error) {
	out := condJSON{Op: string(c.Kind)}
	switch c.Kind {
	case KindEq, KindNe, KindLt, KindLte, KindGt, KindGte, KindContains:
		out.Field = c.Field
		out.Value = c.Value
	case KindIn:
		out.Field = c.Field
		out.Values = c.Values
		if out.Values == nil {
			out.Values = []any{}
		}
	case KindIsNull, KindNotNull:
		out.Field = c.Field
	case KindAnd, KindOr:
		out.Conds = c.Sub
		if out.Conds == nil {
			out.Conds = []Cond{}
		}
	case KindNot, KindSome, KindNone:
		if len(c.Sub) != 1 {
			return nil, fmt.Errorf("condition %q requires exactly one child", c.Kind)
		}
		if c.Kind != KindNot {
			out.Relation = c.Relation
		}
		sub := c.Sub[0]
		out.Cond = &sub
	default:
		return nil, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the wire form produced by MarshalJSON and
// validates the shape of every node.
func (c *Cond) UnmarshalJSON(data []byte) error {
	var in condJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse condition: %w", err)
	}

	kind := Kind(in.Op)
	switch kind {
	case KindEq, KindNe, KindLt, KindLte, KindGt, KindGte, KindContains:
		if in.Field == "" {
			return fmt.Errorf("condition %q requires a field", kind)
		}
		*c = Cond{Kind: kind, Field: in.Field, Value: in.Value}
	case KindIn:
		if in.Field == "" {
			return fmt.Errorf("condition %q requires a field", kind)
		}
		*c = Cond{Kind: kind, Field: in.Field, Values: in.Values}
	case KindIsNull, KindNotNull:
		if in.Field == "" {
			return fmt.Errorf("condition %q requires a field", kind)
		}
		*c = Cond{Kind: kind, Field: in.Field}
	case KindAnd, KindOr:
		*c = Cond{Kind: kind, Sub: in.Conds}
	case KindNot:
		if in.Cond == nil {
			return fmt.Errorf("condition %q requires a child condition", kind)
		}
		*c = Cond{Kind: kind, Sub: []Cond{*in.Cond}}
	case KindSome, KindNone:
		if in.Relation == "" {
			return fmt.Errorf("condition %q requires a relation", kind)
		}
		if in.Cond == nil {
			return fmt.Errorf("condition %q requires a child condition", kind)
		}
		*c = Cond{Kind: kind, Relation: in.Relation, Sub: []Cond{*in.Cond}}
	default:
		return fmt.Errorf("unknown condition operator %q", in.Op)
	}
	return nil
}

// Walk visits every node of the condition tree in depth-first order,
// stopping early if fn returns false.
func (c Cond) Walk(fn func(Cond) bool) bool {
	if !fn(c) {
		return false
	}
	for _, sub := range c.Sub {
		if !sub.Walk(fn) {
			return false
		}
	}
	return true
}

// String renders a compact human-readable form used in answers and logs.
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.Model)
	b.WriteByte('.')
	b.WriteString(string(d.Op))
	if d.Args.Where != nil {
		b.WriteString(" where ")
		b.WriteString(d.Args.Where.String())
	}
	if d.Args.Take > 0 {
		fmt.Fprintf(&b, " take %d", d.Args.Take)
	}
	return b.String()
}

// String renders the condition tree for logs and the Query field of a
// Response.
func (c Cond) String() string {
	switch c.Kind {
	case KindEq, KindNe, KindLt, KindLte, KindGt, KindGte, KindContains:
		return fmt.Sprintf("%s %s %v", c.Field, c.Kind, c.Value)
	case KindIn:
		return fmt.Sprintf("%s in %v", c.Field, c.Values)
	case KindIsNull:
		return c.Field + " is null"
	case KindNotNull:
		return c.Field + " is not null"
	case KindAnd, KindOr:
		parts := make([]string, len(c.Sub))
		for i, sub := range c.Sub {
			parts[i] = sub.String()
		}
		return "(" + strings.Join(parts, " "+string(c.Kind)+" ") + ")"
	case KindNot:
		return "not (" + c.Inner().String() + ")"
	case KindSome, KindNone:
		return fmt.Sprintf("%s(%s: %s)", c.Kind, c.Relation, c.Inner().String())
	}
	return string(c.Kind)
}
