package storage

import (
	"fmt"
	"strings"

	"adoptiq/internal/catalog"
	"adoptiq/internal/query"
)

// compiler turns a condition tree into a parameterized WHERE clause.
// Aliases are numbered per compilation so nested EXISTS subqueries
// never collide.
type compiler struct {
	cat *catalog.Catalog
	n   int
}

func (c *compiler) nextAlias() string {
	c.n++
	return fmt.Sprintf("t%d", c.n)
}

// cond compiles one node against the rows of model m bound to alias.
func (c *compiler) cond(m *catalog.Model, node query.Cond, alias string) (string, []any, error) {
	switch node.Kind {
	case query.KindEq, query.KindNe, query.KindLt, query.KindLte, query.KindGt, query.KindGte:
		return c.comparison(m, node, alias)
	case query.KindContains:
		col, err := c.column(m, node.Field, alias)
		if err != nil {
			return "", nil, err
		}
		pattern := "%" + escapeLike(fmt.Sprintf("%v", node.Value)) + "%"
		return col + ` LIKE ? ESCAPE '\'`, []any{pattern}, nil
	case query.KindIn:
		col, err := c.column(m, node.Field, alias)
		if err != nil {
			return "", nil, err
		}
		if len(node.Values) == 0 {
			// IN () matches nothing.
			return "1 = 0", nil, nil
		}
		placeholders := strings.Repeat(", ?", len(node.Values))[2:]
		return col + " IN (" + placeholders + ")", append([]any{}, node.Values...), nil
	case query.KindIsNull:
		col, err := c.column(m, node.Field, alias)
		if err != nil {
			return "", nil, err
		}
		return col + " IS NULL", nil, nil
	case query.KindNotNull:
		col, err := c.column(m, node.Field, alias)
		if err != nil {
			return "", nil, err
		}
		return col + " IS NOT NULL", nil, nil
	case query.KindAnd, query.KindOr:
		return c.logical(m, node, alias)
	case query.KindNot:
		sql, args, err := c.cond(m, node.Inner(), alias)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	case query.KindSome, query.KindNone:
		return c.related(m, node, alias)
	}
	return "", nil, fmt.Errorf("unsupported condition %q", node.Kind)
}

var comparisonOps = map[query.Kind]string{
	query.KindEq:  "=",
	query.KindNe:  "<>",
	query.KindLt:  "<",
	query.KindLte: "<=",
	query.KindGt:  ">",
	query.KindGte: ">=",
}

func (c *compiler) comparison(m *catalog.Model, node query.Cond, alias string) (string, []any, error) {
	col, err := c.column(m, node.Field, alias)
	if err != nil {
		return "", nil, err
	}
	if node.Value == nil {
		switch node.Kind {
		case query.KindEq:
			return col + " IS NULL", nil, nil
		case query.KindNe:
			return col + " IS NOT NULL", nil, nil
		}
		return "", nil, fmt.Errorf("cannot compare %q against null", node.Field)
	}
	return col + " " + comparisonOps[node.Kind] + " ?", []any{bindValue(node.Value)}, nil
}

func (c *compiler) logical(m *catalog.Model, node query.Cond, alias string) (string, []any, error) {
	if len(node.Sub) == 0 {
		return "1 = 1", nil, nil
	}
	joiner := " AND "
	if node.Kind == query.KindOr {
		joiner = " OR "
	}

	parts := make([]string, 0, len(node.Sub))
	var args []any
	for _, sub := range node.Sub {
		sql, subArgs, err := c.cond(m, sub, alias)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, subArgs...)
	}
	return strings.Join(parts, joiner), args, nil
}

// related compiles Some and None as (NOT) EXISTS subqueries.
func (c *compiler) related(m *catalog.Model, node query.Cond, alias string) (string, []any, error) {
	rel, ok := m.Relation(node.Relation)
	if !ok {
		return "", nil, fmt.Errorf("model %q has no relation %q", m.Name, node.Relation)
	}
	target, err := c.cat.Model(rel.Model)
	if err != nil {
		return "", nil, err
	}

	sub := c.nextAlias()
	inner, args, err := c.cond(target, node.Inner(), sub)
	if err != nil {
		return "", nil, err
	}

	var exists string
	switch rel.Kind {
	case catalog.HasMany, catalog.HasOne:
		exists = fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.id AND (%s))",
			target.Table, sub, sub, rel.ForeignKey, alias, inner)
	case catalog.BelongsTo:
		exists = fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.id = %s.%s AND (%s))",
			target.Table, sub, sub, alias, rel.ForeignKey, inner)
	case catalog.ManyToMany:
		join := c.nextAlias()
		exists = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s %s JOIN %s %s ON %s.id = %s.%s WHERE %s.%s = %s.id AND (%s))",
			rel.JoinTable, join, target.Table, sub, sub, join, rel.JoinOther, join, rel.JoinSelf, alias, inner)
	default:
		return "", nil, fmt.Errorf("unsupported relation kind %q", rel.Kind)
	}

	if node.Kind == query.KindNone {
		return "NOT " + exists, args, nil
	}
	return exists, args, nil
}

func (c *compiler) column(m *catalog.Model, field, alias string) (string, error) {
	f, ok := m.Field(field)
	if !ok {
		return "", fmt.Errorf("model %q has no field %q", m.Name, field)
	}
	return alias + "." + f.Column, nil
}

// orderBy renders the ORDER BY clause, empty when no ordering is set.
func (c *compiler) orderBy(m *catalog.Model, orders []query.Order, alias string) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		col, err := c.column(m, o.Field, alias)
		if err != nil {
			return "", err
		}
		if o.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// bindValue converts condition values to driver-friendly types.
func bindValue(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	}
	return v
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
