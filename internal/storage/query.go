package storage

import (
	"context"
	"fmt"
	"strings"

	"adoptiq/internal/catalog"
	"adoptiq/internal/executor"
	"adoptiq/internal/query"
)

// FindMany returns the matching rows with any requested relations
// attached.
func (s *Store) FindMany(ctx context.Context, d query.Descriptor) ([]executor.Row, error) {
	m, err := s.cat.Model(d.Model)
	if err != nil {
		return nil, err
	}

	sqlText, args, err := s.selectSQL(m, d)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", m.Table, err)
	}
	defer rows.Close()

	var out []executor.Row
	for rows.Next() {
		row, err := scanRow(rows, m)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachRelations(ctx, m, d.Args.Include, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindFirst returns the first matching row, or nil without error.
func (s *Store) FindFirst(ctx context.Context, d query.Descriptor) (executor.Row, error) {
	d.Args.Take = 1
	rows, err := s.FindMany(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FindUnique behaves like FindFirst but treats multiple matches as a
// descriptor error.
func (s *Store) FindUnique(ctx context.Context, d query.Descriptor) (executor.Row, error) {
	d.Args.Take = 2
	rows, err := s.FindMany(ctx, d)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}
	return nil, fmt.Errorf("findUnique on %s matched %d rows", d.Model, len(rows))
}

// Count returns the number of matching rows.
func (s *Store) Count(ctx context.Context, d query.Descriptor) (int, error) {
	m, err := s.cat.Model(d.Model)
	if err != nil {
		return 0, err
	}

	c := &compiler{cat: s.cat}
	sqlText := "SELECT COUNT(*) FROM " + m.Table + " t0"
	var args []any
	if d.Args.Where != nil {
		where, whereArgs, err := c.cond(m, *d.Args.Where, "t0")
		if err != nil {
			return 0, err
		}
		sqlText += " WHERE " + where
		args = whereArgs
	}

	var n int
	if err := s.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", m.Table, err)
	}
	return n, nil
}

func (s *Store) selectSQL(m *catalog.Model, d query.Descriptor) (string, []any, error) {
	c := &compiler{cat: s.cat}

	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = "t0." + f.Column
	}
	sqlText := "SELECT " + strings.Join(cols, ", ") + " FROM " + m.Table + " t0"

	var args []any
	if d.Args.Where != nil {
		where, whereArgs, err := c.cond(m, *d.Args.Where, "t0")
		if err != nil {
			return "", nil, err
		}
		sqlText += " WHERE " + where
		args = whereArgs
	}

	order, err := c.orderBy(m, d.Args.OrderBy, "t0")
	if err != nil {
		return "", nil, err
	}
	sqlText += order

	if d.Args.Take > 0 {
		sqlText += " LIMIT ?"
		args = append(args, d.Args.Take)
	}
	return sqlText, args, nil
}

// scanner covers *sql.Rows and *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

// scanRow reads one result row into a map keyed by the catalog's
// camelCase field names.
func scanRow(sc scanner, m *catalog.Model) (executor.Row, error) {
	dest := make([]any, len(m.Fields))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning %s row: %w", m.Table, err)
	}

	row := make(executor.Row, len(m.Fields))
	for i, f := range m.Fields {
		row[f.Name] = fieldValue(f, *dest[i].(*any))
	}
	return row, nil
}

// fieldValue maps driver types onto the catalog type of the field.
// SQLite stores booleans as integers and may return integers for
// decimal columns holding whole numbers.
func fieldValue(f catalog.Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Type {
	case "bool":
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case "int":
		if n, ok := v.(int64); ok {
			return int(n)
		}
	case "decimal", "float":
		switch n := v.(type) {
		case int64:
			return float64(n)
		case float64:
			return n
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// attachRelations loads each included relation for all parents with
// one query per relation.
func (s *Store) attachRelations(ctx context.Context, m *catalog.Model, include []string, parents []executor.Row) error {
	if len(include) == 0 || len(parents) == 0 {
		return nil
	}

	for _, name := range include {
		rel, ok := m.Relation(name)
		if !ok {
			return fmt.Errorf("model %q has no relation %q", m.Name, name)
		}
		target, err := s.cat.Model(rel.Model)
		if err != nil {
			return err
		}

		switch rel.Kind {
		case catalog.HasMany, catalog.HasOne:
			if err := s.attachChildren(ctx, rel, target, parents); err != nil {
				return err
			}
		case catalog.BelongsTo:
			if err := s.attachParent(ctx, m, rel, target, parents); err != nil {
				return err
			}
		case catalog.ManyToMany:
			if err := s.attachJoined(ctx, rel, target, parents); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) attachChildren(ctx context.Context, rel catalog.Relation, target *catalog.Model, parents []executor.Row) error {
	ids := parentIDs(parents, "id")
	if len(ids) == 0 {
		return nil
	}

	cols := make([]string, len(target.Fields))
	for i, f := range target.Fields {
		cols[i] = "t0." + f.Column
	}
	sqlText := fmt.Sprintf("SELECT t0.%s, %s FROM %s t0 WHERE t0.%s IN (%s)",
		rel.ForeignKey, strings.Join(cols, ", "), target.Table, rel.ForeignKey, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, sqlText, ids...)
	if err != nil {
		return fmt.Errorf("loading relation %s: %w", rel.Name, err)
	}
	defer rows.Close()

	byParent := make(map[string][]executor.Row)
	for rows.Next() {
		dest := make([]any, len(target.Fields)+1)
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scanning relation %s: %w", rel.Name, err)
		}
		parentID := asString(*dest[0].(*any))
		row := make(executor.Row, len(target.Fields))
		for i, f := range target.Fields {
			row[f.Name] = fieldValue(f, *dest[i+1].(*any))
		}
		byParent[parentID] = append(byParent[parentID], row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range parents {
		id, _ := p["id"].(string)
		children := byParent[id]
		if rel.Kind == catalog.HasOne {
			if len(children) > 0 {
				p[rel.Name] = children[0]
			} else {
				p[rel.Name] = nil
			}
			continue
		}
		if children == nil {
			children = []executor.Row{}
		}
		p[rel.Name] = children
	}
	return nil
}

func (s *Store) attachParent(ctx context.Context, m *catalog.Model, rel catalog.Relation, target *catalog.Model, parents []executor.Row) error {
	// The FK lives on this model; find its camelCase field name.
	fkField := ""
	for _, f := range m.Fields {
		if f.Column == rel.ForeignKey {
			fkField = f.Name
			break
		}
	}
	if fkField == "" {
		return fmt.Errorf("model %q has no column %q", m.Name, rel.ForeignKey)
	}

	ids := parentIDs(parents, fkField)
	if len(ids) == 0 {
		return nil
	}

	cols := make([]string, len(target.Fields))
	for i, f := range target.Fields {
		cols[i] = "t0." + f.Column
	}
	sqlText := fmt.Sprintf("SELECT %s FROM %s t0 WHERE t0.id IN (%s)",
		strings.Join(cols, ", "), target.Table, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, sqlText, ids...)
	if err != nil {
		return fmt.Errorf("loading relation %s: %w", rel.Name, err)
	}
	defer rows.Close()

	byID := make(map[string]executor.Row)
	for rows.Next() {
		row, err := scanRow(rows, target)
		if err != nil {
			return err
		}
		if id, ok := row["id"].(string); ok {
			byID[id] = row
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range parents {
		if fk, ok := p[fkField].(string); ok {
			if related, ok := byID[fk]; ok {
				p[rel.Name] = related
				continue
			}
		}
		p[rel.Name] = nil
	}
	return nil
}

func (s *Store) attachJoined(ctx context.Context, rel catalog.Relation, target *catalog.Model, parents []executor.Row) error {
	ids := parentIDs(parents, "id")
	if len(ids) == 0 {
		return nil
	}

	cols := make([]string, len(target.Fields))
	for i, f := range target.Fields {
		cols[i] = "t0." + f.Column
	}
	sqlText := fmt.Sprintf(
		"SELECT j.%s, %s FROM %s j JOIN %s t0 ON t0.id = j.%s WHERE j.%s IN (%s)",
		rel.JoinSelf, strings.Join(cols, ", "), rel.JoinTable, target.Table, rel.JoinOther,
		rel.JoinSelf, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, sqlText, ids...)
	if err != nil {
		return fmt.Errorf("loading relation %s: %w", rel.Name, err)
	}
	defer rows.Close()

	byParent := make(map[string][]executor.Row)
	for rows.Next() {
		dest := make([]any, len(target.Fields)+1)
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scanning relation %s: %w", rel.Name, err)
		}
		parentID := asString(*dest[0].(*any))
		row := make(executor.Row, len(target.Fields))
		for i, f := range target.Fields {
			row[f.Name] = fieldValue(f, *dest[i+1].(*any))
		}
		byParent[parentID] = append(byParent[parentID], row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range parents {
		id, _ := p["id"].(string)
		children := byParent[id]
		if children == nil {
			children = []executor.Row{}
		}
		p[rel.Name] = children
	}
	return nil
}

func parentIDs(parents []executor.Row, field string) []any {
	seen := make(map[string]bool, len(parents))
	var ids []any
	for _, p := range parents {
		id, ok := p[field].(string)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func placeholders(n int) string {
	return strings.TrimPrefix(strings.Repeat(", ?", n), ", ")
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprintf("%v", v)
}
