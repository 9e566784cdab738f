package catalog

import (
	"fmt"

	"adoptiq/internal/query"
)

// Validate checks a descriptor against the catalog: the operation must
// be a known read, the model must exist, and every field and relation
// referenced by the condition tree, ordering and includes must be
// declared. Generated descriptors go through this before execution.
func (c *Catalog) Validate(d query.Descriptor) error {
	if !d.Op.Valid() {
		return fmt.Errorf("unsupported operation %q", d.Op)
	}

	if d.Op == query.Aggregate {
		models := d.Args.Models
		if len(models) == 0 {
			models = c.Models()
		}
		for _, name := range models {
			if _, err := c.Model(name); err != nil {
				return err
			}
		}
		return nil
	}

	m, err := c.Model(d.Model)
	if err != nil {
		return err
	}

	if d.Args.Where != nil {
		if err := c.validateCond(m, *d.Args.Where); err != nil {
			return err
		}
	}
	for _, o := range d.Args.OrderBy {
		if _, ok := m.Field(o.Field); !ok {
			return fmt.Errorf("model %q has no field %q to order by", m.Name, o.Field)
		}
	}
	for _, inc := range d.Args.Include {
		if _, ok := m.Relation(inc); !ok {
			return fmt.Errorf("model %q has no relation %q to include", m.Name, inc)
		}
	}
	if d.Args.Take < 0 {
		return fmt.Errorf("take must not be negative, got %d", d.Args.Take)
	}
	return nil
}

func (c *Catalog) validateCond(m *Model, cond query.Cond) error {
	switch cond.Kind {
	case query.KindEq, query.KindNe, query.KindLt, query.KindLte, query.KindGt, query.KindGte,
		query.KindContains, query.KindIn, query.KindIsNull, query.KindNotNull:
		if _, ok := m.Field(cond.Field); !ok {
			return fmt.Errorf("model %q has no field %q", m.Name, cond.Field)
		}
		return nil
	case query.KindAnd, query.KindOr:
		for _, sub := range cond.Sub {
			if err := c.validateCond(m, sub); err != nil {
				return err
			}
		}
		return nil
	case query.KindNot:
		return c.validateCond(m, cond.Inner())
	case query.KindSome, query.KindNone:
		rel, ok := m.Relation(cond.Relation)
		if !ok {
			return fmt.Errorf("model %q has no relation %q", m.Name, cond.Relation)
		}
		related, err := c.Model(rel.Model)
		if err != nil {
			return err
		}
		return c.validateCond(related, cond.Inner())
	default:
		return fmt.Errorf("unknown condition kind %q", cond.Kind)
	}
}
