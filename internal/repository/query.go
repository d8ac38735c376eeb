package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

var (
	// ErrUnknownField is returned when a query names a field the entity does not expose.
	ErrUnknownField = errors.New("unknown field")

	// ErrMissingFilter guards update and delete against unscoped statements.
	ErrMissingFilter = errors.New("update and delete require at least one predicate")
)

// Projection is the set of fields a caller asked for, keyed by field name.
// A nil Projection selects every visible field and every declared include.
type Projection struct {
	Fields    []string
	Relations map[string]*Projection
}

// Select builds a flat projection.
func Select(fields ...string) *Projection {
	return &Projection{Fields: fields}
}

// With attaches a nested projection for a relation and returns p.
func (p *Projection) With(relation string, sub *Projection) *Projection {
	if p.Relations == nil {
		p.Relations = make(map[string]*Projection)
	}
	p.Relations[relation] = sub
	return p
}

// Has reports whether field was requested.
func (p *Projection) Has(field string) bool {
	if p == nil {
		return true
	}
	for _, f := range p.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func (p *Projection) wants(relation string) bool {
	if p == nil {
		return true
	}
	_, ok := p.Relations[relation]
	return ok
}

func (p *Projection) relation(name string) *Projection {
	if p == nil {
		return nil
	}
	return p.Relations[name]
}

// Include loads a related entity, optionally ordered, with further includes.
type Include struct {
	Relation string
	Order    []Order
	Include  []Include
}

// Order is one ordering key.
type Order struct {
	Field string
	Desc  bool
}

// Asc orders by field ascending.
func Asc(field string) Order {
	return Order{Field: field}
}

// Desc orders by field descending.
func Desc(field string) Order {
	return Order{Field: field, Desc: true}
}

// Query collects the options recognized by FindOne and FindAll.
type Query struct {
	Where   []Predicate
	Project *Projection
	Include []Include
	Order   []Order
	Limit   int
	Offset  int
}

type predicateOp int

const (
	opEq predicateOp = iota
	opContains
	opOr
)

// Predicate is a filter condition expressed in field names.
type Predicate struct {
	op    predicateOp
	field string
	value any
	any   []Predicate
}

// Eq matches rows whose field equals value. A nil value matches NULL.
func Eq(field string, value any) Predicate {
	return Predicate{op: opEq, field: field, value: value}
}

// Contains matches rows whose field contains substr literally. LIKE
// wildcards in substr are escaped.
func Contains(field, substr string) Predicate {
	return Predicate{op: opContains, field: field, value: "%" + likeEscaper.Replace(substr) + "%"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Or matches rows satisfying any of preds.
func Or(preds ...Predicate) Predicate {
	return Predicate{op: opOr, any: preds}
}

func (p Predicate) expression(e *Entity) (clause.Expression, error) {
	switch p.op {
	case opOr:
		exprs := make([]clause.Expression, 0, len(p.any))
		for _, sub := range p.any {
			expr, err := sub.expression(e)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		return clause.Or(exprs...), nil
	case opContains:
		col, err := e.Column(p.field)
		if err != nil {
			return nil, err
		}
		return clause.Expr{SQL: `? LIKE ? ESCAPE '\'`, Vars: []any{clause.Column{Name: col}, p.value}}, nil
	case opEq:
		col, err := e.Column(p.field)
		if err != nil {
			return nil, err
		}
		return clause.Eq{Column: clause.Column{Name: col}, Value: p.value}, nil
	}
	return nil, fmt.Errorf("unsupported predicate %d", p.op)
}

func (e *Entity) conditions(preds []Predicate) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(preds))
	for _, p := range preds {
		expr, err := p.expression(e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

func (e *Entity) orderBy(orders []Order) ([]clause.OrderByColumn, error) {
	out := make([]clause.OrderByColumn, 0, len(orders))
	for _, o := range orders {
		col, err := e.Column(o.Field)
		if err != nil {
			return nil, err
		}
		out = append(out, clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: o.Desc})
	}
	return out, nil
}

func (e *Entity) values(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for f, v := range fields {
		col, err := e.Column(f)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}
