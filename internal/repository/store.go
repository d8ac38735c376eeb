package repository

import (
	"context"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tracerName = "github.com/nailerHeum/AjouNICE/internal/repository"

// Store is the uniform data access contract for one entity type.
// A missing record is not an error: FindOne returns (nil, nil) and the
// mutating calls report zero affected rows.
type Store[T any] interface {
	FindOne(ctx context.Context, q Query) (*T, error)
	FindAll(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, where ...Predicate) (int64, error)
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, values map[string]any, where ...Predicate) (int64, error)
	Increment(ctx context.Context, field string, by int64, where ...Predicate) (int64, error)
	Delete(ctx context.Context, where ...Predicate) (int64, error)
}

type gormStore[T any] struct {
	db     *gorm.DB
	entity *Entity
	tracer trace.Tracer
}

// NewStore creates a Store backed by gorm for the given entity description.
func NewStore[T any](db *gorm.DB, entity *Entity) Store[T] {
	return &gormStore[T]{
		db:     db,
		entity: entity,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *gormStore[T]) FindOne(ctx context.Context, q Query) (*T, error) {
	ctx, span := s.start(ctx, "find_one")
	q.Limit = 1
	tx, err := s.build(ctx, q)
	if err != nil {
		s.end(span, err)
		return nil, err
	}

	var record T
	res := tx.Find(&record)
	if res.Error != nil {
		err := s.wrap("find_one", res.Error)
		s.end(span, err)
		return nil, err
	}
	s.end(span, nil)
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &record, nil
}

func (s *gormStore[T]) FindAll(ctx context.Context, q Query) ([]T, error) {
	ctx, span := s.start(ctx, "find_all")
	tx, err := s.build(ctx, q)
	if err != nil {
		s.end(span, err)
		return nil, err
	}

	records := make([]T, 0)
	if err := tx.Find(&records).Error; err != nil {
		err = s.wrap("find_all", err)
		s.end(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("db.rows", len(records)))
	s.end(span, nil)
	return records, nil
}

func (s *gormStore[T]) Count(ctx context.Context, where ...Predicate) (int64, error) {
	ctx, span := s.start(ctx, "count")
	tx, err := s.scoped(ctx, where, false)
	if err != nil {
		s.end(span, err)
		return 0, err
	}

	var n int64
	if err := tx.Count(&n).Error; err != nil {
		err = s.wrap("count", err)
		s.end(span, err)
		return 0, err
	}
	s.end(span, nil)
	return n, nil
}

func (s *gormStore[T]) Create(ctx context.Context, record *T) error {
	ctx, span := s.start(ctx, "create")
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error
	if err != nil {
		err = s.wrap("create", err)
	}
	s.end(span, err)
	return err
}

func (s *gormStore[T]) Update(ctx context.Context, values map[string]any, where ...Predicate) (int64, error) {
	ctx, span := s.start(ctx, "update")
	cols, err := s.entity.values(values)
	if err != nil {
		s.end(span, err)
		return 0, err
	}
	tx, err := s.scoped(ctx, where, true)
	if err != nil {
		s.end(span, err)
		return 0, err
	}

	res := tx.Updates(cols)
	if res.Error != nil {
		err := s.wrap("update", res.Error)
		s.end(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", res.RowsAffected))
	s.end(span, nil)
	return res.RowsAffected, nil
}

// Increment adds by to a numeric column in a single statement, so concurrent
// increments never overwrite each other.
func (s *gormStore[T]) Increment(ctx context.Context, field string, by int64, where ...Predicate) (int64, error) {
	ctx, span := s.start(ctx, "increment")
	col, err := s.entity.Column(field)
	if err != nil {
		s.end(span, err)
		return 0, err
	}
	tx, err := s.scoped(ctx, where, true)
	if err != nil {
		s.end(span, err)
		return 0, err
	}

	res := tx.UpdateColumn(col, gorm.Expr("? + ?", clause.Column{Name: col}, by))
	if res.Error != nil {
		err := s.wrap("increment", res.Error)
		s.end(span, err)
		return 0, err
	}
	s.end(span, nil)
	return res.RowsAffected, nil
}

func (s *gormStore[T]) Delete(ctx context.Context, where ...Predicate) (int64, error) {
	ctx, span := s.start(ctx, "delete")
	if len(where) == 0 {
		s.end(span, ErrMissingFilter)
		return 0, ErrMissingFilter
	}
	exprs, err := s.entity.conditions(where)
	if err != nil {
		s.end(span, err)
		return 0, err
	}

	tx := s.db.WithContext(ctx)
	for _, expr := range exprs {
		tx = tx.Where(expr)
	}
	res := tx.Delete(new(T))
	if res.Error != nil {
		err := s.wrap("delete", res.Error)
		s.end(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", res.RowsAffected))
	s.end(span, nil)
	return res.RowsAffected, nil
}

func (s *gormStore[T]) scoped(ctx context.Context, where []Predicate, required bool) (*gorm.DB, error) {
	if required && len(where) == 0 {
		return nil, ErrMissingFilter
	}
	exprs, err := s.entity.conditions(where)
	if err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx).Model(new(T))
	for _, expr := range exprs {
		tx = tx.Where(expr)
	}
	return tx, nil
}

func (s *gormStore[T]) build(ctx context.Context, q Query) (*gorm.DB, error) {
	tx, err := s.scoped(ctx, q.Where, false)
	if err != nil {
		return nil, err
	}
	tx = tx.Select(s.entity.columns(q.Project, q.Include))

	orders, err := s.entity.orderBy(q.Order)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		tx = tx.Order(o)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return s.entity.preload(tx, "", q.Project, q.Include)
}

// preload attaches each requested include, recursing into nested includes.
// Relations the caller did not ask for are skipped entirely.
func (e *Entity) preload(tx *gorm.DB, prefix string, p *Projection, includes []Include) (*gorm.DB, error) {
	for _, inc := range includes {
		rel, ok := e.relations[inc.Relation]
		if !ok {
			return nil, ErrUnknownField
		}
		if !p.wants(inc.Relation) {
			continue
		}

		sub := p.relation(inc.Relation)
		path := rel.association
		if prefix != "" {
			path = prefix + "." + rel.association
		}

		cols := rel.target.columns(sub, inc.Include)
		cols = appendMissing(cols, rel.targetKey)
		orders, err := rel.target.orderBy(inc.Order)
		if err != nil {
			return nil, err
		}

		tx = tx.Preload(path, func(db *gorm.DB) *gorm.DB {
			db = db.Select(cols)
			for _, o := range orders {
				db = db.Order(o)
			}
			return db
		})

		tx, err = rel.target.preload(tx, path, sub, inc.Include)
		if err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func appendMissing(cols []string, col string) []string {
	for _, c := range cols {
		if c == col {
			return cols
		}
	}
	return append(cols, col)
}

func (s *gormStore[T]) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "repository."+op, trace.WithAttributes(
		attribute.String("db.entity", s.entity.Name),
		attribute.String("db.operation", op),
	))
}

func (s *gormStore[T]) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *gormStore[T]) wrap(op string, err error) error {
	return &apperrors.StoreError{Op: op, Entity: s.entity.Name, Err: err}
}
