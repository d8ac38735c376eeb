package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nailerHeum/AjouNICE/internal/metrics"
	"github.com/nailerHeum/AjouNICE/internal/models"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/resolver"
)

// fieldContext is what a root field resolver sees.
type fieldContext struct {
	op    *graphql.OperationContext
	field graphql.CollectedField
	args  map[string]any
	// project returns the data access projection for the field's selection.
	project func() *repository.Projection
}

var tracer = otel.Tracer("github.com/nailerHeum/AjouNICE/internal/graph")

type rootField func(ctx context.Context, fc fieldContext) (any, error)

type subscriptionField func(ctx context.Context, postIdx *int64) (<-chan *models.Comment, error)

type executableSchema struct {
	schema        *ast.Schema
	logger        *slog.Logger
	metrics       *metrics.Metrics
	queries       map[string]rootField
	mutations     map[string]rootField
	subscriptions map[string]subscriptionField
	meta          *introspection.Schema
}

var _ graphql.ExecutableSchema = (*executableSchema)(nil)

// NewExecutableSchema binds the schema's root fields to r.
func NewExecutableSchema(schema *ast.Schema, r *resolver.Resolver, logger *slog.Logger, m *metrics.Metrics) graphql.ExecutableSchema {
	if logger == nil {
		logger = slog.Default()
	}
	return &executableSchema{
		schema:        schema,
		logger:        logger,
		metrics:       m,
		queries:       queryFields(r),
		mutations:     mutationFields(r),
		subscriptions: subscriptionFields(r),
		meta:          introspection.WrapSchema(schema),
	}
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, fieldName string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)

	switch opCtx.Operation.Operation {
	case ast.Query:
		return graphql.OneShot(e.execRoot(ctx, opCtx, e.schema.Query, e.queries))
	case ast.Mutation:
		if e.schema.Mutation == nil {
			return graphql.OneShot(graphql.ErrorResponse(ctx, "mutations are not supported"))
		}
		return graphql.OneShot(e.execRoot(ctx, opCtx, e.schema.Mutation, e.mutations))
	case ast.Subscription:
		if e.schema.Subscription == nil {
			return graphql.OneShot(graphql.ErrorResponse(ctx, "subscriptions are not supported"))
		}
		return e.execSubscription(ctx, opCtx)
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported operation"))
	}
}

// execRoot resolves root fields in document order. A failed field renders
// as null and contributes one error; the remaining fields still run.
func (e *executableSchema) execRoot(ctx context.Context, opCtx *graphql.OperationContext, root *ast.Definition, fields map[string]rootField) *graphql.Response {
	var (
		buf  bytes.Buffer
		errs gqlerror.List
	)
	r := &renderer{schema: e.schema, opCtx: opCtx}

	buf.WriteByte('{')
	for i, f := range graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{root.Name}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, f.Alias)

		if f.Name == "__schema" || f.Name == "__type" {
			if err := e.introspect(&buf, opCtx, f); err != nil {
				errs = append(errs, mapError(e.logger, err, f.Name, ast.Path{ast.PathName(f.Alias)}))
				buf.WriteString("null")
			}
			continue
		}

		value, err := e.resolveRoot(ctx, opCtx, root, f, fields)
		if err != nil {
			errs = append(errs, mapError(e.logger, err, f.Name, ast.Path{ast.PathName(f.Alias)}))
			buf.WriteString("null")
			continue
		}
		if f.Name == "__typename" {
			writeJSON(&buf, root.Name)
			continue
		}
		r.value(&buf, value, f.Definition.Type, f.Selections)
	}
	buf.WriteByte('}')

	return &graphql.Response{Data: buf.Bytes(), Errors: errs}
}

func (e *executableSchema) resolveRoot(ctx context.Context, opCtx *graphql.OperationContext, root *ast.Definition, f graphql.CollectedField, fields map[string]rootField) (value any, err error) {
	if f.Name == "__typename" {
		return nil, nil
	}

	resolve, ok := fields[f.Name]
	if !ok {
		return nil, fmt.Errorf("no resolver for %s.%s", root.Name, f.Name)
	}

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("panic in resolver", "field", f.Name, "panic", p)
			value, err = nil, fmt.Errorf("panic in %s: %v", f.Name, p)
		}
	}()

	fc := fieldContext{
		op:    opCtx,
		field: f,
		args:  f.ArgumentMap(opCtx.Variables),
		project: func() *repository.Projection {
			return e.projection(opCtx, f.Selections, f.Definition.Type.Name())
		},
	}

	ctx, span := tracer.Start(ctx, "graphql."+f.Name, trace.WithAttributes(
		attribute.String("graphql.operation.type", string(opCtx.Operation.Operation)),
		attribute.String("graphql.field", f.Name),
	))
	defer span.End()

	start := time.Now()
	result, err := resolve(ctx, fc)
	e.metrics.ObserveOperation(f.Name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return toTree(result)
}

// projection mirrors a selection set as a data access projection: object
// typed fields become relations, everything else a plain field.
func (e *executableSchema) projection(opCtx *graphql.OperationContext, sel ast.SelectionSet, typeName string) *repository.Projection {
	p := &repository.Projection{}
	for _, f := range graphql.CollectFields(opCtx, sel, []string{typeName}) {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		named := f.Definition.Type.Name()
		if def := e.schema.Types[named]; def != nil && def.Kind == ast.Object {
			p.With(f.Name, e.projection(opCtx, f.Selections, named))
			continue
		}
		p.Fields = append(p.Fields, f.Name)
	}
	return p
}

func (e *executableSchema) execSubscription(ctx context.Context, opCtx *graphql.OperationContext) graphql.ResponseHandler {
	fields := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{e.schema.Subscription.Name})
	if len(fields) != 1 {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "subscriptions must select exactly one field"))
	}
	f := fields[0]
	path := ast.Path{ast.PathName(f.Alias)}

	subscribe, ok := e.subscriptions[f.Name]
	if !ok {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unknown subscription %s", f.Name))
	}

	postIdx, err := optionalInt(f.ArgumentMap(opCtx.Variables), "post_idx")
	if err == nil {
		var stream <-chan *models.Comment
		stream, err = subscribe(ctx, postIdx)
		if err == nil {
			return e.streamResponses(opCtx, f, stream)
		}
	}
	return graphql.OneShot(&graphql.Response{
		Data:   json.RawMessage("null"),
		Errors: gqlerror.List{mapError(e.logger, err, f.Name, path)},
	})
}

// streamResponses renders one payload per event. It returns nil once the
// stream closes, which ends the subscription.
func (e *executableSchema) streamResponses(opCtx *graphql.OperationContext, f graphql.CollectedField, stream <-chan *models.Comment) graphql.ResponseHandler {
	r := &renderer{schema: e.schema, opCtx: opCtx}
	return func(ctx context.Context) *graphql.Response {
		var comment *models.Comment
		select {
		case c, ok := <-stream:
			if !ok {
				return nil
			}
			comment = c
		case <-ctx.Done():
			return nil
		}

		value, err := toTree(comment)
		if err != nil {
			return &graphql.Response{
				Data:   json.RawMessage("null"),
				Errors: gqlerror.List{mapError(e.logger, err, f.Name, ast.Path{ast.PathName(f.Alias)})},
			}
		}

		var buf bytes.Buffer
		buf.WriteByte('{')
		writeKey(&buf, f.Alias)
		r.value(&buf, value, f.Definition.Type, f.Selections)
		buf.WriteByte('}')
		return &graphql.Response{Data: buf.Bytes()}
	}
}
