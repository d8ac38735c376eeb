package graph

import (
	"bytes"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// introspect writes a __schema or __type root field. Nothing is written
// when it fails.
func (e *executableSchema) introspect(buf *bytes.Buffer, opCtx *graphql.OperationContext, f graphql.CollectedField) error {
	if opCtx.DisableIntrospection {
		return &gqlerror.Error{Message: "introspection disabled"}
	}
	w := &introspectionWriter{opCtx: opCtx, buf: buf}

	if f.Name == "__schema" {
		w.schema(e.meta, f.Selections)
		return nil
	}

	name, err := stringArg(f.ArgumentMap(opCtx.Variables), "name")
	if err != nil {
		return err
	}
	def := e.schema.Types[name]
	if def == nil {
		buf.WriteString("null")
		return nil
	}
	w.typ(introspection.WrapTypeFromDef(e.schema, def), f.Selections)
	return nil
}

// introspectionWriter renders the meta types field by field from the
// selection set, the way generated executors do.
type introspectionWriter struct {
	opCtx *graphql.OperationContext
	buf   *bytes.Buffer
}

func (w *introspectionWriter) object(sel ast.SelectionSet, typeName string, field func(f graphql.CollectedField)) {
	w.buf.WriteByte('{')
	for i, f := range graphql.CollectFields(w.opCtx, sel, []string{typeName}) {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		writeKey(w.buf, f.Alias)
		if f.Name == "__typename" {
			writeJSON(w.buf, typeName)
			continue
		}
		field(f)
	}
	w.buf.WriteByte('}')
}

func (w *introspectionWriter) list(n int, isNil bool, item func(i int)) {
	if isNil {
		w.buf.WriteString("null")
		return
	}
	w.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		item(i)
	}
	w.buf.WriteByte(']')
}

func (w *introspectionWriter) schema(s *introspection.Schema, sel ast.SelectionSet) {
	w.object(sel, "__Schema", func(f graphql.CollectedField) {
		switch f.Name {
		case "description":
			writeJSON(w.buf, s.Description())
		case "types":
			types := s.Types()
			w.list(len(types), types == nil, func(i int) { w.typ(&types[i], f.Selections) })
		case "queryType":
			w.typ(s.QueryType(), f.Selections)
		case "mutationType":
			w.typ(s.MutationType(), f.Selections)
		case "subscriptionType":
			w.typ(s.SubscriptionType(), f.Selections)
		case "directives":
			directives := s.Directives()
			w.list(len(directives), directives == nil, func(i int) { w.directive(&directives[i], f.Selections) })
		default:
			w.buf.WriteString("null")
		}
	})
}

func (w *introspectionWriter) typ(t *introspection.Type, sel ast.SelectionSet) {
	if t == nil {
		w.buf.WriteString("null")
		return
	}
	w.object(sel, "__Type", func(f graphql.CollectedField) {
		switch f.Name {
		case "kind":
			writeJSON(w.buf, t.Kind())
		case "name":
			writeJSON(w.buf, t.Name())
		case "description":
			writeJSON(w.buf, t.Description())
		case "specifiedByURL":
			writeJSON(w.buf, t.SpecifiedByURL())
		case "isOneOf":
			writeJSON(w.buf, t.IsOneOf())
		case "fields":
			fields := t.Fields(w.includeDeprecated(f))
			w.list(len(fields), fields == nil, func(i int) { w.field(&fields[i], f.Selections) })
		case "inputFields":
			inputs := t.InputFields()
			w.list(len(inputs), inputs == nil, func(i int) { w.inputValue(&inputs[i], f.Selections) })
		case "interfaces":
			types := t.Interfaces()
			w.list(len(types), types == nil, func(i int) { w.typ(&types[i], f.Selections) })
		case "possibleTypes":
			types := t.PossibleTypes()
			w.list(len(types), types == nil, func(i int) { w.typ(&types[i], f.Selections) })
		case "enumValues":
			values := t.EnumValues(w.includeDeprecated(f))
			w.list(len(values), values == nil, func(i int) { w.enumValue(&values[i], f.Selections) })
		case "ofType":
			w.typ(t.OfType(), f.Selections)
		default:
			w.buf.WriteString("null")
		}
	})
}

func (w *introspectionWriter) field(fd *introspection.Field, sel ast.SelectionSet) {
	w.object(sel, "__Field", func(f graphql.CollectedField) {
		switch f.Name {
		case "name":
			writeJSON(w.buf, fd.Name)
		case "description":
			writeJSON(w.buf, fd.Description())
		case "args":
			w.list(len(fd.Args), false, func(i int) { w.inputValue(&fd.Args[i], f.Selections) })
		case "type":
			w.typ(fd.Type, f.Selections)
		case "isDeprecated":
			writeJSON(w.buf, fd.IsDeprecated())
		case "deprecationReason":
			writeJSON(w.buf, fd.DeprecationReason())
		default:
			w.buf.WriteString("null")
		}
	})
}

func (w *introspectionWriter) inputValue(v *introspection.InputValue, sel ast.SelectionSet) {
	w.object(sel, "__InputValue", func(f graphql.CollectedField) {
		switch f.Name {
		case "name":
			writeJSON(w.buf, v.Name)
		case "description":
			writeJSON(w.buf, v.Description())
		case "type":
			w.typ(v.Type, f.Selections)
		case "defaultValue":
			writeJSON(w.buf, v.DefaultValue)
		case "isDeprecated":
			writeJSON(w.buf, false)
		default:
			w.buf.WriteString("null")
		}
	})
}

func (w *introspectionWriter) enumValue(v *introspection.EnumValue, sel ast.SelectionSet) {
	w.object(sel, "__EnumValue", func(f graphql.CollectedField) {
		switch f.Name {
		case "name":
			writeJSON(w.buf, v.Name)
		case "description":
			writeJSON(w.buf, v.Description())
		case "isDeprecated":
			writeJSON(w.buf, v.IsDeprecated())
		case "deprecationReason":
			writeJSON(w.buf, v.DeprecationReason())
		default:
			w.buf.WriteString("null")
		}
	})
}

func (w *introspectionWriter) directive(d *introspection.Directive, sel ast.SelectionSet) {
	w.object(sel, "__Directive", func(f graphql.CollectedField) {
		switch f.Name {
		case "name":
			writeJSON(w.buf, d.Name)
		case "description":
			writeJSON(w.buf, d.Description())
		case "locations":
			writeJSON(w.buf, d.Locations)
		case "args":
			w.list(len(d.Args), false, func(i int) { w.inputValue(&d.Args[i], f.Selections) })
		case "isRepeatable":
			writeJSON(w.buf, d.IsRepeatable)
		default:
			w.buf.WriteString("null")
		}
	})
}

func (w *introspectionWriter) includeDeprecated(f graphql.CollectedField) bool {
	include, _ := f.ArgumentMap(w.opCtx.Variables)["includeDeprecated"].(bool)
	return include
}
