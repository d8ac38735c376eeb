package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

// toTree turns a resolver result into maps, slices and json.Number values
// keyed by the json names of the model fields.
func toTree(v any) (any, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return decodeTree(raw)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return decodeTree(raw)
}

func decodeTree(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}

// renderer writes exactly the selected fields, in selection order and
// under their aliases.
type renderer struct {
	schema *ast.Schema
	opCtx  *graphql.OperationContext
}

func (r *renderer) value(buf *bytes.Buffer, v any, typ *ast.Type, sel ast.SelectionSet) {
	if v == nil {
		if typ.Elem != nil && typ.NonNull {
			buf.WriteString("[]")
			return
		}
		buf.WriteString("null")
		return
	}

	if typ.Elem != nil {
		items, ok := v.([]any)
		if !ok {
			buf.WriteString("null")
			return
		}
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			r.value(buf, item, typ.Elem, sel)
		}
		buf.WriteByte(']')
		return
	}

	def := r.schema.Types[typ.NamedType]
	if def == nil || (def.Kind != ast.Object && def.Kind != ast.Interface && def.Kind != ast.Union) {
		// JSON scalars pass through untouched.
		writeJSON(buf, v)
		return
	}

	obj, ok := v.(map[string]any)
	if !ok {
		buf.WriteString("null")
		return
	}
	typeName := def.Name
	if def.Kind != ast.Object {
		if n, ok := obj["__typename"].(string); ok {
			typeName = n
		}
	}

	buf.WriteByte('{')
	for i, f := range graphql.CollectFields(r.opCtx, sel, []string{typeName}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, f.Alias)
		if f.Name == "__typename" {
			writeJSON(buf, typeName)
			continue
		}
		r.value(buf, obj[f.Name], f.Definition.Type, f.Selections)
	}
	buf.WriteByte('}')
}

func writeKey(buf *bytes.Buffer, key string) {
	writeJSON(buf, key)
	buf.WriteByte(':')
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(b)
}
