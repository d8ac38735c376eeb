// Package graph serves the board gateway's GraphQL API. The executable
// schema is written by hand over gqlgen's runtime: root fields dispatch to
// the resolver, nested selections become data access projections and
// results are rendered strictly from the schema.
package graph

import (
	_ "embed"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphqls
var schemaSource string

// LoadSchema parses the embedded schema.
func LoadSchema() (*ast.Schema, error) {
	schema, gerr := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})
	if gerr != nil {
		return nil, fmt.Errorf("failed to load graphql schema: %w", gerr)
	}
	return schema, nil
}
