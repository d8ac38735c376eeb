package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// DepthLimit rejects operations whose selections nest deeper than Max.
// Root fields sit at depth zero and introspection fields are not counted.
type DepthLimit struct {
	Max int
}

var _ interface {
	graphql.HandlerExtension
	graphql.OperationContextMutator
} = DepthLimit{}

func (DepthLimit) ExtensionName() string {
	return "DepthLimit"
}

func (d DepthLimit) Validate(graphql.ExecutableSchema) error {
	if d.Max < 1 {
		return errors.New("depth limit must be positive")
	}
	return nil
}

func (d DepthLimit) MutateOperationContext(ctx context.Context, opCtx *graphql.OperationContext) *gqlerror.Error {
	if opCtx.Operation == nil {
		return nil
	}
	depth := selectionDepth(opCtx.Operation.SelectionSet, map[string]bool{})
	if depth > d.Max {
		return &gqlerror.Error{
			Message:    fmt.Sprintf("operation depth %d exceeds the limit of %d", depth, d.Max),
			Extensions: map[string]interface{}{"code": CodeDepthExceeded},
		}
	}
	return nil
}

func selectionDepth(sel ast.SelectionSet, visiting map[string]bool) int {
	deepest := 0
	for _, s := range sel {
		var depth int
		switch s := s.(type) {
		case *ast.Field:
			if strings.HasPrefix(s.Name, "__") || len(s.SelectionSet) == 0 {
				continue
			}
			depth = 1 + selectionDepth(s.SelectionSet, visiting)
		case *ast.InlineFragment:
			depth = selectionDepth(s.SelectionSet, visiting)
		case *ast.FragmentSpread:
			if s.Definition == nil || visiting[s.Name] {
				continue
			}
			visiting[s.Name] = true
			depth = selectionDepth(s.Definition.SelectionSet, visiting)
			delete(visiting, s.Name)
		}
		if depth > deepest {
			deepest = depth
		}
	}
	return deepest
}
