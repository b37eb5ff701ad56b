package mutators

import (
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// GenerateCollectionMutations empties slice, array, and map composite
// literals: {a, b, c} becomes {}. Struct literals are left alone, their
// emptying changes field semantics rather than collection contents.
func GenerateCollectionMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	lit, ok := n.(*ast.CompositeLit)
	if !ok || len(lit.Elts) == 0 {
		return nil
	}

	if !isCollectionLiteral(lit, info) {
		return nil
	}

	span, ok := spanOf(fset, lit)
	if !ok {
		return nil
	}

	lbrace, ok := offsetForPos(fset, lit.Lbrace)
	if !ok {
		return nil
	}

	rbrace, ok := offsetForPos(fset, lit.Rbrace)
	if !ok {
		return nil
	}

	return []m.Mutation{{
		Type:        m.MutationCollection,
		DisplayName: "{...} -> {}",
		Edits:       []m.Edit{{Start: lbrace + 1, End: rbrace, Text: ""}},
		Span:        span,
	}}
}

func isCollectionLiteral(lit *ast.CompositeLit, info *types.Info) bool {
	if t := typeOf(info, lit); t != nil {
		switch t.Underlying().(type) {
		case *types.Slice, *types.Array, *types.Map:
			return true
		default:
			return false
		}
	}

	// No type info: fall back to the written type expression.
	switch lit.Type.(type) {
	case *ast.ArrayType, *ast.MapType:
		return true
	default:
		return false
	}
}
