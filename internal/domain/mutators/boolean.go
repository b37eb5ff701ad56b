package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

const (
	trueStr  = "true"
	falseStr = "false"
)

// GenerateBooleanMutations flips boolean literals. When type information is
// available the identifier must resolve to the universe true/false constants
// so shadowing declarations (`true := 0`) are left alone.
func GenerateBooleanMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	ident, ok := n.(*ast.Ident)
	if !ok {
		return nil
	}

	if !isBooleanLiteral(ident.Name) {
		return nil
	}

	if !resolvesToUniverse(info, ident) {
		return nil
	}

	span, ok := spanOf(fset, ident)
	if !ok {
		return nil
	}

	mutated := flipBoolean(ident.Name)

	return []m.Mutation{{
		Type:        m.MutationBoolean,
		DisplayName: fmt.Sprintf("%s -> %s", ident.Name, mutated),
		Edits:       []m.Edit{{Start: span.Start, End: span.End, Text: mutated}},
		Span:        span,
	}}
}

func isBooleanLiteral(name string) bool {
	return name == trueStr || name == falseStr
}

func flipBoolean(original string) string {
	if original == trueStr {
		return falseStr
	}

	return trueStr
}

func resolvesToUniverse(info *types.Info, ident *ast.Ident) bool {
	if info == nil {
		return true
	}

	if _, declared := info.Defs[ident]; declared {
		return false
	}

	obj, ok := info.Uses[ident]
	if !ok {
		// No use record (e.g. partial type info): accept syntactically.
		return true
	}

	return obj == types.Universe.Lookup(ident.Name)
}
