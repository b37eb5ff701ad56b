package mutators

import (
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// GenerateConditionMutations forces branch conditions to a constant:
// `if cond` and `for cond` each yield a force-true and a force-false mutant.
// This subsumes nil-guard collapse (`if x != nil { ... }` forced true).
func GenerateConditionMutations(n ast.Node, fset *token.FileSet, _ *types.Info) []m.Mutation {
	var cond ast.Expr

	switch stmt := n.(type) {
	case *ast.IfStmt:
		cond = stmt.Cond
	case *ast.ForStmt:
		cond = stmt.Cond
	default:
		return nil
	}

	if cond == nil {
		return nil
	}

	// A bare true/false condition is already covered by the boolean mutator.
	if ident, ok := cond.(*ast.Ident); ok && isBooleanLiteral(ident.Name) {
		return nil
	}

	span, ok := spanOf(fset, cond)
	if !ok {
		return nil
	}

	mutations := make([]m.Mutation, 0, 2)

	for _, forced := range []string{trueStr, falseStr} {
		mutations = append(mutations, m.Mutation{
			Type:        m.MutationCondition,
			DisplayName: "cond -> " + forced,
			Edits:       []m.Edit{{Start: span.Start, End: span.End, Text: forced}},
			Span:        span,
		})
	}

	return mutations
}
