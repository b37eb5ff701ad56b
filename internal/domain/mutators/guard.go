package mutators

import (
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// GenerateGuardMutations unwraps identity conversions: T(expr) where the
// operand already has type T collapses to expr. These wrappers exist purely
// as overflow/width guards, so removing one must be observable to a good
// test suite. Requires type information; without it the rule stays silent.
func GenerateGuardMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	if info == nil {
		return nil
	}

	call, ok := n.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 || call.Ellipsis != token.NoPos {
		return nil
	}

	tv, ok := info.Types[call.Fun]
	if !ok || !tv.IsType() {
		return nil
	}

	resultType := info.TypeOf(call)
	operandType := info.TypeOf(call.Args[0])

	if resultType == nil || operandType == nil {
		return nil
	}

	if !types.Identical(resultType, operandType) {
		return nil
	}

	span, ok := spanOf(fset, call)
	if !ok {
		return nil
	}

	argSpan, ok := spanOf(fset, call.Args[0])
	if !ok {
		return nil
	}

	return []m.Mutation{{
		Type:        m.MutationGuard,
		DisplayName: "unwrap conversion",
		Edits: []m.Edit{
			{Start: span.Start, End: argSpan.Start, Text: ""},
			{Start: argSpan.End, End: span.End, Text: ""},
		},
		Span: span,
	}}
}
