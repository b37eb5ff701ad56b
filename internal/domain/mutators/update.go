package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// GenerateUpdateMutations swaps increment and decrement statements:
// x++ becomes x--, x-- becomes x++. Other statements are untouched.
func GenerateUpdateMutations(n ast.Node, fset *token.FileSet, _ *types.Info) []m.Mutation {
	stmt, ok := n.(*ast.IncDecStmt)
	if !ok {
		return nil
	}

	var mutatedTok token.Token

	switch stmt.Tok {
	case token.INC:
		mutatedTok = token.DEC
	case token.DEC:
		mutatedTok = token.INC
	default:
		return nil
	}

	span, ok := spanOf(fset, stmt)
	if !ok {
		return nil
	}

	tokStart, ok := offsetForPos(fset, stmt.TokPos)
	if !ok {
		return nil
	}

	tokEnd := tokStart + len(stmt.Tok.String())

	return []m.Mutation{{
		Type:        m.MutationUpdate,
		DisplayName: fmt.Sprintf("%s -> %s", stmt.Tok, mutatedTok),
		Edits:       []m.Edit{{Start: tokStart, End: tokEnd, Text: mutatedTok.String()}},
		Span:        span,
	}}
}
