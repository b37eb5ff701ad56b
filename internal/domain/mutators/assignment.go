package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// assignmentCounterparts maps each compound assignment operator to its single
// swap partner.
var assignmentCounterparts = map[token.Token]token.Token{
	token.ADD_ASSIGN: token.SUB_ASSIGN,
	token.SUB_ASSIGN: token.ADD_ASSIGN,
	token.MUL_ASSIGN: token.QUO_ASSIGN,
	token.QUO_ASSIGN: token.MUL_ASSIGN,
	token.REM_ASSIGN: token.MUL_ASSIGN,
	token.SHL_ASSIGN: token.SHR_ASSIGN,
	token.SHR_ASSIGN: token.SHL_ASSIGN,
	token.AND_ASSIGN: token.OR_ASSIGN,
	token.OR_ASSIGN:  token.AND_ASSIGN,
	token.XOR_ASSIGN: token.AND_ASSIGN,
}

// GenerateAssignmentMutations swaps compound assignment operators
// (+= <-> -=, *= <-> /=, and so on). Plain and short assignments are left
// alone, as is string concatenation via += which has no valid counterpart.
func GenerateAssignmentMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	stmt, ok := n.(*ast.AssignStmt)
	if !ok {
		return nil
	}

	mutatedTok, ok := assignmentCounterparts[stmt.Tok]
	if !ok {
		return nil
	}

	if len(stmt.Lhs) != 1 {
		return nil
	}

	if stmt.Tok == token.ADD_ASSIGN && isStringType(typeOf(info, stmt.Lhs[0])) {
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
		Type:        m.MutationAssignment,
		DisplayName: fmt.Sprintf("%s -> %s", stmt.Tok, mutatedTok),
		Edits:       []m.Edit{{Start: tokStart, End: tokEnd, Text: mutatedTok.String()}},
		Span:        span,
	}}
}
