package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// GenerateComparisonMutations flips equality and relational operators.
// Operands that are not ordered (structs, pointers, interfaces) only admit
// the == <-> != flip.
func GenerateComparisonMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	binExpr, ok := n.(*ast.BinaryExpr)
	if !ok {
		return nil
	}

	if !isComparisonOp(binExpr.Op) {
		return nil
	}

	span, ok := spanOf(fset, binExpr)
	if !ok {
		return nil
	}

	opStart, ok := offsetForPos(fset, binExpr.OpPos)
	if !ok {
		return nil
	}

	opEnd := opStart + len(binExpr.Op.String())

	var mutations []m.Mutation

	for _, mutatedOp := range comparisonAlternatives(binExpr.Op, typeOf(info, binExpr.X)) {
		mutations = append(mutations, m.Mutation{
			Type:        m.MutationComparison,
			DisplayName: fmt.Sprintf("%s -> %s", binExpr.Op, mutatedOp),
			Edits:       []m.Edit{{Start: opStart, End: opEnd, Text: mutatedOp.String()}},
			Span:        span,
		})
	}

	return mutations
}

func isComparisonOp(op token.Token) bool {
	return op == token.LSS || op == token.GTR || op == token.LEQ ||
		op == token.GEQ || op == token.EQL || op == token.NEQ
}

func comparisonAlternatives(original token.Token, operand types.Type) []token.Token {
	equalityOnly := operand != nil && !isOrderedType(operand)

	allOps := []token.Token{token.LSS, token.GTR, token.LEQ, token.GEQ, token.EQL, token.NEQ}
	if equalityOnly {
		allOps = []token.Token{token.EQL, token.NEQ}
	}

	var alternatives []token.Token

	for _, op := range allOps {
		if op != original {
			alternatives = append(alternatives, op)
		}
	}

	return alternatives
}
