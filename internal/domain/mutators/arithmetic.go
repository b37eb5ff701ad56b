package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// GenerateArithmeticMutations swaps the operator of arithmetic binary
// expressions. The alternative set is narrowed by operand type: % only
// applies to integers, and string concatenation has no valid alternative.
func GenerateArithmeticMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	binExpr, ok := n.(*ast.BinaryExpr)
	if !ok {
		return nil
	}

	if !isArithmeticOp(binExpr.Op) {
		return nil
	}

	operand := typeOf(info, binExpr.X)
	if isStringType(operand) {
		// `+` on strings: nothing to swap to.
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

	for _, mutatedOp := range arithmeticAlternatives(binExpr.Op, operand) {
		mutations = append(mutations, m.Mutation{
			Type:        m.MutationArithmetic,
			DisplayName: fmt.Sprintf("%s -> %s", binExpr.Op, mutatedOp),
			Edits:       []m.Edit{{Start: opStart, End: opEnd, Text: mutatedOp.String()}},
			Span:        span,
		})
	}

	return mutations
}

func isArithmeticOp(op token.Token) bool {
	return op == token.ADD || op == token.SUB || op == token.MUL || op == token.QUO || op == token.REM
}

// arithmeticAlternatives returns every valid replacement operator. With no
// type information all numeric operators are candidates; the compile loop
// discards any that do not type-check.
func arithmeticAlternatives(original token.Token, operand types.Type) []token.Token {
	allOps := []token.Token{token.ADD, token.SUB, token.MUL, token.QUO, token.REM}

	var alternatives []token.Token

	for _, op := range allOps {
		if op == original {
			continue
		}

		if op == token.REM && operand != nil && !isIntegerType(operand) {
			continue
		}

		alternatives = append(alternatives, op)
	}

	return alternatives
}
