// Package mutators provides the catalog of mutation rules applied to Go ASTs.
//
// Every rule is pure: Apply never modifies the node it inspects and returns
// the same mutations for the same input. Mutations are expressed as local
// text edits against the original file bytes, anchored by the span of the
// expression or statement they belong to.
package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// ApplyFunc inspects a node and yields zero or more mutations. The type info
// may be nil when semantic analysis was unavailable; rules degrade to their
// syntactic form in that case and the compile loop weeds out invalid results.
type ApplyFunc func(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation

// Mutator is one entry of the data-driven registry: a kind tag, the minimum
// session level at which the rule fires, and its apply function.
type Mutator struct {
	Type  m.MutationType
	Level m.MutationLevel
	Apply ApplyFunc
}

// Registry returns all known mutators in a fixed order. Order matters: the
// orchestrator assigns mutant ids in registry order per node, so a stable
// registry keeps ids stable across runs.
func Registry() []Mutator {
	return []Mutator{
		{Type: m.MutationArithmetic, Level: m.LevelBasic, Apply: GenerateArithmeticMutations},
		{Type: m.MutationComparison, Level: m.LevelBasic, Apply: GenerateComparisonMutations},
		{Type: m.MutationBoolean, Level: m.LevelBasic, Apply: GenerateBooleanMutations},
		{Type: m.MutationUpdate, Level: m.LevelBasic, Apply: GenerateUpdateMutations},
		{Type: m.MutationString, Level: m.LevelStandard, Apply: GenerateStringMutations},
		{Type: m.MutationAssignment, Level: m.LevelStandard, Apply: GenerateAssignmentMutations},
		{Type: m.MutationCondition, Level: m.LevelStandard, Apply: GenerateConditionMutations},
		{Type: m.MutationCollection, Level: m.LevelAdvanced, Apply: GenerateCollectionMutations},
		{Type: m.MutationMethodCall, Level: m.LevelAdvanced, Apply: GenerateMethodCallMutations},
		{Type: m.MutationGuard, Level: m.LevelComplete, Apply: GenerateGuardMutations},
	}
}

// ByType filters the registry down to the requested mutation types. With no
// arguments the full registry is returned.
func ByType(requested ...m.MutationType) ([]Mutator, error) {
	all := Registry()
	if len(requested) == 0 {
		return all, nil
	}

	known := make(map[m.MutationType]Mutator, len(all))
	for _, mut := range all {
		known[mut.Type] = mut
	}

	selected := make([]Mutator, 0, len(requested))

	for _, t := range requested {
		mut, ok := known[t]
		if !ok {
			return nil, fmt.Errorf("unsupported mutation type: %s", t)
		}

		selected = append(selected, mut)
	}

	return selected, nil
}

func offsetForPos(fset *token.FileSet, pos token.Pos) (int, bool) {
	file := fset.File(pos)
	if file == nil {
		return 0, false
	}

	return file.Offset(pos), true
}

// spanOf computes the weak locator of a node: byte offsets plus line/column.
func spanOf(fset *token.FileSet, n ast.Node) (m.Span, bool) {
	start, ok := offsetForPos(fset, n.Pos())
	if !ok {
		return m.Span{}, false
	}

	end, ok := offsetForPos(fset, n.End())
	if !ok {
		return m.Span{}, false
	}

	startPos := fset.Position(n.Pos())
	endPos := fset.Position(n.End())

	return m.Span{
		Start:     start,
		End:       end,
		StartLine: startPos.Line,
		EndLine:   endPos.Line,
		StartCol:  startPos.Column,
	}, true
}

func typeOf(info *types.Info, expr ast.Expr) types.Type {
	if info == nil {
		return nil
	}

	return info.TypeOf(expr)
}

func basicInfo(t types.Type) types.BasicInfo {
	if t == nil {
		return 0
	}

	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return 0
	}

	return basic.Info()
}

func isStringType(t types.Type) bool {
	return basicInfo(t)&types.IsString != 0
}

func isIntegerType(t types.Type) bool {
	return basicInfo(t)&types.IsInteger != 0
}

func isNumericType(t types.Type) bool {
	return basicInfo(t)&types.IsNumeric != 0
}

func isOrderedType(t types.Type) bool {
	return basicInfo(t)&types.IsOrdered != 0
}
