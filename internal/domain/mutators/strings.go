package mutators

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	m "strykr.dev/pkg/strykr/internal/model"
)

// seededString replaces empty literals so that tests asserting on emptiness
// still have something to catch.
const seededString = "strykr was here!"

// GenerateStringMutations blanks non-empty string literals and seeds empty
// ones. Import paths and struct tags never reach this rule: the orchestrator
// does not traverse into them.
func GenerateStringMutations(n ast.Node, fset *token.FileSet, _ *types.Info) []m.Mutation {
	lit, ok := n.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return nil
	}

	value, err := strconv.Unquote(lit.Value)
	if err != nil {
		return nil
	}

	span, ok := spanOf(fset, lit)
	if !ok {
		return nil
	}

	replacement := `""`
	display := `"..." -> ""`

	if value == "" {
		replacement = strconv.Quote(seededString)
		display = `"" -> "` + seededString + `"`
	}

	return []m.Mutation{{
		Type:        m.MutationString,
		DisplayName: display,
		Edits:       []m.Edit{{Start: span.Start, End: span.End, Text: replacement}},
		Span:        span,
	}}
}
