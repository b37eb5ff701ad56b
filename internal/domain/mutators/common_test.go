package mutators

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

// parseAndCheck parses src and runs the type checker over it. Sources used
// in these tests avoid imports so no importer is needed; check errors are
// swallowed, leaving partial info the rules must tolerate.
func parseAndCheck(t *testing.T, src string) (*token.FileSet, *ast.File, *types.Info) {
	t.Helper()

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "src.go", src, parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{
		Types:     make(map[ast.Expr]types.TypeAndValue),
		Defs:      make(map[*ast.Ident]types.Object),
		Uses:      make(map[*ast.Ident]types.Object),
		Implicits: make(map[ast.Node]types.Object),
	}

	conf := types.Config{Error: func(error) {}}
	_, _ = conf.Check("p", fset, []*ast.File{file}, info)

	return fset, file, info
}

// applyAll walks the tree and collects the rule's mutations for every node.
func applyAll(fset *token.FileSet, file *ast.File, info *types.Info, apply ApplyFunc) []m.Mutation {
	var mutations []m.Mutation

	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			return true
		}

		mutations = append(mutations, apply(n, fset, info)...)

		return true
	})

	return mutations
}

// mutatedText applies a mutation's edits to the full source.
func mutatedText(src string, mutation m.Mutation) string {
	edits := make([]m.Edit, len(mutation.Edits))
	copy(edits, mutation.Edits)
	sort.Slice(edits, func(i, j int) bool { return edits[i].Start > edits[j].Start })

	out := src
	for _, edit := range edits {
		out = out[:edit.Start] + edit.Text + out[edit.End:]
	}

	return out
}

// displayNames extracts the display names for set assertions.
func displayNames(mutations []m.Mutation) []string {
	names := make([]string, len(mutations))
	for i, mutation := range mutations {
		names[i] = mutation.DisplayName
	}

	sort.Strings(names)

	return names
}
