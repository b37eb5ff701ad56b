package domain

import (
	"crypto/sha256"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/require"

	"strykr.dev/pkg/strykr/internal/adapter"
	m "strykr.dev/pkg/strykr/internal/model"
)

// newUnit builds a type-checked SourceUnit from an inline source. Test
// sources avoid imports, so no importer is wired; check errors are swallowed
// the same way partial semantic info shows up in real runs.
func newUnit(t *testing.T, path, src string) *adapter.SourceUnit {
	t.Helper()

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{
		Types:     make(map[ast.Expr]types.TypeAndValue),
		Defs:      make(map[*ast.Ident]types.Object),
		Uses:      make(map[*ast.Ident]types.Object),
		Implicits: make(map[ast.Node]types.Object),
	}

	conf := types.Config{Error: func(error) {}}
	pkg, _ := conf.Check("p", fset, []*ast.File{file}, info)

	return &adapter.SourceUnit{
		Path:        m.Path(path),
		Hash:        fmt.Sprintf("%x", sha256.Sum256([]byte(src))),
		Content:     []byte(src),
		Fset:        fset,
		File:        file,
		Info:        info,
		Pkg:         pkg,
		ImportNames: map[string]string{},
	}
}

// newTestSession builds a session with sane defaults for unit tests.
func newTestSession(t *testing.T, mutate func(*Options)) *Session {
	t.Helper()

	opts := DefaultOptions()
	opts.Level = m.LevelComplete

	if mutate != nil {
		mutate(&opts)
	}

	require.NoError(t, opts.Validate())

	return NewSession(opts)
}

// reparse asserts that rendered instrumented output is valid Go.
func reparse(t *testing.T, rendered []byte) *ast.File {
	t.Helper()

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "rendered.go", rendered, 0)
	require.NoError(t, err, "instrumented output must parse:\n%s", rendered)

	return file
}
