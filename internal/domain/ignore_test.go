package domain

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func TestParseIgnoreDirective(t *testing.T) {
	t.Parallel()

	t.Run("bare directive ignores everything", func(t *testing.T) {
		t.Parallel()

		rule, ok := parseIgnoreDirective("//strykr:ignore")
		require.True(t, ok)
		assert.True(t, rule.ignores(m.MutationArithmetic))
		assert.True(t, rule.ignores(m.MutationBoolean))
	})

	t.Run("named directive ignores listed types only", func(t *testing.T) {
		t.Parallel()

		rule, ok := parseIgnoreDirective("// strykr:ignore arithmetic, boolean")
		require.True(t, ok)
		assert.True(t, rule.ignores(m.MutationArithmetic))
		assert.True(t, rule.ignores(m.MutationBoolean))
		assert.False(t, rule.ignores(m.MutationString))
	})

	t.Run("block comments work", func(t *testing.T) {
		t.Parallel()

		rule, ok := parseIgnoreDirective("/* strykr:ignore condition */")
		require.True(t, ok)
		assert.True(t, rule.ignores(m.MutationCondition))
	})

	t.Run("unrelated comments are not directives", func(t *testing.T) {
		t.Parallel()

		_, ok := parseIgnoreDirective("// this loop is load-bearing")
		assert.False(t, ok)
	})
}

func TestBuildIgnoreIndex(t *testing.T) {
	t.Parallel()

	t.Run("function doc annotation covers the whole function", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\n//strykr:ignore\nfunc hot(a, b int) int {\n\treturn a + b\n}\n"
		unit := newUnit(t, "src.go", src)

		idx := buildIgnoreIndex(unit.File, unit.Fset)

		funcPos := unit.File.Decls[0].Pos()
		assert.True(t, idx.ignoresAt(m.MutationArithmetic, 5, []token.Pos{funcPos}))
	})

	t.Run("line annotation covers its own line and the one below", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc f(a int) int {\n\t//strykr:ignore boolean\n\treturn a\n}\n"
		unit := newUnit(t, "src.go", src)

		idx := buildIgnoreIndex(unit.File, unit.Fset)

		assert.True(t, idx.ignoresAt(m.MutationBoolean, 4, nil))
		assert.True(t, idx.ignoresAt(m.MutationBoolean, 5, nil))
		assert.False(t, idx.ignoresAt(m.MutationBoolean, 6, nil))
		assert.False(t, idx.ignoresAt(m.MutationArithmetic, 5, nil))
	})

	t.Run("package doc annotation covers the file", func(t *testing.T) {
		t.Parallel()

		src := "// Package p is hand-tuned.\n//strykr:ignore\npackage p\n\nvar x = true\n"
		unit := newUnit(t, "src.go", src)

		idx := buildIgnoreIndex(unit.File, unit.Fset)
		assert.True(t, idx.ignoresAt(m.MutationBoolean, 5, nil))
	})
}
