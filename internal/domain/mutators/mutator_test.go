package mutators

import (
	"go/ast"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("order and levels are stable", func(t *testing.T) {
		t.Parallel()

		registry := Registry()
		require.Len(t, registry, 10)

		assert.Equal(t, m.MutationArithmetic, registry[0].Type)
		assert.Equal(t, m.LevelBasic, registry[0].Level)
		assert.Equal(t, m.MutationGuard, registry[len(registry)-1].Type)
		assert.Equal(t, m.LevelComplete, registry[len(registry)-1].Level)
	})

	t.Run("every entry has an apply function", func(t *testing.T) {
		t.Parallel()

		for _, mutator := range Registry() {
			assert.NotNil(t, mutator.Apply, "mutator %s", mutator.Type)
		}
	})
}

func TestByType(t *testing.T) {
	t.Parallel()

	t.Run("empty selection returns everything", func(t *testing.T) {
		t.Parallel()

		selected, err := ByType()
		require.NoError(t, err)
		assert.Len(t, selected, len(Registry()))
	})

	t.Run("filters to the requested types", func(t *testing.T) {
		t.Parallel()

		selected, err := ByType(m.MutationBoolean, m.MutationUpdate)
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, m.MutationBoolean, selected[0].Type)
		assert.Equal(t, m.MutationUpdate, selected[1].Type)
	})

	t.Run("unknown type is an error", func(t *testing.T) {
		t.Parallel()

		_, err := ByType(m.MutationType("quantum"))
		assert.Error(t, err)
	})
}

// TestMutatorPurity checks that applying any rule twice to the same tree
// yields structurally equal results and leaves the tree untouched.
func TestMutatorPurity(t *testing.T) {
	t.Parallel()

	src := `package p

var words = []string{"a", "b"}

func classify(a, b int) string {
	total := a + b
	total += a
	if total > 10 {
		return "big"
	}
	for i := 0; i < b; i++ {
		total++
	}
	if a == b && true {
		return "equal"
	}
	return int2str(int(total))
}

func int2str(n int) string { return "" }
`

	fset, file, info := parseAndCheck(t, src)

	var before []ast.Node

	ast.Inspect(file, func(n ast.Node) bool {
		if n != nil {
			before = append(before, n)
		}

		return true
	})

	for _, mutator := range Registry() {
		first := applyAll(fset, file, info, mutator.Apply)
		second := applyAll(fset, file, info, mutator.Apply)

		assert.True(t, reflect.DeepEqual(first, second), "mutator %s is not deterministic", mutator.Type)
	}

	var after []ast.Node

	ast.Inspect(file, func(n ast.Node) bool {
		if n != nil {
			after = append(after, n)
		}

		return true
	})

	require.Equal(t, len(before), len(after))

	for i := range before {
		assert.Same(t, before[i], after[i])
	}
}
