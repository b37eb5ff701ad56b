package mutators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCollectionMutations(t *testing.T) {
	t.Parallel()

	t.Run("slice literal is emptied", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nvar primes = []int{2, 3, 5}\n"
		fset, file, info := parseAndCheck(t, src)

		mutations := applyAll(fset, file, info, GenerateCollectionMutations)
		require.Len(t, mutations, 1)

		assert.Equal(t, "{...} -> {}", mutations[0].DisplayName)
		assert.Equal(t, "package p\n\nvar primes = []int{}\n", mutatedText(src, mutations[0]))
	})

	t.Run("map literal is emptied", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nvar ranks = map[string]int{\"a\": 1}\n"
		fset, file, info := parseAndCheck(t, src)

		mutations := applyAll(fset, file, info, GenerateCollectionMutations)
		require.Len(t, mutations, 1)
		assert.Equal(t, "package p\n\nvar ranks = map[string]int{}\n", mutatedText(src, mutations[0]))
	})

	t.Run("struct literal is left alone", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\ntype point struct{ x, y int }\n\nvar origin = point{1, 2}\n"
		fset, file, info := parseAndCheck(t, src)

		assert.Empty(t, applyAll(fset, file, info, GenerateCollectionMutations))
	})

	t.Run("already empty literal is left alone", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nvar none = []int{}\n"
		fset, file, info := parseAndCheck(t, src)

		assert.Empty(t, applyAll(fset, file, info, GenerateCollectionMutations))
	})
}
