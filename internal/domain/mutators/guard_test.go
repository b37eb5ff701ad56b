package mutators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func TestGenerateGuardMutations(t *testing.T) {
	t.Parallel()

	t.Run("identity conversion is unwrapped", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc same(x int) int { return int(x) }\n"
		fset, file, info := parseAndCheck(t, src)

		mutations := applyAll(fset, file, info, GenerateGuardMutations)
		require.Len(t, mutations, 1)

		assert.Equal(t, m.MutationGuard, mutations[0].Type)
		assert.Equal(t, "unwrap conversion", mutations[0].DisplayName)
		assert.Equal(t, "package p\n\nfunc same(x int) int { return x }\n", mutatedText(src, mutations[0]))
	})

	t.Run("widening conversion is kept", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc widen(x int32) int64 { return int64(x) }\n"
		fset, file, info := parseAndCheck(t, src)

		assert.Empty(t, applyAll(fset, file, info, GenerateGuardMutations))
	})

	t.Run("ordinary calls are left alone", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc f(x int) int { return x }\n\nfunc g(x int) int { return f(x) }\n"
		fset, file, info := parseAndCheck(t, src)

		assert.Empty(t, applyAll(fset, file, info, GenerateGuardMutations))
	})

	t.Run("no semantic info means no mutations", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc same(x int) int { return int(x) }\n"
		fset, file, _ := parseAndCheck(t, src)

		assert.Empty(t, applyAll(fset, file, nil, GenerateGuardMutations))
	})
}
