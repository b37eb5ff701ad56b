package mutators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func TestGenerateUpdateMutations(t *testing.T) {
	t.Parallel()

	t.Run("postfix increment becomes decrement", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc bump() int {\n\tx := 0\n\tx++\n\treturn x\n}\n"
		fset, file, info := parseAndCheck(t, src)

		mutations := applyAll(fset, file, info, GenerateUpdateMutations)
		require.Len(t, mutations, 1)

		assert.Equal(t, m.MutationUpdate, mutations[0].Type)
		assert.Equal(t, "++ -> --", mutations[0].DisplayName)
		assert.Equal(t, "package p\n\nfunc bump() int {\n\tx := 0\n\tx--\n\treturn x\n}\n", mutatedText(src, mutations[0]))
		assert.Equal(t, 5, mutations[0].Span.StartLine)
	})

	t.Run("decrement becomes increment", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc drop() int {\n\tx := 9\n\tx--\n\treturn x\n}\n"
		fset, file, info := parseAndCheck(t, src)

		mutations := applyAll(fset, file, info, GenerateUpdateMutations)
		require.Len(t, mutations, 1)
		assert.Equal(t, "-- -> ++", mutations[0].DisplayName)
	})

	t.Run("other statements are untouched", func(t *testing.T) {
		t.Parallel()

		src := "package p\n\nfunc set() {\n\tx := 0\n\tx = 1\n\t_ = x\n}\n"
		fset, file, info := parseAndCheck(t, src)

		assert.Empty(t, applyAll(fset, file, info, GenerateUpdateMutations))
	})
}
