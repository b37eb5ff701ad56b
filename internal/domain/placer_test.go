package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func TestNestedSitesRenderInsideOriginalBranch(t *testing.T) {
	t.Parallel()

	src := "package p\n\nfunc pick(a, b, c int) int {\n\tif a+b > c {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"

	session, file := processSource(t, src, func(o *Options) {
		o.Types = []m.MutationType{m.MutationArithmetic, m.MutationComparison, m.MutationCondition}
	})

	rendered := string(file.Rendered)
	reparse(t, file.Rendered)

	// The condition site (a+b > c) hosts the comparison and condition
	// mutants; the arithmetic site (a+b) nests inside its original branch.
	require.NotEmpty(t, session.Mutants())
	assert.GreaterOrEqual(t, strings.Count(rendered, "strykrmut.Sel("), 2)

	// Mutated branches are built from the un-instrumented original text:
	// the forced-true branch must not contain a nested guard.
	assert.Contains(t, rendered, "func() bool { return true }")

	forcedIdx := strings.Index(rendered, "func() bool { return true }")
	require.GreaterOrEqual(t, forcedIdx, 0)
	assert.NotContains(t, rendered[forcedIdx:forcedIdx+len("func() bool { return true }")], "Sel(")
}

func TestRenderFileExcludedSiteKeepsChildren(t *testing.T) {
	t.Parallel()

	src := "package p\n\nfunc pick(a, b, c int) int {\n\tif a+b > c {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"

	session, file := processSource(t, src, func(o *Options) {
		o.Types = []m.MutationType{m.MutationArithmetic, m.MutationComparison}
	})

	// Excise every comparison mutant; the nested arithmetic site survives.
	for _, mutant := range session.Mutants() {
		if mutant.Mutation.Type == m.MutationComparison {
			file.Excluded[mutant.ID] = true
		}
	}

	file.Rerender(NewPlacer("strykrmut"))
	rendered := string(file.Rendered)
	reparse(t, file.Rendered)

	assert.NotContains(t, rendered, "> c }, map[int]func() bool")
	assert.Contains(t, rendered, "map[int]func() int{")
}

func TestRenderFileAllExcludedRestoresOriginal(t *testing.T) {
	t.Parallel()

	src := "package p\n\nfunc yes() bool { return true }\n"

	session, file := processSource(t, src, func(o *Options) {
		o.Types = []m.MutationType{m.MutationBoolean}
	})

	for _, mutant := range session.Mutants() {
		file.Excluded[mutant.ID] = true
	}

	file.Rerender(NewPlacer("strykrmut"))

	// No live guard, no helper import: the file is byte-identical again.
	assert.Equal(t, src, string(file.Rendered))
}
