package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "strykr.dev/pkg/strykr/internal/model"
)

func TestVersionCommand(t *testing.T) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "strykr")
}

func TestTargetPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, m.Path("."), targetPath(nil))
	assert.Equal(t, m.Path("./pkg"), targetPath([]string{"./pkg"}))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig()
	require.NoError(t, err)

	assert.Equal(t, 1, opts.Concurrency)
	assert.Equal(t, "strykrmut", opts.HelperNamespace)
	assert.InDelta(t, 1.5, opts.TimeoutMultiplier, 1e-9)
	assert.NoError(t, opts.Validate())
}
