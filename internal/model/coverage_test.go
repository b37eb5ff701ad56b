package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverageMatrixRecord(t *testing.T) {
	t.Parallel()

	matrix := NewCoverageMatrix()

	matrix.Record(1, "t1", false)
	matrix.Record(1, "t2", false)
	matrix.Record(1, "t1", false) // duplicates collapse

	entry, ok := matrix.Entry(1)
	require.True(t, ok)
	assert.Equal(t, []string{"t1", "t2"}, entry.Tests)
	assert.False(t, entry.Static)
}

func TestCoverageMatrixStaticHit(t *testing.T) {
	t.Parallel()

	matrix := NewCoverageMatrix()

	matrix.Record(2, "t1", true)
	matrix.Record(2, "", true) // out-of-test hit: static, no test attribution

	entry, ok := matrix.Entry(2)
	require.True(t, ok)
	assert.True(t, entry.Static)
	assert.Equal(t, []string{"t1"}, entry.Tests)
}

func TestCoverageMatrixEnsure(t *testing.T) {
	t.Parallel()

	matrix := NewCoverageMatrix()
	matrix.Ensure(5)
	matrix.Ensure(5)

	entry, ok := matrix.Entry(5)
	require.True(t, ok)
	assert.Empty(t, entry.Tests)
	assert.Equal(t, 1, matrix.Len())

	_, ok = matrix.Entry(6)
	assert.False(t, ok)
}

func TestCoverageMatrixConcurrentWriters(t *testing.T) {
	t.Parallel()

	matrix := NewCoverageMatrix()

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()
			matrix.Record(n%4, "t1", n%2 == 0)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 4, matrix.Len())
}
