package pkg

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int
	Name string
}

func newSpill(t *testing.T) FileSpill[record] {
	t.Helper()

	spill, err := NewFileSpill[record](filepath.Join(t.TempDir(), "records.gob"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = spill.Close() })

	return spill
}

func TestFileSpillAppendAndRange(t *testing.T) {
	t.Parallel()

	spill := newSpill(t)

	require.NoError(t, spill.Append(record{ID: 1, Name: "a"}))
	require.NoError(t, spill.AppendBatch([]record{{ID: 2, Name: "b"}, {ID: 3, Name: "c"}}))

	assert.Equal(t, uint64(3), spill.Len())

	var seen []record

	err := spill.Range(func(index uint64, item record) error {
		assert.Equal(t, uint64(len(seen)), index)
		seen = append(seen, item)

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []record{{1, "a"}, {2, "b"}, {3, "c"}}, seen)
}

func TestFileSpillRangeStopsOnCallbackError(t *testing.T) {
	t.Parallel()

	spill := newSpill(t)
	require.NoError(t, spill.AppendBatch([]record{{ID: 1}, {ID: 2}, {ID: 3}}))

	boom := errors.New("boom")
	visited := 0

	err := spill.Range(func(_ uint64, _ record) error {
		visited++

		if visited == 2 {
			return boom
		}

		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, visited)
}

func TestFileSpillEmptyRange(t *testing.T) {
	t.Parallel()

	spill := newSpill(t)

	err := spill.Range(func(uint64, record) error {
		t.Fatal("callback must not run on an empty spill")
		return nil
	})
	assert.NoError(t, err)
}

func TestFileSpillCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	spill := newSpill(t)
	require.NoError(t, spill.Close())
	assert.NoError(t, spill.Close())
}
