package adapter

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportNames(t *testing.T) {
	t.Parallel()

	src := `package p

import (
	"strings"
	enc "encoding/json"
	_ "embed"
	. "fmt"
	"example.com/some/pkgname"
)
`

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "src.go", src, 0)
	require.NoError(t, err)

	// Without type info the last path segment is the fallback qualifier.
	names := importNames(file, nil)

	assert.Equal(t, "strings", names["strings"])
	assert.Equal(t, "enc", names["encoding/json"])
	assert.Equal(t, "pkgname", names["example.com/some/pkgname"])

	// Blank and dot imports provide no usable qualifier.
	assert.NotContains(t, names, "embed")
	assert.NotContains(t, names, "fmt")
}
