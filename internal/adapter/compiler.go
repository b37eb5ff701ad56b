package adapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"

	m "strykr.dev/pkg/strykr/internal/model"
)

// CompileError is one diagnostic with a source span, as reported by the
// compiler collaborator.
type CompileError struct {
	Path    m.Path
	Line    int
	Col     int
	Message string
}

// Compiler abstracts the build step over the instrumented module. An empty
// error slice with a nil error means the module builds.
type Compiler interface {
	Compile(ctx context.Context, dir m.Path) ([]CompileError, error)
}

// GoBuildCompiler shells out to `go build ./...` and parses its diagnostics.
type GoBuildCompiler struct{}

// NewGoBuildCompiler constructs a GoBuildCompiler.
func NewGoBuildCompiler() *GoBuildCompiler {
	return &GoBuildCompiler{}
}

// diagnosticRx matches `path/file.go:12:34: message` with an optional column.
var diagnosticRx = regexp.MustCompile(`^(.+\.go):(\d+)(?::(\d+))?: (.*)$`)

// Compile implements Compiler.
func (c *GoBuildCompiler) Compile(ctx context.Context, dir m.Path) ([]CompileError, error) {
	cmd := exec.CommandContext(ctx, "go", "build", "./...")
	cmd.Dir = string(dir)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, err
	}

	compileErrs := ParseBuildOutput(stderr.Bytes())
	if len(compileErrs) == 0 {
		slog.Error("go build failed without parseable diagnostics", "dir", dir, "output", stderr.String())
		return nil, err
	}

	return compileErrs, nil
}

// ParseBuildOutput extracts spanned diagnostics from go build stderr.
func ParseBuildOutput(output []byte) []CompileError {
	var compileErrs []CompileError

	for _, line := range bytes.Split(output, []byte("\n")) {
		match := diagnosticRx.FindSubmatch(line)
		if match == nil {
			continue
		}

		lineNo, _ := strconv.Atoi(string(match[2]))

		col := 0
		if len(match[3]) > 0 {
			col, _ = strconv.Atoi(string(match[3]))
		}

		compileErrs = append(compileErrs, CompileError{
			Path:    m.Path(match[1]),
			Line:    lineNo,
			Col:     col,
			Message: string(match[4]),
		})
	}

	return compileErrs
}
