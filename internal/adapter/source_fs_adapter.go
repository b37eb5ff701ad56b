package adapter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/mod/modfile"

	m "strykr.dev/pkg/strykr/internal/model"
)

// SourceFSAdapter abstracts the filesystem operations the workflow relies on
// when staging instrumented copies of user projects. Hiding direct os access
// keeps the domain logic testable without touching the disk.
type SourceFSAdapter interface {
	// FindProjectRoot walks up from startPath until it finds go.mod.
	FindProjectRoot(ctx context.Context, startPath m.Path) (m.Path, error)

	// ModulePath reads the module path declared in dir's go.mod.
	ModulePath(ctx context.Context, dir m.Path) (string, error)

	// CreateTempDir creates a scratch directory for the instrumented copy.
	CreateTempDir(ctx context.Context, pattern string) (m.Path, error)

	// CopyDir recursively copies a project tree, skipping VCS and vendor dirs.
	CopyDir(ctx context.Context, src, dst m.Path) error

	// ReadFile loads file contents from disk.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// WriteFile writes content with the given permissions, creating parents.
	WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error

	// RemoveAll removes a directory tree.
	RemoveAll(ctx context.Context, path m.Path) error

	// RelPath returns the relative path from base to target.
	RelPath(ctx context.Context, base, target m.Path) (m.Path, error)
}

// LocalSourceFSAdapter backs SourceFSAdapter with the local filesystem.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// FindProjectRoot searches for go.mod walking up the directory tree.
func (a *LocalSourceFSAdapter) FindProjectRoot(ctx context.Context, startPath m.Path) (m.Path, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := string(startPath)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return m.Path(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory of %s", startPath)
		}

		dir = parent
	}
}

// ModulePath parses dir/go.mod and returns the declared module path.
func (a *LocalSourceFSAdapter) ModulePath(ctx context.Context, dir m.Path) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return readModulePath(string(dir))
}

// readModulePath reads the module path declared in dir/go.mod.
func readModulePath(dir string) (string, error) {
	goModPath := filepath.Join(dir, "go.mod")

	data, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", goModPath, err)
	}

	file, err := modfile.ParseLax(goModPath, data, nil)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", goModPath, err)
	}

	if file.Module == nil || file.Module.Mod.Path == "" {
		return "", fmt.Errorf("%s declares no module path", goModPath)
	}

	return file.Module.Mod.Path, nil
}

// CreateTempDir creates a temporary directory for the instrumented copy.
func (a *LocalSourceFSAdapter) CreateTempDir(ctx context.Context, pattern string) (m.Path, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpDir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", err
	}

	return m.Path(tmpDir), nil
}

// skipDirs are never copied into the instrumented workspace.
var skipDirs = map[string]struct{}{
	".git":         {},
	"vendor":       {},
	"node_modules": {},
}

// CopyDir recursively copies a directory tree.
func (a *LocalSourceFSAdapter) CopyDir(ctx context.Context, src, dst m.Path) error {
	return filepath.Walk(string(src), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(string(src), path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if _, skip := skipDirs[filepath.Base(path)]; skip && path != string(src) {
				return filepath.SkipDir
			}

			return os.MkdirAll(filepath.Join(string(dst), relPath), info.Mode())
		}

		return a.copyFile(path, filepath.Join(string(dst), relPath), info.Mode())
	})
}

func (a *LocalSourceFSAdapter) copyFile(src, dst string, mode os.FileMode) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	defer func() { _ = destFile.Close() }()

	_, err = io.Copy(destFile, sourceFile)

	return err
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(ctx context.Context, path m.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.ReadFile(string(path))
}

// WriteFile writes content to a file, creating parent directories.
func (a *LocalSourceFSAdapter) WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSourceFSAdapter) RemoveAll(ctx context.Context, path m.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return os.RemoveAll(string(path))
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(ctx context.Context, base, target m.Path) (m.Path, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// ExcludeMatcher compiles the configured exclude patterns once.
type ExcludeMatcher struct {
	patterns []*regexp.Regexp
}

// NewExcludeMatcher compiles patterns; invalid patterns are an error.
func NewExcludeMatcher(patterns []string) (*ExcludeMatcher, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		rx, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}

		compiled = append(compiled, rx)
	}

	return &ExcludeMatcher{patterns: compiled}, nil
}

// Match reports whether path is excluded.
func (e *ExcludeMatcher) Match(path m.Path) bool {
	for _, rx := range e.patterns {
		if rx.MatchString(string(path)) {
			return true
		}
	}

	return false
}
