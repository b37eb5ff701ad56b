// Package adapter contains infrastructure adapters behind which the domain
// layer talks to the Go toolchain, the filesystem, and the test platform.
package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	m "strykr.dev/pkg/strykr/internal/model"
)

// SourceUnit is one parsed and type-checked compilation unit.
type SourceUnit struct {
	Path    m.Path
	Hash    string
	Content []byte
	Fset    *token.FileSet
	File    *ast.File
	Info    *types.Info
	Pkg     *types.Package

	// ImportNames maps import paths to the qualifier usable in this file.
	// Blank and dot imports are absent.
	ImportNames map[string]string
}

// LanguageFrontend parses and type-checks the module under test. The domain
// layer never touches go/parser or go/types loading directly.
type LanguageFrontend interface {
	// LoadModule returns every non-test compilation unit of the module,
	// ordered by path. Parse failures are fatal for the run.
	LoadModule(ctx context.Context, dir m.Path) ([]*SourceUnit, error)
}

// GoPackagesFrontend loads modules through golang.org/x/tools/go/packages,
// which drives the go toolchain for import resolution.
type GoPackagesFrontend struct{}

// NewGoPackagesFrontend constructs a GoPackagesFrontend.
func NewGoPackagesFrontend() *GoPackagesFrontend {
	return &GoPackagesFrontend{}
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedDeps |
	packages.NeedImports

// LoadModule implements LanguageFrontend.
func (f *GoPackagesFrontend) LoadModule(ctx context.Context, dir m.Path) ([]*SourceUnit, error) {
	cfg := &packages.Config{
		Mode:    loadMode,
		Dir:     string(dir),
		Context: ctx,
		Tests:   false,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("load module %s: %w", dir, err)
	}

	var units []*SourceUnit

	for _, pkg := range pkgs {
		for _, pkgErr := range pkg.Errors {
			if pkgErr.Kind == packages.ParseError {
				return nil, fmt.Errorf("parse %s: %s", pkg.PkgPath, pkgErr.Msg)
			}
		}

		for i, file := range pkg.Syntax {
			if i >= len(pkg.CompiledGoFiles) {
				break
			}

			path := pkg.CompiledGoFiles[i]
			if strings.HasSuffix(path, "_test.go") {
				continue
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}

			units = append(units, &SourceUnit{
				Path:        m.Path(path),
				Hash:        fmt.Sprintf("%x", sha256.Sum256(content)),
				Content:     content,
				Fset:        pkg.Fset,
				File:        file,
				Info:        pkg.TypesInfo,
				Pkg:         pkg.Types,
				ImportNames: importNames(file, pkg.TypesInfo),
			})
		}
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })

	return units, nil
}

// importNames resolves each import spec to the qualifier valid in the file:
// the explicit alias, or the imported package's declared name.
func importNames(file *ast.File, info *types.Info) map[string]string {
	names := make(map[string]string, len(file.Imports))

	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}

			names[path] = spec.Name.Name

			continue
		}

		if info != nil {
			if pkgName, ok := info.Implicits[spec].(*types.PkgName); ok {
				names[path] = pkgName.Name()
				continue
			}
		}

		// Fall back to the last path segment.
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			names[path] = path[idx+1:]
		} else {
			names[path] = path
		}
	}

	return names
}
