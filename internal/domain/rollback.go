package domain

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"strykr.dev/pkg/strykr/internal/adapter"
	m "strykr.dev/pkg/strykr/internal/model"
)

// RollbackLoop drives compile attempts over the instrumented module. Each
// failing iteration maps compiler spans back to the smallest enclosing
// placement, marks the offending mutants CompileError, excises them, and
// retries. Every iteration strictly shrinks the live-mutant set, so the loop
// terminates within the live-mutant count.
type RollbackLoop struct {
	compiler adapter.Compiler
	fs       adapter.SourceFSAdapter
	session  *Session
	placer   *Placer
}

// NewRollbackLoop wires the loop to its collaborators.
func NewRollbackLoop(compiler adapter.Compiler, fs adapter.SourceFSAdapter, session *Session, placer *Placer) *RollbackLoop {
	return &RollbackLoop{compiler: compiler, fs: fs, session: session, placer: placer}
}

// Run writes the instrumented files into workDir (at their project-relative
// locations) and compiles until success or exhaustion. The files map links a
// workDir-relative path to its instrumented file.
func (r *RollbackLoop) Run(ctx context.Context, workDir m.Path, files map[string]*InstrumentedFile) error {
	for rel, file := range files {
		if err := r.writeFile(ctx, workDir, rel, file); err != nil {
			return err
		}
	}

	maxIterations := len(r.session.Live()) + 1

	for iteration := 0; iteration < maxIterations; iteration++ {
		compileErrs, err := r.compiler.Compile(ctx, workDir)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrCompileUnrecoverable, err)
		}

		if len(compileErrs) == 0 {
			return nil
		}

		blamed, err := r.blame(workDir, files, compileErrs)
		if err != nil {
			return err
		}

		progressed := false

		for file, ids := range blamed {
			for id, message := range ids {
				if file.Excluded[id] {
					continue
				}

				file.Excluded[id] = true
				progressed = true

				r.session.SetStatus(id, m.StatusCompileError, message)
				slog.Debug("mutant excised after compile error", "id", id, "file", file.Unit.Path, "message", message)
			}

			file.Rerender(r.placer)
		}

		if !progressed {
			return fmt.Errorf("%w: no mutant to blame for: %s", ErrCompileUnrecoverable, firstMessage(compileErrs))
		}

		for rel, file := range files {
			if _, touched := blamed[file]; touched {
				if err := r.writeFile(ctx, workDir, rel, file); err != nil {
					return err
				}
			}
		}
	}

	return fmt.Errorf("%w: rollback iterations exhausted", ErrCompileUnrecoverable)
}

func (r *RollbackLoop) writeFile(ctx context.Context, workDir m.Path, rel string, file *InstrumentedFile) error {
	target := m.Path(filepath.Join(string(workDir), rel))

	if err := r.fs.WriteFile(ctx, target, file.Rendered, 0o600); err != nil {
		return fmt.Errorf("write instrumented %s: %w", target, err)
	}

	return nil
}

// blame resolves each compile error to the innermost placement containing
// its span. Errors outside any placement, or in files we did not instrument,
// are unrecoverable.
func (r *RollbackLoop) blame(
	workDir m.Path,
	files map[string]*InstrumentedFile,
	compileErrs []adapter.CompileError,
) (map[*InstrumentedFile]map[int]string, error) {
	ns := r.session.Options.HelperNamespace
	blamed := make(map[*InstrumentedFile]map[int]string)
	guardCache := make(map[*InstrumentedFile][]guardRange)

	for _, compileErr := range compileErrs {
		file := matchFile(workDir, files, compileErr.Path)
		if file == nil {
			return nil, fmt.Errorf("%w: error outside instrumented files: %s: %s",
				ErrCompileUnrecoverable, compileErr.Path, compileErr.Message)
		}

		guards, ok := guardCache[file]
		if !ok {
			var err error

			guards, err = parseGuards(file.Rendered, ns)
			if err != nil {
				return nil, fmt.Errorf("%w: reparse %s: %s", ErrCompileUnrecoverable, compileErr.Path, err)
			}

			guardCache[file] = guards
		}

		offset, ok := offsetForLineCol(file.Rendered, compileErr.Line, compileErr.Col)
		if !ok {
			continue
		}

		ids := innermostGuard(guards, offset)
		if len(ids) == 0 {
			// The error sits outside every guard: original code cannot have
			// broken by itself, so skip and let another error identify the
			// culprit. If none does, the no-progress check surfaces it.
			continue
		}

		if blamed[file] == nil {
			blamed[file] = make(map[int]string)
		}

		for _, id := range ids {
			if _, seen := blamed[file][id]; !seen {
				blamed[file][id] = compileErr.Message
			}
		}
	}

	return blamed, nil
}

func matchFile(workDir m.Path, files map[string]*InstrumentedFile, errPath m.Path) *InstrumentedFile {
	p := strings.TrimPrefix(string(errPath), "./")

	if rel, err := filepath.Rel(string(workDir), p); err == nil && !strings.HasPrefix(rel, "..") {
		if file, ok := files[rel]; ok {
			return file
		}
	}

	if file, ok := files[p]; ok {
		return file
	}

	for rel, file := range files {
		if strings.HasSuffix(p, rel) {
			return file
		}
	}

	return nil
}

func firstMessage(compileErrs []adapter.CompileError) string {
	if len(compileErrs) == 0 {
		return ""
	}

	return fmt.Sprintf("%s:%d:%d: %s", compileErrs[0].Path, compileErrs[0].Line, compileErrs[0].Col, compileErrs[0].Message)
}

// guardRange is one guarded region of the rendered file with the mutant ids
// excising it would remove.
type guardRange struct {
	start int
	end   int
	ids   []int
}

// parseGuards reparses the rendered text and locates every guard construct:
// Sel calls (whole call plus each mutated branch) and Act if-chains (whole
// chain plus each mutated body).
func parseGuards(rendered []byte, ns string) ([]guardRange, error) {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "instrumented.go", rendered, 0)
	if err != nil {
		return nil, err
	}

	var guards []guardRange

	offsets := func(n ast.Node) (int, int) {
		f := fset.File(n.Pos())
		return f.Offset(n.Pos()), f.Offset(n.End())
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			if !isNsCall(node, ns, "Sel") || len(node.Args) != 3 {
				return true
			}

			start, end := offsets(node)
			guards = append(guards, guardRange{start: start, end: end, ids: selSiteIDs(node)})

			if branches, ok := node.Args[2].(*ast.CompositeLit); ok {
				for _, elt := range branches.Elts {
					kv, ok := elt.(*ast.KeyValueExpr)
					if !ok {
						continue
					}

					id, ok := intLiteral(kv.Key)
					if !ok {
						continue
					}

					bStart, bEnd := offsets(kv.Value)
					guards = append(guards, guardRange{start: bStart, end: bEnd, ids: []int{id}})
				}
			}
		case *ast.IfStmt:
			id, ok := actID(node.Cond, ns)
			if !ok {
				return true
			}

			start, end := offsets(node)
			guards = append(guards, guardRange{start: start, end: end, ids: chainIDs(node, ns)})

			bStart, bEnd := offsets(node.Body)
			guards = append(guards, guardRange{start: bStart, end: bEnd, ids: []int{id}})
		}

		return true
	})

	return guards, nil
}

func isNsCall(call *ast.CallExpr, ns, name string) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}

	ident, ok := sel.X.(*ast.Ident)

	return ok && ident.Name == ns
}

// selSiteIDs extracts the IDs slice from a Sel call's Site literal.
func selSiteIDs(call *ast.CallExpr) []int {
	site, ok := call.Args[0].(*ast.CompositeLit)
	if !ok {
		return nil
	}

	for _, elt := range site.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}

		key, ok := kv.Key.(*ast.Ident)
		if !ok || key.Name != "IDs" {
			continue
		}

		list, ok := kv.Value.(*ast.CompositeLit)
		if !ok {
			continue
		}

		var ids []int

		for _, idExpr := range list.Elts {
			if id, ok := intLiteral(idExpr); ok {
				ids = append(ids, id)
			}
		}

		return ids
	}

	return nil
}

// actID recognizes `ns.Act(<int>)` conditions.
func actID(cond ast.Expr, ns string) (int, bool) {
	call, ok := cond.(*ast.CallExpr)
	if !ok || !isNsCall(call, ns, "Act") || len(call.Args) != 1 {
		return 0, false
	}

	return intLiteral(call.Args[0])
}

// chainIDs collects every Act id along an if/else-if chain.
func chainIDs(stmt *ast.IfStmt, ns string) []int {
	var ids []int

	for stmt != nil {
		if id, ok := actID(stmt.Cond, ns); ok {
			ids = append(ids, id)
		}

		next, ok := stmt.Else.(*ast.IfStmt)
		if !ok {
			break
		}

		stmt = next
	}

	return ids
}

func intLiteral(expr ast.Expr) (int, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, false
	}

	id, err := strconv.Atoi(lit.Value)
	if err != nil {
		return 0, false
	}

	return id, true
}

// innermostGuard picks the smallest guard containing offset.
func innermostGuard(guards []guardRange, offset int) []int {
	var (
		best     []int
		bestSize = -1
	)

	for _, guard := range guards {
		if offset < guard.start || offset >= guard.end {
			continue
		}

		size := guard.end - guard.start
		if bestSize == -1 || size < bestSize {
			best = guard.ids
			bestSize = size
		}
	}

	return best
}

func offsetForLineCol(content []byte, line, col int) (int, bool) {
	if line < 1 {
		return 0, false
	}

	cur := 0

	for l := 1; l < line; l++ {
		next := indexByteFrom(content, cur, '\n')
		if next < 0 {
			return 0, false
		}

		cur = next + 1
	}

	if col < 1 {
		col = 1
	}

	offset := cur + col - 1
	if offset > len(content) {
		offset = len(content)
	}

	return offset, true
}

func indexByteFrom(content []byte, from int, b byte) int {
	for i := from; i < len(content); i++ {
		if content[i] == b {
			return i
		}
	}

	return -1
}
