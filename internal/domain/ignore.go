package domain

import (
	"go/ast"
	"go/token"
	"strings"

	m "strykr.dev/pkg/strykr/internal/model"
)

// ignoreRule captures one `strykr:ignore` annotation: either everything or a
// named subset of mutation types.
type ignoreRule struct {
	all   bool
	names map[string]struct{}
}

func (r ignoreRule) ignores(mutationType m.MutationType) bool {
	if r.all {
		return true
	}

	if len(r.names) == 0 {
		return false
	}

	_, ok := r.names[strings.ToLower(string(mutationType))]

	return ok
}

func mergeIgnoreRule(dst *ignoreRule, src ignoreRule) {
	if src.all {
		dst.all = true
		dst.names = nil

		return
	}

	if dst.all || len(src.names) == 0 {
		return
	}

	if dst.names == nil {
		dst.names = make(map[string]struct{}, len(src.names))
	}

	for name := range src.names {
		dst.names[name] = struct{}{}
	}
}

// parseIgnoreDirective recognizes `//strykr:ignore` and
// `//strykr:ignore type1,type2` in line or block comments.
func parseIgnoreDirective(commentText string) (ignoreRule, bool) {
	s := strings.TrimSpace(commentText)
	if strings.HasPrefix(s, "//") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "//"))
	} else if strings.HasPrefix(s, "/*") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "/*"))
		s = strings.TrimSpace(strings.TrimSuffix(s, "*/"))
	}

	if !strings.HasPrefix(s, "strykr:ignore") {
		return ignoreRule{}, false
	}

	rest := strings.TrimSpace(strings.TrimPrefix(s, "strykr:ignore"))
	if rest == "" {
		return ignoreRule{all: true}, true
	}

	parts := strings.Split(rest, ",")
	rule := ignoreRule{names: make(map[string]struct{}, len(parts))}

	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}

		rule.names[name] = struct{}{}
	}

	if len(rule.names) == 0 {
		rule.all = true
		rule.names = nil
	}

	return rule, true
}

// ignoreIndex resolves annotations at three granularities: the whole file
// (annotation in the package doc), a function (annotation in the func doc),
// and a single line (leading or trailing comment).
type ignoreIndex struct {
	file      ignoreRule
	funcByPos map[token.Pos]ignoreRule
	line      map[int]ignoreRule
}

func (idx ignoreIndex) ignoresAt(mutationType m.MutationType, line int, enclosingFuncs []token.Pos) bool {
	if idx.file.ignores(mutationType) {
		return true
	}

	for _, pos := range enclosingFuncs {
		if rule, ok := idx.funcByPos[pos]; ok && rule.ignores(mutationType) {
			return true
		}
	}

	if rule, ok := idx.line[line]; ok && rule.ignores(mutationType) {
		return true
	}

	return false
}

func buildIgnoreIndex(file *ast.File, fset *token.FileSet) ignoreIndex {
	idx := ignoreIndex{
		funcByPos: make(map[token.Pos]ignoreRule),
		line:      make(map[int]ignoreRule),
	}

	if file.Doc != nil {
		for _, c := range file.Doc.List {
			if rule, ok := parseIgnoreDirective(c.Text); ok {
				mergeIgnoreRule(&idx.file, rule)
			}
		}
	}

	funcDocs := map[*ast.CommentGroup]struct{}{}

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}

		funcDocs[fd.Doc] = struct{}{}

		var rule ignoreRule

		for _, c := range fd.Doc.List {
			if r, ok := parseIgnoreDirective(c.Text); ok {
				mergeIgnoreRule(&rule, r)
			}
		}

		if rule.all || len(rule.names) > 0 {
			idx.funcByPos[fd.Pos()] = rule
		}
	}

	// Line-level rules: an annotation applies to its own line and to the
	// line below, so both trailing and leading placements work.
	for _, group := range file.Comments {
		if group == file.Doc {
			continue
		}

		if _, isFuncDoc := funcDocs[group]; isFuncDoc {
			continue
		}

		for _, c := range group.List {
			rule, ok := parseIgnoreDirective(c.Text)
			if !ok {
				continue
			}

			line := fset.Position(c.Pos()).Line

			existing := idx.line[line]
			mergeIgnoreRule(&existing, rule)
			idx.line[line] = existing

			below := idx.line[line+1]
			mergeIgnoreRule(&below, rule)
			idx.line[line+1] = below
		}
	}

	return idx
}
