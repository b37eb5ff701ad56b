package domain

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"

	m "strykr.dev/pkg/strykr/internal/model"
)

// placementKind selects the guard shape: expressions become a runtime
// select call, statements become an if/else chain.
type placementKind int

const (
	placeExpression placementKind = iota
	placeStatement
)

// reasonUnsupportedPlacement is the status reason recorded on mutants whose
// site cannot legally host a runtime guard.
const reasonUnsupportedPlacement = "unsupported placement"

var errUnsupportedPlacement = errors.New(reasonUnsupportedPlacement)

// Placement describes how a mutation will be installed at its anchor.
type Placement struct {
	Kind    placementKind
	TypeStr string // rendered result type, expression placements only
	Static  bool   // anchor lives in a one-time initializer
}

// Placer rewrites anchor sites into runtime-guarded selections between the
// original subtree and each mutant's replacement. The guard consults the
// process-wide active-mutant id and emits a coverage hit on every branch
// entry.
type Placer struct {
	ns string // helper namespace: package name of the injected runtime
}

// NewPlacer constructs a Placer for the given helper namespace.
func NewPlacer(namespace string) *Placer {
	return &Placer{ns: namespace}
}

// Resolve decides whether the anchor can host a guard and, for expressions,
// renders the result type. A refusal returns errUnsupportedPlacement
// (wrapped with detail); the candidate mutation is then dropped.
func (p *Placer) Resolve(
	anchor ast.Node,
	ancestors []ast.Node,
	info *types.Info,
	currentPkg *types.Package,
	importNames map[string]string,
) (Placement, error) {
	static := isStaticContext(ancestors)

	switch anchor.(type) {
	case *ast.IncDecStmt, *ast.AssignStmt:
		if err := checkStatementContext(anchor, ancestors); err != nil {
			return Placement{}, err
		}

		return Placement{Kind: placeStatement, Static: static}, nil
	}

	expr, ok := anchor.(ast.Expr)
	if !ok {
		return Placement{}, fmt.Errorf("%w: anchor is neither statement nor expression", errUnsupportedPlacement)
	}

	if err := checkExpressionContext(expr, ancestors); err != nil {
		return Placement{}, err
	}

	typeStr, err := resolveResultType(expr, info, currentPkg, importNames)
	if err != nil {
		return Placement{}, err
	}

	return Placement{Kind: placeExpression, TypeStr: typeStr, Static: static}, nil
}

// checkStatementContext refuses positions where Go forbids an if statement:
// the init/post clauses of for, if, and switch headers.
func checkStatementContext(stmt ast.Node, ancestors []ast.Node) error {
	if len(ancestors) == 0 {
		return nil
	}

	parent := ancestors[len(ancestors)-1]

	switch par := parent.(type) {
	case *ast.ForStmt:
		if par.Init == stmt || par.Post == stmt {
			return fmt.Errorf("%w: for-clause statement", errUnsupportedPlacement)
		}
	case *ast.IfStmt:
		if par.Init == stmt {
			return fmt.Errorf("%w: if-init statement", errUnsupportedPlacement)
		}
	case *ast.SwitchStmt:
		if par.Init == stmt {
			return fmt.Errorf("%w: switch-init statement", errUnsupportedPlacement)
		}
	case *ast.TypeSwitchStmt:
		if par.Init == stmt {
			return fmt.Errorf("%w: switch-init statement", errUnsupportedPlacement)
		}
	}

	return nil
}

// checkExpressionContext refuses constant positions and other spots where a
// function-literal call cannot stand in for the original expression.
func checkExpressionContext(expr ast.Expr, ancestors []ast.Node) error {
	child := ast.Node(expr)

	for i := len(ancestors) - 1; i >= 0; i-- {
		switch anc := ancestors[i].(type) {
		case *ast.GenDecl:
			if anc.Tok == token.CONST {
				return fmt.Errorf("%w: constant declaration", errUnsupportedPlacement)
			}
		case *ast.ArrayType:
			if anc.Len != nil && anc.Len == child {
				return fmt.Errorf("%w: array length", errUnsupportedPlacement)
			}
		case *ast.DeferStmt:
			if anc.Call == child {
				return fmt.Errorf("%w: deferred call", errUnsupportedPlacement)
			}
		case *ast.GoStmt:
			if anc.Call == child {
				return fmt.Errorf("%w: go call", errUnsupportedPlacement)
			}
		case *ast.CaseClause:
			// Case clauses hang off the switch body block; only the clause's
			// expression list is off-limits, and only for type switches where
			// the entries are types, not values.
			if i >= 2 && exprInList(anc.List, child) {
				if _, isTypeSwitch := ancestors[i-2].(*ast.TypeSwitchStmt); isTypeSwitch {
					return fmt.Errorf("%w: type switch case", errUnsupportedPlacement)
				}
			}
		}

		child = ancestors[i]
	}

	return nil
}

func exprInList(list []ast.Expr, node ast.Node) bool {
	for _, expr := range list {
		if expr == node {
			return true
		}
	}

	return false
}

// resolveResultType renders the expression's type, qualified against the
// file's imports. Untyped constants take their default type; nil, tuples,
// and unnameable types refuse.
func resolveResultType(expr ast.Expr, info *types.Info, currentPkg *types.Package, importNames map[string]string) (string, error) {
	if info == nil {
		return "", fmt.Errorf("%w: no semantic info", errUnsupportedPlacement)
	}

	t := info.TypeOf(expr)
	if t == nil {
		return "", fmt.Errorf("%w: untyped site", errUnsupportedPlacement)
	}

	if basic, ok := t.(*types.Basic); ok {
		if basic.Kind() == types.Invalid || basic.Kind() == types.UntypedNil {
			return "", fmt.Errorf("%w: unusable type %s", errUnsupportedPlacement, basic)
		}

		if basic.Info()&types.IsUntyped != 0 {
			t = types.Default(t)
		}
	}

	if _, ok := t.(*types.Tuple); ok {
		return "", fmt.Errorf("%w: multi-value expression", errUnsupportedPlacement)
	}

	nameable := true
	qualifier := func(p *types.Package) string {
		if p == currentPkg {
			return ""
		}

		if name, ok := importNames[p.Path()]; ok {
			return name
		}

		nameable = false

		return p.Name()
	}

	rendered := types.TypeString(t, qualifier)
	if !nameable {
		return "", fmt.Errorf("%w: type %s not nameable here", errUnsupportedPlacement, rendered)
	}

	return rendered, nil
}

// isStaticContext reports whether the innermost function context is a
// one-time initializer. Package-level initializers and init functions are
// static; when only function literals enclose the site the answer stays
// conservative: static.
func isStaticContext(ancestors []ast.Node) bool {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if fd, ok := ancestors[i].(*ast.FuncDecl); ok {
			return fd.Name.Name == "init" && fd.Recv == nil
		}
	}

	return true
}

// site is one guarded anchor: a span in the original file and the live
// mutants selected there.
type site struct {
	span    m.Span
	kind    placementKind
	typeStr string
	static  bool
	mutants []*m.Mutant
}

// placedMutant pairs a tracked mutant with its resolved placement.
type placedMutant struct {
	mutant    *m.Mutant
	placement Placement
}

// buildSites groups placed mutants by anchor span. Mutants sharing a span
// share one guard; ids stay in ascending order within a site.
func buildSites(placed []placedMutant) []*site {
	byKey := make(map[m.Span]*site)

	var sites []*site

	for _, pm := range placed {
		key := pm.mutant.Span

		s, ok := byKey[key]
		if !ok {
			s = &site{
				span:    key,
				kind:    pm.placement.Kind,
				typeStr: pm.placement.TypeStr,
				static:  pm.placement.Static,
			}
			byKey[key] = s
			sites = append(sites, s)
		}

		s.mutants = append(s.mutants, pm.mutant)
	}

	for _, s := range sites {
		sort.Slice(s.mutants, func(i, j int) bool { return s.mutants[i].ID < s.mutants[j].ID })
	}

	sort.Slice(sites, func(i, j int) bool {
		if sites[i].span.Start != sites[j].span.Start {
			return sites[i].span.Start < sites[j].span.Start
		}

		return sites[i].span.End > sites[j].span.End
	})

	return sites
}

type renderNode struct {
	s        *site
	children []*renderNode
}

// buildForest nests sites by span containment. Sites are pre-sorted by
// (start asc, end desc) so a simple stack suffices.
func buildForest(sites []*site) []*renderNode {
	var roots []*renderNode

	var stack []*renderNode

	for _, s := range sites {
		node := &renderNode{s: s}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if s.span.Start >= top.s.span.Start && s.span.End <= top.s.span.End {
				break
			}

			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			top := stack[len(stack)-1]
			top.children = append(top.children, node)
		}

		stack = append(stack, node)
	}

	return roots
}

// RenderFile produces the instrumented file text: original bytes with every
// live site replaced by its guard, plus the helper import spliced in after
// the package clause. Mutants in excluded are rendered as if absent, which
// is how the rollback loop excises compile-error mutants without re-running
// mutators.
func (p *Placer) RenderFile(content []byte, sites []*site, importOffset int, importText string, excluded map[int]bool) []byte {
	roots := buildForest(sites)

	var b strings.Builder

	p.renderRange(&b, content, 0, len(content), roots, excluded)

	rendered := b.String()

	if importText == "" || !anyLive(sites, excluded) {
		return []byte(rendered)
	}

	// The package clause precedes every site, so the prefix is unchanged.
	return []byte(rendered[:importOffset] + importText + rendered[importOffset:])
}

func anyLive(sites []*site, excluded map[int]bool) bool {
	for _, s := range sites {
		if len(liveMutants(s, excluded)) > 0 {
			return true
		}
	}

	return false
}

func liveMutants(s *site, excluded map[int]bool) []*m.Mutant {
	var live []*m.Mutant

	for _, mutant := range s.mutants {
		if !excluded[mutant.ID] {
			live = append(live, mutant)
		}
	}

	return live
}

func (p *Placer) renderRange(b *strings.Builder, content []byte, from, to int, nodes []*renderNode, excluded map[int]bool) {
	cur := from

	for _, node := range nodes {
		b.Write(content[cur:node.s.span.Start])
		p.renderSite(b, content, node, excluded)
		cur = node.s.span.End
	}

	b.Write(content[cur:to])
}

func (p *Placer) renderSite(b *strings.Builder, content []byte, node *renderNode, excluded map[int]bool) {
	live := liveMutants(node.s, excluded)

	if len(live) == 0 {
		// Site fully excised: emit the original text, children still apply.
		p.renderRange(b, content, node.s.span.Start, node.s.span.End, node.children, excluded)
		return
	}

	if node.s.kind == placeStatement {
		p.renderStatementSite(b, content, node, live, excluded)
		return
	}

	p.renderExpressionSite(b, content, node, live, excluded)
}

// renderExpressionSite emits the ternary-style selection:
//
//	ns.Sel(ns.Site{...}, func() T { return orig }, map[int]func() T{id: func() T { return mutated }})
func (p *Placer) renderExpressionSite(b *strings.Builder, content []byte, node *renderNode, live []*m.Mutant, excluded map[int]bool) {
	s := node.s

	fmt.Fprintf(b, "%s.Sel(%s.Site{IDs: []int{%s}, Static: %t}, func() %s { return ",
		p.ns, p.ns, joinIDs(live), s.static, s.typeStr)
	p.renderRange(b, content, s.span.Start, s.span.End, node.children, excluded)
	fmt.Fprintf(b, " }, map[int]func() %s{", s.typeStr)

	for i, mutant := range live {
		if i > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(b, "%d: func() %s { return %s }", mutant.ID, s.typeStr, applyEdits(content, s.span, mutant.Mutation.Edits))
	}

	b.WriteString("})")
}

// renderStatementSite emits the if/else chain:
//
//	if ns.Act(id) { ns.Cover(id, static); mutated } else { ns.CoverAll(static, ids...); orig }
func (p *Placer) renderStatementSite(b *strings.Builder, content []byte, node *renderNode, live []*m.Mutant, excluded map[int]bool) {
	s := node.s

	for _, mutant := range live {
		fmt.Fprintf(b, "if %s.Act(%d) { %s.Cover(%d, %t); %s } else ",
			p.ns, mutant.ID, p.ns, mutant.ID, s.static, applyEdits(content, s.span, mutant.Mutation.Edits))
	}

	fmt.Fprintf(b, "{ %s.CoverAll(%t, %s); ", p.ns, s.static, joinIDs(live))
	p.renderRange(b, content, s.span.Start, s.span.End, node.children, excluded)
	b.WriteString(" }")
}

// applyEdits renders the mutated text of a site: the original span bytes
// with the mutation's edits applied, rightmost first.
func applyEdits(content []byte, span m.Span, edits []m.Edit) string {
	text := string(content[span.Start:span.End])

	ordered := make([]m.Edit, len(edits))
	copy(ordered, edits)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for _, edit := range ordered {
		start := edit.Start - span.Start
		end := edit.End - span.Start

		if start < 0 || end > len(text) || start > end {
			continue
		}

		text = text[:start] + edit.Text + text[end:]
	}

	return text
}

func joinIDs(mutants []*m.Mutant) string {
	parts := make([]string, len(mutants))
	for i, mutant := range mutants {
		parts[i] = strconv.Itoa(mutant.ID)
	}

	return strings.Join(parts, ", ")
}
