// Package domain contains the core mutation testing engine: orchestration,
// mutant placement, the compile/rollback loop, and the test scheduler.
package domain

import (
	"fmt"
	"go/ast"
	"go/token"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pmezard/go-difflib/difflib"

	"strykr.dev/pkg/strykr/internal/adapter"
	"strykr.dev/pkg/strykr/internal/domain/mutators"
	m "strykr.dev/pkg/strykr/internal/model"
)

// analysisCacheSize bounds the per-file analysis cache. Keyed by content
// hash, so a file analysed again by the same orchestrator skips mutator
// application while its content is unchanged.
const analysisCacheSize = 512

// candidate is one proposed mutation with its placement decision, before id
// assignment. Candidates are pure per file content and cacheable.
type candidate struct {
	mutation     m.Mutation
	placement    Placement
	refused      bool
	refuseReason string
	annotated    bool
}

// FileAnalysis is the cacheable result of applying the registry to a file.
type FileAnalysis struct {
	candidates   []candidate
	importOffset int
}

// InstrumentedFile carries a source unit's guarded rendering plus enough
// injection metadata for the rollback loop to excise mutants without
// re-running mutators.
type InstrumentedFile struct {
	Unit         *adapter.SourceUnit
	Sites        []*site
	ImportOffset int
	ImportText   string
	Excluded     map[int]bool
	Rendered     []byte
	Mutants      []*m.Mutant
}

// Rerender regenerates the instrumented text honoring the excluded set.
func (f *InstrumentedFile) Rerender(p *Placer) {
	f.Rendered = p.RenderFile(f.Unit.Content, f.Sites, f.ImportOffset, f.ImportText, f.Excluded)
}

// Orchestrator walks source trees depth-first, applies every registered
// mutator whose level fits the session, delegates placement, and assigns
// globally unique mutant ids from the session allocator.
type Orchestrator struct {
	session  *Session
	placer   *Placer
	registry []mutators.Mutator
	cache    *lru.Cache[string, FileAnalysis]
}

// NewOrchestrator builds an orchestrator bound to a session.
func NewOrchestrator(session *Session) (*Orchestrator, error) {
	registry, err := mutators.ByType(session.Options.Types...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	cache, err := lru.New[string, FileAnalysis](analysisCacheSize)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		session:  session,
		placer:   NewPlacer(session.Options.HelperNamespace),
		registry: registry,
		cache:    cache,
	}, nil
}

func (o *Orchestrator) cacheKey(unit *adapter.SourceUnit) string {
	types := make([]string, len(o.registry))
	for i, mut := range o.registry {
		types[i] = string(mut.Type)
	}

	return unit.Hash + "|" + o.session.Options.Level.String() + "|" + strings.Join(types, ",")
}

// Analyze applies the registry to a unit and resolves placements. The result
// depends only on file content and options, so it is cached by content hash.
func (o *Orchestrator) Analyze(unit *adapter.SourceUnit) FileAnalysis {
	key := o.cacheKey(unit)

	if analysis, ok := o.cache.Get(key); ok {
		return analysis
	}

	analysis := o.analyze(unit)
	o.cache.Add(key, analysis)

	return analysis
}

func (o *Orchestrator) analyze(unit *adapter.SourceUnit) FileAnalysis {
	ignoreIdx := buildIgnoreIndex(unit.File, unit.Fset)

	importOffset, _ := nodeOffset(unit.Fset, unit.File.Name.End())

	analysis := FileAnalysis{importOffset: importOffset}

	walkWithAncestors(unit.File, func(n ast.Node, stack []ast.Node) bool {
		if _, ok := n.(*ast.ImportSpec); ok {
			return false
		}

		if isStructTag(n, stack) {
			return true
		}

		for _, mut := range o.registry {
			if mut.Level > o.session.Options.Level {
				continue
			}

			for _, mutation := range mut.Apply(n, unit.Fset, unit.Info) {
				analysis.candidates = append(analysis.candidates, o.resolveCandidate(unit, n, stack, mutation, ignoreIdx))
			}
		}

		return true
	})

	return analysis
}

func (o *Orchestrator) resolveCandidate(
	unit *adapter.SourceUnit,
	n ast.Node,
	stack []ast.Node,
	mutation m.Mutation,
	ignoreIdx ignoreIndex,
) candidate {
	cand := candidate{mutation: mutation}

	anchor := findAnchor(n, unit.Fset, mutation.Span)

	ancestors := stack
	if anchor != n {
		ancestors = make([]ast.Node, 0, len(stack)+1)
		ancestors = append(ancestors, stack...)
		ancestors = append(ancestors, n)
	}

	placement, err := o.placer.Resolve(anchor, ancestors, unit.Info, unit.Pkg, unit.ImportNames)
	if err != nil {
		cand.refused = true
		cand.refuseReason = reasonUnsupportedPlacement

		slog.Debug("placement refused",
			"file", unit.Path, "line", mutation.Span.StartLine, "mutation", mutation.DisplayName, "reason", err)
	} else {
		cand.placement = placement
	}

	if ignoreIdx.ignoresAt(mutation.Type, mutation.Span.StartLine, funcPositions(stack)) {
		cand.annotated = true
	}

	return cand
}

// Process assigns ids in traversal order, tracks the mutants with the
// session, and renders the instrumented file.
func (o *Orchestrator) Process(unit *adapter.SourceUnit, modulePath string) *InstrumentedFile {
	analysis := o.Analyze(unit)

	var placed []placedMutant

	mutants := make([]*m.Mutant, 0, len(analysis.candidates))

	for _, cand := range analysis.candidates {
		mutant := &m.Mutant{
			File:     unit.Path,
			Span:     cand.mutation.Span,
			Mutation: cand.mutation,
			Static:   cand.placement.Static,
			Diff:     siteDiff(unit.Content, cand.mutation),
		}

		o.session.Track(mutant)
		mutants = append(mutants, mutant)

		switch {
		case cand.refused:
			o.session.SetStatus(mutant.ID, m.StatusIgnored, cand.refuseReason)
		case cand.annotated:
			o.session.SetStatus(mutant.ID, m.StatusIgnored, "annotation")
		default:
			placed = append(placed, placedMutant{mutant: mutant, placement: cand.placement})
		}
	}

	ns := o.session.Options.HelperNamespace

	file := &InstrumentedFile{
		Unit:         unit,
		Sites:        buildSites(placed),
		ImportOffset: analysis.importOffset,
		ImportText:   "\n\nimport " + ns + " " + strconv.Quote(modulePath+"/"+ns),
		Excluded:     make(map[int]bool),
		Mutants:      mutants,
	}

	file.Rerender(o.placer)

	return file
}

// Placer exposes the orchestrator's placer for re-rendering.
func (o *Orchestrator) Placer() *Placer {
	return o.placer
}

// walkWithAncestors is a depth-first traversal that hands each node its
// ancestor chain, outermost first. Returning false skips the subtree.
func walkWithAncestors(root ast.Node, visit func(n ast.Node, ancestors []ast.Node) bool) {
	var stack []ast.Node

	ast.Inspect(root, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}

		if !visit(n, stack) {
			return false
		}

		stack = append(stack, n)

		return true
	})
}

// findAnchor locates the node inside n whose span matches the mutation's
// anchor; the node itself when the spans coincide.
func findAnchor(n ast.Node, fset *token.FileSet, span m.Span) ast.Node {
	var anchor ast.Node

	ast.Inspect(n, func(node ast.Node) bool {
		if node == nil || anchor != nil {
			return false
		}

		start, ok := nodeOffset(fset, node.Pos())
		if !ok {
			return false
		}

		end, ok := nodeOffset(fset, node.End())
		if !ok {
			return false
		}

		if start == span.Start && end == span.End {
			anchor = node
			return false
		}

		return start <= span.Start && end >= span.End
	})

	if anchor == nil {
		return n
	}

	return anchor
}

func nodeOffset(fset *token.FileSet, pos token.Pos) (int, bool) {
	file := fset.File(pos)
	if file == nil {
		return 0, false
	}

	return file.Offset(pos), true
}

func isStructTag(n ast.Node, stack []ast.Node) bool {
	lit, ok := n.(*ast.BasicLit)
	if !ok || len(stack) == 0 {
		return false
	}

	field, ok := stack[len(stack)-1].(*ast.Field)

	return ok && field.Tag == lit
}

func funcPositions(stack []ast.Node) []token.Pos {
	var positions []token.Pos

	for _, n := range stack {
		if fd, ok := n.(*ast.FuncDecl); ok {
			positions = append(positions, fd.Pos())
		}
	}

	return positions
}

// siteDiff renders a unified diff of the anchor site, original vs mutated.
func siteDiff(content []byte, mutation m.Mutation) string {
	if mutation.Span.End > len(content) || mutation.Span.Start > mutation.Span.End {
		return ""
	}

	original := string(content[mutation.Span.Start:mutation.Span.End])
	mutated := applyEdits(content, mutation.Span, mutation.Edits)

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(mutated),
		FromFile: "original",
		ToFile:   "mutated",
		Context:  1,
	})
	if err != nil {
		return ""
	}

	return diff
}

// generatedRx matches the standard generated-code marker line.
var generatedRx = regexp.MustCompile(`^// Code generated .* DO NOT EDIT\.$`)

// IsGeneratedSource reports whether the file carries the conventional
// generated-code header before its package clause.
func IsGeneratedSource(content []byte) bool {
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "package ") {
			return false
		}

		if generatedRx.MatchString(trimmed) {
			return true
		}
	}

	return false
}
