package mutators

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	m "strykr.dev/pkg/strykr/internal/model"
)

// callSwaps lists well-known function pairs whose members share a signature,
// keyed by package path then function name.
var callSwaps = map[string]map[string]string{
	"strings": {
		"ToUpper":    "ToLower",
		"ToLower":    "ToUpper",
		"TrimPrefix": "TrimSuffix",
		"TrimSuffix": "TrimPrefix",
		"HasPrefix":  "HasSuffix",
		"HasSuffix":  "HasPrefix",
		"TrimLeft":   "TrimRight",
		"TrimRight":  "TrimLeft",
	},
	"math": {
		"Min":   "Max",
		"Max":   "Min",
		"Ceil":  "Floor",
		"Floor": "Ceil",
	},
}

// GenerateMethodCallMutations swaps calls to well-known directional helpers
// with their mirror (strings.ToUpper <-> strings.ToLower, math.Min <->
// math.Max). When type information resolves the qualifier, the package path
// must match; otherwise the written qualifier name decides.
func GenerateMethodCallMutations(n ast.Node, fset *token.FileSet, info *types.Info) []m.Mutation {
	call, ok := n.(*ast.CallExpr)
	if !ok {
		return nil
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil
	}

	qualifier, ok := sel.X.(*ast.Ident)
	if !ok {
		return nil
	}

	pkgPath := resolvePackagePath(info, qualifier)
	swaps, ok := callSwaps[pkgPath]
	if !ok {
		return nil
	}

	replacement, ok := swaps[sel.Sel.Name]
	if !ok {
		return nil
	}

	span, ok := spanOf(fset, call)
	if !ok {
		return nil
	}

	nameStart, ok := offsetForPos(fset, sel.Sel.Pos())
	if !ok {
		return nil
	}

	return []m.Mutation{{
		Type:        m.MutationMethodCall,
		DisplayName: fmt.Sprintf("%s.%s -> %s.%s", qualifier.Name, sel.Sel.Name, qualifier.Name, replacement),
		Edits:       []m.Edit{{Start: nameStart, End: nameStart + len(sel.Sel.Name), Text: replacement}},
		Span:        span,
	}}
}

// resolvePackagePath returns the import path the qualifier stands for, or
// the written name when the use is unresolved.
func resolvePackagePath(info *types.Info, qualifier *ast.Ident) string {
	if info != nil {
		if obj, ok := info.Uses[qualifier]; ok {
			pkgName, ok := obj.(*types.PkgName)
			if !ok {
				return "" // shadowed by a local declaration
			}

			return pkgName.Imported().Path()
		}
	}

	return qualifier.Name
}
