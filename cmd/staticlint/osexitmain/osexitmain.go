// Package osexitmain reports os.Exit and syscall.Exit calls made from
// main.main. Such calls skip deferred work like logger.Sync and the final
// reporting cycle.
package osexitmain

import (
	"fmt"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the osexitmain analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "osexitmain",
	Doc:      "reports direct os.Exit and syscall.Exit calls in main.main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// exitFuncs lists the package paths whose Exit function is forbidden.
var exitFuncs = map[string]bool{"os": true, "syscall": true}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fd, ok := n.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || fd.Name == nil || fd.Name.Name != "main" || fd.Body == nil {
			return
		}

		// Closures declared in main run before main returns, so they are
		// inspected too.
		ast.Inspect(fd.Body, func(nn ast.Node) bool {
			call, ok := nn.(*ast.CallExpr)
			if !ok {
				return true
			}
			if pkg, ok := exitCall(pass, call); ok {
				pass.Reportf(call.Pos(), "direct call to %s.Exit in main.main; return an error from run instead", pkg)
			}
			return true
		})
	})

	return nil, nil
}

// exitCall returns the package name when call invokes a forbidden Exit.
func exitCall(pass *analysis.Pass, call *ast.CallExpr) (string, bool) {
	if call == nil || call.Fun == nil {
		return "", false
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil || sel.X == nil {
		return "", false
	}

	if pass.TypesInfo == nil || pass.TypesInfo.Uses == nil {
		return "", false
	}

	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Name() != "Exit" {
		return "", false
	}
	if !exitFuncs[fn.Pkg().Path()] {
		return "", false
	}
	return fn.Pkg().Name(), true
}
