package main

import (
	"go/ast"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// WallClockAnalyzer forbids reading the wall clock inside pure packages.
var WallClockAnalyzer = &analysis.Analyzer{
	Name:     "wallclocklint",
	Doc:      "reports time.Now calls in packages that must take time as input",
	Run:      runWallClock,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

var purePackages = "github.com/atinyakov/linkgate/internal/gate"

func init() {
	WallClockAnalyzer.Flags.StringVar(&purePackages, "packages", purePackages,
		"comma-separated import paths where time.Now is forbidden")
}

func isPure(path string) bool {
	for _, p := range strings.Split(purePackages, ",") {
		if strings.TrimSpace(p) == path {
			return true
		}
	}
	return false
}

func runWallClock(pass *analysis.Pass) (interface{}, error) {
	if !isPure(pass.Pkg.Path()) {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		if isPkgFunc(pass, call, "time", "Now") || isPkgFunc(pass, call, "time", "Since") {
			pass.Reportf(call.Pos(), "time.Now is forbidden in %s: take the time from RequestContext.Now", pass.Pkg.Name())
		}
	})

	return nil, nil
}
