package main

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
)

// noOsExitAnalyzer запрещает os.Exit прямо в main: завершение должно проходить
// через graceful shutdown с закрытием хранилища и кэша.
var noOsExitAnalyzer = &analysis.Analyzer{
	Name: "noosexit",
	Doc:  "запрещает использование os.Exit в функции main пакета main",
	Run:  runNoOsExit,
}

func runNoOsExit(pass *analysis.Pass) (any, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				switch node := n.(type) {
				// Горутины, defer и замыкания не считаются прямым вызовом
				case *ast.FuncLit, *ast.GoStmt, *ast.DeferStmt:
					return false
				case *ast.CallExpr:
					if isOsExit(node) {
						pass.Reportf(node.Pos(), "использование os.Exit в функции main запрещено")
					}
				}
				return true
			})
		}
	}
	return nil, nil
}

func isOsExit(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == "os" && sel.Sel.Name == "Exit"
}
