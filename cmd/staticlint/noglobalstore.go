package main

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// storeHandles типы подключений, которые нельзя держать в глобальных переменных
var storeHandles = []string{
	"database/sql.DB",
	"github.com/redis/go-redis/v9.Client",
	"github.com/redis/go-redis/v9.UniversalClient",
	"github.com/patrickmn/go-cache.Cache",
}

// storePackages пакеты проекта, чьи хранилища и кэши передаются только явно
var storePackages = []string{
	"/internal/repository",
	"/internal/cache",
	"/internal/ratelimit",
}

var noGlobalStoreAnalyzer = &analysis.Analyzer{
	Name: "noglobalstore",
	Doc:  "запрещает хранить хранилище, кэш и клиентов Redis в переменных уровня пакета",
	Run:  runNoGlobalStore,
}

func runNoGlobalStore(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.VAR {
				continue
			}
			for _, spec := range gen.Specs {
				vs := spec.(*ast.ValueSpec)
				for _, name := range vs.Names {
					obj := pass.TypesInfo.Defs[name]
					if obj == nil || name.Name == "_" {
						continue
					}
					if isStoreHandle(obj.Type()) {
						pass.Reportf(name.Pos(), "глобальная переменная %s типа %s: передавайте её явно", name.Name, obj.Type())
					}
				}
			}
		}
	}
	return nil, nil
}

func isStoreHandle(t types.Type) bool {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}

	path := named.Obj().Pkg().Path()
	full := path + "." + named.Obj().Name()
	for _, h := range storeHandles {
		if full == h {
			return true
		}
	}
	for _, p := range storePackages {
		if strings.Contains(path, p) && closable(named) {
			return true
		}
	}
	return false
}

// closable у типа есть Close: это ресурс, а не значение конфигурации
func closable(named *types.Named) bool {
	var recv types.Type = types.NewPointer(named)
	if types.IsInterface(named) {
		recv = named
	}
	obj, _, _ := types.LookupFieldOrMethod(recv, true, named.Obj().Pkg(), "Close")
	_, ok := obj.(*types.Func)
	return ok
}
