// Package main multichecker для статического анализа кода сервиса.
//
// Запуск:
//
//	go build -o staticlint ./cmd/staticlint
//	./staticlint ./...
//
// Состав:
//
//   - printf, shadow, structtag, unusedresult из golang.org/x/tools/go/analysis/passes;
//   - все анализаторы класса SA из staticcheck.io;
//   - noosexit: запрещает прямой вызов os.Exit в функции main пакета main;
//   - noglobalstore: запрещает хранить подключения к хранилищу, кэшу и Redis
//     в переменных уровня пакета. Такие ресурсы создаются в main и передаются явно.
package main

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/staticcheck"
)

func main() {
	checks := []*analysis.Analyzer{
		printf.Analyzer,
		shadow.Analyzer,
		structtag.Analyzer,
		unusedresult.Analyzer,

		noOsExitAnalyzer,
		noGlobalStoreAnalyzer,
	}

	for _, v := range staticcheck.Analyzers {
		checks = append(checks, v.Analyzer)
	}

	multichecker.Main(checks...)
}
