package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/compiler"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
)

// cmdSample 编译内置的示例编译单元并写出类模块
func cmdSample(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	common := addCommonFlags(fs)
	outDir := fs.String("o", ".", "output directory")
	diagnostics := fs.Bool("diagnostics", false, "print compile errors as LSP publishDiagnostics JSON")
	fs.Usage = func() {
		fmt.Println("Usage: classgen sample [options]")
		fmt.Println()
		fmt.Println("Compiles a built-in unit equivalent to:")
		fmt.Println()
		fmt.Println(sampleSource)
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := common.load()
	log := common.logger(cfg)
	defer log.Sync()

	res, err := compiler.New(compiler.OptionsFromConfig(cfg, log)).Compile(context.Background(), sampleUnit())
	if res == nil {
		fatalf("internal compiler error: %v", err)
	}
	if len(res.Errors) > 0 {
		if *diagnostics {
			if err := printDiagnostics(res.Errors); err != nil {
				fatalf("%v", err)
			}
		} else {
			reporter := errors.NewReporter(os.Stderr)
			reporter.ReportAll(res.Errors)
			reporter.Summary()
		}
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fatalf("%v", err)
	}
	for _, cf := range res.Classes {
		data, err := bytecode.Serialize(cf)
		if err != nil {
			fatalf("%s: %v", cf.Name, err)
		}
		path := filepath.Join(*outDir, strings.ReplaceAll(cf.Name, "/", ".")+ModuleExt)
		if err := os.WriteFile(path, data, 0644); err != nil {
			fatalf("%v", err)
		}
		log.Info("wrote module", zap.String("class", cf.Name), zap.String("file", path), zap.Int("bytes", len(data)))
	}
}

const sampleSource = `    package demo
    class C {
        def m(a, b = 2) { return a + b }
        static void main(String[] args) {
            def c = new C()
            println(c.m(3))
            def total = 0
            [1, 2, 3].each { total = total + it }
            println(total)
            try { println("body") } finally { println("finally") }
        }
    }`

// sampleUnit 构造与 sampleSource 等价的已解析语法树
func sampleUnit() *ast.CompileUnit {
	const file = "Sample.groovy"
	class := ast.NewClass("demo.C", ast.AccPublic, nil)
	class.SourceFile = file

	class.AddMethod(ast.NewMethod("m", ast.AccPublic, nil,
		ast.Params(ast.Param("a", nil), ast.ParamWithDefault("b", nil, ast.Const(2))),
		ast.Block(ast.Return(ast.Binary(token.PLUS, ast.Var("a"), ast.Var("b"))))))

	total := ast.Var("total")
	total.ClosureShared = true
	body := ast.Block(
		ast.Stmt(ast.Declare(ast.Var("c"), ast.New(class.Type()))),
		ast.Stmt(ast.Call(nil, "println", ast.Call(ast.Var("c"), "m", ast.Const(3)))),
		ast.Stmt(ast.Declare(total, ast.Const(0))),
		ast.Stmt(ast.Call(ast.List(ast.Const(1), ast.Const(2), ast.Const(3)), "each",
			ast.Closure(nil, ast.Block(ast.Stmt(ast.Assign(ast.Var("total"),
				ast.Binary(token.PLUS, ast.Var("total"), ast.Var("it")))))))),
		ast.Stmt(ast.Call(nil, "println", ast.Var("total"))),
		ast.Try(
			ast.Block(ast.Stmt(ast.Call(nil, "println", ast.Const("body")))),
			ast.Block(ast.Stmt(ast.Call(nil, "println", ast.Const("finally"))))),
	)
	class.AddMethod(ast.NewMethod("main", ast.AccPublic|ast.AccStatic, ast.VoidType,
		ast.Params(ast.Param("args", ast.ArrayOf(ast.StringType))), body))

	return &ast.CompileUnit{Source: file, Classes: []*ast.ClassNode{class}}
}
