package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
)

// cmdVerify 校验类模块的完整性与栈纪律
func cmdVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	common := addCommonFlags(fs)
	diagnostics := fs.Bool("diagnostics", false, "print problems as LSP publishDiagnostics JSON")
	fs.Usage = func() {
		fmt.Println("Usage: classgen verify [options] <file" + ModuleExt + ">...")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := common.load()
	log := common.logger(cfg)
	defer log.Sync()

	var problems []*errors.CompileError
	for _, path := range requireFiles(fs) {
		errs := verifyFile(path, cfg.Compile.MaxStack)
		log.Debug("verified module", zap.String("file", path), zap.Int("problems", len(errs)))
		problems = append(problems, errs...)
	}

	if *diagnostics {
		if err := printDiagnostics(problems); err != nil {
			fatalf("%v", err)
		}
	} else {
		reporter := errors.NewReporter(os.Stderr)
		reporter.ReportAll(problems)
		if reporter.HasErrors() {
			reporter.Summary()
		}
	}
	if len(problems) > 0 {
		os.Exit(1)
	}
}

// verifyFile 把读取、摘要与验证失败都转换为 E0899 编译错误
func verifyFile(path string, maxStack int) []*errors.CompileError {
	problem := func(class, format string, args ...any) *errors.CompileError {
		return &errors.CompileError{
			Code:    errors.E0899,
			Level:   errors.LevelError,
			Message: fmt.Sprintf(format, args...),
			File:    path,
			Class:   class,
		}
	}

	cf, err := readModule(path)
	if err != nil {
		return []*errors.CompileError{problem("", "%v", err)}
	}
	var out []*errors.CompileError
	for _, e := range multierr.Errors(bytecode.NewVerifier(cf, maxStack).Verify()) {
		out = append(out, problem(cf.Name, "%v", e))
	}
	return out
}

// printDiagnostics 以 JSON 数组输出按文件分组的诊断信息
func printDiagnostics(errs []*errors.CompileError) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(errors.PublishParams(errs))
}
