package main

import (
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/vm"
)

// cmdRun 加载类模块并调用静态 main 方法
func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := addCommonFlags(fs)
	mainClass := fs.String("main", "", "class whose static main method is called (dotted name)")
	profile := fs.Bool("profile", false, "print call and branch statistics after the run")
	maxDepth := fs.Int("max-depth", vm.MaxCallDepth, "maximum call depth")
	fs.Usage = func() {
		fmt.Println("Usage: classgen run -main <class> [options] <file" + ModuleExt + ">... [-- args]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *mainClass == "" {
		fmt.Fprintln(os.Stderr, "error: -main is required")
		fs.Usage()
		os.Exit(1)
	}

	files, progArgs := splitArgs(requireFiles(fs))
	cfg := common.load()
	log := common.logger(cfg)
	defer log.Sync()

	var profiler *vm.Profiler
	if *profile {
		profiler = vm.NewProfiler()
	}
	machine := vm.New(&vm.Options{Logger: log, MaxDepth: *maxDepth, Profiler: profiler})
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fatalf("%v", err)
		}
		if err := machine.LoadModule(data); err != nil {
			fatalf("%s: %v", path, err)
		}
		log.Debug("loaded module", zap.String("file", path))
	}

	runErr := machine.Run(strings.ReplaceAll(*mainClass, ".", "/"), progArgs)
	if profiler != nil {
		printProfile(profiler)
	}
	if runErr != nil {
		var thrown *vm.Thrown
		if stderrors.As(runErr, &thrown) {
			fmt.Fprintf(os.Stderr, "Exception in main: %s\n", thrown.Error())
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		}
		os.Exit(1)
	}
}

// splitArgs 以 "--" 分隔模块文件与程序参数
func splitArgs(args []string) ([]string, []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func printProfile(p *vm.Profiler) {
	fmt.Fprintln(os.Stderr, "\n=== Profile ===")
	for _, mp := range p.Snapshot() {
		fmt.Fprintf(os.Stderr, "%-40s calls=%-8d instructions=%d\n",
			mp.Class+"."+mp.Method+mp.Descriptor, mp.Calls.Load(), mp.Instructions.Load())
		for _, pc := range mp.Branches() {
			bp := mp.Branch(pc)
			fmt.Fprintf(os.Stderr, "    @%-5d taken=%d not-taken=%d biased=%v\n",
				pc, bp.Taken.Load(), bp.NotTaken.Load(), bp.IsBiased())
		}
	}
}
