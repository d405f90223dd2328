package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tangzhangming/classgen/internal/bytecode"
)

// cmdDump 反汇编类模块
func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: classgen dump <file" + ModuleExt + ">...")
		fmt.Println()
		fmt.Println("Print the constant pool, fields and disassembled methods of each class module.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	failed := false
	for _, path := range requireFiles(fs) {
		cf, err := readModule(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("// %s\n", path)
		fmt.Print(bytecode.Disassemble(cf))
		fmt.Println()
	}
	if failed {
		os.Exit(1)
	}
}

// readModule 读取并反序列化类模块，摘要不符时返回错误
func readModule(path string) (*bytecode.ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytecode.Deserialize(data)
}
