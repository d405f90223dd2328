package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tangzhangming/classgen/internal/config"
)

// cmdInit 在目标目录生成默认配置文件
func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", ".", "directory to write "+config.ConfigFileName+" into")
	parallel := fs.Bool("parallel", false, "enable parallel class generation")
	fs.Usage = func() {
		fmt.Println("Usage: classgen init [options]")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	// 检查是否已存在配置文件
	configPath := filepath.Join(*dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		fatalf("%s already exists", configPath)
	}

	cfg := config.Default()
	cfg.Compile.Parallel = *parallel

	fmt.Printf("Creating %s\n", configPath)
	if err := cfg.Save(configPath); err != nil {
		fatalf("%v", err)
	}
}
