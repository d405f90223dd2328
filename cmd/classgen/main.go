package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/config"
)

const (
	Version = "0.1.0"
)

// ModuleExt 类模块文件扩展名
const ModuleExt = ".gcls"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "dump":
		cmdDump(args)
	case "verify":
		cmdVerify(args)
	case "run":
		cmdRun(args)
	case "sample":
		cmdSample(args)
	case "init":
		cmdInit(args)
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("classgen - class module code generator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  classgen <command> [options] [files]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  dump     Disassemble class modules")
	fmt.Println("  verify   Check integrity and stack discipline of class modules")
	fmt.Println("  run      Load class modules and call a static main method")
	fmt.Println("  sample   Compile the bundled sample unit into class modules")
	fmt.Println("  init     Write a default " + config.ConfigFileName)
	fmt.Println("  version  Show version information")
	fmt.Println("  help     Show this help")
}

func cmdVersion() {
	fmt.Printf("classgen version %s\n", Version)
}

// ============================================================================
// 公共参数
// ============================================================================

// commonFlags 各子命令共享的 -config 与 -log 参数
type commonFlags struct {
	configPath *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "", "path to "+config.ConfigFileName),
		logLevel:   fs.String("log", "", "log level (debug, info, warn, error)"),
	}
}

// load 读取配置；未指定 -config 时尝试当前目录下的配置文件
func (c *commonFlags) load() *config.Config {
	path := *c.configPath
	if path == "" {
		if _, err := os.Stat(config.ConfigFileName); err != nil {
			return config.Default()
		}
		path = config.ConfigFileName
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fatalf("%v", err)
	}
	return cfg
}

// logger 按日志级别创建 zap logger，-log 优先于配置文件
func (c *commonFlags) logger(cfg *config.Config) *zap.Logger {
	level := cfg.Log.Level
	if *c.logLevel != "" {
		level = *c.logLevel
	}
	zc := zap.NewDevelopmentConfig()
	if level != "" {
		if err := zc.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			fatalf("invalid log level %q", level)
		}
	}
	zc.OutputPaths = []string{"stderr"}
	log, err := zc.Build()
	if err != nil {
		fatalf("failed to create logger: %v", err)
	}
	return log
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// requireFiles 检查位置参数
func requireFiles(fs *flag.FlagSet) []string {
	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "error: no input files")
		fs.Usage()
		os.Exit(1)
	}
	return files
}
