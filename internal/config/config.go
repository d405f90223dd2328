// Package config 加载代码生成后端的编译选项
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// 常量定义
const (
	ConfigFileName  = "classgen.toml" // 配置文件名
	DefaultMaxStack = 1024            // 默认最大操作数栈深度
)

// Config 编译器配置
type Config struct {
	Target  TargetConfig  `toml:"target"`
	Debug   DebugConfig   `toml:"debug"`
	Compile CompileConfig `toml:"compile"`
	Log     LogConfig     `toml:"log"`
}

// TargetConfig 目标格式
type TargetConfig struct {
	// Version 产物格式版本，形如 "1.0"，为空表示当前版本
	Version string `toml:"version"`
}

// DebugConfig 调试信息
type DebugConfig struct {
	Lines  bool `toml:"lines"`  // 生成行号表
	Locals bool `toml:"locals"` // 生成局部变量表
}

// CompileConfig 编译行为
type CompileConfig struct {
	Parallel  bool `toml:"parallel"`  // 多个类并行生成
	MaxStack  int  `toml:"max_stack"` // 单个方法允许的最大栈深度
	Timestamp bool `toml:"timestamp"` // 生成 __timeStamp 标记字段
}

// LogConfig 日志
type LogConfig struct {
	Level string `toml:"level"` // debug / info / warn / error
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Debug: DebugConfig{
			Lines:  true,
			Locals: true,
		},
		Compile: CompileConfig{
			MaxStack:  DefaultMaxStack,
			Timestamp: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig 从文件加载配置，未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 TOML 配置
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Compile.MaxStack <= 0 || c.Compile.MaxStack > 0xFFFF {
		return fmt.Errorf("compile.max_stack must be in [1, 65535], got %d", c.Compile.MaxStack)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	if v := c.Target.Version; v != "" && !strings.HasPrefix(v, "1.") && v != "1" {
		return fmt.Errorf("unsupported target.version %q", v)
	}
	return nil
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
