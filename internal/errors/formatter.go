package errors

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 编译错误
// ============================================================================

// CompileError 源码级编译错误
type CompileError struct {
	Code    string   // 错误码 (E0800)
	Level   Level    // 错误级别
	Message string   // 主消息
	File    string   // 文件路径
	Line    int      // 行号
	Column  int      // 列号
	Class   string   // 出错的类
	Hints   []string // 修复建议
	Notes   []string // 附加说明
}

// Error 实现 error 接口
func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// NewCompileError 创建编译错误
func NewCompileError(code string, pos token.Position, format string, args ...any) *CompileError {
	return &CompileError{
		Code:    code,
		Level:   LevelError,
		Message: fmt.Sprintf(format, args...),
		File:    pos.Filename,
		Line:    pos.Line,
		Column:  pos.Column,
	}
}

// WithHint 附加修复建议
func (e *CompileError) WithHint(hint string) *CompileError {
	e.Hints = append(e.Hints, hint)
	return e
}

// ============================================================================
// 格式化器
// ============================================================================

// Color 终端颜色
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorYellow
	ColorBlue
	ColorCyan
	ColorBoldWhite
)

// ANSI 颜色代码
var ansiCodes = map[Color]string{
	ColorReset:     "\033[0m",
	ColorRed:       "\033[1;31m",
	ColorYellow:    "\033[1;33m",
	ColorBlue:      "\033[1;34m",
	ColorCyan:      "\033[36m",
	ColorBoldWhite: "\033[1;37m",
}

// Formatter 错误格式化器
type Formatter struct {
	Colors     bool // 是否使用颜色
	ShowSource bool // 是否显示源代码
	ShowHints  bool // 是否显示修复建议
}

// NewFormatter 创建默认格式化器
func NewFormatter() *Formatter {
	return &Formatter{
		Colors:     false,
		ShowSource: true,
		ShowHints:  true,
	}
}

// FormatCompileError 格式化编译错误
func (f *Formatter) FormatCompileError(err *CompileError, sourceLines []string) string {
	var sb strings.Builder

	// 错误头: error[E0800]: ...
	levelStr := f.colorize(err.Level.String(), f.levelColor(err.Level))
	codeStr := f.colorize(fmt.Sprintf("[%s]", err.Code), f.levelColor(err.Level))
	sb.WriteString(fmt.Sprintf("%s%s: %s\n", levelStr, codeStr, f.colorize(err.Message, ColorBoldWhite)))

	// 位置: --> file.groovy:5:12
	arrow := f.colorize("-->", ColorCyan)
	location := err.File
	if err.Line > 0 {
		location = fmt.Sprintf("%s:%d:%d", err.File, err.Line, err.Column)
	}
	sb.WriteString(fmt.Sprintf(" %s %s\n", arrow, f.colorize(location, ColorCyan)))
	if err.Class != "" {
		sb.WriteString(fmt.Sprintf("  in class %s\n", err.Class))
	}

	// 显示源代码
	if f.ShowSource && err.Line > 0 && err.Line <= len(sourceLines) {
		sb.WriteString(f.formatSourceLine(sourceLines[err.Line-1], err.Line, err.Column))
	}

	// 修复建议
	if f.ShowHints {
		for _, hint := range err.Hints {
			hintLabel := f.colorize(" = help:", ColorCyan)
			sb.WriteString(fmt.Sprintf("%s %s\n", hintLabel, hint))
		}
	}

	// 附加说明
	for _, note := range err.Notes {
		noteLabel := f.colorize(" = note:", ColorCyan)
		sb.WriteString(fmt.Sprintf("%s %s\n", noteLabel, note))
	}

	return sb.String()
}

// formatSourceLine 显示出错行并用 ^ 标出列
func (f *Formatter) formatSourceLine(line string, lineNum, col int) string {
	var sb strings.Builder
	gutter := fmt.Sprintf("%d", lineNum)
	pad := strings.Repeat(" ", len(gutter))
	bar := f.colorize("|", ColorBlue)

	sb.WriteString(fmt.Sprintf(" %s %s\n", pad, bar))
	sb.WriteString(fmt.Sprintf(" %s %s %s\n", f.colorize(gutter, ColorBlue), bar, strings.ReplaceAll(line, "\t", "    ")))
	if col > 0 {
		sb.WriteString(fmt.Sprintf(" %s %s %s%s\n", pad, bar, strings.Repeat(" ", col-1), f.colorize("^", ColorRed)))
	}
	return sb.String()
}

func (f *Formatter) levelColor(level Level) Color {
	switch level {
	case LevelError:
		return ColorRed
	case LevelWarning:
		return ColorYellow
	default:
		return ColorCyan
	}
}

func (f *Formatter) colorize(s string, color Color) string {
	if !f.Colors {
		return s
	}
	return ansiCodes[color] + s + ansiCodes[ColorReset]
}
