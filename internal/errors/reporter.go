package errors

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ============================================================================
// 错误报告器
// ============================================================================

// Reporter 错误报告器，负责把收集到的编译错误渲染到输出
type Reporter struct {
	formatter   *Formatter
	out         io.Writer
	sourceCache map[string][]string // 源代码缓存
	errors      []*CompileError
	warnings    []*CompileError
}

// NewReporter 创建错误报告器
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{
		formatter:   NewFormatter(),
		out:         out,
		sourceCache: make(map[string][]string),
	}
}

// SetFormatter 设置格式化器
func (r *Reporter) SetFormatter(f *Formatter) {
	r.formatter = f
}

// LoadSource 加载源文件
func (r *Reporter) LoadSource(filename string) error {
	if _, ok := r.sourceCache[filename]; ok {
		return nil // 已加载
	}

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	r.sourceCache[filename] = lines
	return nil
}

// SetSource 设置源代码（用于测试或内存中的源代码）
func (r *Reporter) SetSource(filename string, content string) {
	r.sourceCache[filename] = strings.Split(content, "\n")
}

// Report 记录一个编译错误并立即输出
func (r *Reporter) Report(err *CompileError) {
	// 源文件读不到时只输出位置
	if err.File != "" {
		_ = r.LoadSource(err.File)
	}
	if len(err.Hints) == 0 {
		err.Hints = SuggestionsFor(err.Code, nil)
	}

	if err.Level == LevelWarning {
		r.warnings = append(r.warnings, err)
	} else {
		r.errors = append(r.errors, err)
	}
	fmt.Fprint(r.out, r.formatter.FormatCompileError(err, r.sourceCache[err.File]))
}

// ReportAll 依次输出多个错误
func (r *Reporter) ReportAll(errs []*CompileError) {
	for _, err := range errs {
		r.Report(err)
	}
}

// Summary 输出汇总行
func (r *Reporter) Summary() {
	if n := len(r.errors); n > 0 {
		fmt.Fprintf(r.out, "error: could not compile due to %d previous error%s\n", n, plural(n))
	}
	if n := len(r.warnings); n > 0 {
		fmt.Fprintf(r.out, "warning: %d warning%s emitted\n", n, plural(n))
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// HasErrors 是否有错误
func (r *Reporter) HasErrors() bool { return len(r.errors) > 0 }

// ErrorCount 错误数量
func (r *Reporter) ErrorCount() int { return len(r.errors) }

// WarningCount 警告数量
func (r *Reporter) WarningCount() int { return len(r.warnings) }

// Errors 获取所有错误
func (r *Reporter) Errors() []*CompileError { return r.errors }
