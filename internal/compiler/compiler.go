// Package compiler 把已解析的类语法树降低为类模块。
//
// 编译分三步：结构补全（Verifier）为每个类补齐构造函数、访问器、
// 转发方法、初始化代码与桥接方法；降级引擎（ClassGenerator）借助
// 编译栈（CompileStack）为每个方法发射指令；最后每个类模块都经过
// 栈深度验证后才返回。
package compiler

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/config"
	"github.com/tangzhangming/classgen/internal/errors"
)

// ============================================================================
// 编译选项
// ============================================================================

// Options 编译选项
type Options struct {
	Parallel    bool // 按类并行生成
	MaxStack    int  // 允许的最大操作数栈深度
	DebugLines  bool // 生成行号表
	DebugLocals bool // 生成局部变量表
	Timestamp   bool // 生成 __timeStamp 标记字段

	Now    func() time.Time // 时间戳来源，测试中可固定
	Logger *zap.Logger
}

// DefaultOptions 默认选项
func DefaultOptions() *Options {
	return &Options{
		MaxStack:    config.DefaultMaxStack,
		DebugLines:  true,
		DebugLocals: true,
		Timestamp:   true,
	}
}

// OptionsFromConfig 由配置文件生成编译选项
func OptionsFromConfig(cfg *config.Config, log *zap.Logger) *Options {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Options{
		Parallel:    cfg.Compile.Parallel,
		MaxStack:    cfg.Compile.MaxStack,
		DebugLines:  cfg.Debug.Lines,
		DebugLocals: cfg.Debug.Locals,
		Timestamp:   cfg.Compile.Timestamp,
		Logger:      log,
	}
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// ============================================================================
// 编译结果
// ============================================================================

// Result 一次编译的产物
type Result struct {
	Classes []*bytecode.ClassFile  // 成功生成的类模块，闭包类紧跟在外部类之后
	Errors  []*errors.CompileError // 全部源码级错误
}

// Err 把源码级错误合并为一个 error，没有错误时返回 nil
func (r *Result) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, e)
	}
	return err
}

// Class 按内部名查找类模块
func (r *Result) Class(name string) *bytecode.ClassFile {
	for _, cf := range r.Classes {
		if cf.Name == name {
			return cf
		}
	}
	return nil
}

// ============================================================================
// 编译驱动
// ============================================================================

// Compiler 编译驱动
type Compiler struct {
	opts *Options
	log  *zap.Logger
}

// New 创建编译驱动，opts 为 nil 时使用默认选项
func New(opts *Options) *Compiler {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Compiler{opts: opts, log: opts.logger()}
}

// Compile 编译一个编译单元。
//
// 有源码级错误的类不产出类模块，其他类照常编译，错误同时通过
// Result.Errors 与合并后的 error 返回。内部错误会中止整次编译，
// 此时返回的 Result 为 nil。
func (c *Compiler) Compile(ctx context.Context, unit *ast.CompileUnit) (*Result, error) {
	start := time.Now()
	reg := NewContext()
	classes := unit.Classes
	collectors := make([]*errors.Collector, len(classes))

	c.log.Info("compiling unit",
		zap.String("source", unit.Source),
		zap.Int("classes", len(classes)),
		zap.Bool("parallel", c.opts.Parallel))

	// 结构补全按声明顺序串行执行：子类的桥接检查需要看到父类补全后的成员
	for i, class := range classes {
		file := class.SourceFile
		if file == "" {
			file = unit.Source
		}
		collectors[i] = errors.NewCollector(class.Name, file)
		if err := c.complete(class, collectors[i]); err != nil {
			c.log.Error("internal error", zap.String("class", class.Name), zap.Error(err))
			return nil, err
		}
	}

	outputs := make([][]*bytecode.ClassFile, len(classes))
	g, gctx := errgroup.WithContext(ctx)
	for i, class := range classes {
		task := func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := c.lower(reg, class, collectors[i])
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		}
		if c.opts.Parallel {
			g.Go(task)
			continue
		}
		if err := task(); err != nil {
			c.log.Error("internal error", zap.String("class", class.Name), zap.Error(err))
			return nil, err
		}
	}
	if err := g.Wait(); err != nil {
		c.log.Error("compilation aborted", zap.Error(err))
		return nil, err
	}

	res := &Result{}
	for i := range classes {
		errs := collectors[i].Errors()
		if len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			continue
		}
		res.Classes = append(res.Classes, outputs[i]...)
	}

	c.log.Info("compiled unit",
		zap.String("source", unit.Source),
		zap.Int("modules", len(res.Classes)),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("elapsed", time.Since(start)))
	return res, res.Err()
}

// complete 对单个类执行结构补全
func (c *Compiler) complete(class *ast.ClassNode, errs *errors.Collector) (err error) {
	defer errors.Recover(&err, class.Name, "")
	NewVerifier(c.opts).VisitClass(class, errs)
	return nil
}

// lower 为单个类（及其闭包类）生成类模块并逐个验证
func (c *Compiler) lower(reg *Context, class *ast.ClassNode, errs *errors.Collector) ([]*bytecode.ClassFile, error) {
	c.log.Debug("lowering class", zap.String("class", class.Name))

	gen := NewClassGenerator(reg, c.opts, errs)
	out, err := gen.Generate(class)
	if err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		for _, e := range errs.Errors() {
			c.log.Warn("compile error",
				zap.String("class", class.Name),
				zap.String("code", e.Code),
				zap.String("message", e.Message))
		}
		return nil, nil
	}

	if err := verifyModules(class, out, c.opts.MaxStack); err != nil {
		return nil, err
	}
	c.log.Debug("lowered class",
		zap.String("class", class.Name),
		zap.Int("modules", len(out)))
	return out, nil
}

// verifyModules 验证生成的类模块。生成代码验证失败属于内部错误，
// 返回的 InternalError 带有类名与第一个失败的方法。
func verifyModules(class *ast.ClassNode, out []*bytecode.ClassFile, maxStack int) error {
	for _, cf := range out {
		verr := bytecode.NewVerifier(cf, maxStack).Verify()
		if verr == nil {
			continue
		}
		ie := &errors.InternalError{Code: errors.I0003, Class: class.Name, Pos: class.Position}
		msgs := make([]string, 0, len(multierr.Errors(verr)))
		for _, e := range multierr.Errors(verr) {
			var ve *bytecode.VerificationError
			if ie.Method == "" && stderrors.As(e, &ve) {
				ie.Method = ve.Method
			}
			msgs = append(msgs, e.Error())
		}
		ie.Message = fmt.Sprintf("module %s failed verification: %s", cf.Name, strings.Join(msgs, "; "))
		return ie
	}
	return nil
}
