// Package vm 是类模块的参考解释器。
//
// 它按类模块的指令语义执行代码，用于在测试与命令行中检查生成代码的
// 运行时行为：默认参数转发、桥接方法、finally 重放与闭包捕获。
package vm

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/bytecode"
)

// ============================================================================
// VM 核心结构
// ============================================================================

// MaxCallDepth 默认最大调用深度
const MaxCallDepth = 512

// Options 虚拟机选项
type Options struct {
	Out      io.Writer // println 的输出，默认 os.Stdout
	Logger   *zap.Logger
	MaxDepth int       // 最大调用深度
	Profiler *Profiler // 非 nil 时收集方法与分支统计
}

// VM 虚拟机
type VM struct {
	out      io.Writer
	log      *zap.Logger
	maxDepth int
	profiler *Profiler

	classes map[string]*Class
	depth   int
	nextID  int64

	stats VMStats
}

// VMStats 虚拟机统计信息
type VMStats struct {
	InstructionsExecuted uint64 // 执行的指令数
	MethodCalls          uint64 // 方法调用次数
	Allocations          uint64 // 对象分配次数
	ExceptionsThrown     uint64 // 抛出的异常数
}

// New 创建虚拟机，opts 为 nil 时使用默认选项
func New(opts *Options) *VM {
	if opts == nil {
		opts = &Options{}
	}
	vm := &VM{
		out:      opts.Out,
		log:      opts.Logger,
		maxDepth: opts.MaxDepth,
		profiler: opts.Profiler,
		classes:  make(map[string]*Class),
	}
	if vm.out == nil {
		vm.out = os.Stdout
	}
	if vm.log == nil {
		vm.log = zap.NewNop()
	}
	if vm.maxDepth <= 0 {
		vm.maxDepth = MaxCallDepth
	}
	registerBuiltins(vm)
	return vm
}

// Stats 获取统计信息
func (vm *VM) Stats() VMStats { return vm.stats }

// ============================================================================
// 类加载
// ============================================================================

// Load 加载类模块并链接父类。类在首次主动使用时初始化。
func (vm *VM) Load(cfs ...*bytecode.ClassFile) error {
	var loaded []*Class
	for _, cf := range cfs {
		if _, ok := vm.classes[cf.Name]; ok {
			return fmt.Errorf("class %s already loaded", cf.Name)
		}
		c, err := newLoadedClass(cf)
		if err != nil {
			return err
		}
		vm.classes[cf.Name] = c
		loaded = append(loaded, c)
	}
	for _, c := range loaded {
		c.Super = vm.class(c.superName)
		vm.log.Debug("loaded class",
			zap.String("class", c.Name),
			zap.String("super", c.superName),
			zap.Int("methods", len(c.methods)))
	}
	return nil
}

// LoadModule 反序列化并加载一个类模块
func (vm *VM) LoadModule(data []byte) error {
	cf, err := bytecode.Deserialize(data)
	if err != nil {
		return err
	}
	return vm.Load(cf)
}

// Class 按内部名查找已加载的类
func (vm *VM) Class(name string) *Class { return vm.classes[name] }

// class 按内部名解析类；未加载的名称视为内置类
func (vm *VM) class(name string) *Class {
	if c, ok := vm.classes[name]; ok {
		return c
	}
	c := newBuiltinClass(name)
	vm.classes[name] = c
	if c.superName != "" {
		c.Super = vm.class(c.superName)
	}
	return c
}

// ============================================================================
// 对外调用接口
// ============================================================================

// NewInstance 创建 class 的实例并按参数个数调用构造函数
func (vm *VM) NewInstance(class string, args ...any) (*Object, error) {
	c := vm.class(class)
	obj, err := vm.allocate(c)
	if err != nil {
		return nil, err
	}
	ctor := c.FindByArgc("<init>", len(args), false)
	if ctor == nil {
		return nil, vm.throwf("groovy/lang/MissingMethodException", "no constructor %s with %d arguments", dotted(class), len(args))
	}
	if _, err := vm.call(ctor, obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

// Invoke 以动态分派调用 recv 上的方法
func (vm *VM) Invoke(recv any, name string, args ...any) (any, error) {
	return vm.invokeDynamic(recv, name, args)
}

// InvokeStatic 以动态分派调用类的静态方法
func (vm *VM) InvokeStatic(class, name string, args ...any) (any, error) {
	return vm.invokeStaticDynamic(vm.class(class), name, args)
}

// GetStatic 读取静态字段，必要时先初始化类
func (vm *VM) GetStatic(class, field string) (any, error) {
	c := vm.class(class)
	if err := vm.initialize(c); err != nil {
		return nil, err
	}
	holder := c.findStaticHolder(field)
	if holder == nil {
		return nil, vm.throwf("groovy/lang/MissingPropertyException", "no static field %s.%s", dotted(class), field)
	}
	return holder.statics[field], nil
}

// ToString 值的字符串形式，对象使用其 toString 方法
func (vm *VM) ToString(v any) (string, error) { return vm.stringOf(v) }

// Run 调用类的静态 main 方法
func (vm *VM) Run(class string, args []string) error {
	c := vm.class(class)
	if err := vm.initialize(c); err != nil {
		return err
	}
	if m := c.FindMethod("main", "([Ljava/lang/String;)V", true); m != nil && m.Argc() == 1 {
		arr := &Array{Elem: "java/lang/String", Elems: make([]any, len(args))}
		for i, a := range args {
			arr.Elems[i] = a
		}
		_, err := vm.call(m, nil, []any{arr})
		return err
	}
	if m := c.FindByArgc("main", 0, true); m != nil {
		_, err := vm.call(m, nil, nil)
		return err
	}
	return fmt.Errorf("class %s has no static main method", dotted(class))
}

// ============================================================================
// 对象与异常
// ============================================================================

// allocate 分配对象并把实例字段设为默认值
func (vm *VM) allocate(c *Class) (*Object, error) {
	if err := vm.initialize(c); err != nil {
		return nil, err
	}
	vm.nextID++
	vm.stats.Allocations++
	obj := &Object{Class: c, Fields: make(map[string]any), id: vm.nextID}
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if _, ok := obj.Fields[f.Name]; !ok {
				obj.Fields[f.Name] = zeroValue(f.Descriptor)
			}
		}
	}
	switch {
	case c.IsSubclassOf(referenceClass):
		obj.native = &cell{}
	case c.IsSubclassOf(closureClass):
		obj.native = &closureState{}
	case c.IsSubclassOf(throwableClass):
		obj.native = &throwableState{}
	}
	return obj, nil
}

// Thrown 在解释器中传播的异常
type Thrown struct {
	Value *Object
}

func (t *Thrown) Error() string {
	return format(t.Value)
}

// Message 异常消息
func (t *Thrown) Message() string {
	if ts, ok := t.Value.native.(*throwableState); ok && ts.message != nil {
		return format(ts.message)
	}
	return ""
}

// ClassName 异常类的二进制名
func (t *Thrown) ClassName() string { return dotted(t.Value.Class.Name) }

// throwf 创建内置异常
func (vm *VM) throwf(class, format string, args ...any) error {
	c := vm.class(class)
	vm.nextID++
	obj := &Object{Class: c, Fields: make(map[string]any), id: vm.nextID, native: &throwableState{message: fmt.Sprintf(format, args...)}}
	vm.stats.ExceptionsThrown++
	return &Thrown{Value: obj}
}

func (vm *VM) nullPointer(what string) error {
	return vm.throwf("java/lang/NullPointerException", "Cannot %s on null object", what)
}
