package compiler

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 降级引擎
// ============================================================================
//
// ClassGenerator 把一个补全后的类降低为类模块：
// 1. 类头、字段表与 ConstantValue
// 2. 每个方法：初始化编译栈、定义参数、降级方法体、回填与计算栈深度
// 3. 闭包字面量生成独立的闭包类，追加在本类产物之后
//
// 语句与表达式都通过对节点类型的穷举分支降级，未知节点抛出内部错误。
// 表达式降级返回压入栈顶的值的静态类型；void 表示没有压入任何值。
//
// ============================================================================

// ClassGenerator 类降级器
type ClassGenerator struct {
	ctx  *Context
	opts *Options
	log  *zap.Logger
	errs *errors.Collector

	class *ast.ClassNode
	cf    *bytecode.ClassFile
	pool  *bytecode.ConstantPool

	method *ast.MethodNode
	code   *bytecode.Code
	stack  *CompileStack

	// 左值模式：为 true 时变量、字段与属性节点把栈顶的值存入自身
	leftHand  bool
	storeType *ast.TypeRef

	// 紧挨在循环前的标签，由循环作用域接管
	pendingLabels []string

	closure *closureInfo          // 正在生成闭包类时非 nil
	outputs []*bytecode.ClassFile // 本类产生的闭包类模块
}

// NewClassGenerator 创建类降级器
func NewClassGenerator(ctx *Context, opts *Options, errs *errors.Collector) *ClassGenerator {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &ClassGenerator{
		ctx:   ctx,
		opts:  opts,
		log:   opts.logger(),
		errs:  errs,
		stack: NewCompileStack(opts.DebugLocals),
	}
}

// Generate 降级一个类。返回本类模块以及生成的闭包类模块；
// 内部错误以 error 的形式返回。
func (g *ClassGenerator) Generate(class *ast.ClassNode) (out []*bytecode.ClassFile, err error) {
	defer errors.Recover(&err, class.Name, "")
	return g.generate(class), nil
}

func (g *ClassGenerator) generate(class *ast.ClassNode) []*bytecode.ClassFile {
	g.class = class
	access := uint16(class.Modifiers)
	if !class.IsInterface() {
		access |= bytecode.AccSuper
	}
	super := objectClass
	if class.Super != nil {
		super = InternalName(class.Super)
	}
	g.cf = bytecode.NewClassFile(ClassInternalName(class), super, access)
	g.pool = g.cf.Pool
	g.cf.SourceFile = class.SourceFile
	for _, i := range class.Interfaces {
		g.cf.Interfaces = append(g.cf.Interfaces, InternalName(i))
	}

	for _, f := range class.Fields {
		g.compileField(f)
	}
	for _, m := range class.Constructors {
		g.compileMethod(m)
	}
	for _, m := range class.Methods {
		g.compileMethod(m)
	}

	g.log.Debug("generated class",
		zap.String("class", g.cf.Name),
		zap.Int("methods", len(g.cf.Methods)),
		zap.Int("constants", g.pool.Len()),
		zap.Int("closures", len(g.outputs)))
	return append([]*bytecode.ClassFile{g.cf}, g.outputs...)
}

// ============================================================================
// 字段
// ============================================================================

func (g *ClassGenerator) compileField(f *ast.FieldNode) {
	info := &bytecode.FieldInfo{
		Access:     uint16(f.Modifiers),
		Name:       f.Name,
		Descriptor: TypeDescriptor(f.Type),
	}
	if f.ConstantValue != nil {
		info.ConstantValue = g.constantIndex(f.Type, f.ConstantValue)
	}
	g.cf.AddField(info)
}

// constantIndex 按字段类型把常量初值放入常量池
func (g *ClassGenerator) constantIndex(t *ast.TypeRef, v any) uint16 {
	switch TypeDescriptor(t) {
	case "I", "S", "B", "C":
		return g.pool.AddInt(int32(toInt64(v)))
	case "J":
		return g.pool.AddLong(toInt64(v))
	case "F":
		return g.pool.AddFloat(float32(toFloat64(v)))
	case "D":
		return g.pool.AddDouble(toFloat64(v))
	case "Z":
		b, _ := v.(bool)
		return g.pool.AddBool(b)
	}
	if s, ok := v.(string); ok {
		return g.pool.AddString(s)
	}
	errors.Raise(errors.I0004, token.Position{}, "unsupported constant value %T for %s", v, t)
	return 0
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// ============================================================================
// 方法
// ============================================================================

func (g *ClassGenerator) compileMethod(m *ast.MethodNode) {
	desc := MethodDescriptorOf(m)
	info := &bytecode.MethodInfo{
		Access:     uint16(m.Modifiers),
		Name:       m.Name,
		Descriptor: desc,
	}
	for _, e := range m.Exceptions {
		info.Exceptions = append(info.Exceptions, InternalName(e))
	}
	if m.IsAbstract() || m.Code == nil {
		info.Access |= bytecode.AccAbstract
		g.cf.AddMethod(info)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*errors.InternalError); ok && ie.Method == "" {
				ie.Method = m.Name + desc
			}
			panic(r)
		}
	}()

	code := bytecode.NewCode(g.pool)
	g.method, g.code = m, code
	g.stack.Init(g.class, m, code)
	g.stack.SetHolders(holderNames(m.Params, m.Code))
	g.stack.DefineParameters(m.Params)

	g.compileStmt(m.Code)
	if code.IsTarget(code.Len()) {
		// 只有不可达的跳转指向代码末尾
		g.emit(bytecode.OpAConstNull)
		g.emit(bytecode.OpAThrow)
	}
	g.stack.Clear()

	if err := code.Finish(info, g.opts.MaxStack); err != nil {
		errors.Raise(errors.I0003, m.Position, "%s%s: %v", m.Name, desc, err)
	}
	g.cf.AddMethod(info)
	g.method, g.code = nil, nil
}

// ============================================================================
// 发射辅助
// ============================================================================

func (g *ClassGenerator) emit(op bytecode.OpCode) { g.code.Emit(op) }

func (g *ClassGenerator) emitConst(op bytecode.OpCode, idx uint16) { g.code.EmitU16(op, idx) }

func (g *ClassGenerator) emitJump(op bytecode.OpCode, l *bytecode.Label) { g.code.EmitJump(op, l) }

func (g *ClassGenerator) mark(l *bytecode.Label) { g.code.Mark(l) }

func (g *ClassGenerator) newLabel() *bytecode.Label { return g.stack.NewLabel() }

func (g *ClassGenerator) emitInt(v int32) {
	switch v {
	case 0:
		g.emit(bytecode.OpIConst0)
	case 1:
		g.emit(bytecode.OpIConst1)
	default:
		g.emitConst(bytecode.OpLdc, g.pool.AddInt(v))
	}
}

func (g *ClassGenerator) emitClass(op bytecode.OpCode, internalName string) {
	g.emitConst(op, g.pool.AddClass(internalName))
}

func (g *ClassGenerator) invokeMethod(name string, argc int) {
	g.emitConst(bytecode.OpInvokeMethod, g.pool.AddCallSite("", name, argc))
}

func (g *ClassGenerator) invokeStaticMethod(owner, name string, argc int) {
	g.emitConst(bytecode.OpInvokeStaticMethod, g.pool.AddCallSite(owner, name, argc))
}

func (g *ClassGenerator) invoke(op bytecode.OpCode, owner, name, desc string) {
	g.emitConst(op, g.pool.AddMethodRef(owner, name, desc))
}

// temp 声明临时变量并把栈顶的值存入其中
func (g *ClassGenerator) temp(t *ast.TypeRef) int {
	idx := g.stack.DeclareTemporary(g.ctx.NextSyntheticName("tmp"), t)
	g.code.EmitLocal(StoreOp(t), idx)
	return idx
}

func (g *ClassGenerator) line(pos token.Position) {
	if g.opts.DebugLines && pos.IsValid() {
		g.code.LineNumber(pos.Line)
	}
}

func (g *ClassGenerator) isStatic() bool { return g.method != nil && g.method.IsStatic() }

// outerClass 闭包中 this 所指的类；普通类为自身
func (g *ClassGenerator) outerClass() *ast.ClassNode {
	if g.closure != nil {
		return g.closure.outer
	}
	return g.class
}

func (g *ClassGenerator) unsupported(n ast.Node) {
	errors.Raise(errors.I0004, n.Pos(), "unsupported node %T", n)
}
