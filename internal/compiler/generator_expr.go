package compiler

import (
	"strings"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 表达式降级
// ============================================================================

// 运算符对应的方法名，由运行时按接收者分派
var operatorMethods = map[token.TokenType]string{
	token.PLUS:        "plus",
	token.MINUS:       "minus",
	token.STAR:        "multiply",
	token.SLASH:       "div",
	token.PERCENT:     "mod",
	token.POWER:       "power",
	token.BIT_AND:     "and",
	token.BIT_OR:      "or",
	token.BIT_XOR:     "xor",
	token.LEFT_SHIFT:  "leftShift",
	token.RIGHT_SHIFT: "rightShift",
	token.SPACESHIP:   "compareTo",
}

// 比较运算由运行时辅助类的静态方法完成
var comparisonMethods = map[token.TokenType]string{
	token.EQ: "compareEqual",
	token.NE: "compareNotEqual",
	token.LT: "compareLessThan",
	token.LE: "compareLessThanEqual",
	token.GT: "compareGreaterThan",
	token.GE: "compareGreaterThanEqual",
}

// Object 上可以通过 super 调用的方法
var objectMethods = map[string]bool{
	"toString": true,
	"hashCode": true,
	"equals":   true,
}

var classType = &ast.TypeRef{Name: "java.lang.Class"}

// compileExpr 降级表达式并返回栈顶值的类型；没有压入值时返回 void。
// 左值模式下只接受变量、字段与属性。
func (g *ClassGenerator) compileExpr(expr ast.Expression) *ast.TypeRef {
	if g.leftHand {
		switch expr.(type) {
		case *ast.VariableExpr, *ast.FieldExpr, *ast.PropertyExpr:
		default:
			errors.Raise(errors.I0004, expr.Pos(), "%T cannot be assigned to", expr)
		}
	}

	switch e := expr.(type) {
	case *ast.ConstantExpr:
		return g.compileConstant(e)
	case *ast.VariableExpr:
		return g.compileVariable(e)
	case *ast.DeclarationExpr:
		return g.compileDeclaration(e)
	case *ast.BinaryExpr:
		return g.compileBinaryExpr(e)
	case *ast.UnaryExpr:
		return g.compileUnaryExpr(e)
	case *ast.PrefixExpr:
		return g.compileIncDec(e.X, e.Op, false)
	case *ast.PostfixExpr:
		return g.compileIncDec(e.X, e.Op, true)
	case *ast.FieldExpr:
		return g.compileFieldExpr(e)
	case *ast.PropertyExpr:
		return g.compilePropertyExpr(e)
	case *ast.MethodCallExpr:
		return g.compileMethodCall(e)
	case *ast.StaticMethodCallExpr:
		return g.compileStaticMethodCall(e)
	case *ast.ConstructorCallExpr:
		return g.compileConstructorCall(e)
	case *ast.ClosureExpr:
		return g.compileClosure(e)
	case *ast.ListExpr:
		for _, el := range e.Elems {
			g.compileBoxed(el)
		}
		g.code.EmitU16(bytecode.OpNewList, uint16(len(e.Elems)))
		return ast.ListType
	case *ast.MapExpr:
		for _, en := range e.Entries {
			g.compileBoxed(en.Key)
			g.compileBoxed(en.Value)
		}
		g.code.EmitU16(bytecode.OpNewMap, uint16(len(e.Entries)))
		return ast.MapType
	case *ast.RangeExpr:
		g.compileBoxed(e.From)
		g.compileBoxed(e.To)
		var inclusive uint8
		if e.Inclusive {
			inclusive = 1
		}
		g.code.EmitU8(bytecode.OpNewRange, inclusive)
		return ast.ListType
	case *ast.ArrayExpr:
		return g.compileArrayExpr(e)
	case *ast.CastExpr:
		t := g.compileValue(e.X)
		Cast(g.code, t, e.Type)
		return e.Type
	case *ast.InstanceofExpr:
		g.compileBoxed(e.X)
		g.emitClass(bytecode.OpInstanceOf, InternalName(e.Type))
		return ast.BooleanType
	case *ast.TernaryExpr:
		return g.compileTernary(e)
	case *ast.ElvisExpr:
		return g.compileElvis(e.X, e.Else)
	case *ast.ThisExpr:
		return g.compileThis()
	case *ast.SuperExpr:
		g.code.EmitLocal(bytecode.OpALoad, 0)
		if g.class.Super != nil {
			return g.class.Super
		}
		return ast.ObjectType
	case *ast.ClassExpr:
		g.emitClass(bytecode.OpLdc, InternalName(e.Type))
		return classType
	}
	g.unsupported(expr)
	return nil
}

// compileValue 降级表达式，保证栈顶有一个值
func (g *ClassGenerator) compileValue(e ast.Expression) *ast.TypeRef {
	t := g.compileExpr(e)
	if t == nil || t.IsVoid() {
		g.emit(bytecode.OpAConstNull)
		return ast.DynamicType
	}
	return t
}

// compileBoxed 降级表达式并把原始值装箱
func (g *ClassGenerator) compileBoxed(e ast.Expression) *ast.TypeRef {
	t := g.compileValue(e)
	Box(g.code, t)
	return t.Wrapper()
}

// compileEffect 只为副作用降级表达式，丢弃结果
func (g *ClassGenerator) compileEffect(e ast.Expression) {
	if t := g.compileExpr(e); t != nil && !t.IsVoid() {
		g.emit(bytecode.OpPop)
	}
}

// compileCondition 降级条件，栈顶留下 int 0/1
func (g *ClassGenerator) compileCondition(e ast.Expression) {
	g.stack.PushTemporaryScope()
	t := g.compileValue(e)
	if TypeDescriptor(t) != "Z" {
		Box(g.code, t)
		g.emit(bytecode.OpTruth)
	}
	g.stack.PopScope()
}

// ============================================================================
// 常量
// ============================================================================

func (g *ClassGenerator) compileConstant(e *ast.ConstantExpr) *ast.TypeRef {
	typ := e.Type
	if typ == nil {
		typ = constantType(e.Value)
	}
	switch TypeDescriptor(typ) {
	case "I", "S", "B", "C":
		g.emitInt(int32(toInt64(e.Value)))
		return typ
	case "J":
		g.emitConst(bytecode.OpLdc, g.pool.AddLong(toInt64(e.Value)))
		return typ
	case "F":
		g.emitConst(bytecode.OpLdc, g.pool.AddFloat(float32(toFloat64(e.Value))))
		return typ
	case "D":
		g.emitConst(bytecode.OpLdc, g.pool.AddDouble(toFloat64(e.Value)))
		return typ
	case "Z":
		if b, _ := e.Value.(bool); b {
			g.emitInt(1)
		} else {
			g.emitInt(0)
		}
		return typ
	}

	switch v := e.Value.(type) {
	case nil:
		g.emit(bytecode.OpAConstNull)
		return typ
	case string:
		g.emitConst(bytecode.OpLdc, g.pool.AddString(v))
		return ast.StringType
	}
	// 声明为包装类型的数值与布尔字面量
	prim := constantType(e.Value)
	g.compileConstant(&ast.ConstantExpr{Position: e.Position, Value: e.Value, Type: prim})
	Box(g.code, prim)
	return prim.Wrapper()
}

// pushDefault 压入类型的零值
func (g *ClassGenerator) pushDefault(t *ast.TypeRef) *ast.TypeRef {
	switch TypeDescriptor(t) {
	case "J":
		g.emitConst(bytecode.OpLdc, g.pool.AddLong(0))
	case "F":
		g.emitConst(bytecode.OpLdc, g.pool.AddFloat(0))
	case "D":
		g.emitConst(bytecode.OpLdc, g.pool.AddDouble(0))
	case "I", "S", "B", "C", "Z":
		g.emitInt(0)
	default:
		g.emit(bytecode.OpAConstNull)
	}
	return t
}

// ============================================================================
// 变量
// ============================================================================

func (g *ClassGenerator) compileVariable(e *ast.VariableExpr) *ast.TypeRef {
	if g.leftHand {
		g.leftHand = false
		g.storeVariable(e, g.storeType)
		return ast.VoidType
	}
	if v, ok := g.stack.Lookup(e.Name); ok {
		return g.loadVariable(v)
	}
	if c := g.capture(e.Name); c != nil {
		return g.loadCapture(c)
	}
	// 未声明的名称按隐式接收者上的属性处理
	return g.compilePropertyExpr(&ast.PropertyExpr{Position: e.Position, Object: &ast.ThisExpr{Position: e.Position}, Name: e.Name})
}

func (g *ClassGenerator) loadVariable(v *Variable) *ast.TypeRef {
	if v.Holder {
		g.code.EmitLocal(bytecode.OpALoad, v.Index)
		g.invoke(bytecode.OpInvokeVirtual, referenceClass, "get", "()Ljava/lang/Object;")
		Cast(g.code, ast.DynamicType, v.Type)
		return v.Type
	}
	g.code.EmitLocal(LoadOp(v.Type), v.Index)
	return v.Type
}

// storeVariable 把栈顶 typ 类型的值存入变量
func (g *ClassGenerator) storeVariable(e *ast.VariableExpr, typ *ast.TypeRef) {
	if v, ok := g.stack.Lookup(e.Name); ok {
		if v.Holder {
			Cast(g.code, typ, v.Type)
			Box(g.code, v.Type)
			g.code.EmitLocal(bytecode.OpALoad, v.Index)
			g.emit(bytecode.OpSwap)
			g.invoke(bytecode.OpInvokeVirtual, referenceClass, "set", "(Ljava/lang/Object;)V")
			return
		}
		Cast(g.code, typ, v.Type)
		g.code.EmitLocal(StoreOp(v.Type), v.Index)
		return
	}
	if c := g.capture(e.Name); c != nil {
		g.storeCapture(c, typ)
		return
	}
	g.store(&ast.PropertyExpr{Position: e.Position, Object: &ast.ThisExpr{Position: e.Position}, Name: e.Name}, typ)
}

// declareVariable 声明变量并把栈顶 valueType 类型的值存入其中
func (g *ClassGenerator) declareVariable(name string, typ, valueType *ast.TypeRef) *Variable {
	if typ == nil {
		typ = ast.DynamicType
	}
	Cast(g.code, valueType, typ)
	if g.stack.IsHolder(name) {
		// value -> ref，ref 中保存装箱后的值
		Box(g.code, typ)
		g.emitClass(bytecode.OpNew, referenceClass)
		g.emit(bytecode.OpDupX1)
		g.emit(bytecode.OpSwap)
		g.invoke(bytecode.OpInvokeSpecial, referenceClass, ast.ConstructorName, "(Ljava/lang/Object;)V")
		v := g.stack.Declare(name, typ)
		g.code.EmitLocal(bytecode.OpAStore, v.Index)
		return v
	}
	v := g.stack.Declare(name, typ)
	g.code.EmitLocal(StoreOp(typ), v.Index)
	return v
}

func (g *ClassGenerator) compileDeclaration(e *ast.DeclarationExpr) *ast.TypeRef {
	typ := e.Var.Type
	if typ == nil {
		typ = ast.DynamicType
	}
	var vt *ast.TypeRef
	if e.Init != nil {
		vt = g.compileValue(e.Init)
	} else {
		vt = g.pushDefault(typ)
	}
	g.declareVariable(e.Var.Name, typ, vt)
	return ast.VoidType
}

// ============================================================================
// 运算符
// ============================================================================

func (g *ClassGenerator) compileBinaryExpr(e *ast.BinaryExpr) *ast.TypeRef {
	switch {
	case e.Op == token.ASSIGN:
		return g.compileAssign(e)
	case e.Op.IsAssignment():
		return g.compileCompoundAssign(e)
	}

	switch e.Op {
	case token.AND, token.OR:
		return g.compileLogical(e)
	case token.ELVIS:
		return g.compileElvis(e.Left, e.Right)
	case token.LEFT_SQUARE:
		g.compileBoxed(e.Left)
		g.compileBoxed(e.Right)
		g.invokeMethod("getAt", 1)
		return ast.DynamicType
	case token.IN:
		g.compileBoxed(e.Right)
		g.compileBoxed(e.Left)
		g.invokeMethod("isCase", 1)
		return ast.DynamicType
	}

	if name, ok := comparisonMethods[e.Op]; ok {
		g.compileBoxed(e.Left)
		g.compileBoxed(e.Right)
		g.invokeStaticMethod(adapterClass, name, 2)
		return ast.BooleanWrap
	}
	if name, ok := operatorMethods[e.Op]; ok {
		g.compileBoxed(e.Left)
		g.compileBoxed(e.Right)
		g.invokeMethod(name, 1)
		return ast.DynamicType
	}
	g.unsupported(e)
	return nil
}

// compileLogical 短路求值，结果为原始 boolean
func (g *ClassGenerator) compileLogical(e *ast.BinaryExpr) *ast.TypeRef {
	short := g.newLabel()
	end := g.newLabel()
	jump := bytecode.OpIfEq
	if e.Op == token.OR {
		jump = bytecode.OpIfNe
	}
	g.compileCondition(e.Left)
	g.emitJump(jump, short)
	g.compileCondition(e.Right)
	g.emitJump(jump, short)
	if e.Op == token.AND {
		g.emitInt(1)
	} else {
		g.emitInt(0)
	}
	g.emitJump(bytecode.OpGoto, end)
	g.mark(short)
	if e.Op == token.AND {
		g.emitInt(0)
	} else {
		g.emitInt(1)
	}
	g.mark(end)
	return ast.BooleanType
}

func (g *ClassGenerator) compileUnaryExpr(e *ast.UnaryExpr) *ast.TypeRef {
	switch e.Op {
	case token.NOT:
		isTrue := g.newLabel()
		end := g.newLabel()
		g.compileCondition(e.X)
		g.emitJump(bytecode.OpIfNe, isTrue)
		g.emitInt(1)
		g.emitJump(bytecode.OpGoto, end)
		g.mark(isTrue)
		g.emitInt(0)
		g.mark(end)
		return ast.BooleanType
	case token.MINUS:
		g.compileBoxed(e.X)
		g.invokeMethod("negative", 0)
		return ast.DynamicType
	case token.PLUS:
		g.compileBoxed(e.X)
		g.invokeMethod("positive", 0)
		return ast.DynamicType
	}
	g.unsupported(e)
	return nil
}

func (g *ClassGenerator) compileTernary(e *ast.TernaryExpr) *ast.TypeRef {
	elseLabel := g.newLabel()
	end := g.newLabel()
	g.compileCondition(e.Cond)
	g.emitJump(bytecode.OpIfEq, elseLabel)
	g.compileBoxed(e.Then)
	g.emitJump(bytecode.OpGoto, end)
	g.mark(elseLabel)
	g.compileBoxed(e.Else)
	g.mark(end)
	return ast.DynamicType
}

// compileElvis x ?: y 在 x 为真时取 x，否则取 y
func (g *ClassGenerator) compileElvis(x, els ast.Expression) *ast.TypeRef {
	end := g.newLabel()
	g.compileBoxed(x)
	g.emit(bytecode.OpDup)
	g.emit(bytecode.OpTruth)
	g.emitJump(bytecode.OpIfNe, end)
	g.emit(bytecode.OpPop)
	g.compileBoxed(els)
	g.mark(end)
	return ast.DynamicType
}

func (g *ClassGenerator) compileArrayExpr(e *ast.ArrayExpr) *ast.TypeRef {
	elem := e.ElemType
	if elem == nil {
		elem = ast.DynamicType
	}
	if e.Size != nil && len(e.Elems) == 0 {
		Cast(g.code, g.compileValue(e.Size), ast.IntType)
		g.emitClass(bytecode.OpNewArray, InternalName(elem))
		return ast.ArrayOf(elem)
	}
	g.emitInt(int32(len(e.Elems)))
	g.emitClass(bytecode.OpNewArray, InternalName(elem))
	for i, el := range e.Elems {
		g.emit(bytecode.OpDup)
		g.emitInt(int32(i))
		Cast(g.code, g.compileValue(el), elem)
		g.emit(bytecode.OpAAStore)
	}
	return ast.ArrayOf(elem)
}

// ============================================================================
// this、字段与属性
// ============================================================================

func isImplicit(obj ast.Expression) bool {
	if obj == nil {
		return true
	}
	_, ok := obj.(*ast.ThisExpr)
	return ok
}

// staticContext 当前代码没有 this 实例
func (g *ClassGenerator) staticContext() bool {
	if g.closure != nil {
		return g.closure.static
	}
	return g.isStatic()
}

// compileThis 压入 this；闭包中为创建闭包时的外部实例
func (g *ClassGenerator) compileThis() *ast.TypeRef {
	if g.closure != nil {
		outer := g.closure.outer
		g.code.EmitLocal(bytecode.OpALoad, 0)
		g.invoke(bytecode.OpInvokeVirtual, closureClass, "getThisObject", "()Ljava/lang/Object;")
		g.emitClass(bytecode.OpCheckCast, ClassInternalName(outer))
		return outer.Type()
	}
	if g.isStatic() {
		g.emitClass(bytecode.OpLdc, g.cf.Name)
		return classType
	}
	g.code.EmitLocal(bytecode.OpALoad, 0)
	return g.class.Type()
}

// compileReceiver 压入 owner 成员的接收者：本类成员用 0 号槽位，
// 闭包中外部类的成员用外部实例
func (g *ClassGenerator) compileReceiver(obj ast.Expression, owner *ast.ClassNode) {
	if !isImplicit(obj) {
		g.compileBoxed(obj)
		return
	}
	if g.closure == nil || owner == g.class {
		g.code.EmitLocal(bytecode.OpALoad, 0)
		return
	}
	g.compileThis()
}

func (g *ClassGenerator) fieldRef(f *ast.FieldNode) uint16 {
	owner := g.cf.Name
	if f.Owner != nil {
		owner = ClassInternalName(f.Owner)
	}
	return g.pool.AddFieldRef(owner, f.Name, TypeDescriptor(f.Type))
}

func (g *ClassGenerator) compileFieldExpr(e *ast.FieldExpr) *ast.TypeRef {
	if g.leftHand {
		g.leftHand = false
		g.storeField(e.Object, e.Field, g.storeType, e.Position)
		return ast.VoidType
	}
	return g.loadField(e.Object, e.Field)
}

func (g *ClassGenerator) loadField(obj ast.Expression, f *ast.FieldNode) *ast.TypeRef {
	if f.IsStatic() {
		g.emitConst(bytecode.OpGetStatic, g.fieldRef(f))
		return f.Type
	}
	g.compileReceiver(obj, f.Owner)
	g.emitConst(bytecode.OpGetField, g.fieldRef(f))
	return f.Type
}

func (g *ClassGenerator) storeField(obj ast.Expression, f *ast.FieldNode, typ *ast.TypeRef, pos token.Position) {
	g.checkFinalAssign(f, pos)
	Cast(g.code, typ, f.Type)
	if f.IsStatic() {
		g.emitConst(bytecode.OpPutStatic, g.fieldRef(f))
		return
	}
	g.compileReceiver(obj, f.Owner)
	g.emit(bytecode.OpSwap)
	g.emitConst(bytecode.OpPutField, g.fieldRef(f))
}

// checkFinalAssign final 字段只能在所属类的构造函数或静态初始化中赋值
func (g *ClassGenerator) checkFinalAssign(f *ast.FieldNode, pos token.Position) {
	if !f.IsFinal() {
		return
	}
	m := g.method
	if f.Owner == g.class && (f.IsStatic() && m.IsStaticInit() || !f.IsStatic() && m.IsConstructor()) {
		return
	}
	g.errs.Add(errors.E0841, pos, "cannot modify final field '%s' outside of its initializer", f.Name).
		WithHint(errors.SuggestionsFor(errors.E0841, nil)[0])
}

// implicitField 隐式接收者上存在同名字段时直接访问字段
func (g *ClassGenerator) implicitField(obj ast.Expression, name string) *ast.FieldNode {
	if !isImplicit(obj) {
		return nil
	}
	f := g.outerClass().Field(name)
	if f == nil || !f.IsStatic() && g.staticContext() {
		return nil
	}
	return f
}

func (g *ClassGenerator) compilePropertyReceiver(obj ast.Expression) {
	if !isImplicit(obj) {
		g.compileBoxed(obj)
		return
	}
	if g.staticContext() {
		g.emitClass(bytecode.OpLdc, ClassInternalName(g.outerClass()))
		return
	}
	g.compileThis()
}

func (g *ClassGenerator) compilePropertyExpr(e *ast.PropertyExpr) *ast.TypeRef {
	store := g.leftHand
	g.leftHand = false
	if f := g.implicitField(e.Object, e.Name); f != nil {
		if store {
			g.storeField(nil, f, g.storeType, e.Position)
			return ast.VoidType
		}
		return g.loadField(nil, f)
	}

	nameIdx := g.pool.AddString(e.Name)
	if store {
		Box(g.code, g.storeType)
		g.compilePropertyReceiver(e.Object)
		g.emitConst(bytecode.OpSetProperty, nameIdx)
		return ast.VoidType
	}
	g.compilePropertyReceiver(e.Object)
	g.emitConst(bytecode.OpGetProperty, nameIdx)
	return ast.DynamicType
}

// ============================================================================
// 方法调用
// ============================================================================

func returnTypeOf(m *ast.MethodNode) *ast.TypeRef {
	if m.IsConstructor() || m.ReturnType == nil {
		if m.IsConstructor() {
			return ast.VoidType
		}
		return ast.DynamicType
	}
	return m.ReturnType
}

func ownerOf(m *ast.MethodNode, fallback *ast.ClassNode) *ast.ClassNode {
	if m.Owner != nil {
		return m.Owner
	}
	return fallback
}

// objectDescriptor 参数与返回值都为 Object 的描述符
func objectDescriptor(argc int, ret string) string {
	return "(" + strings.Repeat("Ljava/lang/Object;", argc) + ")" + ret
}

// compileArgs 压入实参并转换为形参类型
func (g *ClassGenerator) compileArgs(args []ast.Expression, params []*ast.Parameter) {
	for i, a := range args {
		t := g.compileValue(a)
		if i < len(params) {
			Cast(g.code, t, params[i].Type)
		} else {
			Box(g.code, t)
		}
	}
}

func (g *ClassGenerator) compileBoxedArgs(args []ast.Expression) {
	for _, a := range args {
		g.compileBoxed(a)
	}
}

func (g *ClassGenerator) compileMethodCall(e *ast.MethodCallExpr) *ast.TypeRef {
	if _, ok := e.Object.(*ast.SuperExpr); ok {
		return g.compileSuperCall(e)
	}
	if e.Target != nil {
		return g.compileTargetCall(e.Object, e.Target, e.Args)
	}

	if isImplicit(e.Object) && g.staticContext() {
		g.compileBoxedArgs(e.Args)
		g.invokeStaticMethod(ClassInternalName(g.outerClass()), e.Name, len(e.Args))
		return ast.DynamicType
	}
	if isImplicit(e.Object) {
		g.compileThis()
	} else {
		g.compileBoxed(e.Object)
	}
	g.compileBoxedArgs(e.Args)
	g.invokeMethod(e.Name, len(e.Args))
	return ast.DynamicType
}

// compileTargetCall 调用静态确定的方法
func (g *ClassGenerator) compileTargetCall(obj ast.Expression, m *ast.MethodNode, args []ast.Expression) *ast.TypeRef {
	owner := ownerOf(m, g.class)
	ownerName := ClassInternalName(owner)
	desc := MethodDescriptorOf(m)
	if m.IsStatic() {
		g.compileArgs(args, m.Params)
		g.invoke(bytecode.OpInvokeStatic, ownerName, m.Name, desc)
		return returnTypeOf(m)
	}

	g.compileReceiver(obj, owner)
	g.compileArgs(args, m.Params)
	op := bytecode.OpInvokeVirtual
	switch {
	case m.IsPrivate():
		op = bytecode.OpInvokeSpecial
	case owner.IsInterface():
		op = bytecode.OpInvokeInterface
	}
	g.invoke(op, ownerName, m.Name, desc)
	return returnTypeOf(m)
}

// compileSuperCall super.name(args)：沿父类链按名称与参数个数查找，
// 父类为内置类型时按 Object 签名调用
func (g *ClassGenerator) compileSuperCall(e *ast.MethodCallExpr) *ast.TypeRef {
	target := e.Target
	builtin := g.class.Super
	if target == nil {
		var names []string
		for k := g.class.SuperClass(); k != nil && target == nil; k = k.SuperClass() {
			for _, m := range k.Methods {
				names = append(names, m.Name)
				if m.Name == e.Name && len(m.Params) == len(e.Args) && !m.IsAbstract() && !m.IsStatic() {
					target = m
					break
				}
			}
			builtin = k.Super
		}
		if target == nil && (builtin == nil || builtin.IsObject()) && !objectMethods[e.Name] {
			err := g.errs.Add(errors.E0843, e.Position, "cannot find method %s with %d arguments in the superclass of %s",
				e.Name, len(e.Args), g.class.Name)
			similar := errors.FindSimilar(e.Name, names, 2)
			err.WithHint(errors.SuggestionsFor(errors.E0843, map[string]string{"similar": similar})[0])
			g.emit(bytecode.OpAConstNull)
			return ast.DynamicType
		}
	}

	g.code.EmitLocal(bytecode.OpALoad, 0)
	if target != nil {
		g.compileArgs(e.Args, target.Params)
		g.invoke(bytecode.OpInvokeSpecial, ClassInternalName(ownerOf(target, g.class)), target.Name, MethodDescriptorOf(target))
		return returnTypeOf(target)
	}
	owner := objectClass
	if builtin != nil {
		owner = InternalName(builtin)
	}
	g.compileBoxedArgs(e.Args)
	g.invoke(bytecode.OpInvokeSpecial, owner, e.Name, objectDescriptor(len(e.Args), "Ljava/lang/Object;"))
	return ast.DynamicType
}

func (g *ClassGenerator) compileStaticMethodCall(e *ast.StaticMethodCallExpr) *ast.TypeRef {
	if e.Target != nil {
		owner := e.Owner
		if e.Target.Owner != nil {
			owner = e.Target.Owner.Type()
		}
		g.compileArgs(e.Args, e.Target.Params)
		g.invoke(bytecode.OpInvokeStatic, InternalName(owner), e.Name, MethodDescriptorOf(e.Target))
		return returnTypeOf(e.Target)
	}
	g.compileBoxedArgs(e.Args)
	g.invokeStaticMethod(InternalName(e.Owner), e.Name, len(e.Args))
	return ast.DynamicType
}

// ============================================================================
// 构造函数调用
// ============================================================================

func (g *ClassGenerator) compileConstructorCall(e *ast.ConstructorCallExpr) *ast.TypeRef {
	if e.Special == ast.CtorNew {
		name := InternalName(e.Type)
		g.emitClass(bytecode.OpNew, name)
		g.emit(bytecode.OpDup)
		desc := g.constructorArgs(e.Type.Class, e.Target, e.Args)
		g.invoke(bytecode.OpInvokeSpecial, name, ast.ConstructorName, desc)
		return e.Type
	}

	owner, ownerName := g.class, g.cf.Name
	if e.Special == ast.CtorSuper {
		owner, ownerName = g.class.SuperClass(), g.cf.Super
	}
	g.code.EmitLocal(bytecode.OpALoad, 0)
	desc := g.constructorArgs(owner, e.Target, e.Args)
	g.invoke(bytecode.OpInvokeSpecial, ownerName, ast.ConstructorName, desc)
	return ast.VoidType
}

// constructorArgs 压入构造函数实参并返回描述符。没有静态目标时选择参数个数
// 唯一匹配的构造函数，否则按 Object 签名调用，由运行时按参数个数选择。
func (g *ClassGenerator) constructorArgs(owner *ast.ClassNode, target *ast.MethodNode, args []ast.Expression) string {
	if target == nil && owner != nil {
		var match *ast.MethodNode
		n := 0
		for _, c := range owner.Constructors {
			if len(c.Params) == len(args) {
				match = c
				n++
			}
		}
		if n == 1 {
			target = match
		}
	}
	if target != nil {
		g.compileArgs(args, target.Params)
		return MethodDescriptorOf(target)
	}
	g.compileBoxedArgs(args)
	return objectDescriptor(len(args), "V")
}
