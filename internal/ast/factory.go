package ast

import (
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// AST 节点工厂函数
// ============================================================================
//
// 结构补全阶段合成的代码与测试构造的输入都通过这些函数创建，
// 合成节点没有源码位置。
//
// ============================================================================

// ============================================================================
// 类与成员
// ============================================================================

// NewClass 创建类节点，父类为 nil 时继承 Object
func NewClass(name string, modifiers int, super *TypeRef) *ClassNode {
	return &ClassNode{Name: name, Modifiers: modifiers, Super: super}
}

// NewMethod 创建方法节点
func NewMethod(name string, modifiers int, ret *TypeRef, params []*Parameter, code Statement) *MethodNode {
	if ret == nil {
		ret = DynamicType
	}
	return &MethodNode{Name: name, Modifiers: modifiers, ReturnType: ret, Params: params, Code: code}
}

// NewConstructor 创建构造函数节点
func NewConstructor(modifiers int, params []*Parameter, code Statement) *MethodNode {
	return &MethodNode{Name: ConstructorName, Modifiers: modifiers, ReturnType: VoidType, Params: params, Code: code}
}

// NewField 创建字段节点
func NewField(name string, modifiers int, typ *TypeRef, init Expression) *FieldNode {
	if typ == nil {
		typ = DynamicType
	}
	return &FieldNode{Name: name, Modifiers: modifiers, Type: typ, Init: init}
}

// NewProperty 创建属性节点；后备字段为 private
func NewProperty(name string, modifiers int, typ *TypeRef, init Expression) *PropertyNode {
	fieldMods := AccPrivate | modifiers&(AccStatic|AccFinal)
	return &PropertyNode{Field: NewField(name, fieldMods, typ, init), Modifiers: modifiers}
}

// Param 创建参数
func Param(name string, typ *TypeRef) *Parameter {
	if typ == nil {
		typ = DynamicType
	}
	return &Parameter{Name: name, Type: typ}
}

// ParamWithDefault 创建带默认值的参数
func ParamWithDefault(name string, typ *TypeRef, def Expression) *Parameter {
	p := Param(name, typ)
	p.Default = def
	return p
}

// Params 参数列表
func Params(ps ...*Parameter) []*Parameter { return ps }

// ============================================================================
// 语句
// ============================================================================

// Block 创建代码块
func Block(stmts ...Statement) *BlockStmt { return &BlockStmt{Stmts: stmts} }

// Stmt 把表达式包装为语句
func Stmt(x Expression) *ExprStmt { return &ExprStmt{X: x} }

// Return 创建 return 语句，x 可为 nil
func Return(x Expression) *ReturnStmt { return &ReturnStmt{Value: x} }

// If 创建 if 语句
func If(cond Expression, then, els Statement) *IfStmt {
	return &IfStmt{Cond: cond, Then: then, Else: els}
}

// While 创建 while 循环
func While(cond Expression, body Statement) *WhileStmt {
	return &WhileStmt{Cond: cond, Body: body}
}

// ForIn 创建 for-in 循环
func ForIn(v *Parameter, coll Expression, body Statement) *ForInStmt {
	return &ForInStmt{Var: v, Collection: coll, Body: body}
}

// Try 创建 try 语句
func Try(body Statement, finally Statement, catches ...*CatchStmt) *TryStmt {
	return &TryStmt{Body: body, Catches: catches, Finally: finally}
}

// Catch 创建 catch 子句
func Catch(name string, typ *TypeRef, body Statement) *CatchStmt {
	return &CatchStmt{Param: Param(name, typ), Body: body}
}

// Throw 创建 throw 语句
func Throw(x Expression) *ThrowStmt { return &ThrowStmt{X: x} }

// Break 创建 break 语句
func Break(label string) *BreakStmt { return &BreakStmt{Label: label} }

// Continue 创建 continue 语句
func Continue(label string) *ContinueStmt { return &ContinueStmt{Label: label} }

// ============================================================================
// 表达式
// ============================================================================

// Const 创建常量；Go 的 int 按 int32 处理
func Const(v any) *ConstantExpr {
	if i, ok := v.(int); ok {
		v = int32(i)
	}
	return &ConstantExpr{Value: v}
}

// Null 创建 null 常量
func Null() *ConstantExpr { return &ConstantExpr{Value: nil} }

// Var 创建动态类型的变量引用
func Var(name string) *VariableExpr { return &VariableExpr{Name: name, Type: DynamicType} }

// TypedVar 创建带类型的变量引用
func TypedVar(name string, typ *TypeRef) *VariableExpr {
	return &VariableExpr{Name: name, Type: typ}
}

// Declare 创建局部变量声明
func Declare(v *VariableExpr, init Expression) *DeclarationExpr {
	return &DeclarationExpr{Var: v, Init: init}
}

// Binary 创建二元表达式
func Binary(op token.TokenType, l, r Expression) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: l, Right: r}
}

// Assign 创建赋值表达式 l = r
func Assign(l, r Expression) *BinaryExpr { return Binary(token.ASSIGN, l, r) }

// Index 创建索引表达式 obj[i]
func Index(obj, i Expression) *BinaryExpr { return Binary(token.LEFT_SQUARE, obj, i) }

// Not 创建逻辑非
func Not(x Expression) *UnaryExpr { return &UnaryExpr{Op: token.NOT, X: x} }

// This 创建 this 引用
func This() *ThisExpr { return &ThisExpr{} }

// Super 创建 super 引用
func Super() *SuperExpr { return &SuperExpr{} }

// FieldOf 创建字段访问（隐式接收者）
func FieldOf(f *FieldNode) *FieldExpr { return &FieldExpr{Field: f} }

// Prop 创建属性访问
func Prop(obj Expression, name string) *PropertyExpr {
	return &PropertyExpr{Object: obj, Name: name}
}

// Call 创建动态方法调用
func Call(obj Expression, name string, args ...Expression) *MethodCallExpr {
	return &MethodCallExpr{Object: obj, Name: name, Args: args}
}

// CallStatic 创建静态方法调用
func CallStatic(owner *TypeRef, name string, args ...Expression) *StaticMethodCallExpr {
	return &StaticMethodCallExpr{Owner: owner, Name: name, Args: args}
}

// New 创建 new T(args)
func New(typ *TypeRef, args ...Expression) *ConstructorCallExpr {
	return &ConstructorCallExpr{Type: typ, Args: args}
}

// SuperCall 创建 super(args)
func SuperCall(args ...Expression) *ConstructorCallExpr {
	return &ConstructorCallExpr{Args: args, Special: CtorSuper}
}

// ThisCall 创建 this(args)
func ThisCall(args ...Expression) *ConstructorCallExpr {
	return &ConstructorCallExpr{Args: args, Special: CtorThis}
}

// Cast 创建类型转换
func Cast(typ *TypeRef, x Expression) *CastExpr { return &CastExpr{Type: typ, X: x} }

// Closure 创建闭包，params 为 nil 时使用隐式参数 it
func Closure(params []*Parameter, code Statement) *ClosureExpr {
	return &ClosureExpr{Params: params, Code: code}
}

// List 创建列表字面量
func List(elems ...Expression) *ListExpr { return &ListExpr{Elems: elems} }
