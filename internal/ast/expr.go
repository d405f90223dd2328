package ast

import (
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 表达式节点
// ============================================================================

// ConstantExpr 字面量常量
//
// Value 取值：nil、bool、int32、int64、float64、string。
type ConstantExpr struct {
	Position token.Position
	Value    any
	Type     *TypeRef // 字面量的静态类型，nil 时按 Value 推断
}

func (e *ConstantExpr) Pos() token.Position { return e.Position }
func (e *ConstantExpr) exprNode()           {}

// VariableExpr 局部变量或参数引用
type VariableExpr struct {
	Position      token.Position
	Name          string
	Type          *TypeRef // 声明类型，def 为 Object
	ClosureShared bool     // 解析阶段确定：被闭包捕获且可能被修改
}

func (e *VariableExpr) Pos() token.Position { return e.Position }
func (e *VariableExpr) exprNode()           {}

// DeclarationExpr 局部变量声明 def x = init
type DeclarationExpr struct {
	Position token.Position
	Var      *VariableExpr
	Init     Expression // 可为 nil
}

func (e *DeclarationExpr) Pos() token.Position { return e.Position }
func (e *DeclarationExpr) exprNode()           {}

// BinaryExpr 二元表达式，包括赋值、复合赋值与索引 a[b]
type BinaryExpr struct {
	Position token.Position
	Op       token.TokenType
	Left     Expression
	Right    Expression
}

func (e *BinaryExpr) Pos() token.Position { return e.Position }
func (e *BinaryExpr) exprNode()           {}

// UnaryExpr 一元表达式 !x、-x
type UnaryExpr struct {
	Position token.Position
	Op       token.TokenType
	X        Expression
}

func (e *UnaryExpr) Pos() token.Position { return e.Position }
func (e *UnaryExpr) exprNode()           {}

// PrefixExpr 前缀自增自减 ++x
type PrefixExpr struct {
	Position token.Position
	Op       token.TokenType
	X        Expression
}

func (e *PrefixExpr) Pos() token.Position { return e.Position }
func (e *PrefixExpr) exprNode()           {}

// PostfixExpr 后缀自增自减 x++
type PostfixExpr struct {
	Position token.Position
	Op       token.TokenType
	X        Expression
}

func (e *PostfixExpr) Pos() token.Position { return e.Position }
func (e *PostfixExpr) exprNode()           {}

// FieldExpr 已解析到具体字段的访问
// Object 为 nil 时表示隐式接收者（实例字段为 this，静态字段为所属类）
type FieldExpr struct {
	Position token.Position
	Object   Expression
	Field    *FieldNode
}

func (e *FieldExpr) Pos() token.Position { return e.Position }
func (e *FieldExpr) exprNode()           {}

// PropertyExpr 动态属性访问 obj.name
type PropertyExpr struct {
	Position token.Position
	Object   Expression // ThisExpr 表示隐式接收者
	Name     string
}

func (e *PropertyExpr) Pos() token.Position { return e.Position }
func (e *PropertyExpr) exprNode()           {}

// MethodCallExpr 方法调用 obj.name(args)
type MethodCallExpr struct {
	Position token.Position
	Object   Expression // ThisExpr/SuperExpr 或任意表达式
	Name     string
	Args     []Expression
	Target   *MethodNode // 静态确定的目标方法（可为 nil，表示动态分派）
}

func (e *MethodCallExpr) Pos() token.Position { return e.Position }
func (e *MethodCallExpr) exprNode()           {}

// StaticMethodCallExpr 静态方法调用 Owner.name(args)
type StaticMethodCallExpr struct {
	Position token.Position
	Owner    *TypeRef
	Name     string
	Args     []Expression
	Target   *MethodNode // 可为 nil
}

func (e *StaticMethodCallExpr) Pos() token.Position { return e.Position }
func (e *StaticMethodCallExpr) exprNode()           {}

// 特殊构造调用种类
const (
	CtorNew   = iota // new T(args)
	CtorThis         // this(args)
	CtorSuper        // super(args)
)

// ConstructorCallExpr 构造函数调用
type ConstructorCallExpr struct {
	Position token.Position
	Type     *TypeRef
	Args     []Expression
	Special  int         // CtorNew/CtorThis/CtorSuper
	Target   *MethodNode // 可为 nil
}

func (e *ConstructorCallExpr) Pos() token.Position { return e.Position }
func (e *ConstructorCallExpr) exprNode()           {}

// IsSpecial 是否为 this(...) 或 super(...)
func (e *ConstructorCallExpr) IsSpecial() bool { return e.Special != CtorNew }

// ClosureExpr 闭包字面量 { params -> code }
// Params 为 nil 表示隐式参数 it；长度为 0 的非 nil 切片表示显式无参
type ClosureExpr struct {
	Position token.Position
	Params   []*Parameter
	Code     Statement
}

func (e *ClosureExpr) Pos() token.Position { return e.Position }
func (e *ClosureExpr) exprNode()           {}

// ListExpr 列表字面量 [a, b]
type ListExpr struct {
	Position token.Position
	Elems    []Expression
}

func (e *ListExpr) Pos() token.Position { return e.Position }
func (e *ListExpr) exprNode()           {}

// MapEntry 映射字面量中的一项
type MapEntry struct {
	Key   Expression
	Value Expression
}

// MapExpr 映射字面量 [k: v]
type MapExpr struct {
	Position token.Position
	Entries  []*MapEntry
}

func (e *MapExpr) Pos() token.Position { return e.Position }
func (e *MapExpr) exprNode()           {}

// RangeExpr 范围字面量 from..to / from..<to
type RangeExpr struct {
	Position  token.Position
	From      Expression
	To        Expression
	Inclusive bool
}

func (e *RangeExpr) Pos() token.Position { return e.Position }
func (e *RangeExpr) exprNode()           {}

// ArrayExpr 数组创建 new T[n] 或 new T[]{a, b}
type ArrayExpr struct {
	Position token.Position
	ElemType *TypeRef
	Elems    []Expression // 初始化元素
	Size     Expression   // 长度（Elems 为空时使用）
}

func (e *ArrayExpr) Pos() token.Position { return e.Position }
func (e *ArrayExpr) exprNode()           {}

// CastExpr 类型转换 (T) x
type CastExpr struct {
	Position token.Position
	Type     *TypeRef
	X        Expression
}

func (e *CastExpr) Pos() token.Position { return e.Position }
func (e *CastExpr) exprNode()           {}

// InstanceofExpr x instanceof T
type InstanceofExpr struct {
	Position token.Position
	X        Expression
	Type     *TypeRef
}

func (e *InstanceofExpr) Pos() token.Position { return e.Position }
func (e *InstanceofExpr) exprNode()           {}

// TernaryExpr 三元表达式 cond ? a : b
type TernaryExpr struct {
	Position token.Position
	Cond     Expression
	Then     Expression
	Else     Expression
}

func (e *TernaryExpr) Pos() token.Position { return e.Position }
func (e *TernaryExpr) exprNode()           {}

// ElvisExpr x ?: fallback
type ElvisExpr struct {
	Position token.Position
	X        Expression
	Else     Expression
}

func (e *ElvisExpr) Pos() token.Position { return e.Position }
func (e *ElvisExpr) exprNode()           {}

// ThisExpr this
type ThisExpr struct {
	Position token.Position
}

func (e *ThisExpr) Pos() token.Position { return e.Position }
func (e *ThisExpr) exprNode()           {}

// SuperExpr super（仅作为方法调用的接收者）
type SuperExpr struct {
	Position token.Position
}

func (e *SuperExpr) Pos() token.Position { return e.Position }
func (e *SuperExpr) exprNode()           {}

// ClassExpr 类字面量 Foo
type ClassExpr struct {
	Position token.Position
	Type     *TypeRef
}

func (e *ClassExpr) Pos() token.Position { return e.Position }
func (e *ClassExpr) exprNode()           {}
