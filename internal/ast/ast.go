// Package ast 定义代码生成后端的输入：已完成名称与类型解析的类语法树。
//
// 节点集合是封闭的：语句实现 Statement，表达式实现 Expression，
// 降级引擎通过类型分支穷举处理所有节点种类。
package ast

import (
	"github.com/tangzhangming/classgen/internal/token"
)

// Node 是所有 AST 节点的基接口
type Node interface {
	Pos() token.Position // 返回节点在源代码中的位置
}

// Expression 表示一个表达式节点
type Expression interface {
	Node
	exprNode()
}

// Statement 表示一个语句节点
type Statement interface {
	Node
	stmtNode()
}

// ============================================================================
// 修饰符
// ============================================================================

// 访问标志，与类模块格式中的取值一致
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSynchronized = 0x0020
	AccBridge       = 0x0040
	AccVarargs      = 0x0080
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccSynthetic    = 0x1000
	AccEnum         = 0x4000
)

// SyntheticKind 合成成员的生成原因
type SyntheticKind int

const (
	NotSynthetic       SyntheticKind = iota // 用户声明
	SynthDefaultCtor                        // 默认构造函数
	SynthGetter                             // 属性 getter
	SynthSetter                             // 属性 setter
	SynthForwarder                          // 默认参数转发方法
	SynthBridge                             // 协变桥接方法
	SynthClosureCall                        // 闭包 call 分派方法
	SynthClosureGetter                      // 闭包捕获变量的 getter
	SynthStaticInit                         // 静态初始化块
)

var syntheticNames = [...]string{
	NotSynthetic:       "declared",
	SynthDefaultCtor:   "default-constructor",
	SynthGetter:        "getter",
	SynthSetter:        "setter",
	SynthForwarder:     "forwarder",
	SynthBridge:        "bridge",
	SynthClosureCall:   "closure-call",
	SynthClosureGetter: "closure-getter",
	SynthStaticInit:    "static-init",
}

func (k SyntheticKind) String() string {
	if int(k) < len(syntheticNames) {
		return syntheticNames[k]
	}
	return "unknown"
}

// ============================================================================
// 编译单元与类
// ============================================================================

// CompileUnit 一次编译的输入
type CompileUnit struct {
	Source  string       // 源文件名
	Classes []*ClassNode // 顶层类，按声明顺序
}

// ClassNode 类声明
type ClassNode struct {
	Position   token.Position
	Name       string     // 二进制名，点分格式 (demo.Foo, demo.Foo$Inner)
	Modifiers  int        // Acc* 标志
	Super      *TypeRef   // 父类 (nil 表示 java.lang.Object)
	Interfaces []*TypeRef // 实现的接口
	Generics   []*TypeRef // 声明的类型参数（占位符）
	Outer      *ClassNode // 外部类（闭包类、内部类）

	Fields       []*FieldNode
	Properties   []*PropertyNode
	Methods      []*MethodNode
	Constructors []*MethodNode

	ObjectInitializers []Statement // 实例初始化块
	StaticInitializers []Statement // static {} 初始化块

	SourceFile string // 源文件名
}

func (c *ClassNode) Pos() token.Position { return c.Position }

func (c *ClassNode) IsInterface() bool { return c.Modifiers&AccInterface != 0 }
func (c *ClassNode) IsEnum() bool      { return c.Modifiers&AccEnum != 0 }
func (c *ClassNode) IsAbstract() bool  { return c.Modifiers&AccAbstract != 0 }
func (c *ClassNode) IsSynthetic() bool { return c.Modifiers&AccSynthetic != 0 }

// SuperClass 已解析的父类节点；父类为内置类型时返回 nil
func (c *ClassNode) SuperClass() *ClassNode {
	if c.Super == nil {
		return nil
	}
	return c.Super.Class
}

// SuperName 父类二进制名
func (c *ClassNode) SuperName() string {
	if c.Super == nil {
		return ObjectType.Name
	}
	return c.Super.Name
}

// AddField 添加字段
func (c *ClassNode) AddField(f *FieldNode) {
	f.Owner = c
	c.Fields = append(c.Fields, f)
}

// AddMethod 添加方法；名称为 <init> 的方法进入构造函数列表
func (c *ClassNode) AddMethod(m *MethodNode) {
	m.Owner = c
	if m.IsConstructor() {
		c.Constructors = append(c.Constructors, m)
		return
	}
	c.Methods = append(c.Methods, m)
}

// AddProperty 添加属性及其后备字段
func (c *ClassNode) AddProperty(p *PropertyNode) {
	c.Properties = append(c.Properties, p)
	if c.DeclaredField(p.Field.Name) == nil {
		c.AddField(p.Field)
	}
}

// DeclaredField 查找本类声明的字段
func (c *ClassNode) DeclaredField(name string) *FieldNode {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field 沿继承链查找字段，父类中的 private 字段不可见
func (c *ClassNode) Field(name string) *FieldNode {
	if f := c.DeclaredField(name); f != nil {
		return f
	}
	for p := c.SuperClass(); p != nil; p = p.SuperClass() {
		if f := p.DeclaredField(name); f != nil && !f.IsPrivate() {
			return f
		}
	}
	return nil
}

// DeclaredMethods 返回本类中指定名称的方法
func (c *ClassNode) DeclaredMethods(name string) []*MethodNode {
	var out []*MethodNode
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// DeclaredMethod 按名称和参数类型查找本类方法
func (c *ClassNode) DeclaredMethod(name string, params []*Parameter) *MethodNode {
	list := c.Methods
	if name == ConstructorName {
		list = c.Constructors
	}
	for _, m := range list {
		if m.Name == name && SameParameterTypes(m.Params, params) {
			return m
		}
	}
	return nil
}

// Method 沿继承链按名称和参数类型查找方法
func (c *ClassNode) Method(name string, params []*Parameter) *MethodNode {
	for k := c; k != nil; k = k.SuperClass() {
		if m := k.DeclaredMethod(name, params); m != nil {
			return m
		}
	}
	return nil
}

// HasMethodNamed 本类或父类是否声明了指定名称的方法
func (c *ClassNode) HasMethodNamed(name string) bool {
	for k := c; k != nil; k = k.SuperClass() {
		if len(k.DeclaredMethods(name)) > 0 {
			return true
		}
	}
	return false
}

// Property 查找属性
func (c *ClassNode) Property(name string) *PropertyNode {
	for _, p := range c.Properties {
		if p.Field.Name == name {
			return p
		}
	}
	return nil
}

// IsDerivedFrom 判断本类是否为 name 的子类（含自身），沿父类与接口搜索
func (c *ClassNode) IsDerivedFrom(name string) bool {
	if c.Name == name {
		return true
	}
	if c.Super != nil {
		if c.Super.Name == name {
			return true
		}
		if sc := c.Super.Class; sc != nil && sc.IsDerivedFrom(name) {
			return true
		}
	}
	for _, i := range c.Interfaces {
		if i.Name == name {
			return true
		}
		if i.Class != nil && i.Class.IsDerivedFrom(name) {
			return true
		}
	}
	return name == ObjectType.Name
}

// Type 返回指向本类的类型引用
func (c *ClassNode) Type() *TypeRef {
	return &TypeRef{Name: c.Name, Class: c}
}

// ============================================================================
// 类成员
// ============================================================================

// FieldNode 字段声明
type FieldNode struct {
	Position  token.Position
	Name      string
	Modifiers int
	Type      *TypeRef
	Init      Expression // 初始化表达式（可为 nil）
	Owner     *ClassNode

	// ConstantValue 可直接写入类模块的常量初值，由结构补全阶段设置
	ConstantValue any
}

func (f *FieldNode) Pos() token.Position { return f.Position }

func (f *FieldNode) IsStatic() bool    { return f.Modifiers&AccStatic != 0 }
func (f *FieldNode) IsFinal() bool     { return f.Modifiers&AccFinal != 0 }
func (f *FieldNode) IsPrivate() bool   { return f.Modifiers&AccPrivate != 0 }
func (f *FieldNode) IsSynthetic() bool { return f.Modifiers&AccSynthetic != 0 }
func (f *FieldNode) IsEnum() bool      { return f.Modifiers&AccEnum != 0 }

// PropertyNode 属性声明：一个后备字段加上可选的访问器代码块
type PropertyNode struct {
	Position    token.Position
	Field       *FieldNode
	Modifiers   int
	GetterBlock Statement // 自定义 getter 代码（可为 nil）
	SetterBlock Statement // 自定义 setter 代码（可为 nil）
}

func (p *PropertyNode) Pos() token.Position { return p.Position }
func (p *PropertyNode) Name() string         { return p.Field.Name }
func (p *PropertyNode) Type() *TypeRef       { return p.Field.Type }
func (p *PropertyNode) IsStatic() bool       { return p.Modifiers&AccStatic != 0 }
func (p *PropertyNode) IsFinal() bool        { return p.Modifiers&AccFinal != 0 }
func (p *PropertyNode) IsPrivate() bool      { return p.Modifiers&AccPrivate != 0 }

// 特殊方法名
const (
	ConstructorName = "<init>"
	StaticInitName  = "<clinit>"
)

// MethodNode 方法或构造函数声明（构造函数名为 <init>）
type MethodNode struct {
	Position   token.Position
	Name       string
	Modifiers  int
	ReturnType *TypeRef
	Params     []*Parameter
	Exceptions []*TypeRef
	Code       Statement // 方法体；抽象方法为 nil
	Owner      *ClassNode
	Synthetic  SyntheticKind
}

func (m *MethodNode) Pos() token.Position { return m.Position }

func (m *MethodNode) IsConstructor() bool { return m.Name == ConstructorName }
func (m *MethodNode) IsStaticInit() bool  { return m.Name == StaticInitName }
func (m *MethodNode) IsStatic() bool      { return m.Modifiers&AccStatic != 0 }
func (m *MethodNode) IsFinal() bool       { return m.Modifiers&AccFinal != 0 }
func (m *MethodNode) IsPrivate() bool     { return m.Modifiers&AccPrivate != 0 }
func (m *MethodNode) IsAbstract() bool    { return m.Modifiers&AccAbstract != 0 }
func (m *MethodNode) IsBridge() bool      { return m.Modifiers&AccBridge != 0 }
func (m *MethodNode) IsVoid() bool        { return m.ReturnType == nil || m.ReturnType.IsVoid() }

// HasDefaultValue 是否存在带默认值的参数
func (m *MethodNode) HasDefaultValue() bool {
	for _, p := range m.Params {
		if p.Default != nil {
			return true
		}
	}
	return false
}

// Block 以代码块形式返回方法体，必要时包装
func (m *MethodNode) Block() *BlockStmt {
	switch c := m.Code.(type) {
	case *BlockStmt:
		return c
	case nil:
		b := &BlockStmt{Position: m.Position}
		m.Code = b
		return b
	default:
		b := &BlockStmt{Position: c.Pos(), Stmts: []Statement{c}}
		m.Code = b
		return b
	}
}

// Parameter 方法参数
type Parameter struct {
	Position      token.Position
	Name          string
	Type          *TypeRef
	Default       Expression // 默认值表达式（可为 nil）
	ClosureShared bool       // 解析阶段确定：被闭包捕获且可能被修改
}

func (p *Parameter) Pos() token.Position { return p.Position }

// SameParameterTypes 两组参数的类型是否逐一相同
func SameParameterTypes(a, b []*Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Type.Equals(b[i].Type) {
			return false
		}
	}
	return true
}
