package ast

import "strings"

// ============================================================================
// 类型引用
// ============================================================================

// TypeRef 已解析的类型引用
//
// 原始类型使用小写名称 (int, long, boolean ...)，引用类型使用点分二进制名，
// 数组通过 Component 表示，泛型占位符通过 Placeholder + Bound 表示。
type TypeRef struct {
	Name        string     // 类型名
	Component   *TypeRef   // 数组元素类型（非 nil 表示数组）
	Args        []*TypeRef // 泛型实参
	Placeholder bool       // 是否为泛型占位符 (T)
	Bound       *TypeRef   // 占位符上界，擦除后的类型
	Class       *ClassNode // 本次编译中定义的类（内置类型为 nil）
}

// 常用类型
var (
	ObjectType    = &TypeRef{Name: "java.lang.Object"}
	DynamicType   = ObjectType
	StringType    = &TypeRef{Name: "java.lang.String"}
	ClosureType   = &TypeRef{Name: "groovy.lang.Closure"}
	ReferenceType = &TypeRef{Name: "groovy.lang.Reference"}
	ThrowableType = &TypeRef{Name: "java.lang.Throwable"}
	ExceptionType = &TypeRef{Name: "java.lang.Exception"}
	ListType      = &TypeRef{Name: "java.util.List"}
	MapType       = &TypeRef{Name: "java.util.Map"}
	IteratorType  = &TypeRef{Name: "java.util.Iterator"}
	NumberType    = &TypeRef{Name: "java.lang.Number"}
	IntegerType   = &TypeRef{Name: "java.lang.Integer"}
	LongWrapper   = &TypeRef{Name: "java.lang.Long"}
	DoubleWrapper = &TypeRef{Name: "java.lang.Double"}
	BooleanWrap   = &TypeRef{Name: "java.lang.Boolean"}

	VoidType    = &TypeRef{Name: "void"}
	IntType     = &TypeRef{Name: "int"}
	LongType    = &TypeRef{Name: "long"}
	ShortType   = &TypeRef{Name: "short"}
	ByteType    = &TypeRef{Name: "byte"}
	CharType    = &TypeRef{Name: "char"}
	FloatType   = &TypeRef{Name: "float"}
	DoubleType  = &TypeRef{Name: "double"}
	BooleanType = &TypeRef{Name: "boolean"}
)

var primitiveNames = map[string]bool{
	"void": true, "int": true, "long": true, "short": true, "byte": true,
	"char": true, "float": true, "double": true, "boolean": true,
}

// wrapperOf 原始类型到包装类型
var wrapperOf = map[string]*TypeRef{
	"int":     IntegerType,
	"long":    LongWrapper,
	"double":  DoubleWrapper,
	"boolean": BooleanWrap,
	"short":   {Name: "java.lang.Short"},
	"byte":    {Name: "java.lang.Byte"},
	"char":    {Name: "java.lang.Character"},
	"float":   {Name: "java.lang.Float"},
}

// Make 按名称创建类型引用；原始类型返回共享实例
func Make(name string) *TypeRef {
	switch name {
	case "void":
		return VoidType
	case "int":
		return IntType
	case "long":
		return LongType
	case "short":
		return ShortType
	case "byte":
		return ByteType
	case "char":
		return CharType
	case "float":
		return FloatType
	case "double":
		return DoubleType
	case "boolean":
		return BooleanType
	case "def", "", "java.lang.Object":
		return ObjectType
	}
	return &TypeRef{Name: name}
}

// MakeGeneric 创建带泛型实参的类型引用
func MakeGeneric(name string, args ...*TypeRef) *TypeRef {
	return &TypeRef{Name: name, Args: args}
}

// PlaceholderOf 创建泛型占位符，bound 为 nil 时上界为 Object
func PlaceholderOf(name string, bound *TypeRef) *TypeRef {
	if bound == nil {
		bound = ObjectType
	}
	return &TypeRef{Name: name, Placeholder: true, Bound: bound}
}

// ArrayOf 创建数组类型
func ArrayOf(component *TypeRef) *TypeRef {
	return &TypeRef{Name: component.Name + "[]", Component: component}
}

func (t *TypeRef) IsArray() bool     { return t.Component != nil }
func (t *TypeRef) IsVoid() bool      { return t.Name == "void" && !t.IsArray() }
func (t *TypeRef) IsPrimitive() bool { return !t.IsArray() && !t.Placeholder && primitiveNames[t.Name] }
func (t *TypeRef) IsObject() bool    { return t.Name == ObjectType.Name && !t.IsArray() }

// Wrapper 原始类型对应的包装类型；非原始类型返回自身
func (t *TypeRef) Wrapper() *TypeRef {
	if t.IsPrimitive() {
		if w, ok := wrapperOf[t.Name]; ok {
			return w
		}
	}
	return t
}

// Erasure 擦除泛型信息后的类型
func (t *TypeRef) Erasure() *TypeRef {
	if t.Placeholder {
		if t.Bound != nil {
			return t.Bound.Erasure()
		}
		return ObjectType
	}
	if t.IsArray() {
		c := t.Component.Erasure()
		if c == t.Component && len(t.Args) == 0 {
			return t
		}
		return ArrayOf(c)
	}
	if len(t.Args) == 0 {
		return t
	}
	return &TypeRef{Name: t.Name, Class: t.Class}
}

// Equals 按擦除后的名称比较两个类型
func (t *TypeRef) Equals(o *TypeRef) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	a, b := t.Erasure(), o.Erasure()
	if a.IsArray() || b.IsArray() {
		return a.IsArray() && b.IsArray() && a.Component.Equals(b.Component)
	}
	return a.Name == b.Name
}

// SimpleName 去掉包名后的类名
func (t *TypeRef) SimpleName() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// IsDerivedFrom 判断 t 是否可赋值给 super（擦除后比较）
func (t *TypeRef) IsDerivedFrom(super *TypeRef) bool {
	a, b := t.Erasure(), super.Erasure()
	if a.Equals(b) || b.IsObject() && !a.IsPrimitive() {
		return true
	}
	if a.IsArray() || b.IsArray() {
		return a.IsArray() && b.IsArray() && a.Component.IsDerivedFrom(b.Component)
	}
	if a.Class != nil {
		return a.Class.IsDerivedFrom(b.Name)
	}
	return builtinDerived(a.Name, b.Name)
}

// builtinSupers 内置类型的父类型表
var builtinSupers = map[string][]string{
	"java.lang.String":             {"java.lang.CharSequence", "java.lang.Comparable"},
	"java.lang.Integer":            {"java.lang.Number", "java.lang.Comparable"},
	"java.lang.Long":               {"java.lang.Number", "java.lang.Comparable"},
	"java.lang.Double":             {"java.lang.Number", "java.lang.Comparable"},
	"java.lang.Exception":          {"java.lang.Throwable"},
	"java.lang.RuntimeException":   {"java.lang.Exception"},
	"java.lang.Error":              {"java.lang.Throwable"},
	"java.lang.AssertionError":     {"java.lang.Error"},
	"java.util.ArrayList":          {"java.util.List"},
	"java.util.List":               {"java.util.Collection"},
	"java.util.Collection":         {"java.lang.Iterable"},
	"java.util.LinkedHashMap":      {"java.util.Map"},
	"groovy.lang.IntRange":         {"java.util.List"},
	"groovy.lang.Closure":          {"groovy.lang.GroovyObject"},
	"java.lang.ClassCastException": {"java.lang.RuntimeException"},
}

func builtinDerived(sub, super string) bool {
	if sub == super {
		return true
	}
	for _, s := range builtinSupers[sub] {
		if builtinDerived(s, super) {
			return true
		}
	}
	return false
}

// BuiltinSupers 返回内置类型的直接父类型（供运行时使用）
func BuiltinSupers(name string) []string {
	return builtinSupers[name]
}

func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.IsArray() {
		return t.Component.String() + "[]"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}
