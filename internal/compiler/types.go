package compiler

import (
	"strings"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
)

// ============================================================================
// 类型与描述符
// ============================================================================

// 运行时辅助类
const (
	objectClass    = "java/lang/Object"
	referenceClass = "groovy/lang/Reference"
	closureClass   = "groovy/lang/Closure"
	throwableClass = "java/lang/Throwable"
	assertionClass = "java/lang/AssertionError"
	adapterClass   = "org/codehaus/groovy/runtime/ScriptBytecodeAdapter"
)

var primitiveDescriptors = map[string]string{
	"int":     "I",
	"long":    "J",
	"short":   "S",
	"float":   "F",
	"double":  "D",
	"byte":    "B",
	"char":    "C",
	"boolean": "Z",
	"void":    "V",
}

// InternalName 类型的内部名 (java.lang.String -> java/lang/String)
func InternalName(t *ast.TypeRef) string {
	t = t.Erasure()
	if t.IsArray() {
		return TypeDescriptor(t)
	}
	return strings.ReplaceAll(t.Name, ".", "/")
}

// ClassInternalName 类节点的内部名
func ClassInternalName(c *ast.ClassNode) string {
	return strings.ReplaceAll(c.Name, ".", "/")
}

// TypeDescriptor 类型描述符
func TypeDescriptor(t *ast.TypeRef) string {
	if t == nil {
		return "Ljava/lang/Object;"
	}
	t = t.Erasure()
	if t.IsArray() {
		return "[" + TypeDescriptor(t.Component)
	}
	if d, ok := primitiveDescriptors[t.Name]; ok {
		return d
	}
	return "L" + InternalName(t) + ";"
}

// MethodDescriptor 方法描述符
func MethodDescriptor(ret *ast.TypeRef, params []*ast.Parameter) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(TypeDescriptor(p.Type))
	}
	sb.WriteByte(')')
	if ret == nil {
		ret = ast.DynamicType
	}
	sb.WriteString(TypeDescriptor(ret))
	return sb.String()
}

// MethodDescriptorOf 方法节点的描述符
func MethodDescriptorOf(m *ast.MethodNode) string {
	ret := m.ReturnType
	if m.IsConstructor() || m.IsStaticInit() {
		ret = ast.VoidType
	}
	return MethodDescriptor(ret, m.Params)
}

// IsWide 是否占两个局部变量槽位
func IsWide(t *ast.TypeRef) bool {
	return bytecode.IsWide(TypeDescriptor(t))
}

// SlotSize 类型占用的局部变量槽位数
func SlotSize(t *ast.TypeRef) int {
	if IsWide(t) {
		return 2
	}
	return 1
}

// LoadOp 加载局部变量的指令
func LoadOp(t *ast.TypeRef) bytecode.OpCode {
	switch TypeDescriptor(t) {
	case "I", "S", "B", "C", "Z":
		return bytecode.OpILoad
	case "J":
		return bytecode.OpLLoad
	case "F":
		return bytecode.OpFLoad
	case "D":
		return bytecode.OpDLoad
	}
	return bytecode.OpALoad
}

// StoreOp 存储局部变量的指令
func StoreOp(t *ast.TypeRef) bytecode.OpCode {
	switch TypeDescriptor(t) {
	case "I", "S", "B", "C", "Z":
		return bytecode.OpIStore
	case "J":
		return bytecode.OpLStore
	case "F":
		return bytecode.OpFStore
	case "D":
		return bytecode.OpDStore
	}
	return bytecode.OpAStore
}

// ReturnOp 返回指令
func ReturnOp(t *ast.TypeRef) bytecode.OpCode {
	if t == nil {
		return bytecode.OpAReturn
	}
	switch TypeDescriptor(t) {
	case "V":
		return bytecode.OpReturn
	case "I", "S", "B", "C", "Z":
		return bytecode.OpIReturn
	case "J":
		return bytecode.OpLReturn
	case "F":
		return bytecode.OpFReturn
	case "D":
		return bytecode.OpDReturn
	}
	return bytecode.OpAReturn
}

// Box 把栈顶的原始值装箱；引用类型不做处理
func Box(code *bytecode.Code, t *ast.TypeRef) {
	if t.IsPrimitive() && !t.IsVoid() {
		code.EmitU8(bytecode.OpBox, TypeDescriptor(t)[0])
	}
}

// Unbox 把栈顶对象拆箱为原始类型 t
func Unbox(code *bytecode.Code, t *ast.TypeRef) {
	if t.IsPrimitive() && !t.IsVoid() {
		code.EmitU8(bytecode.OpUnbox, TypeDescriptor(t)[0])
	}
}

// Cast 把栈顶 from 类型的值转换为 to 类型
func Cast(code *bytecode.Code, from, to *ast.TypeRef) {
	if to == nil || to.IsVoid() {
		return
	}
	if from == nil {
		from = ast.DynamicType
	}
	switch {
	case from.IsPrimitive() && to.IsPrimitive():
		if TypeDescriptor(from) != TypeDescriptor(to) {
			Box(code, from)
			Unbox(code, to)
		}
	case from.IsPrimitive():
		Box(code, from)
		if w := from.Wrapper(); !w.IsDerivedFrom(to) {
			code.EmitU16(bytecode.OpCheckCast, code.Pool.AddClass(InternalName(to)))
		}
	case to.IsPrimitive():
		Unbox(code, to)
	default:
		if !to.Erasure().IsObject() && !from.IsDerivedFrom(to) {
			code.EmitU16(bytecode.OpCheckCast, code.Pool.AddClass(InternalName(to)))
		}
	}
}

// Correct 用已知的实际类型修正泛型占位符，未知占位符擦除为上界
func Correct(t *ast.TypeRef, bindings map[string]*ast.TypeRef) *ast.TypeRef {
	if t == nil {
		return nil
	}
	if t.Placeholder {
		if b, ok := bindings[t.Name]; ok && b != nil {
			return b
		}
		return t.Erasure()
	}
	if t.IsArray() {
		c := Correct(t.Component, bindings)
		if c == t.Component {
			return t
		}
		return ast.ArrayOf(c)
	}
	return t
}

// Erasure 类型擦除
func Erasure(t *ast.TypeRef) *ast.TypeRef {
	if t == nil {
		return ast.DynamicType
	}
	return t.Erasure()
}

// constantType 字面量值的静态类型
func constantType(v any) *ast.TypeRef {
	switch v.(type) {
	case bool:
		return ast.BooleanType
	case int32:
		return ast.IntType
	case int64:
		return ast.LongType
	case float64:
		return ast.DoubleType
	case string:
		return ast.StringType
	}
	return ast.DynamicType
}

// isStaticConstantType 可以作为 ConstantValue 直接写入类模块的类型
func isStaticConstantType(t *ast.TypeRef) bool {
	if t.IsPrimitive() {
		return !t.IsVoid()
	}
	return t.Equals(ast.StringType)
}

// capitalize 属性名首字母大写
func capitalize(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
