package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tangzhangming/classgen/internal/ast"
)

// ============================================================================
// 运行时值
// ============================================================================
//
// 操作数栈与局部变量中的值直接使用 Go 值：
//   nil      null
//   int32    int/short/byte/char 以及 Integer
//   int64    long / Long
//   float32  float / Float
//   float64  double / Double
//   bool     Boolean（原始 boolean 在栈上是 int32 0/1）
//   string   String
// 其余为本包定义的引用类型。
//
// ============================================================================

// Object 类实例
type Object struct {
	Class  *Class
	Fields map[string]any
	id     int64
	native any // 内置类的实例状态：*cell、*closureState、*throwableState
}

// cell groovy/lang/Reference 的共享单元
type cell struct{ value any }

// closureState 闭包实例的 owner 与 thisObject
type closureState struct {
	owner      any
	thisObject any
}

// throwableState 异常实例的消息
type throwableState struct {
	message any
}

// List 列表
type List struct{ Elems []any }

// Map 保持插入顺序的映射
type Map struct {
	keys []any
	vals map[any]any
}

// Entry 映射项
type Entry struct {
	Key   any
	Value any
}

// Range 整数范围
type Range struct {
	From, To  int64
	Inclusive bool
}

// Array 数组
type Array struct {
	Elem  string // 元素类型内部名
	Elems []any
}

// ClassRef 类字面量
type ClassRef struct{ Class *Class }

// Iterator for-in 循环使用的迭代器
type Iterator struct {
	items []any
	pos   int
}

// NewMap 创建空映射
func NewMap() *Map { return &Map{vals: make(map[any]any)} }

// Get 读取键对应的值
func (m *Map) Get(k any) any { return m.vals[mapKey(k)] }

// Put 写入键值
func (m *Map) Put(k, v any) {
	key := mapKey(k)
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Has 是否包含键
func (m *Map) Has(k any) bool {
	_, ok := m.vals[mapKey(k)]
	return ok
}

// Len 项数
func (m *Map) Len() int { return len(m.keys) }

// Entries 按插入顺序返回全部项
func (m *Map) Entries() []*Entry {
	out := make([]*Entry, len(m.keys))
	for i, k := range m.keys {
		out[i] = &Entry{Key: k, Value: m.vals[k]}
	}
	return out
}

// mapKey 数值键统一为 int64 或 float64，使 1 与 1L 命中同一项
func mapKey(k any) any {
	switch n := k.(type) {
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	}
	return k
}

// Values 范围内的全部整数
func (r *Range) Values() []any {
	var out []any
	step := int64(1)
	if r.To < r.From {
		step = -1
	}
	for i := r.From; ; i += step {
		if !r.Inclusive && i == r.To {
			break
		}
		out = append(out, intValue(i))
		if i == r.To {
			break
		}
	}
	return out
}

// Contains 是否包含整数 v
func (r *Range) Contains(v any) bool {
	n, ok := toInt(v)
	if !ok {
		return false
	}
	lo, hi := r.From, r.To
	if lo > hi {
		lo, hi = hi, lo
	}
	if !r.Inclusive {
		if r.To >= r.From {
			hi--
		} else {
			lo++
		}
	}
	return n >= lo && n <= hi
}

// intValue 在 int 范围内时使用 int32
func intValue(n int64) any {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return int32(n)
	}
	return n
}

// ============================================================================
// 数值
// ============================================================================

// numRank 数值提升等级：int < long < float < double，非数值为 -1
func numRank(v any) int {
	switch v.(type) {
	case int32:
		return 0
	case int64:
		return 1
	case float32:
		return 2
	case float64:
		return 3
	}
	return -1
}

func isNumber(v any) bool { return numRank(v) >= 0 }

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// box 原始值按描述符装箱；原始 boolean 变为 bool
func box(v any, kind byte) any {
	switch kind {
	case 'Z':
		if b, ok := v.(bool); ok {
			return b
		}
		n, _ := toInt(v)
		return n != 0
	case 'J':
		n, _ := toInt(v)
		return n
	case 'F':
		f, _ := toFloat(v)
		return float32(f)
	case 'D':
		f, _ := toFloat(v)
		return f
	}
	n, _ := toInt(v)
	return int32(n)
}

// unbox 对象按描述符转换为原始值
func unbox(v any, kind byte) (any, bool) {
	if v == nil {
		return nil, false
	}
	if kind == 'Z' {
		if truth(v) {
			return int32(1), true
		}
		return int32(0), true
	}
	if s, ok := v.(string); ok && kind == 'C' && len(s) == 1 {
		return int32(s[0]), true
	}
	if !isNumber(v) {
		if _, ok := v.(bool); !ok {
			return nil, false
		}
	}
	switch kind {
	case 'J':
		n, _ := toInt(v)
		return n, true
	case 'F':
		f, _ := toFloat(v)
		return float32(f), true
	case 'D':
		f, _ := toFloat(v)
		return f, true
	}
	n, _ := toInt(v)
	switch kind {
	case 'S':
		return int32(int16(n)), true
	case 'B':
		return int32(int8(n)), true
	case 'C':
		return int32(uint16(n)), true
	}
	return int32(n), true
}

// boxValue 按描述符把栈上的原始值转换为对象；引用描述符原样返回
func boxValue(v any, desc string) any {
	if len(desc) == 1 && desc != "V" {
		return box(v, desc[0])
	}
	return v
}

// coerce 把对象转换为描述符要求的值，失败时返回 false
func coerce(v any, desc string) (any, bool) {
	if len(desc) == 1 {
		return unbox(v, desc[0])
	}
	return v, true
}

// zeroValue 描述符对应的默认值
func zeroValue(desc string) any {
	switch desc {
	case "I", "S", "B", "C", "Z":
		return int32(0)
	case "J":
		return int64(0)
	case "F":
		return float32(0)
	case "D":
		return float64(0)
	}
	return nil
}

// ============================================================================
// 真值、相等与字符串形式
// ============================================================================

// truth 对象的真值
func truth(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Elems) > 0
	case *Map:
		return x.Len() > 0
	case *Range:
		return len(x.Values()) > 0
	case *Array:
		return len(x.Elems) > 0
	case *Iterator:
		return x.pos < len(x.items)
	}
	return true
}

// equal 值相等：数值跨类型比较，列表与映射逐项比较，其余比较同一性
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		if numRank(a) <= 1 && numRank(b) <= 1 {
			x, _ := toInt(a)
			y, _ := toInt(b)
			return x == y
		}
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return x == y
	}
	switch x := a.(type) {
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			if !y.Has(k) || !equal(x.vals[k], y.Get(k)) {
				return false
			}
		}
		return true
	case *Range:
		y, ok := b.(*Range)
		return ok && *x == *y
	case *ClassRef:
		y, ok := b.(*ClassRef)
		return ok && x.Class == y.Class
	}
	return a == b
}

// format 值的字符串形式；对象的 toString 由 VM 负责
func format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case *List:
		return "[" + joinFormatted(x.Elems, ", ") + "]"
	case *Array:
		return "[" + joinFormatted(x.Elems, ", ") + "]"
	case *Map:
		if x.Len() == 0 {
			return "[:]"
		}
		parts := make([]string, 0, x.Len())
		for _, e := range x.Entries() {
			parts = append(parts, format(e.Key)+":"+format(e.Value))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Entry:
		return format(x.Key) + "=" + format(x.Value)
	case *Range:
		op := ".."
		if !x.Inclusive {
			op = "..<"
		}
		return fmt.Sprintf("%d%s%d", x.From, op, x.To)
	case *ClassRef:
		return "class " + dotted(x.Class.Name)
	case *Object:
		if ts, ok := x.native.(*throwableState); ok {
			if ts.message == nil {
				return dotted(x.Class.Name)
			}
			return dotted(x.Class.Name) + ": " + format(ts.message)
		}
		return fmt.Sprintf("%s@%x", dotted(x.Class.Name), x.id)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, bits)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func joinFormatted(vals []any, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = format(v)
	}
	return strings.Join(parts, sep)
}

// ============================================================================
// 类型名
// ============================================================================

func dotted(internal string) string { return strings.ReplaceAll(internal, "/", ".") }

func slashed(binary string) string { return strings.ReplaceAll(binary, ".", "/") }

// runtimeTypeName 内置值的运行时类型内部名
func runtimeTypeName(v any) string {
	switch x := v.(type) {
	case int32:
		return "java/lang/Integer"
	case int64:
		return "java/lang/Long"
	case float32:
		return "java/lang/Float"
	case float64:
		return "java/lang/Double"
	case bool:
		return "java/lang/Boolean"
	case string:
		return "java/lang/String"
	case *List:
		return "java/util/ArrayList"
	case *Map:
		return "java/util/LinkedHashMap"
	case *Range:
		return "groovy/lang/IntRange"
	case *ClassRef:
		return "java/lang/Class"
	case *Iterator:
		return "java/util/Iterator"
	case *Entry:
		return "java/util/Map$Entry"
	case *Array:
		return "[L" + x.Elem + ";"
	case *Object:
		return x.Class.Name
	}
	return objectClass
}

// runtimeSupers 解释器自身抛出的异常类型的父类
var runtimeSupers = map[string]string{
	"java/lang/NullPointerException":          "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":      "java/lang/RuntimeException",
	"java/lang/ArithmeticException":           "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException":     "java/lang/RuntimeException",
	"java/lang/UnsupportedOperationException": "java/lang/RuntimeException",
	"java/lang/IllegalMonitorStateException":  "java/lang/RuntimeException",
	"java/lang/IllegalStateException":         "java/lang/RuntimeException",
	"java/lang/NumberFormatException":         "java/lang/IllegalArgumentException",
	"java/util/NoSuchElementException":        "java/lang/RuntimeException",
	"java/lang/AbstractMethodError":           "java/lang/Error",
	"java/lang/StackOverflowError":            "java/lang/Error",
	"groovy/lang/MissingMethodException":      "java/lang/RuntimeException",
	"groovy/lang/MissingPropertyException":    "java/lang/RuntimeException",
}

// builtinSupersOf 内置类型的直接父类型（内部名）
func builtinSupersOf(name string) []string {
	if s, ok := runtimeSupers[name]; ok {
		return []string{s}
	}
	supers := ast.BuiltinSupers(dotted(name))
	out := make([]string, len(supers))
	for i, s := range supers {
		out[i] = slashed(s)
	}
	return out
}

// builtinDerived 内置类型之间的继承关系（内部名）
func builtinDerived(sub, super string) bool {
	if sub == super || super == objectClass {
		return true
	}
	for _, s := range builtinSupersOf(sub) {
		if builtinDerived(s, super) {
			return true
		}
	}
	return false
}
