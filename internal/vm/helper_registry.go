package vm

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ============================================================================
// Helper 注册表
// 内置值（数值、字符串、集合等）上的方法，按接收者种类、名称与参数个数分派
// ============================================================================

// helperFunc Helper 函数类型
type helperFunc func(vm *VM, recv any, args []any) (any, error)

type helperKey struct {
	kind string
	name string
	argc int
}

// helperRegistry Helper 注册表
var helperRegistry = make(map[helperKey]helperFunc)

// 接收者种类
const (
	kindNull     = "null"
	kindNumber   = "number"
	kindString   = "string"
	kindBool     = "bool"
	kindList     = "list"
	kindMap      = "map"
	kindRange    = "range"
	kindArray    = "array"
	kindIterator = "iterator"
	kindEntry    = "entry"
	kindClass    = "class"
	kindObject   = "object"
	kindIterable = "iterable" // list、range、array、map 的公共方法
	kindAny      = "any"
)

// registerHelper 注册 Helper 函数
func registerHelper(kind, name string, argc int, fn helperFunc) {
	helperRegistry[helperKey{kind, name, argc}] = fn
}

// helperKind 值的接收者种类
func helperKind(v any) string {
	switch v.(type) {
	case nil:
		return kindNull
	case int32, int64, float32, float64:
		return kindNumber
	case string:
		return kindString
	case bool:
		return kindBool
	case *List:
		return kindList
	case *Map:
		return kindMap
	case *Range:
		return kindRange
	case *Array:
		return kindArray
	case *Iterator:
		return kindIterator
	case *Entry:
		return kindEntry
	case *ClassRef:
		return kindClass
	}
	return kindObject
}

// lookupHelper 依次按具体种类、可迭代、任意值查找 Helper
func lookupHelper(recv any, name string, argc int) helperFunc {
	kind := helperKind(recv)
	if fn, ok := helperRegistry[helperKey{kind, name, argc}]; ok {
		return fn
	}
	switch kind {
	case kindList, kindRange, kindArray, kindMap:
		if fn, ok := helperRegistry[helperKey{kindIterable, name, argc}]; ok {
			return fn
		}
	}
	if kind == kindNull {
		return nil
	}
	return helperRegistry[helperKey{kindAny, name, argc}]
}

// ListHelpers 列出所有已注册的 Helper，形如 kind.name/argc
func ListHelpers() []string {
	names := make([]string, 0, len(helperRegistry))
	for k := range helperRegistry {
		names = append(names, k.kind+"."+k.name+"/"+strconv.Itoa(k.argc))
	}
	sort.Strings(names)
	return names
}

// ============================================================================
// 初始化：注册所有内置 Helper
// ============================================================================

func init() {
	// 算术运算
	for _, kind := range []string{kindNumber, kindString, kindList, kindMap} {
		registerHelper(kind, "plus", 1, helperPlus)
	}
	for _, kind := range []string{kindNumber, kindString, kindList} {
		registerHelper(kind, "minus", 1, helperMinus)
		registerHelper(kind, "multiply", 1, helperMultiply)
	}
	registerHelper(kindNumber, "div", 1, helperDiv)
	registerHelper(kindNumber, "mod", 1, helperMod)
	registerHelper(kindNumber, "power", 1, helperPower)
	registerHelper(kindNumber, "negative", 0, helperNegative)
	registerHelper(kindNumber, "positive", 0, helperPositive)
	registerHelper(kindNumber, "next", 0, step(1))
	registerHelper(kindNumber, "previous", 0, step(-1))
	for _, kind := range []string{kindNumber, kindBool} {
		registerHelper(kind, "and", 1, bitwise("and", func(x, y int64) int64 { return x & y }))
		registerHelper(kind, "or", 1, bitwise("or", func(x, y int64) int64 { return x | y }))
		registerHelper(kind, "xor", 1, bitwise("xor", func(x, y int64) int64 { return x ^ y }))
	}
	registerHelper(kindNumber, "leftShift", 1, helperLeftShift)
	registerHelper(kindList, "leftShift", 1, helperLeftShift)
	registerHelper(kindNumber, "rightShift", 1, bitwise("rightShift", func(x, y int64) int64 { return x >> uint(y&63) }))

	// 比较与通用方法
	registerHelper(kindAny, "compareTo", 1, helperCompareTo)
	registerHelper(kindAny, "equals", 1, func(vm *VM, recv any, args []any) (any, error) {
		return vm.equalValues(recv, args[0])
	})
	registerHelper(kindAny, "toString", 0, func(vm *VM, recv any, _ []any) (any, error) {
		return vm.stringOf(recv)
	})
	registerHelper(kindAny, "hashCode", 0, func(_ *VM, recv any, _ []any) (any, error) {
		return hashOf(recv), nil
	})
	registerHelper(kindAny, "getClass", 0, func(vm *VM, recv any, _ []any) (any, error) {
		return &ClassRef{Class: vm.class(runtimeTypeName(recv))}, nil
	})
	registerHelper(kindAny, "isCase", 1, func(vm *VM, recv any, args []any) (any, error) {
		return vm.equalValues(recv, args[0])
	})
	registerHelper(kindNull, "equals", 1, func(_ *VM, _ any, args []any) (any, error) { return args[0] == nil, nil })
	registerHelper(kindNull, "toString", 0, func(*VM, any, []any) (any, error) { return "null", nil })
	registerHelper(kindNull, "isCase", 1, func(_ *VM, _ any, args []any) (any, error) { return args[0] == nil, nil })
	registerHelper(kindNull, "iterator", 0, func(*VM, any, []any) (any, error) { return &Iterator{}, nil })

	// 数值
	registerHelper(kindNumber, "intValue", 0, func(_ *VM, recv any, _ []any) (any, error) { n, _ := toInt(recv); return int32(n), nil })
	registerHelper(kindNumber, "longValue", 0, func(_ *VM, recv any, _ []any) (any, error) { n, _ := toInt(recv); return n, nil })
	registerHelper(kindNumber, "doubleValue", 0, func(_ *VM, recv any, _ []any) (any, error) { f, _ := toFloat(recv); return f, nil })
	registerHelper(kindNumber, "toInteger", 0, func(_ *VM, recv any, _ []any) (any, error) { n, _ := toInt(recv); return int32(n), nil })
	registerHelper(kindNumber, "abs", 0, func(vm *VM, recv any, args []any) (any, error) {
		if n, _ := vm.compareValues(recv, int32(0)); n < 0 {
			return helperNegative(vm, recv, args)
		}
		return recv, nil
	})
	registerHelper(kindNumber, "times", 1, func(vm *VM, recv any, args []any) (any, error) {
		n, _ := toInt(recv)
		for i := int64(0); i < n; i++ {
			if _, err := vm.callClosure(args[0], intValue(i)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	registerHelper(kindNumber, "upto", 2, func(vm *VM, recv any, args []any) (any, error) {
		from, _ := toInt(recv)
		to, _ := toInt(args[0])
		for i := from; i <= to; i++ {
			if _, err := vm.callClosure(args[1], intValue(i)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	// 字符串
	registerHelper(kindString, "length", 0, stringHelper(func(s string) any { return int32(utf8.RuneCountInString(s)) }))
	registerHelper(kindString, "size", 0, stringHelper(func(s string) any { return int32(utf8.RuneCountInString(s)) }))
	registerHelper(kindString, "isEmpty", 0, stringHelper(func(s string) any { return s == "" }))
	registerHelper(kindString, "toUpperCase", 0, stringHelper(func(s string) any { return strings.ToUpper(s) }))
	registerHelper(kindString, "toLowerCase", 0, stringHelper(func(s string) any { return strings.ToLower(s) }))
	registerHelper(kindString, "trim", 0, stringHelper(func(s string) any { return strings.TrimSpace(s) }))
	registerHelper(kindString, "reverse", 0, stringHelper(func(s string) any {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	}))
	registerHelper(kindString, "toInteger", 0, func(vm *VM, recv any, _ []any) (any, error) {
		n, ok := parseInt(recv.(string))
		if !ok {
			return nil, vm.throwf("java/lang/NumberFormatException", "For input string: \"%s\"", recv)
		}
		return int32(n), nil
	})
	registerHelper(kindString, "contains", 1, stringPredicate(strings.Contains))
	registerHelper(kindString, "startsWith", 1, stringPredicate(strings.HasPrefix))
	registerHelper(kindString, "endsWith", 1, stringPredicate(strings.HasSuffix))
	registerHelper(kindString, "indexOf", 1, func(_ *VM, recv any, args []any) (any, error) {
		return int32(strings.Index(recv.(string), format(args[0]))), nil
	})
	registerHelper(kindString, "replace", 2, func(_ *VM, recv any, args []any) (any, error) {
		return strings.ReplaceAll(recv.(string), format(args[0]), format(args[1])), nil
	})
	registerHelper(kindString, "split", 0, func(_ *VM, recv any, _ []any) (any, error) {
		return stringList(strings.Fields(recv.(string))), nil
	})
	registerHelper(kindString, "split", 1, func(_ *VM, recv any, args []any) (any, error) {
		return stringList(strings.Split(recv.(string), format(args[0]))), nil
	})
	registerHelper(kindString, "substring", 1, func(vm *VM, recv any, args []any) (any, error) {
		r := []rune(recv.(string))
		return vm.substring(r, args[0], int32(len(r)))
	})
	registerHelper(kindString, "substring", 2, func(vm *VM, recv any, args []any) (any, error) {
		return vm.substring([]rune(recv.(string)), args[0], args[1])
	})
	registerHelper(kindString, "getAt", 1, helperGetAt)
	registerHelper(kindString, "charAt", 1, helperGetAt)
	registerHelper(kindString, "isCase", 1, func(_ *VM, recv any, args []any) (any, error) {
		return recv == format(args[0]) && args[0] != nil, nil
	})
	registerHelper(kindString, "iterator", 0, helperIterator)

	// 可迭代对象
	registerHelper(kindIterable, "iterator", 0, helperIterator)
	registerHelper(kindIterable, "size", 0, func(_ *VM, recv any, _ []any) (any, error) {
		items, _ := iterItems(recv)
		return int32(len(items)), nil
	})
	registerHelper(kindIterable, "isEmpty", 0, func(_ *VM, recv any, _ []any) (any, error) {
		items, _ := iterItems(recv)
		return len(items) == 0, nil
	})
	registerHelper(kindIterable, "getAt", 1, helperGetAt)
	registerHelper(kindIterable, "get", 1, helperGetAt)
	registerHelper(kindIterable, "putAt", 2, helperPutAt)
	registerHelper(kindIterable, "contains", 1, func(_ *VM, recv any, args []any) (any, error) {
		items, _ := iterItems(recv)
		return containsValue(items, args[0]), nil
	})
	registerHelper(kindIterable, "isCase", 1, func(_ *VM, recv any, args []any) (any, error) {
		if r, ok := recv.(*Range); ok {
			return r.Contains(args[0]), nil
		}
		items, _ := iterItems(recv)
		return containsValue(items, args[0]), nil
	})
	registerHelper(kindIterable, "each", 1, func(vm *VM, recv any, args []any) (any, error) {
		items, _ := iterItems(recv)
		for _, it := range items {
			if _, err := vm.callElement(args[0], it); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	registerHelper(kindIterable, "eachWithIndex", 1, func(vm *VM, recv any, args []any) (any, error) {
		items, _ := iterItems(recv)
		for i, it := range items {
			if _, err := vm.callClosure(args[0], it, int32(i)); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	registerHelper(kindIterable, "collect", 1, func(vm *VM, recv any, args []any) (any, error) {
		items, _ := iterItems(recv)
		out := &List{Elems: make([]any, 0, len(items))}
		for _, it := range items {
			v, err := vm.callElement(args[0], it)
			if err != nil {
				return nil, err
			}
			out.Elems = append(out.Elems, v)
		}
		return out, nil
	})
	registerHelper(kindIterable, "findAll", 1, filter(false))
	registerHelper(kindIterable, "find", 1, filter(true))
	registerHelper(kindIterable, "any", 1, quantifier(true))
	registerHelper(kindIterable, "every", 1, quantifier(false))
	registerHelper(kindIterable, "sum", 0, func(vm *VM, recv any, _ []any) (any, error) {
		items, _ := iterItems(recv)
		if len(items) == 0 {
			return nil, nil
		}
		acc := items[0]
		for _, it := range items[1:] {
			v, err := vm.invokeDynamic(acc, "plus", []any{it})
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	registerHelper(kindIterable, "join", 0, joinHelper)
	registerHelper(kindIterable, "join", 1, joinHelper)
	registerHelper(kindIterable, "toList", 0, func(_ *VM, recv any, _ []any) (any, error) {
		items, _ := iterItems(recv)
		return &List{Elems: append([]any(nil), items...)}, nil
	})
	registerHelper(kindIterable, "first", 0, func(vm *VM, recv any, _ []any) (any, error) { return vm.edge(recv, true) })
	registerHelper(kindIterable, "last", 0, func(vm *VM, recv any, _ []any) (any, error) { return vm.edge(recv, false) })

	// 列表
	registerHelper(kindList, "add", 1, func(_ *VM, recv any, args []any) (any, error) {
		l := recv.(*List)
		l.Elems = append(l.Elems, args[0])
		return true, nil
	})
	registerHelper(kindList, "remove", 1, func(vm *VM, recv any, args []any) (any, error) {
		l := recv.(*List)
		i, err := vm.listIndex(len(l.Elems), args[0])
		if err != nil {
			return nil, err
		}
		v := l.Elems[i]
		l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
		return v, nil
	})
	registerHelper(kindList, "indexOf", 1, func(_ *VM, recv any, args []any) (any, error) {
		for i, e := range recv.(*List).Elems {
			if equal(e, args[0]) {
				return int32(i), nil
			}
		}
		return int32(-1), nil
	})
	registerHelper(kindList, "reverse", 0, func(_ *VM, recv any, _ []any) (any, error) {
		src := recv.(*List).Elems
		out := &List{Elems: make([]any, len(src))}
		for i, e := range src {
			out.Elems[len(src)-1-i] = e
		}
		return out, nil
	})
	registerHelper(kindList, "sort", 0, func(vm *VM, recv any, _ []any) (any, error) {
		l := recv.(*List)
		var failure error
		sort.SliceStable(l.Elems, func(i, j int) bool {
			n, err := vm.compareValues(l.Elems[i], l.Elems[j])
			if err != nil && failure == nil {
				failure = err
			}
			return n < 0
		})
		return l, failure
	})

	// 映射
	registerHelper(kindMap, "get", 1, func(_ *VM, recv any, args []any) (any, error) { return recv.(*Map).Get(args[0]), nil })
	registerHelper(kindMap, "put", 2, func(_ *VM, recv any, args []any) (any, error) {
		m := recv.(*Map)
		old := m.Get(args[0])
		m.Put(args[0], args[1])
		return old, nil
	})
	registerHelper(kindMap, "containsKey", 1, func(_ *VM, recv any, args []any) (any, error) { return recv.(*Map).Has(args[0]), nil })
	registerHelper(kindMap, "keySet", 0, func(_ *VM, recv any, _ []any) (any, error) {
		m := recv.(*Map)
		return &List{Elems: append([]any(nil), m.keys...)}, nil
	})
	registerHelper(kindMap, "values", 0, func(_ *VM, recv any, _ []any) (any, error) {
		out := &List{}
		for _, e := range recv.(*Map).Entries() {
			out.Elems = append(out.Elems, e.Value)
		}
		return out, nil
	})
	registerHelper(kindMap, "entrySet", 0, func(_ *VM, recv any, _ []any) (any, error) {
		items, _ := iterItems(recv)
		return &List{Elems: items}, nil
	})

	// 映射项、迭代器、范围
	registerHelper(kindEntry, "getKey", 0, func(_ *VM, recv any, _ []any) (any, error) { return recv.(*Entry).Key, nil })
	registerHelper(kindEntry, "getValue", 0, func(_ *VM, recv any, _ []any) (any, error) { return recv.(*Entry).Value, nil })
	registerHelper(kindIterator, "hasNext", 0, func(_ *VM, recv any, _ []any) (any, error) {
		it := recv.(*Iterator)
		return it.pos < len(it.items), nil
	})
	registerHelper(kindIterator, "next", 0, func(vm *VM, recv any, _ []any) (any, error) {
		it := recv.(*Iterator)
		if it.pos >= len(it.items) {
			return nil, vm.throwf("java/util/NoSuchElementException", "iterator exhausted")
		}
		it.pos++
		return it.items[it.pos-1], nil
	})
	registerHelper(kindRange, "getFrom", 0, func(_ *VM, recv any, _ []any) (any, error) { return intValue(recv.(*Range).From), nil })
	registerHelper(kindRange, "getTo", 0, func(_ *VM, recv any, _ []any) (any, error) { return intValue(recv.(*Range).To), nil })

	// 类
	registerHelper(kindClass, "getName", 0, func(_ *VM, recv any, _ []any) (any, error) {
		return dotted(recv.(*ClassRef).Class.Name), nil
	})
	registerHelper(kindClass, "getSimpleName", 0, func(_ *VM, recv any, _ []any) (any, error) {
		name := recv.(*ClassRef).Class.Name
		if i := strings.LastIndexAny(name, "/$"); i >= 0 {
			name = name[i+1:]
		}
		return name, nil
	})
	registerHelper(kindClass, "isCase", 1, func(vm *VM, recv any, args []any) (any, error) {
		return vm.instanceOf(args[0], recv.(*ClassRef).Class.Name), nil
	})
	registerHelper(kindClass, "isInstance", 1, func(vm *VM, recv any, args []any) (any, error) {
		return vm.instanceOf(args[0], recv.(*ClassRef).Class.Name), nil
	})
}

func stringHelper(fn func(s string) any) helperFunc {
	return func(_ *VM, recv any, _ []any) (any, error) { return fn(recv.(string)), nil }
}

func stringPredicate(fn func(s, arg string) bool) helperFunc {
	return func(_ *VM, recv any, args []any) (any, error) { return fn(recv.(string), format(args[0])), nil }
}

func stringList(parts []string) *List {
	out := &List{Elems: make([]any, len(parts))}
	for i, p := range parts {
		out.Elems[i] = p
	}
	return out
}

func filter(first bool) helperFunc {
	return func(vm *VM, recv any, args []any) (any, error) {
		items, _ := iterItems(recv)
		out := &List{}
		for _, it := range items {
			v, err := vm.callElement(args[0], it)
			if err != nil {
				return nil, err
			}
			if !truth(v) {
				continue
			}
			if first {
				return it, nil
			}
			out.Elems = append(out.Elems, it)
		}
		if first {
			return nil, nil
		}
		return out, nil
	}
}

func quantifier(some bool) helperFunc {
	return func(vm *VM, recv any, args []any) (any, error) {
		items, _ := iterItems(recv)
		for _, it := range items {
			v, err := vm.callElement(args[0], it)
			if err != nil {
				return nil, err
			}
			if truth(v) == some {
				return some, nil
			}
		}
		return !some, nil
	}
}

func joinHelper(vm *VM, recv any, args []any) (any, error) {
	items, _ := iterItems(recv)
	sep := ""
	if len(args) > 0 {
		sep = format(args[0])
	}
	parts := make([]string, len(items))
	for i, it := range items {
		s, err := vm.stringOf(it)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}
