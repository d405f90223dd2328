package vm

import (
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// ============================================================================
// 动态方法分派
// ============================================================================

// invokeDynamic 按接收者运行时类型、方法名与参数个数分派：
// 先查类中声明的方法，再查内置 Helper，最后查全局函数
func (vm *VM) invokeDynamic(recv any, name string, args []any) (any, error) {
	switch r := recv.(type) {
	case *Object:
		if m := r.Class.FindByArgc(name, len(args), false); m != nil {
			return vm.callCoerced(m, r, args)
		}
		if cs, ok := r.native.(*closureState); ok {
			if this, ok := cs.thisObject.(*Object); ok {
				if m := this.Class.FindByArgc(name, len(args), false); m != nil {
					return vm.callCoerced(m, this, args)
				}
			}
		}
	case *ClassRef:
		if err := vm.initialize(r.Class); err != nil {
			return nil, err
		}
		if m := r.Class.FindByArgc(name, len(args), true); m != nil {
			return vm.callCoerced(m, nil, args)
		}
	}
	if fn := lookupHelper(recv, name, len(args)); fn != nil {
		return fn(vm, recv, args)
	}
	if recv == nil {
		if fn, ok := globalFunctions[globalKey(name, len(args))]; ok {
			return fn(vm, nil, args)
		}
		return nil, vm.nullPointer("invoke method " + name + "()")
	}
	if fn, ok := globalFunctions[globalKey(name, len(args))]; ok {
		return fn(vm, nil, args)
	}
	return nil, vm.missingMethod(recv, name, args)
}

// invokeStaticDynamic 静态上下文中的动态调用
func (vm *VM) invokeStaticDynamic(c *Class, name string, args []any) (any, error) {
	if err := vm.initialize(c); err != nil {
		return nil, err
	}
	if m := c.FindByArgc(name, len(args), true); m != nil {
		return vm.callCoerced(m, nil, args)
	}
	if fn, ok := globalFunctions[globalKey(name, len(args))]; ok {
		return fn(vm, nil, args)
	}
	return nil, vm.missingMethod(&ClassRef{Class: c}, name, args)
}

func globalKey(name string, argc int) string { return name + "/" + strconv.Itoa(argc) }

// missingMethod 创建 MissingMethodException
func (vm *VM) missingMethod(recv any, name string, args []any) error {
	types := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			types[i] = "null"
			continue
		}
		types[i] = dotted(runtimeTypeName(a))
	}
	owner := dotted(runtimeTypeName(recv))
	if ref, ok := recv.(*ClassRef); ok {
		owner = "static " + dotted(ref.Class.Name)
	}
	return vm.throwf("groovy/lang/MissingMethodException",
		"No signature of method: %s.%s() is applicable for argument types: (%s) values: [%s]",
		owner, name, strings.Join(types, ", "), joinFormatted(args, ", "))
}

// ============================================================================
// 闭包调用
// ============================================================================

// callClosure 调用闭包的 call 方法
func (vm *VM) callClosure(fn any, args ...any) (any, error) {
	return vm.invokeDynamic(fn, "call", args)
}

// closureArity 闭包 doCall 的最大参数个数，非闭包为 -1
func closureArity(fn any) int {
	obj, ok := fn.(*Object)
	if !ok || !obj.Class.IsSubclassOf(closureClass) {
		return -1
	}
	arity := -1
	for _, m := range obj.Class.methods {
		if m.Name == "doCall" && m.Argc() > arity {
			arity = m.Argc()
		}
	}
	return arity
}

// callElement 以集合元素调用闭包；两个参数的闭包接收映射项的键与值
func (vm *VM) callElement(fn, item any) (any, error) {
	if e, ok := item.(*Entry); ok && closureArity(fn) == 2 {
		return vm.callClosure(fn, e.Key, e.Value)
	}
	return vm.callClosure(fn, item)
}

// ============================================================================
// 集合辅助
// ============================================================================

// iterItems 可迭代值的全部元素
func iterItems(v any) ([]any, bool) {
	switch x := v.(type) {
	case *List:
		return x.Elems, true
	case *Range:
		return x.Values(), true
	case *Array:
		return x.Elems, true
	case *Map:
		entries := x.Entries()
		out := make([]any, len(entries))
		for i, e := range entries {
			out[i] = e
		}
		return out, true
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, true
	case *Iterator:
		return x.items[x.pos:], true
	}
	return nil, false
}

// isScalar 可迭代但作为单个元素参与集合运算的值
func isScalar(v any) bool {
	_, ok := v.(string)
	return ok
}

func containsValue(items []any, v any) bool {
	for _, it := range items {
		if equal(it, v) {
			return true
		}
	}
	return false
}

func helperIterator(_ *VM, recv any, _ []any) (any, error) {
	items, _ := iterItems(recv)
	return &Iterator{items: items}, nil
}

// listIndex 下标转换为切片位置；负数从末尾计数
func (vm *VM) listIndex(n int, idx any) (int, error) {
	i, ok := toInt(idx)
	if !ok {
		return 0, vm.throwf("java/lang/IllegalArgumentException", "index must be an integer: %s", format(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, vm.throwf("java/lang/IndexOutOfBoundsException", "Index: %s, Size: %d", format(idx), n)
	}
	return int(i), nil
}

// slice 按范围截取元素
func (vm *VM) slice(items []any, r *Range) ([]any, error) {
	vals := r.Values()
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		i, err := vm.listIndex(len(items), v)
		if err != nil {
			return nil, err
		}
		out = append(out, items[i])
	}
	return out, nil
}

func helperGetAt(vm *VM, recv any, args []any) (any, error) {
	idx := args[0]
	switch x := recv.(type) {
	case *Map:
		return x.Get(idx), nil
	case *Array:
		i, err := vm.arrayIndex(x, idx)
		if err != nil {
			return nil, err
		}
		return x.Elems[i], nil
	case string:
		chars, _ := iterItems(x)
		if r, ok := idx.(*Range); ok {
			part, err := vm.slice(chars, r)
			if err != nil {
				return nil, err
			}
			return joinFormatted(part, ""), nil
		}
		i, err := vm.listIndex(len(chars), idx)
		if err != nil {
			return nil, err
		}
		return chars[i], nil
	}
	items, _ := iterItems(recv)
	if r, ok := idx.(*Range); ok {
		part, err := vm.slice(items, r)
		if err != nil {
			return nil, err
		}
		return &List{Elems: part}, nil
	}
	if n, ok := toInt(idx); ok && n >= int64(len(items)) {
		return nil, nil
	}
	i, err := vm.listIndex(len(items), idx)
	if err != nil {
		return nil, err
	}
	return items[i], nil
}

func helperPutAt(vm *VM, recv any, args []any) (any, error) {
	idx, v := args[0], args[1]
	switch x := recv.(type) {
	case *Map:
		x.Put(idx, v)
		return nil, nil
	case *Array:
		i, err := vm.arrayIndex(x, idx)
		if err != nil {
			return nil, err
		}
		x.Elems[i] = v
		return nil, nil
	case *List:
		if n, ok := toInt(idx); ok && n >= int64(len(x.Elems)) {
			x.Elems = append(x.Elems, make([]any, n-int64(len(x.Elems))+1)...)
		}
		i, err := vm.listIndex(len(x.Elems), idx)
		if err != nil {
			return nil, err
		}
		x.Elems[i] = v
		return nil, nil
	}
	return nil, vm.throwf("java/lang/UnsupportedOperationException", "%s is immutable", dotted(runtimeTypeName(recv)))
}

// edge 第一个或最后一个元素
func (vm *VM) edge(recv any, first bool) (any, error) {
	items, _ := iterItems(recv)
	if len(items) == 0 {
		which := "last"
		if first {
			which = "first"
		}
		return nil, vm.throwf("java/util/NoSuchElementException", "Cannot access %s() element from an empty List", which)
	}
	if first {
		return items[0], nil
	}
	return items[len(items)-1], nil
}

func (vm *VM) substring(r []rune, from, to any) (any, error) {
	a, _ := toInt(from)
	b, _ := toInt(to)
	if a < 0 || b > int64(len(r)) || a > b {
		return nil, vm.throwf("java/lang/IndexOutOfBoundsException", "begin %d, end %d, length %d", a, b, len(r))
	}
	return string(r[a:b]), nil
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	return n, err == nil
}

// hashOf 值的哈希码；字符串与 Java 的算法一致
func hashOf(v any) int32 {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		var h int32
		for _, r := range x {
			h = 31*h + int32(r)
		}
		return h
	case bool:
		if x {
			return 1231
		}
		return 1237
	case int32:
		return x
	case int64:
		return int32(x ^ x>>32)
	case *Object:
		return int32(x.id)
	}
	h := fnv.New32a()
	h.Write([]byte(format(v)))
	return int32(h.Sum32())
}

// ============================================================================
// 属性
// ============================================================================

func capitalize(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// getProperty 读取属性：getter 方法、字段、静态字段，映射按键读取
func (vm *VM) getProperty(recv any, name string) (any, error) {
	switch r := recv.(type) {
	case nil:
		return nil, vm.nullPointer("get property '" + name + "'")
	case *Object:
		return vm.objectProperty(r, name)
	case *Map:
		return r.Get(name), nil
	case *ClassRef:
		if err := vm.initialize(r.Class); err != nil {
			return nil, err
		}
		if holder := r.Class.findStaticHolder(name); holder != nil {
			return boxValue(holder.statics[name], holder.staticDescriptor(name)), nil
		}
		if m := r.Class.FindByArgc("get"+capitalize(name), 0, true); m != nil {
			return vm.callCoerced(m, nil, nil)
		}
	}
	if name == "class" {
		return &ClassRef{Class: vm.class(runtimeTypeName(recv))}, nil
	}
	for _, getter := range []string{"get" + capitalize(name), "is" + capitalize(name)} {
		if fn := lookupHelper(recv, getter, 0); fn != nil {
			return fn(vm, recv, nil)
		}
	}
	return nil, vm.missingProperty(recv, name)
}

func (vm *VM) objectProperty(obj *Object, name string) (any, error) {
	for _, getter := range []string{"get" + capitalize(name), "is" + capitalize(name)} {
		if m := obj.Class.FindByArgc(getter, 0, false); m != nil && m.Native == nil {
			return vm.callCoerced(m, obj, nil)
		}
	}
	if f := obj.Class.field(name); f != nil {
		return boxValue(obj.Fields[name], f.Descriptor), nil
	}
	if holder := obj.Class.findStaticHolder(name); holder != nil {
		return boxValue(holder.statics[name], holder.staticDescriptor(name)), nil
	}
	if name == "class" {
		return &ClassRef{Class: obj.Class}, nil
	}
	if m := obj.Class.FindByArgc("get"+capitalize(name), 0, false); m != nil {
		return vm.call(m, obj, nil)
	}
	if cs, ok := obj.native.(*closureState); ok && cs.thisObject != nil {
		return vm.getProperty(cs.thisObject, name)
	}
	return nil, vm.missingProperty(obj, name)
}

// setProperty 写入属性：setter 方法、字段、静态字段，映射按键写入
func (vm *VM) setProperty(recv any, name string, value any) error {
	switch r := recv.(type) {
	case nil:
		return vm.nullPointer("set property '" + name + "'")
	case *Object:
		if m := r.Class.FindByArgc("set"+capitalize(name), 1, false); m != nil && m.Native == nil {
			_, err := vm.callCoerced(m, r, []any{value})
			return err
		}
		if f := r.Class.field(name); f != nil {
			v, err := vm.coerceTo(value, f.Descriptor)
			if err != nil {
				return err
			}
			r.Fields[name] = v
			return nil
		}
		if holder := r.Class.findStaticHolder(name); holder != nil {
			return vm.setStatic(holder, name, value)
		}
		if cs, ok := r.native.(*closureState); ok && cs.thisObject != nil {
			return vm.setProperty(cs.thisObject, name, value)
		}
	case *Map:
		r.Put(name, value)
		return nil
	case *ClassRef:
		if err := vm.initialize(r.Class); err != nil {
			return err
		}
		if holder := r.Class.findStaticHolder(name); holder != nil {
			return vm.setStatic(holder, name, value)
		}
	}
	return vm.missingProperty(recv, name)
}

func (vm *VM) setStatic(holder *Class, name string, value any) error {
	v, err := vm.coerceTo(value, holder.staticDescriptor(name))
	if err != nil {
		return err
	}
	holder.statics[name] = v
	return nil
}

// coerceTo 把对象转换为字段描述符要求的值
func (vm *VM) coerceTo(v any, desc string) (any, error) {
	out, ok := coerce(v, desc)
	if ok {
		return out, nil
	}
	if v == nil {
		return nil, vm.nullPointer("assign null to primitive " + desc)
	}
	return nil, vm.throwf("java/lang/ClassCastException", "cannot convert %s to %s", format(v), desc)
}

func (vm *VM) missingProperty(recv any, name string) error {
	return vm.throwf("groovy/lang/MissingPropertyException", "No such property: %s for class: %s", name, dotted(runtimeTypeName(recv)))
}

// ============================================================================
// 字符串形式
// ============================================================================

// stringOf 值的字符串形式；对象使用自定义的 toString
func (vm *VM) stringOf(v any) (string, error) {
	switch x := v.(type) {
	case *Object:
		if m := x.Class.FindByArgc("toString", 0, false); m != nil && m.Native == nil {
			res, err := vm.call(m, x, nil)
			if err != nil {
				return "", err
			}
			if s, ok := res.(string); ok {
				return s, nil
			}
			return format(res), nil
		}
	case *List:
		return vm.joinStrings("[", x.Elems, "]")
	case *Array:
		return vm.joinStrings("[", x.Elems, "]")
	case *Map:
		if x.Len() == 0 {
			return "[:]", nil
		}
		parts := make([]string, 0, x.Len())
		for _, e := range x.Entries() {
			k, err := vm.stringOf(e.Key)
			if err != nil {
				return "", err
			}
			val, err := vm.stringOf(e.Value)
			if err != nil {
				return "", err
			}
			parts = append(parts, k+":"+val)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}
	return format(v), nil
}

func (vm *VM) joinStrings(open string, items []any, closing string) (string, error) {
	parts := make([]string, len(items))
	for i, it := range items {
		s, err := vm.stringOf(it)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return open + strings.Join(parts, ", ") + closing, nil
}
