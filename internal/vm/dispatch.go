package vm

import (
	"fmt"

	"github.com/tangzhangming/classgen/internal/bytecode"
)

// ============================================================================
// 分派表
// ============================================================================

// OpHandler 操作码处理函数类型
type OpHandler func(vm *VM, f *Frame) error

// dispatchTable 分派表 (256 个操作码槽位)
var dispatchTable [256]OpHandler

func init() {
	for i := range dispatchTable {
		dispatchTable[i] = opInvalid
	}

	// 常量
	dispatchTable[bytecode.OpNop] = func(*VM, *Frame) error { return nil }
	dispatchTable[bytecode.OpAConstNull] = func(_ *VM, f *Frame) error { f.push(nil); return nil }
	dispatchTable[bytecode.OpIConst0] = func(_ *VM, f *Frame) error { f.push(int32(0)); return nil }
	dispatchTable[bytecode.OpIConst1] = func(_ *VM, f *Frame) error { f.push(int32(1)); return nil }
	dispatchTable[bytecode.OpLdc] = opLdc

	// 局部变量
	for _, op := range []bytecode.OpCode{bytecode.OpILoad, bytecode.OpLLoad, bytecode.OpFLoad, bytecode.OpDLoad, bytecode.OpALoad} {
		dispatchTable[op] = opLoad
	}
	for _, op := range []bytecode.OpCode{bytecode.OpIStore, bytecode.OpLStore, bytecode.OpFStore, bytecode.OpDStore, bytecode.OpAStore} {
		dispatchTable[op] = opStore
	}

	// 栈操作
	dispatchTable[bytecode.OpPop] = func(_ *VM, f *Frame) error { f.pop(); return nil }
	dispatchTable[bytecode.OpDup] = func(_ *VM, f *Frame) error { f.push(f.peek()); return nil }
	dispatchTable[bytecode.OpDupX1] = opDupX1
	dispatchTable[bytecode.OpDupX2] = opDupX2
	dispatchTable[bytecode.OpSwap] = opSwap

	// 类型转换
	dispatchTable[bytecode.OpBox] = opBox
	dispatchTable[bytecode.OpUnbox] = opUnbox
	dispatchTable[bytecode.OpCheckCast] = opCheckCast
	dispatchTable[bytecode.OpInstanceOf] = opInstanceOf
	dispatchTable[bytecode.OpTruth] = opTruth

	// 对象与集合
	dispatchTable[bytecode.OpNew] = opNew
	dispatchTable[bytecode.OpNewArray] = opNewArray
	dispatchTable[bytecode.OpArrayLength] = opArrayLength
	dispatchTable[bytecode.OpAALoad] = opAALoad
	dispatchTable[bytecode.OpAAStore] = opAAStore
	dispatchTable[bytecode.OpNewList] = opNewList
	dispatchTable[bytecode.OpNewMap] = opNewMap
	dispatchTable[bytecode.OpNewRange] = opNewRange

	// 字段与属性
	dispatchTable[bytecode.OpGetField] = opGetField
	dispatchTable[bytecode.OpPutField] = opPutField
	dispatchTable[bytecode.OpGetStatic] = opGetStatic
	dispatchTable[bytecode.OpPutStatic] = opPutStatic
	dispatchTable[bytecode.OpGetProperty] = opGetProperty
	dispatchTable[bytecode.OpSetProperty] = opSetProperty

	// 调用
	dispatchTable[bytecode.OpInvokeVirtual] = opInvokeVirtual
	dispatchTable[bytecode.OpInvokeInterface] = opInvokeVirtual
	dispatchTable[bytecode.OpInvokeSpecial] = opInvokeSpecial
	dispatchTable[bytecode.OpInvokeStatic] = opInvokeStatic
	dispatchTable[bytecode.OpInvokeMethod] = opInvokeMethod
	dispatchTable[bytecode.OpInvokeStaticMethod] = opInvokeStaticMethod

	// 跳转
	dispatchTable[bytecode.OpGoto] = opGoto
	dispatchTable[bytecode.OpIfEq] = opIfEq
	dispatchTable[bytecode.OpIfNe] = opIfNe
	dispatchTable[bytecode.OpIfNull] = opIfNull
	dispatchTable[bytecode.OpIfNonNull] = opIfNonNull

	// 返回与异常
	for _, op := range []bytecode.OpCode{bytecode.OpIReturn, bytecode.OpLReturn, bytecode.OpFReturn, bytecode.OpDReturn, bytecode.OpAReturn} {
		dispatchTable[op] = opValueReturn
	}
	dispatchTable[bytecode.OpReturn] = func(_ *VM, f *Frame) error { f.done = true; return nil }
	dispatchTable[bytecode.OpAThrow] = opAThrow

	// 同步：解释器单线程执行，只检查空引用
	dispatchTable[bytecode.OpMonitorEnter] = opMonitor
	dispatchTable[bytecode.OpMonitorExit] = opMonitor
}

func opInvalid(_ *VM, f *Frame) error {
	return fmt.Errorf("invalid opcode %d", f.code[f.pc-1])
}

// ============================================================================
// 常量与局部变量
// ============================================================================

// constant 常量池条目转换为运行时值
func (vm *VM) constant(pool *bytecode.ConstantPool, idx uint16) (any, error) {
	c, ok := pool.Get(idx)
	if !ok {
		return nil, fmt.Errorf("constant index %d out of range", idx)
	}
	return vm.constantValue(c)
}

func (vm *VM) constantValue(c bytecode.Constant) (any, error) {
	switch c.Tag {
	case bytecode.ConstInt:
		return int32(c.Int), nil
	case bytecode.ConstLong:
		return c.Int, nil
	case bytecode.ConstFloat:
		return float32(c.Float), nil
	case bytecode.ConstDouble:
		return c.Float, nil
	case bytecode.ConstString:
		return c.Str, nil
	case bytecode.ConstBool:
		return c.Int != 0, nil
	case bytecode.ConstClass:
		return &ClassRef{Class: vm.class(c.Str)}, nil
	}
	return nil, fmt.Errorf("constant tag %d cannot be loaded", c.Tag)
}

func opLdc(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	v, err := vm.constantValue(c)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func opLoad(_ *VM, f *Frame) error {
	f.push(f.locals[f.u16()])
	return nil
}

func opStore(_ *VM, f *Frame) error {
	slot := int(f.u16())
	if slot >= len(f.locals) {
		f.locals = append(f.locals, make([]any, slot-len(f.locals)+2)...)
	}
	f.locals[slot] = f.pop()
	return nil
}

// ============================================================================
// 栈操作
// ============================================================================

func opDupX1(_ *VM, f *Frame) error {
	b := f.pop()
	a := f.pop()
	f.push(b)
	f.push(a)
	f.push(b)
	return nil
}

func opDupX2(_ *VM, f *Frame) error {
	c := f.pop()
	b := f.pop()
	a := f.pop()
	f.push(c)
	f.push(a)
	f.push(b)
	f.push(c)
	return nil
}

func opSwap(_ *VM, f *Frame) error {
	b := f.pop()
	a := f.pop()
	f.push(b)
	f.push(a)
	return nil
}

// ============================================================================
// 类型转换
// ============================================================================

func opBox(_ *VM, f *Frame) error {
	f.push(box(f.pop(), f.u8()))
	return nil
}

func opUnbox(vm *VM, f *Frame) error {
	kind := f.u8()
	v := f.pop()
	p, ok := unbox(v, kind)
	if !ok {
		if v == nil {
			return vm.nullPointer("unbox value")
		}
		return vm.throwf("java/lang/ClassCastException", "cannot convert %s to primitive %c", runtimeTypeName(v), kind)
	}
	f.push(p)
	return nil
}

// instanceOf 值是否为 name 类型（内部名）的实例
func (vm *VM) instanceOf(v any, name string) bool {
	if v == nil {
		return false
	}
	if obj, ok := v.(*Object); ok {
		return obj.Class.IsSubclassOf(name)
	}
	if arr, ok := v.(*Array); ok && len(name) > 0 && name[0] == '[' {
		return name == runtimeTypeName(arr) || name == "[Ljava/lang/Object;"
	}
	return builtinDerived(runtimeTypeName(v), name)
}

func opCheckCast(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	v := f.peek()
	if v != nil && !vm.instanceOf(v, c.Str) {
		return vm.throwf("java/lang/ClassCastException", "Cannot cast object '%s' with class '%s' to class '%s'",
			format(v), dotted(runtimeTypeName(v)), dotted(c.Str))
	}
	return nil
}

func opInstanceOf(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	f.push(boolInt(vm.instanceOf(f.pop(), c.Str)))
	return nil
}

func opTruth(_ *VM, f *Frame) error {
	f.push(boolInt(truth(f.pop())))
	return nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// 对象与集合
// ============================================================================

func opNew(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	obj, err := vm.allocate(vm.class(c.Str))
	if err != nil {
		return err
	}
	f.push(obj)
	return nil
}

func opNewArray(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	n, _ := toInt(f.pop())
	if n < 0 {
		return vm.throwf("java/lang/IllegalArgumentException", "negative array size %d", n)
	}
	arr := &Array{Elem: c.Str, Elems: make([]any, n)}
	if zero := zeroValue(primitiveDescriptor(c.Str)); zero != nil {
		for i := range arr.Elems {
			arr.Elems[i] = zero
		}
	}
	f.push(arr)
	return nil
}

// primitiveDescriptor 原始类型名对应的描述符
func primitiveDescriptor(name string) string {
	switch name {
	case "int":
		return "I"
	case "long":
		return "J"
	case "short":
		return "S"
	case "byte":
		return "B"
	case "char":
		return "C"
	case "float":
		return "F"
	case "double":
		return "D"
	case "boolean":
		return "Z"
	}
	return ""
}

func (vm *VM) arrayOperand(v any) (*Array, error) {
	arr, ok := v.(*Array)
	if !ok {
		if v == nil {
			return nil, vm.nullPointer("access array")
		}
		return nil, vm.throwf("java/lang/ClassCastException", "%s is not an array", runtimeTypeName(v))
	}
	return arr, nil
}

func (vm *VM) arrayIndex(arr *Array, v any) (int, error) {
	i, _ := toInt(v)
	if i < 0 || i >= int64(len(arr.Elems)) {
		return 0, vm.throwf("java/lang/IndexOutOfBoundsException", "index %d out of bounds for length %d", i, len(arr.Elems))
	}
	return int(i), nil
}

func opArrayLength(vm *VM, f *Frame) error {
	arr, err := vm.arrayOperand(f.pop())
	if err != nil {
		return err
	}
	f.push(int32(len(arr.Elems)))
	return nil
}

func opAALoad(vm *VM, f *Frame) error {
	idx := f.pop()
	arr, err := vm.arrayOperand(f.pop())
	if err != nil {
		return err
	}
	i, err := vm.arrayIndex(arr, idx)
	if err != nil {
		return err
	}
	f.push(arr.Elems[i])
	return nil
}

func opAAStore(vm *VM, f *Frame) error {
	v := f.pop()
	idx := f.pop()
	arr, err := vm.arrayOperand(f.pop())
	if err != nil {
		return err
	}
	i, err := vm.arrayIndex(arr, idx)
	if err != nil {
		return err
	}
	arr.Elems[i] = v
	return nil
}

func opNewList(_ *VM, f *Frame) error {
	n := int(f.u16())
	f.push(&List{Elems: f.popN(n)})
	return nil
}

func opNewMap(_ *VM, f *Frame) error {
	n := int(f.u16())
	kv := f.popN(2 * n)
	m := NewMap()
	for i := 0; i < len(kv); i += 2 {
		m.Put(kv[i], kv[i+1])
	}
	f.push(m)
	return nil
}

func opNewRange(vm *VM, f *Frame) error {
	inclusive := f.u8() != 0
	to := f.pop()
	from := f.pop()
	a, ok1 := toInt(from)
	b, ok2 := toInt(to)
	if !ok1 || !ok2 {
		return vm.throwf("java/lang/IllegalArgumentException", "range bounds must be integers: %s..%s", format(from), format(to))
	}
	f.push(&Range{From: a, To: b, Inclusive: inclusive})
	return nil
}

// ============================================================================
// 字段与属性
// ============================================================================

func (vm *VM) objectOperand(v any, what string) (*Object, error) {
	obj, ok := v.(*Object)
	if !ok {
		if v == nil {
			return nil, vm.nullPointer(what)
		}
		return nil, vm.throwf("java/lang/ClassCastException", "cannot %s on %s", what, runtimeTypeName(v))
	}
	return obj, nil
}

func opGetField(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	obj, err := vm.objectOperand(f.pop(), "get property '"+c.Name+"'")
	if err != nil {
		return err
	}
	v, ok := obj.Fields[c.Name]
	if !ok {
		v = zeroValue(c.Desc)
	}
	f.push(v)
	return nil
}

func opPutField(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	v := f.pop()
	obj, err := vm.objectOperand(f.pop(), "set property '"+c.Name+"'")
	if err != nil {
		return err
	}
	obj.Fields[c.Name] = v
	return nil
}

// staticHolder 解析静态字段所在的类，必要时初始化
func (vm *VM) staticHolder(c bytecode.Constant) (*Class, error) {
	owner := vm.class(c.Str)
	if err := vm.initialize(owner); err != nil {
		return nil, err
	}
	holder := owner.findStaticHolder(c.Name)
	if holder == nil {
		holder = owner
	}
	return holder, nil
}

func opGetStatic(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	holder, err := vm.staticHolder(c)
	if err != nil {
		return err
	}
	v, ok := holder.statics[c.Name]
	if !ok {
		v = zeroValue(c.Desc)
	}
	f.push(v)
	return nil
}

func opPutStatic(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	holder, err := vm.staticHolder(c)
	if err != nil {
		return err
	}
	holder.statics[c.Name] = f.pop()
	return nil
}

func opGetProperty(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	v, err := vm.getProperty(f.pop(), c.Str)
	if err != nil {
		return err
	}
	f.push(v)
	return nil
}

func opSetProperty(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	recv := f.pop()
	return vm.setProperty(recv, c.Str, f.pop())
}

// ============================================================================
// 调用
// ============================================================================

func opInvokeVirtual(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	args := f.popN(bytecode.ArgCount(c.Desc))
	recv := f.pop()
	ret := bytecode.ReturnDescriptor(c.Desc)

	var m *Method
	switch r := recv.(type) {
	case nil:
		return vm.nullPointer("invoke method " + c.Name + "()")
	case *Object:
		m = r.Class.FindMethod(c.Name, c.Desc, false)
	}
	var res any
	if m != nil {
		res, err = vm.invokeResolved(m, recv, args, c.Desc)
	} else {
		res, err = vm.invokeDynamic(recv, c.Name, args)
		if err == nil && len(ret) == 1 {
			res, _ = coerce(res, ret)
		}
	}
	if err != nil {
		return err
	}
	if ret != "V" {
		f.push(res)
	}
	return nil
}

// invokeResolved 调用静态解析到的方法：描述符相同时直接传参，否则按形参转换
func (vm *VM) invokeResolved(m *Method, this any, args []any, desc string) (any, error) {
	if m.Desc == desc {
		return vm.call(m, this, args)
	}
	res, err := vm.callCoerced(m, this, args)
	if err != nil {
		return nil, err
	}
	if ret := bytecode.ReturnDescriptor(desc); len(ret) == 1 && ret != "V" {
		res, _ = coerce(res, ret)
	}
	return res, nil
}

func opInvokeSpecial(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	args := f.popN(bytecode.ArgCount(c.Desc))
	recv := f.pop()
	if recv == nil {
		return vm.nullPointer("invoke method " + c.Name + "()")
	}
	owner := vm.class(c.Str)
	m := owner.FindMethod(c.Name, c.Desc, false)
	if m == nil {
		return vm.throwf("groovy/lang/MissingMethodException", "No signature of method: %s.%s%s", dotted(owner.Name), c.Name, c.Desc)
	}
	res, err := vm.invokeResolved(m, recv, args, c.Desc)
	if err != nil {
		return err
	}
	if bytecode.ReturnDescriptor(c.Desc) != "V" {
		f.push(res)
	}
	return nil
}

func opInvokeStatic(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	args := f.popN(bytecode.ArgCount(c.Desc))
	owner := vm.class(c.Str)
	if err := vm.initialize(owner); err != nil {
		return err
	}
	m := owner.FindMethod(c.Name, c.Desc, true)
	if m == nil {
		return vm.throwf("groovy/lang/MissingMethodException", "No signature of static method: %s.%s%s", dotted(owner.Name), c.Name, c.Desc)
	}
	res, err := vm.invokeResolved(m, nil, args, c.Desc)
	if err != nil {
		return err
	}
	if bytecode.ReturnDescriptor(c.Desc) != "V" {
		f.push(res)
	}
	return nil
}

func opInvokeMethod(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	args := f.popN(c.Argc)
	recv := f.pop()
	res, err := vm.invokeDynamic(recv, c.Name, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

func opInvokeStaticMethod(vm *VM, f *Frame) error {
	c, err := f.constant()
	if err != nil {
		return err
	}
	args := f.popN(c.Argc)
	res, err := vm.invokeStaticDynamic(vm.class(c.Str), c.Name, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

// ============================================================================
// 跳转、返回与异常
// ============================================================================

func branch(f *Frame, taken bool) {
	f.recordBranch(f.pc-1, taken)
	off := int(f.i16())
	if taken {
		f.pc += off
	}
}

func opGoto(_ *VM, f *Frame) error {
	f.pc += int(f.i16())
	return nil
}

func opIfEq(_ *VM, f *Frame) error {
	n, _ := toInt(f.pop())
	branch(f, n == 0)
	return nil
}

func opIfNe(_ *VM, f *Frame) error {
	n, _ := toInt(f.pop())
	branch(f, n != 0)
	return nil
}

func opIfNull(_ *VM, f *Frame) error {
	branch(f, f.pop() == nil)
	return nil
}

func opIfNonNull(_ *VM, f *Frame) error {
	branch(f, f.pop() != nil)
	return nil
}

func opValueReturn(_ *VM, f *Frame) error {
	f.result = f.pop()
	f.done = true
	return nil
}

func opAThrow(vm *VM, f *Frame) error {
	v := f.pop()
	obj, ok := v.(*Object)
	if !ok || !obj.Class.IsSubclassOf(throwableClass) {
		if v == nil {
			return vm.nullPointer("throw exception")
		}
		return vm.throwf("java/lang/ClassCastException", "%s is not throwable", runtimeTypeName(v))
	}
	vm.stats.ExceptionsThrown++
	return &Thrown{Value: obj}
}

func opMonitor(vm *VM, f *Frame) error {
	if f.pop() == nil {
		return vm.nullPointer("synchronize")
	}
	return nil
}
