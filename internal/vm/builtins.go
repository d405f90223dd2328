package vm

import (
	"fmt"
)

// ============================================================================
// 内置类
// ============================================================================

// globalFunctions 任何接收者上都可调用的全局函数，键为 name/argc
var globalFunctions = map[string]NativeFunc{
	"println/0": func(vm *VM, _ any, _ []any) (any, error) {
		_, err := fmt.Fprintln(vm.out)
		return nil, err
	},
	"println/1": func(vm *VM, _ any, args []any) (any, error) {
		s, err := vm.stringOf(args[0])
		if err != nil {
			return nil, err
		}
		_, err = fmt.Fprintln(vm.out, s)
		return nil, err
	},
	"print/1": func(vm *VM, _ any, args []any) (any, error) {
		s, err := vm.stringOf(args[0])
		if err != nil {
			return nil, err
		}
		_, err = fmt.Fprint(vm.out, s)
		return nil, err
	},
}

// registerBuiltins 注册内置类的本地方法
func registerBuiltins(vm *VM) {
	object := vm.class(objectClass)
	object.addNative("<init>", 0, false, func(*VM, any, []any) (any, error) { return nil, nil })
	object.addNative("toString", 0, false, func(_ *VM, this any, _ []any) (any, error) { return format(this), nil })
	object.addNative("hashCode", 0, false, func(_ *VM, this any, _ []any) (any, error) { return hashOf(this), nil })
	object.addNative("equals", 1, false, func(_ *VM, this any, args []any) (any, error) { return this == args[0], nil })
	object.addNative("getClass", 0, false, func(_ *VM, this any, _ []any) (any, error) {
		return &ClassRef{Class: this.(*Object).Class}, nil
	})

	ref := vm.class(referenceClass)
	ref.addNative("<init>", 0, false, func(*VM, any, []any) (any, error) { return nil, nil })
	ref.addNative("<init>", 1, false, func(_ *VM, this any, args []any) (any, error) {
		cellOf(this).value = args[0]
		return nil, nil
	})
	ref.addNative("get", 0, false, func(_ *VM, this any, _ []any) (any, error) { return cellOf(this).value, nil })
	ref.addNative("set", 1, false, func(_ *VM, this any, args []any) (any, error) {
		cellOf(this).value = args[0]
		return nil, nil
	})

	closure := vm.class(closureClass)
	closure.addNative("<init>", 2, false, func(_ *VM, this any, args []any) (any, error) {
		cs := closureOf(this)
		cs.owner, cs.thisObject = args[0], args[1]
		return nil, nil
	})
	closure.addNative("getOwner", 0, false, func(_ *VM, this any, _ []any) (any, error) { return closureOf(this).owner, nil })
	closure.addNative("getThisObject", 0, false, func(_ *VM, this any, _ []any) (any, error) { return closureOf(this).thisObject, nil })
	for argc := 0; argc <= 4; argc++ {
		closure.addNative("call", argc, false, closureCall)
	}

	throwable := vm.class(throwableClass)
	throwable.addNative("<init>", 0, false, func(*VM, any, []any) (any, error) { return nil, nil })
	throwable.addNative("<init>", 1, false, func(_ *VM, this any, args []any) (any, error) {
		if ts, ok := this.(*Object).native.(*throwableState); ok {
			ts.message = args[0]
		}
		return nil, nil
	})
	throwable.addNative("getMessage", 0, false, func(_ *VM, this any, _ []any) (any, error) {
		if ts, ok := this.(*Object).native.(*throwableState); ok {
			return ts.message, nil
		}
		return nil, nil
	})
	throwable.addNative("toString", 0, false, func(_ *VM, this any, _ []any) (any, error) { return format(this), nil })

	adapter := vm.class(adapterClass)
	adapter.addNative("compareEqual", 2, true, func(vm *VM, _ any, args []any) (any, error) {
		return vm.equalValues(args[0], args[1])
	})
	adapter.addNative("compareNotEqual", 2, true, func(vm *VM, _ any, args []any) (any, error) {
		eq, err := vm.equalValues(args[0], args[1])
		return !eq, err
	})
	adapter.addNative("compareLessThan", 2, true, comparison(func(n int) bool { return n < 0 }))
	adapter.addNative("compareLessThanEqual", 2, true, comparison(func(n int) bool { return n <= 0 }))
	adapter.addNative("compareGreaterThan", 2, true, comparison(func(n int) bool { return n > 0 }))
	adapter.addNative("compareGreaterThanEqual", 2, true, comparison(func(n int) bool { return n >= 0 }))
}

func cellOf(this any) *cell {
	obj := this.(*Object)
	c, ok := obj.native.(*cell)
	if !ok {
		c = &cell{}
		obj.native = c
	}
	return c
}

func closureOf(this any) *closureState {
	obj := this.(*Object)
	cs, ok := obj.native.(*closureState)
	if !ok {
		cs = &closureState{}
		obj.native = cs
	}
	return cs
}

// closureCall 闭包子类没有对应参数个数的 call 时，按参数个数分派到 doCall
func closureCall(vm *VM, this any, args []any) (any, error) {
	obj := this.(*Object)
	if m := obj.Class.FindByArgc("doCall", len(args), false); m != nil {
		return vm.callCoerced(m, obj, args)
	}
	return nil, vm.missingMethod(obj, "call", args)
}
