package vm

import (
	"cmp"
	"math"
	"strings"
)

// ============================================================================
// 算术运算 Helper
// ============================================================================

// promote 两个数值按提升规则转换到同一等级：int、long 或 double
func promote(a, b any) int {
	r := max(numRank(a), numRank(b))
	if r == 2 {
		return 3
	}
	return r
}

// arith 整数与浮点的二元运算；ok 为 false 表示操作数不是数值
func arith(a, b any, ints func(x, y int64) int64, floats func(x, y float64) float64) (any, bool) {
	if !isNumber(a) || !isNumber(b) {
		return nil, false
	}
	switch promote(a, b) {
	case 0:
		x, _ := toInt(a)
		y, _ := toInt(b)
		return int32(ints(x, y)), true
	case 1:
		x, _ := toInt(a)
		y, _ := toInt(b)
		return ints(x, y), true
	}
	x, _ := toFloat(a)
	y, _ := toFloat(b)
	return floats(x, y), true
}

func helperPlus(vm *VM, recv any, args []any) (any, error) {
	arg := args[0]
	switch r := recv.(type) {
	case string:
		s, err := vm.stringOf(arg)
		if err != nil {
			return nil, err
		}
		return r + s, nil
	case *List:
		out := &List{Elems: append([]any(nil), r.Elems...)}
		if items, ok := iterItems(arg); ok && !isScalar(arg) {
			out.Elems = append(out.Elems, items...)
		} else {
			out.Elems = append(out.Elems, arg)
		}
		return out, nil
	case *Map:
		other, ok := arg.(*Map)
		if !ok {
			break
		}
		out := NewMap()
		for _, e := range r.Entries() {
			out.Put(e.Key, e.Value)
		}
		for _, e := range other.Entries() {
			out.Put(e.Key, e.Value)
		}
		return out, nil
	}
	if s, ok := arg.(string); ok && isNumber(recv) {
		return format(recv) + s, nil
	}
	if v, ok := arith(recv, arg, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }); ok {
		return v, nil
	}
	return nil, vm.missingMethod(recv, "plus", args)
}

func helperMinus(vm *VM, recv any, args []any) (any, error) {
	arg := args[0]
	switch r := recv.(type) {
	case string:
		s, err := vm.stringOf(arg)
		if err != nil {
			return nil, err
		}
		return strings.Replace(r, s, "", 1), nil
	case *List:
		remove, ok := iterItems(arg)
		if !ok || isScalar(arg) {
			remove = []any{arg}
		}
		out := &List{}
		for _, e := range r.Elems {
			if !containsValue(remove, e) {
				out.Elems = append(out.Elems, e)
			}
		}
		return out, nil
	}
	if v, ok := arith(recv, arg, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }); ok {
		return v, nil
	}
	return nil, vm.missingMethod(recv, "minus", args)
}

func helperMultiply(vm *VM, recv any, args []any) (any, error) {
	arg := args[0]
	switch r := recv.(type) {
	case string:
		if n, ok := toInt(arg); ok && isNumber(arg) && n >= 0 {
			return strings.Repeat(r, int(n)), nil
		}
	case *List:
		if n, ok := toInt(arg); ok && isNumber(arg) && n >= 0 {
			out := &List{}
			for i := int64(0); i < n; i++ {
				out.Elems = append(out.Elems, r.Elems...)
			}
			return out, nil
		}
	}
	if v, ok := arith(recv, arg, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }); ok {
		return v, nil
	}
	return nil, vm.missingMethod(recv, "multiply", args)
}

// helperDiv 整数相除能整除时结果为整数，否则为 double
func helperDiv(vm *VM, recv any, args []any) (any, error) {
	arg := args[0]
	if !isNumber(recv) || !isNumber(arg) {
		return nil, vm.missingMethod(recv, "div", args)
	}
	if promote(recv, arg) <= 1 {
		x, _ := toInt(recv)
		y, _ := toInt(arg)
		if y == 0 {
			return nil, vm.throwf("java/lang/ArithmeticException", "Division by zero")
		}
		if x%y == 0 {
			if promote(recv, arg) == 0 {
				return int32(x / y), nil
			}
			return x / y, nil
		}
	}
	x, _ := toFloat(recv)
	y, _ := toFloat(arg)
	return x / y, nil
}

func helperMod(vm *VM, recv any, args []any) (any, error) {
	arg := args[0]
	if !isNumber(recv) || !isNumber(arg) {
		return nil, vm.missingMethod(recv, "mod", args)
	}
	if promote(recv, arg) <= 1 {
		if y, _ := toInt(arg); y == 0 {
			return nil, vm.throwf("java/lang/ArithmeticException", "Division by zero")
		}
	}
	v, _ := arith(recv, arg, func(x, y int64) int64 { return x % y }, math.Mod)
	return v, nil
}

func helperPower(vm *VM, recv any, args []any) (any, error) {
	arg := args[0]
	if !isNumber(recv) || !isNumber(arg) {
		return nil, vm.missingMethod(recv, "power", args)
	}
	x, _ := toFloat(recv)
	y, _ := toFloat(arg)
	p := math.Pow(x, y)
	if promote(recv, arg) <= 1 && y >= 0 && p == math.Trunc(p) && math.Abs(p) < math.MaxInt64 {
		if promote(recv, arg) == 0 {
			return intValue(int64(p)), nil
		}
		return int64(p), nil
	}
	return p, nil
}

// bitwise 位运算；两个 Boolean 之间按逻辑运算处理
func bitwise(name string, op func(x, y int64) int64) helperFunc {
	return func(vm *VM, recv any, args []any) (any, error) {
		arg := args[0]
		if a, ok := recv.(bool); ok {
			if b, ok := arg.(bool); ok {
				return op(boolToInt(a), boolToInt(b)) != 0, nil
			}
		}
		if numRank(recv) >= 0 && numRank(recv) <= 1 && numRank(arg) >= 0 && numRank(arg) <= 1 {
			v, _ := arith(recv, arg, op, nil)
			return v, nil
		}
		return nil, vm.missingMethod(recv, name, args)
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func helperLeftShift(vm *VM, recv any, args []any) (any, error) {
	if l, ok := recv.(*List); ok {
		l.Elems = append(l.Elems, args[0])
		return l, nil
	}
	return bitwise("leftShift", func(x, y int64) int64 { return x << uint(y&63) })(vm, recv, args)
}

func helperNegative(vm *VM, recv any, args []any) (any, error) {
	switch n := recv.(type) {
	case int32:
		return -n, nil
	case int64:
		return -n, nil
	case float32:
		return -n, nil
	case float64:
		return -n, nil
	}
	return nil, vm.missingMethod(recv, "negative", args)
}

func helperPositive(vm *VM, recv any, args []any) (any, error) {
	if isNumber(recv) {
		return recv, nil
	}
	return nil, vm.missingMethod(recv, "positive", args)
}

// step 数值加减一，用于 ++ 与 --
func step(delta int64) helperFunc {
	return func(vm *VM, recv any, args []any) (any, error) {
		v, ok := arith(recv, int32(delta), func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
		if !ok {
			return nil, vm.missingMethod(recv, "next", args)
		}
		return v, nil
	}
}

// ============================================================================
// 比较 Helper
// ============================================================================

// compareValues 比较两个值：null 小于任何值，数值跨类型比较，
// 对象使用其 compareTo 方法
func (vm *VM) compareValues(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	if isNumber(a) && isNumber(b) {
		if promote(a, b) <= 1 {
			x, _ := toInt(a)
			y, _ := toInt(b)
			return cmp.Compare(x, y), nil
		}
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return cmp.Compare(x, y), nil
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return int(boolToInt(x) - boolToInt(y)), nil
		}
	case *Object:
		if m := x.Class.FindByArgc("compareTo", 1, false); m != nil && m.Native == nil {
			res, err := vm.callCoerced(m, x, []any{b})
			if err != nil {
				return 0, err
			}
			n, _ := toInt(res)
			return int(n), nil
		}
	}
	return 0, vm.throwf("java/lang/ClassCastException", "Cannot compare %s with value '%s' and %s with value '%s'",
		dotted(runtimeTypeName(a)), format(a), dotted(runtimeTypeName(b)), format(b))
}

// equalValues 相等比较；对象优先使用自定义的 equals
func (vm *VM) equalValues(a, b any) (bool, error) {
	if obj, ok := a.(*Object); ok && b != nil {
		if m := obj.Class.FindByArgc("equals", 1, false); m != nil && m.Native == nil {
			res, err := vm.callCoerced(m, obj, []any{b})
			if err != nil {
				return false, err
			}
			return truth(res), nil
		}
	}
	return equal(a, b), nil
}

func helperCompareTo(vm *VM, recv any, args []any) (any, error) {
	n, err := vm.compareValues(recv, args[0])
	if err != nil {
		return nil, err
	}
	return int32(n), nil
}

// comparison ScriptBytecodeAdapter 的比较方法
func comparison(test func(n int) bool) NativeFunc {
	return func(vm *VM, _ any, args []any) (any, error) {
		n, err := vm.compareValues(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return test(n), nil
	}
}
