package vm

import (
	"fmt"

	"github.com/tangzhangming/classgen/internal/bytecode"
)

// ============================================================================
// 调用帧
// ============================================================================

// Frame 一次方法调用的执行状态
type Frame struct {
	method *Method
	code   []byte
	pool   *bytecode.ConstantPool
	pc     int

	locals []any
	stack  []any

	done   bool
	result any

	profile *MethodProfile
}

func newFrame(m *Method, this any, args []any) *Frame {
	info := m.Info
	f := &Frame{
		method: m,
		code:   info.Code,
		pool:   m.Class.File.Pool,
		locals: make([]any, int(info.MaxLocals)+1),
		stack:  make([]any, 0, int(info.MaxStack)+1),
	}
	slot := 0
	if !m.Static {
		f.locals[0] = this
		slot = 1
	}
	for i, p := range m.Params {
		if slot >= len(f.locals) {
			f.locals = append(f.locals, make([]any, slot-len(f.locals)+2)...)
		}
		f.locals[slot] = args[i]
		slot += bytecode.SlotSize(p)
	}
	return f
}

func (f *Frame) push(v any) { f.stack = append(f.stack, v) }

func (f *Frame) pop() any {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

// popN 弹出 n 个值，按压栈顺序返回
func (f *Frame) popN(n int) []any {
	out := make([]any, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (f *Frame) peek() any { return f.stack[len(f.stack)-1] }

func (f *Frame) u8() uint8 {
	v := f.code[f.pc]
	f.pc++
	return v
}

func (f *Frame) u16() uint16 {
	v := uint16(f.code[f.pc])<<8 | uint16(f.code[f.pc+1])
	f.pc += 2
	return v
}

func (f *Frame) i16() int16 { return int16(f.u16()) }

// constant 读取指令的常量池操作数
func (f *Frame) constant() (bytecode.Constant, error) {
	idx := f.u16()
	c, ok := f.pool.Get(idx)
	if !ok {
		return c, fmt.Errorf("%s.%s: constant index %d out of range", f.method.Class.Name, f.method.Name, idx)
	}
	return c, nil
}

// handlerFor 查找覆盖 pc 且能处理异常的处理器
func (f *Frame) handlerFor(vm *VM, t *Thrown, pc int) (int, bool) {
	for _, h := range f.method.Info.Handlers {
		if pc < int(h.Start) || pc >= int(h.End) {
			continue
		}
		if h.CatchType == "" || t.Value.Class.IsSubclassOf(h.CatchType) {
			return int(h.Handler), true
		}
	}
	return 0, false
}

// line 指令位置对应的源码行，没有行号表时为 0
func (f *Frame) line(pc int) int {
	line := 0
	for _, e := range f.method.Info.Lines {
		if int(e.PC) > pc {
			break
		}
		line = int(e.Line)
	}
	return line
}

// ============================================================================
// 方法调用与执行循环
// ============================================================================

// call 调用方法；参数已按形参描述符转换
func (vm *VM) call(m *Method, this any, args []any) (any, error) {
	vm.stats.MethodCalls++
	if m.Native != nil {
		return m.Native(vm, this, args)
	}
	if m.Info.IsAbstract() {
		return nil, vm.throwf("java/lang/AbstractMethodError", "%s.%s%s", dotted(m.Class.Name), m.Name, m.Desc)
	}
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%s.%s%s called with %d arguments", m.Class.Name, m.Name, m.Desc, len(args))
	}
	if vm.depth >= vm.maxDepth {
		return nil, vm.throwf("java/lang/StackOverflowError", "call depth exceeds %d", vm.maxDepth)
	}
	vm.depth++
	defer func() { vm.depth-- }()
	f := newFrame(m, this, args)
	vm.recordCall(f)
	return vm.execute(f)
}

// callCoerced 把参数转换为形参类型后调用，返回值按返回描述符装箱
func (vm *VM) callCoerced(m *Method, this any, args []any) (any, error) {
	conv := make([]any, len(args))
	for i, a := range args {
		desc := "Ljava/lang/Object;"
		if i < len(m.Params) {
			desc = m.Params[i]
		}
		v, ok := coerce(a, desc)
		if !ok {
			if a == nil {
				return nil, vm.nullPointer("unbox argument of " + m.Name)
			}
			return nil, vm.throwf("java/lang/ClassCastException", "cannot convert %s to %s", format(a), desc)
		}
		conv[i] = v
	}
	res, err := vm.call(m, this, conv)
	if err != nil {
		return nil, err
	}
	return boxValue(res, m.Ret), nil
}

func (vm *VM) execute(f *Frame) (any, error) {
	for !f.done {
		if f.pc >= len(f.code) {
			return nil, fmt.Errorf("%s.%s%s: fell off the end of the code", f.method.Class.Name, f.method.Name, f.method.Desc)
		}
		start := f.pc
		op := bytecode.OpCode(f.u8())
		vm.stats.InstructionsExecuted++
		if f.profile != nil {
			f.profile.Instructions.Inc()
		}
		if err := dispatchTable[op](vm, f); err != nil {
			t, ok := err.(*Thrown)
			if !ok {
				return nil, fmt.Errorf("%s.%s%s at pc %d (line %d): %w",
					f.method.Class.Name, f.method.Name, f.method.Desc, start, f.line(start), err)
			}
			handler, found := f.handlerFor(vm, t, start)
			if !found {
				return nil, t
			}
			f.stack = append(f.stack[:0], t.Value)
			f.pc = handler
		}
	}
	return f.result, nil
}
