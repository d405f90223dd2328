package bytecode

import (
	"fmt"
	"math"
)

// ============================================================================
// 标签
// ============================================================================

// Label 指令流中的跳转目标，可在绑定前被引用（前向跳转）
type Label struct {
	id  int
	pos int // -1 表示尚未绑定
}

// Bound 是否已绑定
func (l *Label) Bound() bool { return l.pos >= 0 }

// Offset 绑定的指令位置，未绑定时为 -1
func (l *Label) Offset() int { return l.pos }

func (l *Label) String() string { return fmt.Sprintf("L%d", l.id) }

// ============================================================================
// 汇编器
// ============================================================================

type branchFixup struct {
	pc    int // 跳转指令位置
	label *Label
}

type pendingHandler struct {
	start, end, handler *Label
	catchType           string
}

type pendingLocal struct {
	name, desc string
	index      int
	start, end *Label
}

// Code 单个方法的指令汇编器
//
// 编译器核心只通过这里的方法发射指令，不直接操作字节。
// 首个错误会被记录下来，由 Finish 返回。
type Code struct {
	Pool *ConstantPool

	code      []byte
	labels    int
	fixups    []branchFixup
	handlers  []pendingHandler
	lines     []LineEntry
	locals    []pendingLocal
	maxLocals int
	maxStack  int
	err       error
}

// NewCode 创建汇编器
func NewCode(pool *ConstantPool) *Code {
	return &Code{Pool: pool}
}

// Len 当前代码长度
func (c *Code) Len() int { return len(c.code) }

// Bytes 当前已发射的字节（跳转未回填）
func (c *Code) Bytes() []byte { return c.code }

// Err 第一个记录的错误
func (c *Code) Err() error { return c.err }

func (c *Code) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

// Emit 发射无操作数指令
func (c *Code) Emit(op OpCode) {
	if op.Operand() != OperandNone {
		c.fail("opcode %s requires an operand", op)
	}
	c.code = append(c.code, byte(op))
}

// EmitU8 发射带 1 字节操作数的指令
func (c *Code) EmitU8(op OpCode, v uint8) {
	if op.Operand() != OperandU8 {
		c.fail("opcode %s does not take a u8 operand", op)
	}
	c.code = append(c.code, byte(op), v)
}

// EmitU16 发射带 2 字节操作数的指令（常量索引、计数）
func (c *Code) EmitU16(op OpCode, v uint16) {
	switch op.Operand() {
	case OperandU16, OperandConst, OperandLocal:
	default:
		c.fail("opcode %s does not take a u16 operand", op)
	}
	c.code = append(c.code, byte(op), byte(v>>8), byte(v))
}

// EmitLocal 发射局部变量访问指令，同时更新最大局部变量数
func (c *Code) EmitLocal(op OpCode, slot int) {
	if op.Operand() != OperandLocal {
		c.fail("opcode %s is not a local variable instruction", op)
	}
	if slot < 0 || slot > math.MaxUint16-1 {
		c.fail("local slot %d out of range", slot)
		return
	}
	width := 1
	switch op {
	case OpLLoad, OpDLoad, OpLStore, OpDStore:
		width = 2
	}
	c.ReserveLocals(slot + width)
	c.EmitU16(op, uint16(slot))
}

// IsTarget 是否有已发射的跳转指向 pos
func (c *Code) IsTarget(pos int) bool {
	for _, f := range c.fixups {
		if f.label.pos == pos {
			return true
		}
	}
	return false
}

// EmitJump 发射跳转指令，目标在 Finish 时回填
func (c *Code) EmitJump(op OpCode, l *Label) {
	if !op.IsBranch() {
		c.fail("opcode %s is not a branch", op)
	}
	c.fixups = append(c.fixups, branchFixup{pc: len(c.code), label: l})
	c.code = append(c.code, byte(op), 0, 0)
}

// NewLabel 创建未绑定的标签
func (c *Code) NewLabel() *Label {
	c.labels++
	return &Label{id: c.labels, pos: -1}
}

// Mark 把标签绑定到当前位置；每个标签只能绑定一次
func (c *Code) Mark(l *Label) {
	if l.Bound() {
		c.fail("label %s bound twice (at %d and %d)", l, l.pos, len(c.code))
		return
	}
	l.pos = len(c.code)
}

// AddTryCatch 登记异常表项，catchType 为空表示捕获所有异常
// 表项按登记顺序排列，内层 try 必须先于外层登记
func (c *Code) AddTryCatch(start, end, handler *Label, catchType string) {
	c.handlers = append(c.handlers, pendingHandler{start, end, handler, catchType})
}

// LineNumber 记录当前位置对应的源码行号
func (c *Code) LineNumber(line int) {
	if line <= 0 || line > math.MaxUint16 {
		return
	}
	pc := uint16(len(c.code))
	if n := len(c.lines); n > 0 {
		last := &c.lines[n-1]
		if last.PC == pc {
			last.Line = uint16(line)
			return
		}
		if int(last.Line) == line {
			return
		}
	}
	c.lines = append(c.lines, LineEntry{PC: pc, Line: uint16(line)})
}

// LocalVariable 登记局部变量调试信息
func (c *Code) LocalVariable(name, desc string, index int, start, end *Label) {
	c.locals = append(c.locals, pendingLocal{name, desc, index, start, end})
}

// ReserveLocals 确保局部变量区至少有 n 个槽位
func (c *Code) ReserveLocals(n int) {
	if n > c.maxLocals {
		c.maxLocals = n
	}
}

// SetMaxs 设置最大栈深度与局部变量数；stack 为 0 时由 Finish 计算
func (c *Code) SetMaxs(stack, locals int) {
	c.maxStack = stack
	c.ReserveLocals(locals)
}

// Finish 回填跳转、解析异常表与调试表，并把结果写入方法
// maxStackLimit 为允许的最大栈深度（0 表示默认值）
func (c *Code) Finish(m *MethodInfo, maxStackLimit int) error {
	if c.err != nil {
		return c.err
	}
	for _, f := range c.fixups {
		if !f.label.Bound() {
			return fmt.Errorf("label %s referenced at %d but never bound", f.label, f.pc)
		}
		off := f.label.pos - (f.pc + 3)
		if off < math.MinInt16 || off > math.MaxInt16 {
			return fmt.Errorf("branch offset %d at %d out of range", off, f.pc)
		}
		c.code[f.pc+1] = byte(uint16(int16(off)) >> 8)
		c.code[f.pc+2] = byte(uint16(int16(off)))
	}
	if len(c.code) > math.MaxUint16 {
		return fmt.Errorf("method code too large (%d bytes)", len(c.code))
	}

	m.Code = c.code
	m.Handlers = m.Handlers[:0]
	for _, h := range c.handlers {
		if !h.start.Bound() || !h.end.Bound() || !h.handler.Bound() {
			return fmt.Errorf("exception range %s-%s -> %s has unbound labels", h.start, h.end, h.handler)
		}
		if h.start.pos >= h.end.pos {
			continue // 空区间
		}
		m.Handlers = append(m.Handlers, ExceptionEntry{
			Start:     uint16(h.start.pos),
			End:       uint16(h.end.pos),
			Handler:   uint16(h.handler.pos),
			CatchType: h.catchType,
		})
	}
	m.Lines = c.lines
	m.Locals = m.Locals[:0]
	for _, l := range c.locals {
		if !l.start.Bound() || !l.end.Bound() || l.end.pos < l.start.pos {
			continue
		}
		m.Locals = append(m.Locals, LocalVarEntry{
			Start:      uint16(l.start.pos),
			Length:     uint16(l.end.pos - l.start.pos),
			Name:       l.name,
			Descriptor: l.desc,
			Index:      uint16(l.index),
		})
	}
	m.MaxLocals = uint16(c.maxLocals)

	result := NewStackChecker(m, c.Pool).Check(maxStackLimit)
	if !result.IsValid {
		return &VerificationError{Method: m.Name + m.Descriptor, Offset: result.FirstErrorOffset, Message: result.Errors[0]}
	}
	stack := result.MaxDepth
	if c.maxStack > stack {
		stack = c.maxStack
	}
	m.MaxStack = uint16(stack)
	return nil
}
