package bytecode

import (
	"fmt"

	"go.uber.org/multierr"
)

// VerificationError 字节码验证错误
type VerificationError struct {
	Method  string // 方法名与描述符
	Offset  int    // 指令偏移量
	Message string // 错误消息
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("字节码验证错误 %s (偏移量 %d): %s", e.Method, e.Offset, e.Message)
}

// Verifier 类模块验证器
//
// 检查指令边界、跳转目标、常量池引用、局部变量槽位、异常表，
// 并确认声明的最大栈深度不小于数据流分析得到的深度。
type Verifier struct {
	class *ClassFile
	limit int
}

// NewVerifier 创建验证器，maxStack 为允许的最大栈深度（0 表示默认值）
func NewVerifier(cf *ClassFile, maxStack int) *Verifier {
	return &Verifier{class: cf, limit: maxStack}
}

// Verify 验证类中的全部方法，返回合并后的错误
func Verify(cf *ClassFile) error {
	return NewVerifier(cf, 0).Verify()
}

// Verify 验证类模块
func (v *Verifier) Verify() error {
	var errs error
	if v.class.Name == "" {
		errs = multierr.Append(errs, fmt.Errorf("class has no name"))
	}
	seen := make(map[string]bool)
	for _, m := range v.class.Methods {
		key := m.Name + m.Descriptor
		if seen[key] {
			errs = multierr.Append(errs, &VerificationError{Method: key, Message: "方法重复定义"})
		}
		seen[key] = true
		if _, _, err := ParseMethodDescriptor(m.Descriptor); err != nil {
			errs = multierr.Append(errs, &VerificationError{Method: key, Message: err.Error()})
			continue
		}
		errs = multierr.Append(errs, v.verifyMethod(m))
	}
	return errs
}

func (v *Verifier) verifyMethod(m *MethodInfo) error {
	key := m.Name + m.Descriptor
	fail := func(off int, format string, args ...any) error {
		return &VerificationError{Method: key, Offset: off, Message: fmt.Sprintf(format, args...)}
	}
	if m.IsAbstract() {
		if len(m.Code) != 0 {
			return fail(0, "抽象方法不能有代码")
		}
		return nil
	}

	// 第一遍：指令边界与操作数
	starts := make(map[int]bool)
	var errs error
	pool := v.class.Pool
	for pc := 0; pc < len(m.Code); {
		op := OpCode(m.Code[pc])
		if !op.Valid() {
			return fail(pc, "未知操作码 %d", m.Code[pc])
		}
		if pc+op.Size() > len(m.Code) {
			return fail(pc, "指令 %s 的操作数被截断", op)
		}
		starts[pc] = true
		switch op.Operand() {
		case OperandConst:
			c, ok := pool.Get(ReadU16(m.Code, pc+1))
			if !ok {
				errs = multierr.Append(errs, fail(pc, "%s 引用了不存在的常量 %d", op, ReadU16(m.Code, pc+1)))
			} else if !constFits(op, c.Tag) {
				errs = multierr.Append(errs, fail(pc, "%s 不能使用常量 %s", op, c))
			}
		case OperandLocal:
			slot := int(ReadU16(m.Code, pc+1))
			width := 1
			switch op {
			case OpLLoad, OpDLoad, OpLStore, OpDStore:
				width = 2
			}
			if slot+width > int(m.MaxLocals) {
				errs = multierr.Append(errs, fail(pc, "局部变量槽位 %d 超出 max_locals %d", slot, m.MaxLocals))
			}
		}
		pc += op.Size()
	}

	// 第二遍：跳转目标与异常表
	for pc := 0; pc < len(m.Code); pc += OpCode(m.Code[pc]).Size() {
		op := OpCode(m.Code[pc])
		if op.IsBranch() {
			if t := BranchTarget(m.Code, pc); !starts[t] {
				errs = multierr.Append(errs, fail(pc, "跳转目标 %d 不是指令起点", t))
			}
		}
	}
	for _, h := range m.Handlers {
		if h.Start >= h.End || !starts[int(h.Start)] || !starts[int(h.Handler)] ||
			(int(h.End) < len(m.Code) && !starts[int(h.End)]) || int(h.End) > len(m.Code) {
			errs = multierr.Append(errs, fail(int(h.Start), "无效的异常表项 [%d, %d) -> %d", h.Start, h.End, h.Handler))
		}
	}
	if errs != nil {
		return errs
	}

	// 第三遍：栈深度
	result := NewStackChecker(m, pool).Check(v.limit)
	if !result.IsValid {
		for _, msg := range result.Errors {
			errs = multierr.Append(errs, fail(result.FirstErrorOffset, "%s", msg))
		}
		return errs
	}
	if result.MaxDepth > int(m.MaxStack) {
		return fail(0, "max_stack %d 小于实际深度 %d", m.MaxStack, result.MaxDepth)
	}
	return nil
}

// constFits 检查指令与常量类型是否匹配
func constFits(op OpCode, tag uint8) bool {
	switch op {
	case OpLdc:
		return tag <= ConstClass || tag == ConstBool
	case OpCheckCast, OpInstanceOf, OpNew, OpNewArray:
		return tag == ConstClass
	case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
		return tag == ConstFieldRef
	case OpGetProperty, OpSetProperty:
		return tag == ConstString
	case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
		return tag == ConstMethodRef
	case OpInvokeMethod, OpInvokeStaticMethod:
		return tag == ConstCallSite
	}
	return false
}
