package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble 反汇编整个类模块
func Disassemble(cf *ClassFile) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "class %s extends %s", cf.Name, cf.Super)
	if len(cf.Interfaces) > 0 {
		fmt.Fprintf(&sb, " implements %s", strings.Join(cf.Interfaces, ", "))
	}
	fmt.Fprintf(&sb, " [access=0x%04x]\n", cf.Access)
	if cf.SourceFile != "" {
		fmt.Fprintf(&sb, "  source %s\n", cf.SourceFile)
	}

	for _, f := range cf.Fields {
		fmt.Fprintf(&sb, "  field %s %s [access=0x%04x]", f.Name, f.Descriptor, f.Access)
		if f.ConstantValue != 0 {
			if c, ok := cf.Pool.Get(f.ConstantValue); ok {
				fmt.Fprintf(&sb, " = %s", c)
			}
		}
		sb.WriteByte('\n')
	}
	for _, m := range cf.Methods {
		sb.WriteString(DisassembleMethod(m, cf.Pool))
	}
	return sb.String()
}

// DisassembleMethod 反汇编单个方法
// 优化：使用 strings.Builder 避免字符串拼接开销
func DisassembleMethod(m *MethodInfo, pool *ConstantPool) string {
	var sb strings.Builder
	// 预估大小：每条指令约 30 字节输出
	sb.Grow(len(m.Code)*30 + 64)

	fmt.Fprintf(&sb, "=== %s%s [access=0x%04x stack=%d locals=%d] ===\n",
		m.Name, m.Descriptor, m.Access, m.MaxStack, m.MaxLocals)

	lines := make(map[int]int, len(m.Lines))
	for _, l := range m.Lines {
		lines[int(l.PC)] = int(l.Line)
	}

	for offset := 0; offset < len(m.Code); {
		offset = disassembleInstruction(&sb, m.Code, offset, lines, pool)
	}

	for _, h := range m.Handlers {
		typ := h.CatchType
		if typ == "" {
			typ = "any"
		}
		fmt.Fprintf(&sb, "  try [%04d, %04d) -> %04d catch %s\n", h.Start, h.End, h.Handler, typ)
	}
	for _, l := range m.Locals {
		fmt.Fprintf(&sb, "  local %d %s %s [%04d, %04d)\n", l.Index, l.Name, l.Descriptor, l.Start, l.Start+l.Length)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, code []byte, offset int, lines map[int]int, pool *ConstantPool) int {
	fmt.Fprintf(sb, "%04d ", offset)

	// 显示行号
	if line, ok := lines[offset]; ok {
		fmt.Fprintf(sb, "%4d ", line)
	} else {
		sb.WriteString("   | ")
	}

	op := OpCode(code[offset])
	if !op.Valid() || offset+op.Size() > len(code) {
		fmt.Fprintf(sb, "%s\n", op)
		return offset + 1
	}

	switch op.Operand() {
	case OperandConst:
		idx := ReadU16(code, offset+1)
		fmt.Fprintf(sb, "%-18s #%d", op, idx)
		if c, ok := pool.Get(idx); ok {
			fmt.Fprintf(sb, " %s", c)
		}
		sb.WriteByte('\n')
	case OperandLocal, OperandU16:
		fmt.Fprintf(sb, "%-18s %d\n", op, ReadU16(code, offset+1))
	case OperandU8:
		v := code[offset+1]
		if op == OpBox || op == OpUnbox {
			fmt.Fprintf(sb, "%-18s %c\n", op, v)
		} else {
			fmt.Fprintf(sb, "%-18s %d\n", op, v)
		}
	case OperandBranch:
		fmt.Fprintf(sb, "%-18s -> %04d\n", op, BranchTarget(code, offset))
	default:
		fmt.Fprintf(sb, "%s\n", op)
	}
	return offset + op.Size()
}
