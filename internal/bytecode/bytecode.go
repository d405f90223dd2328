// Package bytecode 定义类模块的指令集、类文件结构以及底层汇编器。
//
// 编译器核心通过 Code 发射指令、创建与绑定标签、登记异常表项，
// 本包负责指令编码、跳转回填、操作数栈深度校验与序列化。
package bytecode

import (
	"fmt"
)

// OpCode 操作码类型
type OpCode byte

const (
	OpNop OpCode = iota // 空操作

	// 常量
	OpAConstNull // 压入 null
	OpIConst0    // 压入 int 0
	OpIConst1    // 压入 int 1
	OpLdc        // 压入常量池常量 (index: u16)

	// 局部变量（宽类型 J/D 占两个槽位）
	OpILoad  // 加载 int 类局部变量 (slot: u16)
	OpLLoad  // 加载 long (slot: u16)
	OpFLoad  // 加载 float (slot: u16)
	OpDLoad  // 加载 double (slot: u16)
	OpALoad  // 加载引用 (slot: u16)
	OpIStore // 存储 int 类局部变量 (slot: u16)
	OpLStore // 存储 long (slot: u16)
	OpFStore // 存储 float (slot: u16)
	OpDStore // 存储 double (slot: u16)
	OpAStore // 存储引用 (slot: u16)

	// 栈操作
	OpPop   // 弹出栈顶
	OpDup   // 复制栈顶
	OpDupX1 // a b -> b a b
	OpDupX2 // a b c -> c a b c
	OpSwap  // 交换栈顶两个元素

	// 类型转换
	OpBox        // 原始值装箱 (kind: u8，描述符字符)
	OpUnbox      // 拆箱并做数值转换 (kind: u8)
	OpCheckCast  // 引用类型检查 (class: u16)
	OpInstanceOf // 类型测试，结果为 int 0/1 (class: u16)
	OpTruth      // 对象真值判断，结果为 int 0/1

	// 对象与集合
	OpNew         // 分配对象 (class: u16)
	OpNewArray    // 创建数组，弹出长度 (class: u16 元素类型)
	OpArrayLength // 数组长度
	OpAALoad      // 数组元素读取
	OpAAStore     // 数组元素写入
	OpNewList     // 用栈顶 n 个元素创建列表 (count: u16)
	OpNewMap      // 用栈顶 n 对键值创建映射 (count: u16)
	OpNewRange    // 用栈顶两个端点创建范围 (inclusive: u8)

	// 字段与属性
	OpGetField    // 读取实例字段 (fieldref: u16)
	OpPutField    // 写入实例字段 (fieldref: u16)
	OpGetStatic   // 读取静态字段 (fieldref: u16)
	OpPutStatic   // 写入静态字段 (fieldref: u16)
	OpGetProperty // 动态读取属性 (name: u16)
	OpSetProperty // 动态写入属性，栈: value receiver (name: u16)

	// 调用
	OpInvokeVirtual      // 虚方法调用 (methodref: u16)
	OpInvokeSpecial      // 构造函数、私有方法与 super 调用 (methodref: u16)
	OpInvokeStatic       // 静态方法调用 (methodref: u16)
	OpInvokeInterface    // 接口方法调用 (methodref: u16)
	OpInvokeMethod       // 动态方法调用，按名称与参数个数分派 (callsite: u16)
	OpInvokeStaticMethod // 动态静态方法调用 (callsite: u16)

	// 跳转（偏移量: i16，相对于下一条指令）
	OpGoto      // 无条件跳转
	OpIfEq      // 弹出 int，为 0 时跳转
	OpIfNe      // 弹出 int，非 0 时跳转
	OpIfNull    // 弹出引用，为 null 时跳转
	OpIfNonNull // 弹出引用，非 null 时跳转

	// 返回与异常
	OpIReturn // 返回 int 类值
	OpLReturn // 返回 long
	OpFReturn // 返回 float
	OpDReturn // 返回 double
	OpAReturn // 返回引用
	OpReturn  // 无返回值
	OpAThrow  // 抛出栈顶异常

	// 同步
	OpMonitorEnter // 获取监视器
	OpMonitorExit  // 释放监视器

	opCount // 操作码数量，必须位于最后
)

// OperandKind 操作数格式
type OperandKind uint8

const (
	OperandNone   OperandKind = iota // 无操作数
	OperandU8                        // 1 字节
	OperandU16                       // 2 字节无符号
	OperandBranch                    // 2 字节有符号跳转偏移
	OperandConst                     // 2 字节常量池索引
	OperandLocal                     // 2 字节局部变量槽位
)

// opInfo 操作码元信息
type opInfo struct {
	name    string
	operand OperandKind
}

var opTable = [opCount]opInfo{
	OpNop:        {"NOP", OperandNone},
	OpAConstNull: {"ACONST_NULL", OperandNone},
	OpIConst0:    {"ICONST_0", OperandNone},
	OpIConst1:    {"ICONST_1", OperandNone},
	OpLdc:        {"LDC", OperandConst},

	OpILoad:  {"ILOAD", OperandLocal},
	OpLLoad:  {"LLOAD", OperandLocal},
	OpFLoad:  {"FLOAD", OperandLocal},
	OpDLoad:  {"DLOAD", OperandLocal},
	OpALoad:  {"ALOAD", OperandLocal},
	OpIStore: {"ISTORE", OperandLocal},
	OpLStore: {"LSTORE", OperandLocal},
	OpFStore: {"FSTORE", OperandLocal},
	OpDStore: {"DSTORE", OperandLocal},
	OpAStore: {"ASTORE", OperandLocal},

	OpPop:   {"POP", OperandNone},
	OpDup:   {"DUP", OperandNone},
	OpDupX1: {"DUP_X1", OperandNone},
	OpDupX2: {"DUP_X2", OperandNone},
	OpSwap:  {"SWAP", OperandNone},

	OpBox:        {"BOX", OperandU8},
	OpUnbox:      {"UNBOX", OperandU8},
	OpCheckCast:  {"CHECKCAST", OperandConst},
	OpInstanceOf: {"INSTANCEOF", OperandConst},
	OpTruth:      {"TRUTH", OperandNone},

	OpNew:         {"NEW", OperandConst},
	OpNewArray:    {"NEWARRAY", OperandConst},
	OpArrayLength: {"ARRAYLENGTH", OperandNone},
	OpAALoad:      {"AALOAD", OperandNone},
	OpAAStore:     {"AASTORE", OperandNone},
	OpNewList:     {"NEWLIST", OperandU16},
	OpNewMap:      {"NEWMAP", OperandU16},
	OpNewRange:    {"NEWRANGE", OperandU8},

	OpGetField:    {"GETFIELD", OperandConst},
	OpPutField:    {"PUTFIELD", OperandConst},
	OpGetStatic:   {"GETSTATIC", OperandConst},
	OpPutStatic:   {"PUTSTATIC", OperandConst},
	OpGetProperty: {"GETPROPERTY", OperandConst},
	OpSetProperty: {"SETPROPERTY", OperandConst},

	OpInvokeVirtual:      {"INVOKEVIRTUAL", OperandConst},
	OpInvokeSpecial:      {"INVOKESPECIAL", OperandConst},
	OpInvokeStatic:       {"INVOKESTATIC", OperandConst},
	OpInvokeInterface:    {"INVOKEINTERFACE", OperandConst},
	OpInvokeMethod:       {"INVOKEMETHOD", OperandConst},
	OpInvokeStaticMethod: {"INVOKESTATICMETHOD", OperandConst},

	OpGoto:      {"GOTO", OperandBranch},
	OpIfEq:      {"IFEQ", OperandBranch},
	OpIfNe:      {"IFNE", OperandBranch},
	OpIfNull:    {"IFNULL", OperandBranch},
	OpIfNonNull: {"IFNONNULL", OperandBranch},

	OpIReturn: {"IRETURN", OperandNone},
	OpLReturn: {"LRETURN", OperandNone},
	OpFReturn: {"FRETURN", OperandNone},
	OpDReturn: {"DRETURN", OperandNone},
	OpAReturn: {"ARETURN", OperandNone},
	OpReturn:  {"RETURN", OperandNone},
	OpAThrow:  {"ATHROW", OperandNone},

	OpMonitorEnter: {"MONITORENTER", OperandNone},
	OpMonitorExit:  {"MONITOREXIT", OperandNone},
}

// String 返回操作码名称
func (op OpCode) String() string {
	if op < opCount {
		return opTable[op].name
	}
	return fmt.Sprintf("UNKNOWN(%d)", op)
}

// Valid 是否为已定义的操作码
func (op OpCode) Valid() bool { return op < opCount }

// Operand 操作数格式
func (op OpCode) Operand() OperandKind {
	if op < opCount {
		return opTable[op].operand
	}
	return OperandNone
}

// Size 指令总长度（含操作码本身）
func (op OpCode) Size() int {
	switch op.Operand() {
	case OperandU8:
		return 2
	case OperandU16, OperandBranch, OperandConst, OperandLocal:
		return 3
	}
	return 1
}

// IsBranch 是否为跳转指令
func (op OpCode) IsBranch() bool { return op.Operand() == OperandBranch }

// IsTerminal 执行后不会落入下一条指令
func (op OpCode) IsTerminal() bool {
	switch op {
	case OpGoto, OpIReturn, OpLReturn, OpFReturn, OpDReturn, OpAReturn, OpReturn, OpAThrow:
		return true
	}
	return false
}

// IsReturn 是否为返回指令
func (op OpCode) IsReturn() bool { return op >= OpIReturn && op <= OpReturn }

// ReadU16 从代码中读取大端 uint16
func ReadU16(code []byte, offset int) uint16 {
	return uint16(code[offset])<<8 | uint16(code[offset+1])
}

// ReadI16 从代码中读取大端 int16
func ReadI16(code []byte, offset int) int16 {
	return int16(ReadU16(code, offset))
}

// BranchTarget 计算跳转指令的目标位置
func BranchTarget(code []byte, pc int) int {
	return pc + 3 + int(ReadI16(code, pc+1))
}
