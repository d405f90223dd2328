package bytecode

import (
	"fmt"
)

// ============================================================================
// 操作数栈深度检查
// ============================================================================

// StackChecker 栈深度检查器
type StackChecker struct {
	method       *MethodInfo
	pool         *ConstantPool
	maxStackSize int // 计算出的最大栈深度
	errors       []string
	firstErr     int
}

// StackCheckResult 栈检查结果
type StackCheckResult struct {
	MaxDepth         int      // 最大栈深度
	IsValid          bool     // 是否有效
	Errors           []string // 错误信息
	FirstErrorOffset int      // 第一个错误所在的指令位置
}

// DefaultMaxStackDepth 默认最大栈深度
const DefaultMaxStackDepth = 1024

// NewStackChecker 创建栈检查器
func NewStackChecker(m *MethodInfo, pool *ConstantPool) *StackChecker {
	return &StackChecker{method: m, pool: pool, firstErr: -1}
}

func (sc *StackChecker) errorf(pos int, format string, args ...any) {
	if sc.firstErr < 0 {
		sc.firstErr = pos
	}
	sc.errors = append(sc.errors, fmt.Sprintf(format, args...))
}

// Check 执行栈深度检查
// 使用数据流分析计算每个位置的栈深度，异常处理入口的深度为 1
func (sc *StackChecker) Check(maxAllowed int) StackCheckResult {
	if maxAllowed <= 0 {
		maxAllowed = DefaultMaxStackDepth
	}

	sc.errors = nil
	sc.maxStackSize = 0
	sc.firstErr = -1

	code := sc.method.Code
	if len(code) == 0 {
		if !sc.method.IsAbstract() {
			sc.errorf(0, "非抽象方法 %s 没有代码", sc.method.Name)
		}
		return sc.result()
	}

	// 每个位置的栈深度（-1 表示未访问）
	depths := make([]int, len(code))
	for i := range depths {
		depths[i] = -1
	}

	// 工作列表：(位置, 当前栈深度)
	type workItem struct {
		pos   int
		depth int
	}
	worklist := []workItem{{0, 0}}
	for _, h := range sc.method.Handlers {
		if int(h.Handler) >= len(code) {
			sc.errorf(int(h.Handler), "异常处理入口 %d 越界", h.Handler)
			continue
		}
		worklist = append(worklist, workItem{int(h.Handler), 1})
		if sc.maxStackSize < 1 {
			sc.maxStackSize = 1
		}
	}

	for len(worklist) > 0 {
		item := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		pos := item.pos
		depth := item.depth

		for {
			if pos >= len(code) {
				sc.errorf(pos, "执行流越过代码末尾：位置 %d", pos)
				break
			}
			// 检查是否已访问且深度一致
			if depths[pos] >= 0 {
				if depths[pos] != depth {
					sc.errorf(pos, "栈深度不一致：位置 %d 有两个不同的深度 %d 和 %d",
						pos, depths[pos], depth)
				}
				break
			}
			depths[pos] = depth

			op := OpCode(code[pos])
			if !op.Valid() {
				sc.errorf(pos, "未知操作码 %d：位置 %d", code[pos], pos)
				break
			}
			if pos+op.Size() > len(code) {
				sc.errorf(pos, "指令 %s 的操作数被截断：位置 %d", op, pos)
				break
			}

			pops, pushes, err := Effect(code, pos, sc.pool)
			if err != nil {
				sc.errorf(pos, "位置 %d，指令 %s：%v", pos, op, err)
				break
			}
			if depth < pops {
				sc.errorf(pos, "栈下溢：位置 %d，指令 %s，需要 %d 个操作数，实际 %d",
					pos, op, pops, depth)
				break
			}
			newDepth := depth - pops + pushes
			if newDepth > sc.maxStackSize {
				sc.maxStackSize = newDepth
			}
			if newDepth > maxAllowed {
				sc.errorf(pos, "栈溢出：位置 %d，深度 %d 超过限制 %d", pos, newDepth, maxAllowed)
				break
			}

			// 处理控制流
			if op.IsBranch() {
				target := BranchTarget(code, pos)
				if target < 0 || target >= len(code) {
					sc.errorf(pos, "跳转目标越界：位置 %d -> %d", pos, target)
					break
				}
				worklist = append(worklist, workItem{target, newDepth})
			}
			if op.IsTerminal() {
				break
			}
			depth = newDepth
			pos += op.Size()
		}
	}

	return sc.result()
}

func (sc *StackChecker) result() StackCheckResult {
	return StackCheckResult{
		MaxDepth:         sc.maxStackSize,
		IsValid:          len(sc.errors) == 0,
		Errors:           sc.errors,
		FirstErrorOffset: sc.firstErr,
	}
}

// Effect 计算 pc 处指令弹出与压入的操作数个数
func Effect(code []byte, pc int, pool *ConstantPool) (pops, pushes int, err error) {
	op := OpCode(code[pc])
	switch op {
	case OpNop, OpGoto, OpReturn:
		return 0, 0, nil

	// 压入操作
	case OpAConstNull, OpIConst0, OpIConst1, OpLdc,
		OpILoad, OpLLoad, OpFLoad, OpDLoad, OpALoad, OpGetStatic:
		return 0, 1, nil

	// 存储与弹出
	case OpIStore, OpLStore, OpFStore, OpDStore, OpAStore, OpPop,
		OpPutStatic, OpIfEq, OpIfNe, OpIfNull, OpIfNonNull,
		OpIReturn, OpLReturn, OpFReturn, OpDReturn, OpAReturn, OpAThrow,
		OpMonitorEnter, OpMonitorExit:
		return 1, 0, nil

	case OpDup:
		return 1, 2, nil
	case OpDupX1:
		return 2, 3, nil
	case OpDupX2:
		return 3, 4, nil
	case OpSwap:
		return 2, 2, nil

	// 一元变换
	case OpBox, OpUnbox, OpCheckCast, OpInstanceOf, OpTruth,
		OpNewArray, OpArrayLength, OpGetField, OpGetProperty:
		return 1, 1, nil

	case OpNew:
		return 0, 1, nil
	case OpAALoad:
		return 2, 1, nil
	case OpAAStore:
		return 3, 0, nil
	case OpPutField, OpSetProperty:
		return 2, 0, nil
	case OpNewRange:
		return 2, 1, nil
	case OpNewList:
		return int(ReadU16(code, pc+1)), 1, nil
	case OpNewMap:
		return 2 * int(ReadU16(code, pc+1)), 1, nil

	case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
		c, ok := pool.Get(ReadU16(code, pc+1))
		if !ok || c.Tag != ConstMethodRef {
			return 0, 0, fmt.Errorf("operand is not a method reference")
		}
		params, ret, err := ParseMethodDescriptor(c.Desc)
		if err != nil {
			return 0, 0, err
		}
		pops = len(params)
		if op != OpInvokeStatic {
			pops++
		}
		if ret != "V" {
			pushes = 1
		}
		return pops, pushes, nil

	case OpInvokeMethod, OpInvokeStaticMethod:
		c, ok := pool.Get(ReadU16(code, pc+1))
		if !ok || c.Tag != ConstCallSite {
			return 0, 0, fmt.Errorf("operand is not a call site")
		}
		pops = c.Argc
		if op == OpInvokeMethod {
			pops++
		}
		return pops, 1, nil
	}
	return 0, 0, fmt.Errorf("no stack effect for %s", op)
}
