package compiler

import (
	"testing"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
)

// newStack 为一个实例方法或静态方法准备编译栈
func newStack(static bool) (*CompileStack, *bytecode.Code) {
	mods := ast.AccPublic
	if static {
		mods |= ast.AccStatic
	}
	class := ast.NewClass("demo.C", ast.AccPublic, nil)
	m := ast.NewMethod("m", mods, nil, nil, ast.Block())
	class.AddMethod(m)
	code := bytecode.NewCode(bytecode.NewConstantPool())
	cs := NewCompileStack(true)
	cs.Init(class, m, code)
	return cs, code
}

// internalError 执行 fn 并返回其抛出的内部错误
func internalError(fn func()) (err error) {
	defer errors.Recover(&err, "demo.C", "m")
	fn()
	return nil
}

// ============================================================================
// 槽位分配
// ============================================================================

func TestCompileStackSlots(t *testing.T) {
	tests := []struct {
		name   string
		static bool
		types  []*ast.TypeRef
		want   []int
		next   int
	}{
		{"instance reserves this", false, []*ast.TypeRef{ast.IntType, ast.DynamicType}, []int{1, 2}, 3},
		{"static starts at zero", true, []*ast.TypeRef{ast.IntType}, []int{0}, 1},
		{"wide types take two slots", true, []*ast.TypeRef{ast.LongType, ast.DoubleType, ast.IntType}, []int{0, 2, 4}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, _ := newStack(tt.static)
			for i, typ := range tt.types {
				v := cs.Declare(string(rune('a'+i)), typ)
				if v.Index != tt.want[i] {
					t.Errorf("Expected slot %d for %s, got %d", tt.want[i], v.Name, v.Index)
				}
			}
			if cs.NextIndex() != tt.next {
				t.Errorf("Expected next index %d, got %d", tt.next, cs.NextIndex())
			}
		})
	}
}

func TestCompileStackScopeSymmetry(t *testing.T) {
	cs, code := newStack(false)
	cs.Declare("outer", ast.DynamicType)
	before := cs.NextIndex()
	depth := cs.Depth()

	cs.PushScope(false, "")
	inner := cs.Declare("inner", ast.LongType)
	if inner.Index != before {
		t.Errorf("Expected inner slot %d, got %d", before, inner.Index)
	}
	cs.PushTemporaryScope()
	cs.Declare("deeper", ast.IntType)
	if cs.Depth() != depth+2 {
		t.Errorf("Expected depth %d, got %d", depth+2, cs.Depth())
	}
	cs.PopScope()
	cs.PopScope()

	if cs.NextIndex() != before {
		t.Errorf("Expected next index restored to %d, got %d", before, cs.NextIndex())
	}
	if _, ok := cs.Lookup("inner"); ok {
		t.Error("inner variable should not be visible after its scope ends")
	}
	if v, ok := cs.Lookup("outer"); !ok || v.Index != 1 {
		t.Errorf("Expected outer at slot 1, got %v", v)
	}

	// 槽位复用
	cs.PushScope(false, "")
	reused := cs.Declare("again", ast.DynamicType)
	cs.PopScope()
	if reused.Index != inner.Index {
		t.Errorf("Expected slot %d to be reused, got %d", inner.Index, reused.Index)
	}
	if inner.EndLabel == nil || !inner.EndLabel.Bound() {
		t.Error("Expected end label bound when the scope is popped")
	}

	if err := internalError(cs.Clear); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cs.Pushes() != cs.Pops() {
		t.Errorf("Expected balanced scopes, got %d pushes and %d pops", cs.Pushes(), cs.Pops())
	}
	if code.Err() != nil {
		t.Errorf("Unexpected assembler error: %v", code.Err())
	}
}

func TestCompileStackUnbalanced(t *testing.T) {
	cs, _ := newStack(true)
	cs.PushScope(false, "")

	err := internalError(cs.Clear)
	if err == nil {
		t.Fatal("Expected internal error for unbalanced scopes")
	}
	ie, ok := err.(*errors.InternalError)
	if !ok {
		t.Fatalf("Expected *InternalError, got %T", err)
	}
	if ie.Code != errors.I0001 {
		t.Errorf("Expected code %s, got %s", errors.I0001, ie.Code)
	}
	if ie.Class != "demo.C" || ie.Method != "m" {
		t.Errorf("Expected location demo.C.m, got %s.%s", ie.Class, ie.Method)
	}

	cs2, _ := newStack(true)
	cs2.PopScope()
	if err := internalError(cs2.PopScope); err == nil {
		t.Error("Expected internal error for pop without push")
	}
}

func TestCompileStackTemporaries(t *testing.T) {
	cs, _ := newStack(true)
	a := cs.DeclareTemporary("t1", ast.DynamicType)
	b := cs.DeclareTemporary("t2", ast.LongType)
	if b != a+1 {
		t.Errorf("Expected second temporary at %d, got %d", a+1, b)
	}

	err := internalError(func() { cs.ReleaseTemporary(a) })
	if ie, ok := err.(*errors.InternalError); !ok || ie.Code != errors.I0006 {
		t.Fatalf("Expected I0006 for out of order release, got %v", err)
	}

	cs.ReleaseTemporary(b)
	cs.ReleaseTemporary(a)
	if cs.NextIndex() != a {
		t.Errorf("Expected next index %d after release, got %d", a, cs.NextIndex())
	}
}

func TestCompileStackHolderParameters(t *testing.T) {
	cs, code := newStack(true)
	shared := ast.Param("count", ast.IntType)
	shared.ClosureShared = true
	vars := cs.DefineParameters(ast.Params(ast.Param("a", nil), shared))

	if vars[0].Holder {
		t.Error("plain parameter should not be a holder")
	}
	if !vars[1].Holder {
		t.Fatal("shared parameter should be a holder")
	}
	if vars[1].SlotType() != ast.ReferenceType {
		t.Errorf("Expected slot type %s, got %s", ast.ReferenceType.Name, vars[1].SlotType().Name)
	}
	if code.Len() == 0 || bytecode.OpCode(code.Bytes()[0]) != bytecode.OpNew {
		t.Error("Expected entry code to wrap the shared parameter in a Reference")
	}
}

// ============================================================================
// 标签
// ============================================================================

func TestCompileStackLabels(t *testing.T) {
	cs, _ := newStack(true)
	if cs.BreakLabel() != nil || cs.ContinueLabel() != nil {
		t.Fatal("Expected no loop labels at method level")
	}

	cs.PushLoop("outer")
	outerBreak, outerContinue := cs.BreakLabel(), cs.ContinueLabel()
	cs.PushScope(false, "block")
	cs.PushLoop()
	if cs.BreakLabel() == outerBreak {
		t.Error("Expected innermost loop break label")
	}
	if cs.NamedBreakLabel("outer") != outerBreak {
		t.Error("Expected named break to resolve to the outer loop")
	}
	if cs.NamedContinueLabel("outer") != outerContinue {
		t.Error("Expected named continue to resolve to the outer loop")
	}
	if cs.NamedContinueLabel("block") != nil {
		t.Error("Expected no continue label on a non-loop block")
	}
	if cs.NamedBreakLabel("block") == nil {
		t.Error("Expected labelled block to accept break")
	}
	if cs.NamedBreakLabel("missing") != nil {
		t.Error("Expected nil for an unknown label")
	}

	names := cs.LabelNames()
	if len(names) != 2 || names[0] != "block" || names[1] != "outer" {
		t.Errorf("Expected [block outer], got %v", names)
	}
	cs.PopScope()
	cs.PopScope()
	cs.PopScope()

	cs.PushSwitch()
	if cs.BreakLabel() == nil || cs.ContinueLabel() != nil {
		t.Error("Expected switch to provide break but not continue")
	}
	cs.PopScope()
}

// ============================================================================
// finally 重放
// ============================================================================

func TestCompileStackFinallyReplay(t *testing.T) {
	cs, code := newStack(true)
	var order []string
	replay := func(name string) func() {
		return func() {
			order = append(order, name)
			code.Emit(bytecode.OpNop)
		}
	}

	cs.PushLoop()
	loopBreak := cs.BreakLabel()
	outer := cs.RegisterFinally(replay("outer"))
	cs.PushTemporaryScope()
	cs.RegisterFinally(nil)
	cs.PushTemporaryScope()
	inner := cs.RegisterFinally(replay("inner"))

	if !cs.HasFinally() {
		t.Fatal("Expected pending finally blocks")
	}

	// return 重放全部 finally，由内向外
	cs.ApplyFinallyBlocksForExit(nil, false)
	if len(order) != 2 || order[0] != "inner" || order[1] != "outer" {
		t.Errorf("Expected [inner outer], got %v", order)
	}

	// break 只重放循环作用域之后登记的 finally
	order = nil
	cs.ApplyFinallyBlocksForExit(loopBreak, true)
	if len(order) != 2 || order[0] != "inner" || order[1] != "outer" {
		t.Errorf("Expected [inner outer] for break out of the loop, got %v", order)
	}

	order = nil
	cs.RunFinally(inner)
	if len(order) != 1 || order[0] != "inner" {
		t.Errorf("Expected normal completion to run only inner, got %v", order)
	}

	if len(inner.gaps) != 3 || len(outer.gaps) != 2 {
		t.Errorf("Expected 3 inner gaps and 2 outer gaps, got %d and %d", len(inner.gaps), len(outer.gaps))
	}

	cs.PopFinally()
	cs.PopScope()
	cs.PopFinally()
	cs.PopScope()
	cs.PopFinally()
	if cs.HasFinally() {
		t.Error("Expected no pending finally after pops")
	}
	cs.PopScope()
	if err := internalError(cs.Clear); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
}

func TestCompileStackFinallyGapsPerBlock(t *testing.T) {
	cs, code := newStack(true)
	nop := func() { code.Emit(bytecode.OpNop) }

	cs.PushTemporaryScope()
	outer := cs.RegisterFinally(func() { nop(); nop() })
	cs.PushTemporaryScope()
	catchOnly := cs.RegisterFinally(nil)
	cs.PushTemporaryScope()
	inner := cs.RegisterFinally(nop)

	start := code.NewLabel()
	code.Mark(start)
	code.Emit(bytecode.OpNop)
	cs.ApplyFinallyBlocksForExit(nil, false)
	end := code.NewLabel()
	code.Mark(end)

	if len(inner.gaps) != 1 || len(catchOnly.gaps) != 1 || len(outer.gaps) != 1 {
		t.Fatalf("Expected one gap per block, got %d, %d and %d", len(inner.gaps), len(catchOnly.gaps), len(outer.gaps))
	}
	ig, cg, og := inner.gaps[0], catchOnly.gaps[0], outer.gaps[0]

	tests := []struct {
		name       string
		start, end int
		wantStart  int
	}{
		{"inner", ig.start.Offset(), ig.end.Offset(), 1},
		{"catch only", cg.start.Offset(), cg.end.Offset(), 2},
		{"outer", og.start.Offset(), og.end.Offset(), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.start != tt.wantStart || tt.end != 4 {
				t.Errorf("Expected gap [%d,4), got [%d,%d)", tt.wantStart, tt.start, tt.end)
			}
		})
	}

	// 外层区间仍覆盖内层 finally 的重放
	ranges := outer.Ranges(start, end)
	if len(ranges) != 1 || ranges[0][0].Offset() != 0 || ranges[0][1].Offset() != 2 {
		t.Errorf("Expected outer range [0,2), got %v", ranges)
	}

	cs.PopFinally()
	cs.PopScope()
	cs.PopFinally()
	cs.PopScope()
	cs.PopFinally()
	cs.PopScope()
}

func TestCompileStackPopWithPendingFinally(t *testing.T) {
	cs, _ := newStack(true)
	cs.PushTemporaryScope()
	cs.RegisterFinally(func() {})
	if err := internalError(cs.PopScope); err == nil {
		t.Error("Expected internal error when a scope ends with a pending finally")
	}
}

func TestFinallyRanges(t *testing.T) {
	code := bytecode.NewCode(bytecode.NewConstantPool())
	at := func() *bytecode.Label {
		l := code.NewLabel()
		code.Mark(l)
		return l
	}

	start := at()
	code.Emit(bytecode.OpNop)
	g1s := at()
	code.Emit(bytecode.OpNop)
	code.Emit(bytecode.OpNop)
	g1e := at()
	code.Emit(bytecode.OpNop)
	end := at()

	fb := &finallyBlock{gaps: []gap{{g1s, g1e}}}
	ranges := fb.Ranges(start, end)
	if len(ranges) != 2 {
		t.Fatalf("Expected 2 ranges, got %d", len(ranges))
	}
	if ranges[0][0] != start || ranges[0][1] != g1s {
		t.Errorf("Expected first range [%d,%d), got [%d,%d)",
			start.Offset(), g1s.Offset(), ranges[0][0].Offset(), ranges[0][1].Offset())
	}
	if ranges[1][0] != g1e || ranges[1][1] != end {
		t.Errorf("Expected second range [%d,%d), got [%d,%d)",
			g1e.Offset(), end.Offset(), ranges[1][0].Offset(), ranges[1][1].Offset())
	}

	empty := &finallyBlock{gaps: []gap{{start, end}}}
	if got := empty.Ranges(start, end); len(got) != 0 {
		t.Errorf("Expected no ranges when the gap covers everything, got %d", len(got))
	}
}
