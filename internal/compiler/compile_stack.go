package compiler

import (
	"sort"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 局部变量
// ============================================================================

// Variable 已分配槽位的局部变量
type Variable struct {
	Name  string
	Type  *ast.TypeRef // 声明类型
	Index int          // 起始槽位
	// Holder 为 true 时槽位里存放的是 groovy/lang/Reference，
	// 读写都经过 get/set
	Holder bool

	StartLabel *bytecode.Label
	EndLabel   *bytecode.Label

	temporary bool
}

// SlotType 槽位中实际存放的值的类型
func (v *Variable) SlotType() *ast.TypeRef {
	if v.Holder {
		return ast.ReferenceType
	}
	return v.Type
}

// ============================================================================
// 作用域
// ============================================================================

type scope struct {
	parent *scope
	depth  int
	vars   map[string]*Variable
	order  []*Variable

	// 入栈时的下一个空闲槽位，出栈时恢复，实现槽位复用
	savedIndex int

	isLoop        bool
	isSwitch      bool
	temporary     bool
	labels        []string
	breakLabel    *bytecode.Label
	continueLabel *bytecode.Label

	// 入栈时已登记的 finally 数量，跳出本作用域时只重放其后登记的部分
	finallyMark int
}

func (s *scope) hasLabel(name string) bool {
	for _, l := range s.labels {
		if l == name {
			return true
		}
	}
	return false
}

type gap struct {
	start, end *bytecode.Label
}

// finallyBlock 一个 finally 义务。body 为 nil 表示只有 catch 的 try，
// 仅用来记录需要从异常区间中排除的指令范围。
type finallyBlock struct {
	body  func()
	index int
	gaps  []gap
}

// ============================================================================
// 编译栈
// ============================================================================

// CompileStack 单个方法的槽位与标签分配器
type CompileStack struct {
	class  *ast.ClassNode
	method *ast.MethodNode
	code   *bytecode.Code

	scope     *scope
	nextIndex int
	temps     []*Variable
	finallies []*finallyBlock
	holders   map[string]bool

	pushes int
	pops   int

	debugLocals bool
}

// NewCompileStack 创建编译栈
func NewCompileStack(debugLocals bool) *CompileStack {
	return &CompileStack{debugLocals: debugLocals}
}

// Init 为方法初始化编译栈，实例方法的 0 号槽位保留给 this
func (cs *CompileStack) Init(class *ast.ClassNode, method *ast.MethodNode, code *bytecode.Code) {
	cs.class = class
	cs.method = method
	cs.code = code
	cs.scope = nil
	cs.nextIndex = 0
	cs.temps = nil
	cs.finallies = nil
	cs.pushes = 0
	cs.pops = 0
	if method != nil && !method.IsStatic() {
		cs.nextIndex = 1
		code.ReserveLocals(1)
	}
	cs.PushScope(false, "")
}

// Clear 结束方法：弹出根作用域并检查入栈出栈是否平衡
func (cs *CompileStack) Clear() {
	if cs.scope != nil && cs.scope.parent == nil {
		cs.PopScope()
	}
	if cs.scope != nil || cs.pushes != cs.pops {
		cs.raise(errors.I0001, "unbalanced scopes: %d pushes, %d pops", cs.pushes, cs.pops)
	}
	if len(cs.finallies) != 0 {
		cs.raise(errors.I0001, "%d finally blocks still registered", len(cs.finallies))
	}
	cs.holders = nil
	cs.temps = nil
}

// SetHolders 设置需要以 Reference 单元存放的变量名
func (cs *CompileStack) SetHolders(names map[string]bool) { cs.holders = names }

// IsHolder 变量名是否需要以 Reference 单元存放
func (cs *CompileStack) IsHolder(name string) bool { return cs.holders[name] }

// Pushes 入栈次数
func (cs *CompileStack) Pushes() int { return cs.pushes }

// Pops 出栈次数
func (cs *CompileStack) Pops() int { return cs.pops }

// NextIndex 下一个空闲槽位
func (cs *CompileStack) NextIndex() int { return cs.nextIndex }

// Depth 当前作用域深度，没有作用域时为 0
func (cs *CompileStack) Depth() int {
	if cs.scope == nil {
		return 0
	}
	return cs.scope.depth
}

func (cs *CompileStack) raise(code string, format string, args ...any) {
	var pos token.Position
	if cs.method != nil {
		pos = cs.method.Position
	}
	errors.Raise(code, pos, format, args...)
}

// ============================================================================
// 作用域入栈与出栈
// ============================================================================

func (cs *CompileStack) push(s *scope) *scope {
	s.parent = cs.scope
	s.vars = make(map[string]*Variable)
	s.savedIndex = cs.nextIndex
	s.finallyMark = len(cs.finallies)
	if cs.scope != nil {
		s.depth = cs.scope.depth + 1
	} else {
		s.depth = 1
	}
	cs.scope = s
	cs.pushes++
	return s
}

// PushScope 进入块作用域；isLoop 时分配 break/continue 标签，
// label 非空时该作用域可作为具名 break 的目标
func (cs *CompileStack) PushScope(isLoop bool, label string) {
	s := &scope{isLoop: isLoop}
	if label != "" {
		s.labels = []string{label}
	}
	if isLoop || label != "" {
		s.breakLabel = cs.code.NewLabel()
	}
	if isLoop {
		s.continueLabel = cs.code.NewLabel()
	}
	cs.push(s)
}

// PushLoop 进入循环作用域，可同时挂多个标签
func (cs *CompileStack) PushLoop(labels ...string) {
	cs.PushScope(true, "")
	cs.scope.labels = append(cs.scope.labels, labels...)
}

// PushSwitch 进入 switch 作用域：只有 break 标签
func (cs *CompileStack) PushSwitch() {
	cs.push(&scope{isSwitch: true, breakLabel: cs.code.NewLabel()})
}

// PushTemporaryScope 进入临时作用域（布尔表达式、try 子块），不承载标签
func (cs *CompileStack) PushTemporaryScope() {
	cs.push(&scope{temporary: true})
}

// PopScope 离开作用域，结束其中变量的生命周期并回收槽位
func (cs *CompileStack) PopScope() {
	s := cs.scope
	if s == nil {
		cs.raise(errors.I0001, "popScope without matching pushScope")
		return
	}
	if len(cs.finallies) > s.finallyMark {
		cs.raise(errors.I0001, "scope popped with %d pending finally blocks", len(cs.finallies)-s.finallyMark)
	}
	if len(s.order) > 0 {
		end := cs.code.NewLabel()
		cs.code.Mark(end)
		for _, v := range s.order {
			v.EndLabel = end
			if cs.debugLocals && !v.temporary {
				cs.code.LocalVariable(v.Name, TypeDescriptor(v.SlotType()), v.Index, v.StartLabel, end)
			}
		}
	}
	for _, t := range cs.temps {
		if s.vars[t.Name] == t {
			cs.raise(errors.I0006, "temporary %s still live at scope end", t.Name)
		}
	}
	cs.nextIndex = s.savedIndex
	cs.scope = s.parent
	cs.pops++
}

// ============================================================================
// 变量声明与查找
// ============================================================================

// Declare 在当前作用域声明变量并分配槽位
func (cs *CompileStack) Declare(name string, typ *ast.TypeRef) *Variable {
	if cs.scope == nil {
		cs.raise(errors.I0001, "declare %s outside any scope", name)
	}
	if typ == nil {
		typ = ast.DynamicType
	}
	v := &Variable{
		Name:   name,
		Type:   typ,
		Index:  cs.nextIndex,
		Holder: cs.holders[name],
	}
	cs.nextIndex += SlotSize(v.SlotType())
	cs.code.ReserveLocals(cs.nextIndex)
	v.StartLabel = cs.code.NewLabel()
	cs.code.Mark(v.StartLabel)
	cs.scope.vars[name] = v
	cs.scope.order = append(cs.scope.order, v)
	return v
}

// DeclareTemporary 声明编译器内部使用的临时变量，返回槽位。
// 临时变量必须按后进先出的顺序释放。
func (cs *CompileStack) DeclareTemporary(name string, typ *ast.TypeRef) int {
	if cs.scope == nil {
		cs.raise(errors.I0001, "declare temporary %s outside any scope", name)
	}
	if typ == nil {
		typ = ast.DynamicType
	}
	v := &Variable{Name: name, Type: typ, Index: cs.nextIndex, temporary: true}
	cs.nextIndex += SlotSize(typ)
	cs.code.ReserveLocals(cs.nextIndex)
	cs.scope.vars[name] = v
	cs.temps = append(cs.temps, v)
	return v.Index
}

// ReleaseTemporary 释放最近声明的临时变量
func (cs *CompileStack) ReleaseTemporary(index int) {
	n := len(cs.temps)
	if n == 0 || cs.temps[n-1].Index != index {
		cs.raise(errors.I0006, "temporary slot %d released out of order", index)
		return
	}
	v := cs.temps[n-1]
	cs.temps = cs.temps[:n-1]
	for s := cs.scope; s != nil; s = s.parent {
		if s.vars[v.Name] == v {
			delete(s.vars, v.Name)
			break
		}
	}
	if v.Index+SlotSize(v.Type) == cs.nextIndex {
		cs.nextIndex = v.Index
	}
}

// Lookup 由内向外查找变量
func (cs *CompileStack) Lookup(name string) (*Variable, bool) {
	for s := cs.scope; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// MustLookup 查找变量，找不到时抛出内部错误
func (cs *CompileStack) MustLookup(name string) *Variable {
	v, ok := cs.Lookup(name)
	if !ok {
		cs.raise(errors.I0002, "variable %s not defined", name)
	}
	return v
}

// DefineParameters 为参数分配槽位；需要共享的参数在入口处改存为 Reference 单元
func (cs *CompileStack) DefineParameters(params []*ast.Parameter) []*Variable {
	vars := make([]*Variable, len(params))
	for i, p := range params {
		v := &Variable{Name: p.Name, Type: p.Type, Index: cs.nextIndex}
		if v.Type == nil {
			v.Type = ast.DynamicType
		}
		cs.nextIndex += SlotSize(v.Type)
		cs.code.ReserveLocals(cs.nextIndex)
		v.StartLabel = cs.code.NewLabel()
		cs.code.Mark(v.StartLabel)
		cs.scope.vars[p.Name] = v
		cs.scope.order = append(cs.scope.order, v)
		vars[i] = v
	}

	pool := cs.code.Pool
	for i, p := range params {
		if !p.ClosureShared && !cs.holders[p.Name] {
			continue
		}
		v := vars[i]
		cs.code.EmitU16(bytecode.OpNew, pool.AddClass(referenceClass))
		cs.code.Emit(bytecode.OpDup)
		cs.code.EmitLocal(LoadOp(v.Type), v.Index)
		Box(cs.code, v.Type)
		cs.code.EmitU16(bytecode.OpInvokeSpecial, pool.AddMethodRef(referenceClass, "<init>", "(Ljava/lang/Object;)V"))
		cs.code.EmitLocal(bytecode.OpAStore, v.Index)
		v.Holder = true
	}
	return vars
}

// ============================================================================
// 标签
// ============================================================================

// NewLabel 创建新标签
func (cs *CompileStack) NewLabel() *bytecode.Label { return cs.code.NewLabel() }

// BreakLabel 最内层循环或 switch 的 break 标签，不存在时返回 nil
func (cs *CompileStack) BreakLabel() *bytecode.Label {
	for s := cs.scope; s != nil; s = s.parent {
		if s.isLoop || s.isSwitch {
			return s.breakLabel
		}
	}
	return nil
}

// ContinueLabel 最内层循环的 continue 标签，不存在时返回 nil
func (cs *CompileStack) ContinueLabel() *bytecode.Label {
	for s := cs.scope; s != nil; s = s.parent {
		if s.isLoop {
			return s.continueLabel
		}
	}
	return nil
}

// NamedBreakLabel 具名 break 的目标标签
func (cs *CompileStack) NamedBreakLabel(name string) *bytecode.Label {
	for s := cs.scope; s != nil; s = s.parent {
		if s.hasLabel(name) {
			return s.breakLabel
		}
	}
	return nil
}

// NamedContinueLabel 具名 continue 的目标标签，标签不在循环上时返回 nil
func (cs *CompileStack) NamedContinueLabel(name string) *bytecode.Label {
	for s := cs.scope; s != nil; s = s.parent {
		if s.hasLabel(name) {
			return s.continueLabel
		}
	}
	return nil
}

// LabelNames 当前可见的全部标签名
func (cs *CompileStack) LabelNames() []string {
	var names []string
	for s := cs.scope; s != nil; s = s.parent {
		names = append(names, s.labels...)
	}
	return names
}

// ============================================================================
// finally 义务
// ============================================================================

// RegisterFinally 登记 finally 代码块；body 为 nil 表示只有 catch 的 try
func (cs *CompileStack) RegisterFinally(body func()) *finallyBlock {
	fb := &finallyBlock{body: body, index: len(cs.finallies)}
	cs.finallies = append(cs.finallies, fb)
	return fb
}

// PopFinally 移除最近登记的 finally
func (cs *CompileStack) PopFinally() {
	n := len(cs.finallies)
	if n == 0 {
		cs.raise(errors.I0001, "popFinally without registered finally")
		return
	}
	cs.finallies = cs.finallies[:n-1]
}

// HasFinally 当前是否有需要在 return 前重放的 finally
func (cs *CompileStack) HasFinally() bool {
	for _, fb := range cs.finallies {
		if fb.body != nil {
			return true
		}
	}
	return false
}

func (cs *CompileStack) scopeOf(target *bytecode.Label) *scope {
	for s := cs.scope; s != nil; s = s.parent {
		if s.breakLabel == target || s.continueLabel == target {
			return s
		}
	}
	return nil
}

// ApplyFinallyBlocksForExit 在跳往 target 之前由内向外内联重放被跳出的 finally。
// target 为 nil 表示 return，重放全部 finally。
// 重放的指令范围会从所有被跳出的 try 的异常区间中排除。
func (cs *CompileStack) ApplyFinallyBlocksForExit(target *bytecode.Label, isBreak bool) {
	mark := 0
	if target != nil {
		s := cs.scopeOf(target)
		if s == nil {
			kind := "continue"
			if isBreak {
				kind = "break"
			}
			cs.raise(errors.I0005, "%s target %s is not an enclosing scope", kind, target)
			return
		}
		mark = s.finallyMark
	}
	if mark >= len(cs.finallies) {
		return
	}

	// 每个义务从自己的重放起点排除到全部重放结束，
	// 内层 finally 的重放仍在外层 try 的异常区间内
	end := cs.code.NewLabel()
	saved := cs.finallies
	for i := len(saved) - 1; i >= mark; i-- {
		start := cs.code.NewLabel()
		cs.code.Mark(start)
		// 重放期间 finally 体内的跳转只看到更外层的义务
		cs.finallies = saved[:i]
		if saved[i].body != nil {
			saved[i].body()
		}
		saved[i].gaps = append(saved[i].gaps, gap{start, end})
	}
	cs.finallies = saved
	cs.code.Mark(end)
}

// RunFinally 在正常完成路径上内联一次 fb，范围同样从异常区间中排除
func (cs *CompileStack) RunFinally(fb *finallyBlock) {
	if fb.body == nil {
		return
	}
	start := cs.code.NewLabel()
	cs.code.Mark(start)
	saved := cs.finallies
	if fb.index < len(saved) {
		cs.finallies = saved[:fb.index]
	}
	fb.body()
	cs.finallies = saved
	end := cs.code.NewLabel()
	cs.code.Mark(end)
	fb.gaps = append(fb.gaps, gap{start, end})
}

// Ranges 把 [start, end) 切掉 fb 中记录的重放范围后返回剩余区间
func (fb *finallyBlock) Ranges(start, end *bytecode.Label) [][2]*bytecode.Label {
	var out [][2]*bytecode.Label
	cur := start
	for _, g := range sortedGaps(fb.gaps) {
		if g.start.Offset() < cur.Offset() || g.start.Offset() >= end.Offset() {
			continue
		}
		if g.start.Offset() > cur.Offset() {
			out = append(out, [2]*bytecode.Label{cur, g.start})
		}
		cur = g.end
	}
	if cur.Offset() < end.Offset() {
		out = append(out, [2]*bytecode.Label{cur, end})
	}
	return out
}

func sortedGaps(gaps []gap) []gap {
	out := append([]gap(nil), gaps...)
	sort.Slice(out, func(i, j int) bool { return out[i].start.Offset() < out[j].start.Offset() })
	return out
}
