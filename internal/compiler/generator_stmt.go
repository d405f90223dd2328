package compiler

import (
	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
)

// ============================================================================
// 语句降级
// ============================================================================

func (g *ClassGenerator) compileStmt(stmt ast.Statement) {
	if stmt == nil {
		return
	}
	g.line(stmt.Pos())

	switch s := stmt.(type) {
	case *ast.BlockStmt:
		g.compileBlock(s)
	case *ast.ExprStmt:
		g.compileExprStmt(s)
	case *ast.IfStmt:
		g.compileIfStmt(s)
	case *ast.WhileStmt:
		g.compileWhileStmt(s)
	case *ast.DoWhileStmt:
		g.compileDoWhileStmt(s)
	case *ast.ForStmt:
		g.compileForStmt(s)
	case *ast.ForInStmt:
		g.compileForInStmt(s)
	case *ast.SwitchStmt:
		g.compileSwitchStmt(s)
	case *ast.BreakStmt:
		g.compileBreakStmt(s)
	case *ast.ContinueStmt:
		g.compileContinueStmt(s)
	case *ast.ReturnStmt:
		g.compileReturnStmt(s)
	case *ast.ThrowStmt:
		g.compileThrowStmt(s)
	case *ast.TryStmt:
		g.compileTryStmt(s)
	case *ast.SynchronizedStmt:
		g.compileSynchronizedStmt(s)
	case *ast.LabeledStmt:
		g.compileLabeledStmt(s)
	case *ast.AssertStmt:
		g.compileAssertStmt(s)
	case *ast.EmptyStmt:
	default:
		g.unsupported(stmt)
	}
}

func (g *ClassGenerator) compileBlock(s *ast.BlockStmt) {
	g.stack.PushScope(false, "")
	for _, st := range s.Stmts {
		g.compileStmt(st)
	}
	g.stack.PopScope()
}

func (g *ClassGenerator) compileExprStmt(s *ast.ExprStmt) {
	if t := g.compileExpr(s.X); !t.IsVoid() {
		g.emit(bytecode.OpPop)
	}
}

func (g *ClassGenerator) compileThrowStmt(s *ast.ThrowStmt) {
	g.compileValue(s.X)
	g.emit(bytecode.OpAThrow)
}

// takeLabels 取走紧挨在循环前的标签
func (g *ClassGenerator) takeLabels() []string {
	labels := g.pendingLabels
	g.pendingLabels = nil
	return labels
}

// ============================================================================
// 条件与循环
// ============================================================================

func (g *ClassGenerator) compileIfStmt(s *ast.IfStmt) {
	elseLabel := g.newLabel()
	g.compileCondition(s.Cond)
	g.emitJump(bytecode.OpIfEq, elseLabel)
	g.compileStmt(s.Then)
	if s.Else == nil {
		g.mark(elseLabel)
		return
	}
	end := g.newLabel()
	g.emitJump(bytecode.OpGoto, end)
	g.mark(elseLabel)
	g.compileStmt(s.Else)
	g.mark(end)
}

func (g *ClassGenerator) compileWhileStmt(s *ast.WhileStmt) {
	g.stack.PushLoop(g.takeLabels()...)
	cont, brk := g.stack.ContinueLabel(), g.stack.BreakLabel()
	g.mark(cont)
	g.compileCondition(s.Cond)
	g.emitJump(bytecode.OpIfEq, brk)
	g.compileStmt(s.Body)
	g.emitJump(bytecode.OpGoto, cont)
	g.mark(brk)
	g.stack.PopScope()
}

func (g *ClassGenerator) compileDoWhileStmt(s *ast.DoWhileStmt) {
	g.stack.PushLoop(g.takeLabels()...)
	cont, brk := g.stack.ContinueLabel(), g.stack.BreakLabel()
	top := g.newLabel()
	g.mark(top)
	g.compileStmt(s.Body)
	g.mark(cont)
	g.compileCondition(s.Cond)
	g.emitJump(bytecode.OpIfNe, top)
	g.mark(brk)
	g.stack.PopScope()
}

func (g *ClassGenerator) compileForStmt(s *ast.ForStmt) {
	labels := g.takeLabels()
	// 初始化部分声明的变量在整个循环内可见
	g.stack.PushScope(false, "")
	for _, e := range s.Init {
		g.compileEffect(e)
	}

	g.stack.PushLoop(labels...)
	cont, brk := g.stack.ContinueLabel(), g.stack.BreakLabel()
	top := g.newLabel()
	g.mark(top)
	if s.Cond != nil {
		g.compileCondition(s.Cond)
		g.emitJump(bytecode.OpIfEq, brk)
	}
	g.compileStmt(s.Body)
	g.mark(cont)
	for _, e := range s.Update {
		g.compileEffect(e)
	}
	g.emitJump(bytecode.OpGoto, top)
	g.mark(brk)
	g.stack.PopScope()
	g.stack.PopScope()
}

// compileForInStmt 使用迭代器协议：iterator()、hasNext()、next()
func (g *ClassGenerator) compileForInStmt(s *ast.ForInStmt) {
	g.stack.PushLoop(g.takeLabels()...)
	cont, brk := g.stack.ContinueLabel(), g.stack.BreakLabel()

	g.compileValue(s.Collection)
	g.invokeMethod("iterator", 0)
	iter := g.temp(ast.IteratorType)

	g.mark(cont)
	g.code.EmitLocal(bytecode.OpALoad, iter)
	g.invokeMethod("hasNext", 0)
	g.emit(bytecode.OpTruth)
	g.emitJump(bytecode.OpIfEq, brk)

	// 循环变量每次迭代重新声明，被闭包捕获时每次得到新的单元
	g.stack.PushScope(false, "")
	g.code.EmitLocal(bytecode.OpALoad, iter)
	g.invokeMethod("next", 0)
	g.declareVariable(s.Var.Name, s.Var.Type, ast.DynamicType)
	g.compileStmt(s.Body)
	g.stack.PopScope()
	g.emitJump(bytecode.OpGoto, cont)

	g.mark(brk)
	g.stack.ReleaseTemporary(iter)
	g.stack.PopScope()
}

// ============================================================================
// switch
// ============================================================================

// compileSwitchStmt 依次用 case 值的 isCase 测试 switch 值，命中后跳到对应分支；
// 分支按顺序排列，没有 break 时落入下一个分支，default 排在最后
func (g *ClassGenerator) compileSwitchStmt(s *ast.SwitchStmt) {
	g.stack.PushSwitch()
	brk := g.stack.BreakLabel()

	g.compileBoxed(s.X)
	value := g.temp(ast.DynamicType)

	bodies := make([]*bytecode.Label, len(s.Cases))
	for i, c := range s.Cases {
		bodies[i] = g.newLabel()
		g.line(c.Pos())
		g.compileBoxed(c.Value)
		g.code.EmitLocal(bytecode.OpALoad, value)
		g.invokeMethod("isCase", 1)
		g.emit(bytecode.OpTruth)
		g.emitJump(bytecode.OpIfNe, bodies[i])
	}
	var def *bytecode.Label
	if s.Default != nil {
		def = g.newLabel()
		g.emitJump(bytecode.OpGoto, def)
	} else {
		g.emitJump(bytecode.OpGoto, brk)
	}

	for i, c := range s.Cases {
		g.mark(bodies[i])
		g.compileStmt(c.Body)
	}
	if def != nil {
		g.mark(def)
		g.compileStmt(s.Default)
	}
	g.mark(brk)
	g.stack.ReleaseTemporary(value)
	g.stack.PopScope()
}

// ============================================================================
// 跳转
// ============================================================================

func (g *ClassGenerator) compileBreakStmt(s *ast.BreakStmt) {
	var target *bytecode.Label
	if s.Label == "" {
		if target = g.stack.BreakLabel(); target == nil {
			g.errs.Add(errors.E0844, s.Position, "the break statement is only allowed inside loops or switches")
			return
		}
	} else if target = g.stack.NamedBreakLabel(s.Label); target == nil {
		g.unknownLabel(s.Label, s)
		return
	}
	g.stack.ApplyFinallyBlocksForExit(target, true)
	g.emitJump(bytecode.OpGoto, target)
}

func (g *ClassGenerator) compileContinueStmt(s *ast.ContinueStmt) {
	var target *bytecode.Label
	if s.Label == "" {
		if target = g.stack.ContinueLabel(); target == nil {
			g.errs.Add(errors.E0844, s.Position, "the continue statement is only allowed inside loops")
			return
		}
	} else if target = g.stack.NamedContinueLabel(s.Label); target == nil {
		if g.stack.NamedBreakLabel(s.Label) != nil {
			g.errs.Add(errors.E0844, s.Position, "the continue target '%s' is not a loop", s.Label)
			return
		}
		g.unknownLabel(s.Label, s)
		return
	}
	g.stack.ApplyFinallyBlocksForExit(target, false)
	g.emitJump(bytecode.OpGoto, target)
}

func (g *ClassGenerator) unknownLabel(label string, n ast.Node) {
	err := g.errs.Add(errors.E0845, n.Pos(), "cannot find label '%s'", label)
	if similar := errors.FindSimilar(label, g.stack.LabelNames(), 2); similar != "" {
		for _, h := range errors.SuggestionsFor(errors.E0845, map[string]string{"similar": similar}) {
			err.WithHint(h)
		}
	}
}

func (g *ClassGenerator) compileLabeledStmt(s *ast.LabeledStmt) {
	switch s.Body.(type) {
	case *ast.WhileStmt, *ast.DoWhileStmt, *ast.ForStmt, *ast.ForInStmt, *ast.LabeledStmt:
		g.pendingLabels = append(g.pendingLabels, s.Label)
		g.compileStmt(s.Body)
		return
	}
	labels := append(g.takeLabels(), s.Label)
	g.stack.PushScope(false, labels[0])
	for _, l := range labels[1:] {
		g.stack.scope.labels = append(g.stack.scope.labels, l)
	}
	brk := g.stack.NamedBreakLabel(s.Label)
	g.compileStmt(s.Body)
	g.mark(brk)
	g.stack.PopScope()
}

// ============================================================================
// return
// ============================================================================

func (g *ClassGenerator) returnType() *ast.TypeRef {
	m := g.method
	if m.IsConstructor() || m.IsStaticInit() {
		return ast.VoidType
	}
	if m.ReturnType == nil {
		return ast.DynamicType
	}
	return m.ReturnType
}

func (g *ClassGenerator) compileReturnStmt(s *ast.ReturnStmt) {
	ret := g.returnType()
	if ret.IsVoid() {
		if s.Value != nil {
			g.compileEffect(s.Value)
		}
		g.stack.ApplyFinallyBlocksForExit(nil, false)
		g.emit(bytecode.OpReturn)
		return
	}

	if s.Value == nil {
		g.emit(bytecode.OpAConstNull)
		Cast(g.code, ast.DynamicType, ret)
	} else {
		Cast(g.code, g.compileValue(s.Value), ret)
	}
	if g.stack.HasFinally() {
		// 返回值先存起来，重放 finally 后再取回
		tmp := g.temp(ret)
		g.stack.ApplyFinallyBlocksForExit(nil, false)
		g.code.EmitLocal(LoadOp(ret), tmp)
		g.stack.ReleaseTemporary(tmp)
	}
	g.emit(ReturnOp(ret))
}

// ============================================================================
// try / catch / finally
// ============================================================================

// compileTryStmt 把 finally 代码内联到每个出口：正常完成、每个 catch 结束、
// 以及 return/break/continue；另有一个捕获任意异常的处理器执行 finally 后重新抛出。
// 内联的 finally 指令从所有异常区间中排除。
func (g *ClassGenerator) compileTryStmt(s *ast.TryStmt) {
	var body func()
	if s.Finally != nil {
		body = func() { g.compileStmt(s.Finally) }
	}
	fb := g.stack.RegisterFinally(body)

	start := g.newLabel()
	g.mark(start)
	g.stack.PushTemporaryScope()
	g.compileStmt(s.Body)
	g.stack.PopScope()
	bodyEnd := g.newLabel()
	g.mark(bodyEnd)

	after := g.newLabel()
	g.stack.RunFinally(fb)
	g.emitJump(bytecode.OpGoto, after)

	handlers := make([]*bytecode.Label, len(s.Catches))
	for i, c := range s.Catches {
		handlers[i] = g.newLabel()
		g.mark(handlers[i])
		g.line(c.Pos())
		g.stack.PushScope(false, "")
		g.declareVariable(c.Param.Name, c.Param.Type, ast.ThrowableType)
		g.compileStmt(c.Body)
		g.stack.PopScope()
		g.stack.RunFinally(fb)
		g.emitJump(bytecode.OpGoto, after)
	}
	catchesEnd := g.newLabel()
	g.mark(catchesEnd)

	for i, c := range s.Catches {
		catchType := InternalName(Erasure(c.Param.Type))
		for _, r := range fb.Ranges(start, bodyEnd) {
			g.code.AddTryCatch(r[0], r[1], handlers[i], catchType)
		}
	}
	g.stack.PopFinally()

	if s.Finally != nil {
		any := g.newLabel()
		g.mark(any)
		exc := g.temp(ast.ThrowableType)
		g.compileStmt(s.Finally)
		g.code.EmitLocal(bytecode.OpALoad, exc)
		g.emit(bytecode.OpAThrow)
		g.stack.ReleaseTemporary(exc)
		for _, r := range fb.Ranges(start, catchesEnd) {
			g.code.AddTryCatch(r[0], r[1], any, "")
		}
	}
	g.mark(after)
}

// compileSynchronizedStmt 进入监视器后把释放监视器登记为 finally 义务
func (g *ClassGenerator) compileSynchronizedStmt(s *ast.SynchronizedStmt) {
	g.compileBoxed(s.Lock)
	g.emit(bytecode.OpDup)
	lock := g.temp(ast.DynamicType)
	g.emit(bytecode.OpMonitorEnter)

	fb := g.stack.RegisterFinally(func() {
		g.code.EmitLocal(bytecode.OpALoad, lock)
		g.emit(bytecode.OpMonitorExit)
	})
	start := g.newLabel()
	g.mark(start)
	g.compileStmt(s.Body)
	end := g.newLabel()
	g.mark(end)
	after := g.newLabel()
	g.stack.RunFinally(fb)
	g.emitJump(bytecode.OpGoto, after)
	g.stack.PopFinally()

	handler := g.newLabel()
	g.mark(handler)
	exc := g.temp(ast.ThrowableType)
	g.code.EmitLocal(bytecode.OpALoad, lock)
	g.emit(bytecode.OpMonitorExit)
	g.code.EmitLocal(bytecode.OpALoad, exc)
	g.emit(bytecode.OpAThrow)
	g.stack.ReleaseTemporary(exc)
	for _, r := range fb.Ranges(start, end) {
		g.code.AddTryCatch(r[0], r[1], handler, "")
	}

	g.mark(after)
	g.stack.ReleaseTemporary(lock)
}

// ============================================================================
// assert
// ============================================================================

func (g *ClassGenerator) compileAssertStmt(s *ast.AssertStmt) {
	ok := g.newLabel()
	g.compileCondition(s.Cond)
	g.emitJump(bytecode.OpIfNe, ok)
	g.emitClass(bytecode.OpNew, assertionClass)
	g.emit(bytecode.OpDup)
	if s.Message != nil {
		g.compileBoxed(s.Message)
	} else {
		g.emitConst(bytecode.OpLdc, g.pool.AddString("Assertion failed"))
	}
	g.invoke(bytecode.OpInvokeSpecial, assertionClass, ast.ConstructorName, "(Ljava/lang/Object;)V")
	g.emit(bytecode.OpAThrow)
	g.mark(ok)
}
