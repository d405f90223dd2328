package compiler

import (
	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 赋值
// ============================================================================

// store 把栈顶 t 类型的值存入目标表达式
func (g *ClassGenerator) store(target ast.Expression, t *ast.TypeRef) {
	saved, savedType := g.leftHand, g.storeType
	g.leftHand, g.storeType = true, t
	g.compileExpr(target)
	g.leftHand, g.storeType = saved, savedType
}

// compileAssign x = v，表达式的值为 v
func (g *ClassGenerator) compileAssign(e *ast.BinaryExpr) *ast.TypeRef {
	if idx, ok := e.Left.(*ast.BinaryExpr); ok && idx.Op == token.LEFT_SQUARE {
		// x, i, v -> v, x, i, v -> v
		g.compileBoxed(idx.Left)
		g.compileBoxed(idx.Right)
		t := g.compileBoxed(e.Right)
		g.emit(bytecode.OpDupX2)
		g.invokeMethod("putAt", 2)
		g.emit(bytecode.OpPop)
		return t
	}
	t := g.compileValue(e.Right)
	g.emit(bytecode.OpDup)
	g.store(e.Left, t)
	return t
}

// lvalue 复合赋值与自增自减的目标：接收者与下标只求值一次
type lvalue struct {
	load    func() *ast.TypeRef
	store   func(t *ast.TypeRef) // 弹出栈顶的值存入目标
	release func()
}

// tempVar 把栈顶的值存入临时变量，返回引用它的变量表达式
func (g *ClassGenerator) tempVar(t *ast.TypeRef, pos token.Position) (*ast.VariableExpr, int) {
	name := g.ctx.NextSyntheticName("tmp")
	idx := g.stack.DeclareTemporary(name, t)
	g.code.EmitLocal(StoreOp(t), idx)
	return &ast.VariableExpr{Position: pos, Name: name, Type: t}, idx
}

func (g *ClassGenerator) lvalueOf(target ast.Expression) *lvalue {
	direct := func(x ast.Expression) *lvalue {
		return &lvalue{
			load:    func() *ast.TypeRef { return g.compileValue(x) },
			store:   func(t *ast.TypeRef) { g.store(x, t) },
			release: func() {},
		}
	}

	switch x := target.(type) {
	case *ast.VariableExpr:
		return direct(x)
	case *ast.FieldExpr:
		if isImplicit(x.Object) || x.Field.IsStatic() {
			return direct(x)
		}
		obj, slot := g.tempVar(g.compileValue(x.Object), x.Position)
		lv := direct(&ast.FieldExpr{Position: x.Position, Object: obj, Field: x.Field})
		lv.release = func() { g.stack.ReleaseTemporary(slot) }
		return lv
	case *ast.PropertyExpr:
		if isImplicit(x.Object) {
			return direct(x)
		}
		obj, slot := g.tempVar(g.compileBoxed(x.Object), x.Position)
		lv := direct(&ast.PropertyExpr{Position: x.Position, Object: obj, Name: x.Name})
		lv.release = func() { g.stack.ReleaseTemporary(slot) }
		return lv
	case *ast.BinaryExpr:
		if x.Op != token.LEFT_SQUARE {
			break
		}
		obj, objSlot := g.tempVar(g.compileBoxed(x.Left), x.Position)
		index, indexSlot := g.tempVar(g.compileBoxed(x.Right), x.Position)
		return &lvalue{
			load: func() *ast.TypeRef {
				return g.compileExpr(&ast.BinaryExpr{Position: x.Position, Op: token.LEFT_SQUARE, Left: obj, Right: index})
			},
			store: func(t *ast.TypeRef) {
				Box(g.code, t)
				value, valueSlot := g.tempVar(t.Wrapper(), x.Position)
				g.compileExpr(obj)
				g.compileExpr(index)
				g.compileExpr(value)
				g.invokeMethod("putAt", 2)
				g.emit(bytecode.OpPop)
				g.stack.ReleaseTemporary(valueSlot)
			},
			release: func() {
				g.stack.ReleaseTemporary(indexSlot)
				g.stack.ReleaseTemporary(objSlot)
			},
		}
	}
	errors.Raise(errors.I0004, target.Pos(), "%T cannot be assigned to", target)
	return nil
}

// compileCompoundAssign x op= v 等价于 x = x.op(v)，x 的子表达式只求值一次
func (g *ClassGenerator) compileCompoundAssign(e *ast.BinaryExpr) *ast.TypeRef {
	name, ok := operatorMethods[e.Op.BaseOperator()]
	if !ok {
		g.unsupported(e)
	}
	lv := g.lvalueOf(e.Left)
	Box(g.code, lv.load())
	g.compileBoxed(e.Right)
	g.invokeMethod(name, 1)
	g.emit(bytecode.OpDup)
	lv.store(ast.DynamicType)
	lv.release()
	return ast.DynamicType
}

// compileIncDec ++x 的值为新值，x++ 的值为旧值
func (g *ClassGenerator) compileIncDec(target ast.Expression, op token.TokenType, postfix bool) *ast.TypeRef {
	method := "next"
	if op == token.DECREMENT {
		method = "previous"
	}
	lv := g.lvalueOf(target)
	Box(g.code, lv.load())
	if postfix {
		g.emit(bytecode.OpDup)
		g.invokeMethod(method, 0)
	} else {
		g.invokeMethod(method, 0)
		g.emit(bytecode.OpDup)
	}
	lv.store(ast.DynamicType)
	lv.release()
	return ast.DynamicType
}
