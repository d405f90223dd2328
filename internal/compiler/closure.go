package compiler

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 闭包
// ============================================================================
//
// 每个闭包字面量生成一个 groovy/lang/Closure 的子类 Outer$_closureN：
// 1. 每个捕获变量一个私有字段；被修改的变量以 Reference 单元共享
// 2. 构造函数 (owner, thisObject, 捕获变量...) 先调用父类构造函数再保存字段
// 3. doCall 承载闭包体，call 以相同参数转发到 doCall
// 4. 每个捕获变量一个 getter
//
// 创建处把 owner、thisObject 与捕获变量的当前值（或其单元）传给构造函数。
//
// ============================================================================

// closureCapture 闭包捕获的外部变量
type closureCapture struct {
	Name   string
	Type   *ast.TypeRef // 变量的声明类型
	Holder bool         // 以 Reference 单元共享
	field  *ast.FieldNode
}

// fieldType 闭包类中保存该变量的字段类型
func (c *closureCapture) fieldType() *ast.TypeRef {
	if c.Holder {
		return ast.ReferenceType
	}
	return c.Type
}

// closureInfo 正在生成的闭包类的上下文
type closureInfo struct {
	outer    *ast.ClassNode // this 所指的外部类
	static   bool           // 在静态上下文中创建，thisObject 为 null
	captures map[string]*closureCapture
}

func (g *ClassGenerator) capture(name string) *closureCapture {
	if g.closure == nil {
		return nil
	}
	return g.closure.captures[name]
}

func (g *ClassGenerator) loadCapture(c *closureCapture) *ast.TypeRef {
	g.code.EmitLocal(bytecode.OpALoad, 0)
	g.emitConst(bytecode.OpGetField, g.fieldRef(c.field))
	if c.Holder {
		g.invoke(bytecode.OpInvokeVirtual, referenceClass, "get", "()Ljava/lang/Object;")
		Cast(g.code, ast.DynamicType, c.Type)
	}
	return c.Type
}

func (g *ClassGenerator) storeCapture(c *closureCapture, typ *ast.TypeRef) {
	Cast(g.code, typ, c.Type)
	if c.Holder {
		// value -> value, cell -> cell, value
		Box(g.code, c.Type)
		g.code.EmitLocal(bytecode.OpALoad, 0)
		g.emitConst(bytecode.OpGetField, g.fieldRef(c.field))
		g.emit(bytecode.OpSwap)
		g.invoke(bytecode.OpInvokeVirtual, referenceClass, "set", "(Ljava/lang/Object;)V")
		return
	}
	g.code.EmitLocal(bytecode.OpALoad, 0)
	g.emit(bytecode.OpSwap)
	g.emitConst(bytecode.OpPutField, g.fieldRef(c.field))
}

// loadCell 压入共享变量的 Reference 单元本身
func (g *ClassGenerator) loadCell(name string) {
	if v, ok := g.stack.Lookup(name); ok {
		g.code.EmitLocal(bytecode.OpALoad, v.Index)
		return
	}
	c := g.capture(name)
	g.code.EmitLocal(bytecode.OpALoad, 0)
	g.emitConst(bytecode.OpGetField, g.fieldRef(c.field))
}

// ============================================================================
// 捕获分析
// ============================================================================

// freeVariables 闭包体引用但未在闭包内声明的名称，按首次出现的顺序
func freeVariables(e *ast.ClosureExpr) []string {
	declared := make(map[string]bool)
	declareParams := func(params []*ast.Parameter) {
		if params == nil {
			declared["it"] = true
		}
		for _, p := range params {
			declared[p.Name] = true
		}
	}
	declareParams(e.Params)

	var refs []string
	seen := make(map[string]bool)
	ast.Inspect(e.Code, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.DeclarationExpr:
			declared[x.Var.Name] = true
		case *ast.ForInStmt:
			declared[x.Var.Name] = true
		case *ast.CatchStmt:
			declared[x.Param.Name] = true
		case *ast.ClosureExpr:
			declareParams(x.Params)
		case *ast.VariableExpr:
			if !seen[x.Name] {
				seen[x.Name] = true
				refs = append(refs, x.Name)
			}
		}
		return true
	})

	free := refs[:0]
	for _, name := range refs {
		if !declared[name] {
			free = append(free, name)
		}
	}
	return free
}

// holderNames 方法中需要以 Reference 单元保存的变量：
// 解析阶段标记为共享的，以及被闭包捕获且在任意位置被赋值的
func holderNames(params []*ast.Parameter, body ast.Statement) map[string]bool {
	holders := make(map[string]bool)
	for _, p := range params {
		if p.ClosureShared {
			holders[p.Name] = true
		}
	}
	if body == nil {
		return holders
	}

	assigned := make(map[string]bool)
	captured := make(map[string]bool)
	mark := func(x ast.Expression) {
		if v, ok := x.(*ast.VariableExpr); ok {
			assigned[v.Name] = true
		}
	}
	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.BinaryExpr:
			if x.Op.IsAssignment() {
				mark(x.Left)
			}
		case *ast.PrefixExpr:
			mark(x.X)
		case *ast.PostfixExpr:
			mark(x.X)
		case *ast.DeclarationExpr:
			if x.Var.ClosureShared {
				holders[x.Var.Name] = true
			}
		case *ast.ClosureExpr:
			for _, name := range freeVariables(x) {
				captured[name] = true
			}
		}
		return true
	})
	for name := range captured {
		if assigned[name] {
			holders[name] = true
		}
	}
	return holders
}

// ============================================================================
// 闭包类生成
// ============================================================================

func (g *ClassGenerator) compileClosure(e *ast.ClosureExpr) *ast.TypeRef {
	outer := g.outerClass()
	static := g.staticContext()

	var captures []*closureCapture
	for _, name := range freeVariables(e) {
		if v, ok := g.stack.Lookup(name); ok {
			captures = append(captures, &closureCapture{Name: name, Type: v.Type, Holder: v.Holder})
		} else if c := g.capture(name); c != nil {
			captures = append(captures, &closureCapture{Name: name, Type: c.Type, Holder: c.Holder})
		}
	}

	cls := buildClosureClass(g.ctx.NextClosureName(g.class.Name), outer, e, captures)
	NewVerifier(g.opts).VisitClass(cls, g.errs)

	info := &closureInfo{outer: outer, static: static, captures: make(map[string]*closureCapture, len(captures))}
	for _, c := range captures {
		info.captures[c.Name] = c
	}
	child := NewClassGenerator(g.ctx, g.opts, g.errs)
	child.closure = info
	g.outputs = append(g.outputs, child.generate(cls)...)
	g.log.Debug("generated closure",
		zap.String("closure", cls.Name),
		zap.String("outer", outer.Name),
		zap.Int("captures", len(captures)))

	name := ClassInternalName(cls)
	g.emitClass(bytecode.OpNew, name)
	g.emit(bytecode.OpDup)
	switch {
	case static:
		g.emit(bytecode.OpAConstNull)
		g.emit(bytecode.OpAConstNull)
	case g.closure != nil:
		g.code.EmitLocal(bytecode.OpALoad, 0)
		g.code.EmitLocal(bytecode.OpALoad, 0)
		g.invoke(bytecode.OpInvokeVirtual, closureClass, "getThisObject", "()Ljava/lang/Object;")
	default:
		g.code.EmitLocal(bytecode.OpALoad, 0)
		g.code.EmitLocal(bytecode.OpALoad, 0)
	}
	for _, c := range captures {
		if c.Holder {
			g.loadCell(c.Name)
			continue
		}
		Cast(g.code, g.compileVariable(&ast.VariableExpr{Position: e.Position, Name: c.Name}), c.Type)
	}
	g.invoke(bytecode.OpInvokeSpecial, name, ast.ConstructorName, MethodDescriptorOf(cls.Constructors[0]))
	return ast.ClosureType
}

// buildClosureClass 构造闭包类的语法树，随后与普通类一样经过结构补全
func buildClosureClass(name string, outer *ast.ClassNode, e *ast.ClosureExpr, captures []*closureCapture) *ast.ClassNode {
	pos := e.Position
	cls := ast.NewClass(name, ast.AccPublic|ast.AccFinal|ast.AccSynthetic, ast.ClosureType)
	cls.Position = pos
	cls.Outer = outer
	cls.SourceFile = outer.SourceFile

	ctorParams := []*ast.Parameter{
		{Position: pos, Name: "_outerInstance", Type: ast.ObjectType},
		{Position: pos, Name: "_thisObject", Type: ast.ObjectType},
	}
	init := []ast.Statement{
		&ast.ExprStmt{Position: pos, X: &ast.ConstructorCallExpr{
			Position: pos,
			Special:  ast.CtorSuper,
			Args: []ast.Expression{
				&ast.VariableExpr{Position: pos, Name: "_outerInstance", Type: ast.ObjectType},
				&ast.VariableExpr{Position: pos, Name: "_thisObject", Type: ast.ObjectType},
			},
		}},
	}
	for _, c := range captures {
		f := ast.NewField(c.Name, ast.AccPrivate|ast.AccSynthetic, c.fieldType(), nil)
		f.Position = pos
		cls.AddField(f)
		c.field = f
		ctorParams = append(ctorParams, &ast.Parameter{Position: pos, Name: c.Name, Type: c.fieldType()})
		init = append(init, &ast.ExprStmt{Position: pos, X: &ast.BinaryExpr{
			Position: pos,
			Op:       token.ASSIGN,
			Left:     &ast.FieldExpr{Position: pos, Field: f},
			Right:    &ast.VariableExpr{Position: pos, Name: c.Name, Type: c.fieldType()},
		}})
	}
	ctor := ast.NewConstructor(ast.AccPublic, ctorParams, ast.Block(init...))
	ctor.Position = pos
	cls.AddMethod(ctor)

	params := e.Params
	if params == nil {
		params = []*ast.Parameter{ast.ParamWithDefault("it", ast.ObjectType, ast.Null())}
	}
	code := e.Code
	if code == nil {
		code = ast.Block()
	}
	doCall := ast.NewMethod("doCall", ast.AccPublic, ast.DynamicType, params, code)
	doCall.Position = pos
	cls.AddMethod(doCall)

	callParams := make([]*ast.Parameter, len(params))
	args := make([]ast.Expression, len(params))
	for i, p := range params {
		callParams[i] = &ast.Parameter{Position: p.Position, Name: p.Name, Type: p.Type, Default: p.Default}
		args[i] = &ast.VariableExpr{Position: pos, Name: p.Name, Type: p.Type}
	}
	call := ast.NewMethod("call", ast.AccPublic, ast.DynamicType, callParams, ast.Block(&ast.ReturnStmt{
		Position: pos,
		Value:    &ast.MethodCallExpr{Position: pos, Object: &ast.ThisExpr{Position: pos}, Name: "doCall", Args: args, Target: doCall},
	}))
	call.Position = pos
	call.Synthetic = ast.SynthClosureCall
	cls.AddMethod(call)

	for _, c := range captures {
		getter := ast.NewMethod("get"+capitalize(c.Name), ast.AccPublic, c.Type, nil, ast.Block(&ast.ReturnStmt{
			Position: pos,
			Value:    &ast.VariableExpr{Position: pos, Name: c.Name, Type: c.Type},
		}))
		getter.Position = pos
		getter.Synthetic = ast.SynthClosureGetter
		cls.AddMethod(getter)
	}
	return cls
}
