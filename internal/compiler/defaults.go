package compiler

import (
	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/errors"
)

// ============================================================================
// 默认参数转发方法
// ============================================================================

// addDefaultParameterMethods 为带默认值参数的方法与构造函数生成转发方法。
//
// m(a, b = 1, c = 2) 生成 m(a, b) 与 m(a)：从右向左依次去掉带默认值的参数，
// 转发方法用默认值补齐参数后调用原方法，每个实参都转换为形参类型。
func (v *Verifier) addDefaultParameterMethods() {
	c := v.class
	methods := append([]*ast.MethodNode(nil), c.Methods...)
	methods = append(methods, c.Constructors...)
	for _, m := range methods {
		if !m.HasDefaultValue() {
			continue
		}
		v.addDefaultParameters(m)
		for _, p := range m.Params {
			p.Default = nil
		}
	}
}

func (v *Verifier) addDefaultParameters(m *ast.MethodNode) {
	var defaulted []int
	for i, p := range m.Params {
		if p.Default != nil {
			defaulted = append(defaulted, i)
		}
	}

	// keep 表示保留前 keep 个带默认值的参数
	for keep := len(defaulted) - 1; keep >= 0; keep-- {
		dropped := make(map[int]bool)
		for _, idx := range defaulted[keep:] {
			dropped[idx] = true
		}

		var params []*ast.Parameter
		args := make([]ast.Expression, len(m.Params))
		for i, p := range m.Params {
			var arg ast.Expression
			if dropped[i] {
				arg = p.Default
			} else {
				np := &ast.Parameter{Position: p.Position, Name: p.Name, Type: p.Type, ClosureShared: p.ClosureShared}
				params = append(params, np)
				arg = &ast.VariableExpr{Position: p.Position, Name: p.Name, Type: p.Type}
			}
			args[i] = &ast.CastExpr{Position: p.Position, Type: p.Type, X: arg}
		}

		if existing := v.class.DeclaredMethod(m.Name, params); existing != nil {
			v.errs.Add(errors.E0820, m.Position,
				"The method with default parameters \"%s\" defines a method \"%s\" that is already defined.",
				methodSignature(m), methodSignature(&ast.MethodNode{Name: m.Name, Params: params})).
				WithHint(errors.SuggestionsFor(errors.E0820, nil)[0])
			continue
		}

		fwd := &ast.MethodNode{
			Position:   m.Position,
			Name:       m.Name,
			Modifiers:  m.Modifiers &^ ast.AccAbstract,
			ReturnType: m.ReturnType,
			Params:     params,
			Exceptions: m.Exceptions,
		}
		fwd.Code = ast.Block(forwardingCall(v.class, m, args))
		v.addSynthetic(fwd, ast.SynthForwarder)
	}
}

// forwardingCall 构造转发到 target 的语句
func forwardingCall(class *ast.ClassNode, target *ast.MethodNode, args []ast.Expression) ast.Statement {
	pos := target.Position
	if target.IsConstructor() {
		return &ast.ExprStmt{Position: pos, X: &ast.ConstructorCallExpr{
			Position: pos,
			Type:     class.Type(),
			Args:     args,
			Special:  ast.CtorThis,
			Target:   target,
		}}
	}

	var call ast.Expression
	if target.IsStatic() {
		call = &ast.StaticMethodCallExpr{Position: pos, Owner: class.Type(), Name: target.Name, Args: args, Target: target}
	} else {
		call = &ast.MethodCallExpr{Position: pos, Object: &ast.ThisExpr{Position: pos}, Name: target.Name, Args: args, Target: target}
	}
	if target.IsVoid() {
		return &ast.ExprStmt{Position: pos, X: call}
	}
	return &ast.ReturnStmt{Position: pos, Value: call}
}
