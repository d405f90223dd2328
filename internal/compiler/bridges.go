package compiler

import (
	"fmt"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/errors"
)

// ============================================================================
// 覆写检查与协变桥接
// ============================================================================

// ancestor 一个祖先类型及其泛型绑定
type ancestor struct {
	class    *ast.ClassNode
	bindings map[string]*ast.TypeRef
}

// ancestors 沿父类与接口递归收集本次编译中定义的祖先类
func ancestors(c *ast.ClassNode) []ancestor {
	var out []ancestor
	seen := make(map[*ast.ClassNode]bool)
	var walk func(t *ast.TypeRef, bindings map[string]*ast.TypeRef)
	walk = func(t *ast.TypeRef, bindings map[string]*ast.TypeRef) {
		if t == nil || t.Class == nil || seen[t.Class] {
			return
		}
		k := t.Class
		seen[k] = true
		next := make(map[string]*ast.TypeRef, len(k.Generics))
		for i, g := range k.Generics {
			if i < len(t.Args) {
				next[g.Name] = Correct(t.Args[i], bindings)
			}
		}
		out = append(out, ancestor{class: k, bindings: next})
		walk(k.Super, next)
		for _, i := range k.Interfaces {
			walk(i, next)
		}
	}
	walk(c.Super, nil)
	for _, i := range c.Interfaces {
		walk(i, nil)
	}
	return out
}

// overrides 判断 m 是否覆写了祖先中的 sm（参数类型按泛型绑定修正后逐一相同）
func overrides(m, sm *ast.MethodNode, bindings map[string]*ast.TypeRef) bool {
	if m.Name != sm.Name || len(m.Params) != len(sm.Params) || sm.IsPrivate() || sm.IsConstructor() {
		return false
	}
	for i := range m.Params {
		if !Correct(sm.Params[i].Type, bindings).Equals(m.Params[i].Type) {
			return false
		}
	}
	return true
}

func (v *Verifier) addCovariantMethods() {
	c := v.class
	if c.IsInterface() {
		return
	}
	parents := ancestors(c)
	if len(parents) == 0 {
		return
	}

	existing := make(map[string]bool)
	for _, m := range c.Methods {
		existing[m.Name+MethodDescriptorOf(m)] = true
	}

	declared := append([]*ast.MethodNode(nil), c.Methods...)
	for _, m := range declared {
		if m.IsStaticInit() || m.IsBridge() || m.IsPrivate() {
			continue
		}
		for _, a := range parents {
			for _, sm := range a.class.DeclaredMethods(m.Name) {
				if !overrides(m, sm, a.bindings) {
					continue
				}
				if !v.checkOverride(m, sm, a) || m.IsStatic() {
					continue
				}
				desc := MethodDescriptorOf(sm)
				key := m.Name + desc
				if existing[key] {
					continue
				}
				existing[key] = true
				v.addBridge(m, sm)
			}
		}
	}
}

// checkOverride 检查覆写是否合法；不合法时记录错误并返回 false
func (v *Verifier) checkOverride(m, sm *ast.MethodNode, a ancestor) bool {
	owner := a.class.Name
	if sm.IsFinal() {
		v.errs.Add(errors.E0801, m.Position,
			"You are not allowed to override the final method %s from class '%s'.", methodSignature(m), owner).
			WithHint(errors.SuggestionsFor(errors.E0801, nil)[0])
		return false
	}
	if m.IsStatic() != sm.IsStatic() {
		kind := "static"
		if !m.IsStatic() {
			kind = "instance"
		}
		v.errs.Add(errors.E0802, m.Position,
			"The method %s is an %s method and cannot override the method of the same signature in class '%s'.",
			methodSignature(m), kind, owner).
			WithHint(errors.SuggestionsFor(errors.E0802, nil)[0])
		return false
	}

	mRet := Erasure(m.ReturnType)
	smRet := Correct(sm.ReturnType, a.bindings)
	if smRet == nil {
		smRet = ast.DynamicType
	}
	hint := errors.SuggestionsFor(errors.E0800, map[string]string{"method": m.Name})[0]
	mPrim := mRet.IsPrimitive()
	smPrim := smRet.IsPrimitive()
	switch {
	case mPrim != smPrim:
		v.errs.Add(errors.E0803, m.Position,
			"The return type of %s in %s is incompatible with %s in %s (%s vs %s).",
			methodSignature(m), v.class.Name, methodSignature(sm), owner, mRet, smRet).WithHint(hint)
		return false
	case mPrim && TypeDescriptor(mRet) != TypeDescriptor(smRet):
		v.errs.Add(errors.E0804, m.Position,
			"The return type of %s in %s is incompatible with %s in %s (%s vs %s).",
			methodSignature(m), v.class.Name, methodSignature(sm), owner, mRet, smRet).WithHint(hint)
		return false
	case !mPrim && !mRet.IsDerivedFrom(smRet):
		v.errs.Add(errors.E0800, m.Position,
			"The return type of %s in %s is incompatible with %s in %s (%s is not a subtype of %s).",
			methodSignature(m), v.class.Name, methodSignature(sm), owner, mRet, smRet).WithHint(hint)
		return false
	}
	return true
}

// addBridge 生成桥接方法：签名取被覆写方法擦除后的签名，
// 把实参转换为覆写方法的参数类型后调用覆写方法并返回结果
func (v *Verifier) addBridge(m, sm *ast.MethodNode) {
	pos := m.Position
	params := make([]*ast.Parameter, len(sm.Params))
	args := make([]ast.Expression, len(sm.Params))
	for i, sp := range sm.Params {
		name := fmt.Sprintf("p%d", i)
		t := Erasure(sp.Type)
		params[i] = &ast.Parameter{Position: pos, Name: name, Type: t}
		args[i] = &ast.CastExpr{Position: pos, Type: m.Params[i].Type, X: &ast.VariableExpr{Position: pos, Name: name, Type: t}}
	}

	ret := Erasure(sm.ReturnType)
	call := &ast.MethodCallExpr{Position: pos, Object: &ast.ThisExpr{Position: pos}, Name: m.Name, Args: args, Target: m}
	var body ast.Statement
	if ret.IsVoid() {
		body = ast.Block(&ast.ExprStmt{Position: pos, X: call}, &ast.ReturnStmt{Position: pos})
	} else {
		body = ast.Block(&ast.ReturnStmt{Position: pos, Value: call})
	}

	mods := ast.AccPublic | ast.AccSynthetic | ast.AccBridge
	bridge := &ast.MethodNode{
		Position:   pos,
		Name:       m.Name,
		Modifiers:  mods,
		ReturnType: ret,
		Params:     params,
		Exceptions: m.Exceptions,
		Code:       body,
	}
	v.addSynthetic(bridge, ast.SynthBridge)
}
