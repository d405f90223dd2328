package compiler

import (
	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 字段初始化
// ============================================================================

// addInitialization 把字段初始化表达式放进构造函数与静态初始化方法。
//
// 实例字段：放在显式 super(...) 之后、构造函数其余代码之前，随后是实例初始化块；
// 以 this(...) 开头的构造函数由被委托的构造函数负责初始化。
//
// 静态字段：
//   - final 且常量类型与字段类型一致的原始类型或字符串常量直接写成 ConstantValue
//   - 其他常量初始化逐条插到最前面
//   - 非常量初始化按声明顺序追加
//   - 枚举中显式声明的静态字段排在枚举常量之后
//
// 最后是用户的 static {} 代码块。
func (v *Verifier) addInitialization() {
	c := v.class

	var explicitInEnum map[string]bool
	if c.IsEnum() {
		explicitInEnum = make(map[string]bool)
		for _, p := range c.Properties {
			if p.IsStatic() && !p.Field.IsSynthetic() {
				explicitInEnum[p.Name()] = true
			}
		}
		for _, f := range c.Fields {
			if f.IsStatic() && !f.IsSynthetic() && !f.Type.Equals(c.Type()) {
				explicitInEnum[f.Name] = true
			}
		}
	}

	var instanceStmts, staticStmts, afterEnum []ast.Statement
	for _, f := range c.Fields {
		if f.Init == nil {
			continue
		}
		stmt := fieldAssignment(f)
		if !f.IsStatic() {
			instanceStmts = append(instanceStmts, stmt)
			continue
		}

		if ce, ok := f.Init.(*ast.ConstantExpr); ok {
			ct := ce.Type
			if ct == nil {
				ct = constantType(ce.Value)
			}
			if f.IsFinal() && ce.Value != nil && isStaticConstantType(ct) && ct.Equals(f.Type) {
				f.ConstantValue = ce.Value
				f.Init = nil
				continue
			}
			staticStmts = append([]ast.Statement{stmt}, staticStmts...)
		} else {
			staticStmts = append(staticStmts, stmt)
		}
		// 多个构造函数时避免重复初始化
		f.Init = nil

		if explicitInEnum[f.Name] {
			afterEnum = append(afterEnum, stmt)
		}
	}
	instanceStmts = append(instanceStmts, c.ObjectInitializers...)

	if !c.IsInterface() {
		for _, ctor := range c.Constructors {
			addConstructorInitialization(ctor, instanceStmts)
		}
	}

	if len(afterEnum) > 0 {
		moved := make(map[ast.Statement]bool, len(afterEnum))
		for _, s := range afterEnum {
			moved[s] = true
		}
		kept := staticStmts[:0]
		for _, s := range staticStmts {
			if !moved[s] {
				kept = append(kept, s)
			}
		}
		staticStmts = append(kept, afterEnum...)
	}

	staticStmts = append(staticStmts, c.StaticInitializers...)
	if len(staticStmts) == 0 {
		return
	}
	if existing := c.DeclaredMethods(ast.StaticInitName); len(existing) > 0 {
		b := existing[0].Block()
		b.Stmts = append(staticStmts, b.Stmts...)
		return
	}
	clinit := ast.NewMethod(ast.StaticInitName, ast.AccStatic, ast.VoidType, nil, ast.Block(staticStmts...))
	clinit.Position = c.Position
	v.addSynthetic(clinit, ast.SynthStaticInit)
}

// fieldAssignment 字段初始化语句 this.f = init / Owner.f = init
func fieldAssignment(f *ast.FieldNode) ast.Statement {
	return &ast.ExprStmt{Position: f.Position, X: &ast.BinaryExpr{
		Position: f.Position,
		Op:       token.ASSIGN,
		Left:     &ast.FieldExpr{Position: f.Position, Field: f},
		Right:    f.Init,
	}}
}

// firstSpecialCall 构造函数首条语句是 this(...) 或 super(...) 时返回该调用
func firstSpecialCall(stmts []ast.Statement) *ast.ConstructorCallExpr {
	if len(stmts) == 0 {
		return nil
	}
	es, ok := stmts[0].(*ast.ExprStmt)
	if !ok {
		return nil
	}
	call, ok := es.X.(*ast.ConstructorCallExpr)
	if !ok || !call.IsSpecial() {
		return nil
	}
	return call
}

func addConstructorInitialization(ctor *ast.MethodNode, inits []ast.Statement) {
	body := ctor.Block()
	first := firstSpecialCall(body.Stmts)
	if first != nil && first.Special == ast.CtorThis {
		return
	}

	stmts := make([]ast.Statement, 0, len(body.Stmts)+len(inits)+1)
	rest := body.Stmts
	if first != nil {
		stmts = append(stmts, rest[0])
		rest = rest[1:]
	} else {
		// 没有显式 super(...) 时补上无参调用
		stmts = append(stmts, &ast.ExprStmt{Position: ctor.Position, X: &ast.ConstructorCallExpr{
			Position: ctor.Position,
			Special:  ast.CtorSuper,
		}})
	}
	stmts = append(stmts, inits...)
	stmts = append(stmts, rest...)
	body.Stmts = stmts
}
