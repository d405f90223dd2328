package compiler

import (
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 结构补全
// ============================================================================
//
// Verifier 在生成字节码之前补齐对象模型需要的结构：
// 1. 时间戳标记字段
// 2. 默认参数转发方法
// 3. 默认构造函数
// 4. 属性访问器
// 5. 字段初始化放入构造函数与 <clinit>
// 6. 方法体末尾补 return
// 7. 重复方法检查
// 8. 协变桥接方法与覆写检查
//
// 源码级错误写入当前类的 Collector，不中断后续步骤。
//
// ============================================================================

// 时间戳标记字段名
const TimestampField = "__timeStamp"

// Verifier 结构补全阶段
type Verifier struct {
	opts  *Options
	log   *zap.Logger
	errs  *errors.Collector
	class *ast.ClassNode
}

// NewVerifier 创建结构补全阶段
func NewVerifier(opts *Options) *Verifier {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Verifier{opts: opts, log: opts.logger()}
}

// VisitClass 对类执行全部补全步骤
func (v *Verifier) VisitClass(class *ast.ClassNode, errs *errors.Collector) {
	v.class = class
	v.errs = errs
	defer func() { v.class, v.errs = nil, nil }()

	v.checkIdentifiers()
	v.addTimestampField()
	v.addDefaultParameterMethods()
	v.addDefaultConstructor()
	v.addPropertyMethods()
	v.addInitialization()
	v.addReturnStatements()
	v.checkDuplicateMethods()
	v.addCovariantMethods()

	v.log.Debug("class completed",
		zap.String("class", class.Name),
		zap.Int("methods", len(class.Methods)),
		zap.Int("constructors", len(class.Constructors)),
		zap.Int("fields", len(class.Fields)))
}

func (v *Verifier) addSynthetic(m *ast.MethodNode, kind ast.SyntheticKind) {
	m.Synthetic = kind
	v.class.AddMethod(m)
	v.log.Debug("synthesized member",
		zap.String("class", v.class.Name),
		zap.String("method", m.Name),
		zap.String("descriptor", MethodDescriptorOf(m)),
		zap.Stringer("kind", kind))
}

// ============================================================================
// 标识符检查
// ============================================================================

const invalidIdentifierChars = ".;[/<>"

// isValidIdentifier 名称中不能出现 JVM 保留字符，<init> 与 <clinit> 除外
func isValidIdentifier(name string) bool {
	if name == ast.ConstructorName || name == ast.StaticInitName {
		return true
	}
	return name != "" && !strings.ContainsAny(name, invalidIdentifierChars)
}

func (v *Verifier) checkIdentifier(kind, name string, pos token.Position) {
	if !isValidIdentifier(name) {
		v.errs.Add(errors.E0840, pos, "You are not allowed to have '%s' as %s name", name, kind).
			WithHint(errors.SuggestionsFor(errors.E0840, nil)[0])
	}
}

func (v *Verifier) checkIdentifiers() {
	c := v.class
	for _, part := range strings.Split(c.Name, ".") {
		// 内部类名中的 $ 合法
		v.checkIdentifier("a class", part, c.Position)
	}
	for _, f := range c.Fields {
		v.checkIdentifier("a field", f.Name, f.Position)
	}
	for _, m := range append(append([]*ast.MethodNode(nil), c.Methods...), c.Constructors...) {
		v.checkIdentifier("a method", m.Name, m.Position)
		for _, p := range m.Params {
			v.checkIdentifier("a parameter", p.Name, p.Position)
		}
	}
}

// ============================================================================
// 时间戳字段
// ============================================================================

func (v *Verifier) addTimestampField() {
	c := v.class
	if !v.opts.Timestamp || c.IsInterface() || c.IsSynthetic() || c.DeclaredField(TimestampField) != nil {
		return
	}
	f := ast.NewField(TimestampField, ast.AccPublic|ast.AccStatic|ast.AccSynthetic, ast.LongType, nil)
	f.ConstantValue = v.opts.now().UnixMilli()
	f.Position = c.Position
	// 标记字段排在最前
	f.Owner = c
	c.Fields = append([]*ast.FieldNode{f}, c.Fields...)
}

// ============================================================================
// 默认构造函数
// ============================================================================

func (v *Verifier) addDefaultConstructor() {
	c := v.class
	if c.IsInterface() {
		for _, ctor := range c.Constructors {
			v.errs.Add(errors.E0842, ctor.Position, "Constructors are not allowed in interface %s", c.Name)
		}
		return
	}
	if len(c.Constructors) > 0 {
		return
	}
	ctor := ast.NewConstructor(ast.AccPublic, nil, ast.Block())
	ctor.Position = c.Position
	v.addSynthetic(ctor, ast.SynthDefaultCtor)
}

// ============================================================================
// 属性访问器
// ============================================================================

func (v *Verifier) addPropertyMethods() {
	c := v.class
	for _, p := range c.Properties {
		mods := ast.AccPublic
		if p.IsStatic() {
			mods |= ast.AccStatic
		}
		field := p.Field
		var fieldRef ast.Expression = &ast.FieldExpr{Position: p.Position, Field: field}

		getterName := "get" + capitalize(p.Name())
		if p.Type().IsPrimitive() && p.Type().Name == "boolean" {
			getterName = "is" + capitalize(p.Name())
		}
		getterBody := p.GetterBlock
		if getterBody == nil {
			getterBody = ast.Block(&ast.ReturnStmt{Position: p.Position, Value: fieldRef})
		}
		v.addAccessor(getterName, mods, p.Type(), nil, getterBody, ast.SynthGetter, p.Position)

		if p.IsFinal() {
			continue
		}
		setterName := "set" + capitalize(p.Name())
		param := &ast.Parameter{Position: p.Position, Name: "value", Type: p.Type()}
		setterBody := p.SetterBlock
		if setterBody == nil {
			setterBody = ast.Block(&ast.ExprStmt{Position: p.Position, X: &ast.BinaryExpr{
				Position: p.Position,
				Op:       token.ASSIGN,
				Left:     fieldRef,
				Right:    &ast.VariableExpr{Position: p.Position, Name: "value", Type: p.Type()},
			}})
		}
		v.addAccessor(setterName, mods, ast.VoidType, []*ast.Parameter{param}, setterBody, ast.SynthSetter, p.Position)
	}
}

// addAccessor 添加访问器；用户已声明同签名方法时不添加，
// 已声明的同签名抽象方法去掉 abstract 并使用生成的方法体
func (v *Verifier) addAccessor(name string, mods int, ret *ast.TypeRef, params []*ast.Parameter, body ast.Statement, kind ast.SyntheticKind, pos token.Position) {
	if existing := v.class.DeclaredMethod(name, params); existing != nil {
		if existing.IsAbstract() {
			existing.Modifiers &^= ast.AccAbstract
			existing.Code = body
		}
		return
	}
	m := ast.NewMethod(name, mods, ret, params, body)
	m.Position = pos
	v.addSynthetic(m, kind)
}

// ============================================================================
// 补 return
// ============================================================================

func (v *Verifier) addReturnStatements() {
	c := v.class
	for _, m := range append(append([]*ast.MethodNode(nil), c.Methods...), c.Constructors...) {
		if m.Code == nil || m.IsAbstract() {
			continue
		}
		void := m.IsVoid() || m.IsConstructor() || m.IsStaticInit()
		m.Code = addReturns(m.Block(), void)
	}
}

// addReturns 为方法体补 return。void 方法只在末尾追加；
// 有返回值的方法把最后一个表达式语句改为 return，并递归处理分支。
func addReturns(stmt ast.Statement, void bool) ast.Statement {
	if void {
		b, ok := stmt.(*ast.BlockStmt)
		if !ok {
			b = &ast.BlockStmt{Position: stmt.Pos(), Stmts: []ast.Statement{stmt}}
		}
		if n := len(b.Stmts); n > 0 && isTerminal(b.Stmts[n-1]) {
			return b
		}
		b.Stmts = append(b.Stmts, &ast.ReturnStmt{Position: b.Position})
		return b
	}

	switch s := stmt.(type) {
	case *ast.BlockStmt:
		if len(s.Stmts) == 0 {
			s.Stmts = []ast.Statement{&ast.ReturnStmt{Position: s.Position, Value: ast.Null()}}
			return s
		}
		last := len(s.Stmts) - 1
		s.Stmts[last] = addReturns(s.Stmts[last], false)
		return s
	case *ast.ExprStmt:
		return &ast.ReturnStmt{Position: s.Position, Value: s.X}
	case *ast.ReturnStmt, *ast.ThrowStmt:
		return s
	case *ast.IfStmt:
		s.Then = addReturns(s.Then, false)
		if s.Else == nil {
			s.Else = &ast.ReturnStmt{Position: s.Position, Value: ast.Null()}
		} else {
			s.Else = addReturns(s.Else, false)
		}
		return s
	case *ast.TryStmt:
		s.Body = addReturns(s.Body, false)
		for _, c := range s.Catches {
			c.Body = addReturns(c.Body, false)
		}
		return s
	case *ast.SynchronizedStmt:
		s.Body = addReturns(s.Body, false)
		return s
	default:
		return &ast.BlockStmt{Position: stmt.Pos(), Stmts: []ast.Statement{
			stmt,
			&ast.ReturnStmt{Position: stmt.Pos(), Value: ast.Null()},
		}}
	}
}

// isTerminal 语句执行后不会落到下一条语句
func isTerminal(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.ReturnStmt, *ast.ThrowStmt, *ast.BreakStmt, *ast.ContinueStmt:
		return true
	case *ast.BlockStmt:
		return len(s.Stmts) > 0 && isTerminal(s.Stmts[len(s.Stmts)-1])
	case *ast.IfStmt:
		return s.Else != nil && isTerminal(s.Then) && isTerminal(s.Else)
	case *ast.TryStmt:
		if s.Finally != nil && isTerminal(s.Finally) {
			return true
		}
		if !isTerminal(s.Body) {
			return false
		}
		for _, c := range s.Catches {
			if !isTerminal(c.Body) {
				return false
			}
		}
		return true
	case *ast.SynchronizedStmt:
		return isTerminal(s.Body)
	}
	return false
}

// ============================================================================
// 重复方法
// ============================================================================

func (v *Verifier) checkDuplicateMethods() {
	check := func(list []*ast.MethodNode) {
		seen := make(map[string]*ast.MethodNode)
		for _, m := range list {
			key := m.Name + MethodDescriptor(ast.VoidType, m.Params)
			if prev, ok := seen[key]; ok {
				v.errs.Add(errors.E0821, m.Position,
					"Repetitive method name/signature for method '%s' in class '%s'", methodSignature(m), v.class.Name).
					WithHint("the previous declaration is at " + prev.Position.String())
				continue
			}
			seen[key] = m
		}
	}
	check(v.class.Methods)
	check(v.class.Constructors)
}

// methodSignature 方法的可读签名 name(T1, T2)
func methodSignature(m *ast.MethodNode) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Type.String()
	}
	return m.Name + "(" + strings.Join(parts, ", ") + ")"
}
