package compiler

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/multierr"

	"github.com/tangzhangming/classgen/internal/ast"
	"github.com/tangzhangming/classgen/internal/bytecode"
	"github.com/tangzhangming/classgen/internal/errors"
	"github.com/tangzhangming/classgen/internal/token"
	"github.com/tangzhangming/classgen/internal/vm"
)

// ============================================================================
// 测试辅助
// ============================================================================

func compileUnit(t *testing.T, opts *Options, classes ...*ast.ClassNode) *Result {
	t.Helper()
	res, err := New(opts).Compile(context.Background(), &ast.CompileUnit{Source: "Test.groovy", Classes: classes})
	if res == nil {
		t.Fatalf("Compile aborted: %v", err)
	}
	return res
}

// compileAndLoad 编译并经过序列化往返后装入虚拟机
func compileAndLoad(t *testing.T, classes ...*ast.ClassNode) (*vm.VM, *bytes.Buffer) {
	t.Helper()
	res := compileUnit(t, testOptions(), classes...)
	if err := res.Err(); err != nil {
		t.Fatalf("Unexpected compile errors: %v", err)
	}
	out := &bytes.Buffer{}
	machine := vm.New(&vm.Options{Out: out})
	for _, cf := range res.Classes {
		data, err := bytecode.Serialize(cf)
		if err != nil {
			t.Fatalf("Serialize %s failed: %v", cf.Name, err)
		}
		if err := machine.LoadModule(data); err != nil {
			t.Fatalf("LoadModule %s failed: %v", cf.Name, err)
		}
	}
	return machine, out
}

func printStmt(x ast.Expression) ast.Statement {
	return ast.Stmt(ast.Call(nil, "println", x))
}

func concat(s string, x ast.Expression) ast.Expression {
	return ast.Binary(token.PLUS, ast.Const(s), x)
}

func staticMethod(name string, code ast.Statement, params ...*ast.Parameter) *ast.MethodNode {
	return ast.NewMethod(name, ast.AccPublic|ast.AccStatic, nil, params, code)
}

// ============================================================================
// 默认参数
// ============================================================================

// defaultsClass 构造 class C { def m(a, b = 2) { return a + b } }
func defaultsClass() *ast.ClassNode {
	class := ast.NewClass("demo.C", ast.AccPublic, nil)
	class.AddMethod(ast.NewMethod("m", ast.AccPublic, nil,
		ast.Params(ast.Param("a", nil), ast.ParamWithDefault("b", nil, ast.Const(2))),
		ast.Block(ast.Return(ast.Binary(token.PLUS, ast.Var("a"), ast.Var("b"))))))
	return class
}

func TestDefaultParameterCall(t *testing.T) {
	res := compileUnit(t, testOptions(), defaultsClass())
	cf := res.Class("demo/C")
	if cf == nil {
		t.Fatal("Expected module demo/C")
	}
	if cf.Method("m", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;") == nil {
		t.Error("Expected m(a, b)")
	}
	if cf.Method("m", "(Ljava/lang/Object;)Ljava/lang/Object;") == nil {
		t.Error("Expected forwarder m(a)")
	}

	machine, _ := compileAndLoad(t, defaultsClass())
	obj, err := machine.NewInstance("demo/C")
	if err != nil {
		t.Fatalf("NewInstance failed: %v", err)
	}

	tests := []struct {
		name string
		args []any
		want any
	}{
		{"forwarder", []any{int32(3)}, int32(5)},
		{"full", []any{int32(3), int32(4)}, int32(7)},
		{"strings", []any{"a", "b"}, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := machine.Invoke(obj, "m", tt.args...)
			if err != nil {
				t.Fatalf("Invoke failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// ============================================================================
// finally 与异常
// ============================================================================

func TestFinallyReplay(t *testing.T) {
	class := ast.NewClass("demo.F", ast.AccPublic, nil)
	loop := ast.ForIn(ast.Param("i", nil), ast.List(ast.Const(1), ast.Const(2), ast.Const(3)),
		ast.Block(ast.Try(
			ast.Block(
				ast.If(ast.Binary(token.EQ, ast.Var("i"), ast.Const(2)), ast.Break(""), nil),
				printStmt(concat("body ", ast.Var("i")))),
			ast.Block(printStmt(concat("finally ", ast.Var("i")))))))
	exit := ast.Try(ast.Block(ast.Return(ast.Const("r"))), ast.Block(printStmt(ast.Const("exit"))))
	class.AddMethod(staticMethod("run", ast.Block(loop, exit)))

	machine, out := compileAndLoad(t, class)
	got, err := machine.InvokeStatic("demo/F", "run")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got != "r" {
		t.Errorf("Expected r, got %v", got)
	}
	want := "body 1\nfinally 1\nfinally 2\nexit\n"
	if out.String() != want {
		t.Errorf("Expected output %q, got %q", want, out.String())
	}
}

func TestContinueReplaysFinally(t *testing.T) {
	class := ast.NewClass("demo.F", ast.AccPublic, nil)
	loop := ast.ForIn(ast.Param("i", nil), ast.List(ast.Const(1), ast.Const(2)),
		ast.Try(
			ast.Block(
				ast.If(ast.Binary(token.EQ, ast.Var("i"), ast.Const(1)), ast.Continue(""), nil),
				printStmt(concat("body ", ast.Var("i")))),
			ast.Block(printStmt(concat("finally ", ast.Var("i"))))))
	class.AddMethod(ast.NewMethod("run", ast.AccPublic|ast.AccStatic, ast.VoidType, nil, ast.Block(loop)))

	machine, out := compileAndLoad(t, class)
	if _, err := machine.InvokeStatic("demo/F", "run"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := "finally 1\nbody 2\nfinally 2\n"
	if out.String() != want {
		t.Errorf("Expected output %q, got %q", want, out.String())
	}
}

func TestCatchAndFinally(t *testing.T) {
	class := ast.NewClass("demo.E", ast.AccPublic, nil)
	class.AddMethod(staticMethod("safe", ast.Block(ast.Try(
		ast.Block(ast.Throw(ast.New(ast.Make("java.lang.IllegalStateException"), ast.Const("boom")))),
		ast.Block(printStmt(ast.Const("cleanup"))),
		ast.Catch("e", ast.Make("java.lang.RuntimeException"),
			ast.Block(ast.Return(ast.Call(ast.Var("e"), "getMessage"))))))))
	class.AddMethod(staticMethod("fail", ast.Block(ast.Try(
		ast.Block(ast.Throw(ast.New(ast.Make("java.lang.IllegalStateException"), ast.Const("bad")))),
		ast.Block(printStmt(ast.Const("unwinding")))))))

	machine, out := compileAndLoad(t, class)

	got, err := machine.InvokeStatic("demo/E", "safe")
	if err != nil {
		t.Fatalf("safe failed: %v", err)
	}
	if got != "boom" {
		t.Errorf("Expected boom, got %v", got)
	}
	if out.String() != "cleanup\n" {
		t.Errorf("Expected cleanup output, got %q", out.String())
	}

	out.Reset()
	_, err = machine.InvokeStatic("demo/E", "fail")
	var thrown *vm.Thrown
	if !stderrors.As(err, &thrown) {
		t.Fatalf("Expected *vm.Thrown, got %v", err)
	}
	if thrown.ClassName() != "java.lang.IllegalStateException" || thrown.Message() != "bad" {
		t.Errorf("Expected IllegalStateException: bad, got %s: %s", thrown.ClassName(), thrown.Message())
	}
	if out.String() != "unwinding\n" {
		t.Errorf("Expected finally to run before propagation, got %q", out.String())
	}
}

// nestedFinallyClass 中内层 finally 抛出异常，外层 finally 必须仍然执行
func nestedFinallyClass() *ast.ClassNode {
	nested := func(body ast.Statement) ast.Statement {
		throwInner := ast.Block(ast.Throw(ast.New(ast.Make("java.lang.IllegalStateException"), ast.Const("inner"))))
		return ast.Try(ast.Block(ast.Try(body, throwInner)), ast.Block(printStmt(ast.Const("outer"))))
	}

	class := ast.NewClass("demo.NF", ast.AccPublic, nil)
	class.AddMethod(staticMethod("ret", ast.Block(nested(ast.Block(ast.Return(ast.Const("r")))))))
	class.AddMethod(ast.NewMethod("brk", ast.AccPublic|ast.AccStatic, ast.VoidType, nil,
		ast.Block(ast.While(ast.Const(true), ast.Block(nested(ast.Block(ast.Break(""))))))))
	class.AddMethod(staticMethod("fall", ast.Block(nested(ast.Block(printStmt(ast.Const("body")))))))
	return class
}

func TestNestedFinallyThrowingInner(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"ret", "outer\n"},
		{"brk", "outer\n"},
		{"fall", "body\nouter\n"},
	}

	machine, out := compileAndLoad(t, nestedFinallyClass())
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			out.Reset()
			_, err := machine.InvokeStatic("demo/NF", tt.method)
			var thrown *vm.Thrown
			if !stderrors.As(err, &thrown) {
				t.Fatalf("Expected *vm.Thrown, got %v", err)
			}
			if thrown.ClassName() != "java.lang.IllegalStateException" || thrown.Message() != "inner" {
				t.Errorf("Expected IllegalStateException: inner, got %s: %s", thrown.ClassName(), thrown.Message())
			}
			if out.String() != tt.want {
				t.Errorf("Expected output %q, got %q", tt.want, out.String())
			}
		})
	}
}

// ============================================================================
// 闭包捕获
// ============================================================================

// opcodes 按指令边界解码方法体
func opcodes(code []byte) []bytecode.OpCode {
	var ops []bytecode.OpCode
	for pc := 0; pc < len(code); pc += bytecode.OpCode(code[pc]).Size() {
		ops = append(ops, bytecode.OpCode(code[pc]))
	}
	return ops
}

func TestClosureCellStore(t *testing.T) {
	res := compileUnit(t, testOptions(), captureClass())
	cf := res.Class("demo/K$_closure1")
	if cf == nil {
		t.Fatal("Expected module demo/K$_closure1")
	}
	doCall := cf.Method("doCall", "(Ljava/lang/Object;)Ljava/lang/Object;")
	if doCall == nil {
		t.Fatal("Expected doCall(it)")
	}

	// 写入共享变量：this.total 取出单元，再与值交换后调用 set
	want := []bytecode.OpCode{bytecode.OpALoad, bytecode.OpGetField, bytecode.OpSwap, bytecode.OpInvokeVirtual}
	ops := opcodes(doCall.Code)
	found := false
	for i := 0; i+len(want) <= len(ops); i++ {
		match := true
		for j, op := range want {
			if ops[i+j] != op {
				match = false
				break
			}
		}
		if match {
			found = true
		}
		if ops[i] == bytecode.OpSwap && i+1 < len(ops) && ops[i+1] == bytecode.OpGetField {
			t.Errorf("Unexpected SWAP before GETFIELD at instruction %d: %v", i, ops)
		}
	}
	if !found {
		t.Errorf("Expected ALOAD GETFIELD SWAP INVOKEVIRTUAL in doCall, got %v", ops)
	}
}

func TestClosureCaptureAliasing(t *testing.T) {
	res := compileUnit(t, testOptions(), captureClass())
	if res.Class("demo/K$_closure1") == nil || res.Class("demo/K$_closure3") == nil {
		names := make([]string, len(res.Classes))
		for i, cf := range res.Classes {
			names[i] = cf.Name
		}
		t.Fatalf("Expected closure modules, got %v", names)
	}

	machine, _ := compileAndLoad(t, captureClass())
	got, err := machine.InvokeStatic("demo/K", "sum")
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if got != int32(6) {
		t.Errorf("Expected 6, got %v", got)
	}

	got, err = machine.InvokeStatic("demo/K", "counter")
	if err != nil {
		t.Fatalf("counter failed: %v", err)
	}
	s, _ := machine.ToString(got)
	if s != "[2, 2]" {
		t.Errorf("Expected [2, 2], got %s", s)
	}
}

// captureClass 构造两个共享局部变量的静态方法；补全会修改语法树，每次编译需要新树
func captureClass() *ast.ClassNode {
	class := ast.NewClass("demo.K", ast.AccPublic, nil)
	class.AddMethod(staticMethod("sum", ast.Block(
		ast.Stmt(ast.Declare(ast.Var("total"), ast.Const(0))),
		ast.Stmt(ast.Call(ast.List(ast.Const(1), ast.Const(2), ast.Const(3)), "each",
			ast.Closure(nil, ast.Block(ast.Stmt(ast.Assign(ast.Var("total"),
				ast.Binary(token.PLUS, ast.Var("total"), ast.Var("it")))))))),
		ast.Return(ast.Var("total")))))
	noArgs := []*ast.Parameter{}
	class.AddMethod(staticMethod("counter", ast.Block(
		ast.Stmt(ast.Declare(ast.Var("n"), ast.Const(0))),
		ast.Stmt(ast.Declare(ast.Var("inc"), ast.Closure(noArgs,
			ast.Block(ast.Stmt(ast.Assign(ast.Var("n"), ast.Binary(token.PLUS, ast.Var("n"), ast.Const(1)))))))),
		ast.Stmt(ast.Declare(ast.Var("read"), ast.Closure(noArgs, ast.Block(ast.Return(ast.Var("n")))))),
		ast.Stmt(ast.Call(ast.Var("inc"), "call")),
		ast.Stmt(ast.Call(ast.Var("inc"), "call")),
		ast.Return(ast.List(ast.Var("n"), ast.Call(ast.Var("read"), "call"))))))
	return class
}

// ============================================================================
// 静态初始化
// ============================================================================

func TestStaticInitializerRuns(t *testing.T) {
	class := ast.NewClass("demo.S", ast.AccPublic, nil)
	x := ast.NewField("x", ast.AccPublic|ast.AccStatic, ast.IntType, ast.Const(1))
	class.AddField(x)
	class.AddField(ast.NewField("LIMIT", ast.AccPublic|ast.AccStatic|ast.AccFinal, ast.IntType, ast.Const(7)))
	class.StaticInitializers = []ast.Statement{
		ast.Stmt(ast.Assign(ast.FieldOf(x), ast.Binary(token.PLUS, ast.FieldOf(x), ast.Const(41)))),
	}

	machine, _ := compileAndLoad(t, class)
	tests := []struct {
		field string
		want  string
	}{
		{"x", "42"},
		{"LIMIT", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			v, err := machine.GetStatic("demo/S", tt.field)
			if err != nil {
				t.Fatalf("GetStatic failed: %v", err)
			}
			if fmt.Sprint(v) != tt.want {
				t.Errorf("Expected %s, got %v", tt.want, v)
			}
		})
	}
}

func TestEnumConstantsBeforeStatics(t *testing.T) {
	enum := ast.NewClass("demo.Color", ast.AccPublic|ast.AccEnum|ast.AccFinal, nil)
	red := ast.NewField("RED", ast.AccPublic|ast.AccStatic|ast.AccFinal|ast.AccEnum, enum.Type(), ast.New(enum.Type()))
	first := ast.NewField("first", ast.AccPublic|ast.AccStatic, nil, ast.FieldOf(red))
	enum.AddField(first)
	enum.AddField(red)
	enum.AddField(ast.NewField("GREEN", ast.AccPublic|ast.AccStatic|ast.AccFinal|ast.AccEnum, enum.Type(), ast.New(enum.Type())))

	machine, _ := compileAndLoad(t, enum)
	gotFirst, err := machine.GetStatic("demo/Color", "first")
	if err != nil {
		t.Fatalf("GetStatic first failed: %v", err)
	}
	gotRed, _ := machine.GetStatic("demo/Color", "RED")
	gotGreen, _ := machine.GetStatic("demo/Color", "GREEN")
	if gotRed == nil || gotGreen == nil {
		t.Fatal("Expected enum constants to be initialized")
	}
	if gotFirst != gotRed {
		t.Errorf("Expected first to alias RED, got %v", gotFirst)
	}
}

// ============================================================================
// 桥接方法
// ============================================================================

func TestBridgeDispatch(t *testing.T) {
	base := ast.NewClass("demo.Base", ast.AccPublic, nil)
	get := ast.NewMethod("get", ast.AccPublic, nil, nil, ast.Block(ast.Return(ast.Const("base"))))
	base.AddMethod(get)
	call := &ast.MethodCallExpr{Object: ast.TypedVar("b", base.Type()), Name: "get", Target: get}
	base.AddMethod(staticMethod("fetch", ast.Block(ast.Return(call)), ast.Param("b", base.Type())))

	sub := ast.NewClass("demo.Sub", ast.AccPublic, base.Type())
	sub.AddMethod(ast.NewMethod("get", ast.AccPublic, ast.StringType, nil, ast.Block(ast.Return(ast.Const("sub")))))

	machine, _ := compileAndLoad(t, base, sub)
	obj, err := machine.NewInstance("demo/Sub")
	if err != nil {
		t.Fatalf("NewInstance failed: %v", err)
	}

	tests := []struct {
		name string
		recv string
		want string
	}{
		{"base", "demo/Base", "base"},
		{"sub through base signature", "demo/Sub", "sub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recv := any(obj)
			if tt.recv == "demo/Base" {
				recv, err = machine.NewInstance("demo/Base")
				if err != nil {
					t.Fatalf("NewInstance failed: %v", err)
				}
			}
			got, err := machine.InvokeStatic("demo/Base", "fetch", recv)
			if err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %v", tt.want, got)
			}
		})
	}
}

// ============================================================================
// 栈平衡
// ============================================================================

// neutralClass 中的表达式语句都必须在求值后清空操作数栈
func neutralClass() *ast.ClassNode {
	class := ast.NewClass("demo.N", ast.AccPublic, nil)
	class.AddMethod(staticMethod("work", ast.Block(
		ast.Stmt(ast.Declare(ast.Var("x"), ast.Const(1))),
		ast.Stmt(ast.Assign(ast.Var("x"), ast.Binary(token.PLUS, ast.Var("x"), ast.Const(1)))),
		ast.Stmt(ast.Binary(token.PLUS, ast.Var("x"), ast.Const(5))),
		ast.Stmt(&ast.PostfixExpr{Op: token.INCREMENT, X: ast.Var("x")}),
		ast.Stmt(ast.Declare(ast.Var("y"), ast.Assign(ast.Var("x"), ast.Const(10)))),
		ast.Stmt(ast.List(ast.Var("x"), ast.Var("y"))),
		ast.Return(ast.Binary(token.PLUS, ast.Var("x"), ast.Var("y"))))))
	return class
}

func TestStackNeutrality(t *testing.T) {
	res := compileUnit(t, testOptions(), neutralClass())
	if err := res.Err(); err != nil {
		t.Fatalf("Unexpected errors: %v", err)
	}
	cf := res.Class("demo/N")
	if err := bytecode.Verify(cf); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	for _, m := range cf.Methods {
		if m.MaxStack > 8 {
			t.Errorf("%s%s: expected small max stack, got %d", m.Name, m.Descriptor, m.MaxStack)
		}
	}

	machine, _ := compileAndLoad(t, neutralClass())
	got, err := machine.InvokeStatic("demo/N", "work")
	if err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if got != int32(20) {
		t.Errorf("Expected 20, got %v", got)
	}
}

// lowerInMethod 在静态方法 demo.X.m 中声明 a、b、i、l 与共享变量 h，
// 再调用 lower，返回 lower 发射的指令范围。末尾补 return 以便回填跳转。
func lowerInMethod(t *testing.T, lower func(g *ClassGenerator)) (*bytecode.MethodInfo, int, int, *bytecode.ConstantPool) {
	t.Helper()
	class := ast.NewClass("demo.X", ast.AccPublic, nil)
	m := staticMethod("m", ast.Block())
	class.AddMethod(m)

	g := NewClassGenerator(NewContext(), testOptions(), errors.NewCollector(class.Name, "X.groovy"))
	g.class = class
	g.cf = bytecode.NewClassFile("demo/X", objectClass, bytecode.AccPublic|bytecode.AccSuper)
	g.pool = g.cf.Pool
	g.method, g.code = m, bytecode.NewCode(g.pool)
	g.stack.Init(class, m, g.code)
	g.stack.SetHolders(map[string]bool{"h": true})

	var from, to int
	err := func() (err error) {
		defer errors.Recover(&err, class.Name, "m")
		for _, s := range []ast.Statement{
			ast.Stmt(ast.Declare(ast.Var("a"), ast.Const(1))),
			ast.Stmt(ast.Declare(ast.Var("b"), ast.Const(2))),
			ast.Stmt(ast.Declare(ast.TypedVar("i", ast.IntType), ast.Const(3))),
			ast.Stmt(ast.Declare(ast.Var("l"), ast.List(ast.Const(1)))),
			ast.Stmt(ast.Declare(ast.Var("h"), ast.Const(0))),
		} {
			g.compileStmt(s)
		}
		from = g.code.Len()
		lower(g)
		to = g.code.Len()
		return nil
	}()
	if err != nil {
		t.Fatalf("Lowering failed: %v", err)
	}

	g.emit(bytecode.OpReturn)
	info := &bytecode.MethodInfo{Access: bytecode.AccPublic | bytecode.AccStatic, Name: "m", Descriptor: "()V"}
	if err := g.code.Finish(info, 0); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	return info, from, to, g.pool
}

// stackDelta 以空栈从 from 开始沿所有路径执行，返回到达 to 时的栈深度
func stackDelta(t *testing.T, code []byte, from, to int, pool *bytecode.ConstantPool) int {
	t.Helper()
	type item struct{ pc, depth int }
	work := []item{{from, 0}}
	seen := make(map[int]int)
	result := -1
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		for pc, depth := it.pc, it.depth; ; {
			if pc == to {
				if result >= 0 && result != depth {
					t.Fatalf("Paths reach the end with depths %d and %d", result, depth)
				}
				result = depth
				break
			}
			if pc < from || pc > to {
				t.Fatalf("Control leaves [%d,%d) at %d", from, to, pc)
			}
			if d, ok := seen[pc]; ok {
				if d != depth {
					t.Fatalf("Inconsistent depth at %d: %d and %d", pc, d, depth)
				}
				break
			}
			seen[pc] = depth

			op := bytecode.OpCode(code[pc])
			pops, pushes, err := bytecode.Effect(code, pc, pool)
			if err != nil {
				t.Fatalf("Effect at %d (%s): %v", pc, op, err)
			}
			if depth < pops {
				t.Fatalf("Stack underflow at %d (%s): need %d, have %d", pc, op, pops, depth)
			}
			depth += pushes - pops
			if op.IsBranch() {
				work = append(work, item{bytecode.BranchTarget(code, pc), depth})
			}
			if op.IsTerminal() {
				break
			}
			pc += op.Size()
		}
	}
	if result < 0 {
		t.Fatal("End of the range is unreachable")
	}
	return result
}

func TestExpressionStackEffect(t *testing.T) {
	tests := []struct {
		name string
		expr func() ast.Expression
	}{
		{"constant", func() ast.Expression { return ast.Const(42) }},
		{"variable", func() ast.Expression { return ast.Var("a") }},
		{"holder variable", func() ast.Expression { return ast.Var("h") }},
		{"assignment", func() ast.Expression { return ast.Assign(ast.Var("a"), ast.Const(5)) }},
		{"holder assignment", func() ast.Expression { return ast.Assign(ast.Var("h"), ast.Var("a")) }},
		{"index assignment", func() ast.Expression {
			return ast.Assign(ast.Index(ast.Var("l"), ast.Const(0)), ast.Const(5))
		}},
		{"compound assignment", func() ast.Expression { return ast.Binary(token.PLUS_ASSIGN, ast.Var("a"), ast.Const(1)) }},
		{"holder compound assignment", func() ast.Expression {
			return ast.Binary(token.MINUS_ASSIGN, ast.Var("h"), ast.Const(1))
		}},
		{"index compound assignment", func() ast.Expression {
			return ast.Binary(token.PLUS_ASSIGN, ast.Index(ast.Var("l"), ast.Const(0)), ast.Const(1))
		}},
		{"prefix", func() ast.Expression { return &ast.PrefixExpr{Op: token.INCREMENT, X: ast.Var("a")} }},
		{"primitive prefix", func() ast.Expression { return &ast.PrefixExpr{Op: token.DECREMENT, X: ast.Var("i")} }},
		{"postfix", func() ast.Expression { return &ast.PostfixExpr{Op: token.INCREMENT, X: ast.Var("a")} }},
		{"holder postfix", func() ast.Expression { return &ast.PostfixExpr{Op: token.DECREMENT, X: ast.Var("h")} }},
		{"ternary", func() ast.Expression {
			return &ast.TernaryExpr{Cond: ast.Var("a"), Then: ast.Const(1), Else: ast.Var("b")}
		}},
		{"elvis", func() ast.Expression { return &ast.ElvisExpr{X: ast.Var("a"), Else: ast.Const(2)} }},
		{"logical and", func() ast.Expression { return ast.Binary(token.AND, ast.Var("a"), ast.Var("b")) }},
		{"logical or", func() ast.Expression { return ast.Binary(token.OR, ast.Var("a"), ast.Var("b")) }},
		{"call", func() ast.Expression { return ast.Call(ast.Var("a"), "toString") }},
		{"closure", func() ast.Expression {
			return ast.Closure(nil, ast.Block(ast.Stmt(ast.Assign(ast.Var("h"), ast.Binary(token.PLUS, ast.Var("a"), ast.Var("it"))))))
		}},
		{"list", func() ast.Expression { return ast.List(ast.Const(1), ast.Var("a"), ast.Var("i")) }},
		{"map", func() ast.Expression {
			return &ast.MapExpr{Entries: []*ast.MapEntry{{Key: ast.Const("k"), Value: ast.Var("a")}}}
		}},
		{"range", func() ast.Expression { return &ast.RangeExpr{From: ast.Const(1), To: ast.Var("a"), Inclusive: true} }},
	}

	modes := []struct {
		name  string
		want  int
		lower func(g *ClassGenerator, x ast.Expression)
	}{
		{"value", 1, func(g *ClassGenerator, x ast.Expression) { g.compileValue(x) }},
		{"statement", 0, func(g *ClassGenerator, x ast.Expression) { g.compileStmt(ast.Stmt(x)) }},
	}

	for _, tt := range tests {
		for _, mode := range modes {
			t.Run(tt.name+"/"+mode.name, func(t *testing.T) {
				info, from, to, pool := lowerInMethod(t, func(g *ClassGenerator) { mode.lower(g, tt.expr()) })
				if to <= from {
					t.Fatal("Expected instructions to be emitted")
				}
				if got := stackDelta(t, info.Code, from, to, pool); got != mode.want {
					t.Errorf("Expected net stack effect %d, got %d", mode.want, got)
				}
			})
		}
	}
}

func TestThrowStatementLowering(t *testing.T) {
	info, from, to, _ := lowerInMethod(t, func(g *ClassGenerator) {
		g.compileStmt(ast.Throw(ast.New(ast.Make("java.lang.IllegalStateException"), ast.Const("x"))))
	})
	ops := opcodes(info.Code[from:to])
	if len(ops) < 2 || ops[0] != bytecode.OpNew || ops[len(ops)-1] != bytecode.OpAThrow {
		t.Errorf("Expected NEW ... ATHROW, got %v", ops)
	}
}

// ============================================================================
// 错误处理
// ============================================================================

func TestCompileErrorsArePerClass(t *testing.T) {
	good := ast.NewClass("demo.Good", ast.AccPublic, nil)
	good.AddMethod(staticMethod("ok", ast.Block(ast.Return(ast.Const(1)))))

	bad := ast.NewClass("demo.Bad", ast.AccPublic, nil)
	bad.AddMethod(staticMethod("m", ast.Block(), ast.Param("a", nil), ast.ParamWithDefault("b", nil, ast.Const(1))))
	bad.AddMethod(staticMethod("m", ast.Block(), ast.Param("z", nil)))
	bad.AddMethod(staticMethod("loop", ast.Block(ast.Break(""))))

	res := compileUnit(t, testOptions(), good, bad)
	if res.Class("demo/Good") == nil {
		t.Error("Expected the valid class to be compiled")
	}
	if res.Class("demo/Bad") != nil {
		t.Error("Expected no module for the class with errors")
	}

	codes := errorCodes(res.Errors)
	want := []string{errors.E0820, errors.E0844}
	if len(codes) != len(want) {
		t.Fatalf("Expected %v, got %v", want, codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("Error %d: expected %s, got %s", i, want[i], codes[i])
		}
	}
	for _, e := range res.Errors {
		if e.Class != "demo.Bad" || e.File != "Test.groovy" {
			t.Errorf("Expected error attributed to demo.Bad in Test.groovy, got %s in %s", e.Class, e.File)
		}
	}
	if got := len(multierr.Errors(res.Err())); got != 2 {
		t.Errorf("Expected 2 combined errors, got %d", got)
	}
}

func TestVerificationFailureIsInternal(t *testing.T) {
	class := ast.NewClass("demo.V", ast.AccPublic, nil)
	cf := bytecode.NewClassFile("demo/V", "java/lang/Object", bytecode.AccPublic|bytecode.AccSuper)
	cf.AddMethod(&bytecode.MethodInfo{
		Access:     bytecode.AccPublic | bytecode.AccStatic,
		Name:       "m",
		Descriptor: "()V",
		MaxStack:   1,
		Code:       []byte{byte(bytecode.OpPop), byte(bytecode.OpReturn)},
	})

	err := verifyModules(class, []*bytecode.ClassFile{cf}, 0)
	var ie *errors.InternalError
	if !stderrors.As(err, &ie) {
		t.Fatalf("Expected *InternalError, got %v", err)
	}
	if ie.Code != errors.I0003 {
		t.Errorf("Expected code %s, got %s", errors.I0003, ie.Code)
	}
	if ie.Class != "demo.V" || ie.Method != "m()V" {
		t.Errorf("Expected location demo.V.m()V, got %s.%s", ie.Class, ie.Method)
	}

	good := compileUnit(t, testOptions(), defaultsClass())
	if err := verifyModules(class, good.Classes, 0); err != nil {
		t.Errorf("Expected generated modules to verify, got %v", err)
	}

	// 生成代码超出栈深度限制时整次编译中止
	opts := testOptions()
	opts.MaxStack = 1
	res, err := New(opts).Compile(context.Background(), &ast.CompileUnit{Source: "Test.groovy", Classes: []*ast.ClassNode{defaultsClass()}})
	if res != nil {
		t.Errorf("Expected nil result, got %d modules", len(res.Classes))
	}
	if !stderrors.As(err, &ie) || ie.Code != errors.I0003 || ie.Class != "demo.C" {
		t.Errorf("Expected I0003 in demo.C, got %v", err)
	}
}

func TestUnknownLabel(t *testing.T) {
	class := ast.NewClass("demo.L", ast.AccPublic, nil)
	loop := &ast.LabeledStmt{Label: "outer", Body: ast.While(ast.Const(true), ast.Block(ast.Break("outr")))}
	class.AddMethod(ast.NewMethod("run", ast.AccPublic|ast.AccStatic, ast.VoidType, nil, ast.Block(loop)))

	res := compileUnit(t, testOptions(), class)
	if len(res.Errors) != 1 || res.Errors[0].Code != errors.E0845 {
		t.Fatalf("Expected E0845, got %v", errorCodes(res.Errors))
	}
	if len(res.Errors[0].Hints) == 0 {
		t.Error("Expected a suggestion for the misspelled label")
	}
}

func TestParallelCompile(t *testing.T) {
	var classes []*ast.ClassNode
	for i := 0; i < 8; i++ {
		c := ast.NewClass(fmt.Sprintf("demo.P%d", i), ast.AccPublic, nil)
		c.AddMethod(staticMethod("id", ast.Block(ast.Return(ast.Closure(nil, ast.Block(ast.Return(ast.Var("it"))))))))
		classes = append(classes, c)
	}
	opts := testOptions()
	opts.Parallel = true

	res := compileUnit(t, opts, classes...)
	if err := res.Err(); err != nil {
		t.Fatalf("Unexpected errors: %v", err)
	}
	if len(res.Classes) != 16 {
		t.Fatalf("Expected 16 modules, got %d", len(res.Classes))
	}
	for i := 0; i < 8; i++ {
		outer, closure := res.Classes[2*i], res.Classes[2*i+1]
		if outer.Name != fmt.Sprintf("demo/P%d", i) {
			t.Errorf("Expected demo/P%d at %d, got %s", i, 2*i, outer.Name)
		}
		if closure.Name != fmt.Sprintf("demo/P%d$_closure1", i) {
			t.Errorf("Expected closure of demo/P%d, got %s", i, closure.Name)
		}
	}
}

// ============================================================================
// 命名上下文
// ============================================================================

func TestClosureNames(t *testing.T) {
	reg := NewContext()
	tests := []struct {
		outer string
		want  string
	}{
		{"demo.C", "demo.C$_closure1"},
		{"demo.C", "demo.C$_closure2"},
		{"demo.C$_closure2", "demo.C$_closure3"},
		{"demo.D", "demo.D$_closure1"},
	}
	for _, tt := range tests {
		if got := reg.NextClosureName(tt.outer); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
	if reg.ClosureCount("demo.C") != 3 {
		t.Errorf("Expected 3 closures for demo.C, got %d", reg.ClosureCount("demo.C"))
	}
}

func TestClosureNamesConcurrent(t *testing.T) {
	reg := NewContext()
	const workers, each = 8, 50
	names := make(chan string, workers*each)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				names <- reg.NextClosureName("demo.C")
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for n := range names {
		if seen[n] {
			t.Fatalf("Duplicate closure name %s", n)
		}
		seen[n] = true
	}
	if len(seen) != workers*each {
		t.Errorf("Expected %d names, got %d", workers*each, len(seen))
	}
}
