package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tangzhangming/classgen/internal/bytecode"
)

// ============================================================================
// 测试辅助
// ============================================================================

// addMethod 汇编一个方法并加入类文件
func addMethod(t *testing.T, cf *bytecode.ClassFile, access uint16, name, desc string, body func(c *bytecode.Code)) {
	t.Helper()
	c := bytecode.NewCode(cf.Pool)
	body(c)
	params, _, err := bytecode.ParseMethodDescriptor(desc)
	if err != nil {
		t.Fatalf("bad descriptor %s: %v", desc, err)
	}
	slots := 0
	if access&bytecode.AccStatic == 0 {
		slots = 1
	}
	for _, p := range params {
		slots += bytecode.SlotSize(p)
	}
	c.ReserveLocals(slots)
	m := &bytecode.MethodInfo{Access: access, Name: name, Descriptor: desc}
	if err := c.Finish(m, 0); err != nil {
		t.Fatalf("Finish %s%s: %v", name, desc, err)
	}
	cf.AddMethod(m)
}

// defaultCtor 添加调用 Object.<init> 的无参构造函数
func defaultCtor(t *testing.T, cf *bytecode.ClassFile) {
	addMethod(t, cf, bytecode.AccPublic, "<init>", "()V", func(c *bytecode.Code) {
		c.EmitLocal(bytecode.OpALoad, 0)
		c.EmitU16(bytecode.OpInvokeSpecial, cf.Pool.AddMethodRef(objectClass, "<init>", "()V"))
		c.Emit(bytecode.OpReturn)
	})
}

func newTestVM(t *testing.T, cfs ...*bytecode.ClassFile) (*VM, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	vm := New(&Options{Out: out})
	if err := vm.Load(cfs...); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return vm, out
}

// calcClass demo/Calc：静态 add(II)I 与 sign(I)I
func calcClass(t *testing.T) *bytecode.ClassFile {
	cf := bytecode.NewClassFile("demo/Calc", objectClass, bytecode.AccPublic)
	defaultCtor(t, cf)
	addMethod(t, cf, bytecode.AccPublic|bytecode.AccStatic, "add", "(II)I", func(c *bytecode.Code) {
		c.EmitLocal(bytecode.OpILoad, 0)
		c.EmitU8(bytecode.OpBox, 'I')
		c.EmitLocal(bytecode.OpILoad, 1)
		c.EmitU8(bytecode.OpBox, 'I')
		c.EmitU16(bytecode.OpInvokeMethod, cf.Pool.AddCallSite("", "plus", 1))
		c.EmitU8(bytecode.OpUnbox, 'I')
		c.Emit(bytecode.OpIReturn)
	})
	addMethod(t, cf, bytecode.AccPublic|bytecode.AccStatic, "sign", "(I)I", func(c *bytecode.Code) {
		zero := c.NewLabel()
		c.EmitLocal(bytecode.OpILoad, 0)
		c.EmitJump(bytecode.OpIfEq, zero)
		c.Emit(bytecode.OpIConst1)
		c.Emit(bytecode.OpIReturn)
		c.Mark(zero)
		c.Emit(bytecode.OpIConst0)
		c.Emit(bytecode.OpIReturn)
	})
	return cf
}

func thrownOf(t *testing.T, err error) *Thrown {
	t.Helper()
	var thrown *Thrown
	if !errors.As(err, &thrown) {
		t.Fatalf("Expected *Thrown, got %v", err)
	}
	return thrown
}

// ============================================================================
// 基本测试
// ============================================================================

func TestNewVM(t *testing.T) {
	vm := New(nil)
	if vm == nil {
		t.Fatal("New() returned nil")
	}
	if vm.maxDepth != MaxCallDepth {
		t.Errorf("Expected maxDepth=%d, got %d", MaxCallDepth, vm.maxDepth)
	}
	if s := vm.Stats(); s.InstructionsExecuted != 0 || s.MethodCalls != 0 {
		t.Errorf("Expected zero stats, got %+v", s)
	}
}

func TestLoadDuplicateClass(t *testing.T) {
	vm, _ := newTestVM(t, calcClass(t))
	if err := vm.Load(calcClass(t)); err == nil {
		t.Error("Expected error loading demo/Calc twice")
	}
}

func TestInvokeStatic(t *testing.T) {
	vm, _ := newTestVM(t, calcClass(t))

	tests := []struct {
		name   string
		method string
		args   []any
		want   any
	}{
		{"add", "add", []any{int32(2), int32(3)}, int32(5)},
		{"add long args", "add", []any{int64(40), int32(2)}, int32(42)},
		{"sign zero", "sign", []any{int32(0)}, int32(0)},
		{"sign nonzero", "sign", []any{int32(9)}, int32(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vm.InvokeStatic("demo/Calc", tt.method, tt.args...)
			if err != nil {
				t.Fatalf("InvokeStatic: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v (%T), got %v (%T)", tt.want, tt.want, got, got)
			}
		})
	}
}

func TestLoadModule(t *testing.T) {
	data, err := bytecode.Serialize(calcClass(t))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	vm := New(nil)
	if err := vm.LoadModule(data); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	got, err := vm.InvokeStatic("demo/Calc", "add", int32(20), int32(22))
	if err != nil {
		t.Fatalf("InvokeStatic: %v", err)
	}
	if got != int32(42) {
		t.Errorf("Expected 42, got %v", got)
	}
}

// ============================================================================
// 内置 Helper 测试
// ============================================================================

func TestHelpers(t *testing.T) {
	vm := New(nil)

	tests := []struct {
		name string
		recv any
		op   string
		args []any
		want string
	}{
		{"int plus", int32(1), "plus", []any{int32(2)}, "3"},
		{"int plus long", int32(1), "plus", []any{int64(2)}, "3"},
		{"int plus double", int32(1), "plus", []any{2.5}, "3.5"},
		{"string plus", "a", "plus", []any{int32(1)}, "a1"},
		{"exact div", int32(6), "div", []any{int32(3)}, "2"},
		{"inexact div", int32(7), "div", []any{int32(2)}, "3.5"},
		{"mod", int32(17), "mod", []any{int32(5)}, "2"},
		{"power", int32(2), "power", []any{int32(10)}, "1024"},
		{"negative", int32(4), "negative", nil, "-4"},
		{"next", int32(4), "next", nil, "5"},
		{"previous", int64(4), "previous", nil, "3"},
		{"bool and", true, "and", []any{false}, "false"},
		{"xor", int32(6), "xor", []any{int32(3)}, "5"},
		{"string multiply", "ab", "multiply", []any{int32(3)}, "ababab"},
		{"compareTo", "b", "compareTo", []any{"a"}, "1"},
		{"list plus", &List{Elems: []any{int32(1)}}, "plus", []any{int32(2)}, "[1, 2]"},
		{"list minus", &List{Elems: []any{int32(1), int32(2), int32(1)}}, "minus", []any{int32(1)}, "[2]"},
		{"list getAt negative", &List{Elems: []any{"x", "y"}}, "getAt", []any{int32(-1)}, "y"},
		{"list getAt range", &List{Elems: []any{"x", "y", "z"}}, "getAt", []any{&Range{From: 1, To: 2, Inclusive: true}}, "[y, z]"},
		{"range size", &Range{From: 1, To: 5}, "size", nil, "4"},
		{"range isCase", &Range{From: 1, To: 5, Inclusive: true}, "isCase", []any{int32(5)}, "true"},
		{"map getAt", mapOf("k", int32(1)), "getAt", []any{"k"}, "1"},
		{"string size", "hello", "size", nil, "5"},
		{"string getAt", "hello", "getAt", []any{int32(1)}, "e"},
		{"join", &List{Elems: []any{int32(1), "a"}}, "join", []any{"-"}, "1-a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vm.Invoke(tt.recv, tt.op, tt.args...)
			if err != nil {
				t.Fatalf("Invoke %s: %v", tt.op, err)
			}
			if s := format(got); s != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, s)
			}
		})
	}
}

func mapOf(kv ...any) *Map {
	m := NewMap()
	for i := 0; i < len(kv); i += 2 {
		m.Put(kv[i], kv[i+1])
	}
	return m
}

func TestDivisionByZero(t *testing.T) {
	vm := New(nil)
	_, err := vm.Invoke(int32(1), "div", int32(0))
	if thrown := thrownOf(t, err); thrown.ClassName() != "java.lang.ArithmeticException" {
		t.Errorf("Expected ArithmeticException, got %s", thrown.ClassName())
	}
}

func TestMissingMethod(t *testing.T) {
	vm := New(nil)
	_, err := vm.Invoke(int32(1), "frobnicate", "x")
	thrown := thrownOf(t, err)
	if thrown.ClassName() != "groovy.lang.MissingMethodException" {
		t.Errorf("Expected MissingMethodException, got %s", thrown.ClassName())
	}
	if !strings.Contains(thrown.Message(), "frobnicate") {
		t.Errorf("Expected message to name the method, got %q", thrown.Message())
	}
}

func TestNullReceiver(t *testing.T) {
	vm := New(nil)
	got, err := vm.Invoke(nil, "toString")
	if err != nil || got != "null" {
		t.Errorf("Expected \"null\", got %v (%v)", got, err)
	}
	_, err = vm.Invoke(nil, "size")
	if thrown := thrownOf(t, err); thrown.ClassName() != "java.lang.NullPointerException" {
		t.Errorf("Expected NullPointerException, got %s", thrown.ClassName())
	}
}

func TestMapKeysNormalizeNumbers(t *testing.T) {
	m := NewMap()
	m.Put(int32(1), "a")
	m.Put(int64(1), "b")
	if m.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", m.Len())
	}
	if got := m.Get(int32(1)); got != "b" {
		t.Errorf("Expected b, got %v", got)
	}
}

func TestGlobalPrintln(t *testing.T) {
	vm, out := newTestVM(t)
	if _, err := vm.Invoke(nil, "println", &List{Elems: []any{int32(1), 2.0, "x"}}); err != nil {
		t.Fatalf("println: %v", err)
	}
	if got := out.String(); got != "[1, 2.0, x]\n" {
		t.Errorf("Expected %q, got %q", "[1, 2.0, x]\n", got)
	}
}

// ============================================================================
// 对象、字段与类初始化测试
// ============================================================================

// pointClass demo/Point：实例字段 x:I，构造函数 (I)V，静态字段 created:I
func pointClass(t *testing.T) *bytecode.ClassFile {
	cf := bytecode.NewClassFile("demo/Point", objectClass, bytecode.AccPublic)
	cf.AddField(&bytecode.FieldInfo{Access: bytecode.AccPrivate, Name: "x", Descriptor: "I"})
	cf.AddField(&bytecode.FieldInfo{Access: bytecode.AccPublic | bytecode.AccStatic, Name: "created", Descriptor: "I"})
	cf.AddField(&bytecode.FieldInfo{
		Access:        bytecode.AccPublic | bytecode.AccStatic | bytecode.AccFinal,
		Name:          "ORIGIN",
		Descriptor:    "Ljava/lang/String;",
		ConstantValue: cf.Pool.AddString("(0,0)"),
	})
	addMethod(t, cf, bytecode.AccPublic, "<init>", "(I)V", func(c *bytecode.Code) {
		c.EmitLocal(bytecode.OpALoad, 0)
		c.EmitU16(bytecode.OpInvokeSpecial, cf.Pool.AddMethodRef(objectClass, "<init>", "()V"))
		c.EmitLocal(bytecode.OpALoad, 0)
		c.EmitLocal(bytecode.OpILoad, 1)
		c.EmitU16(bytecode.OpPutField, cf.Pool.AddFieldRef("demo/Point", "x", "I"))
		c.Emit(bytecode.OpReturn)
	})
	addMethod(t, cf, bytecode.AccStatic, "<clinit>", "()V", func(c *bytecode.Code) {
		c.Emit(bytecode.OpIConst1)
		c.EmitU16(bytecode.OpPutStatic, cf.Pool.AddFieldRef("demo/Point", "created", "I"))
		c.Emit(bytecode.OpReturn)
	})
	addMethod(t, cf, bytecode.AccPublic, "getX", "()I", func(c *bytecode.Code) {
		c.EmitLocal(bytecode.OpALoad, 0)
		c.EmitU16(bytecode.OpGetField, cf.Pool.AddFieldRef("demo/Point", "x", "I"))
		c.Emit(bytecode.OpIReturn)
	})
	return cf
}

func TestClassInitialization(t *testing.T) {
	vm, _ := newTestVM(t, pointClass(t))

	if state := vm.Class("demo/Point").state; state != classLinked {
		t.Fatalf("Expected class to be linked but not initialized, got state %d", state)
	}
	created, err := vm.GetStatic("demo/Point", "created")
	if err != nil {
		t.Fatalf("GetStatic: %v", err)
	}
	if created != int32(1) {
		t.Errorf("Expected created=1, got %v", created)
	}
	origin, err := vm.GetStatic("demo/Point", "ORIGIN")
	if err != nil {
		t.Fatalf("GetStatic: %v", err)
	}
	if origin != "(0,0)" {
		t.Errorf("Expected ORIGIN=(0,0), got %v", origin)
	}
}

func TestFieldsAndProperties(t *testing.T) {
	vm, _ := newTestVM(t, pointClass(t))

	p, err := vm.NewInstance("demo/Point", int32(7))
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if got := p.Fields["x"]; got != int32(7) {
		t.Errorf("Expected field x=7, got %v", got)
	}

	x, err := vm.getProperty(p, "x")
	if err != nil || x != int32(7) {
		t.Errorf("Expected property x=7 through getX, got %v (%v)", x, err)
	}

	if err := vm.setProperty(p, "x", int64(9)); err != nil {
		t.Fatalf("setProperty: %v", err)
	}
	if got := p.Fields["x"]; got != int32(9) {
		t.Errorf("Expected coerced field x=9 (int32), got %v (%T)", got, got)
	}

	_, err = vm.getProperty(p, "nope")
	if thrown := thrownOf(t, err); thrown.ClassName() != "groovy.lang.MissingPropertyException" {
		t.Errorf("Expected MissingPropertyException, got %s", thrown.ClassName())
	}

	if err := vm.setProperty(p, "x", nil); err == nil {
		t.Error("Expected error assigning null to a primitive field")
	}
}

func TestReferenceCell(t *testing.T) {
	vm := New(nil)
	ref, err := vm.NewInstance(referenceClass, "a")
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if _, err := vm.Invoke(ref, "set", "b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := vm.Invoke(ref, "get")
	if err != nil || got != "b" {
		t.Errorf("Expected b, got %v (%v)", got, err)
	}
}

// ============================================================================
// 异常测试
// ============================================================================

// failClass demo/Fail：recover() 捕获 RuntimeException 并返回消息，
// raise() 抛出 IllegalStateException，loop() 无限递归
func failClass(t *testing.T) *bytecode.ClassFile {
	cf := bytecode.NewClassFile("demo/Fail", objectClass, bytecode.AccPublic)
	pool := cf.Pool
	throwNew := func(c *bytecode.Code, class, msg string) {
		c.EmitU16(bytecode.OpNew, pool.AddClass(class))
		c.Emit(bytecode.OpDup)
		c.EmitU16(bytecode.OpLdc, pool.AddString(msg))
		c.EmitU16(bytecode.OpInvokeSpecial, pool.AddMethodRef(class, "<init>", "(Ljava/lang/String;)V"))
		c.Emit(bytecode.OpAThrow)
	}
	addMethod(t, cf, bytecode.AccPublic|bytecode.AccStatic, "recover", "()Ljava/lang/String;", func(c *bytecode.Code) {
		start, end, handler := c.NewLabel(), c.NewLabel(), c.NewLabel()
		c.Mark(start)
		throwNew(c, "java/lang/IllegalArgumentException", "boom")
		c.Mark(end)
		c.Mark(handler)
		c.EmitU16(bytecode.OpInvokeVirtual, pool.AddMethodRef(throwableClass, "getMessage", "()Ljava/lang/String;"))
		c.Emit(bytecode.OpAReturn)
		c.AddTryCatch(start, end, handler, "java/lang/RuntimeException")
	})
	addMethod(t, cf, bytecode.AccPublic|bytecode.AccStatic, "raise", "()V", func(c *bytecode.Code) {
		throwNew(c, "java/lang/IllegalStateException", "bad state")
	})
	addMethod(t, cf, bytecode.AccPublic|bytecode.AccStatic, "loop", "()V", func(c *bytecode.Code) {
		c.EmitU16(bytecode.OpInvokeStatic, pool.AddMethodRef("demo/Fail", "loop", "()V"))
		c.Emit(bytecode.OpReturn)
	})
	return cf
}

func TestExceptionHandler(t *testing.T) {
	vm, _ := newTestVM(t, failClass(t))
	got, err := vm.InvokeStatic("demo/Fail", "recover")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != "boom" {
		t.Errorf("Expected boom, got %v", got)
	}
}

func TestUncaughtException(t *testing.T) {
	vm, _ := newTestVM(t, failClass(t))
	_, err := vm.InvokeStatic("demo/Fail", "raise")
	thrown := thrownOf(t, err)
	if thrown.ClassName() != "java.lang.IllegalStateException" {
		t.Errorf("Expected IllegalStateException, got %s", thrown.ClassName())
	}
	if thrown.Message() != "bad state" {
		t.Errorf("Expected message %q, got %q", "bad state", thrown.Message())
	}
	if thrown.Error() != "java.lang.IllegalStateException: bad state" {
		t.Errorf("Expected formatted error, got %q", thrown.Error())
	}
}

func TestStackOverflow(t *testing.T) {
	out := &bytes.Buffer{}
	vm := New(&Options{Out: out, MaxDepth: 32})
	if err := vm.Load(failClass(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err := vm.InvokeStatic("demo/Fail", "loop")
	if thrown := thrownOf(t, err); thrown.ClassName() != "java.lang.StackOverflowError" {
		t.Errorf("Expected StackOverflowError, got %s", thrown.ClassName())
	}
}

func TestBuiltinHierarchy(t *testing.T) {
	vm := New(nil)
	tests := []struct {
		sub, super string
		want       bool
	}{
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException", true},
		{"java/lang/NumberFormatException", "java/lang/Exception", true},
		{"java/lang/StackOverflowError", "java/lang/Exception", false},
		{"java/lang/AssertionError", throwableClass, true},
	}
	for _, tt := range tests {
		t.Run(tt.sub, func(t *testing.T) {
			if got := vm.class(tt.sub).IsSubclassOf(tt.super); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// ============================================================================
// Profile 测试
// ============================================================================

func TestProfiler(t *testing.T) {
	prof := NewProfiler()
	vm := New(&Options{Profiler: prof})
	if err := vm.Load(calcClass(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, n := range []int32{0, 3, 5} {
		if _, err := vm.InvokeStatic("demo/Calc", "sign", n); err != nil {
			t.Fatalf("sign: %v", err)
		}
	}

	snap := prof.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Expected 1 profiled method, got %d", len(snap))
	}
	mp := snap[0]
	if mp.Method != "sign" || mp.Calls.Load() != 3 {
		t.Errorf("Expected sign called 3 times, got %s x%d", mp.Method, mp.Calls.Load())
	}
	pcs := mp.Branches()
	if len(pcs) != 1 {
		t.Fatalf("Expected 1 branch site, got %d", len(pcs))
	}
	bp := mp.Branch(pcs[0])
	if bp.Taken.Load() != 1 || bp.NotTaken.Load() != 2 {
		t.Errorf("Expected taken=1 notTaken=2, got %d/%d", bp.Taken.Load(), bp.NotTaken.Load())
	}
}
