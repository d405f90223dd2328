package bytecode

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

// sampleClass 构造一个带静态常量字段、普通方法与 try/catch 方法的类模块
func sampleClass(t *testing.T) *ClassFile {
	t.Helper()
	cf := NewClassFile("demo/Sample", "java/lang/Object", AccPublic|AccSuper)
	cf.SourceFile = "Sample.groovy"
	cf.AddField(&FieldInfo{Access: AccPublic | AccStatic | AccFinal, Name: "LIMIT", Descriptor: "I", ConstantValue: cf.Pool.AddInt(7)})

	// static int one() { "x"; return 1 }
	code := NewCode(cf.Pool)
	start, end := code.NewLabel(), code.NewLabel()
	code.Mark(start)
	code.LineNumber(3)
	code.Emit(OpIConst1)
	code.EmitU16(OpLdc, cf.Pool.AddString("x"))
	code.Emit(OpPop)
	code.Emit(OpIReturn)
	code.Mark(end)
	code.LocalVariable("unused", "Ljava/lang/Object;", 0, start, end)
	code.ReserveLocals(1)
	one := &MethodInfo{Access: AccPublic | AccStatic, Name: "one", Descriptor: "()I"}
	if err := code.Finish(one, 0); err != nil {
		t.Fatalf("Finish one failed: %v", err)
	}
	cf.AddMethod(one)

	// static void guarded() { try { 1 } catch (Exception e) {} }
	code = NewCode(cf.Pool)
	tryStart, tryEnd, handler, done := code.NewLabel(), code.NewLabel(), code.NewLabel(), code.NewLabel()
	code.Mark(tryStart)
	code.Emit(OpIConst1)
	code.Emit(OpPop)
	code.Mark(tryEnd)
	code.EmitJump(OpGoto, done)
	code.Mark(handler)
	code.Emit(OpPop)
	code.Mark(done)
	code.Emit(OpReturn)
	code.AddTryCatch(tryStart, tryEnd, handler, "java/lang/Exception")
	guarded := &MethodInfo{Access: AccPublic | AccStatic, Name: "guarded", Descriptor: "()V"}
	if err := code.Finish(guarded, 0); err != nil {
		t.Fatalf("Finish guarded failed: %v", err)
	}
	cf.AddMethod(guarded)
	return cf
}

// ============================================================================
// 汇编
// ============================================================================

func TestCodeFinish(t *testing.T) {
	cf := sampleClass(t)
	one := cf.Method("one", "()I")
	if one.MaxStack != 2 {
		t.Errorf("Expected max stack 2, got %d", one.MaxStack)
	}
	if one.MaxLocals != 1 {
		t.Errorf("Expected max locals 1, got %d", one.MaxLocals)
	}
	if len(one.Lines) != 1 || one.Lines[0].Line != 3 {
		t.Errorf("Expected one line entry for line 3, got %v", one.Lines)
	}
	if len(one.Locals) != 1 || one.Locals[0].Length != uint16(len(one.Code)) {
		t.Errorf("Expected local spanning the method, got %v", one.Locals)
	}

	guarded := cf.Method("guarded", "()V")
	if len(guarded.Handlers) != 1 || guarded.Handlers[0].CatchType != "java/lang/Exception" {
		t.Fatalf("Expected one Exception handler, got %v", guarded.Handlers)
	}
	h := guarded.Handlers[0]
	if h.Start != 0 || h.End != 2 {
		t.Errorf("Expected range [0,2), got [%d,%d)", h.Start, h.End)
	}
	if target := BranchTarget(guarded.Code, 2); target != int(h.Handler)+1 {
		t.Errorf("Expected goto to skip the handler, got target %d", target)
	}
}

func TestCodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(c *Code)
	}{
		{"unbound label", func(c *Code) {
			c.EmitJump(OpGoto, c.NewLabel())
		}},
		{"label bound twice", func(c *Code) {
			l := c.NewLabel()
			c.Mark(l)
			c.Emit(OpNop)
			c.Mark(l)
			c.Emit(OpReturn)
		}},
		{"jump with non-branch opcode", func(c *Code) {
			l := c.NewLabel()
			c.Mark(l)
			c.EmitJump(OpPop, l)
		}},
		{"stack underflow", func(c *Code) {
			c.Emit(OpPop)
			c.Emit(OpReturn)
		}},
		{"falls off the end", func(c *Code) {
			c.Emit(OpNop)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCode(NewConstantPool())
			tt.build(c)
			if err := c.Finish(&MethodInfo{Name: "m", Descriptor: "()V"}, 0); err == nil {
				t.Error("Expected Finish to fail")
			}
		})
	}
}

func TestStackLimit(t *testing.T) {
	c := NewCode(NewConstantPool())
	c.Emit(OpIConst1)
	c.Emit(OpIConst1)
	c.Emit(OpIConst1)
	c.Emit(OpPop)
	c.Emit(OpPop)
	c.Emit(OpIReturn)
	if err := c.Finish(&MethodInfo{Name: "m", Descriptor: "()I"}, 2); err == nil {
		t.Error("Expected depth 3 to exceed a limit of 2")
	}
}

// ============================================================================
// 序列化
// ============================================================================

func TestSerializeRoundTrip(t *testing.T) {
	cf := sampleClass(t)
	data, err := Serialize(cf)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if got.Name != cf.Name || got.Super != cf.Super || got.SourceFile != cf.SourceFile || got.Access != cf.Access {
		t.Errorf("Expected header %s/%s/%s, got %s/%s/%s", cf.Name, cf.Super, cf.SourceFile, got.Name, got.Super, got.SourceFile)
	}
	if got.Pool.Len() != cf.Pool.Len() {
		t.Errorf("Expected %d constants, got %d", cf.Pool.Len(), got.Pool.Len())
	}

	limit := got.Field("LIMIT")
	if limit == nil {
		t.Fatal("Expected field LIMIT")
	}
	if c, ok := got.Pool.Get(limit.ConstantValue); !ok || c.Tag != ConstInt || c.Int != 7 {
		t.Errorf("Expected ConstantValue 7, got %v", c)
	}

	for _, m := range cf.Methods {
		gm := got.Method(m.Name, m.Descriptor)
		if gm == nil {
			t.Fatalf("Missing method %s%s", m.Name, m.Descriptor)
		}
		if !bytes.Equal(gm.Code, m.Code) {
			t.Errorf("%s: code differs", m.Name)
		}
		if gm.MaxStack != m.MaxStack || gm.MaxLocals != m.MaxLocals {
			t.Errorf("%s: expected maxs %d/%d, got %d/%d", m.Name, m.MaxStack, m.MaxLocals, gm.MaxStack, gm.MaxLocals)
		}
		if len(gm.Handlers) != len(m.Handlers) || len(gm.Lines) != len(m.Lines) || len(gm.Locals) != len(m.Locals) {
			t.Errorf("%s: debug and handler tables differ", m.Name)
		}
	}

	again, err := Serialize(got)
	if err != nil {
		t.Fatalf("Serialize again failed: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Error("Expected serialization to be deterministic")
	}
}

func TestDeserializeRejectsTampering(t *testing.T) {
	data, err := Serialize(sampleClass(t))
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		digest bool
	}{
		{"flipped body byte", func(b []byte) []byte { b[HeaderSize+2] ^= 0xFF; return b }, true},
		{"flipped digest byte", func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }, true},
		{"truncated", func(b []byte) []byte { return b[:HeaderSize] }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := tt.mutate(append([]byte(nil), data...))
			_, err := Deserialize(corrupt)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.digest && !stderrors.Is(err, ErrDigestMismatch) {
				t.Errorf("Expected digest mismatch, got %v", err)
			}
		})
	}
}

// ============================================================================
// 验证
// ============================================================================

func TestVerify(t *testing.T) {
	cf := sampleClass(t)
	if err := Verify(cf); err != nil {
		t.Fatalf("Expected valid module, got %v", err)
	}

	bad := NewClassFile("demo/Bad", "java/lang/Object", AccPublic)
	bad.AddMethod(&MethodInfo{Name: "under", Descriptor: "()V", Code: []byte{byte(OpPop), byte(OpReturn)}})
	bad.AddMethod(&MethodInfo{Name: "slot", Descriptor: "()V", MaxStack: 1, Code: []byte{byte(OpALoad), 0, 3, byte(OpPop), byte(OpReturn)}})
	bad.AddMethod(&MethodInfo{Name: "desc", Descriptor: "(Q)V", Code: []byte{byte(OpReturn)}})
	bad.AddMethod(&MethodInfo{Name: "maxs", Descriptor: "()I", MaxStack: 0, Code: []byte{byte(OpIConst1), byte(OpIReturn)}})
	bad.AddMethod(&MethodInfo{Name: "maxs", Descriptor: "()I", MaxStack: 1, Code: []byte{byte(OpIConst1), byte(OpIReturn)}})

	errs := multierr.Errors(Verify(bad))
	if len(errs) != 5 {
		t.Fatalf("Expected 5 verification errors, got %d: %v", len(errs), errs)
	}
	for _, err := range errs {
		var ve *VerificationError
		if !stderrors.As(err, &ve) {
			t.Errorf("Expected *VerificationError, got %T", err)
		}
	}
}

// ============================================================================
// 描述符
// ============================================================================

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc   string
		params []string
		ret    string
		ok     bool
	}{
		{"()V", nil, "V", true},
		{"(IJLjava/lang/String;)Z", []string{"I", "J", "Ljava/lang/String;"}, "Z", true},
		{"([[ILjava/lang/Object;)[Ljava/lang/String;", []string{"[[I", "Ljava/lang/Object;"}, "[Ljava/lang/String;", true},
		{"(Ljava/lang/Object)V", nil, "", false},
		{"(I", nil, "", false},
		{"I", nil, "", false},
		{"()VV", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			params, ret, err := ParseMethodDescriptor(tt.desc)
			if (err == nil) != tt.ok {
				t.Fatalf("Expected ok=%v, got err=%v", tt.ok, err)
			}
			if !tt.ok {
				return
			}
			if strings.Join(params, ",") != strings.Join(tt.params, ",") || ret != tt.ret {
				t.Errorf("Expected %v %s, got %v %s", tt.params, tt.ret, params, ret)
			}
		})
	}
}

func TestDescriptorHelpers(t *testing.T) {
	if got := ArgCount("(IJD)V"); got != 3 {
		t.Errorf("Expected 3 args, got %d", got)
	}
	if got := ArgCount("bad"); got != -1 {
		t.Errorf("Expected -1 for an invalid descriptor, got %d", got)
	}
	if got := ReturnDescriptor("(I)Ljava/lang/Object;"); got != "Ljava/lang/Object;" {
		t.Errorf("Expected Ljava/lang/Object;, got %s", got)
	}
	for desc, want := range map[string]int{"J": 2, "D": 2, "I": 1, "Ljava/lang/Object;": 1} {
		if got := SlotSize(desc); got != want {
			t.Errorf("SlotSize(%s): expected %d, got %d", desc, want, got)
		}
	}
	if got := ClassNameOf("Ljava/lang/String;"); got != "java/lang/String" {
		t.Errorf("Expected java/lang/String, got %s", got)
	}
	if got := ClassNameOf("[I"); got != "[I" {
		t.Errorf("Expected [I unchanged, got %s", got)
	}
}

func TestDisassemble(t *testing.T) {
	out := Disassemble(sampleClass(t))
	for _, want := range []string{"class demo/Sample extends java/lang/Object", "field LIMIT I", "one", "guarded", "source Sample.groovy"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected disassembly to contain %q, got:\n%s", want, out)
		}
	}
}
