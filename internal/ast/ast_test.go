package ast

import (
	"testing"

	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 类型引用
// ============================================================================

func TestTypeRefEquals(t *testing.T) {
	list := MakeGeneric("java.util.List", StringType)
	tests := []struct {
		name string
		a, b *TypeRef
		want bool
	}{
		{"same primitive", Make("int"), IntType, true},
		{"def is object", Make("def"), ObjectType, true},
		{"generic args are erased", list, Make("java.util.List"), true},
		{"placeholder erases to bound", PlaceholderOf("T", NumberType), NumberType, true},
		{"unbounded placeholder", PlaceholderOf("T", nil), ObjectType, true},
		{"arrays compare components", ArrayOf(IntType), ArrayOf(Make("int")), true},
		{"array vs element", ArrayOf(IntType), IntType, false},
		{"primitive vs wrapper", IntType, IntegerType, false},
		{"nil", IntType, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equals(tt.b); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTypeRefIsDerivedFrom(t *testing.T) {
	base := NewClass("demo.Base", AccPublic, nil)
	sub := NewClass("demo.Sub", AccPublic, base.Type())

	tests := []struct {
		name       string
		sub, super *TypeRef
		want       bool
	}{
		{"integer is a number", IntegerType, NumberType, true},
		{"integer is comparable", IntegerType, Make("java.lang.Comparable"), true},
		{"string is an object", StringType, ObjectType, true},
		{"primitive is not an object", IntType, ObjectType, false},
		{"runtime exception is throwable", Make("java.lang.RuntimeException"), ThrowableType, true},
		{"user subclass", sub.Type(), base.Type(), true},
		{"user superclass is not a subclass", base.Type(), sub.Type(), false},
		{"array covariance", ArrayOf(IntegerType), ArrayOf(NumberType), true},
		{"unrelated", StringType, NumberType, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.IsDerivedFrom(tt.super); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTypeRefHelpers(t *testing.T) {
	if IntType.Wrapper() != IntegerType {
		t.Errorf("Expected int wrapper Integer, got %s", IntType.Wrapper())
	}
	if StringType.Wrapper() != StringType {
		t.Error("Expected reference types to be their own wrapper")
	}
	if !VoidType.IsVoid() || !VoidType.IsPrimitive() {
		t.Error("Expected void to be a primitive void type")
	}
	if got := StringType.SimpleName(); got != "String" {
		t.Errorf("Expected String, got %s", got)
	}
	if got := MakeGeneric("java.util.Map", StringType, ArrayOf(IntType)).String(); got != "java.util.Map<java.lang.String, int[]>" {
		t.Errorf("Unexpected string form %s", got)
	}
}

// ============================================================================
// 类节点
// ============================================================================

func TestClassMembers(t *testing.T) {
	base := NewClass("demo.Base", AccPublic, nil)
	base.AddField(NewField("secret", AccPrivate, nil, nil))
	base.AddField(NewField("shared", AccPublic, IntType, nil))
	base.AddMethod(NewMethod("get", AccPublic, nil, Params(Param("i", IntType)), Block()))

	sub := NewClass("demo.Sub", AccPublic, base.Type())
	ctor := NewConstructor(AccPublic, nil, Block())
	sub.AddMethod(ctor)
	sub.AddProperty(NewProperty("name", AccPublic, StringType, nil))

	if len(sub.Constructors) != 1 || len(sub.Methods) != 0 || ctor.Owner != sub {
		t.Errorf("Expected constructor routed to Constructors")
	}
	if sub.DeclaredMethod(ConstructorName, nil) != ctor {
		t.Error("Expected to find the constructor by parameters")
	}
	if sub.Field("shared") == nil {
		t.Error("Expected inherited public field")
	}
	if sub.Field("secret") != nil {
		t.Error("Expected inherited private field to be hidden")
	}
	if sub.Method("get", Params(Param("x", IntType))) == nil {
		t.Error("Expected inherited method lookup by parameter types")
	}
	if sub.Method("get", Params(Param("x", LongType))) != nil {
		t.Error("Expected no match for different parameter types")
	}
	if !sub.HasMethodNamed("get") {
		t.Error("Expected HasMethodNamed to search superclasses")
	}

	p := sub.Property("name")
	if p == nil || sub.DeclaredField("name") != p.Field || !p.Field.IsPrivate() {
		t.Error("Expected property with a private backing field")
	}
	if !sub.IsDerivedFrom("demo.Base") || !sub.IsDerivedFrom(ObjectType.Name) || base.IsDerivedFrom("demo.Sub") {
		t.Error("Unexpected class hierarchy result")
	}
}

func TestMethodBlock(t *testing.T) {
	m := NewMethod("m", AccPublic, nil, nil, Return(Const(1)))
	b := m.Block()
	if len(b.Stmts) != 1 || m.Code != b {
		t.Errorf("Expected single statement wrapped in a block")
	}
	if m.Block() != b {
		t.Error("Expected Block to be stable")
	}

	empty := NewMethod("n", AccPublic, VoidType, nil, nil)
	if empty.Block() == nil || !empty.IsVoid() {
		t.Error("Expected empty block for a method without code")
	}
	if !NewMethod("d", AccPublic, nil, Params(ParamWithDefault("a", nil, Const(1))), nil).HasDefaultValue() {
		t.Error("Expected HasDefaultValue")
	}
}

// ============================================================================
// 遍历
// ============================================================================

func TestInspect(t *testing.T) {
	body := Block(
		Stmt(Declare(Var("total"), Const(0))),
		ForIn(Param("i", nil), List(Const(1), Const(2)), Block(
			If(Binary(token.GT, Var("i"), Const(1)), Break(""), nil),
			Stmt(Assign(Var("total"), Binary(token.PLUS, Var("total"), Var("i")))),
		)),
		Stmt(Call(nil, "each", Closure(nil, Block(Stmt(Var("it")))))),
		Return(Var("total")),
	)

	vars := map[string]int{}
	Inspect(body, func(n Node) bool {
		if v, ok := n.(*VariableExpr); ok {
			vars[v.Name]++
		}
		return true
	})
	if vars["total"] != 4 || vars["i"] != 2 || vars["it"] != 1 {
		t.Errorf("Unexpected variable counts %v", vars)
	}

	// 不进入闭包
	closures, inner := 0, 0
	Inspect(body, func(n Node) bool {
		switch x := n.(type) {
		case *ClosureExpr:
			closures++
			return false
		case *VariableExpr:
			if x.Name == "it" {
				inner++
			}
		}
		return true
	})
	if closures != 1 || inner != 0 {
		t.Errorf("Expected the closure body to be skipped, got %d closures and %d inner refs", closures, inner)
	}
}
