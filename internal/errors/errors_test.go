package errors

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"go.lsp.dev/protocol"
	"go.uber.org/multierr"

	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 收集器
// ============================================================================

func TestCollector(t *testing.T) {
	c := NewCollector("demo.C", "C.groovy")
	if c.HasErrors() || c.Err() != nil {
		t.Fatal("Expected empty collector")
	}

	c.Add(E0821, token.At(3, 5), "method '%s' is already defined", "m")
	c.Add(E0840, token.Position{Filename: "Other.groovy", Line: 7, Column: 1}, "bad name")

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(errs))
	}
	if errs[0].Class != "demo.C" || errs[0].File != "C.groovy" {
		t.Errorf("Expected demo.C in C.groovy, got %s in %s", errs[0].Class, errs[0].File)
	}
	if errs[1].File != "Other.groovy" {
		t.Errorf("Expected position file to win, got %s", errs[1].File)
	}
	if errs[0].Error() != "C.groovy:3:5: method 'm' is already defined" {
		t.Errorf("Unexpected message: %s", errs[0].Error())
	}
	if got := len(multierr.Errors(c.Err())); got != 2 {
		t.Errorf("Expected 2 combined errors, got %d", got)
	}

	// Errors 返回副本
	errs[0] = nil
	if c.Errors()[0] == nil {
		t.Error("Expected Errors to return a copy")
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector("demo.C", "C.groovy")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(E0844, token.At(1, 1), "jump")
		}()
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Expected 10 errors, got %d", c.Len())
	}
}

// ============================================================================
// 内部错误
// ============================================================================

func TestRecoverInternalError(t *testing.T) {
	run := func(fn func()) (err error) {
		defer Recover(&err, "demo.C", "m")
		fn()
		return nil
	}

	err := run(func() { Raise(I0002, token.At(4, 2), "no variable %s", "x") })
	if !IsInternal(err) {
		t.Fatalf("Expected internal error, got %v", err)
	}
	ie := err.(*InternalError)
	if ie.Class != "demo.C" || ie.Method != "m" {
		t.Errorf("Expected location demo.C.m, got %s.%s", ie.Class, ie.Method)
	}
	want := "internal error [I0002] in demo.C.m at"
	if !strings.HasPrefix(ie.Error(), want) {
		t.Errorf("Expected prefix %q, got %q", want, ie.Error())
	}

	// 已填写的位置不被覆盖
	err = run(func() { panic(&InternalError{Code: I0001, Class: "demo.D", Message: "x"}) })
	if ie := err.(*InternalError); ie.Class != "demo.D" || ie.Method != "m" {
		t.Errorf("Expected demo.D.m, got %s.%s", ie.Class, ie.Method)
	}

	if err := run(func() {}); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}

	defer func() {
		if r := recover(); r != "other" {
			t.Errorf("Expected foreign panic to propagate, got %v", r)
		}
	}()
	_ = run(func() { panic("other") })
}

// ============================================================================
// LSP 诊断
// ============================================================================

func TestToDiagnostic(t *testing.T) {
	tests := []struct {
		name     string
		err      *CompileError
		line     uint32
		char     uint32
		severity protocol.DiagnosticSeverity
		message  string
	}{
		{
			name:     "error with hint",
			err:      &CompileError{Code: E0821, Level: LevelError, Message: "dup", Line: 3, Column: 5, Hints: []string{"rename"}},
			line:     2,
			char:     4,
			severity: protocol.DiagnosticSeverityError,
			message:  "dup\nhelp: rename",
		},
		{
			name:     "warning without position",
			err:      &CompileError{Code: E0899, Level: LevelWarning, Message: "w"},
			severity: protocol.DiagnosticSeverityWarning,
			message:  "w",
		},
		{
			name:     "note",
			err:      &CompileError{Code: E0899, Level: LevelNote, Message: "n", Line: 1, Column: 1},
			severity: protocol.DiagnosticSeverityInformation,
			message:  "n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ToDiagnostic(tt.err)
			if d.Range.Start.Line != tt.line || d.Range.Start.Character != tt.char {
				t.Errorf("Expected %d:%d, got %d:%d", tt.line, tt.char, d.Range.Start.Line, d.Range.Start.Character)
			}
			if d.Severity != tt.severity {
				t.Errorf("Expected severity %v, got %v", tt.severity, d.Severity)
			}
			if d.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, d.Message)
			}
			if d.Source != DiagnosticSource {
				t.Errorf("Expected source %s, got %s", DiagnosticSource, d.Source)
			}
		})
	}
}

func TestPublishParams(t *testing.T) {
	errs := []*CompileError{
		{Code: E0821, File: "/src/A.groovy", Message: "a1"},
		{Code: E0840, File: "/src/B.groovy", Message: "b1"},
		{Code: E0820, File: "/src/A.groovy", Message: "a2"},
	}
	params := PublishParams(errs)
	if len(params) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(params))
	}
	if string(params[0].URI) != "file:///src/A.groovy" {
		t.Errorf("Expected file:///src/A.groovy, got %s", params[0].URI)
	}
	if len(params[0].Diagnostics) != 2 || len(params[1].Diagnostics) != 1 {
		t.Errorf("Expected 2 and 1 diagnostics, got %d and %d", len(params[0].Diagnostics), len(params[1].Diagnostics))
	}
}

// ============================================================================
// 报告器
// ============================================================================

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.SetSource("C.groovy", "class C {\n  def m() {}\n}")

	r.ReportAll([]*CompileError{
		{Code: E0821, Level: LevelError, Message: "duplicate method m()", File: "C.groovy", Line: 2, Column: 3, Class: "demo.C"},
		{Code: E0899, Level: LevelWarning, Message: "odd", File: "C.groovy"},
	})
	r.Summary()

	out := buf.String()
	for _, want := range []string{
		"error[E0821]: duplicate method m()",
		"--> C.groovy:2:3",
		"in class demo.C",
		"def m() {}",
		"= help: rename one of the methods",
		"could not compile due to 1 previous error\n",
		"warning: 1 warning emitted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if !r.HasErrors() || r.ErrorCount() != 1 || r.WarningCount() != 1 {
		t.Errorf("Expected 1 error and 1 warning, got %d and %d", r.ErrorCount(), r.WarningCount())
	}
}

func TestFindSimilar(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"outr", []string{"inner", "outer"}, "outer"},
		{"zzz", []string{"outer"}, ""},
		{"x", nil, ""},
	}
	for _, tt := range tests {
		if got := FindSimilar(tt.name, tt.candidates, 2); got != tt.want {
			t.Errorf("FindSimilar(%q): expected %q, got %q", tt.name, tt.want, got)
		}
	}
}
