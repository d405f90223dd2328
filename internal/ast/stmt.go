package ast

import (
	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 语句节点
// ============================================================================

// BlockStmt 代码块 { ... }
type BlockStmt struct {
	Position token.Position
	Stmts    []Statement
}

func (s *BlockStmt) Pos() token.Position { return s.Position }
func (s *BlockStmt) stmtNode()           {}

// ExprStmt 表达式语句
type ExprStmt struct {
	Position token.Position
	X        Expression
}

func (s *ExprStmt) Pos() token.Position { return s.Position }
func (s *ExprStmt) stmtNode()           {}

// IfStmt if/else 语句
type IfStmt struct {
	Position token.Position
	Cond     Expression
	Then     Statement
	Else     Statement // 可为 nil
}

func (s *IfStmt) Pos() token.Position { return s.Position }
func (s *IfStmt) stmtNode()           {}

// WhileStmt while 循环
type WhileStmt struct {
	Position token.Position
	Cond     Expression
	Body     Statement
}

func (s *WhileStmt) Pos() token.Position { return s.Position }
func (s *WhileStmt) stmtNode()           {}

// DoWhileStmt do-while 循环
type DoWhileStmt struct {
	Position token.Position
	Body     Statement
	Cond     Expression
}

func (s *DoWhileStmt) Pos() token.Position { return s.Position }
func (s *DoWhileStmt) stmtNode()           {}

// ForInStmt for (x in collection) 循环
type ForInStmt struct {
	Position   token.Position
	Var        *Parameter
	Collection Expression
	Body       Statement
}

func (s *ForInStmt) Pos() token.Position { return s.Position }
func (s *ForInStmt) stmtNode()           {}

// ForStmt 经典 for (init; cond; update) 循环
type ForStmt struct {
	Position token.Position
	Init     []Expression
	Cond     Expression // 可为 nil，表示恒真
	Update   []Expression
	Body     Statement
}

func (s *ForStmt) Pos() token.Position { return s.Position }
func (s *ForStmt) stmtNode()           {}

// SwitchStmt switch 语句
type SwitchStmt struct {
	Position token.Position
	X        Expression
	Cases    []*CaseStmt
	Default  Statement // 可为 nil
}

func (s *SwitchStmt) Pos() token.Position { return s.Position }
func (s *SwitchStmt) stmtNode()           {}

// CaseStmt switch 中的 case 分支
type CaseStmt struct {
	Position token.Position
	Value    Expression
	Body     Statement
}

func (s *CaseStmt) Pos() token.Position { return s.Position }
func (s *CaseStmt) stmtNode()           {}

// BreakStmt break 语句，Label 为空表示最近的循环或 switch
type BreakStmt struct {
	Position token.Position
	Label    string
}

func (s *BreakStmt) Pos() token.Position { return s.Position }
func (s *BreakStmt) stmtNode()           {}

// ContinueStmt continue 语句
type ContinueStmt struct {
	Position token.Position
	Label    string
}

func (s *ContinueStmt) Pos() token.Position { return s.Position }
func (s *ContinueStmt) stmtNode()           {}

// ReturnStmt return 语句
type ReturnStmt struct {
	Position token.Position
	Value    Expression // 可为 nil
}

func (s *ReturnStmt) Pos() token.Position { return s.Position }
func (s *ReturnStmt) stmtNode()           {}

// ThrowStmt throw 语句
type ThrowStmt struct {
	Position token.Position
	X        Expression
}

func (s *ThrowStmt) Pos() token.Position { return s.Position }
func (s *ThrowStmt) stmtNode()           {}

// TryStmt try/catch/finally 语句
type TryStmt struct {
	Position token.Position
	Body     Statement
	Catches  []*CatchStmt
	Finally  Statement // 可为 nil
}

func (s *TryStmt) Pos() token.Position { return s.Position }
func (s *TryStmt) stmtNode()           {}

// CatchStmt catch 子句
type CatchStmt struct {
	Position token.Position
	Param    *Parameter // 异常变量及其类型
	Body     Statement
}

func (s *CatchStmt) Pos() token.Position { return s.Position }
func (s *CatchStmt) stmtNode()           {}

// SynchronizedStmt synchronized (lock) { ... }
type SynchronizedStmt struct {
	Position token.Position
	Lock     Expression
	Body     Statement
}

func (s *SynchronizedStmt) Pos() token.Position { return s.Position }
func (s *SynchronizedStmt) stmtNode()           {}

// LabeledStmt 带标签的语句 label: stmt
type LabeledStmt struct {
	Position token.Position
	Label    string
	Body     Statement
}

func (s *LabeledStmt) Pos() token.Position { return s.Position }
func (s *LabeledStmt) stmtNode()           {}

// AssertStmt assert cond : message
type AssertStmt struct {
	Position token.Position
	Cond     Expression
	Message  Expression // 可为 nil
}

func (s *AssertStmt) Pos() token.Position { return s.Position }
func (s *AssertStmt) stmtNode()           {}

// EmptyStmt 空语句
type EmptyStmt struct {
	Position token.Position
}

func (s *EmptyStmt) Pos() token.Position { return s.Position }
func (s *EmptyStmt) stmtNode()           {}
