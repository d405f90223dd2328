package ast

// Inspect 深度优先遍历节点树，f 返回 false 时不再进入该节点的子节点
// 闭包字面量的函数体也会被遍历，调用方可在 f 中自行截断
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	// 语句
	case *BlockStmt:
		for _, s := range n.Stmts {
			inspectStmt(s, f)
		}
	case *ExprStmt:
		inspectExpr(n.X, f)
	case *IfStmt:
		inspectExpr(n.Cond, f)
		inspectStmt(n.Then, f)
		inspectStmt(n.Else, f)
	case *WhileStmt:
		inspectExpr(n.Cond, f)
		inspectStmt(n.Body, f)
	case *DoWhileStmt:
		inspectStmt(n.Body, f)
		inspectExpr(n.Cond, f)
	case *ForInStmt:
		Inspect(n.Var, f)
		inspectExpr(n.Collection, f)
		inspectStmt(n.Body, f)
	case *ForStmt:
		for _, e := range n.Init {
			inspectExpr(e, f)
		}
		inspectExpr(n.Cond, f)
		for _, e := range n.Update {
			inspectExpr(e, f)
		}
		inspectStmt(n.Body, f)
	case *SwitchStmt:
		inspectExpr(n.X, f)
		for _, c := range n.Cases {
			Inspect(c, f)
		}
		inspectStmt(n.Default, f)
	case *CaseStmt:
		inspectExpr(n.Value, f)
		inspectStmt(n.Body, f)
	case *ReturnStmt:
		inspectExpr(n.Value, f)
	case *ThrowStmt:
		inspectExpr(n.X, f)
	case *TryStmt:
		inspectStmt(n.Body, f)
		for _, c := range n.Catches {
			Inspect(c, f)
		}
		inspectStmt(n.Finally, f)
	case *CatchStmt:
		Inspect(n.Param, f)
		inspectStmt(n.Body, f)
	case *SynchronizedStmt:
		inspectExpr(n.Lock, f)
		inspectStmt(n.Body, f)
	case *LabeledStmt:
		inspectStmt(n.Body, f)
	case *AssertStmt:
		inspectExpr(n.Cond, f)
		inspectExpr(n.Message, f)

	// 表达式
	case *DeclarationExpr:
		Inspect(n.Var, f)
		inspectExpr(n.Init, f)
	case *BinaryExpr:
		inspectExpr(n.Left, f)
		inspectExpr(n.Right, f)
	case *UnaryExpr:
		inspectExpr(n.X, f)
	case *PrefixExpr:
		inspectExpr(n.X, f)
	case *PostfixExpr:
		inspectExpr(n.X, f)
	case *FieldExpr:
		inspectExpr(n.Object, f)
	case *PropertyExpr:
		inspectExpr(n.Object, f)
	case *MethodCallExpr:
		inspectExpr(n.Object, f)
		inspectList(n.Args, f)
	case *StaticMethodCallExpr:
		inspectList(n.Args, f)
	case *ConstructorCallExpr:
		inspectList(n.Args, f)
	case *ClosureExpr:
		for _, p := range n.Params {
			Inspect(p, f)
		}
		inspectStmt(n.Code, f)
	case *ListExpr:
		inspectList(n.Elems, f)
	case *MapExpr:
		for _, e := range n.Entries {
			inspectExpr(e.Key, f)
			inspectExpr(e.Value, f)
		}
	case *RangeExpr:
		inspectExpr(n.From, f)
		inspectExpr(n.To, f)
	case *ArrayExpr:
		inspectList(n.Elems, f)
		inspectExpr(n.Size, f)
	case *CastExpr:
		inspectExpr(n.X, f)
	case *InstanceofExpr:
		inspectExpr(n.X, f)
	case *TernaryExpr:
		inspectExpr(n.Cond, f)
		inspectExpr(n.Then, f)
		inspectExpr(n.Else, f)
	case *ElvisExpr:
		inspectExpr(n.X, f)
		inspectExpr(n.Else, f)
	case *Parameter:
		inspectExpr(n.Default, f)
	}
}

// 避免把类型化的 nil 当作非 nil 接口传入
func inspectStmt(s Statement, f func(Node) bool) {
	if s != nil {
		Inspect(s, f)
	}
}

func inspectExpr(e Expression, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectList(list []Expression, f func(Node) bool) {
	for _, e := range list {
		inspectExpr(e, f)
	}
}
