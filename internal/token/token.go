package token

import "fmt"

// ============================================================================
// 运算符类型定义
// ============================================================================
//
// 解析器与类型解析阶段不在本模块内，这里只保留 AST 中出现的运算符：
// 1. 算术与位运算
// 2. 比较与逻辑运算
// 3. 赋值与复合赋值
// 4. 自增自减、索引、成员测试
//
// ============================================================================

// TokenType 表示运算符的类型
type TokenType int

const (
	ILLEGAL TokenType = iota // 非法运算符

	// ----------------------------------------------------------
	// 算术运算符
	// ----------------------------------------------------------
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	POWER   // **

	// ----------------------------------------------------------
	// 位运算符
	// ----------------------------------------------------------
	BIT_AND     // &
	BIT_OR      // |
	BIT_XOR     // ^
	LEFT_SHIFT  // <<
	RIGHT_SHIFT // >>

	// ----------------------------------------------------------
	// 比较运算符
	// ----------------------------------------------------------
	EQ        // ==
	NE        // !=
	LT        // <
	LE        // <=
	GT        // >
	GE        // >=
	SPACESHIP // <=>

	// ----------------------------------------------------------
	// 逻辑运算符
	// ----------------------------------------------------------
	AND // &&
	OR  // ||
	NOT // !

	// ----------------------------------------------------------
	// 赋值运算符
	// ----------------------------------------------------------
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	SHL_ASSIGN     // <<=

	// ----------------------------------------------------------
	// 其他
	// ----------------------------------------------------------
	INCREMENT   // ++
	DECREMENT   // --
	LEFT_SQUARE // [ 索引访问
	IN          // in
	ELVIS       // ?:
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL",

	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	PERCENT: "%",
	POWER:   "**",

	BIT_AND:     "&",
	BIT_OR:      "|",
	BIT_XOR:     "^",
	LEFT_SHIFT:  "<<",
	RIGHT_SHIFT: ">>",

	EQ:        "==",
	NE:        "!=",
	LT:        "<",
	LE:        "<=",
	GT:        ">",
	GE:        ">=",
	SPACESHIP: "<=>",

	AND: "&&",
	OR:  "||",
	NOT: "!",

	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	PERCENT_ASSIGN: "%=",
	SHL_ASSIGN:     "<<=",

	INCREMENT:   "++",
	DECREMENT:   "--",
	LEFT_SQUARE: "[",
	IN:          "in",
	ELVIS:       "?:",
}

// String 返回运算符的字符串表示
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// IsAssignment 是否为赋值或复合赋值运算符
func (t TokenType) IsAssignment() bool {
	return t >= ASSIGN && t <= SHL_ASSIGN
}

// BaseOperator 复合赋值运算符对应的二元运算符
// 例如 += 对应 +；非复合赋值返回 ILLEGAL
func (t TokenType) BaseOperator() TokenType {
	switch t {
	case PLUS_ASSIGN:
		return PLUS
	case MINUS_ASSIGN:
		return MINUS
	case STAR_ASSIGN:
		return STAR
	case SLASH_ASSIGN:
		return SLASH
	case PERCENT_ASSIGN:
		return PERCENT
	case SHL_ASSIGN:
		return LEFT_SHIFT
	}
	return ILLEGAL
}

// IsComparison 是否为比较运算符
func (t TokenType) IsComparison() bool {
	return t >= EQ && t <= GE
}

// ============================================================================
// Position - 源代码位置
// ============================================================================

// Position 表示源代码中的位置
type Position struct {
	Filename string // 文件名
	Line     int    // 行号 (从1开始)
	Column   int    // 列号 (从1开始)
	Offset   int    // 字节偏移量 (从0开始)
}

// String 返回位置的字符串表示，格式为 "filename:line:column"
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid 检查位置是否有效
func (p Position) IsValid() bool {
	return p.Line > 0
}

// At 构造只有行列的位置，主要用于测试与合成节点
func At(line, column int) Position {
	return Position{Line: line, Column: column}
}
