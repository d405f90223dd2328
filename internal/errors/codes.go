// Package errors 提供代码生成后端的错误处理：源码级编译错误按类收集，
// 内部一致性错误立即中止整次编译。
package errors

// ============================================================================
// 错误级别
// ============================================================================

// Level 错误级别
type Level int

const (
	LevelError   Level = iota // 错误
	LevelWarning              // 警告
	LevelNote                 // 提示
	LevelHelp                 // 帮助
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNote:
		return "note"
	case LevelHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ============================================================================
// 编译器错误码 (E 开头)
// ============================================================================

// 编译器错误码常量
const (
	// E0800-E0819: 覆写错误
	E0800 = "E0800" // 覆写方法的返回类型不兼容
	E0801 = "E0801" // 覆写 final 方法
	E0802 = "E0802" // 覆写时 static 修饰不一致
	E0803 = "E0803" // 覆写时原始/引用返回类型不一致
	E0804 = "E0804" // 覆写时原始返回类型不同

	// E0820-E0839: 成员冲突
	E0820 = "E0820" // 默认参数生成的方法与已声明的方法冲突
	E0821 = "E0821" // 方法重复定义
	E0822 = "E0822" // 属性访问器与已声明的方法冲突

	// E0840-E0859: 声明与赋值
	E0840 = "E0840" // 无效的标识符
	E0841 = "E0841" // 在初始化上下文之外给 final 字段赋值
	E0842 = "E0842" // 接口中不能有构造函数
	E0843 = "E0843" // 找不到 super 方法
	E0844 = "E0844" // break/continue 不在循环内
	E0845 = "E0845" // 未知的标签

	// E0890-E0899: 产物验证
	E0899 = "E0899" // 字节码验证失败
)

// ============================================================================
// 内部错误码 (I 开头)
// ============================================================================

const (
	I0001 = "I0001" // 作用域出栈没有对应的入栈
	I0002 = "I0002" // 变量查找失败
	I0003 = "I0003" // 栈深度不一致或生成的模块未通过验证
	I0004 = "I0004" // 不支持的节点种类
	I0005 = "I0005" // 标签未绑定或重复绑定
	I0006 = "I0006" // 临时变量释放顺序错误
)

// ============================================================================
// 错误码信息
// ============================================================================

// ErrorInfo 错误码信息
type ErrorInfo struct {
	Code     string // 错误码
	Level    Level  // 错误级别
	Title    string // 简短标题
	Category string // 错误分类
}

// compilerErrors 编译器错误码信息表
var compilerErrors = map[string]ErrorInfo{
	// 覆写错误
	E0800: {E0800, LevelError, "incompatible return type in override", "override"},
	E0801: {E0801, LevelError, "cannot override final method", "override"},
	E0802: {E0802, LevelError, "override with disparate static modifier", "override"},
	E0803: {E0803, LevelError, "override changes primitive/reference return", "override"},
	E0804: {E0804, LevelError, "override changes primitive return type", "override"},

	// 成员冲突
	E0820: {E0820, LevelError, "default-parameter method collides with declared method", "member"},
	E0821: {E0821, LevelError, "duplicate method", "member"},
	E0822: {E0822, LevelError, "property accessor collides with declared method", "member"},

	// 声明与赋值
	E0840: {E0840, LevelError, "invalid identifier", "declaration"},
	E0841: {E0841, LevelError, "cannot assign final field", "declaration"},
	E0842: {E0842, LevelError, "constructor in interface", "declaration"},
	E0843: {E0843, LevelError, "super method not found", "declaration"},
	E0844: {E0844, LevelError, "jump outside loop", "declaration"},
	E0845: {E0845, LevelError, "unknown label", "declaration"},

	E0899: {E0899, LevelError, "bytecode verification failed", "output"},
}

// GetCompilerErrorInfo 获取编译器错误信息
func GetCompilerErrorInfo(code string) (ErrorInfo, bool) {
	info, ok := compilerErrors[code]
	return info, ok
}

// IsCompilerError 检查是否为编译器错误码
func IsCompilerError(code string) bool {
	_, ok := compilerErrors[code]
	return ok
}
