package errors

import (
	"fmt"

	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 内部错误
// ============================================================================

// InternalError 代码生成器自身的一致性错误。
// 它以 panic 的形式抛出，由编译驱动在类边界恢复并中止整次编译。
type InternalError struct {
	Code    string
	Class   string
	Method  string
	Pos     token.Position
	Message string
}

func (e *InternalError) Error() string {
	where := e.Class
	if e.Method != "" {
		where += "." + e.Method
	}
	if where == "" {
		where = "<unknown>"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("internal error [%s] in %s at %s: %s", e.Code, where, e.Pos, e.Message)
	}
	return fmt.Sprintf("internal error [%s] in %s: %s", e.Code, where, e.Message)
}

// Raise 抛出内部错误
func Raise(code string, pos token.Position, format string, args ...any) {
	panic(&InternalError{Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Recover 在 defer 中调用，把 InternalError 恢复为返回值。
// 其他 panic 原样继续传播。
func Recover(errp *error, class, method string) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*InternalError)
	if !ok {
		panic(r)
	}
	if ie.Class == "" {
		ie.Class = class
	}
	if ie.Method == "" {
		ie.Method = method
	}
	*errp = ie
}

// IsInternal 判断错误是否为内部错误
func IsInternal(err error) bool {
	_, ok := err.(*InternalError)
	return ok
}
