package errors

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/tangzhangming/classgen/internal/token"
)

// ============================================================================
// 错误收集器
// ============================================================================

// Collector 收集单个类生成过程中的源码级错误。
// 出现错误的类继续生成，直到类结束才决定是否丢弃产物。
type Collector struct {
	mu     sync.Mutex
	class  string
	file   string
	errors []*CompileError
}

// NewCollector 为指定类创建收集器
func NewCollector(class, file string) *Collector {
	return &Collector{class: class, file: file}
}

// Add 记录一个错误并返回它，便于继续附加建议
func (c *Collector) Add(code string, pos token.Position, format string, args ...any) *CompileError {
	err := NewCompileError(code, pos, format, args...)
	err.Class = c.class
	if err.File == "" {
		err.File = c.file
	}
	c.mu.Lock()
	c.errors = append(c.errors, err)
	c.mu.Unlock()
	return err
}

// Errors 返回已收集的错误副本
func (c *Collector) Errors() []*CompileError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*CompileError(nil), c.errors...)
}

// HasErrors 是否存在错误
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) > 0
}

// Len 错误数量
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors)
}

// Err 把所有错误合并成一个 error，没有错误时返回 nil
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	for _, e := range c.errors {
		err = multierr.Append(err, e)
	}
	return err
}
