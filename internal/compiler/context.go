package compiler

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// Context 单次编译的命名注册表
//
// 同一编译单元内的所有类共享一个 Context，类可以并行生成。
// 计数器只在本次编译内有效，不跨编译复用。
type Context struct {
	closures  map[string]*atomic.Int32 // 外部类 -> 闭包计数
	synthetic *atomic.Int64
	mu        sync.Mutex
}

// NewContext 创建注册表
func NewContext() *Context {
	return &Context{
		closures:  make(map[string]*atomic.Int32),
		synthetic: atomic.NewInt64(0),
	}
}

func (c *Context) counter(outer string) *atomic.Int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.closures[outer]
	if !ok {
		n = atomic.NewInt32(0)
		c.closures[outer] = n
	}
	return n
}

// NextClosureName 生成闭包类名 Outer$_closureN，N 从 1 开始
func (c *Context) NextClosureName(outer string) string {
	// 嵌套闭包挂在最外层类名下
	root := outer
	if i := strings.Index(outer, "$_closure"); i >= 0 {
		root = outer[:i]
	}
	return fmt.Sprintf("%s$_closure%d", root, c.counter(root).Inc())
}

// NextSyntheticName 生成合成变量名
func (c *Context) NextSyntheticName(prefix string) string {
	return fmt.Sprintf("$%s%d", prefix, c.synthetic.Inc())
}

// ClosureCount 已为指定外部类生成的闭包数
func (c *Context) ClosureCount(outer string) int {
	return int(c.counter(outer).Load())
}
