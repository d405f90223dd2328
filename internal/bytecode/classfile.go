package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// ============================================================================
// 常量池
// ============================================================================

// Constant 常量池条目
type Constant struct {
	Tag   uint8
	Int   int64   // ConstInt / ConstLong / ConstBool
	Float float64 // ConstFloat / ConstDouble
	Str   string  // ConstString 的值；ConstClass 的类名；引用类常量的 owner
	Name  string  // 字段、方法或调用点名称
	Desc  string  // 字段或方法描述符
	Argc  int     // 调用点参数个数
}

// key 常量去重键
func (c Constant) key() string {
	switch c.Tag {
	case ConstInt, ConstLong, ConstBool:
		return strconv.Itoa(int(c.Tag)) + ":" + strconv.FormatInt(c.Int, 10)
	case ConstFloat, ConstDouble:
		return strconv.Itoa(int(c.Tag)) + ":" + strconv.FormatUint(math.Float64bits(c.Float), 16)
	case ConstString, ConstClass:
		return strconv.Itoa(int(c.Tag)) + ":" + c.Str
	case ConstCallSite:
		return "callsite:" + c.Str + "." + c.Name + "/" + strconv.Itoa(c.Argc)
	default:
		return strconv.Itoa(int(c.Tag)) + ":" + c.Str + "." + c.Name + ":" + c.Desc
	}
}

// String 返回常量的可读形式（反汇编使用）
func (c Constant) String() string {
	switch c.Tag {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstLong:
		return strconv.FormatInt(c.Int, 10) + "L"
	case ConstBool:
		return strconv.FormatBool(c.Int != 0)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 32) + "f"
	case ConstDouble:
		return strconv.FormatFloat(c.Float, 'g', -1, 64) + "d"
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstClass:
		return "class " + c.Str
	case ConstFieldRef, ConstMethodRef:
		return c.Str + "." + c.Name + ":" + c.Desc
	case ConstCallSite:
		if c.Str != "" {
			return fmt.Sprintf("%s.%s/%d", c.Str, c.Name, c.Argc)
		}
		return fmt.Sprintf("%s/%d", c.Name, c.Argc)
	}
	return fmt.Sprintf("const(tag=%d)", c.Tag)
}

// MaxConstants 常量池容量上限（索引 0 保留）
const MaxConstants = math.MaxUint16

// ConstantPool 常量池，索引从 1 开始
type ConstantPool struct {
	entries []Constant
	index   map[string]uint16
}

// NewConstantPool 创建常量池
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[string]uint16)}
}

// Add 添加常量并返回索引，相同常量只保存一份
func (p *ConstantPool) Add(c Constant) uint16 {
	k := c.key()
	if idx, ok := p.index[k]; ok {
		return idx
	}
	if len(p.entries) >= MaxConstants-1 {
		panic(fmt.Sprintf("constant pool overflow (%d entries)", len(p.entries)))
	}
	p.entries = append(p.entries, c)
	idx := uint16(len(p.entries))
	p.index[k] = idx
	return idx
}

// Get 按索引读取常量
func (p *ConstantPool) Get(idx uint16) (Constant, bool) {
	if idx == 0 || int(idx) > len(p.entries) {
		return Constant{}, false
	}
	return p.entries[idx-1], true
}

// Len 常量数量
func (p *ConstantPool) Len() int { return len(p.entries) }

// Entries 按索引顺序返回全部常量
func (p *ConstantPool) Entries() []Constant { return p.entries }

func (p *ConstantPool) AddInt(v int32) uint16 { return p.Add(Constant{Tag: ConstInt, Int: int64(v)}) }
func (p *ConstantPool) AddLong(v int64) uint16 { return p.Add(Constant{Tag: ConstLong, Int: v}) }
func (p *ConstantPool) AddFloat(v float32) uint16 {
	return p.Add(Constant{Tag: ConstFloat, Float: float64(v)})
}
func (p *ConstantPool) AddDouble(v float64) uint16 { return p.Add(Constant{Tag: ConstDouble, Float: v}) }
func (p *ConstantPool) AddString(v string) uint16  { return p.Add(Constant{Tag: ConstString, Str: v}) }
func (p *ConstantPool) AddClass(name string) uint16 {
	return p.Add(Constant{Tag: ConstClass, Str: name})
}

// AddBool 布尔常量（装箱后的 Boolean）
func (p *ConstantPool) AddBool(v bool) uint16 {
	var i int64
	if v {
		i = 1
	}
	return p.Add(Constant{Tag: ConstBool, Int: i})
}

// AddFieldRef 字段引用
func (p *ConstantPool) AddFieldRef(owner, name, desc string) uint16 {
	return p.Add(Constant{Tag: ConstFieldRef, Str: owner, Name: name, Desc: desc})
}

// AddMethodRef 方法引用
func (p *ConstantPool) AddMethodRef(owner, name, desc string) uint16 {
	return p.Add(Constant{Tag: ConstMethodRef, Str: owner, Name: name, Desc: desc})
}

// AddCallSite 动态调用点；owner 为空表示以栈上接收者分派
func (p *ConstantPool) AddCallSite(owner, name string, argc int) uint16 {
	return p.Add(Constant{Tag: ConstCallSite, Str: owner, Name: name, Argc: argc})
}

// ============================================================================
// 类文件结构
// ============================================================================

// ClassFile 一个类编译后的模块
type ClassFile struct {
	Access     uint16
	Name       string   // 内部名 (demo/Foo)
	Super      string   // 父类内部名
	Interfaces []string // 接口内部名
	SourceFile string
	Pool       *ConstantPool
	Fields     []*FieldInfo
	Methods    []*MethodInfo
}

// NewClassFile 创建空的类文件
func NewClassFile(name, super string, access uint16) *ClassFile {
	return &ClassFile{Name: name, Super: super, Access: access, Pool: NewConstantPool()}
}

// FieldInfo 字段表项
type FieldInfo struct {
	Access        uint16
	Name          string
	Descriptor    string
	ConstantValue uint16 // 常量初值在常量池中的索引，0 表示无
}

func (f *FieldInfo) IsStatic() bool { return f.Access&AccStatic != 0 }

// ExceptionEntry 异常表项，CatchType 为空表示捕获所有异常
type ExceptionEntry struct {
	Start     uint16
	End       uint16
	Handler   uint16
	CatchType string
}

// LineEntry 行号表项
type LineEntry struct {
	PC   uint16
	Line uint16
}

// LocalVarEntry 局部变量表项
type LocalVarEntry struct {
	Start      uint16
	Length     uint16
	Name       string
	Descriptor string
	Index      uint16
}

// MethodInfo 方法表项
type MethodInfo struct {
	Access     uint16
	Name       string
	Descriptor string
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Handlers   []ExceptionEntry
	Lines      []LineEntry
	Locals     []LocalVarEntry
	Exceptions []string // 声明抛出的异常
}

func (m *MethodInfo) IsStatic() bool   { return m.Access&AccStatic != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.Access&AccAbstract != 0 }
func (m *MethodInfo) IsBridge() bool   { return m.Access&AccBridge != 0 }

// AddField 添加字段
func (cf *ClassFile) AddField(f *FieldInfo) { cf.Fields = append(cf.Fields, f) }

// AddMethod 添加方法
func (cf *ClassFile) AddMethod(m *MethodInfo) { cf.Methods = append(cf.Methods, m) }

// Method 按名称与描述符查找方法
func (cf *ClassFile) Method(name, desc string) *MethodInfo {
	for _, m := range cf.Methods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	return nil
}

// MethodsNamed 返回指定名称的全部方法
func (cf *ClassFile) MethodsNamed(name string) []*MethodInfo {
	var out []*MethodInfo
	for _, m := range cf.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Field 按名称查找字段
func (cf *ClassFile) Field(name string) *FieldInfo {
	for _, f := range cf.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
