package vm

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/tangzhangming/classgen/internal/bytecode"
)

// ============================================================================
// 运行时类
// ============================================================================

const (
	objectClass    = "java/lang/Object"
	closureClass   = "groovy/lang/Closure"
	referenceClass = "groovy/lang/Reference"
	throwableClass = "java/lang/Throwable"
	adapterClass   = "org/codehaus/groovy/runtime/ScriptBytecodeAdapter"
)

// 类初始化状态
const (
	classLinked = iota
	classInitializing
	classInitialized
)

// NativeFunc 内置方法实现；静态方法的 this 为 nil
type NativeFunc func(vm *VM, this any, args []any) (any, error)

// Method 运行时方法
type Method struct {
	Class  *Class
	Name   string
	Desc   string
	Params []string // 参数描述符
	Ret    string   // 返回值描述符
	Static bool

	Info   *bytecode.MethodInfo // 字节码方法
	Native NativeFunc           // 内置方法
}

// Argc 参数个数
func (m *Method) Argc() int { return len(m.Params) }

// Class 运行时类：由类模块加载，或为内置类
type Class struct {
	Name       string
	Super      *Class
	Interfaces []string
	File       *bytecode.ClassFile // 内置类为 nil

	methods   []*Method
	statics   map[string]any
	fields    []*bytecode.FieldInfo // 本类声明的实例字段
	state     int
	superName string
}

// Builtin 是否为内置类
func (c *Class) Builtin() bool { return c.File == nil }

// IsSubclassOf 是否为 name 或其子类、实现类
func (c *Class) IsSubclassOf(name string) bool {
	if name == objectClass {
		return true
	}
	for k := c; k != nil; k = k.Super {
		if k.Name == name {
			return true
		}
		for _, i := range k.Interfaces {
			if i == name || builtinDerived(i, name) {
				return true
			}
		}
		if k.Builtin() && builtinDerived(k.Name, name) {
			return true
		}
	}
	return false
}

func (c *Class) addNative(name string, argc int, static bool, fn NativeFunc) {
	params := make([]string, argc)
	for i := range params {
		params[i] = "Ljava/lang/Object;"
	}
	c.methods = append(c.methods, &Method{
		Class:  c,
		Name:   name,
		Desc:   "/" + strconv.Itoa(argc),
		Params: params,
		Ret:    "Ljava/lang/Object;",
		Static: static,
		Native: fn,
	})
}

// declared 本类中按名称与描述符查找
func (c *Class) declared(name, desc string) *Method {
	for _, m := range c.methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// declaredByArgc 本类中按名称与参数个数查找；bytecode 方法优先于桥接方法
func (c *Class) declaredByArgc(name string, argc int, static bool) *Method {
	var bridge *Method
	for _, m := range c.methods {
		if m.Name != name || m.Argc() != argc || m.Static != static {
			continue
		}
		if m.Info != nil && m.Info.IsBridge() {
			if bridge == nil {
				bridge = m
			}
			continue
		}
		return m
	}
	return bridge
}

// FindMethod 沿继承链按名称与描述符查找，找不到时按参数个数查找
func (c *Class) FindMethod(name, desc string, static bool) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.declared(name, desc); m != nil && m.Static == static {
			return m
		}
	}
	argc := bytecode.ArgCount(desc)
	return c.FindByArgc(name, argc, static)
}

// FindByArgc 沿继承链按名称与参数个数查找
func (c *Class) FindByArgc(name string, argc int, static bool) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.declaredByArgc(name, argc, static); m != nil {
			return m
		}
	}
	return nil
}

// findStaticHolder 沿继承链查找声明静态字段的类
func (c *Class) findStaticHolder(name string) *Class {
	for k := c; k != nil; k = k.Super {
		if _, ok := k.statics[name]; ok {
			return k
		}
	}
	return nil
}

// field 沿继承链查找实例字段声明
func (c *Class) field(name string) *bytecode.FieldInfo {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// staticDescriptor 静态字段的描述符，内置类或未声明时为空
func (c *Class) staticDescriptor(name string) string {
	if c.File == nil {
		return ""
	}
	if f := c.File.Field(name); f != nil {
		return f.Descriptor
	}
	return ""
}

// ============================================================================
// 加载与链接
// ============================================================================

func newLoadedClass(cf *bytecode.ClassFile) (*Class, error) {
	c := &Class{
		Name:       cf.Name,
		Interfaces: cf.Interfaces,
		File:       cf,
		statics:    make(map[string]any),
		superName:  cf.Super,
	}
	for _, info := range cf.Methods {
		params, ret, err := bytecode.ParseMethodDescriptor(info.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", cf.Name, err)
		}
		c.methods = append(c.methods, &Method{
			Class:  c,
			Name:   info.Name,
			Desc:   info.Descriptor,
			Params: params,
			Ret:    ret,
			Static: info.IsStatic(),
			Info:   info,
		})
	}
	for _, f := range cf.Fields {
		if f.IsStatic() {
			c.statics[f.Name] = zeroValue(f.Descriptor)
			continue
		}
		c.fields = append(c.fields, f)
	}
	return c, nil
}

// newBuiltinClass 创建内置类；父类取内置继承表中的第一个类型
func newBuiltinClass(name string) *Class {
	c := &Class{Name: name, statics: make(map[string]any), state: classInitialized}
	if name != objectClass {
		c.superName = objectClass
		if supers := builtinSupersOf(name); len(supers) > 0 {
			c.superName = supers[0]
		}
	}
	return c
}

// initialize 执行类初始化：先父类，再 ConstantValue，最后 <clinit>
func (vm *VM) initialize(c *Class) error {
	if c.state != classLinked {
		return nil
	}
	c.state = classInitializing
	if c.Super != nil {
		if err := vm.initialize(c.Super); err != nil {
			return err
		}
	}
	for _, f := range c.File.Fields {
		if !f.IsStatic() || f.ConstantValue == 0 {
			continue
		}
		v, err := vm.constant(c.File.Pool, f.ConstantValue)
		if err != nil {
			return err
		}
		c.statics[f.Name] = v
	}
	if clinit := c.declared("<clinit>", "()V"); clinit != nil {
		vm.log.Debug("initializing class", zap.String("class", c.Name))
		if _, err := vm.call(clinit, nil, nil); err != nil {
			return err
		}
	}
	c.state = classInitialized
	return nil
}
