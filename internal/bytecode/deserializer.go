package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// FormatError 文件格式错误
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return "invalid class module: " + e.Message }

// ErrDigestMismatch 文件摘要校验失败
var ErrDigestMismatch = &FormatError{"digest mismatch, file is corrupted or was modified"}

// Deserializer 类模块反序列化器
type Deserializer struct {
	data       []byte
	pos        int
	stringPool []string
}

// NewDeserializer 创建反序列化器
func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{
		data:       data,
		pos:        0,
		stringPool: make([]string, 0),
	}
}

// Deserialize 便捷函数：反序列化并验证一个类模块
func Deserialize(data []byte) (*ClassFile, error) {
	cf, err := NewDeserializer(data).Deserialize()
	if err != nil {
		return nil, err
	}
	if err := Verify(cf); err != nil {
		return nil, fmt.Errorf("字节码验证失败: %w", err)
	}
	return cf, nil
}

// Deserialize 反序列化类模块（不做字节码验证）
func (d *Deserializer) Deserialize() (*ClassFile, error) {
	if len(d.data) < HeaderSize+DigestSize {
		return nil, &FormatError{"file too small"}
	}

	// 校验尾部摘要
	body := d.data[:len(d.data)-DigestSize]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:], d.data[len(d.data)-DigestSize:]) {
		return nil, ErrDigestMismatch
	}
	d.data = body

	if err := d.readHeader(); err != nil {
		return nil, err
	}
	if err := d.readStringPool(); err != nil {
		return nil, err
	}
	cf, err := d.readClass()
	if err != nil {
		return nil, fmt.Errorf("failed to read class: %w", err)
	}
	if d.pos != len(d.data) {
		return nil, &FormatError{fmt.Sprintf("%d trailing bytes", len(d.data)-d.pos)}
	}
	return cf, nil
}

// readHeader 读取文件头
func (d *Deserializer) readHeader() error {
	// Magic
	magic := binary.BigEndian.Uint32(d.data[0:4])
	if magic != MagicNumber {
		return &FormatError{"invalid magic number"}
	}

	// Version
	major := d.data[4]
	minor := d.data[5]
	if major != MajorVersion {
		return &FormatError{fmt.Sprintf("incompatible version: file is v%d.%d, reader is v%d.%d", major, minor, MajorVersion, MinorVersion)}
	}

	// Flags (reserved)
	d.pos = HeaderSize
	return nil
}

// readStringPool 读取字符串池
func (d *Deserializer) readStringPool() error {
	count, err := d.readU32()
	if err != nil {
		return err
	}
	if int(count) > len(d.data) {
		return &FormatError{"string pool corrupted"}
	}
	d.stringPool = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := d.readU32()
		if err != nil {
			return err
		}
		if d.pos+int(n) > len(d.data) {
			return &FormatError{"string pool corrupted"}
		}
		d.stringPool = append(d.stringPool, string(d.data[d.pos:d.pos+int(n)]))
		d.pos += int(n)
	}
	return nil
}

func (d *Deserializer) readStr() (string, error) {
	idx, err := d.readU32()
	if err != nil {
		return "", err
	}
	if int(idx) >= len(d.stringPool) {
		return "", &FormatError{fmt.Sprintf("string index %d out of range", idx)}
	}
	return d.stringPool[idx], nil
}

// readStrs 依次读取多个字符串
func (d *Deserializer) readStrs(out ...*string) error {
	for _, p := range out {
		s, err := d.readStr()
		if err != nil {
			return err
		}
		*p = s
	}
	return nil
}

// readClass 读取类头、常量池、字段与方法
func (d *Deserializer) readClass() (*ClassFile, error) {
	cf := &ClassFile{Pool: NewConstantPool()}
	var err error
	if cf.Access, err = d.readU16(); err != nil {
		return nil, err
	}
	if err := d.readStrs(&cf.Name, &cf.Super, &cf.SourceFile); err != nil {
		return nil, err
	}
	n, err := d.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		s, err := d.readStr()
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, s)
	}

	// 常量池
	if n, err = d.readU16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		c, err := d.readConstant()
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i+1, err)
		}
		if idx := cf.Pool.Add(c); int(idx) != i+1 {
			return nil, &FormatError{fmt.Sprintf("duplicate constant at %d", i+1)}
		}
	}

	// 字段
	if n, err = d.readU16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		f := &FieldInfo{}
		if f.Access, err = d.readU16(); err != nil {
			return nil, err
		}
		if err := d.readStrs(&f.Name, &f.Descriptor); err != nil {
			return nil, err
		}
		if f.ConstantValue, err = d.readU16(); err != nil {
			return nil, err
		}
		cf.Fields = append(cf.Fields, f)
	}

	// 方法
	if n, err = d.readU16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		m, err := d.readMethod()
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, m)
	}
	return cf, nil
}

// readConstant 读取一个常量池条目
func (d *Deserializer) readConstant() (Constant, error) {
	tag, err := d.readU8()
	if err != nil {
		return Constant{}, err
	}
	c := Constant{Tag: tag}
	switch tag {
	case ConstInt, ConstLong, ConstBool:
		c.Int, err = d.readI64()
	case ConstFloat, ConstDouble:
		c.Float, err = d.readF64()
	case ConstString, ConstClass:
		c.Str, err = d.readStr()
	case ConstFieldRef, ConstMethodRef:
		err = d.readStrs(&c.Str, &c.Name, &c.Desc)
	case ConstCallSite:
		if err = d.readStrs(&c.Str, &c.Name); err == nil {
			var argc uint16
			argc, err = d.readU16()
			c.Argc = int(argc)
		}
	default:
		return c, &FormatError{fmt.Sprintf("unknown constant tag: %d", tag)}
	}
	return c, err
}

// readMethod 读取方法
func (d *Deserializer) readMethod() (*MethodInfo, error) {
	m := &MethodInfo{}
	var err error
	if m.Access, err = d.readU16(); err != nil {
		return nil, err
	}
	if err := d.readStrs(&m.Name, &m.Descriptor); err != nil {
		return nil, err
	}
	if m.MaxStack, err = d.readU16(); err != nil {
		return nil, err
	}
	if m.MaxLocals, err = d.readU16(); err != nil {
		return nil, err
	}

	codeLen, err := d.readU32()
	if err != nil {
		return nil, err
	}
	if d.pos+int(codeLen) > len(d.data) {
		return nil, &FormatError{"method bytecode corrupted"}
	}
	m.Code = append([]byte(nil), d.data[d.pos:d.pos+int(codeLen)]...)
	d.pos += int(codeLen)

	n, err := d.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		var h ExceptionEntry
		if h.Start, err = d.readU16(); err != nil {
			return nil, err
		}
		if h.End, err = d.readU16(); err != nil {
			return nil, err
		}
		if h.Handler, err = d.readU16(); err != nil {
			return nil, err
		}
		if h.CatchType, err = d.readStr(); err != nil {
			return nil, err
		}
		m.Handlers = append(m.Handlers, h)
	}

	if n, err = d.readU16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		var l LineEntry
		if l.PC, err = d.readU16(); err != nil {
			return nil, err
		}
		if l.Line, err = d.readU16(); err != nil {
			return nil, err
		}
		m.Lines = append(m.Lines, l)
	}

	if n, err = d.readU16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		var l LocalVarEntry
		if l.Start, err = d.readU16(); err != nil {
			return nil, err
		}
		if l.Length, err = d.readU16(); err != nil {
			return nil, err
		}
		if err := d.readStrs(&l.Name, &l.Descriptor); err != nil {
			return nil, err
		}
		if l.Index, err = d.readU16(); err != nil {
			return nil, err
		}
		m.Locals = append(m.Locals, l)
	}

	if n, err = d.readU16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		s, err := d.readStr()
		if err != nil {
			return nil, err
		}
		m.Exceptions = append(m.Exceptions, s)
	}
	return m, nil
}

func (d *Deserializer) readU8() (uint8, error) {
	if d.pos+1 > len(d.data) {
		return 0, &FormatError{"unexpected end of file"}
	}
	val := d.data[d.pos]
	d.pos++
	return val, nil
}

func (d *Deserializer) readU16() (uint16, error) {
	if d.pos+2 > len(d.data) {
		return 0, &FormatError{"unexpected end of file"}
	}
	val := binary.BigEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return val, nil
}

func (d *Deserializer) readU32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, &FormatError{"unexpected end of file"}
	}
	val := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return val, nil
}

func (d *Deserializer) readI64() (int64, error) {
	if d.pos+8 > len(d.data) {
		return 0, &FormatError{"unexpected end of file"}
	}
	val := int64(binary.BigEndian.Uint64(d.data[d.pos:]))
	d.pos += 8
	return val, nil
}

func (d *Deserializer) readF64() (float64, error) {
	if d.pos+8 > len(d.data) {
		return 0, &FormatError{"unexpected end of file"}
	}
	val := math.Float64frombits(binary.BigEndian.Uint64(d.data[d.pos:]))
	d.pos += 8
	return val, nil
}
