package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// ============================================================================
// 类模块序列化
// ============================================================================
//
// 文件布局（大端序）：
//   header      magic(u32) major(u8) minor(u8) flags(u16)
//   strings     count(u32) { len(u32) bytes }
//   class       access(u16) name(s) super(s) source(s) interfaces(u16){s}
//   constants   count(u16) { tag(u8) payload }
//   fields      count(u16) { access(u16) name(s) desc(s) constvalue(u16) }
//   methods     count(u16) { ... }
//   digest      BLAKE2b-256(前面全部字节)
//
// 其中 (s) 表示字符串池索引 u32。
//
// ============================================================================

// Serializer 类模块序列化器
type Serializer struct {
	buf         *bytes.Buffer
	stringPool  []string
	stringIndex map[string]uint32
}

// NewSerializer 创建序列化器
func NewSerializer() *Serializer {
	return &Serializer{
		buf:         new(bytes.Buffer),
		stringPool:  make([]string, 0),
		stringIndex: make(map[string]uint32),
	}
}

// Serialize 便捷函数：序列化一个类模块
func Serialize(cf *ClassFile) ([]byte, error) {
	return NewSerializer().Serialize(cf)
}

// Serialize 序列化类模块
func (s *Serializer) Serialize(cf *ClassFile) ([]byte, error) {
	if cf.Pool == nil {
		return nil, fmt.Errorf("class %s has no constant pool", cf.Name)
	}

	// 第一遍：收集所有字符串到字符串池
	s.collectStrings(cf)

	body, err := s.serializeClass(cf)
	if err != nil {
		return nil, err
	}

	s.writeHeader()
	s.buf.Write(s.serializeStringPool())
	s.buf.Write(body)

	sum := blake2b.Sum256(s.buf.Bytes())
	s.buf.Write(sum[:])
	return s.buf.Bytes(), nil
}

// writeHeader 写入文件头
func (s *Serializer) writeHeader() {
	// Magic (4 bytes)
	binary.Write(s.buf, binary.BigEndian, MagicNumber)
	// Version (2 bytes)
	s.buf.WriteByte(MajorVersion)
	s.buf.WriteByte(MinorVersion)
	// Flags (2 bytes, reserved)
	binary.Write(s.buf, binary.BigEndian, uint16(0))
}

// addString 添加字符串到池，返回索引
func (s *Serializer) addString(str string) uint32 {
	if idx, ok := s.stringIndex[str]; ok {
		return idx
	}
	idx := uint32(len(s.stringPool))
	s.stringPool = append(s.stringPool, str)
	s.stringIndex[str] = idx
	return idx
}

// collectStrings 收集所有字符串
func (s *Serializer) collectStrings(cf *ClassFile) {
	s.addString(cf.Name)
	s.addString(cf.Super)
	s.addString(cf.SourceFile)
	for _, i := range cf.Interfaces {
		s.addString(i)
	}
	for _, c := range cf.Pool.Entries() {
		s.addString(c.Str)
		s.addString(c.Name)
		s.addString(c.Desc)
	}
	for _, f := range cf.Fields {
		s.addString(f.Name)
		s.addString(f.Descriptor)
	}
	for _, m := range cf.Methods {
		s.addString(m.Name)
		s.addString(m.Descriptor)
		for _, h := range m.Handlers {
			s.addString(h.CatchType)
		}
		for _, l := range m.Locals {
			s.addString(l.Name)
			s.addString(l.Descriptor)
		}
		for _, e := range m.Exceptions {
			s.addString(e)
		}
	}
}

// serializeStringPool 序列化字符串池
func (s *Serializer) serializeStringPool() []byte {
	buf := new(bytes.Buffer)
	// 字符串数量
	binary.Write(buf, binary.BigEndian, uint32(len(s.stringPool)))
	// 每个字符串：长度 + 数据
	for _, str := range s.stringPool {
		data := []byte(str)
		binary.Write(buf, binary.BigEndian, uint32(len(data)))
		buf.Write(data)
	}
	return buf.Bytes()
}

func (s *Serializer) writeStr(buf *bytes.Buffer, str string) {
	binary.Write(buf, binary.BigEndian, s.stringIndex[str])
}

func writeCount(buf *bytes.Buffer, n int, what string) error {
	if n > math.MaxUint16 {
		return fmt.Errorf("too many %s (%d)", what, n)
	}
	binary.Write(buf, binary.BigEndian, uint16(n))
	return nil
}

// serializeClass 序列化类头、常量池、字段与方法
func (s *Serializer) serializeClass(cf *ClassFile) ([]byte, error) {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.BigEndian, cf.Access)
	s.writeStr(buf, cf.Name)
	s.writeStr(buf, cf.Super)
	s.writeStr(buf, cf.SourceFile)
	if err := writeCount(buf, len(cf.Interfaces), "interfaces"); err != nil {
		return nil, err
	}
	for _, i := range cf.Interfaces {
		s.writeStr(buf, i)
	}

	// 常量池
	if err := writeCount(buf, cf.Pool.Len(), "constants"); err != nil {
		return nil, err
	}
	for _, c := range cf.Pool.Entries() {
		buf.WriteByte(c.Tag)
		switch c.Tag {
		case ConstInt, ConstLong, ConstBool:
			binary.Write(buf, binary.BigEndian, c.Int)
		case ConstFloat, ConstDouble:
			binary.Write(buf, binary.BigEndian, math.Float64bits(c.Float))
		case ConstString, ConstClass:
			s.writeStr(buf, c.Str)
		case ConstFieldRef, ConstMethodRef:
			s.writeStr(buf, c.Str)
			s.writeStr(buf, c.Name)
			s.writeStr(buf, c.Desc)
		case ConstCallSite:
			s.writeStr(buf, c.Str)
			s.writeStr(buf, c.Name)
			binary.Write(buf, binary.BigEndian, uint16(c.Argc))
		default:
			return nil, fmt.Errorf("unknown constant tag %d", c.Tag)
		}
	}

	// 字段
	if err := writeCount(buf, len(cf.Fields), "fields"); err != nil {
		return nil, err
	}
	for _, f := range cf.Fields {
		binary.Write(buf, binary.BigEndian, f.Access)
		s.writeStr(buf, f.Name)
		s.writeStr(buf, f.Descriptor)
		binary.Write(buf, binary.BigEndian, f.ConstantValue)
	}

	// 方法
	if err := writeCount(buf, len(cf.Methods), "methods"); err != nil {
		return nil, err
	}
	for _, m := range cf.Methods {
		if err := s.serializeMethod(buf, m); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	return buf.Bytes(), nil
}

// serializeMethod 序列化单个方法
func (s *Serializer) serializeMethod(buf *bytes.Buffer, m *MethodInfo) error {
	binary.Write(buf, binary.BigEndian, m.Access)
	s.writeStr(buf, m.Name)
	s.writeStr(buf, m.Descriptor)
	binary.Write(buf, binary.BigEndian, m.MaxStack)
	binary.Write(buf, binary.BigEndian, m.MaxLocals)

	binary.Write(buf, binary.BigEndian, uint32(len(m.Code)))
	buf.Write(m.Code)

	if err := writeCount(buf, len(m.Handlers), "handlers"); err != nil {
		return err
	}
	for _, h := range m.Handlers {
		binary.Write(buf, binary.BigEndian, h.Start)
		binary.Write(buf, binary.BigEndian, h.End)
		binary.Write(buf, binary.BigEndian, h.Handler)
		s.writeStr(buf, h.CatchType)
	}

	if err := writeCount(buf, len(m.Lines), "line entries"); err != nil {
		return err
	}
	for _, l := range m.Lines {
		binary.Write(buf, binary.BigEndian, l.PC)
		binary.Write(buf, binary.BigEndian, l.Line)
	}

	if err := writeCount(buf, len(m.Locals), "local variables"); err != nil {
		return err
	}
	for _, l := range m.Locals {
		binary.Write(buf, binary.BigEndian, l.Start)
		binary.Write(buf, binary.BigEndian, l.Length)
		s.writeStr(buf, l.Name)
		s.writeStr(buf, l.Descriptor)
		binary.Write(buf, binary.BigEndian, l.Index)
	}

	if err := writeCount(buf, len(m.Exceptions), "exceptions"); err != nil {
		return err
	}
	for _, e := range m.Exceptions {
		s.writeStr(buf, e)
	}
	return nil
}
