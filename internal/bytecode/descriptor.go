package bytecode

import (
	"fmt"
	"strings"
)

// ParseMethodDescriptor 解析方法描述符，例如 "(ILjava/lang/Object;)V"
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("invalid method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldDescriptorLen(desc[i:])
		if err != nil {
			return nil, "", fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		params = append(params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		if n, err := fieldDescriptorLen(ret); err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("invalid return descriptor in %q", desc)
		}
	}
	return params, ret, nil
}

// fieldDescriptorLen 返回 s 开头的单个字段描述符长度
func fieldDescriptorLen(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty descriptor")
	}
	switch s[0] {
	case 'I', 'J', 'S', 'F', 'D', 'B', 'C', 'Z':
		return 1, nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return 0, fmt.Errorf("unterminated class descriptor %q", s)
		}
		return end + 1, nil
	case '[':
		n, err := fieldDescriptorLen(s[1:])
		return n + 1, err
	}
	return 0, fmt.Errorf("unknown descriptor character %q", s[0])
}

// ArgCount 方法描述符的参数个数，解析失败返回 -1
func ArgCount(desc string) int {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return -1
	}
	return len(params)
}

// ReturnDescriptor 方法描述符的返回类型部分
func ReturnDescriptor(desc string) string {
	if i := strings.LastIndexByte(desc, ')'); i >= 0 {
		return desc[i+1:]
	}
	return ""
}

// IsWide 宽类型（long/double）占两个局部变量槽位
func IsWide(desc string) bool { return desc == "J" || desc == "D" }

// SlotSize 描述符对应的局部变量槽位数
func SlotSize(desc string) int {
	if IsWide(desc) {
		return 2
	}
	return 1
}

// ClassNameOf 从 "Lpkg/Name;" 取出内部名；数组描述符原样返回
func ClassNameOf(desc string) string {
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}
