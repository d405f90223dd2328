package bytecode

// ============================================================================
// 类模块文件格式定义
// ============================================================================

const (
	// ModuleFileExtension 编译产物文件后缀
	ModuleFileExtension = ".gcls"

	// MagicNumber 文件魔数 "GCLS" in ASCII
	MagicNumber uint32 = 0x47434C53

	// 版本号
	MajorVersion uint8 = 1
	MinorVersion uint8 = 0

	// DigestSize 文件尾部 BLAKE2b-256 摘要长度
	DigestSize = 32
)

// 常量池类型标记
const (
	ConstInt       uint8 = 1 // int32
	ConstLong      uint8 = 2 // int64
	ConstFloat     uint8 = 3 // float32
	ConstDouble    uint8 = 4 // float64
	ConstString    uint8 = 5 // 字符串
	ConstClass     uint8 = 6 // 类引用（内部名）
	ConstFieldRef  uint8 = 7 // 字段引用 owner.name:desc
	ConstMethodRef uint8 = 8 // 方法引用 owner.name:desc
	ConstCallSite  uint8 = 9 // 动态调用点 owner?.name/argc
	ConstBool      uint8 = 10
)

// 访问标志
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020 // 类标志
	AccSynchronized uint16 = 0x0020 // 方法标志
	AccBridge       uint16 = 0x0040
	AccVarargs      uint16 = 0x0080
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccSynthetic    uint16 = 0x1000
	AccEnum         uint16 = 0x4000
)

// 文件头结构大小：magic(4) + version(2) + flags(2)
const HeaderSize = 8
