package opcode

// Category groups opcodes for dispatch. Each category has its own handler
// in the engine.
type Category uint8

const (
	CategoryInvalid Category = iota
	CategoryPush
	CategoryFlow
	CategoryStack
	CategorySlot
	CategorySplice
	CategoryBitwise
	CategoryArithmetic
	CategoryCompound
	CategoryType
	CategoryExtension
)

var categoryNames = [...]string{
	CategoryInvalid:    "invalid",
	CategoryPush:       "push",
	CategoryFlow:       "flow",
	CategoryStack:      "stack",
	CategorySlot:       "slot",
	CategorySplice:     "splice",
	CategoryBitwise:    "bitwise",
	CategoryArithmetic: "arithmetic",
	CategoryCompound:   "compound",
	CategoryType:       "type",
	CategoryExtension:  "extension",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "invalid"
}

// Info provides metadata about each opcode for decoding and disassembly.
type Info struct {
	Name        string   // Mnemonic
	SizePrefix  int      // Width of the operand length prefix (0, 1, 2 or 4)
	OperandSize int      // Fixed operand size when SizePrefix is 0
	Category    Category // Dispatch category
}

// GetInfo returns the metadata for op. Undefined opcodes have an empty Name.
func GetInfo(op Opcode) Info {
	return table[op]
}

var (
	table  [256]Info
	byName = make(map[string]Opcode)
)

func define(op Opcode, name string, cat Category, prefix, size int) {
	table[op] = Info{Name: name, SizePrefix: prefix, OperandSize: size, Category: cat}
	byName[name] = op
}

func init() {
	// Push
	define(PUSHINT8, "PUSHINT8", CategoryPush, 0, 1)
	define(PUSHINT16, "PUSHINT16", CategoryPush, 0, 2)
	define(PUSHINT32, "PUSHINT32", CategoryPush, 0, 4)
	define(PUSHINT64, "PUSHINT64", CategoryPush, 0, 8)
	define(PUSHINT128, "PUSHINT128", CategoryPush, 0, 16)
	define(PUSHINT256, "PUSHINT256", CategoryPush, 0, 32)
	define(PUSHT, "PUSHT", CategoryPush, 0, 0)
	define(PUSHF, "PUSHF", CategoryPush, 0, 0)
	define(PUSHA, "PUSHA", CategoryPush, 0, 4)
	define(PUSHNULL, "PUSHNULL", CategoryPush, 0, 0)
	define(PUSHDATA1, "PUSHDATA1", CategoryPush, 1, 0)
	define(PUSHDATA2, "PUSHDATA2", CategoryPush, 2, 0)
	define(PUSHDATA4, "PUSHDATA4", CategoryPush, 4, 0)
	define(PUSHM1, "PUSHM1", CategoryPush, 0, 0)
	pushNames := [...]string{"PUSH0", "PUSH1", "PUSH2", "PUSH3", "PUSH4", "PUSH5",
		"PUSH6", "PUSH7", "PUSH8", "PUSH9", "PUSH10", "PUSH11", "PUSH12", "PUSH13",
		"PUSH14", "PUSH15", "PUSH16"}
	for i, name := range pushNames {
		define(PUSH0+Opcode(i), name, CategoryPush, 0, 0)
	}

	// Flow control
	define(NOP, "NOP", CategoryFlow, 0, 0)
	jumps := []struct {
		short, long Opcode
		name        string
	}{
		{JMP, JMP_L, "JMP"},
		{JMPIF, JMPIF_L, "JMPIF"},
		{JMPIFNOT, JMPIFNOT_L, "JMPIFNOT"},
		{JMPEQ, JMPEQ_L, "JMPEQ"},
		{JMPNE, JMPNE_L, "JMPNE"},
		{JMPGT, JMPGT_L, "JMPGT"},
		{JMPGE, JMPGE_L, "JMPGE"},
		{JMPLT, JMPLT_L, "JMPLT"},
		{JMPLE, JMPLE_L, "JMPLE"},
		{CALL, CALL_L, "CALL"},
		{ENDTRY, ENDTRY_L, "ENDTRY"},
	}
	for _, j := range jumps {
		define(j.short, j.name, CategoryFlow, 0, 1)
		define(j.long, j.name+"_L", CategoryFlow, 0, 4)
	}
	define(CALLA, "CALLA", CategoryFlow, 0, 0)
	define(CALLT, "CALLT", CategoryFlow, 0, 2)
	define(ABORT, "ABORT", CategoryFlow, 0, 0)
	define(ASSERT, "ASSERT", CategoryFlow, 0, 0)
	define(THROW, "THROW", CategoryFlow, 0, 0)
	define(TRY, "TRY", CategoryFlow, 0, 2)
	define(TRY_L, "TRY_L", CategoryFlow, 0, 8)
	define(ENDFINALLY, "ENDFINALLY", CategoryFlow, 0, 0)
	define(RET, "RET", CategoryFlow, 0, 0)
	define(SYSCALL, "SYSCALL", CategoryFlow, 0, 4)

	// Stack
	for op, name := range map[Opcode]string{
		DEPTH: "DEPTH", DROP: "DROP", NIP: "NIP", XDROP: "XDROP", CLEAR: "CLEAR",
		DUP: "DUP", OVER: "OVER", PICK: "PICK", TUCK: "TUCK", SWAP: "SWAP",
		ROT: "ROT", ROLL: "ROLL", REVERSE3: "REVERSE3", REVERSE4: "REVERSE4",
		REVERSEN: "REVERSEN",
	} {
		define(op, name, CategoryStack, 0, 0)
	}

	// Slots
	define(INITSSLOT, "INITSSLOT", CategorySlot, 0, 1)
	define(INITSLOT, "INITSLOT", CategorySlot, 0, 2)
	slotGroups := []struct {
		base Opcode
		name string
	}{
		{LDSFLD0, "LDSFLD"}, {STSFLD0, "STSFLD"},
		{LDLOC0, "LDLOC"}, {STLOC0, "STLOC"},
		{LDARG0, "LDARG"}, {STARG0, "STARG"},
	}
	for _, g := range slotGroups {
		for i := 0; i < 7; i++ {
			define(g.base+Opcode(i), g.name+string(rune('0'+i)), CategorySlot, 0, 0)
		}
		define(g.base+7, g.name, CategorySlot, 0, 1)
	}

	// Splice
	for op, name := range map[Opcode]string{
		NEWBUFFER: "NEWBUFFER", MEMCPY: "MEMCPY", CAT: "CAT", SUBSTR: "SUBSTR",
		LEFT: "LEFT", RIGHT: "RIGHT",
	} {
		define(op, name, CategorySplice, 0, 0)
	}

	// Bitwise
	for op, name := range map[Opcode]string{
		INVERT: "INVERT", AND: "AND", OR: "OR", XOR: "XOR",
		EQUAL: "EQUAL", NOTEQUAL: "NOTEQUAL",
	} {
		define(op, name, CategoryBitwise, 0, 0)
	}

	// Arithmetic
	for op, name := range map[Opcode]string{
		SIGN: "SIGN", ABS: "ABS", NEGATE: "NEGATE", INC: "INC", DEC: "DEC",
		ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", MOD: "MOD", POW: "POW",
		SQRT: "SQRT", MODMUL: "MODMUL", MODPOW: "MODPOW", SHL: "SHL", SHR: "SHR",
		NOT: "NOT", BOOLAND: "BOOLAND", BOOLOR: "BOOLOR", NZ: "NZ",
		NUMEQUAL: "NUMEQUAL", NUMNOTEQUAL: "NUMNOTEQUAL", LT: "LT", LE: "LE",
		GT: "GT", GE: "GE", MIN: "MIN", MAX: "MAX", WITHIN: "WITHIN",
	} {
		define(op, name, CategoryArithmetic, 0, 0)
	}

	// Compound types
	for op, name := range map[Opcode]string{
		PACKMAP: "PACKMAP", PACKSTRUCT: "PACKSTRUCT", PACK: "PACK", UNPACK: "UNPACK",
		NEWARRAY0: "NEWARRAY0", NEWARRAY: "NEWARRAY", NEWSTRUCT0: "NEWSTRUCT0",
		NEWSTRUCT: "NEWSTRUCT", NEWMAP: "NEWMAP", SIZE: "SIZE", HASKEY: "HASKEY",
		KEYS: "KEYS", VALUES: "VALUES", PICKITEM: "PICKITEM", APPEND: "APPEND",
		SETITEM: "SETITEM", REVERSEITEMS: "REVERSEITEMS", REMOVE: "REMOVE",
		CLEARITEMS: "CLEARITEMS", POPITEM: "POPITEM",
	} {
		define(op, name, CategoryCompound, 0, 0)
	}
	define(NEWARRAY_T, "NEWARRAY_T", CategoryCompound, 0, 1)

	// Types
	define(ISNULL, "ISNULL", CategoryType, 0, 0)
	define(ISTYPE, "ISTYPE", CategoryType, 0, 1)
	define(CONVERT, "CONVERT", CategoryType, 0, 1)

	// Extensions
	define(ABORTMSG, "ABORTMSG", CategoryExtension, 0, 0)
	define(ASSERTMSG, "ASSERTMSG", CategoryExtension, 0, 0)
}
