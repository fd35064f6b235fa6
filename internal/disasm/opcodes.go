package disasm

// Format is a Dalvik instruction format. The first digit is the width in
// code units, the second the register count, the letter the kind of
// extra operand.
type Format uint8

const (
	FormatUnused Format = iota
	Format10x
	Format12x
	Format11n
	Format11x
	Format10t
	Format20t
	Format22x
	Format21t
	Format21s
	Format21h
	Format21c
	Format23x
	Format22b
	Format22t
	Format22s
	Format22c
	Format32x
	Format30t
	Format31t
	Format31i
	Format31c
	Format35c
	Format3rc
	Format45cc
	Format4rcc
	Format51l
)

var formatNames = [...]string{
	FormatUnused: "unused",
	Format10x:    "10x",
	Format12x:    "12x",
	Format11n:    "11n",
	Format11x:    "11x",
	Format10t:    "10t",
	Format20t:    "20t",
	Format22x:    "22x",
	Format21t:    "21t",
	Format21s:    "21s",
	Format21h:    "21h",
	Format21c:    "21c",
	Format23x:    "23x",
	Format22b:    "22b",
	Format22t:    "22t",
	Format22s:    "22s",
	Format22c:    "22c",
	Format32x:    "32x",
	Format30t:    "30t",
	Format31t:    "31t",
	Format31i:    "31i",
	Format31c:    "31c",
	Format35c:    "35c",
	Format3rc:    "3rc",
	Format45cc:   "45cc",
	Format4rcc:   "4rcc",
	Format51l:    "51l",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Units returns the instruction width in code units.
func (f Format) Units() int {
	if f == FormatUnused || int(f) >= len(formatNames) {
		return 0
	}
	return int(formatNames[f][0] - '0')
}

// IndexKind says which constant pool an index operand refers to.
type IndexKind uint8

const (
	IndexNone IndexKind = iota
	IndexString
	IndexType
	IndexField
	IndexMethod
	IndexProto
	IndexCallSite
	IndexMethodHandle
)

var indexPrefixes = [...]string{
	IndexNone:         "",
	IndexString:       "string",
	IndexType:         "type",
	IndexField:        "field",
	IndexMethod:       "method",
	IndexProto:        "proto",
	IndexCallSite:     "call_site",
	IndexMethodHandle: "method_handle",
}

func (k IndexKind) String() string { return indexPrefixes[k] }

// Control-flow and operand flags of an opcode.
const (
	flagGoto = 1 << iota
	flagBranch
	flagSwitch
	flagReturn
	flagThrow
	flagInvoke
	flagFillArray
	flagWide // literal is 64-bit
)

// OpInfo describes one opcode.
type OpInfo struct {
	Name   string
	Format Format
	Index  IndexKind
	flags  uint8
}

// Defined reports whether the opcode is assigned.
func (o OpInfo) Defined() bool { return o.Format != FormatUnused }

// Opcode is the low byte of an instruction's first code unit.
type Opcode uint8

// Opcodes referenced by name.
const (
	OpNop           Opcode = 0x00
	OpReturnVoid    Opcode = 0x0e
	OpConst4        Opcode = 0x12
	OpConstHigh16   Opcode = 0x15
	OpConstWideHi16 Opcode = 0x19
	OpFillArrayData Opcode = 0x26
	OpThrow         Opcode = 0x27
	OpGoto          Opcode = 0x28
	OpPackedSwitch  Opcode = 0x2b
	OpSparseSwitch  Opcode = 0x2c
	OpIfEq          Opcode = 0x32
	OpIfEqz         Opcode = 0x38
	OpInvokeVirtual Opcode = 0x6e
	OpInvokeStatic  Opcode = 0x71
)

// Info returns the table entry for op.
func (op Opcode) Info() OpInfo { return opcodes[op] }

func (op Opcode) String() string {
	if info := opcodes[op]; info.Defined() {
		return info.Name
	}
	return "unused"
}

// opcodes maps every opcode byte to its mnemonic and format. Unassigned
// bytes have FormatUnused.
var opcodes = [256]OpInfo{
	0x00: {"nop", Format10x, IndexNone, 0},
	0x01: {"move", Format12x, IndexNone, 0},
	0x02: {"move/from16", Format22x, IndexNone, 0},
	0x03: {"move/16", Format32x, IndexNone, 0},
	0x04: {"move-wide", Format12x, IndexNone, 0},
	0x05: {"move-wide/from16", Format22x, IndexNone, 0},
	0x06: {"move-wide/16", Format32x, IndexNone, 0},
	0x07: {"move-object", Format12x, IndexNone, 0},
	0x08: {"move-object/from16", Format22x, IndexNone, 0},
	0x09: {"move-object/16", Format32x, IndexNone, 0},
	0x0a: {"move-result", Format11x, IndexNone, 0},
	0x0b: {"move-result-wide", Format11x, IndexNone, 0},
	0x0c: {"move-result-object", Format11x, IndexNone, 0},
	0x0d: {"move-exception", Format11x, IndexNone, 0},
	0x0e: {"return-void", Format10x, IndexNone, flagReturn},
	0x0f: {"return", Format11x, IndexNone, flagReturn},
	0x10: {"return-wide", Format11x, IndexNone, flagReturn},
	0x11: {"return-object", Format11x, IndexNone, flagReturn},
	0x12: {"const/4", Format11n, IndexNone, 0},
	0x13: {"const/16", Format21s, IndexNone, 0},
	0x14: {"const", Format31i, IndexNone, 0},
	0x15: {"const/high16", Format21h, IndexNone, 0},
	0x16: {"const-wide/16", Format21s, IndexNone, flagWide},
	0x17: {"const-wide/32", Format31i, IndexNone, flagWide},
	0x18: {"const-wide", Format51l, IndexNone, flagWide},
	0x19: {"const-wide/high16", Format21h, IndexNone, flagWide},
	0x1a: {"const-string", Format21c, IndexString, 0},
	0x1b: {"const-string/jumbo", Format31c, IndexString, 0},
	0x1c: {"const-class", Format21c, IndexType, 0},
	0x1d: {"monitor-enter", Format11x, IndexNone, 0},
	0x1e: {"monitor-exit", Format11x, IndexNone, 0},
	0x1f: {"check-cast", Format21c, IndexType, 0},
	0x20: {"instance-of", Format22c, IndexType, 0},
	0x21: {"array-length", Format12x, IndexNone, 0},
	0x22: {"new-instance", Format21c, IndexType, 0},
	0x23: {"new-array", Format22c, IndexType, 0},
	0x24: {"filled-new-array", Format35c, IndexType, 0},
	0x25: {"filled-new-array/range", Format3rc, IndexType, 0},
	0x26: {"fill-array-data", Format31t, IndexNone, flagFillArray},
	0x27: {"throw", Format11x, IndexNone, flagThrow},
	0x28: {"goto", Format10t, IndexNone, flagGoto},
	0x29: {"goto/16", Format20t, IndexNone, flagGoto},
	0x2a: {"goto/32", Format30t, IndexNone, flagGoto},
	0x2b: {"packed-switch", Format31t, IndexNone, flagSwitch},
	0x2c: {"sparse-switch", Format31t, IndexNone, flagSwitch},
	0x2d: {"cmpl-float", Format23x, IndexNone, 0},
	0x2e: {"cmpg-float", Format23x, IndexNone, 0},
	0x2f: {"cmpl-double", Format23x, IndexNone, 0},
	0x30: {"cmpg-double", Format23x, IndexNone, 0},
	0x31: {"cmp-long", Format23x, IndexNone, 0},
	0x32: {"if-eq", Format22t, IndexNone, flagBranch},
	0x33: {"if-ne", Format22t, IndexNone, flagBranch},
	0x34: {"if-lt", Format22t, IndexNone, flagBranch},
	0x35: {"if-ge", Format22t, IndexNone, flagBranch},
	0x36: {"if-gt", Format22t, IndexNone, flagBranch},
	0x37: {"if-le", Format22t, IndexNone, flagBranch},
	0x38: {"if-eqz", Format21t, IndexNone, flagBranch},
	0x39: {"if-nez", Format21t, IndexNone, flagBranch},
	0x3a: {"if-ltz", Format21t, IndexNone, flagBranch},
	0x3b: {"if-gez", Format21t, IndexNone, flagBranch},
	0x3c: {"if-gtz", Format21t, IndexNone, flagBranch},
	0x3d: {"if-lez", Format21t, IndexNone, flagBranch},
	// 0x3e..0x43 unused
	0x44: {"aget", Format23x, IndexNone, 0},
	0x45: {"aget-wide", Format23x, IndexNone, 0},
	0x46: {"aget-object", Format23x, IndexNone, 0},
	0x47: {"aget-boolean", Format23x, IndexNone, 0},
	0x48: {"aget-byte", Format23x, IndexNone, 0},
	0x49: {"aget-char", Format23x, IndexNone, 0},
	0x4a: {"aget-short", Format23x, IndexNone, 0},
	0x4b: {"aput", Format23x, IndexNone, 0},
	0x4c: {"aput-wide", Format23x, IndexNone, 0},
	0x4d: {"aput-object", Format23x, IndexNone, 0},
	0x4e: {"aput-boolean", Format23x, IndexNone, 0},
	0x4f: {"aput-byte", Format23x, IndexNone, 0},
	0x50: {"aput-char", Format23x, IndexNone, 0},
	0x51: {"aput-short", Format23x, IndexNone, 0},
	0x52: {"iget", Format22c, IndexField, 0},
	0x53: {"iget-wide", Format22c, IndexField, 0},
	0x54: {"iget-object", Format22c, IndexField, 0},
	0x55: {"iget-boolean", Format22c, IndexField, 0},
	0x56: {"iget-byte", Format22c, IndexField, 0},
	0x57: {"iget-char", Format22c, IndexField, 0},
	0x58: {"iget-short", Format22c, IndexField, 0},
	0x59: {"iput", Format22c, IndexField, 0},
	0x5a: {"iput-wide", Format22c, IndexField, 0},
	0x5b: {"iput-object", Format22c, IndexField, 0},
	0x5c: {"iput-boolean", Format22c, IndexField, 0},
	0x5d: {"iput-byte", Format22c, IndexField, 0},
	0x5e: {"iput-char", Format22c, IndexField, 0},
	0x5f: {"iput-short", Format22c, IndexField, 0},
	0x60: {"sget", Format21c, IndexField, 0},
	0x61: {"sget-wide", Format21c, IndexField, 0},
	0x62: {"sget-object", Format21c, IndexField, 0},
	0x63: {"sget-boolean", Format21c, IndexField, 0},
	0x64: {"sget-byte", Format21c, IndexField, 0},
	0x65: {"sget-char", Format21c, IndexField, 0},
	0x66: {"sget-short", Format21c, IndexField, 0},
	0x67: {"sput", Format21c, IndexField, 0},
	0x68: {"sput-wide", Format21c, IndexField, 0},
	0x69: {"sput-object", Format21c, IndexField, 0},
	0x6a: {"sput-boolean", Format21c, IndexField, 0},
	0x6b: {"sput-byte", Format21c, IndexField, 0},
	0x6c: {"sput-char", Format21c, IndexField, 0},
	0x6d: {"sput-short", Format21c, IndexField, 0},
	0x6e: {"invoke-virtual", Format35c, IndexMethod, flagInvoke},
	0x6f: {"invoke-super", Format35c, IndexMethod, flagInvoke},
	0x70: {"invoke-direct", Format35c, IndexMethod, flagInvoke},
	0x71: {"invoke-static", Format35c, IndexMethod, flagInvoke},
	0x72: {"invoke-interface", Format35c, IndexMethod, flagInvoke},
	// 0x73 unused
	0x74: {"invoke-virtual/range", Format3rc, IndexMethod, flagInvoke},
	0x75: {"invoke-super/range", Format3rc, IndexMethod, flagInvoke},
	0x76: {"invoke-direct/range", Format3rc, IndexMethod, flagInvoke},
	0x77: {"invoke-static/range", Format3rc, IndexMethod, flagInvoke},
	0x78: {"invoke-interface/range", Format3rc, IndexMethod, flagInvoke},
	// 0x79..0x7a unused
	0x7b: {"neg-int", Format12x, IndexNone, 0},
	0x7c: {"not-int", Format12x, IndexNone, 0},
	0x7d: {"neg-long", Format12x, IndexNone, 0},
	0x7e: {"not-long", Format12x, IndexNone, 0},
	0x7f: {"neg-float", Format12x, IndexNone, 0},
	0x80: {"neg-double", Format12x, IndexNone, 0},
	0x81: {"int-to-long", Format12x, IndexNone, 0},
	0x82: {"int-to-float", Format12x, IndexNone, 0},
	0x83: {"int-to-double", Format12x, IndexNone, 0},
	0x84: {"long-to-int", Format12x, IndexNone, 0},
	0x85: {"long-to-float", Format12x, IndexNone, 0},
	0x86: {"long-to-double", Format12x, IndexNone, 0},
	0x87: {"float-to-int", Format12x, IndexNone, 0},
	0x88: {"float-to-long", Format12x, IndexNone, 0},
	0x89: {"float-to-double", Format12x, IndexNone, 0},
	0x8a: {"double-to-int", Format12x, IndexNone, 0},
	0x8b: {"double-to-long", Format12x, IndexNone, 0},
	0x8c: {"double-to-float", Format12x, IndexNone, 0},
	0x8d: {"int-to-byte", Format12x, IndexNone, 0},
	0x8e: {"int-to-char", Format12x, IndexNone, 0},
	0x8f: {"int-to-short", Format12x, IndexNone, 0},
	0x90: {"add-int", Format23x, IndexNone, 0},
	0x91: {"sub-int", Format23x, IndexNone, 0},
	0x92: {"mul-int", Format23x, IndexNone, 0},
	0x93: {"div-int", Format23x, IndexNone, 0},
	0x94: {"rem-int", Format23x, IndexNone, 0},
	0x95: {"and-int", Format23x, IndexNone, 0},
	0x96: {"or-int", Format23x, IndexNone, 0},
	0x97: {"xor-int", Format23x, IndexNone, 0},
	0x98: {"shl-int", Format23x, IndexNone, 0},
	0x99: {"shr-int", Format23x, IndexNone, 0},
	0x9a: {"ushr-int", Format23x, IndexNone, 0},
	0x9b: {"add-long", Format23x, IndexNone, 0},
	0x9c: {"sub-long", Format23x, IndexNone, 0},
	0x9d: {"mul-long", Format23x, IndexNone, 0},
	0x9e: {"div-long", Format23x, IndexNone, 0},
	0x9f: {"rem-long", Format23x, IndexNone, 0},
	0xa0: {"and-long", Format23x, IndexNone, 0},
	0xa1: {"or-long", Format23x, IndexNone, 0},
	0xa2: {"xor-long", Format23x, IndexNone, 0},
	0xa3: {"shl-long", Format23x, IndexNone, 0},
	0xa4: {"shr-long", Format23x, IndexNone, 0},
	0xa5: {"ushr-long", Format23x, IndexNone, 0},
	0xa6: {"add-float", Format23x, IndexNone, 0},
	0xa7: {"sub-float", Format23x, IndexNone, 0},
	0xa8: {"mul-float", Format23x, IndexNone, 0},
	0xa9: {"div-float", Format23x, IndexNone, 0},
	0xaa: {"rem-float", Format23x, IndexNone, 0},
	0xab: {"add-double", Format23x, IndexNone, 0},
	0xac: {"sub-double", Format23x, IndexNone, 0},
	0xad: {"mul-double", Format23x, IndexNone, 0},
	0xae: {"div-double", Format23x, IndexNone, 0},
	0xaf: {"rem-double", Format23x, IndexNone, 0},
	0xb0: {"add-int/2addr", Format12x, IndexNone, 0},
	0xb1: {"sub-int/2addr", Format12x, IndexNone, 0},
	0xb2: {"mul-int/2addr", Format12x, IndexNone, 0},
	0xb3: {"div-int/2addr", Format12x, IndexNone, 0},
	0xb4: {"rem-int/2addr", Format12x, IndexNone, 0},
	0xb5: {"and-int/2addr", Format12x, IndexNone, 0},
	0xb6: {"or-int/2addr", Format12x, IndexNone, 0},
	0xb7: {"xor-int/2addr", Format12x, IndexNone, 0},
	0xb8: {"shl-int/2addr", Format12x, IndexNone, 0},
	0xb9: {"shr-int/2addr", Format12x, IndexNone, 0},
	0xba: {"ushr-int/2addr", Format12x, IndexNone, 0},
	0xbb: {"add-long/2addr", Format12x, IndexNone, 0},
	0xbc: {"sub-long/2addr", Format12x, IndexNone, 0},
	0xbd: {"mul-long/2addr", Format12x, IndexNone, 0},
	0xbe: {"div-long/2addr", Format12x, IndexNone, 0},
	0xbf: {"rem-long/2addr", Format12x, IndexNone, 0},
	0xc0: {"and-long/2addr", Format12x, IndexNone, 0},
	0xc1: {"or-long/2addr", Format12x, IndexNone, 0},
	0xc2: {"xor-long/2addr", Format12x, IndexNone, 0},
	0xc3: {"shl-long/2addr", Format12x, IndexNone, 0},
	0xc4: {"shr-long/2addr", Format12x, IndexNone, 0},
	0xc5: {"ushr-long/2addr", Format12x, IndexNone, 0},
	0xc6: {"add-float/2addr", Format12x, IndexNone, 0},
	0xc7: {"sub-float/2addr", Format12x, IndexNone, 0},
	0xc8: {"mul-float/2addr", Format12x, IndexNone, 0},
	0xc9: {"div-float/2addr", Format12x, IndexNone, 0},
	0xca: {"rem-float/2addr", Format12x, IndexNone, 0},
	0xcb: {"add-double/2addr", Format12x, IndexNone, 0},
	0xcc: {"sub-double/2addr", Format12x, IndexNone, 0},
	0xcd: {"mul-double/2addr", Format12x, IndexNone, 0},
	0xce: {"div-double/2addr", Format12x, IndexNone, 0},
	0xcf: {"rem-double/2addr", Format12x, IndexNone, 0},
	0xd0: {"add-int/lit16", Format22s, IndexNone, 0},
	0xd1: {"rsub-int", Format22s, IndexNone, 0},
	0xd2: {"mul-int/lit16", Format22s, IndexNone, 0},
	0xd3: {"div-int/lit16", Format22s, IndexNone, 0},
	0xd4: {"rem-int/lit16", Format22s, IndexNone, 0},
	0xd5: {"and-int/lit16", Format22s, IndexNone, 0},
	0xd6: {"or-int/lit16", Format22s, IndexNone, 0},
	0xd7: {"xor-int/lit16", Format22s, IndexNone, 0},
	0xd8: {"add-int/lit8", Format22b, IndexNone, 0},
	0xd9: {"rsub-int/lit8", Format22b, IndexNone, 0},
	0xda: {"mul-int/lit8", Format22b, IndexNone, 0},
	0xdb: {"div-int/lit8", Format22b, IndexNone, 0},
	0xdc: {"rem-int/lit8", Format22b, IndexNone, 0},
	0xdd: {"and-int/lit8", Format22b, IndexNone, 0},
	0xde: {"or-int/lit8", Format22b, IndexNone, 0},
	0xdf: {"xor-int/lit8", Format22b, IndexNone, 0},
	0xe0: {"shl-int/lit8", Format22b, IndexNone, 0},
	0xe1: {"shr-int/lit8", Format22b, IndexNone, 0},
	0xe2: {"ushr-int/lit8", Format22b, IndexNone, 0},
	// 0xe3..0xf9 unused
	0xfa: {"invoke-polymorphic", Format45cc, IndexMethod, flagInvoke},
	0xfb: {"invoke-polymorphic/range", Format4rcc, IndexMethod, flagInvoke},
	0xfc: {"invoke-custom", Format35c, IndexCallSite, flagInvoke},
	0xfd: {"invoke-custom/range", Format3rc, IndexCallSite, flagInvoke},
	0xfe: {"const-method-handle", Format21c, IndexMethodHandle, 0},
	0xff: {"const-method-type", Format21c, IndexProto, 0},
}
