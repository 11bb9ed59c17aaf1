package gasinjector

// immKind classifies how an instruction's immediate operand (if any) is
// encoded, so the walker knows how many bytes to skip after the opcode
// byte. Mirrors the opcode vocabulary the teacher's ewasm interpreter
// already names (InterpOpI32Add, InterpOpLocalGet, ...) but widened to the
// structural opcodes a real module's code section actually contains —
// the interpreter only ever sees instructions after they've been decoded,
// the injector has to walk the raw encoding itself.
type immKind byte

const (
	immNone     immKind = iota // no immediate: i32.add, drop, end, ...
	immVarU32                  // a single unsigned LEB128: local.get, call, global.set
	immVarI32                  // a signed LEB128 (i32.const)
	immVarI64                  // a signed LEB128, wider range (i64.const)
	immF32                     // 4 raw bytes (f32.const)
	immF64                     // 8 raw bytes (f64.const)
	immBlockType               // one signed LEB128 block type (block/loop/if)
	immMemArg                  // two unsigned LEB128s: align, offset
	immBrTable                 // varuint32 vector count, that many varuint32 labels, one trailing varuint32 default label
)

// opInfo describes one opcode: its mnemonic, its immediate encoding, and
// its base metering charge.
type opInfo struct {
	name string
	imm  immKind
	gas  uint64
}

// The op* constants below name the opcodes that affect nesting depth or
// control flow; the walker needs to recognize them by
// value even though the generic table lookup already reports their
// immKind.
const (
	opUnreachable  byte = 0x00
	opNop          byte = 0x01
	opBlock        byte = 0x02
	opLoop         byte = 0x03
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0B
	opBr           byte = 0x0C
	opBrIf         byte = 0x0D
	opBrTable      byte = 0x0E
	opReturn       byte = 0x0F
	opCall         byte = 0x10
	opCallIndirect byte = 0x11
)

// opcodeTable enumerates every instruction the injector recognizes.
// Structural and common numeric/memory opcodes are covered; anything
// absent fails with WASMValidationFailure per spec.md §4.7. Gas costs
// follow the same "1 per instruction, +1 for multiply/divide-class ops"
// shape as the teacher's EWASMInterpreter.useGas calls, extended with a
// flat charge for memory and control-transfer instructions.
var opcodeTable = map[byte]opInfo{
	opUnreachable:  {"unreachable", immNone, 1},
	opNop:          {"nop", immNone, 1},
	opBlock:        {"block", immBlockType, 1},
	opLoop:         {"loop", immBlockType, 1},
	opIf:           {"if", immBlockType, 1},
	opElse:         {"else", immNone, 1},
	opEnd:          {"end", immNone, 1},
	opBr:           {"br", immVarU32, 2},
	opBrIf:         {"br_if", immVarU32, 2},
	opBrTable:      {"br_table", immBrTable, 3},
	opReturn:       {"return", immNone, 1},
	opCall:         {"call", immVarU32, 5},
	opCallIndirect: {"call_indirect", immMemArg, 10},

	0x1A: {"drop", immNone, 1},
	0x1B: {"select", immNone, 1},

	0x20: {"local.get", immVarU32, 1},
	0x21: {"local.set", immVarU32, 1},
	0x22: {"local.tee", immVarU32, 1},
	0x23: {"global.get", immVarU32, 2},
	0x24: {"global.set", immVarU32, 2},

	0x28: {"i32.load", immMemArg, 3},
	0x29: {"i64.load", immMemArg, 3},
	0x2C: {"i32.load8_s", immMemArg, 3},
	0x2D: {"i32.load8_u", immMemArg, 3},
	0x2E: {"i32.load16_s", immMemArg, 3},
	0x2F: {"i32.load16_u", immMemArg, 3},
	0x36: {"i32.store", immMemArg, 3},
	0x37: {"i64.store", immMemArg, 3},
	0x3A: {"i32.store8", immMemArg, 3},
	0x3B: {"i32.store16", immMemArg, 3},
	0x3F: {"memory.size", immVarU32, 2},
	0x40: {"memory.grow", immVarU32, 8},

	0x41: {"i32.const", immVarI32, 1},
	0x42: {"i64.const", immVarI64, 1},
	0x43: {"f32.const", immF32, 1},
	0x44: {"f64.const", immF64, 1},

	0x45: {"i32.eqz", immNone, 1},
	0x46: {"i32.eq", immNone, 1},
	0x47: {"i32.ne", immNone, 1},
	0x48: {"i32.lt_s", immNone, 1},
	0x49: {"i32.lt_u", immNone, 1},
	0x4A: {"i32.gt_s", immNone, 1},
	0x4B: {"i32.gt_u", immNone, 1},
	0x4C: {"i32.le_s", immNone, 1},
	0x4D: {"i32.le_u", immNone, 1},
	0x4E: {"i32.ge_s", immNone, 1},
	0x4F: {"i32.ge_u", immNone, 1},

	0x50: {"i64.eqz", immNone, 1},
	0x51: {"i64.eq", immNone, 1},
	0x52: {"i64.ne", immNone, 1},

	0x6A: {"i32.add", immNone, 1},
	0x6B: {"i32.sub", immNone, 1},
	0x6C: {"i32.mul", immNone, 2},
	0x6D: {"i32.div_s", immNone, 2},
	0x6E: {"i32.div_u", immNone, 2},
	0x6F: {"i32.rem_s", immNone, 2},
	0x70: {"i32.rem_u", immNone, 2},
	0x71: {"i32.and", immNone, 1},
	0x72: {"i32.or", immNone, 1},
	0x73: {"i32.xor", immNone, 1},
	0x74: {"i32.shl", immNone, 1},
	0x75: {"i32.shr_s", immNone, 1},
	0x76: {"i32.shr_u", immNone, 1},

	0x7C: {"i64.add", immNone, 1},
	0x7D: {"i64.sub", immNone, 1},
	0x7E: {"i64.mul", immNone, 2},
	0x7F: {"i64.div_s", immNone, 2},
	0x80: {"i64.div_u", immNone, 2},
}

// immediateLen returns the number of bytes the immediate operand of an
// instruction of the given kind occupies, reading it from data starting
// right after the opcode byte at offset.
func immediateLen(kind immKind, data []byte, offset int) (int, error) {
	switch kind {
	case immNone:
		return 0, nil
	case immVarU32:
		_, n, err := readUvarint(data, offset)
		return n, err
	case immVarI32, immVarI64, immBlockType:
		_, n, err := readVarint(data, offset)
		return n, err
	case immF32:
		if offset+4 > len(data) {
			return 0, ErrTruncatedVarint
		}
		return 4, nil
	case immF64:
		if offset+8 > len(data) {
			return 0, ErrTruncatedVarint
		}
		return 8, nil
	case immMemArg:
		_, n1, err := readUvarint(data, offset)
		if err != nil {
			return 0, err
		}
		_, n2, err := readUvarint(data, offset+n1)
		if err != nil {
			return 0, err
		}
		return n1 + n2, nil
	case immBrTable:
		count, n, err := readUvarint(data, offset)
		if err != nil {
			return 0, err
		}
		total := n
		for i := uint64(0); i < count; i++ {
			_, ln, err := readUvarint(data, offset+total)
			if err != nil {
				return 0, err
			}
			total += ln
		}
		_, ln, err := readUvarint(data, offset+total) // default label
		if err != nil {
			return 0, err
		}
		return total + ln, nil
	default:
		return 0, ErrTruncatedVarint
	}
}
