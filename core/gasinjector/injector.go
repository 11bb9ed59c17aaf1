// Package gasinjector implements spec.md §4.7: before any WASM code is
// executed or stored, its instruction stream is walked and every
// instruction is replaced with an {instruction, gas_charge} pair that
// invokes an injected "gas()" host import. The shape of the walk (a
// stack-based pass over single-byte opcodes with decoded immediates,
// charging 1 gas per instruction and extra for multiply/divide-class
// ops) mirrors the teacher's EWASMInterpreter.Execute loop in
// pkg/core/vm/ewasm_interpreter.go, generalized from interpreting
// pre-decoded instructions to walking and rewriting raw module bytes.
package gasinjector

// GasFunctionIndex identifies the injected "gas" host import in the
// module's function index space — callers resolve it once via
// FindGasImport and thread it through every InjectFunctionBody call.
type GasFunctionIndex = uint32

// instrument appends the charge+instruction pair for one decoded
// instruction to out: "i64.const <charge>" followed by "call
// <gasFuncIndex>", then the instruction's original bytes unchanged.
func instrument(out []byte, charge uint64, gasFuncIndex uint32, instr []byte) []byte {
	out = append(out, 0x42) // i64.const
	out = appendVarint(out, int64(charge))
	out = append(out, opCall)
	out = appendUvarint(out, uint64(gasFuncIndex))
	out = append(out, instr...)
	return out
}

// InjectFunctionBody walks one function body from the code section — the
// declared-locals header followed by its instruction stream up to (and
// including) the function's closing `end` — and returns an instrumented
// copy with a gas charge injected ahead of every instruction.
//
// An opcode absent from opcodeTable aborts the walk with
// WASMValidationFailure, naming the offending byte and its offset within
// body per spec.md §4.7.
func InjectFunctionBody(body []byte, gasFuncIndex uint32) ([]byte, error) {
	out := make([]byte, 0, len(body)*2)

	// Locals declaration header: varuint32 count of (varuint32 n, byte
	// valtype) groups. Copied unchanged; gas metering only instruments
	// executable instructions.
	localGroups, n, err := readUvarint(body, 0)
	if err != nil {
		return nil, err
	}
	pos := n
	out = append(out, body[:pos]...)
	for i := uint64(0); i < localGroups; i++ {
		_, ln, err := readUvarint(body, pos)
		if err != nil {
			return nil, err
		}
		if pos+ln+1 > len(body) {
			return nil, ErrTruncatedVarint
		}
		out = append(out, body[pos:pos+ln+1]...)
		pos += ln + 1
	}

	depth := 0
	for pos < len(body) {
		opcode := body[pos]
		info, ok := opcodeTable[opcode]
		if !ok {
			return nil, &WASMValidationFailure{Opcode: opcode, Offset: pos}
		}
		immLen, err := immediateLen(info.imm, body, pos+1)
		if err != nil {
			return nil, err
		}
		instrLen := 1 + immLen
		if pos+instrLen > len(body) {
			return nil, ErrTruncatedVarint
		}
		out = instrument(out, info.gas, gasFuncIndex, body[pos:pos+instrLen])

		switch opcode {
		case opBlock, opLoop, opIf:
			depth++
		case opEnd:
			if depth == 0 {
				pos += instrLen
				goto done
			}
			depth--
		}
		pos += instrLen
	}
done:
	return out, nil
}
