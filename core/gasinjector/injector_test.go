package gasinjector

import (
	"errors"
	"testing"
)

// funcBody builds a minimal function body: no locals, then the given
// instruction bytes, terminated with an explicit `end`.
func funcBody(instrs ...byte) []byte {
	body := []byte{0x00} // zero local-declaration groups
	body = append(body, instrs...)
	body = append(body, opEnd)
	return body
}

func TestInjectFunctionBodyChargesEveryInstruction(t *testing.T) {
	body := funcBody(
		0x41, 0x0A, // i32.const 10
		0x41, 0x14, // i32.const 20
		0x6A, // i32.add
	)
	out, err := InjectFunctionBody(body, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 4 instructions (3 + the trailing `end`), each preceded by
	// i64.const + call: at minimum the output must be longer than the
	// original and must still end with the original `end` opcode.
	if len(out) <= len(body) {
		t.Fatalf("expected instrumented body to grow, got %d <= %d", len(out), len(body))
	}
	if out[len(out)-1] != opEnd {
		t.Fatalf("expected instrumented body to end with `end`, got 0x%02x", out[len(out)-1])
	}
}

func TestInjectFunctionBodyRejectsUnknownOpcode(t *testing.T) {
	body := funcBody(0xFC, 0x00) // an opcode absent from opcodeTable
	_, err := InjectFunctionBody(body, 0)
	var failure *WASMValidationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *WASMValidationFailure, got %T: %v", err, err)
	}
	if failure.Offset != 1 {
		t.Fatalf("expected offset 1 (after the locals header), got %d", failure.Offset)
	}
}

func TestInjectFunctionBodyPreservesNestedBlocks(t *testing.T) {
	body := funcBody(
		opBlock, 0x40, // block (empty block type)
		0x01,   // nop
		opEnd,  // end of inner block
	)
	out, err := InjectFunctionBody(body, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[len(out)-1] != opEnd {
		t.Fatalf("expected instrumented body to end with the function's own `end`")
	}
}

func TestInjectModuleRoundTripsNonCodeSections(t *testing.T) {
	// A module with an empty type section (id 1, size 1, content [0x00])
	// followed by a code section with one trivial function.
	code := funcBody(0x01) // nop
	module := append([]byte{}, wasmPreamble...)
	module = append(module, 1, 1, 0x00) // type section: 0 entries

	var codeSection []byte
	codeSection = appendUvarint(codeSection, 1) // 1 function
	codeSection = appendUvarint(codeSection, uint64(len(code)))
	codeSection = append(codeSection, code...)
	module = append(module, sectionCode)
	module = appendUvarint(module, uint64(len(codeSection)))
	module = append(module, codeSection...)

	out, err := InjectModule(module, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) <= len(module) {
		t.Fatalf("expected instrumented module to grow, got %d <= %d", len(out), len(module))
	}
	// The type section header (3 bytes: id, size, first payload byte)
	// immediately after the 8-byte preamble+version must be unchanged.
	if out[8] != 1 || out[9] != 1 || out[10] != 0x00 {
		t.Fatalf("expected type section to be copied unchanged, got % x", out[8:11])
	}
}
