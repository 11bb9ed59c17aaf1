package gasinjector

import "errors"

// ErrNoGasImport is returned when a module has no func import named
// "gas" for FindGasImport to resolve.
var ErrNoGasImport = errors.New("gasinjector: module does not import a gas() host function")

// ErrNotWasm is returned when the input lacks the \0asm preamble spec.md
// §6's GLOSSARY calls out as selecting the WASM VM and gas injector.
var ErrNotWasm = errors.New("gasinjector: missing \\0asm preamble")

const (
	sectionImport byte = 2
	sectionCode   byte = 10

	importKindFunc byte = 0
)

var wasmPreamble = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// IsWasm reports whether data begins with the four-byte \0asm signature.
func IsWasm(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x00 && data[1] == 0x61 && data[2] == 0x73 && data[3] == 0x6D
}

type wasmSection struct {
	id      byte
	content []byte
	// offset of content within the original module, for reconstruction.
	start, end int
}

func parseSections(module []byte) ([]wasmSection, error) {
	if !IsWasm(module) {
		return nil, ErrNotWasm
	}
	pos := 8 // preamble + version
	var sections []wasmSection
	for pos < len(module) {
		id := module[pos]
		size, n, err := readUvarint(module, pos+1)
		if err != nil {
			return nil, err
		}
		contentStart := pos + 1 + n
		contentEnd := contentStart + int(size)
		if contentEnd > len(module) {
			return nil, ErrTruncatedVarint
		}
		sections = append(sections, wasmSection{
			id:      id,
			content: module[contentStart:contentEnd],
			start:   pos,
			end:     contentEnd,
		})
		pos = contentEnd
	}
	return sections, nil
}

func readWasmString(data []byte, offset int) (string, int, error) {
	length, n, err := readUvarint(data, offset)
	if err != nil {
		return "", 0, err
	}
	start := offset + n
	end := start + int(length)
	if end > len(data) {
		return "", 0, ErrTruncatedVarint
	}
	return string(data[start:end]), end - offset, nil
}

// FindGasImport scans the module's import section for a func import
// named "gas" (in any module namespace) and returns its ordinal within
// the function index space — imported functions occupy index 0..k before
// any function defined in the module's own function section.
func FindGasImport(module []byte) (uint32, error) {
	sections, err := parseSections(module)
	if err != nil {
		return 0, err
	}
	for _, sec := range sections {
		if sec.id != sectionImport {
			continue
		}
		count, n, err := readUvarint(sec.content, 0)
		if err != nil {
			return 0, err
		}
		pos := n
		var funcIdx uint32
		for i := uint64(0); i < count; i++ {
			_, ln, err := readWasmString(sec.content, pos) // module name
			if err != nil {
				return 0, err
			}
			pos += ln
			field, ln, err := readWasmString(sec.content, pos) // field name
			if err != nil {
				return 0, err
			}
			pos += ln
			kind := sec.content[pos]
			pos++
			switch kind {
			case importKindFunc:
				_, ln, err := readUvarint(sec.content, pos) // type index
				if err != nil {
					return 0, err
				}
				pos += ln
				if field == "gas" {
					return funcIdx, nil
				}
				funcIdx++
			case 1: // table: reftype(1) + limits
				pos++
				ln, err := skipLimits(sec.content, pos)
				if err != nil {
					return 0, err
				}
				pos += ln
			case 2: // memory: limits
				ln, err := skipLimits(sec.content, pos)
				if err != nil {
					return 0, err
				}
				pos += ln
			case 3: // global: valtype(1) + mutability(1)
				pos += 2
			}
		}
	}
	return 0, ErrNoGasImport
}

func skipLimits(data []byte, offset int) (int, error) {
	flags := data[offset]
	pos := offset + 1
	_, n, err := readUvarint(data, pos)
	if err != nil {
		return 0, err
	}
	pos += n
	if flags == 1 {
		_, n, err := readUvarint(data, pos)
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos - offset, nil
}

// InjectModule rewrites a whole module's code section in place: every
// function body is passed through InjectFunctionBody, and the section's
// (and entries') length prefixes are recomputed since instrumentation
// grows every body. Every other section is copied byte for byte.
func InjectModule(module []byte, gasFuncIndex uint32) ([]byte, error) {
	sections, err := parseSections(module)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(module)*2)
	out = append(out, module[:8]...) // preamble + version

	for _, sec := range sections {
		if sec.id != sectionCode {
			out = append(out, module[sec.start:sec.end]...)
			continue
		}

		count, n, err := readUvarint(sec.content, 0)
		if err != nil {
			return nil, err
		}
		pos := n
		var bodies [][]byte
		for i := uint64(0); i < count; i++ {
			size, ln, err := readUvarint(sec.content, pos)
			if err != nil {
				return nil, err
			}
			pos += ln
			end := pos + int(size)
			if end > len(sec.content) {
				return nil, ErrTruncatedVarint
			}
			instrumented, err := InjectFunctionBody(sec.content[pos:end], gasFuncIndex)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, instrumented)
			pos = end
		}

		var newContent []byte
		newContent = appendUvarint(newContent, count)
		for _, b := range bodies {
			newContent = appendUvarint(newContent, uint64(len(b)))
			newContent = append(newContent, b...)
		}

		out = append(out, sectionCode)
		out = appendUvarint(out, uint64(len(newContent)))
		out = append(out, newContent...)
	}

	return out, nil
}
