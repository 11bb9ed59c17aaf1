// Package abi implements the 32-byte-word selector/argument codec used to
// call and return from precompiled contracts (spec.md §6): a 4-byte
// big-endian keccak256(signature) selector, followed by a sequence of
// 32-byte-aligned arguments, dynamic types using the offset-then-data
// layout.
package abi

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/crypto"
)

const wordSize = 32

var (
	ErrShortInput    = errors.New("abi: input shorter than expected")
	ErrBadOffset     = errors.New("abi: dynamic offset out of range")
	ErrSelectorShort = errors.New("abi: input shorter than a 4-byte selector")
)

// Selector returns the 4-byte big-endian keccak256 prefix of signature,
// e.g. Selector("setValueByKey(string,string)").
func Selector(signature string) [4]byte {
	h := crypto.Keccak256([]byte(signature))
	var sel [4]byte
	copy(sel[:], h[:4])
	return sel
}

// DecodeSelector splits the 4-byte selector off the front of input.
func DecodeSelector(input []byte) ([4]byte, []byte, error) {
	if len(input) < 4 {
		return [4]byte{}, nil, ErrSelectorShort
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	return sel, input[4:], nil
}

func leftPadWord(b []byte) []byte {
	out := make([]byte, wordSize)
	if len(b) > wordSize {
		b = b[len(b)-wordSize:]
	}
	copy(out[wordSize-len(b):], b)
	return out
}

// EncodeUint256 right-aligns v into one 32-byte word.
func EncodeUint256(v *big.Int) []byte {
	return leftPadWord(v.Bytes())
}

// EncodeUint64 right-aligns v into one 32-byte word.
func EncodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return leftPadWord(b[:])
}

// EncodeBool encodes a bool as a 32-byte word, 1 or 0.
func EncodeBool(v bool) []byte {
	if v {
		return leftPadWord([]byte{1})
	}
	return leftPadWord([]byte{0})
}

// EncodeAddress right-aligns a 20-byte address into one word.
func EncodeAddress(a types.Address) []byte {
	return leftPadWord(a.Bytes())
}

// EncodeBytes32 encodes a fixed 32-byte value directly.
func EncodeBytes32(h types.Hash) []byte {
	return h.Bytes()
}

func paddedLen(n int) int {
	if n%wordSize == 0 {
		return n
	}
	return n + (wordSize - n%wordSize)
}

// EncodeDynamicBytes encodes b as a dynamic type's tail: a length word
// followed by the bytes, right-padded to a word boundary.
func EncodeDynamicBytes(b []byte) []byte {
	out := make([]byte, 0, wordSize+paddedLen(len(b)))
	out = append(out, EncodeUint64(uint64(len(b)))...)
	out = append(out, b...)
	if pad := paddedLen(len(b)) - len(b); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

// EncodeString encodes s the same way as EncodeDynamicBytes.
func EncodeString(s string) []byte {
	return EncodeDynamicBytes([]byte(s))
}

// Encoder accumulates a head/tail ABI-encoded argument list, handling the
// offset-then-data layout for dynamic types automatically.
type Encoder struct {
	heads [][]byte // nil entries are placeholders for dynamic offsets
	tails [][]byte
}

// AddStatic appends a fixed 32-byte-word argument.
func (e *Encoder) AddStatic(word []byte) {
	e.heads = append(e.heads, word)
	e.tails = append(e.tails, nil)
}

// AddDynamic appends a dynamic argument (already word-padded, including
// its own length prefix) whose head slot will hold an offset.
func (e *Encoder) AddDynamic(tail []byte) {
	e.heads = append(e.heads, nil)
	e.tails = append(e.tails, tail)
}

// Bytes finalises the encoded argument list.
func (e *Encoder) Bytes() []byte {
	headSize := len(e.heads) * wordSize
	out := make([]byte, headSize)
	tailOffset := headSize
	var tailData []byte
	for i, head := range e.heads {
		if head != nil {
			copy(out[i*wordSize:(i+1)*wordSize], head)
			continue
		}
		copy(out[i*wordSize:(i+1)*wordSize], EncodeUint64(uint64(tailOffset)))
		tailData = append(tailData, e.tails[i]...)
		tailOffset += len(e.tails[i])
	}
	return append(out, tailData...)
}

// Decoder reads fixed-width words and dynamic offset/length blocks out of
// an ABI-encoded argument buffer.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps the argument buffer following the 4-byte selector.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) word() ([]byte, error) {
	if d.pos+wordSize > len(d.data) {
		return nil, ErrShortInput
	}
	w := d.data[d.pos : d.pos+wordSize]
	d.pos += wordSize
	return w, nil
}

// Uint256 reads the next static word as a big.Int.
func (d *Decoder) Uint256() (*big.Int, error) {
	w, err := d.word()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// Uint64 reads the next static word as a uint64 (low 8 bytes).
func (d *Decoder) Uint64() (uint64, error) {
	w, err := d.word()
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(w[wordSize-8:]), nil
}

// Bool reads the next static word as a bool.
func (d *Decoder) Bool() (bool, error) {
	w, err := d.word()
	if err != nil {
		return false, err
	}
	for _, b := range w {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Address reads the next static word as a 20-byte address.
func (d *Decoder) Address() (types.Address, error) {
	w, err := d.word()
	if err != nil {
		return types.Address{}, err
	}
	return types.BytesToAddress(w[wordSize-types.AddressLength:]), nil
}

// Bytes32 reads the next static word as a raw 32-byte value.
func (d *Decoder) Bytes32() (types.Hash, error) {
	w, err := d.word()
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(w), nil
}

// DynamicBytes reads an offset word, then follows it to decode a
// length-prefixed byte string from the tail region.
func (d *Decoder) DynamicBytes() ([]byte, error) {
	offsetWord, err := d.word()
	if err != nil {
		return nil, err
	}
	offset := int(new(big.Int).SetBytes(offsetWord).Int64())
	if offset < 0 || offset+wordSize > len(d.data) {
		return nil, ErrBadOffset
	}
	length := int(new(big.Int).SetBytes(d.data[offset : offset+wordSize]).Int64())
	start := offset + wordSize
	if length < 0 || start+length > len(d.data) {
		return nil, ErrBadOffset
	}
	return d.data[start : start+length], nil
}

// String reads a dynamic string argument.
func (d *Decoder) String() (string, error) {
	b, err := d.DynamicBytes()
	return string(b), err
}
