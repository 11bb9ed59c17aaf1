package abi

import (
	"math/big"
	"testing"

	"github.com/meshchain/execcore/core/types"
)

func TestSelectorMatchesKnownSignature(t *testing.T) {
	sel := Selector("setValueByKey(string,string)")
	if sel == ([4]byte{}) {
		t.Fatal("expected a non-zero selector")
	}
	sel2 := Selector("setValueByKey(string,string)")
	if sel != sel2 {
		t.Fatal("selector must be deterministic for the same signature")
	}
}

func TestEncodeDecodeStaticArgsRoundtrip(t *testing.T) {
	var enc Encoder
	enc.AddStatic(EncodeUint64(42))
	enc.AddStatic(EncodeAddress(types.HexToAddress("0x1234000000000000000000000000000000abcd")))
	enc.AddStatic(EncodeBool(true))
	buf := enc.Bytes()

	dec := NewDecoder(buf)
	n, err := dec.Uint64()
	if err != nil || n != 42 {
		t.Fatalf("uint64: got %d, err=%v", n, err)
	}
	addr, err := dec.Address()
	if err != nil || addr != types.HexToAddress("0x1234000000000000000000000000000000abcd") {
		t.Fatalf("address mismatch: %v, err=%v", addr, err)
	}
	b, err := dec.Bool()
	if err != nil || !b {
		t.Fatalf("bool: got %v, err=%v", b, err)
	}
}

func TestEncodeDecodeDynamicStringsRoundtrip(t *testing.T) {
	var enc Encoder
	enc.AddDynamic(EncodeString("tx_gas_limit"))
	enc.AddDynamic(EncodeString("1000000"))
	buf := enc.Bytes()

	dec := NewDecoder(buf)
	key, err := dec.String()
	if err != nil || key != "tx_gas_limit" {
		t.Fatalf("key: got %q, err=%v", key, err)
	}
	val, err := dec.String()
	if err != nil || val != "1000000" {
		t.Fatalf("val: got %q, err=%v", val, err)
	}
}

func TestEncodeDecodeMixedStaticAndDynamic(t *testing.T) {
	var enc Encoder
	enc.AddDynamic(EncodeString("Foo"))
	enc.AddStatic(EncodeUint256(big.NewInt(7)))
	enc.AddDynamic(EncodeString("1.0"))
	buf := enc.Bytes()

	dec := NewDecoder(buf)
	name, err := dec.String()
	if err != nil || name != "Foo" {
		t.Fatalf("name: got %q, err=%v", name, err)
	}
	n, err := dec.Uint256()
	if err != nil || n.Int64() != 7 {
		t.Fatalf("n: got %v, err=%v", n, err)
	}
	version, err := dec.String()
	if err != nil || version != "1.0" {
		t.Fatalf("version: got %q, err=%v", version, err)
	}
}

func TestDecodeSelectorSplitsInput(t *testing.T) {
	sel := Selector("getValueByKey(string)")
	var enc Encoder
	enc.AddDynamic(EncodeString("tx_gas_limit"))
	full := append(sel[:], enc.Bytes()...)

	gotSel, rest, err := DecodeSelector(full)
	if err != nil {
		t.Fatalf("decode selector: %v", err)
	}
	if gotSel != sel {
		t.Fatal("selector mismatch")
	}
	dec := NewDecoder(rest)
	key, err := dec.String()
	if err != nil || key != "tx_gas_limit" {
		t.Fatalf("key: got %q, err=%v", key, err)
	}
}

func TestDecodeSelectorTooShort(t *testing.T) {
	if _, _, err := DecodeSelector([]byte{1, 2}); err != ErrSelectorShort {
		t.Fatalf("expected ErrSelectorShort, got %v", err)
	}
}
