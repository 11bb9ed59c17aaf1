package precompiled

import (
	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/crypto"
)

var (
	sm3Selector          = abi.Selector("sm3(bytes)")
	keccak256HashSelector = abi.Selector("keccak256Hash(bytes)")
	sm2VerifySelector    = abi.Selector("sm2Verify(bytes,bytes,uint256,uint256,uint256,uint256)")
)

// Crypto implements the 0x100b precompile: hashing and signature
// verification primitives callable from contract code without the
// originating VM needing native opcode support for them, per spec.md
// §4.5.
type Crypto struct{}

var _ vm.Precompiled = (*Crypto)(nil)

func (p *Crypto) Name() string { return "Crypto" }

func (p *Crypto) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case sm3Selector:
		msg, err := dec.DynamicBytes()
		if err != nil {
			return 0, nil, err
		}
		gas.bytes(len(msg))
		var enc abi.Encoder
		enc.AddStatic(crypto.SM3(msg))
		return gas.total, enc.Bytes(), nil

	case keccak256HashSelector:
		msg, err := dec.DynamicBytes()
		if err != nil {
			return 0, nil, err
		}
		gas.bytes(len(msg))
		var enc abi.Encoder
		enc.AddStatic(crypto.Keccak256(msg))
		return gas.total, enc.Bytes(), nil

	case sm2VerifySelector:
		msg, err := dec.DynamicBytes()
		if err != nil {
			return 0, nil, err
		}
		id, err := dec.DynamicBytes()
		if err != nil {
			return 0, nil, err
		}
		pubX, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		pubY, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		r, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		s, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		gas.bytes(len(msg))
		ok := crypto.SM2Verify(id, msg, pubX, pubY, r, s)
		var enc abi.Encoder
		enc.AddStatic(abi.EncodeBool(ok))
		return gas.total, enc.Bytes(), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}
