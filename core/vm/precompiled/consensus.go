package precompiled

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/meshchain/execcore/core/abi"
	"github.com/meshchain/execcore/core/state"
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// SysConsensusTable is SYS_CONSENSUS(node_id -> type, weight,
// enable_block_number), per spec.md §6.
const SysConsensusTable = "SYS_CONSENSUS"

const (
	nodeTypeSealer   = "sealer"
	nodeTypeObserver = "observer"
)

// nodeIDHexLength is the fixed length of a sealer's node ID, per spec.md
// §4.5: 128 hex characters (a 64-byte public key).
const nodeIDHexLength = 128

var (
	addSealerSelector   = abi.Selector("addSealer(string,uint256)")
	addObserverSelector = abi.Selector("addObserver(string)")
	removeSelector2     = abi.Selector("remove(string)")
	setWeightSelector   = abi.Selector("setWeight(string,uint256)")
)

// isValidNodeID reports whether nodeID is exactly 128 hex characters.
func isValidNodeID(nodeID string) bool {
	if len(nodeID) != nodeIDHexLength {
		return false
	}
	_, err := hex.DecodeString(nodeID)
	return err == nil
}

// Consensus implements the 0x1003 precompile: sealer/observer node-list
// management, per spec.md §4.5. The last remaining sealer can never be
// demoted or removed (spec.md §8 scenario 2), which would otherwise halt
// consensus outright.
type Consensus struct{}

var _ vm.Precompiled = (*Consensus)(nil)

func (p *Consensus) Name() string { return "Consensus" }

func (p *Consensus) Call(bc *vm.BlockContext, layer *state.StorageLayer, data []byte, origin, sender types.Address) (uint64, []byte, error) {
	sel, rest, err := abi.DecodeSelector(data)
	if err != nil {
		return 0, nil, err
	}
	gas := &pricer{}
	dec := abi.NewDecoder(rest)

	switch sel {
	case addSealerSelector:
		nodeID, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		weight, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		if !isValidNodeID(nodeID) {
			return gas.total, encodeInt256(CodeInvalidNodeID), nil
		}
		if weight.Sign() <= 0 {
			return gas.total, encodeInt256(CodeInvalidWeight), nil
		}
		code := p.setNode(bc, layer, gas, nodeID, nodeTypeSealer, weight.String())
		return gas.total, encodeInt256(code), nil

	case addObserverSelector:
		nodeID, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := p.setNode(bc, layer, gas, nodeID, nodeTypeObserver, "0")
		return gas.total, encodeInt256(code), nil

	case removeSelector2:
		nodeID, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		code := p.removeNode(bc, layer, gas, nodeID)
		return gas.total, encodeInt256(code), nil

	case setWeightSelector:
		nodeID, err := dec.String()
		if err != nil {
			return 0, nil, err
		}
		weight, err := dec.Uint256()
		if err != nil {
			return 0, nil, err
		}
		code := p.setWeight(layer, gas, nodeID, weight)
		return gas.total, encodeInt256(code), nil

	default:
		return gas.total, encodeInt256(CodeUnknownFunction), nil
	}
}

// setWeight implements setWeight(string,uint256): the node must already
// exist and the new weight must be at least 1, per spec.md §4.5.
func (p *Consensus) setWeight(layer *state.StorageLayer, gas *pricer, nodeID string, weight *big.Int) int64 {
	if weight.Sign() <= 0 {
		return CodeInvalidWeight
	}
	tbl, ok := layer.OpenTable(SysConsensusTable)
	if !ok {
		return CodeNodeNotExist
	}
	gas.openTable()

	existing, exists, err := tbl.GetRow(nodeID)
	if err != nil || !exists {
		return CodeNodeNotExist
	}
	existing.Set("weight", weight.String())
	if err := tbl.SetRow(nodeID, existing); err != nil {
		return CodeNodeNotExist
	}
	gas.set()
	return CodeSuccess
}

func (p *Consensus) setNode(bc *vm.BlockContext, layer *state.StorageLayer, gas *pricer, nodeID, nodeType, weight string) int64 {
	tbl, err := openOrCreate(layer, SysConsensusTable, "node_id", []string{"type", "weight", "enable_block_number"})
	if err != nil {
		return CodeInvalidNodeID
	}
	gas.openTable()

	if nodeType == nodeTypeObserver {
		if existing, exists, _ := tbl.GetRow(nodeID); exists {
			if t, _ := existing.Get("type"); t == nodeTypeSealer && countSealers(tbl) <= 1 {
				return CodeLastSealer
			}
		}
	}

	entry := types.NewEntry()
	entry.Set("type", nodeType)
	entry.Set("weight", weight)
	entry.Set("enable_block_number", fmt.Sprintf("%d", bc.Header.Number+1))
	if err := tbl.SetRow(nodeID, entry); err != nil {
		return CodeInvalidNodeID
	}
	gas.set()
	return CodeSuccess
}

func (p *Consensus) removeNode(bc *vm.BlockContext, layer *state.StorageLayer, gas *pricer, nodeID string) int64 {
	tbl, ok := layer.OpenTable(SysConsensusTable)
	if !ok {
		return CodeNodeNotExist
	}
	gas.openTable()

	existing, exists, err := tbl.GetRow(nodeID)
	if err != nil || !exists {
		return CodeNodeNotExist
	}
	if t, _ := existing.Get("type"); t == nodeTypeSealer && countSealers(tbl) <= 1 {
		return CodeLastSealer
	}
	if err := tbl.RemoveRow(nodeID); err != nil {
		return CodeNodeNotExist
	}
	gas.remove()
	return CodeSuccess
}

func countSealers(tbl *state.Table) int {
	keys, err := tbl.GetPrimaryKeys(func(e *types.Entry) bool {
		t, _ := e.Get("type")
		return t == nodeTypeSealer
	})
	if err != nil {
		return 0
	}
	return len(keys)
}
