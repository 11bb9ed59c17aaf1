package precompiled

import (
	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
)

// Constant precompiled addresses, per spec.md §4.5.
var (
	AddrSystemConfig    = types.HexToAddress("0x0000000000000000000000000000000000001000")
	AddrTableFactory    = types.HexToAddress("0x0000000000000000000000000000000000001001")
	AddrCRUD            = types.HexToAddress("0x0000000000000000000000000000000000001002")
	AddrConsensus       = types.HexToAddress("0x0000000000000000000000000000000000001003")
	AddrCNS             = types.HexToAddress("0x0000000000000000000000000000000000001004")
	AddrContractAuth    = types.HexToAddress("0x0000000000000000000000000000000000001005")
	AddrParallelConfig  = types.HexToAddress("0x0000000000000000000000000000000000001006")
	AddrPermission      = types.HexToAddress("0x0000000000000000000000000000000000001007")
	AddrFileSystem      = types.HexToAddress("0x0000000000000000000000000000000000001008")
	AddrKVTableFactory  = types.HexToAddress("0x0000000000000000000000000000000000001009")
	AddrDeployWasm      = types.HexToAddress("0x000000000000000000000000000000000000100a")
	AddrCrypto          = types.HexToAddress("0x000000000000000000000000000000000000100b")
)

// RegisterAll wires the full system-contract catalogue spec.md §4.5
// describes onto a BlockContext at their well-known constant addresses.
// Dynamic per-table precompiles (liveTable, KVTable) are registered
// lazily by TableFactory/KVTableFactory's openTable.
func RegisterAll(bc *vm.BlockContext) {
	bc.RegisterConstantPrecompiled(AddrSystemConfig, &SystemConfig{})
	bc.RegisterConstantPrecompiled(AddrTableFactory, &TableFactory{})
	bc.RegisterConstantPrecompiled(AddrCRUD, &CRUD{})
	bc.RegisterConstantPrecompiled(AddrConsensus, &Consensus{})
	bc.RegisterConstantPrecompiled(AddrCNS, &CNS{})
	bc.RegisterConstantPrecompiled(AddrContractAuth, &ContractAuth{})
	bc.RegisterConstantPrecompiled(AddrParallelConfig, &ParallelConfig{})
	bc.RegisterConstantPrecompiled(AddrPermission, &Permission{})
	bc.RegisterConstantPrecompiled(AddrFileSystem, &FileSystem{})
	bc.RegisterConstantPrecompiled(AddrKVTableFactory, &KVTableFactory{})
	bc.RegisterConstantPrecompiled(AddrDeployWasm, &DeployWasm{})
	bc.RegisterConstantPrecompiled(AddrCrypto, &Crypto{})
}
