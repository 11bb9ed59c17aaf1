package main

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"

	"github.com/meshchain/execcore/core/types"
	"github.com/meshchain/execcore/core/vm"
	"github.com/meshchain/execcore/executor"
	"github.com/meshchain/execcore/vmbackend"
)

// gethVMFactory builds an executor.VMFactory backed by the real
// go-ethereum EVM, grounded on vmbackend.NewGethExecutor/EthereumPrecompiles
// (vmbackend/executor.go) the same way the teacher's geth.GethBlockProcessor
// resolves its rule set once per block header.
func gethVMFactory(networkID uint64) executor.VMFactory {
	chainConfig := &params.ChainConfig{ChainID: new(big.Int).SetUint64(networkID)}
	return func(header vm.BlockHeader) (vm.VmExecutor, func(types.Address, []byte) ([]byte, bool)) {
		rules := chainConfig.Rules(new(big.Int).SetUint64(header.Number), true, header.Timestamp)
		return vmbackend.NewGethExecutor(chainConfig, header), vmbackend.EthereumPrecompiles(rules)
	}
}
