// Package precompiled implements the system-contract catalogue: native
// Go implementations of the FISCO-style precompiled addresses spec.md
// §4.5 describes (SystemConfig, Consensus, CNS, TableFactory/CRUD,
// KVTableFactory/KVTable, ParallelConfig, Crypto, FileSystem, DeployWasm,
// ContractAuth, Permission). Every precompile implements vm.Precompiled
// and operates purely on the active StorageLayer — spec.md §5 notes none
// of them call back into another contract.
package precompiled

// Stable wire error codes, per spec.md §6's reserved int256 ranges.
// Success is always 0 or a positive row count.
const (
	CodeSuccess = 0

	// NoAuthorized is returned by every precompile's write path on an
	// authority-check refusal (spec.md §4.5's closing paragraph).
	NoAuthorized = -50000

	// Common: -50099..-50000
	CodeUnknownFunction = -50001
	CodeAddressInvalid  = -50002
	CodeTableNotExist   = -50003

	// Permission: -50999..-50100
	CodePermissionDenied = -50100

	// Consensus: -51099..-51000. CodeLastSealer is also returned by
	// Consensus, but its value lies in the system-config range below.
	CodeNodeNotExist  = -51001
	CodeInvalidWeight = -51002
	CodeInvalidNodeID = -51003
	CodeLastSealer    = -51101

	// System config: -51199..-51100
	CodeInvalidConfigValue = -51102

	// CNS: -51299..-51200
	CodeAddressAndVersionExist = -51200
	CodeInvalidCNSName         = -51201

	// CRUD: -51599..-51500
	CodeCRUDInvalidCondition = -51500
	CodeCRUDKeyFieldReadonly = -51501

	// Contract lifecycle: -51999..-51900
	CodeContractAddressAlreadyUsed = -51900

	// FileSystem: -53099..-53000
	CodePathExists   = -53000
	CodePathInvalid  = -53001
	CodePathNotFound = -53002
)
