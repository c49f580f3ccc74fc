// Package types provides well-known program addresses.
package types

// Native program addresses.
var (
	// SystemProgramAddr is the System Program address.
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// ComputeBudgetProgramAddr is the Compute Budget Program address.
	ComputeBudgetProgramAddr = MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111")

	// BPFLoaderUpgradeableAddr is the BPF Loader Upgradeable address.
	BPFLoaderUpgradeableAddr = MustPubkeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

	// NativeLoaderAddr is the Native Loader address. Builtin programs are
	// owned by it.
	NativeLoaderAddr = MustPubkeyFromBase58("NativeLoader1111111111111111111111111111111")
)

// Sysvar addresses.
var (
	// SysvarRentAddr is the Rent sysvar address.
	SysvarRentAddr = MustPubkeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// PlaygroundProgramAddr is the deployed address of the playground program.
var PlaygroundProgramAddr = MustPubkeyFromBase58("EwPUHhorTGBKyNu7vFezfFCFej5GgNmXmABzs4VKqPEo")

// IsBuiltinProgram returns true for programs the runtime executes natively
// without a loader-owned program account.
func IsBuiltinProgram(p Pubkey) bool {
	switch p {
	case SystemProgramAddr,
		ComputeBudgetProgramAddr,
		BPFLoaderUpgradeableAddr,
		NativeLoaderAddr:
		return true
	default:
		return false
	}
}
