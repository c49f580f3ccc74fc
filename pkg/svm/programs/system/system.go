// Package system implements the Solana System Program.
//
// Only the instructions the playground runtime needs are supported:
// CreateAccount, Assign, Transfer and Allocate. Each instruction starts with
// a little-endian u32 discriminant followed by bincode arguments.
package system

import (
	"encoding/binary"
	"errors"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// Instruction discriminants.
const (
	InstructionCreateAccount = iota
	InstructionAssign
	InstructionTransfer
	InstructionCreateAccountWithSeed
	InstructionAdvanceNonceAccount
	InstructionWithdrawNonceAccount
	InstructionInitializeNonceAccount
	InstructionAuthorizeNonceAccount
	InstructionAllocate
)

// System program errors, numbered like SystemError.
var (
	ErrAccountAlreadyInUse        = svm.NewInstructionError(0, "AccountAlreadyInUse")
	ErrResultWithNegativeLamports = svm.NewInstructionError(1, "ResultWithNegativeLamports")
	ErrInvalidAccountDataLength   = svm.NewInstructionError(3, "InvalidAccountDataLength")
)

// Runtime errors.
var (
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrNotEnoughAccountKeys     = errors.New("not enough account keys")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrInvalidAccountOwner      = errors.New("invalid account owner")
	ErrTransferFromDataAccount  = errors.New("from must not carry data")
)

// Program is the native System Program.
type Program struct{}

// New creates the System Program.
func New() *Program {
	return &Program{}
}

// ID implements svm.Program.
func (p *Program) ID() types.Pubkey {
	return types.SystemProgramAddr
}

// Process executes a System Program instruction.
func (p *Program) Process(ctx svm.InvokeContext, data []byte) error {
	if err := ctx.ConsumeCU(svm.CUSystemProgramDefault); err != nil {
		return err
	}
	if len(data) < 4 {
		return ErrInvalidInstructionData
	}

	instruction := binary.LittleEndian.Uint32(data[:4])

	switch instruction {
	case InstructionCreateAccount:
		return p.processCreateAccount(ctx, data[4:])
	case InstructionAssign:
		return p.processAssign(ctx, data[4:])
	case InstructionTransfer:
		return p.processTransfer(ctx, data[4:])
	case InstructionAllocate:
		return p.processAllocate(ctx, data[4:])
	default:
		return ErrInvalidInstructionData
	}
}

// processCreateAccount funds, allocates and assigns a fresh account.
func (p *Program) processCreateAccount(ctx svm.InvokeContext, data []byte) error {
	// lamports (8) + space (8) + owner (32)
	if len(data) < 48 {
		return ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	space := binary.LittleEndian.Uint64(data[8:16])
	owner, err := types.PubkeyFromBytes(data[16:48])
	if err != nil {
		return ErrInvalidInstructionData
	}

	funder, newAccount, err := twoAccounts(ctx)
	if err != nil {
		return err
	}

	// The target must be unused before the funder is charged.
	if newAccount.Lamports > 0 {
		svm.Logf(ctx, "Create Account: account %s already in use", newAccount.Key)
		return ErrAccountAlreadyInUse
	}
	if err := allocate(ctx, newAccount, space); err != nil {
		return err
	}
	if err := assign(ctx, newAccount, owner); err != nil {
		return err
	}
	return transfer(ctx, funder, newAccount, lamports)
}

// processAssign changes the owner of an account.
func (p *Program) processAssign(ctx svm.InvokeContext, data []byte) error {
	if len(data) < 32 {
		return ErrInvalidInstructionData
	}
	owner, err := types.PubkeyFromBytes(data[0:32])
	if err != nil {
		return ErrInvalidInstructionData
	}

	account, err := ctx.GetAccount(0)
	if err != nil {
		return ErrNotEnoughAccountKeys
	}
	return assign(ctx, account, owner)
}

// processTransfer moves lamports out of a system-owned account.
func (p *Program) processTransfer(ctx svm.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])

	from, to, err := twoAccounts(ctx)
	if err != nil {
		return err
	}
	return transfer(ctx, from, to, lamports)
}

// processAllocate sizes the data of an empty account.
func (p *Program) processAllocate(ctx svm.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(data[0:8])

	account, err := ctx.GetAccount(0)
	if err != nil {
		return ErrNotEnoughAccountKeys
	}
	return allocate(ctx, account, space)
}

func twoAccounts(ctx svm.InvokeContext) (*svm.AccountInfo, *svm.AccountInfo, error) {
	first, err := ctx.GetAccount(0)
	if err != nil {
		return nil, nil, ErrNotEnoughAccountKeys
	}
	second, err := ctx.GetAccount(1)
	if err != nil {
		return nil, nil, ErrNotEnoughAccountKeys
	}
	return first, second, nil
}

func allocate(ctx svm.InvokeContext, account *svm.AccountInfo, space uint64) error {
	if !account.IsSigner {
		svm.Logf(ctx, "Allocate: 'to' account %s must sign", account.Key)
		return ErrMissingRequiredSignature
	}
	if len(account.Data) > 0 || account.Owner != types.SystemProgramAddr {
		svm.Logf(ctx, "Allocate: account %s already in use", account.Key)
		return ErrAccountAlreadyInUse
	}
	if space > accounts.MaxAccountDataSize {
		svm.Logf(ctx, "Allocate: requested %d, max allowed %d", space, accounts.MaxAccountDataSize)
		return ErrInvalidAccountDataLength
	}

	account.Data = make([]byte, space)
	return nil
}

func assign(ctx svm.InvokeContext, account *svm.AccountInfo, owner types.Pubkey) error {
	if account.Owner == owner {
		return nil
	}
	if !account.IsSigner {
		svm.Logf(ctx, "Assign: account %s must sign", account.Key)
		return ErrMissingRequiredSignature
	}
	if account.Owner != types.SystemProgramAddr {
		return ErrInvalidAccountOwner
	}

	account.Owner = owner
	return nil
}

func transfer(ctx svm.InvokeContext, from, to *svm.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		svm.Logf(ctx, "Transfer: `from` account %s must sign", from.Key)
		return ErrMissingRequiredSignature
	}
	if len(from.Data) > 0 {
		return ErrTransferFromDataAccount
	}
	if from.Owner != types.SystemProgramAddr {
		return ErrInvalidAccountOwner
	}
	if from.Lamports < lamports {
		svm.Logf(ctx, "Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrResultWithNegativeLamports
	}
	if to.Lamports > ^uint64(0)-lamports {
		return svm.ErrUnbalancedInstruction
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
