package system

import (
	"encoding/binary"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// CreateAccount builds a CreateAccount instruction. Both accounts sign.
func CreateAccount(from, newAccount, owner types.Pubkey, lamports, space uint64) svm.Instruction {
	data := make([]byte, 4+8+8+32)
	binary.LittleEndian.PutUint32(data[0:4], InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	binary.LittleEndian.PutUint64(data[12:20], space)
	copy(data[20:52], owner[:])

	return svm.Instruction{
		ProgramID: types.SystemProgramAddr,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(from, true),
			svm.NewAccountMeta(newAccount, true),
		},
		Data: data,
	}
}

// Assign builds an Assign instruction.
func Assign(account, owner types.Pubkey) svm.Instruction {
	data := make([]byte, 4+32)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAssign)
	copy(data[4:36], owner[:])

	return svm.Instruction{
		ProgramID: types.SystemProgramAddr,
		Accounts:  []svm.AccountMeta{svm.NewAccountMeta(account, true)},
		Data:      data,
	}
}

// Transfer builds a Transfer instruction.
func Transfer(from, to types.Pubkey, lamports uint64) svm.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return svm.Instruction{
		ProgramID: types.SystemProgramAddr,
		Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(from, true),
			svm.NewAccountMeta(to, false),
		},
		Data: data,
	}
}

// Allocate builds an Allocate instruction.
func Allocate(account types.Pubkey, space uint64) svm.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:12], space)

	return svm.Instruction{
		ProgramID: types.SystemProgramAddr,
		Accounts:  []svm.AccountMeta{svm.NewAccountMeta(account, true)},
		Data:      data,
	}
}
