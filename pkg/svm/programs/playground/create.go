package playground

import (
	"encoding/binary"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
	"github.com/fortiblox/stratus-playground/pkg/svm/pda"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/system"
)

// CounterSeed prefixes the seeds of every counter address.
var CounterSeed = []byte("counter")

// Accounts of CreateAccount1 and CreateAccount2.
const (
	createPayerIndex         = 0
	createCounterIndex       = 1
	createSystemProgramIndex = 2
	createAccounts           = 3
)

// CounterSeeds returns the seeds of the counter address for key.
func CounterSeeds(key uint64) [][]byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, key)
	return [][]byte{CounterSeed, k}
}

// CounterAddress derives the counter address for key under programID.
func CounterAddress(programID types.Pubkey, key uint64) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress(CounterSeeds(key), programID)
}

func (p *Program) createCounter(ctx svm.InvokeContext, key uint64) error {
	if ctx.NumAccounts() < createAccounts {
		return ErrAccountNotEnoughKeys
	}

	payer, err := ctx.GetAccount(createPayerIndex)
	if err != nil {
		return err
	}
	counter, err := ctx.GetAccount(createCounterIndex)
	if err != nil {
		return err
	}
	systemProgram, err := ctx.GetAccount(createSystemProgramIndex)
	if err != nil {
		return err
	}

	if !payer.IsSigner {
		return ErrAccountNotSigner
	}
	if !payer.IsWritable || !counter.IsWritable {
		return ErrConstraintMut
	}

	if err := ctx.ConsumeCU(svm.CUFindProgramAddress); err != nil {
		return err
	}
	expected, bump, err := CounterAddress(ctx.ProgramID(), key)
	if err != nil {
		return err
	}
	if counter.Key != expected {
		svm.Logf(ctx, "counter: expected %s, got %s", expected, counter.Key)
		return ErrConstraintSeeds
	}
	if systemProgram.Key != types.SystemProgramAddr {
		return ErrInvalidProgramID
	}

	signer := append(CounterSeeds(key), []byte{bump})
	if err := p.initAccount(ctx, payer, counter, CounterSize, signer); err != nil {
		return err
	}

	record, err := (&Counter{Counter: key}).Marshal()
	if err != nil {
		return err
	}
	copy(counter.Data, record)
	return nil
}

// initAccount creates a program-owned account of the given size at a
// program derived address, paid for by payer.
func (p *Program) initAccount(ctx svm.InvokeContext, payer, target *svm.AccountInfo, space uint64, signer [][]byte) error {
	minimum := ctx.Rent().MinimumBalance(space)

	if target.Lamports == 0 {
		ix := system.CreateAccount(payer.Key, target.Key, ctx.ProgramID(), minimum, space)
		return ctx.InvokeSigned(ix, signer)
	}

	// Someone pre-funded the address: top it up, then allocate and assign.
	if target.Lamports < minimum {
		ix := system.Transfer(payer.Key, target.Key, minimum-target.Lamports)
		if err := ctx.InvokeSigned(ix); err != nil {
			return err
		}
	}
	if err := ctx.InvokeSigned(system.Allocate(target.Key, space), signer); err != nil {
		return err
	}
	return ctx.InvokeSigned(system.Assign(target.Key, ctx.ProgramID()), signer)
}
