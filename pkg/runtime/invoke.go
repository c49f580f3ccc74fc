package runtime

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/svm"
	"github.com/fortiblox/stratus-playground/pkg/svm/pda"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
)

// txContext holds the state of one executing transaction.
type txContext struct {
	exec    *Executor
	working map[types.Pubkey]*accounts.Account
	meter   *svm.ComputeMeter
	logs    []string
	depth   int
}

// resolveProgram finds the native program for id. Programs outside the
// builtin set must also be deployed on the ledger.
func (tc *txContext) resolveProgram(id types.Pubkey) (svm.Program, error) {
	program, ok := tc.exec.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", svm.ErrUnsupportedProgram, id)
	}
	if types.IsBuiltinProgram(id) {
		return program, nil
	}
	if !loader.IsDeployed(tc.working[id]) {
		return nil, fmt.Errorf("%w: %s", svm.ErrProgramNotExecutable, id)
	}
	return program, nil
}

// invoke runs program over views and checks the result.
func (tc *txContext) invoke(program svm.Program, views []*svm.AccountInfo, data []byte) error {
	if tc.depth > svm.CPIDepthMax {
		return svm.ErrCallDepth
	}
	tc.depth++
	defer func() { tc.depth-- }()

	id := program.ID()
	tc.logs = append(tc.logs, fmt.Sprintf("Program %s invoke [%d]", id, tc.depth))
	before := tc.meter.Consumed()

	inv := newInvocation(tc, id, views)
	err := program.Process(inv, data)
	if err == nil {
		err = inv.verify()
	}

	tc.logs = append(tc.logs, fmt.Sprintf("Program %s consumed %d of %d compute units",
		id, tc.meter.Consumed()-before, tc.meter.Limit()))
	if err != nil {
		tc.logs = append(tc.logs, fmt.Sprintf("Program %s failed: %v", id, err))
		return err
	}
	tc.logs = append(tc.logs, fmt.Sprintf("Program %s success", id))
	return nil
}

// preAccount is an account as it was when an invocation started.
type preAccount struct {
	account    *accounts.Account
	lamports   uint64
	owner      types.Pubkey
	executable bool
	data       []byte
}

func snapshot(account *accounts.Account) preAccount {
	return preAccount{
		account:    account,
		lamports:   account.Lamports,
		owner:      account.Owner,
		executable: account.Executable,
		data:       bytes.Clone(account.Data),
	}
}

// verify checks the changes made to one account by programID.
func (pre *preAccount) verify(programID types.Pubkey, writable bool) error {
	post := pre.account

	// Only the owner may assign a new owner, and only while the account is
	// writable, not executable and its data is zeroed.
	if pre.owner != post.Owner {
		if !writable || pre.executable || pre.owner != programID || !isZeroed(post.Data) {
			return svm.ErrModifiedProgramID
		}
	}

	if pre.lamports != post.Lamports {
		if !writable {
			return svm.ErrReadonlyLamportChange
		}
		if pre.executable {
			return svm.ErrExecutableModified
		}
		if post.Lamports < pre.lamports && pre.owner != programID {
			return svm.ErrExternalAccountLamportSpend
		}
	}

	if !bytes.Equal(pre.data, post.Data) {
		if !writable {
			return svm.ErrReadonlyDataModified
		}
		if pre.executable {
			return svm.ErrExecutableModified
		}
		if pre.owner != programID {
			return svm.ErrExternalAccountDataModified
		}
	}

	if pre.executable != post.Executable {
		return svm.ErrExecutableModified
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// lamportSum is a 128-bit lamport total.
type lamportSum struct {
	hi, lo uint64
}

func (s *lamportSum) add(v uint64) {
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, v, 0)
	s.hi += carry
}

// invocation implements svm.InvokeContext for one program invocation.
type invocation struct {
	tx        *txContext
	programID types.Pubkey
	views     []*svm.AccountInfo

	// Unique accounts in first-seen order with their merged privileges.
	keys     []types.Pubkey
	pre      map[types.Pubkey]*preAccount
	writable map[types.Pubkey]bool
	signer   map[types.Pubkey]bool
}

func newInvocation(tx *txContext, programID types.Pubkey, views []*svm.AccountInfo) *invocation {
	inv := &invocation{
		tx:        tx,
		programID: programID,
		views:     views,
		pre:       make(map[types.Pubkey]*preAccount, len(views)),
		writable:  make(map[types.Pubkey]bool, len(views)),
		signer:    make(map[types.Pubkey]bool, len(views)),
	}
	for _, v := range views {
		if _, ok := inv.pre[v.Key]; !ok {
			inv.keys = append(inv.keys, v.Key)
			p := snapshot(v.Account)
			inv.pre[v.Key] = &p
		}
		inv.writable[v.Key] = inv.writable[v.Key] || v.IsWritable
		inv.signer[v.Key] = inv.signer[v.Key] || v.IsSigner
	}
	return inv
}

// verify checks every account of the invocation and that no lamports were
// created or destroyed.
func (inv *invocation) verify() error {
	var before, after lamportSum
	for _, key := range inv.keys {
		pre := inv.pre[key]
		if err := pre.verify(inv.programID, inv.writable[key]); err != nil {
			return fmt.Errorf("%w: %s", err, key)
		}
		before.add(pre.lamports)
		after.add(pre.account.Lamports)
	}
	if before != after {
		return svm.ErrUnbalancedInstruction
	}
	return nil
}

// refresh makes the current account state the new baseline.
func (inv *invocation) refresh() {
	for _, key := range inv.keys {
		p := snapshot(inv.pre[key].account)
		inv.pre[key] = &p
	}
}

// ProgramID implements svm.InvokeContext.
func (inv *invocation) ProgramID() types.Pubkey {
	return inv.programID
}

// NumAccounts implements svm.InvokeContext.
func (inv *invocation) NumAccounts() int {
	return len(inv.views)
}

// GetAccount implements svm.InvokeContext.
func (inv *invocation) GetAccount(index int) (*svm.AccountInfo, error) {
	if index < 0 || index >= len(inv.views) {
		return nil, fmt.Errorf("%w: instruction account %d", svm.ErrAccountNotFound, index)
	}
	return inv.views[index], nil
}

// Rent implements svm.InvokeContext.
func (inv *invocation) Rent() svm.Rent {
	return inv.tx.exec.config.Rent
}

// ConsumeCU implements svm.InvokeContext.
func (inv *invocation) ConsumeCU(cost uint64) error {
	return inv.tx.meter.Consume(cost)
}

// Log implements svm.InvokeContext.
func (inv *invocation) Log(msg string) {
	inv.tx.logs = append(inv.tx.logs, "Program log: "+msg)
}

// InvokeSigned implements svm.InvokeContext.
func (inv *invocation) InvokeSigned(ix svm.Instruction, signerSeeds ...[][]byte) error {
	if err := inv.tx.meter.Consume(svm.CUInvokeBase); err != nil {
		return err
	}

	signers := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		if err := inv.tx.meter.Consume(svm.CUCreateProgramAddress); err != nil {
			return err
		}
		addr, err := pda.CreateProgramAddress(seeds, inv.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		signers[addr] = true
	}

	if _, ok := inv.pre[ix.ProgramID]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidProgramForCPI, ix.ProgramID)
	}
	program, err := inv.tx.resolveProgram(ix.ProgramID)
	if err != nil {
		return err
	}

	views := make([]*svm.AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		pre, ok := inv.pre[meta.Pubkey]
		if !ok {
			return fmt.Errorf("%w: %s", svm.ErrAccountNotFound, meta.Pubkey)
		}
		if meta.IsWritable && !inv.writable[meta.Pubkey] {
			return fmt.Errorf("%w: %s writable", svm.ErrPrivilegeEscalation, meta.Pubkey)
		}
		if meta.IsSigner && !inv.signer[meta.Pubkey] && !signers[meta.Pubkey] {
			return fmt.Errorf("%w: %s signer", svm.ErrPrivilegeEscalation, meta.Pubkey)
		}
		views = append(views, &svm.AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    pre.account,
		})
	}

	// The caller's own changes are checked before the callee runs; the
	// callee's are checked when it returns.
	if err := inv.verify(); err != nil {
		return err
	}
	if err := inv.tx.invoke(program, views, ix.Data); err != nil {
		return err
	}
	inv.refresh()
	return nil
}
