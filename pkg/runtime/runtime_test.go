package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/journal"
	"github.com/fortiblox/stratus-playground/pkg/svm"
	"github.com/fortiblox/stratus-playground/pkg/svm/pda"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/computebudget"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/system"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func pubkey(k ed25519.PrivateKey) types.Pubkey {
	return types.PubkeyFromPublicKey(k.Public().(ed25519.PublicKey))
}

func signed(t *testing.T, e *Executor, signers []ed25519.PrivateKey, ixs ...svm.Instruction) *Transaction {
	t.Helper()
	tx := NewTransaction(pubkey(signers[0]), ixs...)
	tx.SetBlockhash(e.RecentBlockhash())
	require.NoError(t, tx.Sign(signers...))
	return tx
}

func balance(t *testing.T, db accounts.DB, key types.Pubkey) uint64 {
	t.Helper()
	account, err := db.GetAccount(key)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return 0
	}
	require.NoError(t, err)
	return account.Lamports
}

// testProgram runs fn as its instruction handler.
type testProgram struct {
	id types.Pubkey
	fn func(ctx svm.InvokeContext) error
}

func (p *testProgram) ID() types.Pubkey { return p.id }

func (p *testProgram) Process(ctx svm.InvokeContext, _ []byte) error {
	return p.fn(ctx)
}

func deployTestProgram(t *testing.T, e *Executor, fn func(ctx svm.InvokeContext) error) types.Pubkey {
	t.Helper()
	id := pubkey(newKey(t))
	_, err := loader.Deploy(e.Accounts(), e.Rent(), id, nil, nil, 0)
	require.NoError(t, err)
	e.Register(&testProgram{id: id, fn: fn})
	return id
}

func TestNewTransaction_AccountOrdering(t *testing.T) {
	payer := pubkey(newKey(t))
	signer := pubkey(newKey(t))
	writable := pubkey(newKey(t))
	readonly := pubkey(newKey(t))
	program := pubkey(newKey(t))

	tx := NewTransaction(payer, svm.Instruction{
		ProgramID: program,
		Accounts: []svm.AccountMeta{
			svm.NewReadonlyAccountMeta(readonly, false),
			svm.NewAccountMeta(writable, false),
			svm.NewReadonlyAccountMeta(signer, true),
			svm.NewAccountMeta(payer, false),
		},
		Data: []byte{1, 2},
	})

	msg := tx.Message
	assert.Equal(t, []types.Pubkey{payer, signer, writable, readonly, program}, msg.AccountKeys)
	assert.Equal(t, Header{
		NumRequiredSignatures:       2,
		NumReadonlySignedAccounts:   1,
		NumReadonlyUnsignedAccounts: 2,
	}, msg.Header)
	assert.Len(t, tx.Signatures, 2)

	require.Len(t, msg.Instructions, 1)
	assert.Equal(t, uint8(4), msg.Instructions[0].ProgramIDIndex)
	assert.Equal(t, []uint8{3, 2, 1, 0}, msg.Instructions[0].AccountIndexes)

	assert.True(t, msg.IsWritable(0))
	assert.False(t, msg.IsWritable(1))
	assert.True(t, msg.IsWritable(2))
	assert.False(t, msg.IsWritable(3))
	assert.True(t, msg.IsSigner(1))
	assert.False(t, msg.IsSigner(2))
}

func TestSign(t *testing.T) {
	payer := newKey(t)
	other := newKey(t)

	tx := NewTransaction(pubkey(payer), system.Transfer(pubkey(payer), pubkey(other), 1))
	require.NoError(t, tx.Sign(payer))
	require.NoError(t, tx.VerifySignatures())
	assert.Equal(t, tx.Signatures[0], tx.Signature())

	err := tx.Sign(newKey(t))
	assert.ErrorIs(t, err, ErrSignerNotInAccounts)

	err = tx.Sign(other)
	assert.ErrorIs(t, err, ErrSignerNotRequired)

	tx.Message.Instructions[0].Data[4] = 2
	assert.ErrorIs(t, tx.VerifySignatures(), ErrSignatureFailure)
}

func TestMessageMarshal(t *testing.T) {
	payer := newKey(t)
	tx := NewTransaction(pubkey(payer), system.Transfer(pubkey(payer), pubkey(newKey(t)), 5))

	data := tx.Message.Marshal()
	// header (3) + count (1) + 3 keys + blockhash + count (1) +
	// program index (1) + count (1) + 2 indexes + len (1) + 12 bytes data
	assert.Len(t, data, 3+1+3*32+32+1+1+1+2+1+12)
	assert.Equal(t, []byte{1, 0, 1, 3}, data[:4])

	var b bytes.Buffer
	encodeLen(&b, 300)
	assert.Equal(t, []byte{0xac, 0x02}, b.Bytes())
}

func TestExecute_Transfer(t *testing.T) {
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	to := pubkey(newKey(t))
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	receipt, err := e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
		system.Transfer(pubkey(payer), to, 4_000)))
	require.NoError(t, err)

	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(1), receipt.Slot)
	assert.Equal(t, uint64(1), e.Slot())
	assert.Equal(t, []uint64{10_000, 0, 0}, receipt.PreBalances)
	assert.Equal(t, []uint64{6_000, 4_000, 0}, receipt.PostBalances)
	assert.Equal(t, svm.CUSystemProgramDefault, receipt.ComputeUnitsConsumed)
	assert.Contains(t, receipt.Logs, "Program 11111111111111111111111111111111 success")

	assert.Equal(t, uint64(6_000), balance(t, db, pubkey(payer)))
	assert.Equal(t, uint64(4_000), balance(t, db, to))
}

func TestExecute_Atomic(t *testing.T) {
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	to := pubkey(newKey(t))
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	receipt, err := e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
		system.Transfer(pubkey(payer), to, 4_000),
		system.Transfer(pubkey(payer), to, 9_000),
	))
	require.Error(t, err)

	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, 1, txErr.InstructionIndex)
	assert.ErrorIs(t, err, system.ErrResultWithNegativeLamports)

	assert.Equal(t, 1, receipt.FailedInstruction)
	assert.Equal(t, receipt.PreBalances, receipt.PostBalances)
	assert.Equal(t, uint64(10_000), balance(t, db, pubkey(payer)))
	assert.Equal(t, uint64(0), balance(t, db, to))
	assert.Equal(t, uint64(1), e.Slot())
}

func TestExecute_Rejections(t *testing.T) {
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))
	transfer := system.Transfer(pubkey(payer), pubkey(newKey(t)), 1)

	t.Run("bad signature", func(t *testing.T) {
		tx := signed(t, e, []ed25519.PrivateKey{payer}, transfer)
		tx.Signatures[0][0] ^= 0xff
		_, err := e.Execute(context.Background(), tx)
		assert.ErrorIs(t, err, ErrSignatureFailure)
	})

	t.Run("unknown blockhash", func(t *testing.T) {
		tx := NewTransaction(pubkey(payer), transfer)
		tx.SetBlockhash(types.Hash{1})
		require.NoError(t, tx.Sign(payer))
		_, err := e.Execute(context.Background(), tx)
		assert.ErrorIs(t, err, ErrBlockhashNotFound)
	})

	t.Run("replay", func(t *testing.T) {
		tx := signed(t, e, []ed25519.PrivateKey{payer}, transfer)
		_, err := e.Execute(context.Background(), tx)
		require.NoError(t, err)
		_, err = e.Execute(context.Background(), tx)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("missing fee payer", func(t *testing.T) {
		ghost := newKey(t)
		tx := signed(t, e, []ed25519.PrivateKey{ghost}, system.Transfer(pubkey(ghost), pubkey(payer), 0))
		_, err := e.Execute(context.Background(), tx)
		assert.ErrorIs(t, err, ErrFeePayerNotFound)
	})

	t.Run("unsupported program", func(t *testing.T) {
		tx := signed(t, e, []ed25519.PrivateKey{payer}, svm.Instruction{ProgramID: types.BPFLoaderUpgradeableAddr})
		_, err := e.Execute(context.Background(), tx)
		assert.ErrorIs(t, err, svm.ErrUnsupportedProgram)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Execute(ctx, signed(t, e, []ed25519.PrivateKey{payer}, transfer))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExecute_HostRules(t *testing.T) {
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	victim := pubkey(newKey(t))
	require.NoError(t, e.Airdrop(victim, 500))

	for _, tc := range []struct {
		name     string
		writable bool
		fn       func(ctx svm.InvokeContext) error
		expected error
	}{
		{
			name:     "mint lamports",
			writable: true,
			fn: func(ctx svm.InvokeContext) error {
				a, _ := ctx.GetAccount(0)
				a.Lamports += 1
				return nil
			},
			expected: svm.ErrUnbalancedInstruction,
		},
		{
			name:     "spend foreign account",
			writable: true,
			fn: func(ctx svm.InvokeContext) error {
				a, _ := ctx.GetAccount(0)
				a.Lamports = 0
				p, _ := ctx.GetAccount(1)
				p.Lamports += 500
				return nil
			},
			expected: svm.ErrExternalAccountLamportSpend,
		},
		{
			name:     "write foreign data",
			writable: true,
			fn: func(ctx svm.InvokeContext) error {
				a, _ := ctx.GetAccount(0)
				a.Data = []byte{1}
				return nil
			},
			expected: svm.ErrExternalAccountDataModified,
		},
		{
			name:     "steal ownership",
			writable: true,
			fn: func(ctx svm.InvokeContext) error {
				a, _ := ctx.GetAccount(0)
				a.Owner = ctx.ProgramID()
				return nil
			},
			expected: svm.ErrModifiedProgramID,
		},
		{
			name: "credit read-only account",
			fn: func(ctx svm.InvokeContext) error {
				a, _ := ctx.GetAccount(0)
				a.Lamports += 1
				return nil
			},
			expected: svm.ErrReadonlyLamportChange,
		},
		{
			name: "forge signer",
			fn: func(ctx svm.InvokeContext) error {
				return ctx.InvokeSigned(system.Transfer(victim, pubkey(payer), 500))
			},
			expected: svm.ErrPrivilegeEscalation,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			id := deployTestProgram(t, e, tc.fn)
			metas := []svm.AccountMeta{
				{Pubkey: victim, IsWritable: tc.writable},
				svm.NewAccountMeta(pubkey(payer), true),
				svm.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
			}
			_, err := e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
				svm.Instruction{ProgramID: id, Accounts: metas}))
			assert.ErrorIs(t, err, tc.expected)
			assert.Equal(t, uint64(500), balance(t, db, victim))
			assert.Equal(t, uint64(10_000), balance(t, db, pubkey(payer)))
		})
	}
}

func TestExecute_SignedInvoke(t *testing.T) {
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	var vault types.Pubkey
	var bump uint8
	id := deployTestProgram(t, e, func(ctx svm.InvokeContext) error {
		return ctx.InvokeSigned(system.Transfer(vault, pubkey(payer), 300), [][]byte{[]byte("vault"), {bump}})
	})

	var err error
	vault, bump, err = pda.FindProgramAddress([][]byte{[]byte("vault")}, id)
	require.NoError(t, err)
	require.NoError(t, e.Airdrop(vault, 1_000))

	receipt, err := e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
		svm.Instruction{ProgramID: id, Accounts: []svm.AccountMeta{
			svm.NewAccountMeta(vault, false),
			svm.NewAccountMeta(pubkey(payer), true),
			svm.NewReadonlyAccountMeta(types.SystemProgramAddr, false),
		}}))
	require.NoError(t, err)
	assert.Contains(t, receipt.Logs, "Program 11111111111111111111111111111111 invoke [2]")
	assert.Equal(t, uint64(700), balance(t, db, vault))
	assert.Equal(t, uint64(10_300), balance(t, db, pubkey(payer)))
}

func TestExecute_ComputeBudget(t *testing.T) {
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	_, err := e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
		computebudget.SetComputeUnitLimit(100),
		system.Transfer(pubkey(payer), pubkey(newKey(t)), 1),
	))
	assert.ErrorIs(t, err, svm.ErrComputeExceeded)

	receipt, err := e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
		computebudget.SetComputeUnitLimit(1_000),
		computebudget.SetComputeUnitPrice(5),
		system.Transfer(pubkey(payer), pubkey(newKey(t)), 1),
	))
	require.NoError(t, err)
	assert.Equal(t, 2*svm.CUComputeBudgetDefault+svm.CUSystemProgramDefault, receipt.ComputeUnitsConsumed)
}

func TestExecute_Journal(t *testing.T) {
	j, err := journal.Open(journal.DefaultConfig(filepath.Join(t.TempDir(), "journal.db")))
	require.NoError(t, err)
	defer j.Close()

	cfg := DefaultConfig()
	cfg.Journal = j
	db := accounts.NewMemoryDB()
	e := NewExecutor(db, cfg)
	payer := newKey(t)
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	ok := signed(t, e, []ed25519.PrivateKey{payer}, system.Transfer(pubkey(payer), pubkey(newKey(t)), 1))
	_, err = e.Execute(context.Background(), ok)
	require.NoError(t, err)

	bad := signed(t, e, []ed25519.PrivateKey{payer}, system.Transfer(pubkey(payer), pubkey(newKey(t)), 1_000_000))
	_, err = e.Execute(context.Background(), bad)
	require.Error(t, err)

	stored, err := j.Get(ok.Signature())
	require.NoError(t, err)
	assert.True(t, stored.Succeeded())

	stored, err = j.Get(bad.Signature())
	require.NoError(t, err)
	assert.False(t, stored.Succeeded())
	require.NotNil(t, stored.ErrCode)
	assert.Equal(t, uint32(1), *stored.ErrCode)

	recent, err := j.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	// A fresh executor still sees journaled signatures.
	e2 := NewExecutor(db, cfg)
	_, err = e2.Execute(context.Background(), ok)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestExecute_BadgerLedger(t *testing.T) {
	db, err := accounts.NewBadgerDB(accounts.DefaultBadgerDBConfig(t.TempDir()))
	require.NoError(t, err)
	defer db.Close()

	e := NewExecutor(db, DefaultConfig())
	payer := newKey(t)
	to := pubkey(newKey(t))
	require.NoError(t, e.Airdrop(pubkey(payer), 10_000))

	_, err = e.Execute(context.Background(), signed(t, e, []ed25519.PrivateKey{payer},
		system.Transfer(pubkey(payer), to, 10_000)))
	require.NoError(t, err)

	ok, err := db.HasAccount(pubkey(payer))
	require.NoError(t, err)
	assert.False(t, ok, "drained payer should be removed")
	assert.Equal(t, uint64(10_000), balance(t, db, to))
}

func TestBlockhashWindow(t *testing.T) {
	assert.True(t, isRecentBlockhash(BlockhashForSlot(0), 0))
	assert.True(t, isRecentBlockhash(BlockhashForSlot(10), 10+MaxRecentBlockhashes))
	assert.False(t, isRecentBlockhash(BlockhashForSlot(10), 11+MaxRecentBlockhashes))
	assert.False(t, isRecentBlockhash(BlockhashForSlot(11), 10))
	assert.NotEqual(t, BlockhashForSlot(1), BlockhashForSlot(2))
}
