package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"go.uber.org/zap"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/journal"
	"github.com/fortiblox/stratus-playground/pkg/svm"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/computebudget"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/system"
)

// Receipt records the outcome of one executed transaction.
type Receipt = journal.Receipt

// Config holds executor options.
type Config struct {
	// Logger receives execution logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Journal, when set, receives every receipt and rejects replayed
	// signatures.
	Journal *journal.Journal

	// ComputeUnitLimit is used for transactions that do not request a limit.
	// Zero gives each instruction the default allowance.
	ComputeUnitLimit uint64

	// Rent is the rent schedule programs see.
	Rent svm.Rent
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Logger: zap.NewNop(),
		Rent:   svm.DefaultRent(),
	}
}

// Executor executes transactions one at a time against an accounts DB.
type Executor struct {
	accounts accounts.DB
	config   Config
	logger   *zap.Logger
	programs map[types.Pubkey]svm.Program

	mu sync.Mutex

	// Signatures executed within the blockhash window, by slot.
	statusCache map[types.Signature]uint64
}

// NewExecutor creates an executor with the System and Compute Budget
// programs registered, plus any extra native programs.
func NewExecutor(db accounts.DB, config Config, programs ...svm.Program) *Executor {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Rent == (svm.Rent{}) {
		config.Rent = svm.DefaultRent()
	}

	e := &Executor{
		accounts:    db,
		config:      config,
		logger:      config.Logger.Named("runtime"),
		programs:    make(map[types.Pubkey]svm.Program),
		statusCache: make(map[types.Signature]uint64),
	}
	e.Register(system.New())
	e.Register(computebudget.New())
	for _, p := range programs {
		e.Register(p)
	}
	return e
}

// Register adds a native program, replacing any at the same address.
func (e *Executor) Register(p svm.Program) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programs[p.ID()] = p
}

// Accounts returns the underlying accounts DB.
func (e *Executor) Accounts() accounts.DB {
	return e.accounts
}

// Rent returns the rent schedule programs see.
func (e *Executor) Rent() svm.Rent {
	return e.config.Rent
}

// Slot returns the current ledger slot.
func (e *Executor) Slot() uint64 {
	return e.accounts.GetSlot()
}

// RecentBlockhash returns the blockhash new transactions should use.
func (e *Executor) RecentBlockhash() types.Hash {
	return BlockhashForSlot(e.accounts.GetSlot())
}

// Airdrop credits lamports to an account, creating it when missing.
func (e *Executor) Airdrop(to types.Pubkey, lamports uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	account, err := e.accounts.GetAccount(to)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		account = &accounts.Account{Owner: types.SystemProgramAddr, RentEpoch: accounts.RentExemptEpoch}
	} else if err != nil {
		return fmt.Errorf("load %s: %w", to, err)
	}

	balance, carry := bits.Add64(account.Lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("airdrop to %s overflows balance", to)
	}
	account.Lamports = balance

	if err := e.accounts.SetAccount(to, account); err != nil {
		return fmt.Errorf("store %s: %w", to, err)
	}
	e.logger.Info("airdrop", zap.Stringer("to", to), zap.Uint64("lamports", lamports))
	return nil
}

// Execute runs a signed transaction. Every instruction must succeed for any
// change to reach the ledger.
//
// A transaction that is rejected before execution returns a nil receipt. A
// transaction that executes returns its receipt; if an instruction failed
// the error is a *TransactionError and nothing was written except the slot.
func (e *Executor) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slot := e.accounts.GetSlot()
	if err := e.sanitize(tx, slot); err != nil {
		return nil, err
	}

	msg := &tx.Message
	var limits computebudget.Limits
	numInstructions := 0
	for i, ix := range msg.Instructions {
		if msg.AccountKeys[ix.ProgramIDIndex] != types.ComputeBudgetProgramAddr {
			numInstructions++
			continue
		}
		if err := limits.Apply(ix.Data); err != nil {
			return nil, &TransactionError{InstructionIndex: i, Err: err}
		}
	}
	limit := limits.ComputeUnitLimit(numInstructions)
	if !limits.HasUnitLimit && e.config.ComputeUnitLimit > 0 {
		limit = e.config.ComputeUnitLimit
	}

	tc := &txContext{
		exec:    e,
		working: make(map[types.Pubkey]*accounts.Account, len(msg.AccountKeys)),
		meter:   svm.NewComputeMeter(limit),
	}
	if err := e.loadAccounts(tc, msg); err != nil {
		return nil, err
	}

	slot++
	receipt := &Receipt{
		Signature:         tx.Signature(),
		Slot:              slot,
		AccountKeys:       msg.AccountKeys,
		FailedInstruction: -1,
		PreBalances:       balances(tc, msg),
	}

	var txErr *TransactionError
	for i, ix := range msg.Instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.executeInstruction(tc, msg, ix); err != nil {
			txErr = &TransactionError{InstructionIndex: i, Err: err}
			break
		}
	}

	receipt.Logs = tc.logs
	receipt.ComputeUnitsConsumed = tc.meter.Consumed()

	if txErr != nil {
		receipt.Err = txErr.Error()
		receipt.FailedInstruction = txErr.InstructionIndex
		if code, ok := svm.ErrorCode(txErr); ok {
			receipt.ErrCode = &code
		}
		receipt.PostBalances = receipt.PreBalances

		if err := e.accounts.SetSlot(slot); err != nil {
			return nil, fmt.Errorf("advance slot: %w", err)
		}
		e.finish(receipt)
		e.logger.Warn("transaction failed",
			zap.Stringer("signature", receipt.Signature),
			zap.Uint64("slot", slot),
			zap.Int("instruction", txErr.InstructionIndex),
			zap.Error(txErr.Err))
		return receipt, txErr
	}

	// Slot first: committed accounts must never sit under an older slot.
	if err := e.accounts.SetSlot(slot); err != nil {
		return nil, fmt.Errorf("advance slot: %w", err)
	}
	if err := e.commit(tc, msg); err != nil {
		return nil, err
	}
	receipt.PostBalances = balances(tc, msg)
	e.finish(receipt)

	e.logger.Debug("transaction executed",
		zap.Stringer("signature", receipt.Signature),
		zap.Uint64("slot", slot),
		zap.Uint64("compute_units", receipt.ComputeUnitsConsumed))
	return receipt, nil
}

// sanitize validates the transaction before any account is loaded.
func (e *Executor) sanitize(tx *Transaction, slot uint64) error {
	msg := &tx.Message
	header := msg.Header

	if len(tx.Marshal()) > MaxTransactionSize {
		return ErrTransactionTooLarge
	}
	if header.NumRequiredSignatures == 0 ||
		int(header.NumRequiredSignatures)+int(header.NumReadonlyUnsignedAccounts) > len(msg.AccountKeys) ||
		header.NumReadonlySignedAccounts >= header.NumRequiredSignatures {
		return ErrSanitizeFailure
	}

	seen := make(map[types.Pubkey]struct{}, len(msg.AccountKeys))
	for _, key := range msg.AccountKeys {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: account %s loaded twice", ErrSanitizeFailure, key)
		}
		seen[key] = struct{}{}
	}
	for _, ix := range msg.Instructions {
		// The fee payer cannot be invoked.
		if ix.ProgramIDIndex == 0 || int(ix.ProgramIDIndex) >= len(msg.AccountKeys) {
			return ErrSanitizeFailure
		}
		for _, idx := range ix.AccountIndexes {
			if int(idx) >= len(msg.AccountKeys) {
				return ErrSanitizeFailure
			}
		}
	}

	if err := tx.VerifySignatures(); err != nil {
		return err
	}
	if !isRecentBlockhash(msg.RecentBlockhash, slot) {
		return fmt.Errorf("%w: %s", ErrBlockhashNotFound, msg.RecentBlockhash)
	}

	sig := tx.Signature()
	if _, ok := e.statusCache[sig]; ok {
		return ErrAlreadyProcessed
	}
	if e.config.Journal != nil && e.config.Journal.Has(sig) {
		return ErrAlreadyProcessed
	}
	return nil
}

// loadAccounts copies every account of the message into the working set.
// Missing accounts start empty and owned by the System Program.
func (e *Executor) loadAccounts(tc *txContext, msg *Message) error {
	for i, key := range msg.AccountKeys {
		account, err := e.accounts.GetAccount(key)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			if i == 0 {
				return fmt.Errorf("%w: fee payer %s", ErrFeePayerNotFound, key)
			}
			account = &accounts.Account{Owner: types.SystemProgramAddr}
		} else if err != nil {
			return fmt.Errorf("load account %s: %w", key, err)
		}
		tc.working[key] = account
	}
	return nil
}

// executeInstruction runs one top-level instruction.
func (e *Executor) executeInstruction(tc *txContext, msg *Message, ix CompiledInstruction) error {
	program, err := tc.resolveProgram(msg.AccountKeys[ix.ProgramIDIndex])
	if err != nil {
		return err
	}

	views := make([]*svm.AccountInfo, len(ix.AccountIndexes))
	for i, idx := range ix.AccountIndexes {
		key := msg.AccountKeys[idx]
		views[i] = &svm.AccountInfo{
			Key:        key,
			IsSigner:   msg.IsSigner(int(idx)),
			IsWritable: msg.IsWritable(int(idx)),
			Account:    tc.working[key],
		}
	}
	return tc.invoke(program, views, ix.Data)
}

// commit writes every writable account in one atomic update. Accounts left
// with zero lamports are removed from the ledger.
func (e *Executor) commit(tc *txContext, msg *Message) error {
	entries := make([]accounts.AccountEntry, 0, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		if !msg.IsWritable(i) {
			continue
		}
		account := tc.working[key]
		if account.Lamports > 0 && account.RentEpoch == 0 {
			account.RentEpoch = accounts.RentExemptEpoch
		}
		entries = append(entries, accounts.AccountEntry{Pubkey: key, Account: account})
	}

	if err := e.accounts.SetAccounts(entries); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// finish records the receipt in the status cache and the journal.
func (e *Executor) finish(r *Receipt) {
	e.statusCache[r.Signature] = r.Slot
	for sig, slot := range e.statusCache {
		if slot+MaxRecentBlockhashes < r.Slot {
			delete(e.statusCache, sig)
		}
	}

	if e.config.Journal == nil {
		return
	}
	if err := e.config.Journal.Put(r); err != nil {
		e.logger.Error("failed to journal receipt",
			zap.Stringer("signature", r.Signature),
			zap.Error(err))
	}
}

func balances(tc *txContext, msg *Message) []uint64 {
	out := make([]uint64, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		out[i] = tc.working[key].Lamports
	}
	return out
}
