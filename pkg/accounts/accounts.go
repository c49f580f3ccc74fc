// Package accounts implements the account ledger the playground runtime
// executes against.
//
// An account is a balance in lamports, an owner program, an opaque data
// buffer and an executable flag. Accounts whose balance reaches zero are
// reclaimed: storing a zero-lamport account deletes it, which is how closed
// accounts disappear from the ledger.
//
// Two implementations are provided: MemoryDB for tests and short-lived
// sessions, and BadgerDB for a persistent ledger directory.
package accounts

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync"

	"github.com/fortiblox/stratus-playground/internal/types"
)

var (
	// ErrAccountNotFound is returned when an account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrClosed is returned when operating on a closed database.
	ErrClosed = errors.New("database closed")

	// ErrInvalidData is returned when account data is malformed.
	ErrInvalidData = errors.New("invalid account data")

	// ErrSnapshotNotFound is returned when a snapshot doesn't exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrLedgerNotEmpty is returned when importing a snapshot into a ledger
	// that already holds accounts.
	ErrLedgerNotEmpty = errors.New("ledger not empty")

	// ErrStateHashMismatch is returned when a snapshot's accounts do not
	// hash to the state hash in its header.
	ErrStateHashMismatch = errors.New("snapshot state hash mismatch")
)

// MaxAccountDataSize is the largest data buffer an account may hold.
const MaxAccountDataSize = 10 * 1024 * 1024

// RentExemptEpoch is stored in RentEpoch for rent-exempt accounts.
const RentExemptEpoch = ^uint64(0)

// Account is one ledger entry.
type Account struct {
	Lamports uint64
	Data     []byte

	// Owner is the only program allowed to debit the account or write its
	// data.
	Owner types.Pubkey

	// Executable marks deployed program accounts. It never changes once set.
	Executable bool

	// RentEpoch is RentExemptEpoch for every account the runtime writes.
	RentEpoch uint64
}

// Clone returns a deep copy; programs mutate clones, never stored values.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// IsReclaimable reports whether storing the account deletes it instead.
func (a *Account) IsReclaimable() bool {
	return a.Lamports == 0
}

// fixedSize is the encoded size of an account without its data.
const fixedSize = 8 + 8 + types.PubkeySize + 1 + 8

// Size returns the encoded size of the account.
func (a *Account) Size() int {
	return fixedSize + len(a.Data)
}

// Serialize encodes the account for storage:
//
//	lamports u64 | data_len u64 | data | owner [32] | executable u8 | rent_epoch u64
func (a *Account) Serialize() []byte {
	buf := make([]byte, 0, a.Size())
	buf = binary.LittleEndian.AppendUint64(buf, a.Lamports)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(a.Data)))
	buf = append(buf, a.Data...)
	buf = append(buf, a.Owner[:]...)
	if a.Executable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return binary.LittleEndian.AppendUint64(buf, a.RentEpoch)
}

// DeserializeAccount decodes the Serialize format.
func DeserializeAccount(data []byte) (*Account, error) {
	if len(data) < fixedSize {
		return nil, ErrInvalidData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	dataLen := binary.LittleEndian.Uint64(data[8:16])
	if dataLen > MaxAccountDataSize || uint64(len(data)) != fixedSize+dataLen {
		return nil, ErrInvalidData
	}

	rest := data[16:]
	account := &Account{
		Lamports: lamports,
		Data:     append([]byte(nil), rest[:dataLen]...),
	}
	rest = rest[dataLen:]
	copy(account.Owner[:], rest[:types.PubkeySize])
	switch rest[types.PubkeySize] {
	case 0:
	case 1:
		account.Executable = true
	default:
		return nil, ErrInvalidData
	}
	account.RentEpoch = binary.LittleEndian.Uint64(rest[types.PubkeySize+1:])
	return account, nil
}

// AccountEntry pairs a pubkey with its account.
type AccountEntry struct {
	Pubkey  types.Pubkey
	Account *Account
}

// DB is the accounts database interface.
// Implementations must be safe for concurrent use.
type DB interface {
	// GetAccount retrieves an account by public key.
	// Returns ErrAccountNotFound if the account doesn't exist.
	GetAccount(pubkey types.Pubkey) (*Account, error)

	// SetAccount stores an account. Reclaimable accounts are deleted.
	SetAccount(pubkey types.Pubkey, account *Account) error

	// SetAccounts stores a set of accounts atomically: either every entry
	// is applied or none is.
	SetAccounts(entries []AccountEntry) error

	// DeleteAccount removes an account.
	// Returns nil if the account doesn't exist.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount checks if an account exists.
	HasAccount(pubkey types.Pubkey) (bool, error)

	// IterateAccounts calls fn for every account in ascending pubkey order.
	// Returning an error from fn stops the iteration.
	IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error

	// GetSlot returns the current slot.
	GetSlot() uint64

	// SetSlot updates the current slot.
	SetSlot(slot uint64) error

	// AccountsCount returns the total number of accounts.
	AccountsCount() (uint64, error)

	// Commit persists pending metadata.
	Commit() error

	// Close closes the database.
	Close() error
}

// MemoryDB is an in-memory implementation of DB.
type MemoryDB struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*Account
	slot     uint64
	closed   bool
}

// NewMemoryDB creates a new in-memory accounts database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts: make(map[types.Pubkey]*Account),
	}
}

// GetAccount retrieves an account.
func (m *MemoryDB) GetAccount(pubkey types.Pubkey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	acc, ok := m.accounts[pubkey]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

// SetAccount stores an account.
func (m *MemoryDB) SetAccount(pubkey types.Pubkey, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.setLocked(pubkey, account)
	return nil
}

// SetAccounts stores several accounts under one lock.
func (m *MemoryDB) SetAccounts(entries []AccountEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, e := range entries {
		m.setLocked(e.Pubkey, e.Account)
	}
	return nil
}

func (m *MemoryDB) setLocked(pubkey types.Pubkey, account *Account) {
	if account.IsReclaimable() {
		delete(m.accounts, pubkey)
		return
	}
	m.accounts[pubkey] = account.Clone()
}

// DeleteAccount removes an account.
func (m *MemoryDB) DeleteAccount(pubkey types.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.accounts, pubkey)
	return nil
}

// HasAccount checks if an account exists.
func (m *MemoryDB) HasAccount(pubkey types.Pubkey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.accounts[pubkey]
	return ok, nil
}

// IterateAccounts iterates over all accounts in sorted pubkey order.
func (m *MemoryDB) IterateAccounts(fn func(pubkey types.Pubkey, account *Account) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	entries := make([]AccountEntry, 0, len(m.accounts))
	for k, v := range m.accounts {
		entries = append(entries, AccountEntry{Pubkey: k, Account: v.Clone()})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Pubkey.Compare(entries[j].Pubkey) < 0
	})
	for _, e := range entries {
		if err := fn(e.Pubkey, e.Account); err != nil {
			return err
		}
	}
	return nil
}

// GetSlot returns the current slot.
func (m *MemoryDB) GetSlot() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slot
}

// SetSlot updates the current slot.
func (m *MemoryDB) SetSlot(slot uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.slot = slot
	return nil
}

// AccountsCount returns the number of accounts.
func (m *MemoryDB) AccountsCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.accounts)), nil
}

// Commit is a no-op for MemoryDB.
func (m *MemoryDB) Commit() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.accounts = nil
	return nil
}

var _ DB = (*MemoryDB)(nil)
