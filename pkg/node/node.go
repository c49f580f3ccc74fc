// Package node wires the playground components together.
//
// The Node owns:
// - the accounts ledger (BadgerDB, or MemoryDB for throwaway runs)
// - the receipt journal
// - the runtime executor with the playground program registered
//
// It manages the lifecycle of these components and exposes the operations
// the command line needs.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/accounts"
	"github.com/fortiblox/stratus-playground/pkg/config"
	"github.com/fortiblox/stratus-playground/pkg/journal"
	"github.com/fortiblox/stratus-playground/pkg/runtime"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/playground"
)

// Node errors.
var (
	ErrAlreadyRunning = errors.New("node is already running")
	ErrNotRunning     = errors.New("node is not running")
	ErrInitFailed     = errors.New("node initialization failed")
)

// Node is a local ledger with the playground program registered.
type Node struct {
	config *config.Config
	logger *zap.Logger

	// Core components
	accounts accounts.DB
	journal  *journal.Journal
	executor *runtime.Executor
	program  *playground.Program

	mu        sync.Mutex
	running   atomic.Bool
	startTime time.Time
}

// New creates a node. Nothing is opened until Start is called.
func New(cfg *config.Config, log *zap.Logger) (*Node, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		config: cfg,
		logger: log.Named("node"),
	}, nil
}

// Start opens storage and builds the executor.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running.Load() {
		return ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.initialize(); err != nil {
		n.closeStorage()
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	n.startTime = time.Now()
	n.running.Store(true)
	n.logger.Info("node started",
		zap.Stringer("program", n.program.ID()),
		zap.Bool("enforce_upgrade_authority", n.program.Config().EnforceUpgradeAuthority),
		zap.Uint64("slot", n.accounts.GetSlot()))
	return nil
}

// initialize sets up storage backends and the executor.
func (n *Node) initialize() error {
	ledger := n.config.LedgerConf
	if ledger.InMemory {
		n.accounts = accounts.NewMemoryDB()
	} else {
		if err := os.MkdirAll(ledger.Path, 0755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
		accountsConfig := accounts.DefaultBadgerDBConfig(ledger.Path)
		accountsConfig.Logger = &badgerLogger{n.logger.Named("badger").Sugar()}
		db, err := accounts.NewBadgerDB(accountsConfig)
		if err != nil {
			return fmt.Errorf("open accounts database: %w", err)
		}
		n.accounts = db
	}

	// An in-memory ledger restarts at slot 0, so signatures from a previous
	// run would collide with a persistent journal.
	journalConf := n.config.JournalConf
	if journalConf.Path != "" && !ledger.InMemory {
		j, err := journal.Open(journal.Config{
			Path:   journalConf.Path,
			NoSync: journalConf.NoSync,
			Retain: journalConf.Retain,
		})
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		n.journal = j
	}

	programID, err := n.config.ProgramID()
	if err != nil {
		return err
	}
	n.program = playground.New(playground.Config{
		ProgramID:               programID,
		EnforceUpgradeAuthority: n.config.ProgramConf.EnforceUpgradeAuthority,
	})

	execConfig := runtime.DefaultConfig()
	execConfig.Logger = n.logger
	execConfig.Journal = n.journal
	execConfig.ComputeUnitLimit = n.config.ComputeUnitLimit
	n.executor = runtime.NewExecutor(n.accounts, execConfig, n.program)
	return nil
}

// closeStorage closes all storage backends.
func (n *Node) closeStorage() {
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			n.logger.Warn("close journal", zap.Error(err))
		}
		n.journal = nil
	}
	if n.accounts != nil {
		if err := n.accounts.Close(); err != nil {
			n.logger.Warn("close accounts", zap.Error(err))
		}
		n.accounts = nil
	}
	n.executor = nil
}

// Stop flushes and closes storage.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running.Load() {
		return ErrNotRunning
	}

	if err := n.accounts.Commit(); err != nil {
		n.logger.Warn("commit accounts", zap.Error(err))
	}
	if db, ok := n.accounts.(*accounts.BadgerDB); ok {
		if err := db.RunGC(); err != nil {
			n.logger.Warn("value log gc", zap.Error(err))
		}
	}
	n.closeStorage()

	n.running.Store(false)
	n.logger.Info("node stopped")
	return nil
}

// Executor returns the transaction executor.
func (n *Node) Executor() *runtime.Executor {
	return n.executor
}

// Program returns the registered playground program.
func (n *Node) Program() *playground.Program {
	return n.program
}

// Deploy installs the playground program on the ledger with the given
// upgrade authority. A nil authority deploys it immutable.
func (n *Node) Deploy(authority *types.Pubkey, programBytes []byte) (*loader.Deployment, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	d, err := loader.Deploy(n.accounts, n.executor.Rent(), n.program.ID(), authority, programBytes, n.accounts.GetSlot())
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Stringer("program", d.ProgramID),
		zap.Stringer("program_data", d.ProgramDataAddress),
	}
	if authority != nil {
		fields = append(fields, zap.Stringer("authority", *authority))
	}
	n.logger.Info("program deployed", fields...)
	return d, nil
}

// LookupProgram returns the deployment of the program at programID.
func (n *Node) LookupProgram(programID types.Pubkey) (*loader.Deployment, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	return loader.Lookup(n.accounts, programID)
}

// GetAccount retrieves an account from the ledger.
func (n *Node) GetAccount(pubkey types.Pubkey) (*accounts.Account, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	return n.accounts.GetAccount(pubkey)
}

// GetReceipt retrieves a journaled receipt by signature.
func (n *Node) GetReceipt(sig types.Signature) (*journal.Receipt, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	if n.journal == nil {
		return nil, journal.ErrReceiptNotFound
	}
	return n.journal.Get(sig)
}

// RecentReceipts returns up to limit journaled receipts, newest first.
func (n *Node) RecentReceipts(limit int) ([]*journal.Receipt, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	if n.journal == nil {
		return nil, nil
	}
	return n.journal.Recent(limit)
}

// SignaturesForAddress returns up to limit journaled signatures that
// reference address, newest first.
func (n *Node) SignaturesForAddress(address types.Pubkey, limit int) ([]types.Signature, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	if n.journal == nil {
		return nil, nil
	}
	return n.journal.SignaturesForAddress(address, limit)
}

// ExportSnapshot writes the ledger to path.
func (n *Node) ExportSnapshot(path string) (*accounts.SnapshotHeader, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	h, err := accounts.ExportSnapshot(n.accounts, path)
	if err != nil {
		return nil, err
	}
	n.logger.Info("snapshot exported",
		zap.String("path", path),
		zap.Uint64("slot", h.Slot),
		zap.Uint64("accounts", h.AccountsCount),
		zap.Stringer("state_hash", h.StateHash))
	return h, nil
}

// ImportSnapshot loads the snapshot at path into the ledger.
func (n *Node) ImportSnapshot(path string) (*accounts.SnapshotHeader, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	h, err := accounts.ImportSnapshot(n.accounts, path)
	if err != nil {
		return nil, err
	}
	n.logger.Info("snapshot imported",
		zap.String("path", path),
		zap.Uint64("slot", h.Slot),
		zap.Uint64("accounts", h.AccountsCount))
	return h, nil
}

// Status returns a summary of the ledger.
func (n *Node) Status() *Status {
	s := &Status{IsRunning: n.running.Load()}
	if !s.IsRunning {
		return s
	}

	s.Slot = n.accounts.GetSlot()
	s.AccountsCount, _ = n.accounts.AccountsCount()
	s.Uptime = time.Since(n.startTime)
	s.ProgramID = n.program.ID()
	if account, err := n.accounts.GetAccount(s.ProgramID); err == nil {
		s.ProgramDeployed = loader.IsDeployed(account)
	}
	if n.journal != nil {
		s.ReceiptsCount = n.journal.Count()
	}
	return s
}

// Status contains the current node status.
type Status struct {
	// Slot is the ledger slot, advanced once per executed transaction.
	Slot uint64

	// AccountsCount is the total number of accounts in the ledger.
	AccountsCount uint64

	// ReceiptsCount is the number of receipts the journal holds after
	// retention pruning.
	ReceiptsCount uint64

	// ProgramID is the address the playground program is registered at.
	ProgramID types.Pubkey

	// ProgramDeployed reports whether the program account exists.
	ProgramDeployed bool

	IsRunning bool
	Uptime    time.Duration
}

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
