package node

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/config"
	"github.com/fortiblox/stratus-playground/pkg/runtime"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/loader"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/playground"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LedgerConf.Path = filepath.Join(dir, "ledger")
	cfg.JournalConf.Path = filepath.Join(dir, "journal.db")
	cfg.JournalConf.NoSync = true
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	return n
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ProgramConf.ID = "bogus!"
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestNodeNotRunningErrors(t *testing.T) {
	n, err := New(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ErrNotRunning, n.Stop())
	_, err = n.Deploy(nil, nil)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = n.GetAccount(types.SystemProgramAddr)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = n.LookupProgram(types.PlaygroundProgramAddr)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, n.Status().IsRunning)
}

func TestStartTwice(t *testing.T) {
	n := startNode(t, testConfig(t))
	defer n.Stop()
	assert.Equal(t, ErrAlreadyRunning, n.Start(context.Background()))
}

func TestPersistence(t *testing.T) {
	cfg := testConfig(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	authority := types.PubkeyFromPublicKey(priv.Public().(ed25519.PublicKey))

	n := startNode(t, cfg)
	_, err = n.Deploy(&authority, nil)
	require.NoError(t, err)
	require.NoError(t, n.Executor().Airdrop(authority, 5_000_000))

	ix, err := playground.NewCreateAccount1Instruction(n.Program().ID(), authority)
	require.NoError(t, err)
	tx := runtime.NewTransaction(authority, ix)
	tx.SetBlockhash(n.Executor().RecentBlockhash())
	require.NoError(t, tx.Sign(priv))
	_, err = n.Executor().Execute(context.Background(), tx)
	require.NoError(t, err)

	status := n.Status()
	assert.True(t, status.ProgramDeployed)
	assert.Equal(t, uint64(1), status.Slot)
	assert.Equal(t, uint64(1), status.ReceiptsCount)
	require.NoError(t, n.Stop())

	// Everything survives a restart.
	n = startNode(t, cfg)
	defer n.Stop()

	status = n.Status()
	assert.True(t, status.ProgramDeployed)
	assert.Equal(t, uint64(1), status.Slot)

	receipt, err := n.GetReceipt(tx.Signature())
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())

	counter, _, err := playground.CounterAddress(n.Program().ID(), 1)
	require.NoError(t, err)
	account, err := n.GetAccount(counter)
	require.NoError(t, err)
	record, err := playground.UnmarshalCounter(account.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.Counter)

	_, err = n.Deploy(&authority, nil)
	assert.ErrorIs(t, err, loader.ErrAlreadyDeployed)

	deployment, err := n.LookupProgram(n.Program().ID())
	require.NoError(t, err)
	require.NotNil(t, deployment.ProgramData.UpgradeAuthority)
	assert.Equal(t, authority, *deployment.ProgramData.UpgradeAuthority)

	sigs, err := n.SignaturesForAddress(counter, 10)
	require.NoError(t, err)
	assert.Equal(t, []types.Signature{tx.Signature()}, sigs)
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := startNode(t, testConfig(t))
	defer src.Stop()
	_, err := src.Deploy(nil, []byte{1, 2, 3})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.snap")
	exported, err := src.ExportSnapshot(path)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.LedgerConf.InMemory = true
	dst := startNode(t, cfg)
	defer dst.Stop()

	imported, err := dst.ImportSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, exported.StateHash, imported.StateHash)
	assert.True(t, dst.Status().ProgramDeployed)
	assert.Equal(t, exported.AccountsCount, dst.Status().AccountsCount)
}

func TestInMemoryLedgerSkipsJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.LedgerConf.InMemory = true
	n := startNode(t, cfg)
	defer n.Stop()

	assert.Zero(t, n.Status().ReceiptsCount)
	_, err := n.GetReceipt(types.Signature{})
	assert.Error(t, err)
	sigs, err := n.SignaturesForAddress(types.SystemProgramAddr, 10)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
