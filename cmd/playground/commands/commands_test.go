package commands

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/stratus-playground/pkg/config"
	"github.com/fortiblox/stratus-playground/pkg/node"
	"github.com/fortiblox/stratus-playground/pkg/svm/programs/playground"
)

// run executes one CLI invocation and stops the node it opened.
func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if nd != nil {
		if stopErr := nd.Stop(); !errors.Is(stopErr, node.ErrNotRunning) {
			require.NoError(t, stopErr)
		}
		nd = nil
	}
	return err
}

func TestKeypairRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	key, err := generateKeypair()
	require.NoError(t, err)
	require.NoError(t, writeKeypair(path, key))

	loaded, err := readKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	pub, err := resolvePubkey(path)
	require.NoError(t, err)
	assert.Equal(t, keypairPubkey(key), pub)

	pub, err = resolvePubkey(pub.String())
	require.NoError(t, err)
	assert.Equal(t, keypairPubkey(key), pub)

	_, err = resolvePubkey(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCLIFlow(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LedgerConf.Path = filepath.Join(dir, "ledger")
	cfg.JournalConf.Path = filepath.Join(dir, "journal.db")
	cfg.LogConf.LogDir = filepath.Join(dir, "logs")
	cfgPath := filepath.Join(dir, "playground.yaml")
	require.NoError(t, cfg.Write(cfgPath))

	authority := filepath.Join(dir, "authority.json")
	require.NoError(t, run(t, "keygen", "-o", authority))
	assert.Error(t, run(t, "keygen", "-o", authority), "keygen must not overwrite")

	require.NoError(t, run(t, "-c", cfgPath, "airdrop", authority, strconv.Itoa(10_000_000)))
	require.NoError(t, run(t, "-c", cfgPath, "deploy", "--authority", authority))
	require.NoError(t, run(t, "-c", cfgPath, "create-counter", "--payer", authority, "--key", "1"))
	require.NoError(t, run(t, "-c", cfgPath, "create-counter", "--payer", authority, "--key", "2"))
	assert.Error(t, run(t, "-c", cfgPath, "create-counter", "--payer", authority, "--key", "3"))

	programID, err := cfg.ProgramID()
	require.NoError(t, err)
	counter1, _, err := playground.CounterAddress(programID, 1)
	require.NoError(t, err)
	require.NoError(t, run(t, "-c", cfgPath, "account", counter1.String()))
	require.NoError(t, run(t, "-c", cfgPath, "account", programID.String()))

	// A foreign recipient is rejected unless --localnet is set.
	stranger := filepath.Join(dir, "stranger.json")
	require.NoError(t, run(t, "keygen", "-o", stranger))
	require.NoError(t, run(t, "-c", cfgPath, "airdrop", stranger, "1000000"))
	assert.Error(t, run(t, "-c", cfgPath, "close-accounts", "--payer", stranger, counter1.String()))
	require.NoError(t, run(t, "-c", cfgPath, "--localnet", "close-accounts", "--payer", stranger, counter1.String()))

	require.NoError(t, run(t, "-c", cfgPath, "receipt", "-n", "3"))
	require.NoError(t, run(t, "-c", cfgPath, "receipt", "--address", counter1.String()))

	snap := filepath.Join(dir, "ledger.snap")
	require.NoError(t, run(t, "-c", cfgPath, "snapshot", "export", snap))

	n, err := node.New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	status := n.Status()
	assert.True(t, status.ProgramDeployed)
	// Two creates and two closes executed; the third create never built.
	assert.Equal(t, uint64(4), status.Slot)
	assert.Equal(t, uint64(4), status.ReceiptsCount)

	_, err = n.GetAccount(counter1)
	assert.Error(t, err, "closed counter should be gone")

	// create_account1 plus the rejected and the accepted close.
	sigs, err := n.SignaturesForAddress(counter1, 10)
	require.NoError(t, err)
	assert.Len(t, sigs, 3)

	authorityKey, err := resolvePubkey(authority)
	require.NoError(t, err)
	deployment, err := n.LookupProgram(programID)
	require.NoError(t, err)
	require.NotNil(t, deployment.ProgramData.UpgradeAuthority)
	assert.Equal(t, authorityKey, *deployment.ProgramData.UpgradeAuthority)
}
