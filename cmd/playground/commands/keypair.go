package commands

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fortiblox/stratus-playground/internal/types"
)

// Keypair files hold the 64-byte ed25519 private key as a JSON array of
// numbers, the layout solana-keygen writes.

func readKeypair(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keypair %s: byte out of range", path)
		}
		raw = append(raw, byte(v))
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("parse keypair %s: want %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

func writeKeypair(path string, key ed25519.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func generateKeypair() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}

func keypairPubkey(key ed25519.PrivateKey) types.Pubkey {
	return types.PubkeyFromPublicKey(key.Public().(ed25519.PublicKey))
}

// resolvePubkey accepts a base58 address or a keypair file.
func resolvePubkey(arg string) (types.Pubkey, error) {
	if key, err := types.PubkeyFromBase58(arg); err == nil {
		return key, nil
	}
	kp, err := readKeypair(arg)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("%q is neither an address nor a keypair file: %w", arg, err)
	}
	return keypairPubkey(kp), nil
}
