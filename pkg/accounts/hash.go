package accounts

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/stratus-playground/internal/types"
)

// ComputeAccountHash hashes a single account the way Solana's AccountsDB
// does: blake3(lamports || rent_epoch || data || executable || owner || pubkey).
// Reclaimed accounts hash to the zero hash.
func ComputeAccountHash(pubkey types.Pubkey, account *Account) types.Hash {
	if account == nil || account.IsReclaimable() {
		return types.Hash{}
	}

	h := blake3.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], account.Lamports)
	h.Write(buf[:])

	binary.LittleEndian.PutUint64(buf[:], account.RentEpoch)
	h.Write(buf[:])

	h.Write(account.Data)

	if account.Executable {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	h.Write(account.Owner[:])
	h.Write(pubkey[:])

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeStateHash returns the Merkle root over the hashes of every account
// in db, ordered by pubkey. Two ledgers with identical contents produce the
// same state hash.
func ComputeStateHash(db DB) (types.Hash, error) {
	var hashes []types.Hash
	err := db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		hashes = append(hashes, ComputeAccountHash(pubkey, account))
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	return ComputeMerkleRoot(hashes), nil
}

// ComputeMerkleRoot computes a binary Merkle root.
//
// Leaf: SHA256(0x00 || hash); node: SHA256(0x01 || left || right). An odd
// node is paired with the zero hash.
func ComputeMerkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}

	level := make([]types.Hash, len(hashes))
	for i, h := range hashes {
		level[i] = leafHash(h)
	}

	for len(level) > 1 {
		next := make([]types.Hash, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			var right types.Hash
			if i+1 < len(level) {
				right = level[i+1]
			}
			next[i/2] = nodeHash(level[i], right)
		}
		level = next
	}
	return level[0]
}

func leafHash(data types.Hash) types.Hash {
	var buf [1 + types.HashSize]byte
	copy(buf[1:], data[:])
	return sha256.Sum256(buf[:])
}

func nodeHash(left, right types.Hash) types.Hash {
	var buf [1 + 2*types.HashSize]byte
	buf[0] = 0x01
	copy(buf[1:], left[:])
	copy(buf[1+types.HashSize:], right[:])
	return sha256.Sum256(buf[:])
}
