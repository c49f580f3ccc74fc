package runtime

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/fortiblox/stratus-playground/internal/types"
)

// MaxRecentBlockhashes is how many slots a blockhash stays valid for.
const MaxRecentBlockhashes = 150

// BlockhashForSlot returns the blockhash the ledger issues at slot.
func BlockhashForSlot(slot uint64) types.Hash {
	var buf [17]byte
	copy(buf[:9], "blockhash")
	binary.LittleEndian.PutUint64(buf[9:], slot)
	return types.Hash(blake3.Sum256(buf[:]))
}

// isRecentBlockhash reports whether h was issued within the last
// MaxRecentBlockhashes slots up to current.
func isRecentBlockhash(h types.Hash, current uint64) bool {
	for i := uint64(0); i <= MaxRecentBlockhashes && i <= current; i++ {
		if BlockhashForSlot(current-i) == h {
			return true
		}
	}
	return false
}
