package accounts

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/stratus-playground/internal/types"
)

const snapshotVersion uint32 = 1

var snapshotMagic = [4]byte{'P', 'G', 'S', 'N'}

// SnapshotHeader contains metadata about a snapshot.
type SnapshotHeader struct {
	Version       uint32
	Slot          uint64
	AccountsCount uint64
	StateHash     types.Hash
}

const snapshotHeaderSize = 4 + 4 + 8 + 8 + types.HashSize

// Snapshot layout: an uncompressed header followed by a zstd stream of
// (pubkey (32) || size (4) || Serialize()) records.
//
//	magic "PGSN" | version u32 | slot u64 | count u64 | state hash [32]

// ExportSnapshot writes every account in db to path and returns the header
// that was written.
func ExportSnapshot(db DB, path string) (*SnapshotHeader, error) {
	stateHash, err := ComputeStateHash(db)
	if err != nil {
		return nil, fmt.Errorf("compute state hash: %w", err)
	}
	count, err := db.AccountsCount()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	defer file.Close()

	header := &SnapshotHeader{
		Version:       snapshotVersion,
		Slot:          db.GetSlot(),
		AccountsCount: count,
		StateHash:     stateHash,
	}
	if err := writeSnapshotHeader(file, header); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(file)
	if err != nil {
		return nil, fmt.Errorf("init zstd writer: %w", err)
	}
	w := bufio.NewWriter(enc)

	var written uint64
	err = db.IterateAccounts(func(pubkey types.Pubkey, account *Account) error {
		data := account.Serialize()
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(data)))

		if _, err := w.Write(pubkey[:]); err != nil {
			return err
		}
		if _, err := w.Write(size[:]); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("write accounts: %w", err)
	}
	if err := w.Flush(); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	if written != count {
		return nil, fmt.Errorf("snapshot wrote %d accounts, ledger reports %d", written, count)
	}

	return header, file.Sync()
}

// ImportSnapshot loads the snapshot at path into db, which must be empty.
// The accounts are staged and checked against the header's state hash
// before anything is written, so a failed import leaves db untouched.
func ImportSnapshot(db DB, path string) (*SnapshotHeader, error) {
	count, err := db.AccountsCount()
	if err != nil {
		return nil, err
	}
	if count != 0 {
		return nil, fmt.Errorf("%w: holds %d accounts", ErrLedgerNotEmpty, count)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	header, err := readSnapshotHeader(file)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("init zstd reader: %w", err)
	}
	defer dec.Close()
	r := bufio.NewReader(dec)

	staged := NewMemoryDB()
	for i := uint64(0); i < header.AccountsCount; i++ {
		pubkey, account, err := readSnapshotRecord(r)
		if err != nil {
			return nil, fmt.Errorf("read account %d: %w", i, err)
		}
		staged.setLocked(pubkey, account)
	}

	got, err := ComputeStateHash(staged)
	if err != nil {
		return nil, err
	}
	if got != header.StateHash {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrStateHashMismatch, got, header.StateHash)
	}

	entries := make([]AccountEntry, 0, len(staged.accounts))
	for pubkey, account := range staged.accounts {
		entries = append(entries, AccountEntry{Pubkey: pubkey, Account: account})
	}
	if err := db.SetAccounts(entries); err != nil {
		return nil, err
	}
	if err := db.SetSlot(header.Slot); err != nil {
		return nil, err
	}
	if err := db.Commit(); err != nil {
		return nil, err
	}
	return header, nil
}

func writeSnapshotHeader(w io.Writer, h *SnapshotHeader) error {
	var buf [snapshotHeaderSize]byte
	copy(buf[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.Slot)
	binary.LittleEndian.PutUint64(buf[16:], h.AccountsCount)
	copy(buf[24:], h.StateHash[:])
	_, err := w.Write(buf[:])
	return err
}

func readSnapshotHeader(r io.Reader) (*SnapshotHeader, error) {
	var buf [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if [4]byte(buf[0:4]) != snapshotMagic {
		return nil, errors.New("invalid snapshot magic")
	}

	h := &SnapshotHeader{
		Version:       binary.LittleEndian.Uint32(buf[4:]),
		Slot:          binary.LittleEndian.Uint64(buf[8:]),
		AccountsCount: binary.LittleEndian.Uint64(buf[16:]),
	}
	copy(h.StateHash[:], buf[24:])
	if h.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", h.Version)
	}
	return h, nil
}

func readSnapshotRecord(r io.Reader) (types.Pubkey, *Account, error) {
	var pubkey types.Pubkey
	if _, err := io.ReadFull(r, pubkey[:]); err != nil {
		return pubkey, nil, err
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return pubkey, nil, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size > MaxAccountDataSize+64 {
		return pubkey, nil, fmt.Errorf("account size %d exceeds maximum", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return pubkey, nil, err
	}
	account, err := DeserializeAccount(data)
	return pubkey, account, err
}
