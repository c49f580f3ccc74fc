// Package journal persists transaction receipts.
//
// Receipts are stored in BoltDB keyed by signature, with a sequence index
// for listing the most recent ones and an address index for looking up the
// transactions that touched an account.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/stratus-playground/internal/types"
)

var (
	// ErrReceiptNotFound is returned when no receipt exists for a signature.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")
)

// Bucket names for BoltDB.
var (
	// bucketReceipts stores receipts keyed by signature.
	bucketReceipts = []byte("receipts")

	// bucketSequence maps sequence numbers to signatures.
	bucketSequence = []byte("sequence")

	// bucketAddressSignatures indexes signatures by address+sequence.
	bucketAddressSignatures = []byte("addr_sigs")

	// bucketMetadata stores journal metadata.
	bucketMetadata = []byte("metadata")
)

var keyNextSequence = []byte("next_sequence")

// Config holds journal configuration options.
type Config struct {
	// Path is the database file.
	Path string

	// NoSync disables fsync after each write.
	NoSync bool

	// Retain caps the number of receipts kept; 0 keeps everything.
	Retain uint64
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:   path,
		Retain: 100_000,
	}
}

// Journal is a BoltDB-backed receipt store.
type Journal struct {
	db     *bolt.DB
	config Config

	mu      sync.RWMutex
	nextSeq uint64
	closed  bool
}

// Open creates or opens a journal.
func Open(config Config) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
		NoSync:  config.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	j := &Journal{db: db, config: config}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketReceipts, bucketSequence, bucketAddressSignatures, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		if v := tx.Bucket(bucketMetadata).Get(keyNextSequence); len(v) == 8 {
			j.nextSeq = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return j, nil
}

func encodeSeq(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func addressKey(address types.Pubkey, seq uint64) []byte {
	key := make([]byte, 40)
	copy(key[:32], address[:])
	binary.BigEndian.PutUint64(key[32:], seq)
	return key
}

// Put appends a receipt. A receipt with an existing signature replaces the
// stored one but keeps its original position.
func (j *Journal) Put(r *Receipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	seq := j.nextSeq
	err := j.db.Update(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		exists := receipts.Get(r.Signature[:]) != nil
		if err := receipts.Put(r.Signature[:], buf.Bytes()); err != nil {
			return err
		}
		if exists {
			return nil
		}

		if err := tx.Bucket(bucketSequence).Put(encodeSeq(seq), r.Signature[:]); err != nil {
			return err
		}
		addrSigs := tx.Bucket(bucketAddressSignatures)
		for _, key := range r.AccountKeys {
			if err := addrSigs.Put(addressKey(key, seq), r.Signature[:]); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketMetadata).Put(keyNextSequence, encodeSeq(seq+1)); err != nil {
			return err
		}
		seq++

		if j.config.Retain > 0 && seq > j.config.Retain {
			return pruneBefore(tx, seq-j.config.Retain)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put receipt %s: %w", r.Signature, err)
	}

	j.nextSeq = seq
	return nil
}

// pruneBefore removes receipts with a sequence number below floor.
func pruneBefore(tx *bolt.Tx, floor uint64) error {
	sequence := tx.Bucket(bucketSequence)
	receipts := tx.Bucket(bucketReceipts)
	addrSigs := tx.Bucket(bucketAddressSignatures)

	c := sequence.Cursor()
	for k, sig := c.First(); k != nil && binary.BigEndian.Uint64(k) < floor; k, sig = c.First() {
		seq := binary.BigEndian.Uint64(k)
		if data := receipts.Get(sig); data != nil {
			var r Receipt
			if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err == nil {
				for _, key := range r.AccountKeys {
					if err := addrSigs.Delete(addressKey(key, seq)); err != nil {
						return err
					}
				}
			}
			if err := receipts.Delete(sig); err != nil {
				return err
			}
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the receipt for a signature.
func (j *Journal) Get(signature types.Signature) (*Receipt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	var r Receipt
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get(signature[:])
		if data == nil {
			return ErrReceiptNotFound
		}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(&r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Has reports whether a receipt exists for a signature.
func (j *Journal) Has(signature types.Signature) bool {
	_, err := j.Get(signature)
	return err == nil
}

// Recent returns up to n receipts, newest first.
func (j *Journal) Recent(n int) ([]*Receipt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	var results []*Receipt
	err := j.db.View(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		c := tx.Bucket(bucketSequence).Cursor()
		for k, sig := c.Last(); k != nil && len(results) < n; k, sig = c.Prev() {
			data := receipts.Get(sig)
			if data == nil {
				continue
			}
			var r Receipt
			if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
				continue // Skip corrupted entries.
			}
			results = append(results, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SignaturesForAddress returns up to limit signatures of receipts that
// reference address, newest first.
func (j *Journal) SignaturesForAddress(address types.Pubkey, limit int) ([]types.Signature, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	var results []types.Signature
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAddressSignatures).Cursor()
		prefix := address[:]

		// Seek past the highest possible key for this address, then walk back.
		k, v := c.Seek(addressKey(address, ^uint64(0)))
		if k == nil || !bytes.HasPrefix(k, prefix) {
			k, v = c.Prev()
		}
		for ; k != nil && len(results) < limit; k, v = c.Prev() {
			if !bytes.HasPrefix(k, prefix) {
				break
			}
			var sig types.Signature
			copy(sig[:], v)
			results = append(results, sig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of receipts currently held, after pruning.
func (j *Journal) Count() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return 0
	}
	var n int
	_ = j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketSequence).Stats().KeyN
		return nil
	})
	return uint64(n)
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
