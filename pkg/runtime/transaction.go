// Package runtime compiles, signs and executes transactions against the
// accounts ledger.
package runtime

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// MaxTransactionSize is the largest serialized transaction accepted.
const MaxTransactionSize = 1232

var (
	ErrSignerNotInAccounts = errors.New("signing account is not in the account list")
	ErrSignerNotRequired   = errors.New("signing account is not in the list of signers")
)

// Header describes the signer and writable layout of Message.AccountKeys.
type Header struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references its program and accounts by index.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          Header
	AccountKeys     []types.Pubkey
	RecentBlockhash types.Hash
	Instructions    []CompiledInstruction
}

// Transaction is a signed message.
type Transaction struct {
	Signatures []types.Signature
	Message    Message
}

type accountMeta struct {
	svm.AccountMeta
	isPayer   bool
	isProgram bool
}

// sortableAccountMeta orders accounts by the transaction layout rules:
// payer first, signers before non-signers, writable before read-only and
// programs last.
type sortableAccountMeta []accountMeta

func (s sortableAccountMeta) Len() int      { return len(s) }
func (s sortableAccountMeta) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s sortableAccountMeta) Less(i, j int) bool {
	if s[i].isPayer != s[j].isPayer {
		return s[i].isPayer
	}
	if s[i].isProgram != s[j].isProgram {
		return !s[i].isProgram
	}
	if s[i].IsSigner != s[j].IsSigner {
		return s[i].IsSigner
	}
	if s[i].IsWritable != s[j].IsWritable {
		return s[i].IsWritable
	}
	return s[i].Pubkey.Compare(s[j].Pubkey) < 0
}

// NewTransaction compiles instructions into an unsigned transaction paid
// for by payer.
func NewTransaction(payer types.Pubkey, instructions ...svm.Instruction) *Transaction {
	metas := []accountMeta{{
		AccountMeta: svm.NewAccountMeta(payer, true),
		isPayer:     true,
	}}
	for _, ix := range instructions {
		metas = append(metas, accountMeta{
			AccountMeta: svm.NewReadonlyAccountMeta(ix.ProgramID, false),
			isProgram:   true,
		})
		for _, a := range ix.Accounts {
			metas = append(metas, accountMeta{AccountMeta: a})
		}
	}

	metas = filterUnique(metas)
	sort.Stable(sortableAccountMeta(metas))

	var m Message
	for _, a := range metas {
		m.AccountKeys = append(m.AccountKeys, a.Pubkey)

		if a.IsSigner {
			m.Header.NumRequiredSignatures++
			if !a.IsWritable {
				m.Header.NumReadonlySignedAccounts++
			}
		} else if !a.IsWritable {
			m.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		c := CompiledInstruction{
			ProgramIDIndex: uint8(indexOf(m.AccountKeys, ix.ProgramID)),
			Data:           ix.Data,
		}
		for _, a := range ix.Accounts {
			c.AccountIndexes = append(c.AccountIndexes, uint8(indexOf(m.AccountKeys, a.Pubkey)))
		}
		m.Instructions = append(m.Instructions, c)
	}

	return &Transaction{
		Signatures: make([]types.Signature, m.Header.NumRequiredSignatures),
		Message:    m,
	}
}

// filterUnique merges duplicate keys, promoting privileges. A program that
// is also passed as a writable or signer account stays a regular account.
func filterUnique(metas []accountMeta) []accountMeta {
	filtered := make([]accountMeta, 0, len(metas))

	for _, m := range metas {
		i := -1
		for j := range filtered {
			if filtered[j].Pubkey == m.Pubkey {
				i = j
				break
			}
		}
		if i < 0 {
			filtered = append(filtered, m)
			continue
		}

		f := &filtered[i]
		f.IsSigner = f.IsSigner || m.IsSigner
		f.IsWritable = f.IsWritable || m.IsWritable
		f.isPayer = f.isPayer || m.isPayer
		f.isProgram = f.isProgram && m.isProgram
	}

	return filtered
}

func indexOf(keys []types.Pubkey, key types.Pubkey) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

// SetBlockhash sets the recent blockhash. Signatures must be made after.
func (t *Transaction) SetBlockhash(blockhash types.Hash) {
	t.Message.RecentBlockhash = blockhash
}

// Sign signs the message with each key. Every key must belong to a
// required signer.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, s := range signers {
		pub := types.PubkeyFromPublicKey(s.Public().(ed25519.PublicKey))
		index := indexOf(t.Message.AccountKeys, pub)
		if index < 0 {
			return fmt.Errorf("%w: %s", ErrSignerNotInAccounts, pub)
		}
		if index >= len(t.Signatures) {
			return fmt.Errorf("%w: %s", ErrSignerNotRequired, pub)
		}
		copy(t.Signatures[index][:], ed25519.Sign(s, message))
	}

	return nil
}

// Signature returns the first signature, the transaction ID.
func (t *Transaction) Signature() types.Signature {
	if len(t.Signatures) == 0 {
		return types.Signature{}
	}
	return t.Signatures[0]
}

// VerifySignatures checks every required signature against the message.
func (t *Transaction) VerifySignatures() error {
	header := t.Message.Header
	if len(t.Signatures) != int(header.NumRequiredSignatures) {
		return fmt.Errorf("%w: have %d signatures, need %d",
			ErrSignatureFailure, len(t.Signatures), header.NumRequiredSignatures)
	}
	if int(header.NumRequiredSignatures) > len(t.Message.AccountKeys) {
		return ErrSanitizeFailure
	}

	message := t.Message.Marshal()
	for i, sig := range t.Signatures {
		if !sig.Verify(t.Message.AccountKeys[i], message) {
			return fmt.Errorf("%w: signer %s", ErrSignatureFailure, t.Message.AccountKeys[i])
		}
	}
	return nil
}

// IsSigner reports whether the account at index must sign.
func (m *Message) IsSigner(index int) bool {
	return index < int(m.Header.NumRequiredSignatures)
}

// IsWritable reports whether the account at index is writable.
func (m *Message) IsWritable(index int) bool {
	numSigners := int(m.Header.NumRequiredSignatures)
	if index < numSigners {
		return index < numSigners-int(m.Header.NumReadonlySignedAccounts)
	}
	numWritableUnsigned := len(m.AccountKeys) - numSigners - int(m.Header.NumReadonlyUnsignedAccounts)
	return index-numSigners < numWritableUnsigned
}

// String renders the transaction for debugging.
func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, s))
	}
	sb.WriteString("Message:\n")
	sb.WriteString("  Header:\n")
	sb.WriteString(fmt.Sprintf("    NumRequiredSignatures: %d\n", t.Message.Header.NumRequiredSignatures))
	sb.WriteString(fmt.Sprintf("    NumReadonlySigned: %d\n", t.Message.Header.NumReadonlySignedAccounts))
	sb.WriteString(fmt.Sprintf("    NumReadonlyUnsigned: %d\n", t.Message.Header.NumReadonlyUnsignedAccounts))
	sb.WriteString("  Accounts:\n")
	for i, a := range t.Message.AccountKeys {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, a))
	}
	sb.WriteString(fmt.Sprintf("  RecentBlockhash: %s\n", t.Message.RecentBlockhash))
	sb.WriteString("  Instructions:\n")
	for i, ix := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d:\n", i))
		sb.WriteString(fmt.Sprintf("      ProgramIndex: %d\n", ix.ProgramIDIndex))
		sb.WriteString(fmt.Sprintf("      Accounts: %v\n", ix.AccountIndexes))
		sb.WriteString(fmt.Sprintf("      Data: %v\n", ix.Data))
	}
	return sb.String()
}

// Marshal serializes the message in the legacy wire format.
func (m *Message) Marshal() []byte {
	b := bytes.NewBuffer(nil)

	b.WriteByte(m.Header.NumRequiredSignatures)
	b.WriteByte(m.Header.NumReadonlySignedAccounts)
	b.WriteByte(m.Header.NumReadonlyUnsignedAccounts)

	encodeLen(b, len(m.AccountKeys))
	for _, a := range m.AccountKeys {
		b.Write(a[:])
	}

	b.Write(m.RecentBlockhash[:])

	encodeLen(b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b.WriteByte(ix.ProgramIDIndex)
		encodeLen(b, len(ix.AccountIndexes))
		b.Write(ix.AccountIndexes)
		encodeLen(b, len(ix.Data))
		b.Write(ix.Data)
	}

	return b.Bytes()
}

// Marshal serializes the transaction in the wire format.
func (t *Transaction) Marshal() []byte {
	b := bytes.NewBuffer(nil)
	encodeLen(b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	b.Write(t.Message.Marshal())
	return b.Bytes()
}

// encodeLen writes n as a compact-u16.
func encodeLen(b *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			b.WriteByte(elem)
			return
		}
		b.WriteByte(elem | 0x80)
	}
}
