package playground

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"
)

// DiscriminatorSize is the length of instruction and account discriminators.
const DiscriminatorSize = 8

// CounterSize is the allocated size of a counter record.
const CounterSize = DiscriminatorSize + 8

// CounterDiscriminator prefixes every counter record.
var CounterDiscriminator = accountDiscriminator("Counter")

// Counter is the test record created by CreateAccount1 and CreateAccount2.
type Counter struct {
	Counter uint64
}

// Marshal encodes the record with its discriminator.
func (c *Counter) Marshal() ([]byte, error) {
	body, err := borsh.Serialize(*c)
	if err != nil {
		return nil, fmt.Errorf("serialize counter: %w", err)
	}

	buf := make([]byte, 0, CounterSize)
	buf = append(buf, CounterDiscriminator[:]...)
	return append(buf, body...), nil
}

// UnmarshalCounter decodes a counter record.
func UnmarshalCounter(data []byte) (*Counter, error) {
	if len(data) < CounterSize {
		return nil, ErrAccountDidNotDeserialize
	}
	if !bytes.Equal(data[:DiscriminatorSize], CounterDiscriminator[:]) {
		return nil, ErrAccountDiscriminatorMismatch
	}

	var c Counter
	if err := borsh.Deserialize(&c, data[DiscriminatorSize:CounterSize]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	return &c, nil
}

func accountDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("account:" + name)
}

func instructionDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("global:" + name)
}

func discriminator(preimage string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}
