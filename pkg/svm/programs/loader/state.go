// Package loader handles accounts of the BPF Upgradeable Loader.
//
// A deployed program is a pair of accounts: the executable program account,
// which points at its program-data account, and the program-data account,
// which records the deployment slot, the upgrade authority and the program
// bytes. Both are owned by the loader. Program bytes are stored but never
// executed; programs run as native code registered with the runtime.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/stratus-playground/internal/types"
	"github.com/fortiblox/stratus-playground/pkg/svm/pda"
)

// Loader state tags.
const (
	StateUninitialized uint32 = iota
	StateBuffer
	StateProgram
	StateProgramData
)

// Serialized sizes.
const (
	ProgramSize             = 4 + 32
	ProgramDataMetadataSize = 4 + 8 + 1 + 32
)

var (
	ErrInvalidState      = errors.New("invalid upgradeable loader state")
	ErrInvalidStateTag   = errors.New("unexpected upgradeable loader state tag")
	ErrInvalidOptionFlag = errors.New("invalid option flag")
)

// Program is the state of an executable program account.
type Program struct {
	ProgramDataAddress types.Pubkey
}

// Encode serializes the program state.
func (p *Program) Encode() []byte {
	buf := make([]byte, ProgramSize)
	binary.LittleEndian.PutUint32(buf[0:4], StateProgram)
	copy(buf[4:36], p.ProgramDataAddress[:])
	return buf
}

// DecodeProgram parses a program account.
func DecodeProgram(data []byte) (*Program, error) {
	if len(data) < ProgramSize {
		return nil, fmt.Errorf("%w: program account is %d bytes", ErrInvalidState, len(data))
	}
	if tag := binary.LittleEndian.Uint32(data[0:4]); tag != StateProgram {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStateTag, tag)
	}

	var p Program
	copy(p.ProgramDataAddress[:], data[4:36])
	return &p, nil
}

// ProgramData is the metadata header of a program-data account.
type ProgramData struct {
	Slot             uint64
	UpgradeAuthority *types.Pubkey
}

// Encode serializes the header followed by the program bytes.
func (pd *ProgramData) Encode(programBytes []byte) []byte {
	buf := make([]byte, ProgramDataMetadataSize+len(programBytes))
	binary.LittleEndian.PutUint32(buf[0:4], StateProgramData)
	binary.LittleEndian.PutUint64(buf[4:12], pd.Slot)
	if pd.UpgradeAuthority != nil {
		buf[12] = 1
		copy(buf[13:45], pd.UpgradeAuthority[:])
	}
	copy(buf[ProgramDataMetadataSize:], programBytes)
	return buf
}

// DecodeProgramData parses the header of a program-data account. An account
// without an upgrade authority may stop right after the option flag.
func DecodeProgramData(data []byte) (*ProgramData, error) {
	if len(data) < 13 {
		return nil, fmt.Errorf("%w: program data account is %d bytes", ErrInvalidState, len(data))
	}
	if tag := binary.LittleEndian.Uint32(data[0:4]); tag != StateProgramData {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStateTag, tag)
	}

	pd := &ProgramData{Slot: binary.LittleEndian.Uint64(data[4:12])}
	switch data[12] {
	case 0:
	case 1:
		if len(data) < ProgramDataMetadataSize {
			return nil, fmt.Errorf("%w: truncated upgrade authority", ErrInvalidState)
		}
		authority, _ := types.PubkeyFromBytes(data[13:45])
		pd.UpgradeAuthority = &authority
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidOptionFlag, data[12])
	}
	return pd, nil
}

// ProgramBytes returns the program bytes stored after the header.
func ProgramBytes(data []byte) []byte {
	if len(data) <= ProgramDataMetadataSize {
		return nil
	}
	return data[ProgramDataMetadataSize:]
}

// ProgramDataAddress derives the program-data address of programID.
func ProgramDataAddress(programID types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress([][]byte{programID[:]}, types.BPFLoaderUpgradeableAddr)
}
