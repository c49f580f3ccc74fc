package svm

// Rent parameters, matching the Rent sysvar defaults.
const (
	// AccountStorageOverhead is the per-account byte overhead charged for rent.
	AccountStorageOverhead = uint64(128)

	// DefaultLamportsPerByteYear is the default rental rate.
	DefaultLamportsPerByteYear = uint64(3480)

	// DefaultExemptionThreshold is how many years of rent make an account exempt.
	DefaultExemptionThreshold = 2.0
)

// Rent describes the rent schedule.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent returns the cluster default rent schedule.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance returns the lamports an account of dataLen bytes needs to
// be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytes := AccountStorageOverhead + dataLen
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether balance covers an account of dataLen bytes.
func (r Rent) IsExempt(balance, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}
