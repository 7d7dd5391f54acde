// Package bloom provides the Bloom filter used to answer "never reported"
// likelihood lookups without touching the store.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/phonebook/internal/phonebook/repos/reputation"
)

type factory struct {
	sizer reputation.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters with NewSizer.
func NewFactory() reputation.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs a filter sized for capacity at the target false-positive rate.
func (f factory) New(capacity uint64, fpRate float64) reputation.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
