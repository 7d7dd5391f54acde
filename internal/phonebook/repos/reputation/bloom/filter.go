package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// filter holds the numbers that have at least one spam report. Reports add to
// it while likelihood lookups read it, so access is guarded.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(phone []byte) {
	f.mu.Lock()
	f.bf.Add(phone)
	f.mu.Unlock()
}

// MightContain is false only for numbers never reported since the last rebuild.
func (f *filter) MightContain(phone []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(phone)
}

// ApproxCount estimates the distinct numbers added, from the share of set bits.
func (f *filter) ApproxCount() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint64(f.bf.ApproximatedSize())
}
