package reputation

import (
	"context"

	"github.com/haukened/phonebook/internal/phonebook/domain"
)

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
// ApproxCount estimates how many distinct numbers have been added.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
	ApproxCount() uint64
}

// BloomFactory builds filters sized for a capacity and target false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// StoreStats reports lightweight store counts.
type StoreStats struct {
	Reports uint64 // stored spam reports
	Phones  uint64 // distinct reported phone numbers
}

// Store is the persistent spam report index.
//   - Add stores a report; it fails with domain.ErrDuplicate when the
//     (phone, reporter) pair exists and domain.ErrNotFound when the reporter
//     is not a registered user. Both checks run in the write transaction.
//   - Exists reports whether a (phone, reporter) pair is stored.
//   - Count returns the number of reports for phone.
//   - VisitPhones calls visit once per distinct reported number until it returns false.
type Store interface {
	Add(r domain.SpamReport) error
	Exists(phone, reporterID string) (bool, error)
	Count(phone string) (int, error)
	VisitPhones(visit func(phone string) bool) error
	Stats() StoreStats
}

// Invalidator drops cached search results after reputation changes.
type Invalidator interface {
	Clear(ctx context.Context) error
}

// RepoStats exposes repository-level counters and underlying store stats.
type RepoStats struct {
	BloomNegatives uint64 // likelihood lookups answered by the filter alone
	StoreReads     uint64 // likelihood lookups that counted reports in the store
	BloomEstimate  uint64 // estimated numbers in the live filter, 0 without one
	Store          StoreStats
}
