// Package reputation records spam reports and derives spam likelihood from
// them. Reads go through a Bloom filter of reported numbers before the store;
// a successful report clears cached search results.
package reputation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/common/log"
	"github.com/haukened/phonebook/internal/phonebook/common/utils"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/metrics"
)

// minBloomCapacity keeps a freshly built filter useful on an empty store.
const minBloomCapacity = 1024

// Options configures a Repository.
type Options struct {
	Store       Store
	Factory     BloomFactory // nil disables the filter
	FPRate      float64
	Invalidator Invalidator // nil skips invalidation
	Clock       clock.Clock
	Logger      log.Logger
	Metrics     *metrics.Metrics
}

// Repository composes the report store, the Bloom filter and the result
// cache invalidator.
type Repository struct {
	mu    sync.RWMutex
	bloom BloomFilter

	store       Store
	factory     BloomFactory
	fpRate      float64
	invalidator Invalidator
	clock       clock.Clock
	logger      log.Logger
	metrics     *metrics.Metrics

	negatives  atomic.Uint64
	storeReads atomic.Uint64
}

// NewRepository constructs a Repository. Call Rebuild before serving reads
// to enable the Bloom fast path.
func NewRepository(opts Options) *Repository {
	r := &Repository{
		store:       opts.Store,
		factory:     opts.Factory,
		fpRate:      opts.FPRate,
		invalidator: opts.Invalidator,
		clock:       opts.Clock,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.logger == nil {
		r.logger = log.NewNoopLogger()
	}
	return r
}

// Rebuild sizes a new Bloom filter for the stored numbers, loads them and
// swaps it in.
func (r *Repository) Rebuild(ctx context.Context) error {
	if r.factory == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var phones []string
	if err := r.store.VisitPhones(func(p string) bool {
		phones = append(phones, p)
		return true
	}); err != nil {
		return err
	}

	capacity := uint64(len(phones)) * 2
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}
	bf := r.factory.New(capacity, r.fpRate)
	for _, p := range phones {
		bf.Add([]byte(p))
	}

	r.mu.Lock()
	r.bloom = bf
	r.mu.Unlock()

	r.logger.Info(map[string]any{"phones": len(phones), "capacity": capacity}, "reputation filter rebuilt")
	return nil
}

// ReportSpam records that reporterID flagged phone as spam and clears cached
// search results. A second report of the same number by the same user fails
// with domain.ErrDuplicate and leaves the cache untouched.
func (r *Repository) ReportSpam(ctx context.Context, phone, reporterID string) (domain.SpamReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.SpamReport{}, err
	}
	report, err := domain.NewSpamReport(uuid.NewString(), phone, reporterID, r.clock.Now().UTC())
	if err != nil {
		r.metrics.IncrementSpamReport(metrics.OutcomeInvalid)
		return domain.SpamReport{}, domain.Wrap(err, domain.CodeValidation, "invalid spam report")
	}

	// Fast path; the store re-checks inside its write transaction.
	exists, err := r.store.Exists(report.PhoneNumber, report.MarkedBy)
	if err != nil {
		r.metrics.IncrementSpamReport(metrics.OutcomeError)
		return domain.SpamReport{}, err
	}
	if exists {
		r.metrics.IncrementSpamReport(metrics.OutcomeDuplicate)
		return domain.SpamReport{}, domain.Duplicate("phone_number", "You have already marked this number as spam.")
	}

	if err := r.store.Add(report); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			r.metrics.IncrementSpamReport(metrics.OutcomeDuplicate)
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
			r.metrics.IncrementSpamReport(metrics.OutcomeInvalid)
		default:
			r.metrics.IncrementSpamReport(metrics.OutcomeError)
		}
		return domain.SpamReport{}, err
	}

	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf != nil {
		bf.Add([]byte(report.PhoneNumber))
	}
	r.metrics.IncrementSpamReport(metrics.OutcomeOK)

	r.invalidate(ctx, report.PhoneNumber)
	return report, nil
}

// invalidate flushes the whole result cache. A failed flush leaves stale
// pages until their TTL lapses, so it is logged rather than returned.
func (r *Repository) invalidate(ctx context.Context, phone string) {
	if r.invalidator == nil {
		return
	}
	if err := r.invalidator.Clear(ctx); err != nil {
		r.logger.Warn(map[string]any{"phone_number": phone, "error": err}, "result cache flush failed after spam report")
		return
	}
	r.metrics.IncrementCacheFlush("spam_report")
}

// ReportCount returns how many users reported phone.
func (r *Repository) ReportCount(ctx context.Context, phone string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	phone = utils.CanonicalPhone(phone)

	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf != nil && !bf.MightContain([]byte(phone)) {
		r.negatives.Add(1)
		return 0, nil
	}
	r.storeReads.Add(1)
	return r.store.Count(phone)
}

// Likelihood returns the unrounded spam likelihood of phone.
func (r *Repository) Likelihood(ctx context.Context, phone string) (float64, error) {
	n, err := r.ReportCount(ctx, phone)
	if err != nil {
		return 0, err
	}
	return domain.SpamLikelihood(n), nil
}

// RepoStats returns lookup counters and store stats.
func (r *Repository) RepoStats() RepoStats {
	st := RepoStats{
		BloomNegatives: r.negatives.Load(),
		StoreReads:     r.storeReads.Load(),
		Store:          r.store.Stats(),
	}
	r.mu.RLock()
	if r.bloom != nil {
		st.BloomEstimate = r.bloom.ApproxCount()
	}
	r.mu.RUnlock()
	return st
}
