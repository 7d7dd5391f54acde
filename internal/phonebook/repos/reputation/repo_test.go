package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/common/log"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/metrics"
)

// --- fakes ---

type pair struct{ phone, user string }

type fakeStore struct {
	reports     map[pair]domain.SpamReport
	order       []string
	addErr      error
	existsErr   error
	addCalls    int
	countCalls  int
	existsCalls int
}

func newFakeStore() *fakeStore { return &fakeStore{reports: make(map[pair]domain.SpamReport)} }

func (s *fakeStore) Add(r domain.SpamReport) error {
	s.addCalls++
	if s.addErr != nil {
		return s.addErr
	}
	k := pair{r.PhoneNumber, r.MarkedBy}
	if _, ok := s.reports[k]; ok {
		return domain.Duplicate("phone_number", "dup")
	}
	s.reports[k] = r
	s.order = append(s.order, r.PhoneNumber)
	return nil
}

func (s *fakeStore) Exists(phone, user string) (bool, error) {
	s.existsCalls++
	_, ok := s.reports[pair{phone, user}]
	return ok, s.existsErr
}

func (s *fakeStore) Count(phone string) (int, error) {
	s.countCalls++
	n := 0
	for k := range s.reports {
		if k.phone == phone {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) VisitPhones(visit func(string) bool) error {
	seen := map[string]bool{}
	for _, p := range s.order {
		if seen[p] {
			continue
		}
		seen[p] = true
		if !visit(p) {
			break
		}
	}
	return nil
}

func (s *fakeStore) Stats() StoreStats { return StoreStats{Reports: uint64(len(s.reports))} }

type fakeBloom struct{ keys map[string]bool }

func (b *fakeBloom) Add(key []byte)               { b.keys[string(key)] = true }
func (b *fakeBloom) MightContain(key []byte) bool { return b.keys[string(key)] }
func (b *fakeBloom) ApproxCount() uint64          { return uint64(len(b.keys)) }

type fakeFactory struct {
	newCap   uint64
	newFp    float64
	newCalls int
	ret      *fakeBloom
}

func (f *fakeFactory) New(capacity uint64, fpRate float64) BloomFilter {
	f.newCalls++
	f.newCap = capacity
	f.newFp = fpRate
	f.ret = &fakeBloom{keys: map[string]bool{}}
	return f.ret
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (i *fakeInvalidator) Clear(context.Context) error {
	i.calls++
	return i.err
}

type recordingLogger struct {
	log.Logger
	warns []string
}

func (l *recordingLogger) Warn(_ map[string]any, msg string) { l.warns = append(l.warns, msg) }

// --- helpers ---

type fixture struct {
	repo    *Repository
	store   *fakeStore
	factory *fakeFactory
	inval   *fakeInvalidator
	logger  *recordingLogger
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		store:   newFakeStore(),
		factory: &fakeFactory{},
		inval:   &fakeInvalidator{},
		logger:  &recordingLogger{Logger: log.NewNoopLogger()},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.repo = NewRepository(Options{
		Store:       f.store,
		Factory:     f.factory,
		FPRate:      0.01,
		Invalidator: f.inval,
		Clock:       &clock.MockClock{CurrentTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		Logger:      f.logger,
		Metrics:     f.metrics,
	})
	return f
}

// --- tests ---

func TestReportSpam_StoresAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.repo.ReportSpam(ctx, " 555-1234 ", "u1")
	require.NoError(t, err)
	assert.Equal(t, "555-1234", r.PhoneNumber)
	assert.Equal(t, "u1", r.MarkedBy)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), r.CreatedAt)

	assert.Equal(t, 1, f.inval.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SpamReports.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheFlushes.WithLabelValues("spam_report")))
}

func TestReportSpam_DuplicateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.ReportSpam(ctx, "555", "u1")
	require.NoError(t, err)

	_, err = f.repo.ReportSpam(ctx, "555", "u1")
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	assert.Len(t, f.store.reports, 1)
	assert.Equal(t, 1, f.store.addCalls, "fast path must reject before insert")
	assert.Equal(t, 1, f.inval.calls, "duplicates do not flush the cache")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SpamReports.WithLabelValues(metrics.OutcomeDuplicate)))
}

func TestReportSpam_StoreLevelDuplicate(t *testing.T) {
	f := newFixture(t)
	f.store.addErr = domain.Duplicate("phone_number", "raced")

	_, err := f.repo.ReportSpam(context.Background(), "555", "u1")
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
	assert.Equal(t, 0, f.inval.calls)
}

func TestReportSpam_InvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.ReportSpam(context.Background(), "   ", "u1")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, 0, f.store.addCalls)
}

func TestReportSpam_StoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk gone")
	f.store.existsErr = boom

	_, err := f.repo.ReportSpam(context.Background(), "555", "u1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.inval.calls)
}

func TestReportSpam_FlushFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.inval.err = errors.New("redis down")

	_, err := f.repo.ReportSpam(context.Background(), "555", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"result cache flush failed after spam report"}, f.logger.warns)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.CacheFlushes.WithLabelValues("spam_report")))
}

func TestLikelihood(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, u := range []string{"a", "b", "c"} {
		_, err := f.repo.ReportSpam(ctx, "555", u)
		require.NoError(t, err, i)
	}
	l, err := f.repo.Likelihood(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, 0.3, domain.RoundLikelihood(l))

	l, err = f.repo.Likelihood(ctx, "000")
	require.NoError(t, err)
	assert.Equal(t, 0.0, l)
}

func TestLikelihood_Saturates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := f.repo.ReportSpam(ctx, "555", string(rune('a'+i)))
		require.NoError(t, err)
	}
	l, err := f.repo.Likelihood(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, 1.0, l)
}

func TestRebuild_BloomShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.repo.ReportSpam(ctx, "555", "u1")
	require.NoError(t, err)

	require.NoError(t, f.repo.Rebuild(ctx))
	assert.Equal(t, 1, f.factory.newCalls)
	assert.Equal(t, uint64(minBloomCapacity), f.factory.newCap)
	assert.Equal(t, 0.01, f.factory.newFp)
	assert.True(t, f.factory.ret.keys["555"])

	f.store.countCalls = 0
	n, err := f.repo.ReportCount(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, f.store.countCalls)

	n, err = f.repo.ReportCount(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.store.countCalls)

	// reports after rebuild are added to the live filter
	_, err = f.repo.ReportSpam(ctx, "777", "u1")
	require.NoError(t, err)
	n, err = f.repo.ReportCount(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := f.repo.RepoStats()
	assert.Equal(t, uint64(1), st.BloomNegatives)
	assert.Equal(t, uint64(2), st.StoreReads)
	assert.Equal(t, uint64(2), st.BloomEstimate)
	assert.Equal(t, uint64(2), st.Store.Reports)
}

func TestRebuild_WithoutFactory(t *testing.T) {
	store := newFakeStore()
	repo := NewRepository(Options{Store: store})
	require.NoError(t, repo.Rebuild(context.Background()))

	_, err := repo.ReportSpam(context.Background(), "555", "u1")
	require.NoError(t, err)
	n, err := repo.ReportCount(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(0), repo.RepoStats().BloomEstimate)
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.repo.ReportSpam(ctx, "555", "u1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = f.repo.Likelihood(ctx, "555")
	assert.ErrorIs(t, err, context.Canceled)
}
