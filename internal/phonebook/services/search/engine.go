// Package search answers name and phone lookups over the directory, annotating
// each result with its spam likelihood and, where the viewer is allowed, the
// user's email. Rendered results are cached per viewer and query.
package search

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/common/log"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/metrics"
)

// TTLs sets how long each kind of rendered result stays cached.
type TTLs struct {
	NameSearch   time.Duration
	PhoneUser    time.Duration // phone search answered by a registered user
	PhoneContact time.Duration // phone search answered from address books
}

// DefaultTTLs reflect user records changing less often than address books.
var DefaultTTLs = TTLs{
	NameSearch:   100 * time.Second,
	PhoneUser:    600 * time.Second,
	PhoneContact: 100 * time.Second,
}

// NotFoundMessage is returned when a phone number matches no user or contact.
const NotFoundMessage = "No results found for this phone number."

type Engine struct {
	directory  Directory
	reputation Reputation
	visibility Visibility
	cache      ResultCache
	logger     log.Logger
	metrics    *metrics.Metrics
	clock      clock.Clock
	ttls       TTLs

	phoneCacheReads bool

	group singleflight.Group
}

type EngineOptions struct {
	Directory  Directory
	Reputation Reputation
	Visibility Visibility
	Cache      ResultCache // nil disables caching
	Logger     log.Logger
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	TTLs       TTLs // zero value means DefaultTTLs

	// PhoneCacheReads lets phone searches return cached results. Off, phone
	// results are written to the cache but every search reads the stores.
	PhoneCacheReads bool
}

func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		directory:       opts.Directory,
		reputation:      opts.Reputation,
		visibility:      opts.Visibility,
		cache:           opts.Cache,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		clock:           opts.Clock,
		ttls:            opts.TTLs,
		phoneCacheReads: opts.PhoneCacheReads,
	}
	if e.logger == nil {
		e.logger = log.NewNoopLogger()
	}
	if e.clock == nil {
		e.clock = clock.RealClock{}
	}
	if e.ttls == (TTLs{}) {
		e.ttls = DefaultTTLs
	}
	return e
}

// SearchByName returns one page of users whose username matches query,
// ignoring case. Usernames starting with query come first, then those that
// only contain it; each group keeps registration order.
//
// A cached page is returned as stored, so spam likelihoods and email
// visibility may lag until the entry expires or the cache is cleared. A call
// that joins an identical search already in flight shares its result, which
// may predate a report filed in the meantime; that search also stores its
// page after the report's flush.
func (e *Engine) SearchByName(ctx context.Context, viewerID, query string, req domain.PageRequest) (domain.Page[domain.UserView], error) {
	start := e.clock.Now()
	q, err := domain.NewNameQuery(viewerID, query, req)
	if err != nil {
		e.observe(metrics.KindName, err, false, start)
		return domain.Page[domain.UserView]{}, err
	}

	key := q.CacheKey()
	if cached, ok := e.lookup(ctx, metrics.KindName, key); ok && cached.Users != nil {
		e.observe(metrics.KindName, nil, true, start)
		return *cached.Clone().Users, nil
	}

	result, err := e.shared(ctx, key, func(ctx context.Context) (domain.CachedPage, error) {
		page, err := e.rankAndRender(ctx, q)
		if err != nil {
			return domain.CachedPage{}, err
		}
		out := domain.CachedPage{Users: &page}
		e.store(ctx, key, out, e.ttls.NameSearch)
		return out, nil
	})
	if err != nil {
		e.observe(metrics.KindName, err, false, start)
		return domain.Page[domain.UserView]{}, err
	}
	e.observe(metrics.KindName, nil, false, start)
	return *result.Users, nil
}

func (e *Engine) rankAndRender(ctx context.Context, q domain.NameQuery) (domain.Page[domain.UserView], error) {
	prefix, err := e.directory.FindUsersByNamePrefix(ctx, q.Query)
	if err != nil {
		return domain.Page[domain.UserView]{}, err
	}
	contains, err := e.directory.FindUsersByNameContains(ctx, q.Query)
	if err != nil {
		return domain.Page[domain.UserView]{}, err
	}

	ranked := make([]domain.User, 0, len(prefix)+len(contains))
	ranked = append(ranked, prefix...)
	seen := make(map[string]struct{}, len(prefix))
	for _, u := range prefix {
		seen[u.ID] = struct{}{}
	}
	for _, u := range contains {
		if _, dup := seen[u.ID]; !dup {
			ranked = append(ranked, u)
		}
	}

	page := domain.Paginate(ranked, q.PageRequest)
	views := make([]domain.UserView, 0, len(page.Results))
	for _, u := range page.Results {
		v, err := e.userView(ctx, q.ViewerID, u)
		if err != nil {
			return domain.Page[domain.UserView]{}, err
		}
		views = append(views, v)
	}
	return domain.Page[domain.UserView]{
		Results:        views,
		CurrentPage:    page.CurrentPage,
		TotalPages:     page.TotalPages,
		TotalResults:   page.TotalResults,
		ResultsPerPage: page.ResultsPerPage,
	}, nil
}

// SearchByPhone looks phone up among registered users first. A user match is
// returned on its own and address books are not consulted. Otherwise every
// contact with that number is paged; no match is domain.ErrNotFound.
func (e *Engine) SearchByPhone(ctx context.Context, viewerID, phone string, req domain.PageRequest) (domain.PhoneResult, error) {
	start := e.clock.Now()
	q, err := domain.NewPhoneQuery(viewerID, phone, req)
	if err != nil {
		e.observe(metrics.KindPhone, err, false, start)
		return domain.PhoneResult{}, err
	}

	key := q.CacheKey()
	if e.phoneCacheReads {
		if cached, ok := e.lookup(ctx, metrics.KindPhone, key); ok {
			if r, ok := cached.Clone().PhoneResult(); ok {
				e.observe(metrics.KindPhone, nil, true, start)
				return r, nil
			}
		}
	} else {
		e.metrics.IncrementCacheLookup(metrics.KindPhone, metrics.CacheResultBypass)
	}

	result, err := e.shared(ctx, key, func(ctx context.Context) (domain.CachedPage, error) {
		return e.lookupPhone(ctx, q, key)
	})
	if err != nil {
		e.observe(metrics.KindPhone, err, false, start)
		return domain.PhoneResult{}, err
	}
	e.observe(metrics.KindPhone, nil, false, start)
	r, _ := result.PhoneResult()
	return r, nil
}

func (e *Engine) lookupPhone(ctx context.Context, q domain.PhoneQuery, key string) (domain.CachedPage, error) {
	u, ok, err := e.directory.FindUserByPhone(ctx, q.PhoneNumber)
	if err != nil {
		return domain.CachedPage{}, err
	}
	if ok {
		v, err := e.userView(ctx, q.ViewerID, u)
		if err != nil {
			return domain.CachedPage{}, err
		}
		out := domain.CachedPage{User: &v}
		e.store(ctx, key, out, e.ttls.PhoneUser)
		return out, nil
	}

	contacts, err := e.directory.FindContactsByPhone(ctx, q.PhoneNumber)
	if err != nil {
		return domain.CachedPage{}, err
	}
	if len(contacts) == 0 {
		return domain.CachedPage{}, domain.NotFound(NotFoundMessage)
	}

	// Every contact shares the searched number.
	likelihood, err := e.reputation.Likelihood(ctx, q.PhoneNumber)
	if err != nil {
		return domain.CachedPage{}, err
	}
	likelihood = domain.RoundLikelihood(likelihood)

	page := domain.Paginate(contacts, q.PageRequest)
	views := make([]domain.ContactView, 0, len(page.Results))
	for _, c := range page.Results {
		views = append(views, domain.ContactView{
			ContactName:    c.ContactName,
			PhoneNumber:    c.PhoneNumber,
			SpamLikelihood: likelihood,
		})
	}
	out := domain.CachedPage{Contacts: &domain.Page[domain.ContactView]{
		Results:        views,
		CurrentPage:    page.CurrentPage,
		TotalPages:     page.TotalPages,
		TotalResults:   page.TotalResults,
		ResultsPerPage: page.ResultsPerPage,
	}}
	e.store(ctx, key, out, e.ttls.PhoneContact)
	return out, nil
}

// shared runs fn once for concurrent callers of the same key. fn runs
// detached from any one caller's cancellation, so a caller that gives up
// does not fail the others; each caller still returns on its own ctx. Every
// caller gets its own copy of the result.
func (e *Engine) shared(ctx context.Context, key string, fn func(context.Context) (domain.CachedPage, error)) (domain.CachedPage, error) {
	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return domain.CachedPage{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.CachedPage{}, res.Err
		}
		return res.Val.(domain.CachedPage).Clone(), nil
	}
}

// userView renders u for viewerID. Email is left nil unless the viewer may see it.
func (e *Engine) userView(ctx context.Context, viewerID string, u domain.User) (domain.UserView, error) {
	likelihood, err := e.reputation.Likelihood(ctx, u.PhoneNumber)
	if err != nil {
		return domain.UserView{}, err
	}
	v := domain.UserView{
		Username:       u.Username,
		PhoneNumber:    u.PhoneNumber,
		SpamLikelihood: domain.RoundLikelihood(likelihood),
	}
	visible, err := e.visibility.CanSeeEmail(ctx, viewerID, u.PhoneNumber)
	if err != nil {
		return domain.UserView{}, err
	}
	if visible {
		v.Email = u.Email.Ptr()
	}
	return v, nil
}

// lookup probes the cache. Cache failures degrade to a miss.
func (e *Engine) lookup(ctx context.Context, kind, key string) (domain.CachedPage, bool) {
	if e.cache == nil {
		return domain.CachedPage{}, false
	}
	page, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.metrics.IncrementCacheLookup(kind, metrics.CacheResultError)
		e.logger.Warn(map[string]any{"key": key, "error": err}, "result cache read failed")
		return domain.CachedPage{}, false
	case ok:
		e.metrics.IncrementCacheLookup(kind, metrics.CacheResultHit)
	default:
		e.metrics.IncrementCacheLookup(kind, metrics.CacheResultMiss)
	}
	return page, ok
}

// store writes a rendered result. A failed write only costs a future miss.
func (e *Engine) store(ctx context.Context, key string, page domain.CachedPage, ttl time.Duration) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, page.Clone(), ttl); err != nil {
		e.logger.Warn(map[string]any{"key": key, "error": err}, "result cache write failed")
	}
}

func (e *Engine) observe(kind string, err error, cached bool, start time.Time) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil && cached:
		outcome = metrics.OutcomeCached
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnauthorized):
		outcome = metrics.OutcomeInvalid
	default:
		outcome = metrics.OutcomeError
		e.logger.Error(map[string]any{"kind": kind, "error": err}, "search failed")
	}
	e.metrics.ObserveSearch(kind, outcome, e.clock.Now().Sub(start))
}
