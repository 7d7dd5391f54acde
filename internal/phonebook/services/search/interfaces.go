package search

import (
	"context"
	"time"

	"github.com/haukened/phonebook/internal/phonebook/domain"
)

// Directory is the subset of the user and contact store the engine reads.
// Multi-record lookups return records in registration order.
type Directory interface {
	FindUsersByNamePrefix(ctx context.Context, query string) ([]domain.User, error)
	FindUsersByNameContains(ctx context.Context, query string) ([]domain.User, error)
	FindUserByPhone(ctx context.Context, phone string) (domain.User, bool, error)
	FindContactsByPhone(ctx context.Context, phone string) ([]domain.Contact, error)
}

// Reputation supplies the unrounded spam likelihood of a phone number.
type Reputation interface {
	Likelihood(ctx context.Context, phone string) (float64, error)
}

// Visibility decides whether viewerID may see the email of the user
// registered with phone.
type Visibility interface {
	CanSeeEmail(ctx context.Context, viewerID, phone string) (bool, error)
}

// ResultCache stores rendered search results under query keys.
//   - Get returns a live entry; expired entries are misses.
//   - Set stores page for ttl, replacing any entry under key.
//   - Clear drops every entry.
type ResultCache interface {
	Get(ctx context.Context, key string) (domain.CachedPage, bool, error)
	Set(ctx context.Context, key string, page domain.CachedPage, ttl time.Duration) error
	Clear(ctx context.Context) error
}
