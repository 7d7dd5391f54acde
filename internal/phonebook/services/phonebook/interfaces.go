package phonebook

import (
	"context"

	"github.com/haukened/phonebook/internal/phonebook/domain"
)

// Directory is the user and address-book store the service writes to.
type Directory interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	CreateContact(ctx context.Context, c domain.Contact) (domain.Contact, error)
	FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	DeleteUser(ctx context.Context, id string) error
}

// Reputation records spam reports and scores numbers.
type Reputation interface {
	ReportSpam(ctx context.Context, phone, reporterID string) (domain.SpamReport, error)
	Likelihood(ctx context.Context, phone string) (float64, error)
}

// Invalidator flushes every cached search result.
type Invalidator interface {
	Clear(ctx context.Context) error
}

// Authenticator resolves a credential to the user it belongs to. Unknown or
// missing credentials fail with domain.ErrUnauthorized.
type Authenticator interface {
	CurrentUser(ctx context.Context, credential string) (domain.User, error)
}

// UserFinder looks users up by username.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
}
