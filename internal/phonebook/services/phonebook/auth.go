package phonebook

import (
	"context"
	"strings"

	"github.com/haukened/phonebook/internal/phonebook/domain"
)

// UsernameAuthenticator treats the credential as a username. It stands in
// for a real session or token check in local tooling.
type UsernameAuthenticator struct {
	users UserFinder
}

var _ Authenticator = (*UsernameAuthenticator)(nil)

func NewUsernameAuthenticator(users UserFinder) *UsernameAuthenticator {
	return &UsernameAuthenticator{users: users}
}

func (a *UsernameAuthenticator) CurrentUser(ctx context.Context, credential string) (domain.User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.User{}, domain.Unauthorized("authentication credentials were not provided")
	}
	u, ok, err := a.users.FindUserByUsername(ctx, credential)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.Unauthorized("invalid credentials")
	}
	return u, nil
}
