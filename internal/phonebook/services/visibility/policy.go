// Package visibility decides who may see a user's email address.
package visibility

import (
	"context"

	"github.com/haukened/phonebook/internal/phonebook/domain"
)

// ContactFinder looks up an address-book entry held by ownerID for phone.
type ContactFinder interface {
	FindContact(ctx context.Context, ownerID, phone string) (domain.Contact, bool, error)
}

// Policy grants email visibility to viewers who hold the target's phone
// number in their own address book. The decision is recomputed on every call.
type Policy struct {
	contacts ContactFinder
}

// New returns a Policy backed by contacts.
func New(contacts ContactFinder) *Policy {
	return &Policy{contacts: contacts}
}

// CanSeeEmail reports whether viewerID has a contact with targetPhone.
func (p *Policy) CanSeeEmail(ctx context.Context, viewerID, targetPhone string) (bool, error) {
	if viewerID == "" {
		return false, nil
	}
	_, ok, err := p.contacts.FindContact(ctx, viewerID, targetPhone)
	if err != nil {
		return false, err
	}
	return ok, nil
}
