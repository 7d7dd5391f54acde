package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/haukened/phonebook/internal/phonebook/common/utils"
)

// Contact is an address-book entry owned by exactly one User. Phone numbers
// are not unique: several contacts, even under one owner, may share a number.
type Contact struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"contact_of"`
	ContactName string     `json:"contact_name"`
	PhoneNumber string     `json:"phone_number"`
	Email       NullString `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewContact builds a Contact for ownerID with a canonical phone number and validates it.
func NewContact(ownerID, name, phone string, email NullString) (Contact, error) {
	c := Contact{
		OwnerID:     ownerID,
		ContactName: strings.TrimSpace(name),
		PhoneNumber: utils.CanonicalPhone(phone),
		Email:       email,
	}
	if err := c.Validate(); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// Validate checks the invariants the stores rely on.
func (c Contact) Validate() error {
	if c.OwnerID == "" {
		return fmt.Errorf("contact owner must be set")
	}
	if c.ContactName == "" {
		return fmt.Errorf("contact name must not be empty")
	}
	if c.PhoneNumber == "" {
		return fmt.Errorf("phone number must not be empty")
	}
	if strings.ContainsRune(c.OwnerID, 0) || strings.ContainsRune(c.PhoneNumber, 0) {
		return fmt.Errorf("owner and phone number must not contain NUL")
	}
	return nil
}
