package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/haukened/phonebook/internal/phonebook/common/utils"
)

// Field limits carried over from the persisted schema.
const (
	MaxUsernameLen    = 150
	MaxPhoneLen       = 15
	MaxContactNameLen = 255
)

// User is a registered account. Username and PhoneNumber are each unique
// across the directory; Email is optional.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	PhoneNumber string     `json:"phone_number"`
	Email       NullString `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewUser builds a User with a canonical phone number and validates it.
// The ID is assigned by the directory on insert.
func NewUser(username, phone string, email NullString) (User, error) {
	u := User{
		Username:    strings.TrimSpace(username),
		PhoneNumber: utils.CanonicalPhone(phone),
		Email:       email,
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// Validate checks the invariants the stores rely on.
func (u User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if u.PhoneNumber == "" {
		return fmt.Errorf("phone number must not be empty")
	}
	if strings.ContainsRune(u.Username, 0) || strings.ContainsRune(u.PhoneNumber, 0) {
		return fmt.Errorf("username and phone number must not contain NUL")
	}
	return nil
}
