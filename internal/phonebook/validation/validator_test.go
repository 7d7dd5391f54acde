package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/validation"
)

type contactRequest struct {
	ContactName string `json:"contact_name" validate:"required,max=10"`
	PhoneNumber string `json:"phone_number" validate:"required,max=15"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidator_Success(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(contactRequest{ContactName: "Mom", PhoneNumber: "555"}))
	assert.NoError(t, v.Validate(contactRequest{ContactName: "Mom", PhoneNumber: "555", Email: "m@example.com"}))
}

func TestValidator_Errors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		req     contactRequest
		details map[string]string
	}{
		{
			name: "missing fields",
			req:  contactRequest{},
			details: map[string]string{
				"contact_name": "This field is required.",
				"phone_number": "This field is required.",
			},
		},
		{
			name:    "too long",
			req:     contactRequest{ContactName: "a very long name", PhoneNumber: "555"},
			details: map[string]string{"contact_name": "Ensure this field has no more than 10 characters."},
		},
		{
			name:    "bad email",
			req:     contactRequest{ContactName: "Mom", PhoneNumber: "555", Email: "nope"},
			details: map[string]string{"email": "Enter a valid email address."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var de *domain.Error
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.details, de.Details)
		})
	}
}

func TestValidator_NonStruct(t *testing.T) {
	v := validation.New()
	err := v.Validate("not a struct")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrValidation))
}
