package phonebook

// RegisterUserRequest carries the fields of a new account.
type RegisterUserRequest struct {
	Username    string `json:"username" validate:"required,max=150"`
	PhoneNumber string `json:"phone_number" validate:"required,max=15"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// CreateContactRequest carries the fields of a new address-book entry.
type CreateContactRequest struct {
	ContactName string `json:"contact_name" validate:"required,max=255"`
	PhoneNumber string `json:"phone_number" validate:"required,max=15"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// SpamReportRequest names the number being reported.
type SpamReportRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,max=15"`
}
