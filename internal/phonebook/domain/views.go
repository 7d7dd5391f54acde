package domain

import (
	"encoding/json"
	"time"
)

// UserView is a user search result. Email is nil when the viewer may not see
// it; a non-nil invalid Email means the viewer may see it but none is on file.
type UserView struct {
	Username       string      `json:"username"`
	PhoneNumber    string      `json:"phone_number"`
	SpamLikelihood float64     `json:"spam_likelihood"`
	Email          *NullString `json:"email,omitempty"`
}

type userViewJSON struct {
	Username       string          `json:"username"`
	PhoneNumber    string          `json:"phone_number"`
	SpamLikelihood float64         `json:"spam_likelihood"`
	Email          json.RawMessage `json:"email,omitempty"`
}

// UnmarshalJSON keeps an explicit "email": null distinct from an absent key,
// which the default decoder would collapse to a nil pointer.
func (v *UserView) UnmarshalJSON(data []byte) error {
	var raw userViewJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = UserView{
		Username:       raw.Username,
		PhoneNumber:    raw.PhoneNumber,
		SpamLikelihood: raw.SpamLikelihood,
	}
	if raw.Email != nil {
		var email NullString
		if err := email.UnmarshalJSON(raw.Email); err != nil {
			return err
		}
		v.Email = &email
	}
	return nil
}

// ContactView is an address-book search result. Contacts never expose email.
type ContactView struct {
	ContactName    string  `json:"contact_name"`
	PhoneNumber    string  `json:"phone_number"`
	SpamLikelihood float64 `json:"spam_likelihood"`
}

// SpamReportView is the rendered result of a successful spam report.
type SpamReportView struct {
	PhoneNumber string    `json:"phone_number"`
	MarkedBy    string    `json:"marked_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Page is one page of results with its pagination metadata.
type Page[T any] struct {
	Results        []T `json:"results"`
	CurrentPage    int `json:"current_page"`
	TotalPages     int `json:"total_pages"`
	TotalResults   int `json:"total_results"`
	ResultsPerPage int `json:"results_per_page"`
}

// PhoneResult is the outcome of a phone search: either a single registered
// user or a page of address-book contacts, never both.
type PhoneResult struct {
	User     *UserView
	Contacts *Page[ContactView]
}

// IsUser reports whether the phone number matched a registered user.
func (r PhoneResult) IsUser() bool { return r.User != nil }

// MarshalJSON renders the bare user object or the contact page.
func (r PhoneResult) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	return json.Marshal(r.Contacts)
}

// CachedPage is what the result cache stores: the rendered payload of one
// search call. Exactly one field is set.
type CachedPage struct {
	Users    *Page[UserView]    `json:"users,omitempty"`
	User     *UserView          `json:"user,omitempty"`
	Contacts *Page[ContactView] `json:"contacts,omitempty"`
}

// PhoneResult converts a cached phone search payload back to its result form.
func (c CachedPage) PhoneResult() (PhoneResult, bool) {
	if c.User == nil && c.Contacts == nil {
		return PhoneResult{}, false
	}
	return PhoneResult{User: c.User, Contacts: c.Contacts}, true
}

// Clone returns a copy of v that shares no memory with it.
func (v UserView) Clone() UserView {
	if v.Email != nil {
		email := *v.Email
		v.Email = &email
	}
	return v
}

// Clone returns p with its own Results slice. Elements are copied by value.
func (p Page[T]) Clone() Page[T] {
	if p.Results != nil {
		p.Results = append(make([]T, 0, len(p.Results)), p.Results...)
	}
	return p
}

// Clone returns a deep copy of c, so a page handed to one caller cannot
// alter what the cache serves to the next.
func (c CachedPage) Clone() CachedPage {
	var out CachedPage
	if c.Users != nil {
		users := c.Users.Clone()
		for i := range users.Results {
			users.Results[i] = users.Results[i].Clone()
		}
		out.Users = &users
	}
	if c.User != nil {
		u := c.User.Clone()
		out.User = &u
	}
	if c.Contacts != nil {
		contacts := c.Contacts.Clone()
		out.Contacts = &contacts
	}
	return out
}
