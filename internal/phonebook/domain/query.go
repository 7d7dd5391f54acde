package domain

import (
	"fmt"
	"strings"

	"github.com/haukened/phonebook/internal/phonebook/common/utils"
)

// NameQuery is a validated search-by-name request from ViewerID.
type NameQuery struct {
	ViewerID string
	Query    string
	PageRequest
}

// NewNameQuery trims the query and validates all inputs.
func NewNameQuery(viewerID, query string, req PageRequest) (NameQuery, error) {
	q := NameQuery{ViewerID: viewerID, Query: strings.TrimSpace(query), PageRequest: req}
	if err := q.Validate(); err != nil {
		return NameQuery{}, err
	}
	return q, nil
}

// Validate checks the viewer, query text and page size.
func (q NameQuery) Validate() error {
	if q.ViewerID == "" {
		return Unauthorized("authentication credentials were not provided")
	}
	if q.Query == "" {
		return Validation("name", "Name query parameter is required.")
	}
	return q.PageRequest.Validate()
}

// CacheKey identifies this query's rendered page. The viewer is part of the
// key because the page embeds that viewer's email visibility.
func (q NameQuery) CacheKey() string {
	return fmt.Sprintf("user_search:%q:%q:page:%d:size:%d", q.ViewerID, q.Query, q.Page, q.Size)
}

// PhoneQuery is a validated search-by-phone request from ViewerID.
type PhoneQuery struct {
	ViewerID    string
	PhoneNumber string
	PageRequest
}

// NewPhoneQuery canonicalizes the phone number and validates all inputs.
func NewPhoneQuery(viewerID, phone string, req PageRequest) (PhoneQuery, error) {
	q := PhoneQuery{ViewerID: viewerID, PhoneNumber: utils.CanonicalPhone(phone), PageRequest: req}
	if err := q.Validate(); err != nil {
		return PhoneQuery{}, err
	}
	return q, nil
}

// Validate checks the viewer, phone number and page size.
func (q PhoneQuery) Validate() error {
	if q.ViewerID == "" {
		return Unauthorized("authentication credentials were not provided")
	}
	if q.PhoneNumber == "" {
		return Validation("phone_number", "Phone number query parameter is required.")
	}
	return q.PageRequest.Validate()
}

// CacheKey identifies this query's rendered result.
func (q PhoneQuery) CacheKey() string {
	return fmt.Sprintf("user_phone_search:%q:%q:page:%d:size:%d", q.ViewerID, q.PhoneNumber, q.Page, q.Size)
}
