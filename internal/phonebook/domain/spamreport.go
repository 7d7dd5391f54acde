package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/haukened/phonebook/internal/phonebook/common/utils"
)

// SpamReport records that MarkedBy flagged PhoneNumber as spam. At most one
// report exists per (PhoneNumber, MarkedBy). The number need not belong to a User.
type SpamReport struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	MarkedBy    string    `json:"marked_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSpamReport builds a report stamped at now.
func NewSpamReport(id, phone, markedBy string, now time.Time) (SpamReport, error) {
	r := SpamReport{
		ID:          id,
		PhoneNumber: utils.CanonicalPhone(phone),
		MarkedBy:    markedBy,
		CreatedAt:   now,
	}
	if err := r.Validate(); err != nil {
		return SpamReport{}, err
	}
	return r, nil
}

// Validate checks required fields.
func (r SpamReport) Validate() error {
	if r.PhoneNumber == "" {
		return fmt.Errorf("phone number must not be empty")
	}
	if r.MarkedBy == "" {
		return fmt.Errorf("reporting user must be set")
	}
	if strings.ContainsRune(r.PhoneNumber, 0) || strings.ContainsRune(r.MarkedBy, 0) {
		return fmt.Errorf("phone number and reporting user must not contain NUL")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("report createdAt must be set")
	}
	return nil
}

// View renders the report for callers.
func (r SpamReport) View() SpamReportView {
	return SpamReportView{PhoneNumber: r.PhoneNumber, MarkedBy: r.MarkedBy, CreatedAt: r.CreatedAt}
}
