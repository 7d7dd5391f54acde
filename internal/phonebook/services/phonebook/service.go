// Package phonebook is the write-side facade: registering users, adding
// address-book entries, filing spam reports and removing accounts.
package phonebook

import (
	"context"
	"strings"

	"github.com/haukened/phonebook/internal/phonebook/common/log"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/metrics"
	"github.com/haukened/phonebook/internal/phonebook/repos/seed"
	"github.com/haukened/phonebook/internal/phonebook/validation"
)

type Service struct {
	directory  Directory
	reputation Reputation
	cache      Invalidator
	validator  *validation.Validator
	logger     log.Logger
	metrics    *metrics.Metrics
}

type ServiceOptions struct {
	Directory  Directory
	Reputation Reputation
	Cache      Invalidator // flushed when a user is deleted; nil skips
	Validator  *validation.Validator
	Logger     log.Logger
	Metrics    *metrics.Metrics
}

func NewService(opts ServiceOptions) *Service {
	s := &Service{
		directory:  opts.Directory,
		reputation: opts.Reputation,
		cache:      opts.Cache,
		validator:  opts.Validator,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	if s.logger == nil {
		s.logger = log.NewNoopLogger()
	}
	return s
}

// RegisterUser creates an account. A taken username or phone number fails
// with domain.ErrDuplicate.
func (s *Service) RegisterUser(ctx context.Context, req RegisterUserRequest) (domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return domain.User{}, err
	}

	u, err := domain.NewUser(req.Username, req.PhoneNumber, domain.NullStringFrom(req.Email))
	if err != nil {
		return domain.User{}, domain.Wrap(err, domain.CodeValidation, "invalid user")
	}
	u, err = s.directory.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info(map[string]any{"user_id": u.ID, "username": u.Username}, "user registered")
	return u, nil
}

// CreateContact adds an entry to ownerID's address book and returns it with
// the number's current spam likelihood.
//
// Cached search results are not flushed, so a search that hid a user's
// email from ownerID may keep hiding it until the entry expires.
func (s *Service) CreateContact(ctx context.Context, ownerID string, req CreateContactRequest) (domain.ContactView, error) {
	if ownerID == "" {
		return domain.ContactView{}, domain.Unauthorized("authentication credentials were not provided")
	}
	req.ContactName = strings.TrimSpace(req.ContactName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return domain.ContactView{}, err
	}

	c, err := domain.NewContact(ownerID, req.ContactName, req.PhoneNumber, domain.NullStringFrom(req.Email))
	if err != nil {
		return domain.ContactView{}, domain.Wrap(err, domain.CodeValidation, "invalid contact")
	}
	c, err = s.directory.CreateContact(ctx, c)
	if err != nil {
		return domain.ContactView{}, err
	}
	likelihood, err := s.reputation.Likelihood(ctx, c.PhoneNumber)
	if err != nil {
		return domain.ContactView{}, err
	}
	return domain.ContactView{
		ContactName:    c.ContactName,
		PhoneNumber:    c.PhoneNumber,
		SpamLikelihood: domain.RoundLikelihood(likelihood),
	}, nil
}

// RegisterSpamReport files reporterID's report against phone. Each user may
// report a number once; a repeat fails with domain.ErrDuplicate.
func (s *Service) RegisterSpamReport(ctx context.Context, reporterID, phone string) (domain.SpamReportView, error) {
	if reporterID == "" {
		return domain.SpamReportView{}, domain.Unauthorized("authentication credentials were not provided")
	}
	req := SpamReportRequest{PhoneNumber: strings.TrimSpace(phone)}
	if err := s.validator.Validate(req); err != nil {
		return domain.SpamReportView{}, err
	}

	r, err := s.reputation.ReportSpam(ctx, req.PhoneNumber, reporterID)
	if err != nil {
		return domain.SpamReportView{}, err
	}
	s.logger.Info(map[string]any{"phone_number": r.PhoneNumber, "marked_by": r.MarkedBy}, "spam report filed")
	return r.View(), nil
}

// DeleteUser removes a user together with their contacts and reports, then
// flushes cached results, which may embed the user or their reports.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.directory.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info(map[string]any{"user_id": id}, "user deleted")

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn(map[string]any{"user_id": id, "error": err}, "result cache flush failed after user delete")
		return nil
	}
	s.metrics.IncrementCacheFlush("delete_user")
	return nil
}

// Import applies a seed through the same validation as the individual
// operations.
func (s *Service) Import(ctx context.Context, sd seed.Seed) (seed.Summary, error) {
	sum, err := seed.Apply(ctx, sd, registrar{s})
	if err != nil {
		return sum, err
	}
	s.logger.Info(map[string]any{
		"users":    sum.Users,
		"contacts": sum.Contacts,
		"reports":  sum.Reports,
		"skipped":  sum.Skipped,
	}, "seed imported")
	return sum, nil
}

// registrar adapts Service to seed.Registrar.
type registrar struct{ s *Service }

var _ seed.Registrar = registrar{}

func (r registrar) RegisterUser(ctx context.Context, username, phone, email string) (string, error) {
	u, err := r.s.RegisterUser(ctx, RegisterUserRequest{Username: username, PhoneNumber: phone, Email: email})
	return u.ID, err
}

func (r registrar) LookupUser(ctx context.Context, username string) (string, bool, error) {
	u, ok, err := r.s.directory.FindUserByUsername(ctx, username)
	return u.ID, ok, err
}

func (r registrar) AddContact(ctx context.Context, ownerID, name, phone, email string) error {
	_, err := r.s.CreateContact(ctx, ownerID, CreateContactRequest{ContactName: name, PhoneNumber: phone, Email: email})
	return err
}

func (r registrar) ReportSpam(ctx context.Context, reporterID, phone string) error {
	_, err := r.s.RegisterSpamReport(ctx, reporterID, phone)
	return err
}
