// Package seed loads development fixtures (users, their address books and
// spam reports) from a YAML, JSON or TOML file and applies them through a
// Registrar.
package seed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/phonebook/internal/phonebook/domain"
)

// Seed is the fixture document.
type Seed struct {
	Users   []User   `koanf:"users"`
	Reports []Report `koanf:"reports"`
}

type User struct {
	Username    string    `koanf:"username"`
	PhoneNumber string    `koanf:"phone_number"`
	Email       string    `koanf:"email"`
	Contacts    []Contact `koanf:"contacts"`
}

type Contact struct {
	ContactName string `koanf:"contact_name"`
	PhoneNumber string `koanf:"phone_number"`
	Email       string `koanf:"email"`
}

// Report flags PhoneNumber as spam on behalf of the user named MarkedBy.
type Report struct {
	PhoneNumber string `koanf:"phone_number"`
	MarkedBy    string `koanf:"marked_by"`
}

// Summary counts what Apply created and what it skipped as already present.
type Summary struct {
	Users    int `json:"users"`
	Contacts int `json:"contacts"`
	Reports  int `json:"reports"`
	Skipped  int `json:"skipped"`
}

// Registrar is the write side Apply drives.
type Registrar interface {
	RegisterUser(ctx context.Context, username, phone, email string) (id string, err error)
	LookupUser(ctx context.Context, username string) (id string, ok bool, err error)
	AddContact(ctx context.Context, ownerID, name, phone, email string) error
	ReportSpam(ctx context.Context, reporterID, phone string) error
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported seed file type %q", filepath.Ext(path))
}

// Load reads a seed file. The format follows the file extension.
func Load(path string) (Seed, error) {
	parser, err := parserFor(path)
	if err != nil {
		return Seed{}, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Seed{}, fmt.Errorf("failed to load seed file %s: %w", path, err)
	}
	var s Seed
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Seed{}, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	return s, nil
}

// Apply registers every user with their contacts, then every report.
// A user that already exists is skipped along with its contacts, as is a
// report that was already filed, so a seed can be applied more than once.
// Any other error stops the import.
func Apply(ctx context.Context, s Seed, r Registrar) (Summary, error) {
	var sum Summary
	for _, u := range s.Users {
		id, err := r.RegisterUser(ctx, u.Username, u.PhoneNumber, u.Email)
		switch {
		case err == nil:
			sum.Users++
		case errors.Is(err, domain.ErrDuplicate):
			// an existing user keeps the address book it already has
			sum.Skipped += 1 + len(u.Contacts)
			continue
		default:
			return sum, fmt.Errorf("user %q: %w", u.Username, err)
		}

		for _, c := range u.Contacts {
			if err := r.AddContact(ctx, id, c.ContactName, c.PhoneNumber, c.Email); err != nil {
				return sum, fmt.Errorf("contact %q of %q: %w", c.ContactName, u.Username, err)
			}
			sum.Contacts++
		}
	}

	for _, rep := range s.Reports {
		id, ok, err := r.LookupUser(ctx, rep.MarkedBy)
		if err != nil {
			return sum, err
		}
		if !ok {
			return sum, domain.NotFoundf("report of %s: user %q not found", rep.PhoneNumber, rep.MarkedBy)
		}
		err = r.ReportSpam(ctx, id, rep.PhoneNumber)
		switch {
		case err == nil:
			sum.Reports++
		case errors.Is(err, domain.ErrDuplicate):
			sum.Skipped++
		default:
			return sum, fmt.Errorf("report of %s by %q: %w", rep.PhoneNumber, rep.MarkedBy, err)
		}
	}
	return sum, nil
}
