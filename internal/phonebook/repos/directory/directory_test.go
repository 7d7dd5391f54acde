package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/infra/boltdb"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestDirectory(t *testing.T) (*Directory, *bbolt.DB) {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "dir.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, &clock.MockClock{CurrentTime: t0}), db
}

func mustUser(t *testing.T, d *Directory, name, phone, email string) domain.User {
	t.Helper()
	u, err := domain.NewUser(name, phone, domain.NullStringFrom(email))
	require.NoError(t, err)
	u, err = d.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func mustContact(t *testing.T, d *Directory, owner, name, phone string) domain.Contact {
	t.Helper()
	c, err := domain.NewContact(owner, name, phone, domain.NullString{})
	require.NoError(t, err)
	c, err = d.CreateContact(context.Background(), c)
	require.NoError(t, err)
	return c
}

func usernames(users []domain.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func TestCreateUser_AssignsIDAndTime(t *testing.T) {
	d, _ := newTestDirectory(t)
	u := mustUser(t, d, "alice", "555-0001", "alice@example.com")

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, t0, u.CreatedAt)

	got, ok, err := d.FindUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, u, got)
}

func TestCreateUser_Duplicates(t *testing.T) {
	d, _ := newTestDirectory(t)
	mustUser(t, d, "alice", "555-0001", "")

	_, err := d.CreateUser(context.Background(), domain.User{Username: "alice", PhoneNumber: "555-0002"})
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	_, err = d.CreateUser(context.Background(), domain.User{Username: "bob", PhoneNumber: "555-0001"})
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	// exact uniqueness: case variants are distinct accounts
	_, err = d.CreateUser(context.Background(), domain.User{Username: "Alice", PhoneNumber: "555-0003"})
	assert.NoError(t, err)
}

func TestCreateUser_Invalid(t *testing.T) {
	d, _ := newTestDirectory(t)
	_, err := d.CreateUser(context.Background(), domain.User{Username: "", PhoneNumber: "1"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestFindUserLookups(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()
	u := mustUser(t, d, "alice", "555-0001", "")

	got, ok, err := d.FindUserByPhone(ctx, " 555-0001 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, u.ID, got.ID)

	got, ok, err = d.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, u.ID, got.ID)

	_, ok, err = d.FindUserByPhone(ctx, "000")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = d.FindUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNameScans_RegistrationOrder(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()
	mustUser(t, d, "alice", "1", "")
	mustUser(t, d, "malice", "2", "")
	mustUser(t, d, "Alicia", "3", "")
	mustUser(t, d, "bob", "4", "")

	prefix, err := d.FindUsersByNamePrefix(ctx, "ALI")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "Alicia"}, usernames(prefix))

	contains, err := d.FindUsersByNameContains(ctx, "ali")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "malice", "Alicia"}, usernames(contains))

	none, err := d.FindUsersByNamePrefix(ctx, "zed")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateContact_UnknownOwner(t *testing.T) {
	d, _ := newTestDirectory(t)
	_, err := d.CreateContact(context.Background(), domain.Contact{OwnerID: "nobody", ContactName: "x", PhoneNumber: "1"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestContactLookups(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()
	a := mustUser(t, d, "alice", "1", "")
	b := mustUser(t, d, "bob", "2", "")

	mustContact(t, d, a.ID, "Plumber", "555-1234")
	mustContact(t, d, b.ID, "Joe", "555-1234")
	mustContact(t, d, a.ID, "Plumber again", "555-1234")
	mustContact(t, d, a.ID, "Other", "555-12345")

	all, err := d.FindContactsByPhone(ctx, "555-1234")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Plumber", all[0].ContactName)
	assert.Equal(t, "Joe", all[1].ContactName)
	assert.Equal(t, "Plumber again", all[2].ContactName)

	c, ok, err := d.FindContact(ctx, a.ID, "555-1234")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Plumber", c.ContactName)

	_, ok, err = d.FindContact(ctx, b.ID, "555-12345")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = d.FindContact(ctx, a.ID, "555-123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteUser_Cascades(t *testing.T) {
	d, db := newTestDirectory(t)
	ctx := context.Background()
	a := mustUser(t, d, "alice", "1", "")
	b := mustUser(t, d, "bob", "2", "")
	mustContact(t, d, a.ID, "Plumber", "555-1234")
	mustContact(t, d, b.ID, "Joe", "555-1234")

	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		for _, r := range []struct{ phone, user string }{{"555-1234", a.ID}, {"555-1234", b.ID}, {"999", a.ID}} {
			if err := tx.Bucket(boltdb.BucketReports).Put(boltdb.Key(r.phone, r.user), []byte("{}")); err != nil {
				return err
			}
			if err := tx.Bucket(boltdb.BucketReportUsers).Put(boltdb.Key(r.user, r.phone), nil); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, d.DeleteUser(ctx, a.ID))

	_, ok, err := d.FindUserByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = d.FindUserByPhone(ctx, "1")
	assert.False(t, ok)

	contacts, err := d.FindContactsByPhone(ctx, "555-1234")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, b.ID, contacts[0].OwnerID)

	assert.Equal(t, Stats{Users: 1, Contacts: 1, Reports: 1}, d.Stats())

	// username and phone are free again
	mustUser(t, d, "alice", "1", "")

	err = d.DeleteUser(ctx, a.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCanceledContext(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.FindUsersByNamePrefix(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = d.FindContact(ctx, "x", "1")
	assert.ErrorIs(t, err, context.Canceled)
}
