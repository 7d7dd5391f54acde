// Package directory stores registered users and their address-book contacts
// in bbolt. Records are kept in registration order, which is the order every
// multi-record lookup returns.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/common/utils"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/infra/boltdb"
)

// Directory implements the user and contact store on a shared bbolt database
// opened with boltdb.Open.
type Directory struct {
	db    *bbolt.DB
	clock clock.Clock
}

// Stats reports record counts.
type Stats struct {
	Users    int
	Contacts int
	Reports  int
}

// New returns a Directory over db. A nil clk uses the real clock.
func New(db *bbolt.DB, clk clock.Clock) *Directory {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Directory{db: db, clock: clk}
}

// CreateUser stores u with a fresh ID and creation time. Username and phone
// number must both be unused.
func (d *Directory) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	if err := u.Validate(); err != nil {
		return domain.User{}, domain.Wrap(err, domain.CodeValidation, "invalid user")
	}
	u.ID = uuid.NewString()
	u.CreatedAt = d.clock.Now().UTC()

	err := d.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(boltdb.BucketUserNames)
		phones := tx.Bucket(boltdb.BucketUserPhones)
		if names.Get([]byte(u.Username)) != nil {
			return domain.Duplicate("username", "A user with that username already exists.")
		}
		if phones.Get([]byte(u.PhoneNumber)) != nil {
			return domain.Duplicate("phone_number", "user with this phone number already exists.")
		}

		users := tx.Bucket(boltdb.BucketUsers)
		seq, err := users.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		key := boltdb.Itob(seq)
		if err := users.Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(boltdb.BucketUserIDs).Put([]byte(u.ID), key); err != nil {
			return err
		}
		if err := names.Put([]byte(u.Username), []byte(u.ID)); err != nil {
			return err
		}
		return phones.Put([]byte(u.PhoneNumber), []byte(u.ID))
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// CreateContact stores c under its owner, who must exist.
func (d *Directory) CreateContact(ctx context.Context, c domain.Contact) (domain.Contact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Contact{}, err
	}
	if err := c.Validate(); err != nil {
		return domain.Contact{}, domain.Wrap(err, domain.CodeValidation, "invalid contact")
	}
	c.ID = uuid.NewString()
	c.CreatedAt = d.clock.Now().UTC()

	err := d.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(boltdb.BucketUserIDs).Get([]byte(c.OwnerID)) == nil {
			return domain.NotFoundf("user %s not found", c.OwnerID)
		}
		contacts := tx.Bucket(boltdb.BucketContacts)
		seq, err := contacts.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := contacts.Put(boltdb.Itob(seq), data); err != nil {
			return err
		}
		if err := tx.Bucket(boltdb.BucketContactPhones).Put(boltdb.IndexKey(seq, c.PhoneNumber), nil); err != nil {
			return err
		}
		return tx.Bucket(boltdb.BucketContactOwners).Put(boltdb.IndexKey(seq, c.OwnerID, c.PhoneNumber), nil)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return c, nil
}

// FindUserByID returns the user with id.
func (d *Directory) FindUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return d.findUser(ctx, func(tx *bbolt.Tx) []byte {
		return tx.Bucket(boltdb.BucketUserIDs).Get([]byte(id))
	})
}

// FindUserByUsername returns the user registered under exactly username.
func (d *Directory) FindUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	return d.findUser(ctx, func(tx *bbolt.Tx) []byte {
		return seqForID(tx, tx.Bucket(boltdb.BucketUserNames).Get([]byte(username)))
	})
}

// FindUserByPhone returns the user registered with phone.
func (d *Directory) FindUserByPhone(ctx context.Context, phone string) (domain.User, bool, error) {
	phone = utils.CanonicalPhone(phone)
	return d.findUser(ctx, func(tx *bbolt.Tx) []byte {
		return seqForID(tx, tx.Bucket(boltdb.BucketUserPhones).Get([]byte(phone)))
	})
}

func seqForID(tx *bbolt.Tx, id []byte) []byte {
	if id == nil {
		return nil
	}
	return tx.Bucket(boltdb.BucketUserIDs).Get(id)
}

func (d *Directory) findUser(ctx context.Context, seqOf func(*bbolt.Tx) []byte) (domain.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, false, err
	}
	var (
		u     domain.User
		found bool
	)
	err := d.db.View(func(tx *bbolt.Tx) error {
		seq := seqOf(tx)
		if seq == nil {
			return nil
		}
		data := tx.Bucket(boltdb.BucketUsers).Get(seq)
		if data == nil {
			return fmt.Errorf("user index points at missing record %x", seq)
		}
		found = true
		return json.Unmarshal(data, &u)
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return u, found, nil
}

// FindUsersByNamePrefix returns users whose username starts with query,
// ignoring case, in registration order.
func (d *Directory) FindUsersByNamePrefix(ctx context.Context, query string) ([]domain.User, error) {
	return d.scanUsers(ctx, func(u domain.User) bool {
		return utils.HasFoldedPrefix(u.Username, query)
	})
}

// FindUsersByNameContains returns users whose username contains query,
// ignoring case, in registration order. Prefix matches are included.
func (d *Directory) FindUsersByNameContains(ctx context.Context, query string) ([]domain.User, error) {
	return d.scanUsers(ctx, func(u domain.User) bool {
		return utils.ContainsFolded(u.Username, query)
	})
}

func (d *Directory) scanUsers(ctx context.Context, match func(domain.User) bool) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.User
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltdb.BucketUsers).ForEach(func(_, v []byte) error {
			var u domain.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			if match(u) {
				out = append(out, u)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindContactsByPhone returns every contact with phone across all owners,
// in creation order.
func (d *Directory) FindContactsByPhone(ctx context.Context, phone string) ([]domain.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := boltdb.Prefix(utils.CanonicalPhone(phone))
	var out []domain.Contact
	err := d.db.View(func(tx *bbolt.Tx) error {
		contacts := tx.Bucket(boltdb.BucketContacts)
		return boltdb.ScanPrefix(tx.Bucket(boltdb.BucketContactPhones), prefix, func(k, _ []byte) error {
			c, err := loadContact(contacts, k)
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindContact returns the first contact ownerID holds for phone.
func (d *Directory) FindContact(ctx context.Context, ownerID, phone string) (domain.Contact, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Contact{}, false, err
	}
	prefix := boltdb.Prefix(ownerID, utils.CanonicalPhone(phone))
	var (
		c     domain.Contact
		found bool
	)
	err := d.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(boltdb.BucketContactOwners).Cursor().Seek(prefix)
		if k == nil || !bytes.HasPrefix(k, prefix) {
			return nil
		}
		var err error
		c, err = loadContact(tx.Bucket(boltdb.BucketContacts), k)
		found = err == nil
		return err
	})
	if err != nil {
		return domain.Contact{}, false, err
	}
	return c, found, nil
}

func loadContact(contacts *bbolt.Bucket, indexKey []byte) (domain.Contact, error) {
	var c domain.Contact
	seq, ok := boltdb.SeqOf(indexKey)
	if !ok {
		return c, fmt.Errorf("malformed contact index key %x", indexKey)
	}
	data := contacts.Get(seq)
	if data == nil {
		return c, fmt.Errorf("contact index points at missing record %x", seq)
	}
	err := json.Unmarshal(data, &c)
	return c, err
}

// DeleteUser removes a user together with every contact and spam report the
// user owns, in one transaction.
func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(boltdb.BucketUserIDs)
		users := tx.Bucket(boltdb.BucketUsers)
		seq := ids.Get([]byte(id))
		if seq == nil {
			return domain.NotFoundf("user %s not found", id)
		}
		seq = append([]byte(nil), seq...)

		var u domain.User
		if err := json.Unmarshal(users.Get(seq), &u); err != nil {
			return err
		}
		if err := deleteContacts(tx, id); err != nil {
			return err
		}
		if err := deleteReports(tx, id); err != nil {
			return err
		}
		if err := tx.Bucket(boltdb.BucketUserNames).Delete([]byte(u.Username)); err != nil {
			return err
		}
		if err := tx.Bucket(boltdb.BucketUserPhones).Delete([]byte(u.PhoneNumber)); err != nil {
			return err
		}
		if err := ids.Delete([]byte(id)); err != nil {
			return err
		}
		return users.Delete(seq)
	})
}

func deleteContacts(tx *bbolt.Tx, ownerID string) error {
	owners := tx.Bucket(boltdb.BucketContactOwners)
	phones := tx.Bucket(boltdb.BucketContactPhones)
	contacts := tx.Bucket(boltdb.BucketContacts)

	for _, k := range boltdb.CollectPrefix(owners, boltdb.Prefix(ownerID)) {
		c, err := loadContact(contacts, k)
		if err != nil {
			return err
		}
		seq, _ := boltdb.SeqOf(k)
		if err := phones.Delete(append(boltdb.Prefix(c.PhoneNumber), seq...)); err != nil {
			return err
		}
		if err := contacts.Delete(seq); err != nil {
			return err
		}
		if err := owners.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func deleteReports(tx *bbolt.Tx, userID string) error {
	byUser := tx.Bucket(boltdb.BucketReportUsers)
	reports := tx.Bucket(boltdb.BucketReports)

	prefix := boltdb.Prefix(userID)
	for _, k := range boltdb.CollectPrefix(byUser, prefix) {
		phone := string(k[len(prefix):])
		if err := reports.Delete(boltdb.Key(phone, userID)); err != nil {
			return err
		}
		if err := byUser.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns record counts.
func (d *Directory) Stats() Stats {
	var st Stats
	_ = d.db.View(func(tx *bbolt.Tx) error {
		st.Users = tx.Bucket(boltdb.BucketUsers).Stats().KeyN
		st.Contacts = tx.Bucket(boltdb.BucketContacts).Stats().KeyN
		st.Reports = tx.Bucket(boltdb.BucketReports).Stats().KeyN
		return nil
	})
	return st
}
