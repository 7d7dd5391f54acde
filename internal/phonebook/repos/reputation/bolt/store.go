package bolt

import (
	"bytes"
	"encoding/json"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/infra/boltdb"
	"github.com/haukened/phonebook/internal/phonebook/repos/reputation"
)

// boltStore implements reputation.Store on the shared phonebook database.
type boltStore struct {
	db *bbolt.DB
}

var _ reputation.Store = (*boltStore)(nil)

// New returns a Store over db, which must have been opened with boltdb.Open.
func New(db *bbolt.DB) reputation.Store {
	return &boltStore{db: db}
}

// Add stores r. The duplicate check and the insert share one write
// transaction, and bbolt serialises writers, so two concurrent reports for
// the same pair cannot both succeed.
func (s *boltStore) Add(r domain.SpamReport) error {
	if err := r.Validate(); err != nil {
		return domain.Wrap(err, domain.CodeValidation, "invalid spam report")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(boltdb.BucketUserIDs).Get([]byte(r.MarkedBy)) == nil {
			return domain.NotFoundf("user %s not found", r.MarkedBy)
		}
		reports := tx.Bucket(boltdb.BucketReports)
		key := boltdb.Key(r.PhoneNumber, r.MarkedBy)
		if reports.Get(key) != nil {
			return domain.Duplicate("phone_number", "You have already marked this number as spam.")
		}
		if err := reports.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(boltdb.BucketReportUsers).Put(boltdb.Key(r.MarkedBy, r.PhoneNumber), nil)
	})
}

func (s *boltStore) Exists(phone, reporterID string) (bool, error) {
	var present bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		present = tx.Bucket(boltdb.BucketReports).Get(boltdb.Key(phone, reporterID)) != nil
		return nil
	})
	return present, err
}

func (s *boltStore) Count(phone string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		return boltdb.ScanPrefix(tx.Bucket(boltdb.BucketReports), boltdb.Prefix(phone), func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// VisitPhones walks report keys in order. Keys sharing a phone are adjacent,
// so each number is visited once.
func (s *boltStore) VisitPhones(visit func(phone string) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(boltdb.BucketReports).Cursor()
		var last []byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			phone, _, _ := bytes.Cut(k, []byte{0})
			if last != nil && bytes.Equal(phone, last) {
				continue
			}
			last = bytes.Clone(phone)
			if !visit(string(phone)) {
				return nil
			}
		}
		return nil
	})
}

func (s *boltStore) Stats() reputation.StoreStats {
	st := reputation.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		st.Reports = uint64(tx.Bucket(boltdb.BucketReports).Stats().KeyN)
		return nil
	})
	_ = s.VisitPhones(func(string) bool {
		st.Phones++
		return true
	})
	return st
}
