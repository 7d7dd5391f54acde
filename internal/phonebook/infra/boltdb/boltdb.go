// Package boltdb opens the phonebook database and defines its bucket layout.
//
// Records are JSON values keyed by an 8-byte big-endian sequence number, so a
// cursor walks them in insertion order. Secondary indexes are separate buckets
// whose keys are NUL-joined fields; index entries that point at a record end
// with the record's sequence number.
package boltdb

import (
	"bytes"
	"encoding/binary"
	"time"

	bbolt "go.etcd.io/bbolt"
)

var (
	// BucketUsers maps seq → User JSON.
	BucketUsers = []byte("users")
	// BucketUserIDs maps user ID → seq.
	BucketUserIDs = []byte("user_ids")
	// BucketUserPhones maps phone → user ID.
	BucketUserPhones = []byte("user_phones")
	// BucketUserNames maps username → user ID.
	BucketUserNames = []byte("user_names")

	// BucketContacts maps seq → Contact JSON.
	BucketContacts = []byte("contacts")
	// BucketContactPhones indexes phone\0seq.
	BucketContactPhones = []byte("contact_phones")
	// BucketContactOwners indexes owner\0phone\0seq.
	BucketContactOwners = []byte("contact_owners")

	// BucketReports maps phone\0userID → SpamReport JSON. The key is the
	// uniqueness guard for one report per number per user.
	BucketReports = []byte("reports")
	// BucketReportUsers indexes userID\0phone.
	BucketReportUsers = []byte("report_users")
)

var allBuckets = [][]byte{
	BucketUsers, BucketUserIDs, BucketUserPhones, BucketUserNames,
	BucketContacts, BucketContactPhones, BucketContactOwners,
	BucketReports, BucketReportUsers,
}

// SeqLen is the encoded length of a sequence number.
const SeqLen = 8

// Open opens (or creates) a bbolt database at path and ensures every bucket exists.
func Open(path string, timeout time.Duration) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Itob encodes a sequence number as a sortable key.
func Itob(v uint64) []byte {
	b := make([]byte, SeqLen)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Key joins parts with NUL separators.
func Key(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(0)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

// Prefix joins parts with NUL separators and appends a trailing NUL, so a
// scan over it never matches a longer final field.
func Prefix(parts ...string) []byte {
	return append(Key(parts...), 0)
}

// IndexKey is Prefix(parts...) followed by an encoded sequence number.
func IndexKey(seq uint64, parts ...string) []byte {
	return append(Prefix(parts...), Itob(seq)...)
}

// SeqOf returns the trailing sequence number of an index key.
func SeqOf(key []byte) ([]byte, bool) {
	if len(key) < SeqLen {
		return nil, false
	}
	return key[len(key)-SeqLen:], true
}

// ScanPrefix calls fn for every key in b starting with prefix, in key order.
// Keys and values are only valid for the duration of fn.
func ScanPrefix(b *bbolt.Bucket, prefix []byte, fn func(k, v []byte) error) error {
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// CollectPrefix returns copies of every key in b starting with prefix.
// Use it when the keys will be deleted, since deleting under a live cursor skips entries.
func CollectPrefix(b *bbolt.Bucket, prefix []byte) [][]byte {
	var keys [][]byte
	_ = ScanPrefix(b, prefix, func(k, _ []byte) error {
		keys = append(keys, bytes.Clone(k))
		return nil
	})
	return keys
}
