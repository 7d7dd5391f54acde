package domain

import (
	"bytes"
	"encoding/json"
)

// NullString is an optional string that marshals to JSON null when not Valid.
// It keeps "no value on file" distinct from the empty string.
type NullString struct {
	String string
	Valid  bool
}

// SomeString returns a valid NullString holding s.
func SomeString(s string) NullString {
	return NullString{String: s, Valid: true}
}

// NullStringFrom returns a valid NullString for a non-empty s and an invalid one otherwise.
func NullStringFrom(s string) NullString {
	if s == "" {
		return NullString{}
	}
	return SomeString(s)
}

// Ptr returns a pointer to a copy of n.
func (n NullString) Ptr() *NullString {
	return &n
}

func (n NullString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String)
}

func (n *NullString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = NullString{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = SomeString(s)
	return nil
}
