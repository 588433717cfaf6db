// Package storage persists small string values by key: device ids,
// registration ids and quick login flags.
package storage

import (
	"strconv"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by ReadValue when no value is stored under the key.
var ErrNotFound = errors.New("storage: value not found")

// ValueStorage is a key addressed store. ClearValue on a missing key is not an error.
type ValueStorage interface {
	ReadValue(key string) (string, error)
	StoreValue(key, value string) error
	ClearValue(key string) error
}

// ReadOptional returns "" and no error when key is absent.
func ReadOptional(s ValueStorage, key string) (string, error) {
	v, err := s.ReadValue(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// ReadBool reads a flag written by StoreBool. Absent keys read as false.
func ReadBool(s ValueStorage, key string) (bool, error) {
	v, err := ReadOptional(s, key)
	if err != nil || v == "" {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "[storage.ReadBool] key %s", key)
	}
	return b, nil
}

// StoreBool writes a flag.
func StoreBool(s ValueStorage, key string, value bool) error {
	return s.StoreValue(key, strconv.FormatBool(value))
}
