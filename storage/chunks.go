package storage

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ChunkSize keeps each stored piece below the smallest platform keyring limit.
const ChunkSize = 2000

func chunkKey(key string, i int) string {
	return fmt.Sprintf("%s.%d", key, i)
}

// StoreChunked splits value into ChunkSize pieces stored under key.0, key.1, ...
// and writes the piece count under key last.
func StoreChunked(s ValueStorage, key, value string) error {
	previous, err := chunkCount(s, key)
	if err != nil {
		return err
	}
	n := (len(value) + ChunkSize - 1) / ChunkSize
	for i := 0; i < n; i++ {
		end := min((i+1)*ChunkSize, len(value))
		if err := s.StoreValue(chunkKey(key, i), value[i*ChunkSize:end]); err != nil {
			return errors.Wrapf(err, "[storage.StoreChunked] %s piece %d", key, i)
		}
	}
	for i := n; i < previous; i++ {
		if err := s.ClearValue(chunkKey(key, i)); err != nil {
			return errors.Wrapf(err, "[storage.StoreChunked] %s stale piece %d", key, i)
		}
	}
	return s.StoreValue(key, strconv.Itoa(n))
}

// ReadChunked joins the pieces written by StoreChunked. An absent key reads as "".
func ReadChunked(s ValueStorage, key string) (string, error) {
	n, err := chunkCount(s, key)
	if err != nil {
		return "", err
	}
	var value []byte
	for i := 0; i < n; i++ {
		piece, err := s.ReadValue(chunkKey(key, i))
		if err != nil {
			return "", errors.Wrapf(err, "[storage.ReadChunked] %s piece %d", key, i)
		}
		value = append(value, piece...)
	}
	return string(value), nil
}

// ClearChunked removes key and every piece stored under it.
func ClearChunked(s ValueStorage, key string) error {
	n, err := chunkCount(s, key)
	if err != nil {
		return err
	}
	if err := s.ClearValue(key); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.ClearValue(chunkKey(key, i)); err != nil {
			return errors.Wrapf(err, "[storage.ClearChunked] %s piece %d", key, i)
		}
	}
	return nil
}

func chunkCount(s ValueStorage, key string) (int, error) {
	v, err := ReadOptional(s, key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "[storage] piece count for %s", key)
	}
	return n, nil
}
