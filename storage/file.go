package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ ValueStorage = (*File)(nil)

// File keeps values in a single JSON document on disk. The whole document is
// rewritten on every change.
type File struct {
	path string
	lock sync.Mutex
}

type fileDocument struct {
	Values map[string]string `json:"values"`
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) ReadValue(key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	doc, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := doc.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) StoreValue(key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.Values[key] = value
	return f.save(doc)
}

func (f *File) ClearValue(key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Values[key]; !ok {
		return nil
	}
	delete(doc.Values, key)
	return f.save(doc)
}

func (f *File) load() (*fileDocument, error) {
	doc := &fileDocument{Values: map[string]string{}}
	content, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[File.load] read")
	}
	if err := json.Unmarshal(content, doc); err != nil {
		return nil, errors.Wrap(err, "[File.load] failed to parse storage file")
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

func (f *File) save(doc *fileDocument) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "[File.save] failed to create storage dir")
	}
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[File.save] marshal")
	}
	return os.WriteFile(f.path, content, 0o600)
}
