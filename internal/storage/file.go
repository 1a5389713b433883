package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores every namespace in one JSON document, rewritten atomically
// (temp file + rename) on each change so a crash never leaves half a
// session behind.
type File struct {
	mu        sync.Mutex
	path      string
	namespace string
}

type fileDoc map[string]map[string][]byte

func NewFile(path, namespace string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage: file driver needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage: creating state dir: %w", err)
	}
	return &File{path: path, namespace: namespace}, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	v, ok := doc[f.namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if doc[f.namespace] == nil {
		doc[f.namespace] = make(map[string][]byte)
	}
	doc[f.namespace][key] = value
	return f.write(doc)
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[f.namespace][key]; !ok {
		return nil
	}
	delete(doc[f.namespace], key)
	return f.write(doc)
}

func (f *File) Close() error { return nil }

func (f *File) read() (fileDoc, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return fileDoc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading %s: %w", f.path, err)
	}
	doc := fileDoc{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("storage: decoding %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) write(doc fileDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
