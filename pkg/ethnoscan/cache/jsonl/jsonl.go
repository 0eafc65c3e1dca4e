// Package jsonl implements cache.Store over an append-only file of
// newline-delimited {"key","response"} records.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache"
)

// Store reads and appends cache records at Path. The file is scanned once,
// lazily, and the first record seen for each key is authoritative. Later
// records for a known key are ignored, never merged.
type Store struct {
	Path string

	mu     sync.Mutex
	index  map[string]string
	loaded bool
}

// Open returns a store backed by path. The file does not need to exist yet.
func Open(path string) *Store {
	return &Store{Path: path}
}

// Close implements cache.Store.
func (s *Store) Close() error { return nil }

// Get implements cache.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return "", false, err
	}
	v, ok := s.index[key]
	return v, ok, nil
}

// Put appends a record unless the key is already present.
func (s *Store) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.index[key]; ok {
		return nil
	}
	line, err := json.Marshal(cache.Entry{Key: key, Response: value})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append cache record: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.index[key] = value
	return nil
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.index = make(map[string]string)
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Scan(f, func(e cache.Entry) {
		if _, ok := s.index[e.Key]; !ok {
			s.index[e.Key] = e.Response
		}
	}); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// record mirrors cache.Entry with an optional response so that null or
// absent responses can be told apart from empty ones.
type record struct {
	Key      string  `json:"key"`
	Response *string `json:"response"`
}

// Scan calls fn for every well-formed record in r, in file order.
// Blank and malformed lines and records without a response are skipped.
func Scan(r io.Reader, fn func(cache.Entry)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec record
			if jerr := json.Unmarshal(line, &rec); jerr == nil && rec.Key != "" && rec.Response != nil {
				fn(cache.Entry{Key: rec.Key, Response: *rec.Response})
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
