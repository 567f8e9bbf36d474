// Package jsonstore persists a single JSON document with crash-safe writes.
//
// Save writes to a temporary file in the same directory, fsyncs it and
// renames it over the target, so readers only ever observe the previous or
// the new document. Load quarantines an unparseable file by renaming it
// aside with a timestamp suffix.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt is wrapped by Load when the file existed but could not be
// decoded. The file has already been moved aside when this is returned.
var ErrCorrupt = errors.New("corrupt json document")

type Store struct {
	path string
	now  func() time.Time
}

func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

// Load decodes the document into v. found is false when no file exists.
func (s *Store) Load(v any) (found bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		quarantined, qerr := s.quarantine()
		if qerr != nil {
			return true, fmt.Errorf("%w: %s: %v (quarantine failed: %v)", ErrCorrupt, s.path, err, qerr)
		}
		return true, fmt.Errorf("%w: %s moved to %s: %v", ErrCorrupt, s.path, quarantined, err)
	}
	return true, nil
}

// Save atomically replaces the document with the JSON encoding of v.
func (s *Store) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

func (s *Store) quarantine() (string, error) {
	target := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(s.path, target); err != nil {
		return "", err
	}
	return target, nil
}
