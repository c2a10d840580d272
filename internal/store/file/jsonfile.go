// Package file stores records as flat JSON arrays, one file per collection.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// jsonFile is one JSON array on disk. Callers serialise access.
type jsonFile[T any] struct {
	path string
	// corrupt is set when the last read found undecodable content; the
	// next write moves that content aside before replacing it.
	corrupt bool
}

// read returns the decoded records. A missing file is an empty collection.
// Undecodable content is reported alongside an empty collection.
func (f *jsonFile[T]) read() ([]T, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.corrupt = false
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		f.corrupt = false
		return []T{}, nil
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		f.corrupt = true
		return []T{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	f.corrupt = false
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// write replaces the file atomically.
func (f *jsonFile[T]) write(records []T) error {
	if f.corrupt {
		if err := os.Rename(f.path, f.path+".corrupt"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move aside corrupt %s: %w", f.path, err)
		}
		f.corrupt = false
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// load reads for a write: corrupt content counts as empty so the write can
// proceed and move it aside.
func (f *jsonFile[T]) load() ([]T, error) {
	records, err := f.read()
	if err != nil && !f.corrupt {
		return nil, err
	}
	return records, nil
}
