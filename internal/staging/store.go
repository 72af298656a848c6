// Package staging manages the data directory where uploaded files live before
// and after ingestion.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Store is a flat file store rooted at a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes r to a file named name inside the store and returns its path.
// Only the base name is used, so callers cannot escape the directory.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	path := s.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

// Path returns the path a file named name would occupy inside the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// List returns the names of all regular files in the store, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list staging dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes every regular file in the store. The directory itself stays.
func (s *Store) Clear() error {
	names, err := s.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("remove staged file %s: %w", name, err)
		}
	}
	return nil
}
