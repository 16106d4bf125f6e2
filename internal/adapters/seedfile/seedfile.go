// Package seedfile persists a small entropy carry-over across daemon
// restarts, in the tradition of random-seed files. The saved seed is
// fed back with zero entropy credit on the next start, so a corrupt or
// stale file can never inflate the kernel's estimate.
package seedfile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SeedBytes is the fixed size of a saved seed.
const SeedBytes = 512

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the saved seed, or nil with no error when no seed file
// exists yet.
func (s *Store) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read seed file %s", s.path)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// Save writes the seed atomically (tmp + rename) with owner-only
// permissions.
func (s *Store) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create seed dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "write seed tmp")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "rename seed file")
	}
	return nil
}
