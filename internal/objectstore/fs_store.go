package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Static errors.
var (
	ErrKeyEmpty  = errors.New("object key cannot be empty")
	ErrKeyUnsafe = errors.New("object key must not contain path separators")
	ErrDirEmpty  = errors.New("store directory cannot be empty")
)

// FSStore implements core.ObjectStore on a flat directory. It backs the CLI
// and tests, where a NATS deployment is not available.
type FSStore struct {
	dir string
}

// NewFSStore creates the directory when needed and returns a store over it.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, ErrDirEmpty
	}

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory '%s': %w", dir, err)
	}

	return &FSStore{dir: dir}, nil
}

// Download reads an object from the store directory.
func (s *FSStore) Download(_ context.Context, key string) ([]byte, error) {
	keyErr := validateKey(key)
	if keyErr != nil {
		return nil, keyErr
	}

	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}

	return data, nil
}

// Upload writes an object, overwriting any previous content under the key.
func (s *FSStore) Upload(_ context.Context, key string, data []byte) error {
	keyErr := validateKey(key)
	if keyErr != nil {
		return keyErr
	}

	err := os.WriteFile(filepath.Join(s.dir, key), data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}

	return nil
}

// Delete removes an object. A missing key is not an error.
func (s *FSStore) Delete(_ context.Context, key string) error {
	keyErr := validateKey(key)
	if keyErr != nil {
		return keyErr
	}

	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}

	return nil
}

// validateKey rejects keys that could escape the store directory. Keys are
// fingerprints and UUID-derived names, so anything with separators is a bug
// in the caller, not a legitimate object.
func validateKey(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	if strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: '%s'", ErrKeyUnsafe, key)
	}

	return nil
}
