package ddnsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the cached IP as the only content of a plain text file.
// An empty file means the cache was invalidated.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the state file.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store. A missing file is not an error.
func (s *FileStore) Load(ctx context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading state file %s: %w: %w", s.path, ErrStoreRead, err)
	}
	ip := string(data)
	if strings.TrimSpace(ip) == "" {
		return "", false, nil
	}
	return ip, true, nil
}

// Save implements Store.
//
// The value goes to a temporary file next to the state file which is then renamed over it,
// so a crash leaves either the old value or the new one.
func (s *FileStore) Save(ctx context.Context, ip string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file for %s: %w: %w", s.path, ErrStoreWrite, err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.WriteString(ip)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp state file %s: %w: %w", tmpPath, ErrStoreWrite, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming state file from %s to %s: %w: %w", tmpPath, s.path, ErrStoreWrite, err)
	}
	return nil
}
