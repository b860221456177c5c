// Package artifact stores synthesized reply clips on disk and serves them
// back by name. Each reply gets its own file, so concurrent devices never
// overwrite each other's audio.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	namePrefix = "reply-"
	nameSuffix = ".wav"
)

var (
	// ErrNotFound is returned when no clip exists under a name.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for names this store could not have issued.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Store is a directory of reply clips. It is safe for concurrent use.
type Store struct {
	dir   string
	saved atomic.Int64

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewStore creates dir if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: creating %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a fresh name and returns that name. The file
// appears atomically: readers never see a partial clip.
func (s *Store) Save(_ context.Context, data []byte) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("artifact: generating name: %w", err)
	}
	name := namePrefix + id.String() + nameSuffix

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+namePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("artifact: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("artifact: writing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("artifact: publishing %s: %w", name, err)
	}
	s.saved.Add(1)
	return name, nil
}

// Open returns the clip stored under name. The caller closes the file.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("artifact: %w", err)
	}
	return f, info, nil
}

// ValidateName accepts only names of the form reply-<uuid>.wav, which rules
// out path traversal.
func ValidateName(name string) error {
	rest, ok := strings.CutPrefix(name, namePrefix)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	id, ok := strings.CutSuffix(rest, nameSuffix)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// Sweep deletes clips (and abandoned temp files) last modified more than
// maxAge ago. It returns the number of files removed.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("artifact: listing %s: %w", s.dir, err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ValidateName(name) != nil && !strings.HasPrefix(name, ".tmp-"+namePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Saved returns the number of clips written since the store was created.
func (s *Store) Saved() int64 {
	return s.saved.Load()
}
