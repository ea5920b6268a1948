package jsonl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cenkalti/backoff/v4"

	"scoreloop/internal/storage"
)

// WriteFileAtomic writes data to a temp file in the target directory,
// fsyncs it, and renames it over path. A rename that fails because the
// target is busy is retried with bounded exponential backoff.
func (s *Store) WriteFileAtomic(path string, data []byte) error {
	tmp, err := s.writeTemp(path, data)
	if err != nil {
		return err
	}

	err = s.retryBusy(func() error { return os.Rename(tmp, path) })
	if err != nil {
		_ = os.Remove(tmp)
		s.log.Error().Err(err).Str("path", path).Str("op", "rename").Msg("atomic write failed")
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteFileExclusive creates path with data and never overwrites.
// Returns storage.ErrDuplicateKey if path already exists. The content is
// fully written before the name appears.
func (s *Store) WriteFileExclusive(path string, data []byte) error {
	tmp, err := s.writeTemp(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	err = s.retryBusy(func() error {
		lerr := os.Link(tmp, path)
		if errors.Is(lerr, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, storage.ErrDuplicateKey)
		}
		return lerr
	})
	if err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			s.log.Error().Err(err).Str("path", path).Str("op", "link").Msg("exclusive write failed")
		}
		return err
	}
	return nil
}

func (s *Store) writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	return tmp, nil
}

func (s *Store) retryBusy(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.busyBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithMaxRetries(b, uint64(max(s.busyRetries, 0)))

	return backoff.Retry(func() error {
		err := op()
		if err == nil || isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// isBusy reports errors another process holding the file can cause.
func isBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY) ||
		errors.Is(err, syscall.EACCES)
}
