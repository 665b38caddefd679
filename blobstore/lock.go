package blobstore

import (
	"errors"
	"os"
	"path/filepath"
)

// LockName is the file LocalStore.Lock holds inside the store root.
const LockName = "LOCK"

// ErrLocked is returned when another process holds the store lock.
var ErrLocked = errors.New("blobstore: store is locked by another writer")

// Locker is implemented by stores that can exclude concurrent writers.
type Locker interface {
	// Lock acquires the writer lock without blocking. The returned func
	// releases it.
	Lock() (unlock func() error, err error)
}

// Lock takes an exclusive advisory lock on the store directory so that only
// one catalog writer commits images to it at a time.
func (s *LocalStore) Lock() (func() error, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(s.root, LockName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() error {
		err := unlockFile(f)
		return errors.Join(err, f.Close())
	}, nil
}
