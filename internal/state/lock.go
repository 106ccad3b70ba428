package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StaleLockThreshold is the maximum age of a lock before it is treated
// as left over from a dead process.
const StaleLockThreshold = 10 * time.Minute

// ErrLocked reports that another operation already holds the lock for
// the same component identity.
var ErrLocked = errors.New("component is locked: another operation may be in progress")

// Lock is an exclusive per-identity lock backed by a lock file.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the lock for identity under dir. Creation uses
// O_CREATE|O_EXCL so exactly one process wins. A lock older than
// StaleLockThreshold is removed and reacquired once.
func AcquireLock(dir, identity string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, lockFileName(identity))

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, fmt.Errorf("%s: %w", identity, ErrLocked)
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", identity, ErrLocked)
		}
	}

	meta := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(meta); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock metadata: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Release removes the lock file. Releasing an already released lock is
// a no-op.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}
	return nil
}

// lockFileName maps an identity like "toolchain@riscv32imc-unknown-none-elf"
// onto a flat file name.
func lockFileName(identity string) string {
	return strings.ReplaceAll(identity, string(os.PathSeparator), "_") + ".lock"
}

func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}
