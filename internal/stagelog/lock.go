package stagelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the output directory while artifacts are being
// written or cleared.
const LockFileName = ".exampipe.lock"

// ErrLocked reports that another process holds the output directory lock.
var ErrLocked = errors.New("output directory is in use by another exampipe process")

// Lock guards the output directory against concurrent runs and clears.
type Lock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the output directory lock without blocking.
func AcquireLock(outputDir string) (*Lock, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, LockFileName)
	l := &Lock{path: path, lock: flock.New(path)}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return l, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Artifacts lists every stage output path inside outputDir in stage order.
func Artifacts(outputDir string) []string {
	return []string{
		filepath.Join(outputDir, TranscribedFile),
		filepath.Join(outputDir, PerturbedFile),
		filepath.Join(outputDir, ValidatedFile),
		filepath.Join(outputDir, DocumentFile),
	}
}
