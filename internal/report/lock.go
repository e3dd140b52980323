// Package report produces the run's output artifacts: the xlsx workbook and
// the diagnostic plot set.
package report

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// ErrOutputLocked indicates the destination workbook is held open by another
// process.
var ErrOutputLocked = errors.New("output file is locked by another process")

// CheckWritable probes the destination path with an advisory lock and fails
// if another process holds it. The probe releases the lock immediately; it
// runs before any computation so a locked workbook aborts the run early.
func CheckWritable(path string) error {
	_, statErr := os.Stat(path)
	probeCreated := os.IsNotExist(statErr)

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("probing output file lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutputLocked, path)
	}
	if err := fl.Unlock(); err != nil {
		return err
	}
	// The lock probe creates the file when it is absent; don't leave an
	// empty workbook behind if the run later aborts.
	if probeCreated {
		return os.Remove(path)
	}
	return nil
}
