//go:build windows

package index

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// Locks cover the first byte of the file.
const lockedBytes = 1

func flock(f *os.File) error {
	ov := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, lockedBytes, 0, ov)
}

func funlock(f *os.File) error {
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, lockedBytes, 0, new(windows.Overlapped))
}

func contended(err error) bool {
	switch {
	case errors.Is(err, windows.ERROR_LOCK_VIOLATION), errors.Is(err, windows.ERROR_SHARING_VIOLATION):
		return true
	}
	return false
}
