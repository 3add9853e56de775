//go:build !windows

package index

import (
	"errors"
	"os"
	"syscall"
)

// flock tries once to take an exclusive lock without blocking.
func flock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func funlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

// contended reports whether flock failed because someone else holds the lock.
func contended(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
