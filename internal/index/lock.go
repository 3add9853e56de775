package index

import (
	"fmt"
	"os"
	"time"
)

const (
	lockFile = "index.lock"
	// lockWait bounds how long a rebuild waits for another process's rebuild.
	lockWait = 2 * time.Second
	lockPoll = 50 * time.Millisecond
)

// lockRebuild takes an exclusive advisory lock on path, polling until wait
// has passed. The returned func releases it.
func lockRebuild(path string, wait time.Duration) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open index lock: %w", err)
	}
	deadline := time.Now().Add(wait)
	for {
		err := flock(f)
		if err == nil {
			break
		}
		if !contended(err) {
			f.Close()
			return nil, fmt.Errorf("lock index: %w", err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, ErrIndexLocked
		}
		time.Sleep(lockPoll)
	}
	return func() {
		_ = funlock(f)
		_ = f.Close()
	}, nil
}
