package recio

import (
	"fmt"
	"os"
	"syscall"
)

// lock takes an advisory lock on the descriptor: exclusive for ReadWrite,
// shared for ReadOnly. On platforms without flock semantics this is a
// contractual no-op — the open-retry loop in Open still prevents
// livelock between cooperating peers.
func (rf *File) lock() error {
	how := syscall.LOCK_SH
	if rf.mode == ReadWrite {
		how = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(rf.f.Fd()), how|syscall.LOCK_NB); err != nil {
		return err
	}
	rf.locked = true
	return nil
}

func (rf *File) unlock() error {
	err := syscall.Flock(int(rf.f.Fd()), syscall.LOCK_UN)
	rf.locked = false
	return err
}

// CreateExclusive creates path only if it does not already exist,
// returning an error wrapping ErrSharingBusy if it does. This is the
// atomic primitive first-free filename scans (pending packets, instance
// scratch files) are built on.
func CreateExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSharingBusy, path)
		}
		return nil, fmt.Errorf("recio: create exclusive %s: %w", path, err)
	}
	return f, nil
}

// FirstFreeName probes names built from pattern(i) for i in [0, limit)
// and returns the first one that does not exist on disk, creating it
// exclusively as a zero-length placeholder and returning the open
// handle along with the chosen path. Returns ErrSharingBusy if every
// slot in the range is taken.
func FirstFreeName(limit int, pattern func(i int) string) (*os.File, string, error) {
	for i := 0; i < limit; i++ {
		path := pattern(i)
		f, err := CreateExclusive(path)
		if err == nil {
			return f, path, nil
		}
	}
	return nil, "", fmt.Errorf("%w: exhausted %d name slots", ErrSharingBusy, limit)
}
