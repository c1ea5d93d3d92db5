// Package recio implements the fixed-record binary access primitives that
// every on-disk store in the core (status, instance registry, message
// base, email store, packet files) is built on: retrying opens, advisory
// file locking, positional I/O, and first-free-name probing.
//
// The retry-on-open and flock behavior are grounded on the teacher's
// internal/jam file locking (.bsy lock files) and internal/multinode's
// syscall.Flock usage; this package generalizes both into one primitive
// layer instead of every store reimplementing its own lock dance.
package recio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Mode selects how a File is opened.
type Mode int

const (
	// ReadOnly opens the file for reading and takes a shared advisory lock.
	ReadOnly Mode = iota
	// ReadWrite opens (creating if absent) for read/write and takes an
	// exclusive advisory lock.
	ReadWrite
)

const (
	openRetryAttempts = 100
	openRetryInterval = 10 * time.Millisecond
)

// File is a positional, lock-guarded binary file handle.
type File struct {
	f      *os.File
	locked bool
	mode   Mode
}

// Open opens path in the given mode, retrying up to 100 times at 10ms
// intervals when the underlying open fails with a sharing/permission
// conflict (mirrors WWIV's CRYPT_ERROR_SHARING retry loop). It takes an
// advisory lock on the descriptor for the duration it is held open.
func Open(path string, mode Mode) (*File, error) {
	var flags int
	switch mode {
	case ReadOnly:
		flags = os.O_RDONLY
	case ReadWrite:
		flags = os.O_RDWR | os.O_CREATE
	default:
		return nil, fmt.Errorf("recio: unknown mode %d", mode)
	}

	var (
		f   *os.File
		err error
	)
	for attempt := 0; attempt < openRetryAttempts; attempt++ {
		f, err = os.OpenFile(path, flags, 0644)
		if err == nil {
			break
		}
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if !isSharingConflict(err) {
			return nil, fmt.Errorf("recio: open %s: %w", path, err)
		}
		time.Sleep(openRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSharingBusy, path, err)
	}

	rf := &File{f: f, mode: mode}
	if err := rf.lock(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSharingBusy, path, err)
	}
	return rf, nil
}

// Close releases the advisory lock and closes the underlying descriptor.
func (rf *File) Close() error {
	if rf.locked {
		_ = rf.unlock()
	}
	return rf.f.Close()
}

// ReadAt reads exactly n bytes at off. A short read is reported as
// an error wrapping ErrShortIO rather than silently
// truncated, so callers never mistake a torn read for a short record.
func (rf *File) ReadAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := rf.f.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("recio: read at %d: %w", off, err)
	}
	if read != n {
		return buf[:read], fmt.Errorf("%w: wanted %d got %d at offset %d", ErrShortIO, n, read, off)
	}
	return buf, nil
}

// WriteAt writes data at off. Writing fewer bytes than one record is a
// programming error per the component contract and panics rather than
// returning an error, since it can never be a legitimate runtime
// condition: callers always know their own record size at compile time.
func (rf *File) WriteAt(off int64, data []byte, recordSize int) error {
	if len(data) < recordSize {
		panic(fmt.Sprintf("recio: write of %d bytes is shorter than record size %d", len(data), recordSize))
	}
	n, err := rf.f.WriteAt(data, off)
	if err != nil {
		return fmt.Errorf("recio: write at %d: %w", off, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: wanted %d wrote %d at offset %d", ErrShortIO, len(data), n, off)
	}
	return nil
}

// Size returns the current file size in bytes.
func (rf *File) Size() (int64, error) {
	info, err := rf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("recio: stat: %w", err)
	}
	return info.Size(), nil
}

// Truncate resizes the file to n bytes.
func (rf *File) Truncate(n int64) error {
	if err := rf.f.Truncate(n); err != nil {
		return fmt.Errorf("recio: truncate to %d: %w", n, err)
	}
	return nil
}

// Seek repositions the read/write offset, mirroring os.File.Seek.
func (rf *File) Seek(offset int64, whence int) (int64, error) {
	return rf.f.Seek(offset, whence)
}

// Sync flushes the file to stable storage.
func (rf *File) Sync() error {
	return rf.f.Sync()
}

func isSharingConflict(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrExist)
}
