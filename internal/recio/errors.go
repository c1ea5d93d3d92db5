package recio

import "errors"

// Sentinel errors returned by recio operations. Callers use errors.Is to
// distinguish kinds per the error-handling design: NotFound,
// InvalidArgument, SharingBusy and IoFailure all originate here.
var (
	// ErrNotFound indicates the requested path or record slot does not exist.
	ErrNotFound = errors.New("recio: not found")
	// ErrSharingBusy indicates the open-retry loop was exhausted because
	// another process held a conflicting lock on the file.
	ErrSharingBusy = errors.New("recio: sharing violation, file busy")
	// ErrShortIO indicates a read or write returned fewer bytes than requested.
	ErrShortIO = errors.New("recio: short read or write")
	// ErrInvalidArgument indicates an out-of-range offset or length.
	ErrInvalidArgument = errors.New("recio: invalid argument")
)
