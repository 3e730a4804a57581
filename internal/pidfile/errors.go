package pidfile

import "errors"

// Failure kinds returned by [Creator.Acquire] and [File]. Every returned
// error wraps exactly one of these; match with [errors.Is].
var (
	// ErrPathInspection is returned when the target cannot be stat'ed for a
	// reason other than not existing.
	ErrPathInspection = errors.New("cannot inspect PID file")

	// ErrCreationRaced is returned when the exclusive create finds the path
	// already present, i.e. someone created it after it was inspected.
	ErrCreationRaced = errors.New("PID file was created concurrently")

	// ErrIdentityMismatch is returned when the opened handle is not the
	// object that was inspected.
	ErrIdentityMismatch = errors.New("PID file changed before it could be opened")

	// ErrNotRegularFile is returned for symlinks, directories, devices,
	// fifos and sockets.
	ErrNotRegularFile = errors.New("PID file is not a regular file")

	// ErrTooManyLinks is returned when the target has more than one hard link.
	ErrTooManyLinks = errors.New("PID file has too many links")

	// ErrHandleOpenFailed is returned when the create or open call fails.
	ErrHandleOpenFailed = errors.New("cannot open PID file")

	// ErrWriteFailed is returned when truncating, writing, syncing or
	// closing the verified handle fails.
	ErrWriteFailed = errors.New("cannot write PID file")

	// ErrTruncationUnsupported is returned when the platform cannot truncate
	// an open handle and the reopen fallback is disabled.
	ErrTruncationUnsupported = errors.New("PID file truncation unsupported")

	// ErrInvalidPID is returned by [Read] for non-numeric or non-positive content.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrDirectoryNotAllowed is returned by [New] when the PID file directory
	// matches none of the configured allowed patterns.
	ErrDirectoryNotAllowed = errors.New("PID file directory not allowed")

	// ErrNotOwner is returned by [File.Remove] when the file no longer names
	// this process.
	ErrNotOwner = errors.New("PID file owned by another process")
)
