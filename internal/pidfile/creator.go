package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// ///////////////////////////////////////////////
// Creator
// ///////////////////////////////////////////////

// Creator opens or creates a file such that the returned handle is provably
// the object that was inspected. Symlinks, hard-linked files and anything
// other than a regular file are refused.
//
// The protocol is: lstat the path; if absent, create it with O_EXCL in one
// call; if present, open it without O_CREATE, fstat the handle and require
// the same (device, inode, mode) as the lstat, a single link and a regular
// file; then truncate through the handle.
type Creator struct {
	// log receives security-relevant refusals.
	log *slog.Logger
	// allowReopen enables the close-and-reopen fallback when the handle
	// cannot be truncated. The reopen truncates by path, so a swap between
	// close and reopen truncates the swapped-in object before re-verification
	// can refuse it.
	allowReopen bool
	// inspected, when set, runs after the initial lstat. Tests use it to
	// mutate the path inside the race window.
	inspected func()
	// truncate empties the verified handle. Tests replace it to exercise the
	// unsupported-truncation path.
	truncate func(*os.File) error
}

// CreatorOptions configures a [Creator].
type CreatorOptions struct {
	// AllowReopenFallback permits close-and-reopen-with-O_TRUNC when the
	// handle cannot be truncated. Off by default; see [Creator].
	AllowReopenFallback bool
	// Logger receives refusals. Nil means [slog.Default].
	Logger *slog.Logger
}

// NewCreator returns a Creator configured by opts.
func NewCreator(opts CreatorOptions) *Creator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Creator{
		log:         log,
		allowReopen: opts.AllowReopenFallback,
		truncate:    func(f *os.File) error { return f.Truncate(0) },
	}
}

// Acquire returns a writable, empty handle on path. A new file is created
// with mode 0600. The caller owns the handle and must close it. Acquire
// never removes a filesystem entry.
func (c *Creator) Acquire(path string) (*os.File, error) {
	before, err := lstatIdentity(path)
	if c.inspected != nil {
		c.inspected()
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrPathInspection, err)
		}
		return c.create(path)
	}
	return c.openExisting(path, before)
}

// create makes a new file. O_EXCL turns "does not exist" and "create" into
// a single atomic step, so a file planted after the lstat makes this fail.
func (c *Creator) create(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			c.log.Warn("PID file appeared after inspection", "path", path)
			return nil, fmt.Errorf("%w: %w", ErrCreationRaced, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrHandleOpenFailed, err)
	}
	return f, nil
}

// openExisting opens a file that the lstat found and verifies the handle.
func (c *Creator) openExisting(path string, before Identity) (*os.File, error) {
	// Refuse before opening: opening a fifo or device has side effects.
	if !before.IsRegular() {
		c.log.Warn("refusing non-regular PID file", "path", path, "identity", before.String())
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|openNoFollow, 0)
	if err != nil {
		if isSymlinkRefused(err) {
			c.log.Warn("PID file replaced by a symlink", "path", path)
			return nil, fmt.Errorf("%w: %s is now a symlink", ErrIdentityMismatch, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrHandleOpenFailed, err)
	}

	if err := c.verify(f, path, before); err != nil {
		f.Close()
		return nil, err
	}

	if err := c.truncate(f); err != nil {
		if !truncationUnsupported(err) {
			f.Close()
			return nil, fmt.Errorf("%w: truncate %s: %w", ErrWriteFailed, path, err)
		}
		f.Close()
		if !c.allowReopen {
			return nil, fmt.Errorf("%w: %s: %w", ErrTruncationUnsupported, path, err)
		}
		return c.reopenTruncated(path, before)
	}
	return f, nil
}

// reopenTruncated is the fallback for handles that cannot be truncated.
// It re-verifies after the reopen, but O_TRUNC has already been applied by
// then, so a swap in the window between close and reopen is detected only
// after the swapped-in file was emptied.
func (c *Creator) reopenTruncated(path string, before Identity) (*os.File, error) {
	c.log.Warn("truncation unsupported, reopening PID file by path; this reopen is racy", "path", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|openNoFollow, 0o600)
	if err != nil {
		if isSymlinkRefused(err) {
			return nil, fmt.Errorf("%w: %s is now a symlink", ErrIdentityMismatch, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrHandleOpenFailed, err)
	}
	if err := c.verify(f, path, before); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// verify compares the open handle against the earlier lstat observation.
func (c *Creator) verify(f *os.File, path string, before Identity) error {
	after, err := fstatIdentity(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPathInspection, err)
	}
	if !after.SameObject(before) {
		c.log.Warn("PID file changed between inspection and open",
			"path", path,
			"inspected", before.String(),
			"opened", after.String(),
		)
		return fmt.Errorf("%w: %s", ErrIdentityMismatch, path)
	}
	if after.Links > 1 {
		c.log.Warn("refusing hard-linked PID file", "path", path, "links", after.Links)
		return fmt.Errorf("%w: %s has %d links", ErrTooManyLinks, path, after.Links)
	}
	if !after.IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	return nil
}
