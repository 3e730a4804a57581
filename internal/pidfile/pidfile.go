// Package pidfile creates and manages the daemon's PID file without trusting
// the path between inspection and use.
//
// [Creator] implements the race-free open-or-create protocol. [File] builds
// on it to write the current process id once at startup, detect a running
// instance, watch for tampering and remove the file on shutdown.
//
// Usage:
//
//	pf, err := pidfile.New("/var/run/proxyd.pid", pidfile.Options{})
//	if err != nil {
//	    // bad path or directory not allowed
//	}
//	if err := pf.Install(); err != nil {
//	    // fatal: do not continue without a verified PID file
//	}
//	defer pf.Remove()
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Options configures a [File].
type Options struct {
	// AllowReopenFallback is passed to the [Creator]; see [CreatorOptions].
	AllowReopenFallback bool
	// AllowedDirs restricts the PID file's directory to paths matching one of
	// these doublestar patterns. Empty allows any directory.
	AllowedDirs []string
	// Logger is the log sink. Nil means [slog.Default].
	Logger *slog.Logger
}

// File is the singleton state file: a regular 0600 file holding the
// decimal pid of the owning process followed by a newline.
type File struct {
	// path is the absolute, cleaned PID file path.
	path string
	// creator performs the verified open-or-create.
	creator *Creator
	// log is the log sink.
	log *slog.Logger
	// getpid returns the identifier written to the file.
	getpid func() int
	// pollInterval is the stat interval used by [File.Watch] when fsnotify
	// is unavailable.
	pollInterval time.Duration
}

// New returns a File for path. The path is made absolute so later chdir
// calls (for example during detach) do not change which file is meant.
func New(path string, opts Options) (*File, error) {
	if path == "" {
		return nil, errors.New("PID file path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve PID file path: %w", err)
	}
	if err := checkAllowedDir(filepath.Dir(abs), opts.AllowedDirs); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &File{
		path: abs,
		creator: NewCreator(CreatorOptions{
			AllowReopenFallback: opts.AllowReopenFallback,
			Logger:              log,
		}),
		log:          log,
		getpid:       os.Getpid,
		pollInterval: 2 * time.Second,
	}, nil
}

// checkAllowedDir reports ErrDirectoryNotAllowed when patterns is non-empty
// and dir matches none of them.
func checkAllowedDir(dir string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	for _, pattern := range patterns {
		matched, err := doublestar.PathMatch(filepath.FromSlash(pattern), dir)
		if err != nil {
			return fmt.Errorf("invalid allowed PID directory pattern %q: %w", pattern, err)
		}
		if matched {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDirectoryNotAllowed, dir)
}

// Path returns the absolute PID file path.
func (f *File) Path() string { return f.path }

// ///////////////////////////////////////////////
// Install
// ///////////////////////////////////////////////

// Install acquires the PID file through the [Creator] and writes
// "<pid>\n". Any error means the file could not be verified or written and
// the daemon must not continue; the caller decides how to terminate.
func (f *File) Install() error {
	h, err := f.creator.Acquire(f.path)
	if err != nil {
		return err
	}

	pid := f.getpid()
	if _, err := h.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		h.Close()
		return fmt.Errorf("%w: write %s: %w", ErrWriteFailed, f.path, err)
	}
	if err := h.Sync(); err != nil {
		h.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrWriteFailed, f.path, err)
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrWriteFailed, f.path, err)
	}

	f.log.Info("PID file written", "path", f.path, "pid", pid)
	return nil
}

// ///////////////////////////////////////////////
// Read / Running / Remove
// ///////////////////////////////////////////////

// Read parses the pid stored at path. Surrounding whitespace is ignored.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, s)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: must be positive, got %d", ErrInvalidPID, pid)
	}
	return pid, nil
}

// Running reports whether the PID file names another live process. It
// returns the stored pid, which is non-zero for a stale file as well. A
// stale file is left in place; [File.Install] truncates and reuses it.
func (f *File) Running() (pid int, alive bool) {
	pid, err := Read(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.log.Debug("existing PID file unreadable", "path", f.path, "error", err)
		}
		return 0, false
	}
	if pid == f.getpid() {
		return pid, false
	}
	return pid, processAlive(pid)
}

// Remove deletes the PID file if it is still a single-link regular file
// naming this process. A missing file is not an error.
func (f *File) Remove() error {
	id, err := lstatIdentity(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrPathInspection, err)
	}
	if !id.IsRegular() || id.Links > 1 {
		return fmt.Errorf("%w: %s (%s)", ErrNotRegularFile, f.path, id)
	}

	pid, err := Read(f.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotOwner, err)
	}
	if pid != f.getpid() {
		return fmt.Errorf("%w: %s names pid %d", ErrNotOwner, f.path, pid)
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	f.log.Debug("PID file removed", "path", f.path)
	return nil
}
