package pidfile

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"tools.zach/dev/proxyd/internal/logger"
)

// ///////////////////////////////////////////////
// Tamper Watch
// ///////////////////////////////////////////////

// Tamper reasons passed to the [File.Watch] callback.
const (
	TamperRemoved    = "removed"
	TamperReplaced   = "replaced"
	TamperUnreadable = "unreadable"
)

// Watch blocks until ctx is done, calling onChange whenever the installed
// PID file stops naming this process: it was removed, replaced by something
// other than a single-link regular file, rewritten with another pid, or
// became unreadable. onChange fires once per transition, not per event.
//
// The parent directory is watched with fsnotify so removal and recreation
// are both seen. If fsnotify is unavailable or fails, Watch falls back to
// stat polling.
func (f *File) Watch(ctx context.Context, onChange func(reason string)) {
	var last string
	check := func() {
		reason := f.tamperReason()
		logger.Trace(f.log, "PID file checked", "path", f.path, "reason", reason)
		if reason != last && reason != "" {
			f.log.Warn("PID file tampered with", "path", f.path, "reason", reason)
			onChange(reason)
		}
		last = reason
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		f.log.Info("fsnotify unavailable, polling PID file", "error", err)
		f.pollTamper(ctx, check)
		return
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(f.path)); err != nil {
		f.log.Info("cannot watch PID file directory, polling", "path", f.path, "error", err)
		f.pollTamper(ctx, check)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == f.path {
				logger.Trace(f.log, "PID file event", "path", f.path, "op", event.Op.String())
				check()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			f.log.Info("fsnotify error, polling PID file", "error", err)
			f.pollTamper(ctx, check)
			return
		}
	}
}

// pollTamper runs check every pollInterval until ctx is done.
func (f *File) pollTamper(ctx context.Context, check func()) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// tamperReason returns "" while the PID file is intact.
func (f *File) tamperReason() string {
	id, err := lstatIdentity(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TamperRemoved
		}
		return TamperUnreadable
	}
	if !id.IsRegular() || id.Links > 1 {
		return TamperReplaced
	}
	pid, err := Read(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return TamperRemoved
	case errors.Is(err, ErrInvalidPID):
		return TamperReplaced
	case err != nil:
		return TamperUnreadable
	case pid != f.getpid():
		return TamperReplaced
	}
	return ""
}
