// Package daemon moves proxyd into the background.
//
// [Detach] re-executes the running binary in a new session with a marker in
// its environment and returns the child's pid; the parent then exits. The
// child calls [Prepare] and carries on with startup, so the PID file it
// writes names the long-lived process.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// EnvDetached is set to "1" in the environment of a detached child.
const EnvDetached = "PROXYD_DETACHED"

// ErrAlreadyDetached is returned by [Detach] when called from a child it
// started.
var ErrAlreadyDetached = errors.New("daemon: process is already detached")

// IsChild reports whether this process was started by [Detach].
func IsChild() bool {
	return os.Getenv(EnvDetached) == "1"
}

// Options configures [Detach].
type Options struct {
	// Args are the child's command-line arguments, without the program name.
	// Paths in them must be absolute; the child changes directory.
	Args []string
	// Env is appended to the current environment.
	Env []string
	// Output receives the child's stdout and stderr. Empty discards them.
	Output string
}

// Detach starts the current executable in the background and returns its
// pid. The child has no controlling terminal and does not inherit stdin.
func Detach(opts Options) (int, error) {
	if IsChild() {
		return 0, ErrAlreadyDetached
	}
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	outPath := opts.Output
	if outPath == "" {
		outPath = os.DevNull
	}
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open child output: %w", err)
	}
	defer out.Close()

	cmd := exec.Command(exe, opts.Args...)
	cmd.Env = append(append(os.Environ(), opts.Env...), EnvDetached+"=1")
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start detached process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release detached process: %w", err)
	}
	return pid, nil
}
