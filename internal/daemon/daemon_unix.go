// Unix detach: the child starts a new session, so it has no controlling
// terminal and survives the parent's exit and terminal hangups.

//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// Prepare restricts the file mode creation mask to the owner and moves to
// the root directory so the daemon does not pin a mounted filesystem.
func Prepare() error {
	unix.Umask(0o077)
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}
	return nil
}
