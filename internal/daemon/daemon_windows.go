// Windows detach: the child gets no console and its own process group, so
// console Ctrl+C events sent to the parent do not reach it.

//go:build windows

package daemon

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// Prepare is a no-op on Windows; new files already inherit the data
// directory's ACL.
func Prepare() error {
	return nil
}
