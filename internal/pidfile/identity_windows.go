// Windows file identity using GetFileInformationByHandle.
//
// The non-following observation opens the path with
// FILE_FLAG_OPEN_REPARSE_POINT so a symlink or junction is inspected itself
// rather than its target. Identity is (volume serial, file index, type
// attributes); NumberOfLinks feeds the single-link check.

//go:build windows

package pidfile

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/windows"
)

// openNoFollow is zero on Windows; reparse points are caught by the
// identity comparison instead.
const openNoFollow = 0

// typeAttributes are the attribute bits that distinguish object kinds.
// Other attributes (archive, hidden) may change without the object changing.
const typeAttributes = windows.FILE_ATTRIBUTE_DIRECTORY |
	windows.FILE_ATTRIBUTE_REPARSE_POINT |
	windows.FILE_ATTRIBUTE_DEVICE

// lstatIdentity observes path without following a reparse point.
func lstatIdentity(path string) (Identity, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Identity{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	h, err := windows.CreateFile(
		p,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return Identity{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	defer windows.CloseHandle(h)

	id, err := handleIdentity(h)
	if err != nil {
		return Identity{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	return id, nil
}

// fstatIdentity observes the object behind an open handle.
func fstatIdentity(f *os.File) (Identity, error) {
	id, err := handleIdentity(windows.Handle(f.Fd()))
	if err != nil {
		return Identity{}, &fs.PathError{Op: "fstat", Path: f.Name(), Err: err}
	}
	return id, nil
}

func handleIdentity(h windows.Handle) (Identity, error) {
	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return Identity{}, err
	}
	return Identity{
		Device: uint64(info.VolumeSerialNumber),
		Inode:  uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow),
		Mode:   info.FileAttributes & typeAttributes,
		Links:  uint64(info.NumberOfLinks),
	}, nil
}

func isRegular(mode uint32) bool {
	return mode&typeAttributes == 0
}

func isSymlinkRefused(error) bool {
	return false
}

func truncationUnsupported(err error) bool {
	return errors.Is(err, errors.ErrUnsupported)
}
