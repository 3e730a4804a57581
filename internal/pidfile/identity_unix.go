// POSIX file identity using lstat(2)/fstat(2) from golang.org/x/sys/unix.
//
// This file is compiled on all non-Windows platforms. Identity is the raw
// (st_dev, st_ino, st_mode) triple; st_nlink feeds the single-link check.

//go:build !windows

package pidfile

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// openNoFollow makes the open of an existing path fail with ELOOP when the
// final component is a symlink.
const openNoFollow = unix.O_NOFOLLOW

// lstatIdentity observes path without following a trailing symlink.
func lstatIdentity(path string) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Identity{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	return statIdentity(&st), nil
}

// fstatIdentity observes the object behind an open handle.
func fstatIdentity(f *os.File) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return Identity{}, &fs.PathError{Op: "fstat", Path: f.Name(), Err: err}
	}
	return statIdentity(&st), nil
}

func statIdentity(st *unix.Stat_t) Identity {
	return Identity{
		Device: uint64(st.Dev),
		Inode:  uint64(st.Ino),
		Mode:   uint32(st.Mode),
		Links:  uint64(st.Nlink),
	}
}

func isRegular(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFREG
}

// isSymlinkRefused reports whether an O_NOFOLLOW open failed because the
// path had become a symlink.
func isSymlinkRefused(err error) bool {
	return errors.Is(err, unix.ELOOP)
}

// truncationUnsupported reports whether ftruncate failed because the
// filesystem or platform does not implement it.
func truncationUnsupported(err error) bool {
	return errors.Is(err, errors.ErrUnsupported) ||
		errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EOPNOTSUPP)
}
