package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
)

// unixPrefix marks a Unix domain socket address.
const unixPrefix = "unix:"

// Listen opens a listener for addr: "unix:/path" for a Unix domain socket,
// a named pipe path on Windows, otherwise a TCP host:port.
func Listen(addr string) (net.Listener, error) {
	if ln, ok, err := listenPlatform(addr); ok {
		return ln, err
	}
	if path, ok := strings.CutPrefix(addr, unixPrefix); ok {
		return listenUnix(path)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// listenUnix binds a Unix socket at path, replacing a stale socket left by
// an earlier run. Any other kind of file at path is refused.
func listenUnix(path string) (net.Listener, error) {
	if path == "" {
		return nil, errors.New("listen: empty unix socket path")
	}
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.Mode().Type() == fs.ModeSocket:
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
	case err == nil:
		return nil, fmt.Errorf("listen on %s: path exists and is not a socket", path)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("inspect socket path %s: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return ln, nil
}
