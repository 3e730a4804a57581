// listen_windows.go serves on named pipes (\\.\pipe\name) using the go-winio
// library, for local clients that cannot use TCP.

//go:build windows

package server

import (
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

// pipeSDDL grants full access to SYSTEM, administrators and the pipe owner.
const pipeSDDL = "D:P(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;OW)"

func listenPlatform(addr string) (net.Listener, bool, error) {
	if !strings.HasPrefix(strings.ToLower(addr), pipePrefix) {
		return nil, false, nil
	}
	ln, err := winio.ListenPipe(addr, &winio.PipeConfig{SecurityDescriptor: pipeSDDL})
	if err != nil {
		return nil, true, fmt.Errorf("listen on pipe %s: %w", addr, err)
	}
	return ln, true, nil
}
