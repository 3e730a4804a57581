// Non-Windows platforms have no extra address forms beyond TCP and Unix
// sockets.

//go:build !windows

package server

import "net"

func listenPlatform(string) (net.Listener, bool, error) {
	return nil, false, nil
}
