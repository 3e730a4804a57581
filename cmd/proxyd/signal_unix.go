// Shutdown signals on Unix. SIGTERM is what process managers and container
// runtimes send to request a graceful stop.

//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals returns the signals that stop the daemon.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
