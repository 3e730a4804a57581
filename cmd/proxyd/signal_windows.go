// Shutdown signals on Windows. The runtime maps CTRL_BREAK_EVENT and console
// close events to os.Interrupt; SIGTERM does not exist.

//go:build windows

package main

import "os"

// shutdownSignals returns the signals that stop the daemon.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
