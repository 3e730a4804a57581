// Package paths names the files proxyd keeps in its data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Data directory file names.
const (
	PIDFile    = "proxyd.pid"
	ConfigFile = "config.toml"
	LogFile    = "proxyd.log"
	OutputFile = "proxyd.out" // stdout and stderr of a detached process
	BinaryName = "proxyd"
	DataDirRel = ".proxyd" // relative to $HOME
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir builds paths rooted at a data directory.
type DataDir struct {
	Root string
}

// Default returns the DataDir under the user's home directory, or under the
// working directory when home is unknown.
func Default() DataDir {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{Root: DataDirRel}
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}
}

// Abs returns d with an absolute Root. Detaching changes the working
// directory, so relative roots must be resolved first.
func (d DataDir) Abs() (DataDir, error) {
	root, err := filepath.Abs(d.Root)
	if err != nil {
		return d, fmt.Errorf("resolve data dir: %w", err)
	}
	return DataDir{Root: root}, nil
}

// Ensure creates the data directory, readable only by its owner.
func (d DataDir) Ensure() error {
	if err := os.MkdirAll(d.Root, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// PID returns the default PID file path.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the config file path.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the log file path.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Output returns the path that receives a detached process's raw output.
func (d DataDir) Output() string { return filepath.Join(d.Root, OutputFile) }
