//go:build !windows

package server

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// shortTempDir returns a directory whose paths fit in sun_path.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pxd")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestListen_UnixSocket(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "s.sock")
	ln, err := Listen(unixPrefix + path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	s := newTestServer(t)
	stop := startServer(t, s, ln)

	resp := fetch(t, "unix", path)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", resp.StatusCode)
	}

	if err := stop(); err != nil {
		t.Errorf("Serve() error = %v", err)
	}
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Errorf("socket file not removed on close: %v", err)
	}
}

func TestListen_ReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "s.sock")
	first, err := Listen(unixPrefix + path)
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	// Leave the socket file behind as a crashed process would.
	if ul, ok := first.(interface{ SetUnlinkOnClose(bool) }); ok {
		ul.SetUnlinkOnClose(false)
	}
	first.Close()

	second, err := Listen(unixPrefix + path)
	if err != nil {
		t.Fatalf("second Listen over stale socket: %v", err)
	}
	second.Close()
}

func TestListen_RefusesRegularFile(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "not-a-socket")
	if err := os.WriteFile(path, []byte("keep me"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Listen(unixPrefix + path)
	if err == nil || !strings.Contains(err.Error(), "not a socket") {
		t.Fatalf("Listen() error = %v, want not-a-socket refusal", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "keep me" {
		t.Errorf("file content changed to %q", data)
	}
}

func TestListen_EmptyUnixPath(t *testing.T) {
	if _, err := Listen(unixPrefix); err == nil {
		t.Error("Listen(\"unix:\") succeeded")
	}
}
