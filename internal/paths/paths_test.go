package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDataDirMethods(t *testing.T) {
	root := filepath.Join("home", "user", DataDirRel)
	d := DataDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PID", d.PID(), filepath.Join(root, "proxyd.pid")},
		{"Config", d.Config(), filepath.Join(root, "config.toml")},
		{"Log", d.Log(), filepath.Join(root, "proxyd.log")},
		{"Output", d.Output(), filepath.Join(root, "proxyd.out")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestDefault(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if got, want := Default().Root, filepath.Join(home, DataDirRel); got != want {
		t.Errorf("Default().Root = %q, want %q", got, want)
	}
}

func TestAbs(t *testing.T) {
	d, err := DataDir{Root: "rel"}.Abs()
	if err != nil {
		t.Fatalf("Abs() error = %v", err)
	}
	if !filepath.IsAbs(d.Root) || filepath.Base(d.Root) != "rel" {
		t.Errorf("Abs().Root = %q", d.Root)
	}
}

func TestEnsure(t *testing.T) {
	d := DataDir{Root: filepath.Join(t.TempDir(), "a", "b")}
	if err := d.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	info, err := os.Stat(d.Root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", d.Root)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		t.Errorf("mode = %o, want no group/other bits", info.Mode().Perm())
	}
	if err := d.Ensure(); err != nil {
		t.Errorf("second Ensure() error = %v", err)
	}
}
