package pidfile

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tools.zach/dev/proxyd/internal/logger"
)

func TestTamperReason(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, path string)
		want  string
	}{
		{
			name: "intact",
			setup: func(t *testing.T, path string) {
				os.WriteFile(path, []byte("7\n"), 0o600)
			},
			want: "",
		},
		{
			name:  "removed",
			setup: func(t *testing.T, path string) {},
			want:  TamperRemoved,
		},
		{
			name: "other pid",
			setup: func(t *testing.T, path string) {
				os.WriteFile(path, []byte("8\n"), 0o600)
			},
			want: TamperReplaced,
		},
		{
			name: "garbage",
			setup: func(t *testing.T, path string) {
				os.WriteFile(path, []byte("not a pid"), 0o600)
			},
			want: TamperReplaced,
		},
		{
			name: "directory",
			setup: func(t *testing.T, path string) {
				os.Mkdir(path, 0o700)
			},
			want: TamperReplaced,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "proxyd.pid")
			tt.setup(t, path)
			pf := newTestFile(t, path)
			pf.getpid = func() int { return 7 }
			if got := pf.tamperReason(); got != tt.want {
				t.Errorf("tamperReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatch_ReportsReplacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxyd.pid")
	pf := newTestFile(t, path)
	pf.pollInterval = 20 * time.Millisecond
	if err := pf.Install(); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reasons := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pf.Watch(ctx, func(reason string) { reasons <- reason })
	}()

	// Keep rewriting until the watcher has registered and seen a change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case reason := <-reasons:
			if reason != TamperReplaced {
				t.Errorf("reason = %q, want %q", reason, TamperReplaced)
			}
			cancel()
			<-done
			return
		case <-tick.C:
			os.WriteFile(path, []byte("1\n"), 0o600)
		case <-deadline:
			t.Fatal("no tamper notification within 5s")
		}
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	pf := newTestFile(t, filepath.Join(t.TempDir(), "proxyd.pid"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pf.Watch(ctx, func(string) {})
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

// lockedBuffer is written by the watcher goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_TracesChecks(t *testing.T) {
	var out lockedBuffer
	path := filepath.Join(t.TempDir(), "proxyd.pid")
	pf, err := New(path, Options{Logger: slog.New(logger.NewHandler(&out, logger.LevelTrace))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	pf.pollInterval = 20 * time.Millisecond
	if err := pf.Install(); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pf.Watch(ctx, func(string) {})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "PID file checked") {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatalf("no trace line within 5s:\n%s", out.String())
		}
		os.WriteFile(path, []byte("1\n"), 0o600)
		time.Sleep(25 * time.Millisecond)
	}
	cancel()
	<-done

	if !strings.Contains(out.String(), "[TRACE]") {
		t.Errorf("check not logged at TRACE:\n%s", out.String())
	}
}
