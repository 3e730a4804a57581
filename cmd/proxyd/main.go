// Package main implements proxyd, a daemon that installs a verified PID file
// and answers every client connection with a configured HTTP error page.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/spf13/pflag"
	rootpkg "tools.zach/dev/proxyd"
	"tools.zach/dev/proxyd/internal/atomicfile"
	"tools.zach/dev/proxyd/internal/clock"
	"tools.zach/dev/proxyd/internal/config"
	"tools.zach/dev/proxyd/internal/daemon"
	"tools.zach/dev/proxyd/internal/httperr"
	"tools.zach/dev/proxyd/internal/logger"
	"tools.zach/dev/proxyd/internal/paths"
	"tools.zach/dev/proxyd/internal/pidfile"
	"tools.zach/dev/proxyd/internal/server"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via -ldflags "-X main.version=1.2.3".
var version = "dev"

// resolveVersion returns [version] when set by ldflags, otherwise a
// "dev+<hash>" tag built from the VCS info embedded by the Go toolchain.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	tag := "dev+" + revision[:min(7, len(revision))]
	if dirty {
		tag += ".dirty"
	}
	return tag
}

// ///////////////////////////////////////////////
// Flags
// ///////////////////////////////////////////////

type options struct {
	dataDir     string
	configPath  string
	pidFile     string
	listen      string
	foreground  bool
	showVersion bool

	// foregroundSet records whether --foreground was given, so an explicit
	// --foreground=false overrides the config file.
	foregroundSet bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	flags := pflag.NewFlagSet(paths.BinaryName, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&o.dataDir, "data-dir", paths.Default().Root, "directory for config, log, and the default PID file")
	flags.StringVar(&o.configPath, "config", "", "config file (default <data-dir>/"+paths.ConfigFile+")")
	flags.StringVar(&o.pidFile, "pid-file", "", "PID file path, overriding daemon.pid_file")
	flags.StringVar(&o.listen, "listen", "", "listen address, overriding server.listen")
	flags.BoolVarP(&o.foreground, "foreground", "f", false, "do not detach; also log to stderr")
	flags.BoolVar(&o.showVersion, "version", false, "print the version and exit")

	if err := flags.Parse(args); err != nil {
		return o, err
	}
	if flags.NArg() > 0 {
		return o, fmt.Errorf("unexpected argument %q", flags.Arg(0))
	}
	o.foregroundSet = flags.Changed("foreground")
	return o, nil
}

// ///////////////////////////////////////////////
// Startup Helpers
// ///////////////////////////////////////////////

// seedConfig writes the annotated default config to path if nothing is there.
func seedConfig(path string) error {
	if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return atomicfile.Write(path, rootpkg.DefaultConfigTOML, 0o600)
}

// applyFlags overlays command-line values on cfg.
func applyFlags(cfg *config.Config, o options) {
	if o.pidFile != "" {
		cfg.Daemon.PIDFile = o.pidFile
	}
	if o.listen != "" {
		cfg.Server.Listen = o.listen
	}
	if o.foregroundSet {
		cfg.Daemon.Foreground = o.foreground
	}
}

// pidPath returns the absolute PID file path for cfg.
func pidPath(cfg *config.Config, dp paths.DataDir) (string, error) {
	p := cfg.Daemon.PIDFile
	if p == "" {
		p = dp.PID()
	}
	return filepath.Abs(p)
}

// absListen makes a relative unix socket path absolute. Other addresses are
// returned unchanged.
func absListen(addr string) (string, error) {
	p, ok := strings.CutPrefix(addr, "unix:")
	if !ok || filepath.IsAbs(p) {
		return addr, nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve socket path: %w", err)
	}
	return "unix:" + abs, nil
}

// childArgs passes the resolved settings to the detached child explicitly,
// so it does not depend on the parent's working directory.
func childArgs(dp paths.DataDir, cfgPath, pidFile, listen string) []string {
	return []string{
		"--data-dir", dp.Root,
		"--config", cfgPath,
		"--pid-file", pidFile,
		"--listen", listen,
	}
}

// errorMessage builds the message sent to every client.
func errorMessage(s config.ServerConfig) httperr.Message {
	msg := httperr.Status(s.ErrorCode, s.ErrorDetail)
	if s.ErrorReason != "" {
		msg.Reason = s.ErrorReason
	}
	return msg
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is the startup orchestrator. It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", paths.BinaryName, err)
		return exitUsage
	}
	ver := resolveVersion()
	if o.showVersion {
		fmt.Fprintf(stdout, "%s %s\n", paths.BinaryName, ver)
		return exitOK
	}

	dp, err := paths.DataDir{Root: o.dataDir}.Abs()
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return exitFail
	}
	if err := dp.Ensure(); err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return exitFail
	}

	cfgPath := o.configPath
	if cfgPath == "" {
		cfgPath = dp.Config()
		if err := seedConfig(cfgPath); err != nil {
			fmt.Fprintf(stderr, "warning: write default config: %v\n", err)
		}
	}
	if cfgPath, err = filepath.Abs(cfgPath); err != nil {
		fmt.Fprintf(stderr, "fatal: resolve config path: %v\n", err)
		return exitFail
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: load config: %v\n", err)
		return exitFail
	}
	applyFlags(cfg, o)

	pidFile, err := pidPath(cfg, dp)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: resolve PID file path: %v\n", err)
		return exitFail
	}
	if cfg.Server.Listen, err = absListen(cfg.Server.Listen); err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return exitFail
	}

	// Detach before the PID file is written so it names the daemon.
	if !cfg.Daemon.Foreground && !daemon.IsChild() {
		if pid, alive := runningInstance(pidFile, cfg); alive {
			fmt.Fprintf(stderr, "%s already running (pid %d)\n", paths.BinaryName, pid)
			return exitFail
		}
		pid, err := daemon.Detach(daemon.Options{
			Args:   childArgs(dp, cfgPath, pidFile, cfg.Server.Listen),
			Output: dp.Output(),
		})
		if err != nil {
			fmt.Fprintf(stderr, "fatal: %v\n", err)
			return exitFail
		}
		fmt.Fprintf(stdout, "%s started in background (pid %d, log %s)\n", paths.BinaryName, pid, dp.Log())
		return exitOK
	}
	if daemon.IsChild() {
		if err := daemon.Prepare(); err != nil {
			fmt.Fprintf(stderr, "fatal: %v\n", err)
			return exitFail
		}
	}

	level, ok := logger.ParseLevel(cfg.Log.Level)
	logOpts := logger.Options{Path: dp.Log(), Level: level, MaxSizeMB: cfg.Log.MaxSizeMB}
	if cfg.Daemon.Foreground {
		logOpts.Console = stderr
	}
	log, logCloser := logger.NewLogger(logOpts)
	defer logCloser.Close()
	slog.SetDefault(log)
	if !ok {
		log.Warn("unknown log level, using info", "level", cfg.Log.Level)
	}

	log.Info("proxyd starting",
		"version", ver,
		"pid", os.Getpid(),
		"data_dir", dp.Root,
		"config", cfgPath,
		"foreground", cfg.Daemon.Foreground,
	)

	return serve(ctx, cfg, pidFile, ver, log)
}

// runningInstance reports a live process named by the PID file at path.
func runningInstance(path string, cfg *config.Config) (int, bool) {
	pf, err := pidfile.New(path, pidfile.Options{
		AllowedDirs: cfg.Daemon.AllowedPIDDirs,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return 0, false
	}
	return pf.Running()
}

// serve installs the PID file and runs the server until ctx is cancelled, a
// shutdown signal arrives, or the PID file is tampered with under
// on_tamper = "exit". No server code runs without a verified PID file.
func serve(ctx context.Context, cfg *config.Config, pidFile, ver string, log *slog.Logger) int {
	pf, err := pidfile.New(pidFile, pidfile.Options{
		AllowReopenFallback: cfg.Daemon.ReopenFallback,
		AllowedDirs:         cfg.Daemon.AllowedPIDDirs,
		Logger:              log,
	})
	if err != nil {
		logger.Fail(log, "invalid PID file location", "path", pidFile, "error", err)
		return exitFail
	}
	if pid, alive := pf.Running(); alive {
		logger.Fail(log, "another instance is running", "pid", pid, "path", pf.Path())
		return exitFail
	}
	if err := pf.Install(); err != nil {
		logger.Fail(log, "cannot install PID file", "path", pf.Path(), "error", err)
		return exitFail
	}
	defer func() {
		if err := pf.Remove(); err != nil {
			log.Warn("PID file left in place", "path", pf.Path(), "error", err)
		}
	}()

	ctx, stopSignals := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stopSignals()
	ctx, cancel := context.WithCancelCause(ctx)

	// The watcher must stop before the deferred Remove, or removal would be
	// reported as tampering.
	watching := make(chan struct{})
	defer func() { <-watching }()
	defer cancel(nil)
	go func() {
		defer close(watching)
		pf.Watch(ctx, func(reason string) {
			if cfg.Daemon.OnTamper == "exit" {
				cancel(fmt.Errorf("PID file %s", reason))
			}
		})
	}()

	tmpl := httperr.NewTemplates(cfg.Server.Name, ver, httperr.TemplateOptions{
		Heading: cfg.Server.ErrorHeading,
	})
	srv := server.New(httperr.NewResponder(tmpl, clock.Real(), log), server.Options{
		Address:      cfg.Server.Listen,
		Message:      errorMessage(cfg.Server),
		WriteTimeout: cfg.Server.WriteTimeout(),
		Logger:       log,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error("server failed", "error", err)
		return exitFail
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		log.Warn("shutting down", "cause", cause)
		return exitFail
	}
	log.Info("proxyd stopped")
	return exitOK
}
