package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc annotates one config field in the generated config.default.toml.
type FieldDoc struct {
	// Comment is written above the field.
	Comment string

	// Alternatives are written as commented-out lines below the field.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps dotted TOML key paths (e.g. "server.listen") to their
// [FieldDoc]. cmd/genconfig reads it when writing config.default.toml.
var ConfigDocs = map[string]FieldDoc{
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// Daemon
	"daemon": {
		Comment: "Process supervision and the PID file.",
	},
	"daemon.foreground": {
		Comment: "Stay attached to the terminal and copy the log to stderr.\nThe --foreground flag overrides this.",
	},
	"daemon.pid_file": {
		Comment: "PID file location. Defaults to proxyd.pid in the data directory.",
		Alternatives: []string{
			`pid_file = "/run/proxyd/proxyd.pid"`,
		},
	},
	"daemon.allowed_pid_dirs": {
		Comment: "Glob patterns the PID file's directory must match. Empty allows any directory.",
		Alternatives: []string{
			`allowed_pid_dirs = ["/run/**", "/var/run/**"]`,
		},
	},
	"daemon.reopen_fallback": {
		Comment: "When the filesystem cannot truncate an open file, reopen it with O_TRUNC instead.\nThe reopen is not atomic with the identity check; leave off unless required.",
	},
	"daemon.on_tamper": {
		Comment: "What to do if the PID file is deleted or overwritten while running.",
		Alternatives: []string{
			`on_tamper = "exit"`,
		},
	},

	// Server
	"server": {
		Comment: "Listener and the error page sent to every client.",
	},
	"server.name": {
		Comment: "Product name for the Server header and the page footer.",
	},
	"server.listen": {
		Comment: "Address to accept connections on.",
		Alternatives: []string{
			`listen = "unix:/run/proxyd/proxyd.sock"`,
			`listen = '\\.\pipe\proxyd'`,
		},
	},
	"server.error_code": {
		Comment: "HTTP status code sent to clients (400-599).",
	},
	"server.error_reason": {
		Comment: "Status line reason phrase. Empty uses the standard text for error_code.",
		Alternatives: []string{
			`error_reason = "Service Unavailable"`,
		},
	},
	"server.error_detail": {
		Comment: "Explanation shown in the page body.",
	},
	"server.error_heading": {},
	"server.write_timeout_seconds": {
		Comment: "Abandon a client whose socket blocks longer than this.",
	},

	// Log
	"log": {},
	"log.level": {
		Comment: "trace, debug, info, warn, error, or fail",
	},
	"log.max_size_mb": {
		Comment: "Rotate the log file at this size.",
	},
}
