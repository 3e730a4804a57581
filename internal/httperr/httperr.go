// Package httperr renders the small HTML error page the daemon sends to a
// client when a request fails, and writes it to the client connection.
//
// A response is two writes: an HTTP/1.0 status line with fixed headers, then
// an HTML body. Both are formatted into fixed-capacity buffers; an oversized
// body is cut short (Content-Length always matches what is sent), an
// oversized header is an error.
package httperr

import (
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tools.zach/dev/proxyd/internal/bounded"
	"tools.zach/dev/proxyd/internal/clock"
)

// Default buffer capacities.
const (
	DefaultHeaderSize = 8 << 10
	DefaultBodySize   = 48 << 10
)

// DefaultHeading is the banner shown above the error text.
const DefaultHeading = "Proxy Error!"

// Server identity used when a Responder is built without templates.
const (
	DefaultServer  = "proxyd"
	DefaultVersion = "dev"
)

const headerFormat = "HTTP/1.0 %d %s\r\n" +
	"Server: %s/%s\r\n" +
	"Date: %s\r\n" +
	"Content-Type: text/html\r\n" +
	"Content-Length: %d\r\n" +
	"Connection: close\r\n" +
	"\r\n"

const bodyFormat = "<html><head><title>%s</title></head>\r\n" +
	"<body>\r\n" +
	"<font size=\"+2\">%s</font><br>\r\n" +
	"An error of type %d occurred: %s\r\n" +
	"<hr>\r\n" +
	"<font size=\"-1\"><em>Generated by %s (%s)</em></font>\r\n" +
	"</body></html>\r\n\r\n"

// ///////////////////////////////////////////////
// Message
// ///////////////////////////////////////////////

// Message is one error to report: status code, reason phrase for the status
// line and title, and detail text for the page body.
type Message struct {
	Code   int
	Reason string
	Detail string
}

// Status returns a Message using the standard reason phrase for code.
func Status(code int, detail string) Message {
	reason := http.StatusText(code)
	if reason == "" {
		reason = "Error"
	}
	return Message{Code: code, Reason: reason, Detail: detail}
}

// ///////////////////////////////////////////////
// Templates
// ///////////////////////////////////////////////

// TemplateOptions overrides the defaults used by [NewTemplates].
type TemplateOptions struct {
	// Heading replaces [DefaultHeading] when non-empty.
	Heading string
	// HeaderSize replaces [DefaultHeaderSize] when positive.
	HeaderSize int
	// BodySize replaces [DefaultBodySize] when positive.
	BodySize int
}

// Templates holds the immutable formatting inputs shared by every response.
// Build one at startup with [NewTemplates] and pass it to [NewResponder].
type Templates struct {
	server     string
	version    string
	heading    string
	headerSize int
	bodySize   int
}

// NewTemplates returns Templates identifying responses as coming from
// server at version.
func NewTemplates(server, version string, opts TemplateOptions) *Templates {
	t := &Templates{
		server:     oneLine(server),
		version:    oneLine(version),
		heading:    DefaultHeading,
		headerSize: DefaultHeaderSize,
		bodySize:   DefaultBodySize,
	}
	if opts.Heading != "" {
		t.heading = opts.Heading
	}
	if opts.HeaderSize > 0 {
		t.headerSize = opts.HeaderSize
	}
	if opts.BodySize > 0 {
		t.bodySize = opts.BodySize
	}
	return t
}

// ///////////////////////////////////////////////
// Responder
// ///////////////////////////////////////////////

// Responder renders [Message] values and writes them to client sinks.
type Responder struct {
	tmpl  *Templates
	clock clock.Clock
	log   *slog.Logger
}

// NewResponder returns a Responder. Nil templates identify responses as
// [DefaultServer] at [DefaultVersion]; a nil clock uses [clock.Real]; a nil
// logger uses [slog.Default].
func NewResponder(tmpl *Templates, clk clock.Clock, log *slog.Logger) *Responder {
	if tmpl == nil {
		tmpl = NewTemplates(DefaultServer, DefaultVersion, TemplateOptions{})
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Responder{tmpl: tmpl, clock: clk, log: log}
}

// Render formats msg into a header block and an HTML body. The header's
// Content-Length is the exact length of the returned body. A body that
// exceeds its buffer is truncated and logged; a header that exceeds its
// buffer returns an error wrapping [bounded.ErrTruncated].
func (r *Responder) Render(msg Message) (header, body []byte, err error) {
	t := r.tmpl

	b := bounded.New(t.bodySize)
	if _, err := fmt.Fprintf(b, bodyFormat,
		html.EscapeString(msg.Reason),
		html.EscapeString(t.heading),
		msg.Code,
		html.EscapeString(msg.Detail),
		html.EscapeString(t.server),
		html.EscapeString(t.version),
	); err != nil {
		if !errors.Is(err, bounded.ErrTruncated) {
			return nil, nil, fmt.Errorf("format error body: %w", err)
		}
		r.log.Warn("error page truncated", "code", msg.Code, "limit", t.bodySize)
	}

	h := bounded.New(t.headerSize)
	if _, err := fmt.Fprintf(h, headerFormat,
		msg.Code,
		oneLine(msg.Reason),
		t.server,
		t.version,
		r.clock.Now().UTC().Format(http.TimeFormat),
		b.Len(),
	); err != nil {
		return nil, nil, fmt.Errorf("format error header: %w", err)
	}

	return h.Bytes(), b.Bytes(), nil
}

// Send renders msg and writes the header then the body to w. Failures are
// logged and returned; the caller should abandon the connection.
func (r *Responder) Send(w io.Writer, msg Message) error {
	header, body, err := r.Render(msg)
	if err != nil {
		r.log.Error("cannot render error response", "code", msg.Code, "error", err)
		return err
	}
	if _, err := w.Write(header); err != nil {
		r.log.Error("cannot write error response header", "code", msg.Code, "error", err)
		return fmt.Errorf("write response header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		r.log.Error("cannot write error response body", "code", msg.Code, "error", err)
		return fmt.Errorf("write response body: %w", err)
	}
	r.log.Debug("error response sent", "code", msg.Code, "reason", msg.Reason, "bytes", len(header)+len(body))
	return nil
}

// oneLine removes CR and turns LF into a space so a value cannot end a
// header line early.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}
