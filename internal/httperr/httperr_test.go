package httperr

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"tools.zach/dev/proxyd/internal/bounded"
	"tools.zach/dev/proxyd/internal/clock"
)

var testTime = time.Date(2001, time.November, 22, 0, 31, 10, 0, time.UTC)

func newTestResponder(opts TemplateOptions) *Responder {
	tmpl := NewTemplates("proxyd", "1.2.3", opts)
	return NewResponder(tmpl, clock.Fixed(testTime), slog.New(slog.DiscardHandler))
}

// ///////////////////////////////////////////////
// Render
// ///////////////////////////////////////////////

func TestRender_Header(t *testing.T) {
	r := newTestResponder(TemplateOptions{})
	header, body, err := r.Render(Message{Code: 404, Reason: "Not Found", Detail: "no such host"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "HTTP/1.0 404 Not Found\r\n" +
		"Server: proxyd/1.2.3\r\n" +
		"Date: Thu, 22 Nov 2001 00:31:10 GMT\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"Connection: close\r\n" +
		"\r\n"
	if string(header) != want {
		t.Errorf("header =\n%q\nwant\n%q", header, want)
	}
}

func TestRender_Body(t *testing.T) {
	r := newTestResponder(TemplateOptions{})
	_, body, err := r.Render(Message{Code: 404, Reason: "Not Found", Detail: "no such host"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"<title>Not Found</title>",
		DefaultHeading,
		"An error of type 404 occurred: no such host",
		"Generated by proxyd (1.2.3)",
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRender_ParsesAsHTTPResponse(t *testing.T) {
	r := newTestResponder(TemplateOptions{})
	header, body, err := r.Render(Status(http.StatusBadGateway, "upstream unreachable"))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(append(header, body...))), nil)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}
	if resp.ProtoMajor != 1 || resp.ProtoMinor != 0 {
		t.Errorf("Proto = %s, want HTTP/1.0", resp.Proto)
	}
	if resp.ContentLength != int64(len(body)) {
		t.Errorf("ContentLength = %d, want %d", resp.ContentLength, len(body))
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("body mismatch:\n%s\nwant\n%s", got, body)
	}
	date, err := http.ParseTime(resp.Header.Get("Date"))
	if err != nil || !date.Equal(testTime) {
		t.Errorf("Date = %q (%v), want %v", resp.Header.Get("Date"), err, testTime)
	}
}

func TestRender_EscapesMarkup(t *testing.T) {
	r := newTestResponder(TemplateOptions{})
	_, body, err := r.Render(Message{Code: 400, Reason: "<b>Bad</b>", Detail: `"x" & <script>`})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if bytes.Contains(body, []byte("<script>")) || bytes.Contains(body, []byte("<b>")) {
		t.Errorf("body contains unescaped markup:\n%s", body)
	}
	if !bytes.Contains(body, []byte("&lt;script&gt;")) {
		t.Errorf("body missing escaped detail:\n%s", body)
	}
}

func TestRender_FoldsLineBreaksInStatusLine(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"crlf", "Oops\r\nSet-Cookie: x=1", "HTTP/1.0 500 Oops Set-Cookie: x=1"},
		{"bare lf", "Oops\nSet-Cookie: x=1", "HTTP/1.0 500 Oops Set-Cookie: x=1"},
		{"bare cr", "Oops\rSet-Cookie: x=1", "HTTP/1.0 500 OopsSet-Cookie: x=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResponder(TemplateOptions{})
			header, _, err := r.Render(Message{Code: 500, Reason: tt.reason})
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			first, _, _ := strings.Cut(string(header), "\r\n")
			if first != tt.want {
				t.Errorf("status line = %q, want %q", first, tt.want)
			}
			if strings.Contains(string(header), "\nSet-Cookie") || strings.Contains(string(header), "\rSet-Cookie") {
				t.Errorf("reason injected a header line:\n%q", header)
			}
		})
	}
}

func TestNewResponder_NilDefaults(t *testing.T) {
	r := NewResponder(nil, nil, nil)
	header, body, err := r.Render(Status(404, "no such host"))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasPrefix(string(header), "HTTP/1.0 404 Not Found\r\n") {
		t.Errorf("status line wrong:\n%q", header)
	}
	if !strings.Contains(string(header), "Server: "+DefaultServer+"/"+DefaultVersion+"\r\n") {
		t.Errorf("header missing default Server line:\n%q", header)
	}
	if !strings.Contains(string(header), "Content-Length: "+strconv.Itoa(len(body))+"\r\n") {
		t.Errorf("Content-Length does not match body of %d bytes:\n%q", len(body), header)
	}
	if !strings.Contains(string(body), DefaultHeading) || !strings.Contains(string(body), "no such host") {
		t.Errorf("body missing heading or detail:\n%s", body)
	}
}

func TestRender_TruncatesBody(t *testing.T) {
	r := newTestResponder(TemplateOptions{BodySize: 64})
	header, body, err := r.Render(Message{Code: 500, Reason: "Internal", Detail: strings.Repeat("x", 1000)})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(body) != 64 {
		t.Errorf("len(body) = %d, want 64", len(body))
	}
	if !strings.Contains(string(header), "Content-Length: 64\r\n") {
		t.Errorf("header does not report truncated length:\n%q", header)
	}
}

func TestRender_HeaderOverflow(t *testing.T) {
	r := newTestResponder(TemplateOptions{HeaderSize: 32})
	_, _, err := r.Render(Message{Code: 500, Reason: "Internal"})
	if !errors.Is(err, bounded.ErrTruncated) {
		t.Errorf("Render() error = %v, want ErrTruncated", err)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{404, "Not Found"},
		{503, "Service Unavailable"},
		{599, "Error"},
	}
	for _, tt := range tests {
		if got := Status(tt.code, "").Reason; got != tt.want {
			t.Errorf("Status(%d).Reason = %q, want %q", tt.code, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// Send
// ///////////////////////////////////////////////

func TestSend_WritesHeaderThenBody(t *testing.T) {
	r := newTestResponder(TemplateOptions{})
	msg := Message{Code: 403, Reason: "Forbidden", Detail: "denied"}

	var buf bytes.Buffer
	if err := r.Send(&buf, msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	header, body, _ := r.Render(msg)
	if want := string(header) + string(body); buf.String() != want {
		t.Errorf("Send wrote\n%q\nwant\n%q", buf.String(), want)
	}
}

type failingWriter struct {
	okWrites int
	calls    int
}

var errSink = errors.New("sink closed")

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls > w.okWrites {
		return 0, errSink
	}
	return len(p), nil
}

func TestSend_WriteFailure(t *testing.T) {
	r := newTestResponder(TemplateOptions{})
	for _, ok := range []int{0, 1} {
		w := &failingWriter{okWrites: ok}
		err := r.Send(w, Status(500, "boom"))
		if !errors.Is(err, errSink) {
			t.Errorf("Send() after %d good writes error = %v, want errSink", ok, err)
		}
		if w.calls != ok+1 {
			t.Errorf("Send() made %d writes after failure, want %d", w.calls, ok+1)
		}
	}
}

func TestSend_RenderFailureWritesNothing(t *testing.T) {
	r := newTestResponder(TemplateOptions{HeaderSize: 8})
	var buf bytes.Buffer
	if err := r.Send(&buf, Status(500, "")); err == nil {
		t.Fatal("Send() succeeded with an undersized header buffer")
	}
	if buf.Len() != 0 {
		t.Errorf("Send wrote %d bytes, want 0", buf.Len())
	}
}
