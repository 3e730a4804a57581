// Package server accepts client connections and answers each one with the
// configured HTTP error page, then closes it. Requests are not parsed.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tools.zach/dev/proxyd/internal/httperr"
)

// Defaults applied by [New].
const (
	DefaultWriteTimeout = 10 * time.Second
	// lingerTimeout bounds how long unread request bytes are drained after
	// the response, so closing does not reset the connection mid-response.
	lingerTimeout = time.Second
	lingerLimit   = 64 << 10
)

// Options configures a [Server].
type Options struct {
	// Address is a TCP host:port, "unix:/path", or a Windows named pipe.
	Address string
	// Message is sent to every client.
	Message httperr.Message
	// WriteTimeout bounds each response write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	// Logger receives server events. Nil means slog.Default().
	Logger *slog.Logger
}

// Server is the connection layer.
type Server struct {
	addr         string
	responder    *httperr.Responder
	msg          httperr.Message
	writeTimeout time.Duration
	log          *slog.Logger

	active sync.WaitGroup
	served atomic.Uint64
	failed atomic.Uint64
}

// New returns a Server that answers with responder.
func New(responder *httperr.Responder, opts Options) *Server {
	s := &Server{
		addr:         opts.Address,
		responder:    responder,
		msg:          opts.Message,
		writeTimeout: opts.WriteTimeout,
		log:          opts.Logger,
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = DefaultWriteTimeout
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := Listen(s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// waits for in-flight responses to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	s.log.Info("server listening", "addr", ln.Addr().String(), "code", s.msg.Code)

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() != nil || errors.Is(aerr, net.ErrClosed) {
				break
			}
			var ne net.Error
			if errors.As(aerr, &ne) && ne.Timeout() {
				s.log.Warn("accept timed out", "error", aerr)
				continue
			}
			err = fmt.Errorf("accept: %w", aerr)
			break
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handle(conn)
		}()
	}

	s.active.Wait()
	s.log.Info("server stopped", "served", s.served.Load(), "failed", s.failed.Load())
	return err
}

// Served returns the number of responses written in full.
func (s *Server) Served() uint64 { return s.served.Load() }

// Failed returns the number of connections abandoned after a write error.
func (s *Server) Failed() uint64 { return s.failed.Load() }

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		s.log.Debug("set write deadline", "error", err)
	}
	if err := s.responder.Send(conn, s.msg); err != nil {
		s.failed.Add(1)
		return
	}
	s.served.Add(1)
	linger(conn)
}

// linger half-closes conn and discards what the client already sent.
func linger(conn net.Conn) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok || cw.CloseWrite() != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerLimit))
}
