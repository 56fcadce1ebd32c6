package server

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// Server accepts connections and answers exactly one request on each.
// Every connection is served on its own goroutine with its own transport,
// buffer and request; only the handler and loggers are shared.
type Server struct {
	config  Config
	handler Handler
	logger  zerolog.Logger
	access  *AccessLogger
	factory transport.Factory

	wg sync.WaitGroup

	// mu guards live and draining
	mu       sync.Mutex
	live     map[transport.HalfCloser]struct{}
	draining bool
}

// NewServer validates cfg and builds a server around handler
func NewServer(cfg Config, handler Handler, logger zerolog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.NewInvalidArgumentError("handler must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := transport.NewFactory(cfg.Transport)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
		access:  NewAccessLogger(logger, cfg.ParseUserAgents),
		factory: factory,
		live:    make(map[transport.HalfCloser]struct{}),
	}, nil
}

// ListenAndServe listens on the configured address and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.config.Network == "unix" {
		if err := os.Remove(s.config.Addr); err != nil && !os.IsNotExist(err) {
			return errors.NewTransportError(
				errors.TransportErrorSocketCreateFailure,
				"failed to remove stale socket",
				err,
			)
		}
	}

	ln, err := net.Listen(s.config.Network, s.config.Addr)
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to listen on "+s.config.Addr,
			err,
		)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done. It closes ln, shuts
// down the reading side of live connections so none waits on an idle client,
// waits for in-flight exchanges and returns nil on cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("transport", string(s.config.Transport)).
		Msg("serving")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.drain()
				s.wg.Wait()
				s.logger.Info().Msg("server stopped")
				return nil
			}
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn().Err(err).Msg("accept timed out")
				continue
			}
			s.drain()
			s.wg.Wait()
			return errors.NewTransportError(
				errors.TransportErrorSocketConnectFailure,
				"accept failed",
				err,
			)
		}

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()

	start := time.Now()
	remote := conn.RemoteAddr().String()
	if s.config.ConnTimeout > 0 {
		conn.SetDeadline(start.Add(s.config.ConnTimeout))
	}

	tr, err := s.factory(conn)
	if err != nil {
		s.logger.Error().Err(err).Str("remote", remote).Msg("failed to set up transport")
		return
	}
	defer transport.Release(tr)

	if hc, ok := tr.(transport.HalfCloser); ok {
		s.track(hc)
		defer s.untrack(hc)
	}

	proto := protocol.NewHttp1Protocol(tr, s.config.MaxRequestBytes)

	var diag *protocol.Diagnostics
	if s.config.Diagnostics {
		diag = &protocol.Diagnostics{}
	}

	req, err := proto.ReadRequest(protocol.ParseOptions{Diagnostics: diag})

	var resp *protocol.HttpResponse
	switch {
	case err == nil:
		logDiagnostics(s.logger, req, diag)
		resp = dispatch(s.handler, req, s.logger)
	case errors.IsBadRequest(err):
		s.logger.Debug().Err(err).Str("remote", remote).Msg("rejecting request")
		resp = protocol.NewBadRequestResponse(err)
	case errors.IsConnectionClosed(err):
		return
	default:
		s.logger.Error().Err(err).Str("remote", remote).Msg("failed to read request")
		return
	}

	if err := proto.WriteResponse(resp); err != nil {
		s.logger.Error().Err(err).Str("remote", remote).Msg("failed to write response")
		return
	}

	s.access.Log(req, resp, remote, time.Since(start))
}

// track registers a connection for draining; one arriving after draining
// started has its read side shut down at once
func (s *Server) track(hc transport.HalfCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		hc.CloseRead()
		return
	}
	s.live[hc] = struct{}{}
}

func (s *Server) untrack(hc transport.HalfCloser) {
	s.mu.Lock()
	delete(s.live, hc)
	s.mu.Unlock()
}

// drain stops every live connection from waiting for more request bytes.
// Responses already being written are not affected.
func (s *Server) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draining = true
	for hc := range s.live {
		if err := hc.CloseRead(); err != nil {
			s.logger.Debug().Err(err).Msg("failed to interrupt connection")
		}
	}
	if n := len(s.live); n > 0 {
		s.logger.Info().Int("connections", n).Msg("interrupted live connections")
	}
}
