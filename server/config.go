package server

import (
	"fmt"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// Config holds server settings. The zero value is not usable; start from DefaultConfig.
type Config struct {
	// Network is "tcp" or "unix".
	Network string
	// Addr is host:port for tcp or a socket path for unix.
	Addr string
	// Transport selects the per-connection I/O implementation.
	Transport transport.Kind
	// MaxRequestBytes bounds the buffered request, headers and body together.
	MaxRequestBytes int
	// ConnTimeout bounds the whole exchange on one connection. Only the net
	// transport honours it; io_uring transports work on a duplicated descriptor.
	ConnTimeout time.Duration
	// Diagnostics logs entries that lenient parsing dropped.
	Diagnostics bool
	// ParseUserAgents adds the user agent family to the access log.
	ParseUserAgents bool
}

// DefaultConfig returns settings suitable for local development
func DefaultConfig() Config {
	return Config{
		Network:         "tcp",
		Addr:            "127.0.0.1:8080",
		Transport:       transport.KindNet,
		MaxRequestBytes: protocol.DefaultMaxMessageBytes,
		ConnTimeout:     30 * time.Second,
		ParseUserAgents: true,
	}
}

// Validate checks that the configuration can be served
func (c Config) Validate() error {
	if c.Network != "tcp" && c.Network != "unix" {
		return errors.NewInvalidArgumentError(fmt.Sprintf("unsupported network %q", c.Network))
	}
	if c.Addr == "" {
		return errors.NewInvalidArgumentError("listen address must not be empty")
	}
	if c.MaxRequestBytes <= 0 {
		return errors.NewInvalidArgumentError("max request bytes must be positive")
	}
	if c.ConnTimeout < 0 {
		return errors.NewInvalidArgumentError("connection timeout must not be negative")
	}
	if _, err := transport.NewFactory(c.Transport); err != nil {
		return err
	}
	return nil
}
