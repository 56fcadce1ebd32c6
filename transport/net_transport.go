package transport

import (
	stderrors "errors"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
)

// NetTransport implements Transport on top of a net.Conn.
// It is the portable transport used where io_uring is unavailable.
type NetTransport struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewNetTransport wraps an existing connection; conn may be nil until Connect
func NewNetTransport(conn net.Conn) *NetTransport {
	return &NetTransport{conn: conn}
}

// Connect dials host:port over TCP
func (t *NetTransport) Connect(host string, port int) error {
	if t.conn != nil {
		return errAlreadyConnected()
	}
	conn, err := dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Write sends data over the connection
func (t *NetTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketWriteFailure,
			"not connected",
			nil,
		)
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		if stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, syscall.ECONNRESET) {
			return n, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed during write", err)
		}
		if isTimeout(err) {
			return n, errors.NewTransportError(errors.TransportErrorTimeout, "write timed out", err)
		}
		return n, errors.NewTransportError(errors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Read receives data from the connection
func (t *NetTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"not connected",
			nil,
		)
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, syscall.ECONNRESET) {
			return n, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		if isTimeout(err) {
			return n, errors.NewTransportError(errors.TransportErrorTimeout, "read timed out", err)
		}
		return n, errors.NewTransportError(errors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// Close closes the connection; it is idempotent
func (t *NetTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "failed to close socket", err)
	}

	return nil
}

// CloseRead shuts down the reading side so a blocked Read sees end of
// stream. Connections without half-close get an expired read deadline.
func (t *NetTransport) CloseRead() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	if rc, ok := t.conn.(interface{ CloseRead() error }); ok {
		if err := rc.CloseRead(); err != nil {
			return errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"failed to shut down read side",
				err,
			)
		}
		return nil
	}
	return t.conn.SetReadDeadline(time.Now())
}

func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
