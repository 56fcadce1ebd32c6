package transport

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/iceber/iouring-go"
	"github.com/nczempin/httpd-go-uring/errors"
)

// ringQueueDepth is the submission queue size of every io_uring instance
const ringQueueDepth = 32

// ringConn performs socket I/O through an iceber/iouring-go ring.
// It backs both TcpTransport and UnixTransport.
type ringConn struct {
	iour *iouring.IOURing

	// mu guards file and fd against CloseRead from another goroutine
	mu     sync.Mutex
	file   *os.File
	fd     int
	closed bool
}

func newRingConn() (*ringConn, error) {
	iour, err := iouring.New(ringQueueDepth)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return &ringConn{iour: iour, fd: -1}, nil
}

func (c *ringConn) connect(network, address string) error {
	if c.file != nil {
		return errAlreadyConnected()
	}
	file, err := dialSocket(network, address)
	if err != nil {
		return err
	}
	return c.Attach(file)
}

// Attach adopts an already connected socket, typically a duplicate of an
// accepted connection. The transport owns file and closes it in Close.
func (c *ringConn) Attach(file *os.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkAttach(c.file != nil, file); err != nil {
		return err
	}
	c.file = file
	c.fd = int(file.Fd())
	c.closed = false
	return nil
}

// usable reports why no I/O can be issued, if it can't
func (c *ringConn) usable(failure errors.TransportError) error {
	if c.closed {
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed", nil)
	}
	if c.file == nil {
		return errors.NewTransportError(failure, "not connected", nil)
	}
	return nil
}

// submit runs one prepared request on the ring and waits for its result
func (c *ringConn) submit(prep iouring.PrepRequest, failure errors.TransportError, op string) (int, error) {
	ch := make(chan iouring.Result, 1)
	if _, err := c.iour.SubmitRequest(prep, ch); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("failed to submit %s request", op),
			err,
		)
	}

	n, err := (<-ch).ReturnInt()
	if err != nil {
		return 0, errors.NewTransportError(failure, op+" failed", err)
	}
	return n, nil
}

// Write sends all of buf with io_uring send requests
func (c *ringConn) Write(buf []byte) (int, error) {
	if err := c.usable(errors.TransportErrorSocketWriteFailure); err != nil {
		return 0, err
	}

	written := 0
	for written < len(buf) {
		n, err := c.submit(iouring.Send(c.fd, buf[written:], 0), errors.TransportErrorSocketWriteFailure, "write")
		if err != nil {
			return written, err
		}
		if n <= 0 {
			return written, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}
		written += n
	}
	return written, nil
}

// Read issues one io_uring recv; zero bytes means the peer closed
func (c *ringConn) Read(buf []byte) (int, error) {
	if err := c.usable(errors.TransportErrorSocketReadFailure); err != nil {
		return 0, err
	}

	n, err := c.submit(iouring.Recv(c.fd, buf, 0), errors.TransportErrorSocketReadFailure, "read")
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}
	return n, nil
}

// Close closes the socket; it is safe to call more than once
func (c *ringConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.fd = -1
	c.closed = true

	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

// CloseRead shuts down the reading side so a pending recv completes with
// zero bytes. Writes keep working.
func (c *ringConn) CloseRead() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	return shutdownRead(c.fd)
}

// Destroy closes the socket and releases the ring
func (c *ringConn) Destroy() {
	c.Close()
	if c.iour != nil {
		c.iour.Close()
		c.iour = nil
	}
}

// TcpTransport is a ringConn dialled over TCP or adopted from a TCP listener
type TcpTransport struct {
	*ringConn
}

// NewTcpTransport creates an unconnected TCP transport with its own ring
func NewTcpTransport() (*TcpTransport, error) {
	conn, err := newRingConn()
	if err != nil {
		return nil, err
	}
	return &TcpTransport{ringConn: conn}, nil
}

// Connect dials host:port
func (t *TcpTransport) Connect(host string, port int) error {
	return t.connect("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
}

// UnixTransport is a ringConn over a Unix domain socket
type UnixTransport struct {
	*ringConn
}

// NewUnixTransport creates an unconnected Unix socket transport with its own ring
func NewUnixTransport() (*UnixTransport, error) {
	conn, err := newRingConn()
	if err != nil {
		return nil, err
	}
	return &UnixTransport{ringConn: conn}, nil
}

// Connect dials the socket at path; port is ignored
func (t *UnixTransport) Connect(path string, port int) error {
	return t.connect("unix", path)
}
