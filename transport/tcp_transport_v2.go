package transport

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/godzie44/go-uring/uring"
	"github.com/nczempin/httpd-go-uring/errors"
)

// TcpTransportV2 runs socket I/O through a godzie44/go-uring ring using
// plain read and write operations, so it serves Unix sockets as well.
type TcpTransportV2 struct {
	ring *uring.Ring

	mu   sync.Mutex
	file *os.File
}

// NewTcpTransportV2 creates an unconnected transport with its own ring
func NewTcpTransportV2() (*TcpTransportV2, error) {
	ring, err := uring.New(ringQueueDepth)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return &TcpTransportV2{ring: ring}, nil
}

// Connect dials host:port
func (t *TcpTransportV2) Connect(host string, port int) error {
	if t.file != nil {
		return errAlreadyConnected()
	}
	file, err := dialSocket("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	return t.Attach(file)
}

// Attach adopts an already connected socket. The transport owns file afterwards.
func (t *TcpTransportV2) Attach(file *os.File) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := checkAttach(t.file != nil, file); err != nil {
		return err
	}
	t.file = file
	return nil
}

// complete queues op, submits it and waits for its completion
func (t *TcpTransportV2) complete(op uring.Operation, failure errors.TransportError, name string) (int, error) {
	if err := t.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("failed to queue %s request", name),
			err,
		)
	}
	if _, err := t.ring.Submit(); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("failed to submit %s request", name),
			err,
		)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	if err != nil {
		return 0, errors.NewTransportError(failure, "waiting for "+name, err)
	}
	defer t.ring.SeenCQE(cqe)

	if err := cqe.Error(); err != nil {
		return 0, errors.NewTransportError(failure, name+" failed", err)
	}
	return int(cqe.Res), nil
}

func (t *TcpTransportV2) notConnected(failure errors.TransportError) error {
	return errors.NewTransportError(failure, "not connected", nil)
}

// Write sends all of buf
func (t *TcpTransportV2) Write(buf []byte) (int, error) {
	if t.file == nil {
		return 0, t.notConnected(errors.TransportErrorSocketWriteFailure)
	}

	written := 0
	for written < len(buf) {
		n, err := t.complete(uring.Write(t.file.Fd(), buf[written:], 0), errors.TransportErrorSocketWriteFailure, "write")
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

// Read issues one read; zero bytes means the peer closed
func (t *TcpTransportV2) Read(buf []byte) (int, error) {
	if t.file == nil {
		return 0, t.notConnected(errors.TransportErrorSocketReadFailure)
	}

	n, err := t.complete(uring.Read(t.file.Fd(), buf, 0), errors.TransportErrorSocketReadFailure, "read")
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
func (t *TcpTransportV2) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

// CloseRead shuts down the reading side so a pending read completes with
// zero bytes. Writes keep working.
func (t *TcpTransportV2) CloseRead() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	return shutdownRead(int(t.file.Fd()))
}

// Destroy closes the socket and releases the ring
func (t *TcpTransportV2) Destroy() {
	t.Close()
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
}
