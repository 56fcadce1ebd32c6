package transport

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/nczempin/httpd-go-uring/errors"
)

// fileConn is implemented by *net.TCPConn and *net.UnixConn
type fileConn interface {
	File() (*os.File, error)
}

// socketFile returns a duplicate of conn's descriptor and closes conn.
// Calling Fd on the duplicate puts it in blocking mode, which io_uring
// handles fine.
func socketFile(conn net.Conn) (*os.File, error) {
	defer conn.Close()

	fc, ok := conn.(fileConn)
	if !ok {
		return nil, errors.NewTransportError(
			errors.TransportErrorAttachFailure,
			fmt.Sprintf("connection type %T has no file descriptor", conn),
			nil,
		)
	}

	file, err := fc.File()
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorAttachFailure,
			"failed to duplicate socket",
			err,
		)
	}
	return file, nil
}

// dial connects with the standard dialer, classifying failures
func dial(network, address string) (net.Conn, error) {
	conn, err := net.Dial(network, address)
	if err == nil {
		return conn, nil
	}

	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return nil, errors.NewTransportError(
			errors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", address),
			err,
		)
	}
	return nil, errors.NewTransportError(
		errors.TransportErrorSocketConnectFailure,
		fmt.Sprintf("failed to connect to %s", address),
		err,
	)
}

// dialSocket dials and hands back the socket as a file for a ring transport to adopt
func dialSocket(network, address string) (*os.File, error) {
	conn, err := dial(network, address)
	if err != nil {
		return nil, err
	}
	return socketFile(conn)
}

func errAlreadyConnected() error {
	return errors.NewTransportError(
		errors.TransportErrorSocketConnectFailure,
		"already connected",
		nil,
	)
}

// checkAttach validates an Attach call on a transport that may already own a socket
func checkAttach(connected bool, file *os.File) error {
	if connected {
		return errors.NewTransportError(errors.TransportErrorAttachFailure, "already connected", nil)
	}
	if file == nil {
		return errors.NewTransportError(errors.TransportErrorAttachFailure, "nil socket file", nil)
	}
	return nil
}

// shutdownRead stops further receives on the socket behind fd
func shutdownRead(fd int) error {
	if err := syscall.Shutdown(fd, syscall.SHUT_RD); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to shut down read side",
			err,
		)
	}
	return nil
}
