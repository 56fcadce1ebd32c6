package transport

import (
	"fmt"
	"net"
	"os"

	"github.com/nczempin/httpd-go-uring/errors"
)

// Kind names a transport implementation
type Kind string

const (
	KindNet     Kind = "net"
	KindIoUring Kind = "iouring"
	KindUring   Kind = "uring"
)

// Factory turns an accepted connection into a Transport that owns it
type Factory func(conn net.Conn) (Transport, error)

// NewFactory returns the factory for kind
func NewFactory(kind Kind) (Factory, error) {
	switch kind {
	case KindNet, "":
		return newNetFromConn, nil
	case KindIoUring:
		return newRingFromConn, nil
	case KindUring:
		return newUringFromConn, nil
	default:
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("unknown transport kind %q", kind))
	}
}

func newNetFromConn(conn net.Conn) (Transport, error) {
	return NewNetTransport(conn), nil
}

// attacher is satisfied by the io_uring transports
type attacher interface {
	Transport
	Attach(file *os.File) error
}

func newRingFromConn(conn net.Conn) (Transport, error) {
	var (
		t   attacher
		err error
	)
	if _, ok := conn.(*net.UnixConn); ok {
		t, err = NewUnixTransport()
	} else {
		t, err = NewTcpTransport()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	return attachConn(t, conn)
}

func newUringFromConn(conn net.Conn) (Transport, error) {
	t, err := NewTcpTransportV2()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return attachConn(t, conn)
}

// attachConn hands a duplicate of conn's descriptor to t; conn itself is closed
func attachConn(t attacher, conn net.Conn) (Transport, error) {
	file, err := socketFile(conn)
	if err != nil {
		Release(t)
		return nil, err
	}
	if err := t.Attach(file); err != nil {
		file.Close()
		Release(t)
		return nil, err
	}
	return t, nil
}
