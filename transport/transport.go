package transport

// Transport is a byte stream over one connected socket
type Transport interface {
	// Write sends data over the connection
	// Returns the number of bytes written
	Write(buf []byte) (int, error)

	// Read receives data from the connection
	// Returns the number of bytes read
	Read(buf []byte) (int, error)

	// Close closes the connection
	Close() error
}

// Connector is a Transport that dials out. For Unix sockets host is the
// socket path and port is ignored.
type Connector interface {
	Transport
	Connect(host string, port int) error
}

// HalfCloser is implemented by transports whose reading side can be shut
// down from another goroutine; a Read blocked at that moment returns.
type HalfCloser interface {
	CloseRead() error
}

// Destroyer is implemented by transports that hold resources beyond the
// socket itself, such as an io_uring instance.
type Destroyer interface {
	Destroy()
}

// Release closes t and frees any extra resources it holds
func Release(t Transport) {
	if d, ok := t.(Destroyer); ok {
		d.Destroy()
		return
	}
	t.Close()
}
