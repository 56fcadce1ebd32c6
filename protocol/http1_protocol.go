package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/transport"
)

// DefaultMaxMessageBytes bounds a buffered request when no limit is given
const DefaultMaxMessageBytes = 1 << 20

var contentLengthKey = []byte("content-length:")

// Http1Protocol frames one HTTP/1.x request per connection over a transport
// and writes the response back. It keeps no state across connections.
type Http1Protocol struct {
	transport       transport.Transport
	buffer          []byte
	headerSize      int
	contentLength   int
	maxMessageBytes int
}

// NewHttp1Protocol creates a protocol handler; maxMessageBytes <= 0 selects DefaultMaxMessageBytes
func NewHttp1Protocol(t transport.Transport, maxMessageBytes int) *Http1Protocol {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	return &Http1Protocol{
		transport:       t,
		buffer:          make([]byte, 0, 1024),
		contentLength:   -1,
		maxMessageBytes: maxMessageBytes,
	}
}

// ReadRequest reads one complete request from the transport and parses it
func (p *Http1Protocol) ReadRequest(opts ParseOptions) (*HttpRequest, error) {
	raw, err := p.ReadMessage()
	if err != nil {
		return nil, err
	}
	return ParseRequestWithOptions(string(raw), opts)
}

// ReadMessage reads up to the end of the header block plus Content-Length body
// bytes and returns the raw message. The slice is valid until the next call.
func (p *Http1Protocol) ReadMessage() ([]byte, error) {
	p.buffer = p.buffer[:0]
	p.headerSize = 0
	p.contentLength = -1

	readBuf := make([]byte, 4096)

	for !p.complete() {
		n, err := p.transport.Read(readBuf)
		if err != nil {
			if errors.IsConnectionClosed(err) && len(p.buffer) > 0 {
				return nil, errors.NewBadRequestError(
					errors.ProtocolErrorIncompleteMessage,
					"connection closed before complete request received",
				)
			}
			return nil, err
		}

		p.buffer = append(p.buffer, readBuf[:n]...)

		if p.headerSize == 0 {
			if pos := bytes.Index(p.buffer, headerSeparator); pos >= 0 {
				p.headerSize = pos + len(headerSeparator)

				length, err := parseContentLength(p.buffer[:p.headerSize])
				if err != nil {
					return nil, err
				}
				p.contentLength = length
			}
		}

		if err := p.checkSize(); err != nil {
			return nil, err
		}
	}

	return p.buffer[:p.headerSize+p.bodyLength()], nil
}

func (p *Http1Protocol) complete() bool {
	return p.headerSize > 0 && len(p.buffer) >= p.headerSize+p.bodyLength()
}

func (p *Http1Protocol) bodyLength() int {
	if p.contentLength < 0 {
		return 0
	}
	return p.contentLength
}

func (p *Http1Protocol) checkSize() error {
	size := len(p.buffer)
	if p.headerSize > 0 {
		size = p.headerSize + p.bodyLength()
	}
	if size > p.maxMessageBytes {
		return errors.NewBadRequestError(
			errors.ProtocolErrorMessageTooLarge,
			fmt.Sprintf("request exceeds %d bytes", p.maxMessageBytes),
		)
	}
	return nil
}

// parseContentLength extracts Content-Length from the header block, -1 if absent
func parseContentLength(headersView []byte) (int, error) {
	lines := bytes.Split(headersView, []byte(crlf))
	for _, line := range lines[1:] { // Skip request line
		if len(line) == 0 {
			break
		}

		if bytes.HasPrefix(bytes.ToLower(line), contentLengthKey) {
			valueStr := strings.TrimSpace(string(line[len(contentLengthKey):]))
			length, err := strconv.Atoi(valueStr)
			if err != nil || length < 0 {
				return -1, errors.NewBadRequestError(
					errors.ProtocolErrorInvalidHeader,
					fmt.Sprintf("invalid Content-Length: %q", valueStr),
				)
			}
			return length, nil
		}
	}
	return -1, nil
}

// WriteResponse serializes resp and writes it to the transport
func (p *Http1Protocol) WriteResponse(resp *HttpResponse) error {
	_, err := p.transport.Write(resp.Serialize())
	return err
}

// Close closes the underlying transport
func (p *Http1Protocol) Close() error {
	return p.transport.Close()
}
