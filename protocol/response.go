package protocol

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/http/httpguts"

	"github.com/nczempin/httpd-go-uring/errors"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	responseVersion = "HTTP/1.1"
)

var headerSeparator = []byte("\r\n\r\n")

// NewHtmlResponse creates a 200 response carrying rendered markup
func NewHtmlResponse(markup string) *HttpResponse {
	return &HttpResponse{
		StatusCode: fasthttp.StatusOK,
		Headers:    []HttpHeader{{Key: "Content-Type", Value: contentTypeHTML}},
		Body:       []byte(markup),
	}
}

// NewRedirectResponse creates a 302 response pointing at url
func NewRedirectResponse(url string) *HttpResponse {
	return &HttpResponse{
		StatusCode: fasthttp.StatusFound,
		Headers:    []HttpHeader{{Key: "Location", Value: url}},
	}
}

// NewErrorResponse creates an HTML error page with the given status
func NewErrorResponse(statusCode int, message string) *HttpResponse {
	phrase := fasthttp.StatusMessage(statusCode)
	page := fmt.Sprintf("<html><head><title>%d %s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		statusCode, phrase, phrase, html.EscapeString(message))
	return &HttpResponse{
		StatusCode: statusCode,
		Headers:    []HttpHeader{{Key: "Content-Type", Value: contentTypeHTML}},
		Body:       []byte(page),
	}
}

// NewBadRequestResponse translates a parse failure into a 400 response
func NewBadRequestResponse(err error) *HttpResponse {
	return NewErrorResponse(fasthttp.StatusBadRequest, err.Error())
}

// AddHeader appends a header; existing headers with the same name are kept
func (r *HttpResponse) AddHeader(key, value string) {
	r.Headers = append(r.Headers, HttpHeader{Key: key, Value: value})
}

// SetCookie appends a Set-Cookie header. An empty path is omitted.
func (r *HttpResponse) SetCookie(name, value, path string) {
	cookie := name + "=" + value
	if path != "" {
		cookie += "; Path=" + path
	}
	r.AddHeader("Set-Cookie", cookie)
}

// Serialize renders the response as HTTP/1.1 wire bytes: status line,
// headers in insertion order, a Content-Length when none was set, a blank
// line and the body. Headers whose name is not a token or whose value holds
// CR, LF or other control bytes are left out, so values taken from a request
// cannot start a new header line.
func (r *HttpResponse) Serialize() []byte {
	var buf bytes.Buffer

	message := r.StatusMessage
	if message == "" {
		message = fasthttp.StatusMessage(r.StatusCode)
	}
	fmt.Fprintf(&buf, "%s %d %s\r\n", responseVersion, r.StatusCode, message)

	hasContentLength := false
	for _, header := range r.Headers {
		if !writableHeader(header) {
			continue
		}
		if strings.EqualFold(header.Key, "Content-Length") {
			hasContentLength = true
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", header.Key, header.Value)
	}
	if !hasContentLength {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	}

	buf.WriteString(crlf)
	buf.Write(r.Body)

	return buf.Bytes()
}

func writableHeader(h HttpHeader) bool {
	return httpguts.ValidHeaderFieldName(h.Key) && httpguts.ValidHeaderFieldValue(h.Value)
}

// ParseResponse parses serialized response bytes back into an HttpResponse.
// The body is bounded by Content-Length when present, otherwise it runs to the end.
func ParseResponse(raw []byte) (*HttpResponse, error) {
	pos := bytes.Index(raw, headerSeparator)
	if pos < 0 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorIncompleteMessage,
			"no header terminator found",
		)
	}
	headersBlock := raw[:pos]
	rest := raw[pos+len(headerSeparator):]

	// Split into status line and rest of headers
	parts := bytes.SplitN(headersBlock, []byte(crlf), 2)

	// Parse status line: "HTTP/1.1 200 OK"
	statusParts := bytes.SplitN(parts[0], []byte(" "), 3)
	if len(statusParts) < 2 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			"invalid status line format",
		)
	}

	statusCode, err := strconv.Atoi(string(statusParts[1]))
	if err != nil {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status code: %s", statusParts[1]),
		)
	}

	statusMessage := ""
	if len(statusParts) >= 3 {
		statusMessage = string(statusParts[2])
	}

	var headers []HttpHeader
	contentLength := -1
	if len(parts) > 1 {
		for _, line := range strings.Split(string(parts[1]), crlf) {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, errors.NewProtocolError(
					errors.ProtocolErrorInvalidHeader,
					fmt.Sprintf("invalid header: %q", line),
				)
			}
			value = strings.TrimSpace(value)
			if strings.EqualFold(key, "Content-Length") {
				if contentLength, err = strconv.Atoi(value); err != nil || contentLength < 0 {
					return nil, errors.NewProtocolError(
						errors.ProtocolErrorInvalidHeader,
						fmt.Sprintf("invalid Content-Length: %s", value),
					)
				}
			}
			headers = append(headers, HttpHeader{Key: key, Value: value})
		}
	}

	body := rest
	if contentLength >= 0 {
		if len(rest) < contentLength {
			return nil, errors.NewProtocolError(
				errors.ProtocolErrorIncompleteMessage,
				fmt.Sprintf("body has %d of %d bytes", len(rest), contentLength),
			)
		}
		body = rest[:contentLength]
	}

	return &HttpResponse{
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Headers:       headers,
		Body:          append([]byte(nil), body...),
	}, nil
}
