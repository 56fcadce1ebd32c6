package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorBadRequest
	ErrorInvalidArgument
)

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketConnectFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorDnsFailure
	TransportErrorTimeout
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
	TransportErrorAttachFailure
)

// ProtocolError represents protocol-layer specific errors
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorMalformedStartLine
	ProtocolErrorUnsupportedMethod
	ProtocolErrorMalformedHeader
	ProtocolErrorInvalidStatusLine
	ProtocolErrorInvalidHeader
	ProtocolErrorMessageTooLarge
	ProtocolErrorIncompleteMessage
)

func (p ProtocolError) String() string {
	switch p {
	case ProtocolErrorMalformedStartLine:
		return "malformed start line"
	case ProtocolErrorUnsupportedMethod:
		return "unsupported method"
	case ProtocolErrorMalformedHeader:
		return "malformed header"
	case ProtocolErrorInvalidStatusLine:
		return "invalid status line"
	case ProtocolErrorInvalidHeader:
		return "invalid header"
	case ProtocolErrorMessageTooLarge:
		return "message too large"
	case ProtocolErrorIncompleteMessage:
		return "incomplete message"
	default:
		return fmt.Sprintf("protocol error %d", int(p))
	}
}

// HttpError is the main error type shared by the parser, framing and transport layers
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	Message       string
	UnderlyingErr error
}

// Sentinels for the fatal request-parsing conditions. Compare with errors.Is.
var (
	ErrMalformedStartLine = &HttpError{Type: ErrorBadRequest, ProtocolErr: ProtocolErrorMalformedStartLine}
	ErrUnsupportedMethod  = &HttpError{Type: ErrorBadRequest, ProtocolErr: ProtocolErrorUnsupportedMethod}
	ErrMalformedHeader    = &HttpError{Type: ErrorBadRequest, ProtocolErr: ProtocolErrorMalformedHeader}
)

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error (%d)", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error (%s)", e.ProtocolErr)
	case ErrorBadRequest:
		typeStr = fmt.Sprintf("Bad request (%s)", e.ProtocolErr)
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// Is reports whether target is an *HttpError of the same category and kind.
// Message and cause are ignored so sentinels match any instance.
func (e *HttpError) Is(target error) bool {
	t, ok := target.(*HttpError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Type == t.Type && e.TransportErr == t.TransportErr && e.ProtocolErr == t.ProtocolErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewBadRequestError creates an error for a request that cannot be parsed.
// All fatal parsing and framing failures on the request path use this category.
func NewBadRequestError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorBadRequest,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// IsBadRequest reports whether err carries the bad request category anywhere in its chain
func IsBadRequest(err error) bool {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr.Type == ErrorBadRequest
	}
	return false
}

// IsConnectionClosed reports whether err is a transport error caused by the peer going away
func IsConnectionClosed(err error) bool {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr.Type == ErrorTransport && httpErr.TransportErr == TransportErrorConnectionClosed
	}
	return false
}
