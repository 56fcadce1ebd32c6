package protocol

import "strings"

// HttpMethod represents HTTP request methods
type HttpMethod int

const (
	MethodGet HttpMethod = iota
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodHead
	MethodOptions
	MethodTrace
	MethodConnect
)

var methodNames = [...]string{
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodPatch:   "PATCH",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodConnect: "CONNECT",
}

// String returns the wire token for the method
func (m HttpMethod) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "UNKNOWN"
	}
	return methodNames[m]
}

// ParseMethod matches token case-insensitively against the recognized verbs
func ParseMethod(token string) (HttpMethod, bool) {
	for i, name := range methodNames {
		if strings.EqualFold(token, name) {
			return HttpMethod(i), true
		}
	}
	return MethodGet, false
}

// HttpVersion represents the protocol version named on the request line
type HttpVersion int

const (
	Http10 HttpVersion = iota
	Http11
	Http20
)

// String returns the wire token for the version
func (v HttpVersion) String() string {
	switch v {
	case Http10:
		return "HTTP/1.0"
	case Http20:
		return "HTTP/2.0"
	default:
		return "HTTP/1.1"
	}
}

// ParseVersion maps the exact literals HTTP/1.0, HTTP/1.1 and HTTP/2.0.
// Any other token, including a broken one, yields Http11 rather than an error.
func ParseVersion(token string) HttpVersion {
	switch token {
	case "HTTP/1.0":
		return Http10
	case "HTTP/1.1":
		return Http11
	case "HTTP/2.0":
		return Http20
	default:
		return Http11
	}
}

// HttpHeader represents an HTTP header key-value pair
type HttpHeader struct {
	Key   string
	Value string
}

// HttpCookie is a single name=value entry from a Cookie request header
type HttpCookie struct {
	Name  string
	Value string
}

// SessionData holds per-request session values. It is created empty by the parser
// (or supplied by the caller) and mutated afterwards by whatever layer manages identity.
type SessionData map[string]string

const sessionUserIDKey = "UserId"

// UserID returns the signed-in user id, or "" when nobody is signed in
func (s SessionData) UserID() string {
	return s[sessionUserIDKey]
}

// SignIn records id as the signed-in user
func (s SessionData) SignIn(id string) {
	s[sessionUserIDKey] = id
}

// SignOut clears the signed-in user
func (s SessionData) SignOut() {
	delete(s, sessionUserIDKey)
}

// IsSignedIn reports whether a user id is present
func (s SessionData) IsSignedIn() bool {
	return s.UserID() != ""
}

// HttpRequest represents a parsed HTTP request
type HttpRequest struct {
	Method  HttpMethod
	Path    string
	Query   string
	Version HttpVersion
	Headers []HttpHeader
	Cookies []HttpCookie
	Body    string

	FormData    map[string]string
	QueryData   map[string]string
	SessionData SessionData
}

// HeaderValues returns every value of the named header in encounter order.
// The name is matched case-insensitively.
func (r *HttpRequest) HeaderValues(name string) []string {
	var values []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

// Header returns the first value of the named header
func (r *HttpRequest) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Cookie returns the first cookie with the given name
func (r *HttpRequest) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// StatusCategory groups status codes by their first digit
type StatusCategory int

const (
	StatusUnknown StatusCategory = iota
	StatusInformational
	StatusSuccess
	StatusRedirection
	StatusClientError
	StatusServerError
)

// HttpResponse represents an HTTP response
type HttpResponse struct {
	StatusCode    int
	StatusMessage string
	Headers       []HttpHeader
	Body          []byte
}

// Category returns the status class of the response
func (r *HttpResponse) Category() StatusCategory {
	switch {
	case r.StatusCode >= 100 && r.StatusCode < 200:
		return StatusInformational
	case r.StatusCode >= 200 && r.StatusCode < 300:
		return StatusSuccess
	case r.StatusCode >= 300 && r.StatusCode < 400:
		return StatusRedirection
	case r.StatusCode >= 400 && r.StatusCode < 500:
		return StatusClientError
	case r.StatusCode >= 500 && r.StatusCode < 600:
		return StatusServerError
	default:
		return StatusUnknown
	}
}

// Header returns the first value of the named response header
func (r *HttpResponse) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, name) {
			return h.Value, true
		}
	}
	return "", false
}
