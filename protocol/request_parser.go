package protocol

import (
	"fmt"
	"strings"

	"github.com/nczempin/httpd-go-uring/errors"
)

const (
	crlf            = "\r\n"
	headerDelimiter = ": "
	cookieDelimiter = "; "
	cookieHeader    = "Cookie"
)

// ParseOptions controls request assembly
type ParseOptions struct {
	// Session becomes the request's SessionData. Nil means a fresh empty map.
	Session SessionData
	// Diagnostics, if set, collects entries dropped by lenient decoding.
	Diagnostics *Diagnostics
}

// ParseRequest parses a complete, already buffered HTTP/1.x request message.
// Lines are delimited by CRLF only. On failure no request is returned and the
// error is an *errors.HttpError of type errors.ErrorBadRequest.
func ParseRequest(raw string) (*HttpRequest, error) {
	return ParseRequestWithOptions(raw, ParseOptions{})
}

// ParseRequestWithOptions is ParseRequest with a caller supplied session and diagnostics sink
func ParseRequestWithOptions(raw string, opts ParseOptions) (*HttpRequest, error) {
	lines := strings.Split(raw, crlf)

	method, target, version, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	headers, cookies, rawBody, err := segmentMessage(lines[1:], opts.Diagnostics)
	if err != nil {
		return nil, err
	}

	path, query, _ := strings.Cut(target, "?")

	session := opts.Session
	if session == nil {
		session = make(SessionData)
	}

	req := &HttpRequest{
		Method:      method,
		Path:        path,
		Query:       query,
		Version:     version,
		Headers:     headers,
		Cookies:     cookies,
		Body:        percentDecode(rawBody),
		FormData:    make(map[string]string),
		QueryData:   make(map[string]string),
		SessionData: session,
	}

	// Each literal body line is decoded on its own, so a line break sent
	// as %0A stays inside its value while a real one separates pairs.
	for _, line := range strings.Split(rawBody, "\n") {
		decodeKeyValuesInto(req.FormData, percentDecode(line), opts.Diagnostics)
	}
	decodeKeyValuesInto(req.QueryData, req.Query, opts.Diagnostics)

	return req, nil
}

// parseRequestLine tokenizes "<METHOD> <request-target> <version>"
func parseRequestLine(line string) (HttpMethod, string, HttpVersion, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return 0, "", 0, errors.NewBadRequestError(
			errors.ProtocolErrorMalformedStartLine,
			fmt.Sprintf("expected 3 tokens in start line, got %d", len(parts)),
		)
	}

	method, ok := ParseMethod(parts[0])
	if !ok {
		return 0, "", 0, errors.NewBadRequestError(
			errors.ProtocolErrorUnsupportedMethod,
			fmt.Sprintf("the method %s is not supported", parts[0]),
		)
	}

	return method, parts[1], ParseVersion(parts[2]), nil
}

// segmentMessage walks the lines after the start line. The first blank line
// ends the header section and is not kept; everything after it is body,
// returned trimmed and still encoded.
func segmentMessage(lines []string, diag *Diagnostics) ([]HttpHeader, []HttpCookie, string, error) {
	var (
		headers  []HttpHeader
		cookies  []HttpCookie
		body     strings.Builder
		inHeader = true
	)

	for _, line := range lines {
		if inHeader {
			if line == "" {
				inHeader = false
				continue
			}

			key, value, ok := strings.Cut(line, headerDelimiter)
			if !ok {
				return nil, nil, "", errors.NewBadRequestError(
					errors.ProtocolErrorMalformedHeader,
					fmt.Sprintf("invalid header: %q", line),
				)
			}

			header := HttpHeader{Key: key, Value: value}
			diag.inspectHeader(header)
			if key == cookieHeader {
				cookies = append(cookies, parseCookies(value, diag)...)
			}
			headers = append(headers, header)
			continue
		}

		body.WriteString(line)
		body.WriteByte('\n')
	}

	return headers, cookies, strings.TrimSpace(body.String()), nil
}

// parseCookies splits a Cookie header value. Pieces without '=' are skipped.
func parseCookies(value string, diag *Diagnostics) []HttpCookie {
	var cookies []HttpCookie
	for _, piece := range strings.Split(value, cookieDelimiter) {
		if piece == "" {
			continue
		}
		name, val, ok := strings.Cut(piece, "=")
		if !ok {
			diag.dropCookie(piece)
			continue
		}
		cookies = append(cookies, HttpCookie{Name: name, Value: val})
	}
	return cookies
}
