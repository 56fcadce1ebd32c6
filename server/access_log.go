package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/ua-parser/uap-go/uaparser"

	"github.com/nczempin/httpd-go-uring/protocol"
)

// AccessLogger writes one structured event per completed exchange
type AccessLogger struct {
	logger zerolog.Logger

	mu     sync.Mutex
	parser *uaparser.Parser
}

// NewAccessLogger creates an access logger. Loading the user agent
// definitions is slow, so it happens once here when enabled.
func NewAccessLogger(logger zerolog.Logger, parseUserAgents bool) *AccessLogger {
	a := &AccessLogger{logger: logger}
	if parseUserAgents {
		a.parser = uaparser.NewFromSaved()
	}
	return a
}

// Log records the exchange. req is nil when the request could not be parsed.
func (a *AccessLogger) Log(req *protocol.HttpRequest, resp *protocol.HttpResponse, remote string, dur time.Duration) {
	var event *zerolog.Event
	switch resp.Category() {
	case protocol.StatusServerError:
		event = a.logger.Error()
	case protocol.StatusClientError:
		event = a.logger.Warn()
	default:
		event = a.logger.Info()
	}

	method, path := "-", "-"
	if req != nil {
		method, path = req.Method.String(), req.Path
		if ua, ok := req.Header("User-Agent"); ok {
			event = event.Str("ua", ua)
			if family := a.userAgentFamily(ua); family != "" {
				event = event.Str("ua_family", family)
			}
		}
	}

	event.
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("bytes", len(resp.Body)).
		Dur("duration", dur).
		Str("remote", remote).
		Msg("access")
}

func (a *AccessLogger) userAgentFamily(ua string) string {
	if a.parser == nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parser.ParseUserAgent(ua).Family
}

// logDiagnostics reports what lenient parsing dropped for one request
func logDiagnostics(logger zerolog.Logger, req *protocol.HttpRequest, diag *protocol.Diagnostics) {
	if diag.Empty() {
		return
	}
	event := logger.Debug().Str("path", req.Path)
	if len(diag.DroppedCookies) > 0 {
		event = event.Strs("dropped_cookies", diag.DroppedCookies)
	}
	if len(diag.DroppedPairs) > 0 {
		event = event.Strs("dropped_pairs", diag.DroppedPairs)
	}
	if len(diag.SuspectHeaders) > 0 {
		names := make([]string, 0, len(diag.SuspectHeaders))
		for _, h := range diag.SuspectHeaders {
			names = append(names, h.Key)
		}
		event = event.Strs("suspect_headers", names)
	}
	event.Msg("lenient parse")
}
