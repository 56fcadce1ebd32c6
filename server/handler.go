package server

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/protocol"
)

// Handler produces the response for one parsed request.
// It owns req for the duration of the call, including req.SessionData.
type Handler interface {
	Handle(req *protocol.HttpRequest) *protocol.HttpResponse
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(req *protocol.HttpRequest) *protocol.HttpResponse

// Handle calls f(req)
func (f HandlerFunc) Handle(req *protocol.HttpRequest) *protocol.HttpResponse {
	return f(req)
}

// dispatch runs h and turns a panic or a missing response into a 500
func dispatch(h Handler, req *protocol.HttpRequest, logger zerolog.Logger) (resp *protocol.HttpResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("method", req.Method.String()).
				Str("path", req.Path).
				Str("panic", fmt.Sprint(r)).
				Msg("handler panicked")
			resp = protocol.NewErrorResponse(500, "internal server error")
		}
	}()

	resp = h.Handle(req)
	if resp == nil {
		logger.Error().Str("path", req.Path).Msg("handler returned no response")
		resp = protocol.NewErrorResponse(500, "internal server error")
	}
	return resp
}
