package server

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/nczempin/httpd-go-uring/protocol"
)

// NewFastHTTPHandler serves h behind a fasthttp.Server. fasthttp does the
// connection handling; the request is re-serialized and parsed by this
// package's parser so handlers see identical HttpRequest values either way.
func NewFastHTTPHandler(h Handler, logger zerolog.Logger, access *AccessLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()

		req, err := protocol.ParseRequest(ctx.Request.String())

		var resp *protocol.HttpResponse
		if err != nil {
			logger.Debug().Err(err).Msg("rejecting request")
			resp = protocol.NewBadRequestResponse(err)
		} else {
			resp = dispatch(h, req, logger)
		}

		writeFastHTTPResponse(ctx, resp)

		if access != nil {
			access.Log(req, resp, ctx.RemoteAddr().String(), time.Since(start))
		}
	}
}

func writeFastHTTPResponse(ctx *fasthttp.RequestCtx, resp *protocol.HttpResponse) {
	ctx.SetStatusCode(resp.StatusCode)
	for _, header := range resp.Headers {
		// fasthttp frames the body itself
		if strings.EqualFold(header.Key, "Content-Length") {
			continue
		}
		ctx.Response.Header.Add(header.Key, header.Value)
	}
	ctx.SetBody(resp.Body)
}
