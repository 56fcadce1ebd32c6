package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/nczempin/httpd-go-uring/server"
	"github.com/nczempin/httpd-go-uring/transport"
)

func main() {
	cfg := server.DefaultConfig()

	var transportKind, logFormat, logLevel string
	var useFastHTTP, noUserAgents bool

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address (host:port, or socket path for unix)")
	flag.StringVar(&cfg.Network, "network", cfg.Network, "Listen network: tcp or unix")
	flag.StringVar(&transportKind, "transport", string(cfg.Transport), "Connection I/O: net, iouring or uring")
	flag.IntVar(&cfg.MaxRequestBytes, "max-request-bytes", cfg.MaxRequestBytes, "Largest accepted request, headers and body together")
	flag.DurationVar(&cfg.ConnTimeout, "read-timeout", cfg.ConnTimeout, "Deadline for one connection (net transport only)")
	flag.BoolVar(&cfg.Diagnostics, "diag", false, "Log what lenient parsing dropped (debug level)")
	flag.BoolVar(&noUserAgents, "no-ua", false, "Skip user agent parsing in the access log")
	flag.StringVar(&logFormat, "log-format", "console", "Log output: console or json")
	flag.StringVar(&logLevel, "log-level", "info", "Minimum log level")
	flag.BoolVar(&useFastHTTP, "fasthttp", false, "Serve through fasthttp instead of the built-in connection loop")
	flag.Parse()

	cfg.Transport = transport.Kind(transportKind)
	cfg.ParseUserAgents = !noUserAgents

	logger, err := newLogger(logFormat, logLevel)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "[error] :: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner(cfg, useFastHTTP)

	if useFastHTTP {
		err = runFastHTTP(ctx, cfg, logger)
	} else {
		err = runServer(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func newLogger(format, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", level)
	}

	var logger zerolog.Logger
	switch format {
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	case "json":
		logger = zerolog.New(os.Stderr)
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format %q", format)
	}
	return logger.Level(lvl).With().Timestamp().Logger(), nil
}

func printBanner(cfg server.Config, useFastHTTP bool) {
	engine := "transport " + string(cfg.Transport)
	if useFastHTTP {
		engine = "fasthttp"
	}
	color.New(color.FgCyan, color.Bold).Fprintf(os.Stderr, "httpd ")
	fmt.Fprintf(os.Stderr, "listening on %s://%s (%s)\n", cfg.Network, cfg.Addr, engine)
}

func runServer(ctx context.Context, cfg server.Config, logger zerolog.Logger) error {
	srv, err := server.NewServer(cfg, routes(), logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func runFastHTTP(ctx context.Context, cfg server.Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv := &fasthttp.Server{
		Handler:            server.NewFastHTTPHandler(routes(), logger, server.NewAccessLogger(logger, cfg.ParseUserAgents)),
		Name:               "httpd",
		ReadTimeout:        cfg.ConnTimeout,
		MaxRequestBodySize: cfg.MaxRequestBytes,
		DisableKeepalive:   true,
	}

	errc := make(chan error, 1)
	go func() {
		if cfg.Network == "unix" {
			os.Remove(cfg.Addr)
			errc <- srv.ListenAndServeUNIX(cfg.Addr, 0o666)
			return
		}
		errc <- srv.ListenAndServe(cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return srv.Shutdown()
	}
}
