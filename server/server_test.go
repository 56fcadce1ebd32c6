package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// echoHandler renders the parsed request as plain lines so tests can assert on it
var echoHandler = HandlerFunc(func(req *protocol.HttpRequest) *protocol.HttpResponse {
	var b strings.Builder
	fmt.Fprintf(&b, "method=%s\npath=%s\nquery=%s\nversion=%s\n", req.Method, req.Path, req.Query, req.Version)
	for _, c := range req.Cookies {
		fmt.Fprintf(&b, "cookie %s=%s\n", c.Name, c.Value)
	}
	keys := make([]string, 0, len(req.FormData))
	for k := range req.FormData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "form %s=%s\n", k, req.FormData[k])
	}
	fmt.Fprintf(&b, "q=%s\n", req.QueryData["q"])
	return protocol.NewHtmlResponse(b.String())
})

// startServer serves handler on a loopback listener until the test ends
func startServer(t *testing.T, cfg Config, handler Handler) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	cfg.Addr = addr.String()

	srv, err := NewServer(cfg, handler, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Server did not stop")
		}
	})

	return addr.IP.String(), addr.Port
}

// exchange sends raw over a fresh connection and parses the reply
func exchange(t *testing.T, host string, port int, raw string) *protocol.HttpResponse {
	t.Helper()

	client := transport.NewNetTransport(nil)
	if err := client.Connect(host, port); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte(raw)); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}

	var reply []byte
	buf := make([]byte, 1024)
	for {
		n, err := client.Read(buf)
		reply = append(reply, buf[:n]...)
		if err != nil {
			if errors.IsConnectionClosed(err) {
				break
			}
			t.Fatalf("Failed to read response: %v", err)
		}
	}

	resp, err := protocol.ParseResponse(reply)
	if err != nil {
		t.Fatalf("Failed to parse response %q: %v", reply, err)
	}
	return resp
}

func TestServer_ParsesRequest(t *testing.T) {
	host, port := startServer(t, DefaultConfig(), echoHandler)

	resp := exchange(t, host, port,
		"GET /search?q=hi&q=bye HTTP/1.1\r\nHost: x\r\nCookie: u=42; broken\r\n\r\n")

	if resp.StatusCode != 200 {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	want := "method=GET\npath=/search\nquery=q=hi&q=bye\nversion=HTTP/1.1\ncookie u=42\nq=bye\n"
	if string(resp.Body) != want {
		t.Errorf("Expected body %q, got %q", want, resp.Body)
	}
}

func TestServer_FormBody(t *testing.T) {
	host, port := startServer(t, DefaultConfig(), echoHandler)

	body := "name=Jon&city=New+York"
	raw := fmt.Sprintf("POST /users HTTP/1.0\r\nContent-Length: %d\r\n\r\n%s", len(body), body)

	resp := exchange(t, host, port, raw)

	want := "method=POST\npath=/users\nquery=\nversion=HTTP/1.0\nform city=New York\nform name=Jon\nq=\n"
	if string(resp.Body) != want {
		t.Errorf("Expected body %q, got %q", want, resp.Body)
	}
}

func TestServer_BadRequest(t *testing.T) {
	cases := map[string]string{
		"malformed start line": "GET /\r\n\r\n",
		"unsupported method":   "BREW /pot HTTP/1.1\r\n\r\n",
		"malformed header":     "GET / HTTP/1.1\r\nHost\r\n\r\n",
		"bad content length":   "POST / HTTP/1.1\r\nContent-Length: many\r\n\r\n",
	}

	called := false
	handler := HandlerFunc(func(req *protocol.HttpRequest) *protocol.HttpResponse {
		called = true
		return protocol.NewHtmlResponse("")
	})
	host, port := startServer(t, DefaultConfig(), handler)

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			resp := exchange(t, host, port, raw)
			if resp.StatusCode != 400 {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}

	if called {
		t.Error("Handler must not see unparsable requests")
	}
}

func TestServer_RequestTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestBytes = 64
	host, port := startServer(t, cfg, echoHandler)

	resp := exchange(t, host, port, "GET /"+strings.Repeat("a", 100)+" HTTP/1.1\r\n\r\n")
	if resp.StatusCode != 400 {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_HandlerPanicBecomes500(t *testing.T) {
	handler := HandlerFunc(func(req *protocol.HttpRequest) *protocol.HttpResponse {
		panic("boom")
	})
	host, port := startServer(t, DefaultConfig(), handler)

	resp := exchange(t, host, port, "GET / HTTP/1.1\r\n\r\n")
	if resp.StatusCode != 500 {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}
}

func TestServer_NilResponseBecomes500(t *testing.T) {
	handler := HandlerFunc(func(req *protocol.HttpRequest) *protocol.HttpResponse {
		return nil
	})
	host, port := startServer(t, DefaultConfig(), handler)

	resp := exchange(t, host, port, "GET / HTTP/1.1\r\n\r\n")
	if resp.StatusCode != 500 {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}
}

func TestServer_RedirectAndSession(t *testing.T) {
	handler := HandlerFunc(func(req *protocol.HttpRequest) *protocol.HttpResponse {
		req.SessionData.SignIn(req.FormData["user"])
		if !req.SessionData.IsSignedIn() {
			return protocol.NewErrorResponse(401, "missing user")
		}
		resp := protocol.NewRedirectResponse("/home")
		resp.SetCookie("user", req.SessionData.UserID(), "/")
		return resp
	})
	host, port := startServer(t, DefaultConfig(), handler)

	resp := exchange(t, host, port, "POST /login HTTP/1.1\r\nContent-Length: 8\r\n\r\nuser=ann")
	if resp.StatusCode != 302 {
		t.Fatalf("Expected 302, got %d", resp.StatusCode)
	}
	if loc, _ := resp.Header("Location"); loc != "/home" {
		t.Errorf("Expected Location /home, got %q", loc)
	}
	if cookie, _ := resp.Header("Set-Cookie"); cookie != "user=ann; Path=/" {
		t.Errorf("Unexpected Set-Cookie %q", cookie)
	}

	resp = exchange(t, host, port, "POST /login HTTP/1.1\r\n\r\n")
	if resp.StatusCode != 401 {
		t.Errorf("Expected 401 for anonymous login, got %d", resp.StatusCode)
	}
}

func TestServer_ConcurrentConnections(t *testing.T) {
	host, port := startServer(t, DefaultConfig(), echoHandler)

	const clients = 16
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(i int) {
			client := transport.NewNetTransport(nil)
			if err := client.Connect(host, port); err != nil {
				errs <- err
				return
			}
			defer client.Close()

			raw := fmt.Sprintf("GET /c?q=%d HTTP/1.1\r\n\r\n", i)
			if _, err := client.Write([]byte(raw)); err != nil {
				errs <- err
				return
			}

			var reply []byte
			buf := make([]byte, 512)
			for {
				n, err := client.Read(buf)
				reply = append(reply, buf[:n]...)
				if err != nil {
					break
				}
			}

			resp, err := protocol.ParseResponse(reply)
			if err != nil {
				errs <- err
				return
			}
			if !strings.Contains(string(resp.Body), fmt.Sprintf("q=%d\n", i)) {
				errs <- fmt.Errorf("client %d got foreign body %q", i, resp.Body)
				return
			}
			errs <- nil
		}(i)
	}

	for i := 0; i < clients; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestServer_IoUringTransports(t *testing.T) {
	for _, kind := range []transport.Kind{transport.KindIoUring, transport.KindUring} {
		t.Run(string(kind), func(t *testing.T) {
			if kind == transport.KindIoUring {
				probe, err := transport.NewTcpTransport()
				if err != nil {
					t.Skipf("io_uring unavailable: %v", err)
				}
				probe.Destroy()
			} else {
				probe, err := transport.NewTcpTransportV2()
				if err != nil {
					t.Skipf("go-uring unavailable: %v", err)
				}
				probe.Destroy()
			}

			cfg := DefaultConfig()
			cfg.Transport = kind
			host, port := startServer(t, cfg, echoHandler)

			resp := exchange(t, host, port, "GET /ring?q=1 HTTP/1.1\r\n\r\n")
			if !strings.Contains(string(resp.Body), "path=/ring\n") {
				t.Errorf("Unexpected body %q", resp.Body)
			}
		})
	}
}

func TestServer_IdleCloseIsIgnored(t *testing.T) {
	host, port := startServer(t, DefaultConfig(), echoHandler)

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Close()

	// The server must keep serving after a client that sent nothing
	resp := exchange(t, host, port, "GET / HTTP/1.1\r\n\r\n")
	if resp.StatusCode != 200 {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestNewServer_InvalidArguments(t *testing.T) {
	if _, err := NewServer(DefaultConfig(), nil, zerolog.Nop()); err == nil {
		t.Error("Expected error for nil handler")
	}

	cfg := DefaultConfig()
	cfg.Transport = "smoke-signals"
	if _, err := NewServer(cfg, echoHandler, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown transport")
	}
}

func TestServer_ListenAndServeUnix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "unix"
	cfg.Addr = t.TempDir() + "/httpd.sock"

	srv, err := NewServer(cfg, echoHandler, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("ListenAndServe returned error: %v", err)
		}
	}()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		if conn, err = net.Dial("unix", cfg.Addr); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET /unix HTTP/1.1\r\n\r\n"))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var reply []byte
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		reply = append(reply, buf[:n]...)
		if err != nil {
			break
		}
	}

	resp, err := protocol.ParseResponse(reply)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if !strings.Contains(string(resp.Body), "path=/unix\n") {
		t.Errorf("Unexpected body %q", resp.Body)
	}
}

func TestServer_ShutdownInterruptsStalledClients(t *testing.T) {
	for _, kind := range []transport.Kind{transport.KindNet, transport.KindIoUring, transport.KindUring} {
		t.Run(string(kind), func(t *testing.T) {
			switch kind {
			case transport.KindIoUring:
				probe, err := transport.NewTcpTransport()
				if err != nil {
					t.Skipf("io_uring unavailable: %v", err)
				}
				probe.Destroy()
			case transport.KindUring:
				probe, err := transport.NewTcpTransportV2()
				if err != nil {
					t.Skipf("go-uring unavailable: %v", err)
				}
				probe.Destroy()
			}

			listener, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				t.Fatalf("Failed to create listener: %v", err)
			}

			cfg := DefaultConfig()
			cfg.Addr = listener.Addr().String()
			cfg.Transport = kind
			cfg.ConnTimeout = 0

			srv, err := NewServer(cfg, echoHandler, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewServer failed: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- srv.Serve(ctx, listener) }()

			conn, err := net.Dial("tcp", cfg.Addr)
			if err != nil {
				t.Fatalf("Dial failed: %v", err)
			}
			defer conn.Close()

			// Headers never finish, so the server stays blocked reading
			if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n")); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			time.Sleep(100 * time.Millisecond)

			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Serve returned error: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return after cancellation while a client was stalled")
			}

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var reply []byte
			buf := make([]byte, 512)
			for {
				n, err := conn.Read(buf)
				reply = append(reply, buf[:n]...)
				if err != nil {
					break
				}
			}

			resp, err := protocol.ParseResponse(reply)
			if err != nil {
				t.Fatalf("Failed to parse response %q: %v", reply, err)
			}
			if resp.StatusCode != 400 {
				t.Errorf("Expected 400 for the unfinished request, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_ShutdownWithIdleConnection(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Addr = listener.Addr().String()
	cfg.ConnTimeout = 0

	srv, err := NewServer(cfg, echoHandler, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation while a client sent nothing")
	}
}
