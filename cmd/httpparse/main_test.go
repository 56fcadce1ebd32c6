package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/nczempin/httpd-go-uring/errors"
)

func init() {
	color.NoColor = true
}

func TestRun_PrintsRequest(t *testing.T) {
	var out bytes.Buffer
	raw := "POST /users?id=7 HTTP/1.1\r\nHost: x\r\nCookie: a=1\r\n\r\nname=Jon"

	if err := run(&out, raw, false, false); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, want := range []string{
		"method   POST\n",
		"path     /users\n",
		"query    id=7\n",
		"version  HTTP/1.1\n",
		"[headers]\n  Host = x\n  Cookie = a=1\n",
		"[cookies]\n  a = 1\n",
		"[query data]\n  id = 7\n",
		"[form data]\n  name = Jon\n",
		"[body]\nname=Jon\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestRun_LineFeedConversion(t *testing.T) {
	raw := "GET /a HTTP/1.1\nHost: x\n\n"

	var out bytes.Buffer
	if err := run(&out, raw, false, false); err == nil {
		t.Error("Expected bare LF input to be rejected without -lf")
	}

	out.Reset()
	if err := run(&out, raw, true, false); err != nil {
		t.Fatalf("run with -lf failed: %v", err)
	}
	if !strings.Contains(out.String(), "  Host = x\n") {
		t.Errorf("Expected Host header in output, got:\n%s", out.String())
	}
}

func TestRun_Diagnostics(t *testing.T) {
	var out bytes.Buffer
	raw := "GET /?flag HTTP/1.1\r\nCookie: a=1; junk\r\n\r\n"

	if err := run(&out, raw, false, true); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{`dropped cookie "junk"`, `dropped pair "flag"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := run(&out, "GET / HTTP/1.1\r\n\r\n", false, true); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "[diagnostics] none") {
		t.Errorf("Expected empty diagnostics marker, got:\n%s", out.String())
	}
}

func TestRun_BadRequest(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, "FETCH / HTTP/1.1\r\n\r\n", false, false)
	if !errors.IsBadRequest(err) {
		t.Errorf("Expected bad request error, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Expected no output on failure, got %q", out.String())
	}
}

func TestToCRLF(t *testing.T) {
	if got := toCRLF("a\nb\r\nc\n"); got != "a\r\nb\r\nc\r\n" {
		t.Errorf("Expected normalized CRLF, got %q", got)
	}
}
