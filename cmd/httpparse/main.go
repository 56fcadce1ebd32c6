// Command httpparse parses a raw HTTP/1.x request from a file or stdin and
// prints what the server would hand to a handler.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/nczempin/httpd-go-uring/protocol"
)

var (
	labelColor = color.New(color.FgCyan)
	keyColor   = color.New(color.FgYellow)
	warnColor  = color.New(color.FgMagenta)
	errorColor = color.New(color.FgRed)
)

func main() {
	var file string
	var lf, diag, noColor bool

	flag.StringVar(&file, "f", "", "File with a raw HTTP request (default: stdin)")
	flag.BoolVar(&lf, "lf", false, "Accept bare LF line endings by converting them to CRLF")
	flag.BoolVar(&diag, "diag", false, "Report entries dropped by lenient parsing")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flag.Parse()

	color.NoColor = color.NoColor || noColor

	raw, err := readInput(file)
	if err != nil {
		errorColor.Fprintf(os.Stderr, "[error] :: %v\n", err)
		os.Exit(2)
	}

	if err := run(os.Stdout, raw, lf, diag); err != nil {
		errorColor.Fprintf(os.Stderr, "[error] :: %v\n", err)
		os.Exit(1)
	}
}

func readInput(file string) (string, error) {
	if file == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(file)
	return string(data), err
}

// run parses raw and writes the report to w
func run(w io.Writer, raw string, lf, withDiag bool) error {
	if lf {
		raw = toCRLF(raw)
	}

	var diag *protocol.Diagnostics
	if withDiag {
		diag = &protocol.Diagnostics{}
	}

	req, err := protocol.ParseRequestWithOptions(raw, protocol.ParseOptions{Diagnostics: diag})
	if err != nil {
		return err
	}

	printRequest(w, req)
	if diag != nil {
		printDiagnostics(w, diag)
	}
	return nil
}

func toCRLF(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

func printRequest(w io.Writer, req *protocol.HttpRequest) {
	labelColor.Fprint(w, "method   ")
	fmt.Fprintln(w, req.Method)
	labelColor.Fprint(w, "path     ")
	fmt.Fprintln(w, req.Path)
	if req.Query != "" {
		labelColor.Fprint(w, "query    ")
		fmt.Fprintln(w, req.Query)
	}
	labelColor.Fprint(w, "version  ")
	fmt.Fprintln(w, req.Version)

	if len(req.Headers) > 0 {
		labelColor.Fprintln(w, "[headers]")
		for _, h := range req.Headers {
			printPair(w, h.Key, h.Value)
		}
	}
	if len(req.Cookies) > 0 {
		labelColor.Fprintln(w, "[cookies]")
		for _, c := range req.Cookies {
			printPair(w, c.Name, c.Value)
		}
	}
	printMap(w, "[query data]", req.QueryData)
	printMap(w, "[form data]", req.FormData)
	if req.Body != "" {
		labelColor.Fprintln(w, "[body]")
		fmt.Fprintln(w, req.Body)
	}
}

func printMap(w io.Writer, title string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	labelColor.Fprintln(w, title)
	for _, k := range keys {
		printPair(w, k, m[k])
	}
}

func printPair(w io.Writer, key, value string) {
	fmt.Fprint(w, "  ")
	keyColor.Fprint(w, key)
	fmt.Fprintf(w, " = %s\n", value)
}

func printDiagnostics(w io.Writer, diag *protocol.Diagnostics) {
	if diag.Empty() {
		labelColor.Fprintln(w, "[diagnostics] none")
		return
	}
	warnColor.Fprintln(w, "[diagnostics]")
	for _, piece := range diag.DroppedCookies {
		fmt.Fprintf(w, "  dropped cookie %q\n", piece)
	}
	for _, token := range diag.DroppedPairs {
		fmt.Fprintf(w, "  dropped pair %q\n", token)
	}
	for _, h := range diag.SuspectHeaders {
		fmt.Fprintf(w, "  suspect header %q: %q\n", h.Key, h.Value)
	}
}
