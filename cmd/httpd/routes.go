package main

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/server"
)

// routes is the demo application: an index page, an echo of the parsed
// request, and a redirect.
func routes() server.Handler {
	return server.HandlerFunc(func(req *protocol.HttpRequest) *protocol.HttpResponse {
		switch req.Path {
		case "/":
			return protocol.NewHtmlResponse(indexPage)
		case "/echo":
			return protocol.NewHtmlResponse(renderRequest(req))
		case "/redirect":
			return protocol.NewRedirectResponse(localTarget(req.QueryData["to"]))
		default:
			return protocol.NewErrorResponse(404, req.Path+" not found")
		}
	})
}

// localTarget keeps redirects on this host: only paths with a single
// leading slash are followed, anything else goes to the index.
func localTarget(to string) string {
	if !strings.HasPrefix(to, "/") || strings.HasPrefix(to, "//") || strings.HasPrefix(to, "/\\") {
		return "/"
	}
	return to
}

const indexPage = `<html><head><title>httpd</title></head><body>
<h1>httpd</h1>
<ul>
<li><a href="/echo?hello=world">/echo</a> shows the parsed request</li>
<li><a href="/redirect?to=/echo">/redirect?to=...</a> answers with 302</li>
</ul>
</body></html>`

func renderRequest(req *protocol.HttpRequest) string {
	var b strings.Builder
	b.WriteString("<html><body><h1>Request</h1><dl>")
	fmt.Fprintf(&b, "<dt>Method</dt><dd>%s</dd>", req.Method)
	fmt.Fprintf(&b, "<dt>Path</dt><dd>%s</dd>", html.EscapeString(req.Path))
	fmt.Fprintf(&b, "<dt>Version</dt><dd>%s</dd>", req.Version)
	b.WriteString("</dl>")

	writeTable(&b, "Headers", headerRows(req.Headers))
	writeTable(&b, "Cookies", cookieRows(req.Cookies))
	writeTable(&b, "Query", mapRows(req.QueryData))
	writeTable(&b, "Form", mapRows(req.FormData))

	b.WriteString("</body></html>")
	return b.String()
}

func headerRows(headers []protocol.HttpHeader) [][2]string {
	rows := make([][2]string, 0, len(headers))
	for _, h := range headers {
		rows = append(rows, [2]string{h.Key, h.Value})
	}
	return rows
}

func cookieRows(cookies []protocol.HttpCookie) [][2]string {
	rows := make([][2]string, 0, len(cookies))
	for _, c := range cookies {
		rows = append(rows, [2]string{c.Name, c.Value})
	}
	return rows
}

func mapRows(m map[string]string) [][2]string {
	rows := make([][2]string, 0, len(m))
	for k, v := range m {
		rows = append(rows, [2]string{k, v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}

func writeTable(b *strings.Builder, title string, rows [][2]string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "<h2>%s</h2><table>", title)
	for _, row := range rows {
		fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td></tr>", html.EscapeString(row[0]), html.EscapeString(row[1]))
	}
	b.WriteString("</table>")
}
