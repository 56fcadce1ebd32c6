package protocol

import "golang.org/x/net/http/httpguts"

// Diagnostics records what lenient parsing silently discarded or accepted.
// Passing one to ParseRequestWithOptions never changes the parse result.
type Diagnostics struct {
	// DroppedCookies holds Cookie header pieces that had no '='.
	DroppedCookies []string
	// DroppedPairs holds query or form tokens that had no '='.
	DroppedPairs []string
	// SuspectHeaders holds headers whose name is not an RFC 7230 token
	// or whose value contains bytes not allowed in a field value.
	SuspectHeaders []HttpHeader
}

// Empty reports whether nothing was recorded
func (d *Diagnostics) Empty() bool {
	return d == nil || (len(d.DroppedCookies) == 0 && len(d.DroppedPairs) == 0 && len(d.SuspectHeaders) == 0)
}

func (d *Diagnostics) dropCookie(piece string) {
	if d != nil {
		d.DroppedCookies = append(d.DroppedCookies, piece)
	}
}

func (d *Diagnostics) dropPair(token string) {
	if d != nil {
		d.DroppedPairs = append(d.DroppedPairs, token)
	}
}

func (d *Diagnostics) inspectHeader(h HttpHeader) {
	if d == nil {
		return
	}
	if !httpguts.ValidHeaderFieldName(h.Key) || !httpguts.ValidHeaderFieldValue(h.Value) {
		d.SuspectHeaders = append(d.SuspectHeaders, h)
	}
}
