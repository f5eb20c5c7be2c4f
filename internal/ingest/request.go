package ingest

import (
	"io"
	"net/http"
	"strings"
)

// Body text larger than this is capped before being stored on the event.
// The parser always sees the full body; the cap is storage-only.
const maxStoredBody = 16 * 1024

// RawRequest is an immutable snapshot of one inbound HTTP request, the only
// thing the parser and coordinator ever see.
type RawRequest struct {
	Method      string
	Path        string
	Query       map[string]string
	Headers     map[string]string
	Body        string // empty means no body
	ContentType string
	SourceIP    string
	UserAgent   string
}

// Snapshot drains the request into a RawRequest. Header names are lowercased
// so lookups match regardless of client casing; for repeated query params the
// first value wins.
func Snapshot(r *http.Request, clientIP string) RawRequest {
	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	headers := make(map[string]string)
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(key)] = values[0]
		}
	}

	var body string
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err == nil {
			body = string(b)
		}
	}

	return RawRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       query,
		Headers:     headers,
		Body:        body,
		ContentType: headers["content-type"],
		SourceIP:    clientIP,
		UserAgent:   headers["user-agent"],
	}
}
