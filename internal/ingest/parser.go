package ingest

import (
	"encoding/json"
	"net/url"
	"strings"
)

type ParseSource string

const (
	SourceHeader ParseSource = "header"
	SourceBody   ParseSource = "body"
	SourceQuery  ParseSource = "query"
	SourcePath   ParseSource = "path"
)

// ParseResult is the outcome of the source chain. OK=false means no source
// produced a message, which is a normal outcome, not an error.
type ParseResult struct {
	Message string
	Source  ParseSource
	OK      bool
}

var (
	headerKeys    = []string{"x-message", "x-secret", "x-prompt"}
	bodyFieldKeys = []string{"message", "secret", "prompt"}
	queryKeys     = []string{"message", "secret"}
)

// nonEmpty returns the trimmed value, or "" when it is whitespace-only.
func nonEmpty(v string) string {
	return strings.TrimSpace(v)
}

func fromHeaders(raw RawRequest) (ParseResult, bool) {
	for _, key := range headerKeys {
		if v := nonEmpty(raw.Headers[key]); v != "" {
			return ParseResult{Message: v, Source: SourceHeader, OK: true}, true
		}
	}
	return ParseResult{}, false
}

func fromBody(raw RawRequest) (ParseResult, bool) {
	if raw.Body == "" || raw.ContentType == "" {
		return ParseResult{}, false
	}

	ct := strings.ToLower(raw.ContentType)

	switch {
	case strings.HasPrefix(ct, "application/json"):
		var parsed map[string]any
		if err := json.Unmarshal([]byte(raw.Body), &parsed); err != nil {
			// malformed JSON falls through to the next source
			return ParseResult{}, false
		}
		for _, key := range bodyFieldKeys {
			s, ok := parsed[key].(string)
			if !ok {
				continue
			}
			if v := nonEmpty(s); v != "" {
				return ParseResult{Message: v, Source: SourceBody, OK: true}, true
			}
		}

	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		params, err := url.ParseQuery(raw.Body)
		if err != nil {
			return ParseResult{}, false
		}
		for _, key := range bodyFieldKeys {
			if v := nonEmpty(params.Get(key)); v != "" {
				return ParseResult{Message: v, Source: SourceBody, OK: true}, true
			}
		}

	case strings.HasPrefix(ct, "text/plain"):
		if v := nonEmpty(raw.Body); v != "" {
			return ParseResult{Message: v, Source: SourceBody, OK: true}, true
		}
	}

	return ParseResult{}, false
}

func fromQuery(raw RawRequest) (ParseResult, bool) {
	for _, key := range queryKeys {
		if v := nonEmpty(raw.Query[key]); v != "" {
			return ParseResult{Message: v, Source: SourceQuery, OK: true}, true
		}
	}
	return ParseResult{}, false
}

func fromPath(raw RawRequest) (ParseResult, bool) {
	const prefix = "/s/"
	idx := strings.Index(raw.Path, prefix)
	if idx == -1 {
		return ParseResult{}, false
	}

	rest := raw.Path[idx+len(prefix):]
	if rest == "" {
		return ParseResult{}, false
	}

	// People often paste URL-encoded text; also treat '+' as space.
	normalized := strings.ReplaceAll(rest, "+", " ")
	decoded, err := url.PathUnescape(normalized)
	if err != nil {
		decoded = normalized
	}

	if v := nonEmpty(decoded); v != "" {
		return ParseResult{Message: v, Source: SourcePath, OK: true}, true
	}
	return ParseResult{}, false
}

// ParseMessage walks the source chain in strict priority order
// (header > body > query > path); the first non-empty match wins.
func ParseMessage(raw RawRequest) ParseResult {
	sources := []func(RawRequest) (ParseResult, bool){
		fromHeaders,
		fromBody,
		fromQuery,
		fromPath,
	}
	for _, try := range sources {
		if res, ok := try(raw); ok {
			return res
		}
	}
	return ParseResult{}
}
