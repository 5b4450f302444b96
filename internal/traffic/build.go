package traffic

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// HeaderSeparator joins multiple values of the same header name into
// a single stored string, matching the canonical internal
// representation used for RequestHeaders/ResponseHeaders.
const HeaderSeparator = ", "

// BuildRequestHeader is an alias for http.Header, the header type
// Build reads from the captured request and response.
type BuildRequestHeader = http.Header

// Build normalizes a captured request/response pair into a Traffic
// record.
//
// insideTLS indicates whether req was received over a TLS connection
// terminated by a minted leaf certificate (i.e. it came from the
// proxy's inner CONNECT-tunnel parser rather than directly from a
// plain-HTTP client). It only affects scheme inference when the
// request URI itself carries no scheme.
func Build(req *http.Request, reqBody []byte, resp *http.Response, respBody []byte, insideTLS bool) *Traffic {
	t := &Traffic{
		Method:          canonicalMethod(req.Method),
		Scheme:          scheme(req, insideTLS),
		Host:            host(req),
		Path:            path(req),
		Query:           parseQuery(req.URL.RawQuery),
		RequestHeaders:  normalizeHeaders(req.Header),
		RequestBody:     reqBody,
		Version:         version(req.Proto, req.ProtoMajor, req.ProtoMinor),
	}

	if resp != nil {
		t.Status = resp.StatusCode
		t.ResponseHeaders = normalizeHeaders(resp.Header)
		t.ResponseBody = respBody
		// The response's wire version takes precedence when present;
		// fall back to the request's, matching HTTP/1.x's single
		// version negotiated for the whole exchange.
		if v := version(resp.Proto, resp.ProtoMajor, resp.ProtoMinor); v != "" {
			t.Version = v
		}
	}

	return t
}

// canonicalMethod uppercases a recognized HTTP verb; anything else
// (including an empty string) is normalized to "?".
func canonicalMethod(m string) string {
	switch strings.ToUpper(m) {
	case http.MethodGet:
		return http.MethodGet
	case http.MethodHead:
		return http.MethodHead
	case http.MethodPost:
		return http.MethodPost
	case http.MethodPut:
		return http.MethodPut
	case http.MethodPatch:
		return http.MethodPatch
	case http.MethodDelete:
		return http.MethodDelete
	case http.MethodConnect:
		return http.MethodConnect
	case http.MethodOptions:
		return http.MethodOptions
	case http.MethodTrace:
		return http.MethodTrace
	default:
		return "?"
	}
}

func scheme(req *http.Request, insideTLS bool) string {
	if req.URL != nil && req.URL.Scheme != "" {
		return req.URL.Scheme
	}
	if insideTLS {
		return "https"
	}
	return "http"
}

func host(req *http.Request) string {
	h := ""
	if req.URL != nil && req.URL.Host != "" {
		h = req.URL.Host
	} else {
		h = req.Host
	}
	if i := strings.LastIndex(h, ":"); i != -1 && !strings.Contains(h[i:], "]") {
		// Strip an explicit port; the host field is DNS name only.
		if _, err := strconv.Atoi(h[i+1:]); err == nil {
			h = h[:i]
		}
	}
	return strings.ToLower(h)
}

func path(req *http.Request) string {
	if req.URL == nil || req.URL.Path == "" {
		return "/"
	}
	return req.URL.Path
}

// parseQuery splits a raw query string on "&" and then on the first
// "=" in each pair. Pairs without an "=" are silently dropped.
// Repeated keys keep the last occurrence seen.
func parseQuery(raw string) map[string]string {
	q := make(map[string]string)
	if raw == "" {
		return q
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		i := strings.IndexByte(pair, '=')
		if i < 0 {
			continue
		}
		q[pair[:i]] = pair[i+1:]
	}
	return q
}

// normalizeHeaders lowercases header names and joins repeated values
// with HeaderSeparator, producing the canonical internal
// representation described by the data model.
func normalizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		clean := make([]string, 0, len(values))
		for _, v := range values {
			clean = append(clean, decodeHeaderValue(v))
		}
		out[strings.ToLower(name)] = strings.Join(clean, HeaderSeparator)
	}
	return out
}

// decodeHeaderValue best-effort decodes a header value as UTF-8,
// falling back to treating it as Latin-1 (ISO-8859-1), the encoding
// HTTP/1.x header values are defined in terms of. Invalid byte
// sequences that survive neither interpretation are elided rather
// than rejecting the whole header.
func decodeHeaderValue(v string) string {
	if utf8.ValidString(v) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range []byte(v) {
		b.WriteRune(rune(r))
	}
	return b.String()
}

func version(proto string, major, minor int) string {
	switch {
	case major == 3:
		return "HTTP/3.0"
	case major == 2:
		return "HTTP/2.0"
	case major == 1 && minor == 1:
		return "HTTP/1.1"
	case major == 1 && minor == 0:
		return "HTTP/1.0"
	case major == 0 && minor == 9:
		return "HTTP/0.9"
	default:
		// Unknown/unrecognized versions default to HTTP/1.0.
		return "HTTP/1.0"
	}
}

// SortedQueryKeys returns the Traffic's query keys in sorted order,
// useful for deterministic test assertions and log output.
func (t *Traffic) SortedQueryKeys() []string {
	keys := make([]string, 0, len(t.Query))
	for k := range t.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
