package traffic

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RawRequest reconstructs the request side of t as HTTP/1.x wire text
// (request line, headers, blank line, body). It is a debug/export
// helper for datastore backends that want to store or display the raw
// exchange rather than its normalized fields; it is never used on the
// forwarding path, which always relays the original bytes untouched.
func (t *Traffic) RawRequest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\r\n", t.Method, t.requestURL(), t.Version)
	writeHeaders(&b, t.RequestHeaders)
	b.WriteString("\r\n")
	b.WriteString(t.requestBodyText())
	b.WriteString("\r\n\r\n")
	return b.String()
}

// RawResponse reconstructs the response side of t as HTTP/1.x wire
// text (status line, headers, blank line, body).
func (t *Traffic) RawResponse() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\r\n", t.Version, t.Status)
	writeHeaders(&b, t.ResponseHeaders)
	b.WriteString("\r\n")
	b.WriteString(t.responseBodyText())
	b.WriteString("\r\n\r\n")
	return b.String()
}

func (t *Traffic) requestURL() string {
	u := url.URL{Scheme: t.Scheme, Host: t.Host, Path: t.Path}
	if len(t.Query) > 0 {
		q := make(url.Values, len(t.Query))
		for _, k := range t.SortedQueryKeys() {
			q.Set(k, t.Query[k])
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (t *Traffic) requestBodyText() string {
	if t.RequestBodyString != nil {
		return *t.RequestBodyString
	}
	return string(t.RequestBody)
}

func (t *Traffic) responseBodyText() string {
	if t.ResponseBodyString != nil {
		return *t.ResponseBodyString
	}
	return string(t.ResponseBody)
}

func writeHeaders(b *strings.Builder, headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s: %s\r\n", k, headers[k])
	}
}
