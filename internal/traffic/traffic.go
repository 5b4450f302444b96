// Package traffic defines the normalized capture record produced for
// every request/response pair the proxy observes, and the auth
// side-channel record produced when a host is classified as an
// identity provider.
package traffic

// Traffic is the fully materialized, normalized record of one
// request/response exchange. It is built once from the capture copies
// of a request and response; after that, only the filter chain
// changes it, in place (decompressing a body, removing a
// content-encoding header, populating a *_string field), while the
// capture goroutine owns it.
type Traffic struct {
	Method  string
	Scheme  string
	Host    string
	Path    string
	Query   map[string]string

	RequestHeaders  map[string]string
	RequestBody     []byte
	RequestBodyString *string

	ResponseHeaders  map[string]string
	ResponseBody     []byte
	ResponseBodyString *string

	Status  int
	Version string

	// Truncated marks a capture copy whose body was cut short by the
	// per-body buffering cap. The forwarding copy sent to the client
	// is never truncated; this flag only affects what gets captured.
	Truncated bool
}

// AuthInfo is the normalized record produced when a request is
// diverted to the identity-provider side channel. It is created once
// by the filter chain's identity-provider stage and is never mutated
// afterward.
type AuthInfo struct {
	Issuer      string
	GrantType   string
	ClientID    string
	RedirectURL string
	Scope       string
}
