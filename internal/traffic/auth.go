package traffic

// locationHeader is the canonical (lowercased) header name carrying a
// redirect target, consulted only for the status codes that define a
// redirect.
const locationHeader = "location"

var redirectStatuses = map[int]bool{
	301: true, 302: true, 303: true, 307: true, 308: true,
}

// ExtractAuthInfo derives an AuthInfo record from a Traffic value
// already classified as identity-provider traffic. The issuer is the
// traffic's host; grant_type/client_id/scope come from the request's
// query parameters; redirect_url prefers the request's redirect_url
// query parameter but falls back to the response's Location header
// when the response is one of the redirect status codes.
func ExtractAuthInfo(t *Traffic) AuthInfo {
	info := AuthInfo{
		Issuer:      t.Host,
		GrantType:   t.Query["response_type"],
		ClientID:    t.Query["client_id"],
		RedirectURL: t.Query["redirect_url"],
		Scope:       t.Query["scope"],
	}

	if info.RedirectURL == "" && redirectStatuses[t.Status] {
		info.RedirectURL = t.ResponseHeaders[locationHeader]
	}

	return info
}
