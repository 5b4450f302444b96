package pki

import (
	"fmt"
	"net"
	"strings"
)

// hostOf extracts the bare host from an authority string of the form
// host[:port]. Authorities without a port (e.g. a bare SNI host name)
// are accepted as-is.
func hostOf(authority string) (string, error) {
	if authority == "" {
		return "", fmt.Errorf("empty authority")
	}
	if !strings.Contains(authority, ":") {
		return strings.ToLower(authority), nil
	}
	host, _, err := net.SplitHostPort(authority)
	if err != nil {
		return "", fmt.Errorf("parse authority %q: %w", authority, err)
	}
	return strings.ToLower(host), nil
}
