package proxy

import "fmt"

// ProtocolError indicates a malformed client request. The proxy
// responds with 400 and never establishes a tunnel or forwards the
// request upstream.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("proxy: protocol error: %s", e.Reason)
}

// UpstreamError indicates a failure reaching the origin (DNS, TCP,
// TLS, or HTTP failure). The client receives a synthesized 502-style
// response; the captured record carries status 0 and an empty body.
type UpstreamError struct {
	Authority string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("proxy: upstream error contacting %s: %v", e.Authority, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
