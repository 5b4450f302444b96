package proxy

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// shutdownErrorPrefix is a benign connection-shutdown error string
// that is suppressed from logs rather than reported as a failure. The
// error http.Server.Serve returns once the tunnel's single-connection
// listener is closed at the end of the tunnel's life (net.ErrClosed)
// is suppressed the same way.
const shutdownErrorPrefix = "error shutting down connection"

// handleConnect validates the CONNECT target, returns 200 immediately
// (the TLS handshake with the minted leaf has not happened yet — this
// is intentional and observable, matching the reference
// implementation this engine was modeled on: the client is told the
// tunnel is open before the handshake completes, and the handshake
// proceeds in the background), then serves the inner TLS connection.
func (e *Engine) handleConnect(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	authority := r.Host
	if authority == "" {
		authority = r.URL.Host
	}
	if !isSocketAddress(authority) {
		perr := &ProtocolError{Reason: fmt.Sprintf("CONNECT target %q is not a socket address", authority)}
		log.Warn("rejecting malformed CONNECT", "err", perr)
		http.Error(w, "CONNECT must be to a socket address.", http.StatusBadRequest)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		log.Error("hijack failed", "err", err)
		return
	}

	if _, err := io.WriteString(clientConn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		clientConn.Close()
		return
	}

	go e.serveTunnel(clientConn, authority, log)
}

// isSocketAddress reports whether authority parses as host:port, the
// only form CONNECT is defined over. A bare host with no port (e.g.
// "not-a-host") is rejected.
func isSocketAddress(authority string) bool {
	if authority == "" {
		return false
	}
	host, port, err := net.SplitHostPort(authority)
	return err == nil && host != "" && port != ""
}

// serveTunnel performs the TLS handshake using a leaf minted for
// authority, then serves HTTP/1.x requests over the resulting
// connection until the client disconnects. Handshake failures
// silently discard the socket, matching the non-fatal per-tunnel
// failure policy: a broken CONNECT attempt never takes down the
// process or any other connection.
func (e *Engine) serveTunnel(clientConn net.Conn, authority string, log *slog.Logger) {
	defer clientConn.Close()

	tlsConn := tls.Server(clientConn, e.ca.TLSConfig(authority, e.h2))
	if err := tlsConn.Handshake(); err != nil {
		log.Debug("tls handshake failed, discarding tunnel", "authority", authority, "err", err)
		return
	}

	listener := newSingleConnListener(nil)
	wrapped := &notifyCloseConn{Conn: tlsConn, onClose: func() { listener.Close() }}
	listener.conn = wrapped

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ProtoMajor < 2 && r.Host == "" {
				perr := &ProtocolError{Reason: "inner request has no Host header"}
				log.Warn("rejecting inner request", "authority", authority, "err", perr)
				http.Error(w, "Host header required.", http.StatusBadRequest)
				return
			}
			absolutize(r, authority)
			e.handleForward(w, r, log, true)
		}),
	}

	if err := srv.Serve(listener); err != nil {
		msg := err.Error()
		if !strings.HasPrefix(msg, shutdownErrorPrefix) && err != http.ErrServerClosed && !errors.Is(err, net.ErrClosed) {
			log.Debug("inner serve ended", "authority", authority, "err", err)
		}
	}
}

// absolutize rewrites an origin-form request URI into absolute form
// for HTTP/1.x requests received inside a TLS-terminated tunnel:
// scheme becomes https, authority comes from the Host header (a
// required header: net/http populates r.Host from the request line or
// Host header, and serveTunnel's handler answers an HTTP/1.x request
// that still has no host with a 400 before calling this), and the
// path/query are left as received. HTTP/2 and HTTP/3 requests already
// carry an absolute :authority pseudo-header via net/http's request
// parsing and are left untouched.
func absolutize(r *http.Request, fallbackAuthority string) {
	if r.ProtoMajor >= 2 {
		return
	}
	host := r.Host
	if host == "" {
		host = fallbackAuthority
	}
	r.URL.Scheme = "https"
	r.URL.Host = host
}
