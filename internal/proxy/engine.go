// Package proxy implements the CONNECT-upgrade / TLS-interception
// engine: it terminates client TLS using leaf certificates minted by
// internal/pki, forwards requests to their real origins, and spawns a
// detached goroutine per completed exchange to build a
// internal/traffic.Traffic record, run it through a
// internal/filter.Chain, and persist survivors via a
// internal/datastore.Datastore.
package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nap32/ohm/internal/datastore"
	"github.com/nap32/ohm/internal/filter"
	"github.com/nap32/ohm/internal/pki"
)

// Engine is the proxy's HTTP handler. One Engine is shared by every
// accepted connection; it holds no per-connection mutable state.
type Engine struct {
	ca    *pki.CA
	chain *filter.Chain
	store datastore.Datastore
	log   *slog.Logger

	transport *http.Transport

	// h2 enables advertising HTTP/2 ALPN on minted leaves. The inner
	// serve loop only implements HTTP/1.x framing, so this is off by
	// default.
	h2 bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithHTTP2Leaf enables "h2" in the leaf certificate's ALPN list.
func WithHTTP2Leaf(enabled bool) Option {
	return func(e *Engine) { e.h2 = enabled }
}

// New builds an Engine. ca must already be loaded; chain and store
// may be nil only in tests that do not exercise the capture/persist
// path.
func New(ca *pki.CA, chain *filter.Chain, store datastore.Datastore, opts ...Option) *Engine {
	e := &Engine{
		ca:    ca,
		chain: chain,
		store: store,
		log:   slog.Default().With("component", "proxy"),
		transport: &http.Transport{
			Proxy:                 nil, // we ARE the proxy; never recurse through another one
			ForceAttemptHTTP2:     false,
			DisableCompression:    true, // relay upstream bodies exactly as encoded
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ServeHTTP dispatches CONNECT requests to the tunnel/TLS-interception
// path and everything else to the plain-HTTP forward path.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	log := e.log.With("conn", id)

	if r.Method == http.MethodConnect {
		e.handleConnect(w, r, log)
		return
	}
	e.handleForward(w, r, log, false)
}
