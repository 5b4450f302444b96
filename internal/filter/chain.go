// Package filter implements the ordered, short-circuiting chain that
// every captured Traffic record passes through before being handed to
// a Datastore: identity-provider diversion, allow/deny-list host
// checks, response decompression, and UTF-8 body decoding.
package filter

import (
	"log/slog"

	"github.com/nap32/ohm/internal/metrics"
	"github.com/nap32/ohm/internal/traffic"
)

// Stage classifies one value and either lets it continue through the
// chain or drops it. A stage that diverts a value to the auth side
// channel (the identity-provider stage) also drops it from the main
// chain, since a single Traffic is either ordinary captured traffic
// or auth traffic, never both.
type Stage interface {
	// Name identifies the stage in logs and metrics.
	Name() string
	// Apply inspects/transforms t. ok is false if t should be dropped
	// and no later stage should run.
	Apply(t *traffic.Traffic) (ok bool)
}

// AuthSink receives AuthInfo records produced by the identity-provider
// stage. DatastoreSink implements it on top of a datastore.Datastore.
type AuthSink interface {
	AddAuth(info traffic.AuthInfo)
}

// Chain is an immutable, ordered sequence of stages, installed once
// at startup and shared by every connection.
type Chain struct {
	stages []Stage
	log    *slog.Logger
}

// New builds the chain in the fixed order the system requires:
// identity-provider check, allow-list, deny-list, gzip, deflate,
// brotli, UTF-8 request decode, UTF-8 response decode. The
// identity-provider stage runs first and diverts matching traffic
// before the allow-list stage ever sees it; this is intentional, not
// an oversight, and must not be reordered.
func New(identityProviders, allowList, denyList []string, sink AuthSink, log *slog.Logger) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{
		log: log,
		stages: []Stage{
			&identityProviderStage{hosts: identityProviders, sink: sink, log: log},
			&allowListStage{hosts: allowList},
			&denyListStage{hosts: denyList},
			&decompressStage{encoding: "gzip", log: log},
			&decompressStage{encoding: "deflate", log: log},
			&decompressStage{encoding: "br", log: log},
			&utf8RequestStage{},
			&utf8ResponseStage{},
		},
	}
}

// Run passes t through every stage in order, stopping at the first
// one that drops it. It returns true if t survived the entire chain
// and should be persisted.
func (c *Chain) Run(t *traffic.Traffic) bool {
	for _, s := range c.stages {
		if !s.Apply(t) {
			c.log.Debug("filter dropped traffic", "stage", s.Name(), "host", t.Host, "path", t.Path)
			metrics.FilterDropped.WithLabelValues(s.Name()).Inc()
			metrics.TrafficCaptured.WithLabelValues("true").Inc()
			return false
		}
	}
	metrics.TrafficCaptured.WithLabelValues("false").Inc()
	return true
}
