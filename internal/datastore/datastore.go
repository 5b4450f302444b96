// Package datastore defines the abstract persistence boundary the
// proxy engine dispatches captured records to. internal/datastore/mongo
// provides the one concrete implementation.
package datastore

import (
	"context"

	"github.com/nap32/ohm/internal/traffic"
)

// Datastore persists captured Traffic and AuthInfo records. Neither
// method may mutate its argument. Implementations are expected to
// treat both calls as best-effort: a transient failure is logged and
// the record discarded by the caller, never retried inside the core
// proxy path, and must never block the client-facing response that
// produced the record.
type Datastore interface {
	// AddTraffic persists a captured request/response record. Callers
	// may invoke this concurrently and from any goroutine; it must be
	// safe to call after the client connection that produced t has
	// already closed.
	AddTraffic(ctx context.Context, t *traffic.Traffic) error

	// AddAuth persists an identity-provider record. Implementations
	// may upsert on the natural key (issuer, client_id, grant_type,
	// redirect_url, scope) instead of inserting a duplicate row.
	AddAuth(ctx context.Context, a traffic.AuthInfo) error
}
