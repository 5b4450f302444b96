package filter

import (
	"context"
	"log/slog"
	"time"

	"github.com/nap32/ohm/internal/datastore"
	"github.com/nap32/ohm/internal/metrics"
	"github.com/nap32/ohm/internal/traffic"
)

// DatastoreSink adapts a datastore.Datastore into an AuthSink. The
// identity-provider stage calls AddAuth synchronously from within
// Chain.Run, which itself runs on capture's detached goroutine, so
// there is no client-facing deadline to respect here; a fixed timeout
// still bounds how long a slow or unreachable datastore can hold the
// goroutine open.
type DatastoreSink struct {
	store datastore.Datastore
	log   *slog.Logger
}

// NewDatastoreSink wraps store as an AuthSink.
func NewDatastoreSink(store datastore.Datastore, log *slog.Logger) *DatastoreSink {
	if log == nil {
		log = slog.Default()
	}
	return &DatastoreSink{store: store, log: log}
}

func (s *DatastoreSink) AddAuth(info traffic.AuthInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.AddAuth(ctx, info); err != nil {
		metrics.PersistErrors.WithLabelValues("add_auth").Inc()
		s.log.Warn("failed to persist auth info", "issuer", info.Issuer, "err", err)
	}
}
