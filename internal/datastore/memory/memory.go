// Package memory implements internal/datastore.Datastore in process
// memory. It has no persistence across restarts and exists for tests
// and local development without a running MongoDB instance.
package memory

import (
	"context"
	"sync"

	"github.com/nap32/ohm/internal/traffic"
)

// Store is a goroutine-safe, in-memory Datastore.
type Store struct {
	mu       sync.Mutex
	traffic  []*traffic.Traffic
	auth     []traffic.AuthInfo
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

func (s *Store) AddTraffic(_ context.Context, t *traffic.Traffic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traffic = append(s.traffic, t)
	return nil
}

func (s *Store) AddAuth(_ context.Context, a traffic.AuthInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.auth {
		if existing == a {
			s.auth[i] = a
			return nil
		}
	}
	s.auth = append(s.auth, a)
	return nil
}

// Traffic returns a snapshot of every record persisted so far.
func (s *Store) Traffic() []*traffic.Traffic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*traffic.Traffic, len(s.traffic))
	copy(out, s.traffic)
	return out
}

// Auth returns a snapshot of every auth record persisted so far.
func (s *Store) Auth() []traffic.AuthInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]traffic.AuthInfo, len(s.auth))
	copy(out, s.auth)
	return out
}
