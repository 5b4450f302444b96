package filter

import (
	"log/slog"
	"strings"

	"github.com/nap32/ohm/internal/traffic"
)

// identityProviderStage diverts traffic whose host contains any
// configured identity-provider substring to the auth side channel and
// drops it from the main chain. It runs before the allow-list stage
// by design: identity-provider traffic is never subject to the
// allow-list.
type identityProviderStage struct {
	hosts []string
	sink  AuthSink
	log   *slog.Logger
}

func (s *identityProviderStage) Name() string { return "identity-provider-check" }

func (s *identityProviderStage) Apply(t *traffic.Traffic) bool {
	for _, idp := range s.hosts {
		if strings.Contains(t.Host, idp) {
			if s.sink != nil {
				s.sink.AddAuth(traffic.ExtractAuthInfo(t))
			} else {
				s.log.Warn("identity-provider traffic diverted with no auth sink configured", "host", t.Host)
			}
			return false
		}
	}
	return true
}

// allowListStage drops traffic whose host matches none of the
// configured allow-list substrings. An empty allow-list passes
// everything through.
type allowListStage struct {
	hosts []string
}

func (s *allowListStage) Name() string { return "allow-list" }

func (s *allowListStage) Apply(t *traffic.Traffic) bool {
	if len(s.hosts) == 0 {
		return true
	}
	for _, h := range s.hosts {
		if strings.Contains(t.Host, h) {
			return true
		}
	}
	return false
}

// denyListStage drops traffic whose host matches any configured
// deny-list substring.
type denyListStage struct {
	hosts []string
}

func (s *denyListStage) Name() string { return "deny-list" }

func (s *denyListStage) Apply(t *traffic.Traffic) bool {
	for _, h := range s.hosts {
		if strings.Contains(t.Host, h) {
			return false
		}
	}
	return true
}
