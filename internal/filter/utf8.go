package filter

import (
	"unicode/utf8"

	"github.com/nap32/ohm/internal/traffic"
)

// utf8RequestStage populates RequestBodyString when the request body
// is valid UTF-8; otherwise it leaves the field absent. It never
// drops a record.
type utf8RequestStage struct{}

func (s *utf8RequestStage) Name() string { return "utf8-decode-request" }

func (s *utf8RequestStage) Apply(t *traffic.Traffic) bool {
	if utf8.Valid(t.RequestBody) {
		str := string(t.RequestBody)
		t.RequestBodyString = &str
	}
	return true
}

// utf8ResponseStage populates ResponseBodyString when the response
// body is valid UTF-8; otherwise it leaves the field absent. It never
// drops a record.
type utf8ResponseStage struct{}

func (s *utf8ResponseStage) Name() string { return "utf8-decode-response" }

func (s *utf8ResponseStage) Apply(t *traffic.Traffic) bool {
	if utf8.Valid(t.ResponseBody) {
		str := string(t.ResponseBody)
		t.ResponseBodyString = &str
	}
	return true
}
