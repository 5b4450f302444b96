package filter

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"log/slog"

	"github.com/andybalholm/brotli"

	"github.com/nap32/ohm/internal/traffic"
)

// contentEncodingHeader is the canonical (lowercased) header name
// this stage inspects and, on success, removes.
const contentEncodingHeader = "content-encoding"

// decompressStage inflates a response body whose Content-Encoding
// matches encoding, replaces the body with the decoded bytes, and
// removes the header. A decode failure drops the record entirely
// rather than forwarding a half-decoded body; it never panics.
//
// Running this stage twice on an already-decoded record is a no-op:
// once decompression succeeds, content-encoding is removed, so the
// header match on a second pass never fires.
type decompressStage struct {
	encoding string
	log      *slog.Logger
}

func (s *decompressStage) Name() string { return "decompress-" + s.encoding }

func (s *decompressStage) Apply(t *traffic.Traffic) bool {
	if t.ResponseHeaders == nil {
		return true
	}
	if t.ResponseHeaders[contentEncodingHeader] != s.encoding {
		return true
	}

	decoded, err := decode(s.encoding, t.ResponseBody)
	if err != nil {
		derr := &DecodeError{Stage: s.Name(), Host: t.Host, Err: err}
		s.log.Debug("decompression failed, dropping record", "err", derr)
		return false
	}

	t.ResponseBody = decoded
	delete(t.ResponseHeaders, contentEncodingHeader)
	return true
}

func decode(encoding string, body []byte) ([]byte, error) {
	var r io.Reader
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(body))
		defer fl.Close()
		r = fl
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	default:
		return body, nil
	}
	return io.ReadAll(r)
}
