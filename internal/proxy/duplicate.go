package proxy

import (
	"io"
)

// maxCaptureBodyBytes bounds how much of a body is buffered for
// capture. Bodies larger than this are still forwarded to the client
// in full; only the captured copy is truncated, and the capture
// record is flagged accordingly.
const maxCaptureBodyBytes = 16 << 20 // 16 MiB

// drainBody reads body fully into memory and returns the bytes that
// should be used for the forwarding copy: since the underlying stream
// can only be read once, producing one byte slice and handing it to
// two independent consumers (an io.NopCloser wrapping it for the
// wire, and captureBody's capped view for the Traffic builder) is
// what makes the forward and capture copies byte-identical by
// construction up to the capture cap, without needing to materialize
// two parallel in-memory request/response objects the way a
// single-ownership language would.
func drainBody(body io.ReadCloser) (data []byte, err error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	return io.ReadAll(body)
}

// captureBody returns the slice of data to use for the capture copy,
// capping it at maxCaptureBodyBytes. The forwarding copy always uses
// the full, untruncated data returned by drainBody.
func captureBody(data []byte) (capture []byte, truncated bool) {
	if int64(len(data)) <= maxCaptureBodyBytes {
		return data, false
	}
	return data[:maxCaptureBodyBytes], true
}
