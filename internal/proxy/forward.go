package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nap32/ohm/internal/metrics"
	"github.com/nap32/ohm/internal/traffic"
)

// capturedExchange holds the capture copies of one request/response
// pair: independent header maps and fully drained bodies that the
// capture/filter/persist goroutine owns outright, with no aliasing
// back into whatever net/http reuses for the forwarding path.
type capturedExchange struct {
	req        *http.Request
	reqHeader  http.Header
	reqBody    []byte
	respStatus int
	respProto  string
	respMajor  int
	respMinor  int
	respHeader http.Header
	respBody   []byte
	hasResp    bool
	truncated  bool
	insideTLS  bool
}

// handleForward relays r to its real origin and writes the origin's
// response back to the client, then spawns a detached goroutine that
// builds, filters, and persists a Traffic record from capture copies
// of the exchange. insideTLS records whether r arrived over a
// TLS-terminated tunnel, for scheme inference when r's URI carries
// none.
func (e *Engine) handleForward(w http.ResponseWriter, r *http.Request, log *slog.Logger, insideTLS bool) {
	if r.URL.Host == "" {
		r.URL.Host = r.Host
	}
	if r.URL.Scheme == "" {
		if insideTLS {
			r.URL.Scheme = "https"
		} else {
			r.URL.Scheme = "http"
		}
	}

	reqBody, err := drainBody(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	outbound := r.Clone(r.Context())
	outbound.RequestURI = ""
	outbound.Header = cloneHeader(r.Header)
	stripHopByHopHeaders(outbound.Header)
	outbound.Body = io.NopCloser(bytes.NewReader(reqBody))
	outbound.ContentLength = int64(len(reqBody))

	captureReqBody, reqTruncated := captureBody(reqBody)
	exch := capturedExchange{
		req:       r,
		reqHeader: cloneHeader(r.Header),
		reqBody:   captureReqBody,
		truncated: reqTruncated,
		insideTLS: insideTLS,
	}

	resp, err := e.transport.RoundTrip(outbound)
	if err != nil {
		log.Warn("upstream request failed", "host", r.URL.Host, "err", err)
		http.Error(w, (&UpstreamError{Authority: r.URL.Host, Err: err}).Error(), http.StatusBadGateway)
		e.dispatch(exch, log)
		return
	}

	respBody, err := drainBody(resp.Body)
	if err != nil {
		log.Warn("failed to read upstream response body", "host", r.URL.Host, "err", err)
		http.Error(w, (&UpstreamError{Authority: r.URL.Host, Err: err}).Error(), http.StatusBadGateway)
		e.dispatch(exch, log)
		return
	}

	respHeader := cloneHeader(resp.Header)
	stripHopByHopHeaders(respHeader)
	dst := w.Header()
	for k, vv := range respHeader {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)

	captureRespBody, respTruncated := captureBody(respBody)
	exch.hasResp = true
	exch.respStatus = resp.StatusCode
	exch.respProto = resp.Proto
	exch.respMajor = resp.ProtoMajor
	exch.respMinor = resp.ProtoMinor
	exch.respHeader = cloneHeader(resp.Header)
	exch.respBody = captureRespBody
	exch.truncated = exch.truncated || respTruncated

	e.dispatch(exch, log)
}

// dispatch builds a Traffic record from exch and hands it to the
// filter chain and datastore on a detached goroutine. It never
// blocks, and the goroutine's own context is independent of the
// client connection's so that closing the client socket cannot
// cancel a persist already in flight.
func (e *Engine) dispatch(exch capturedExchange, log *slog.Logger) {
	if e.chain == nil && e.store == nil {
		return
	}

	captureReq := exch.req.Clone(context.Background())
	captureReq.Header = exch.reqHeader

	var captureResp *http.Response
	if exch.hasResp {
		captureResp = &http.Response{
			StatusCode: exch.respStatus,
			Proto:      exch.respProto,
			ProtoMajor: exch.respMajor,
			ProtoMinor: exch.respMinor,
			Header:     exch.respHeader,
		}
	}

	t := traffic.Build(captureReq, exch.reqBody, captureResp, exch.respBody, exch.insideTLS)
	t.Truncated = exch.truncated

	go e.capture(t, log)
}

// capture runs t through the filter chain and, if it survives,
// persists it. Any failure here is logged and the record discarded;
// it never propagates back to a client-facing response because the
// response has already been written by the time this runs.
func (e *Engine) capture(t *traffic.Traffic, log *slog.Logger) {
	if e.chain != nil && !e.chain.Run(t) {
		return
	}
	if e.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.store.AddTraffic(ctx, t); err != nil {
		metrics.PersistErrors.WithLabelValues("add_traffic").Inc()
		log.Warn("failed to persist traffic", "host", t.Host, "path", t.Path, "err", err)
	}
}
