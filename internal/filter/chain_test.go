package filter

import (
	"bytes"
	"compress/gzip"
	"log/slog"
	"testing"

	"github.com/nap32/ohm/internal/traffic"
)

type fakeSink struct {
	got []traffic.AuthInfo
}

func (f *fakeSink) AddAuth(info traffic.AuthInfo) { f.got = append(f.got, info) }

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestChainDropsDeniedHost(t *testing.T) {
	c := New(nil, nil, []string{"evil.test"}, nil, slog.Default())
	tr := &traffic.Traffic{Host: "evil.test", ResponseHeaders: map[string]string{}}
	if c.Run(tr) {
		t.Error("expected denied host to be dropped")
	}
}

func TestChainDivertsIdentityProviderBeforeAllowList(t *testing.T) {
	sink := &fakeSink{}
	// allow-list configured so that, absent the IdP bypass, idp.test
	// would be dropped for not matching.
	c := New([]string{"idp.test"}, []string{"other.test"}, nil, sink, slog.Default())
	tr := &traffic.Traffic{
		Host:  "idp.test",
		Query: map[string]string{"response_type": "code", "client_id": "abc", "scope": "openid"},
	}
	if c.Run(tr) {
		t.Error("expected identity-provider traffic to be dropped from the main chain")
	}
	if len(sink.got) != 1 {
		t.Fatalf("expected 1 AuthInfo dispatched, got %d", len(sink.got))
	}
	if sink.got[0].Issuer != "idp.test" || sink.got[0].ClientID != "abc" {
		t.Errorf("unexpected AuthInfo: %+v", sink.got[0])
	}
}

func TestChainAllowListDropsUnmatchedHost(t *testing.T) {
	c := New(nil, []string{"allowed.test"}, nil, nil, slog.Default())
	tr := &traffic.Traffic{Host: "other.test", ResponseHeaders: map[string]string{}}
	if c.Run(tr) {
		t.Error("expected unmatched host to be dropped by allow-list")
	}
}

func TestChainEmptyAllowListPassesEverything(t *testing.T) {
	c := New(nil, nil, nil, nil, slog.Default())
	tr := &traffic.Traffic{Host: "anything.test", RequestBody: []byte("x"), ResponseBody: []byte("y"), ResponseHeaders: map[string]string{}}
	if !c.Run(tr) {
		t.Error("expected empty allow/deny lists to pass traffic through")
	}
}

func TestChainDecompressesGzipAndPopulatesString(t *testing.T) {
	c := New(nil, nil, nil, nil, slog.Default())
	tr := &traffic.Traffic{
		Host:            "example.test",
		ResponseBody:    gzipBytes(t, "abc"),
		ResponseHeaders: map[string]string{"content-encoding": "gzip"},
	}
	if !c.Run(tr) {
		t.Fatal("expected traffic to survive the chain")
	}
	if string(tr.ResponseBody) != "abc" {
		t.Errorf("ResponseBody = %q, want abc", tr.ResponseBody)
	}
	if tr.ResponseBodyString == nil || *tr.ResponseBodyString != "abc" {
		t.Errorf("ResponseBodyString = %v, want abc", tr.ResponseBodyString)
	}
	if _, ok := tr.ResponseHeaders["content-encoding"]; ok {
		t.Error("expected content-encoding header to be removed")
	}
}

func TestChainInvalidUTF8LeavesStringAbsent(t *testing.T) {
	c := New(nil, nil, nil, nil, slog.Default())
	tr := &traffic.Traffic{
		Host:            "example.test",
		ResponseBody:    []byte{0xff, 0xfe, 0xfd},
		ResponseHeaders: map[string]string{},
	}
	if !c.Run(tr) {
		t.Fatal("expected traffic to survive the chain")
	}
	if tr.ResponseBodyString != nil {
		t.Error("expected ResponseBodyString to remain absent for invalid UTF-8")
	}
}

func TestChainRunTwiceIsIdempotent(t *testing.T) {
	c := New(nil, nil, nil, nil, slog.Default())
	tr := &traffic.Traffic{
		Host:            "example.test",
		ResponseBody:    gzipBytes(t, "abc"),
		ResponseHeaders: map[string]string{"content-encoding": "gzip"},
	}
	if !c.Run(tr) {
		t.Fatal("expected first run to succeed")
	}
	before := string(tr.ResponseBody)
	if !c.Run(tr) {
		t.Fatal("expected second run to succeed")
	}
	if string(tr.ResponseBody) != before {
		t.Errorf("second run changed body: got %q, want %q", tr.ResponseBody, before)
	}
}
