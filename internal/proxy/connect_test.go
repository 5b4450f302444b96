package proxy

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nap32/ohm/internal/pki"
)

// writeTestCA generates a throwaway self-signed CA key pair, writes it
// to PEM files under t.TempDir(), and returns their paths plus the raw
// certificate PEM bytes (for building a client-side trust root).
func writeTestCA(t *testing.T) (keyPath, certPath string, certPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "ohm-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
	keyPath = filepath.Join(dir, "ca.key")
	certPath = filepath.Join(dir, "ca.pem")

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	return keyPath, certPath, certPEM
}

// TestConnectTunnelsTLSAndForwardsInnerRequest drives the full CONNECT
// path end to end: CONNECT is accepted, a client TLS handshake against
// the minted leaf succeeds, and an inner HTTP/1.1 request sent over
// that tunnel reaches the real origin and its response comes back
// unmodified.
func TestConnectTunnelsTLSAndForwardsInnerRequest(t *testing.T) {
	keyPath, certPath, certPEM := writeTestCA(t)
	ca, err := pki.Load(keyPath, certPath)
	if err != nil {
		t.Fatalf("pki.Load: %v", err)
	}

	origin := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello from origin"))
	}))
	defer origin.Close()
	authority := strings.TrimPrefix(origin.URL, "https://")
	host, _, err := net.SplitHostPort(authority)
	if err != nil {
		t.Fatalf("split authority: %v", err)
	}

	e := New(ca, nil, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	// The origin's httptest-issued leaf is self-signed and not in any
	// system trust store; trust it explicitly for this test so the
	// engine's outbound RoundTrip can complete.
	e.transport.TLSClientConfig = &tls.Config{RootCAs: origin.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	srv := &http.Server{Handler: e}
	go func() {
		_ = srv.Serve(newSingleConnListener(serverConn))
	}()

	go func() {
		_, _ = clientConn.Write([]byte("CONNECT " + authority + " HTTP/1.1\r\nHost: " + authority + "\r\n\r\n"))
	}()

	clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	br := bufio.NewReader(clientConn)
	connectResp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read CONNECT response: %v", err)
	}
	if connectResp.StatusCode != http.StatusOK {
		t.Fatalf("CONNECT status = %d, want 200", connectResp.StatusCode)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatal("failed to load CA cert into pool")
	}
	tlsConn := tls.Client(clientConn, &tls.Config{RootCAs: pool, ServerName: host})
	if err := tlsConn.Handshake(); err != nil {
		t.Fatalf("client TLS handshake against minted leaf failed: %v", err)
	}

	peerCerts := tlsConn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 || peerCerts[0].Subject.CommonName != host {
		t.Fatalf("minted leaf CommonName = %v, want %q", peerCerts, host)
	}
	if len(peerCerts[0].DNSNames) != 1 || peerCerts[0].DNSNames[0] != host {
		t.Errorf("minted leaf DNSNames = %v, want [%s]", peerCerts[0].DNSNames, host)
	}

	if _, err := io.WriteString(tlsConn, "GET / HTTP/1.1\r\nHost: "+authority+"\r\n\r\n"); err != nil {
		t.Fatalf("write inner request: %v", err)
	}

	innerResp, err := http.ReadResponse(bufio.NewReader(tlsConn), nil)
	if err != nil {
		t.Fatalf("read inner response: %v", err)
	}
	defer innerResp.Body.Close()

	body, err := io.ReadAll(innerResp.Body)
	if err != nil {
		t.Fatalf("read inner body: %v", err)
	}
	if innerResp.StatusCode != http.StatusOK || string(body) != "hello from origin" {
		t.Fatalf("inner response = %d %q, want 200 \"hello from origin\"", innerResp.StatusCode, body)
	}
}

func TestMalformedConnectReturns400(t *testing.T) {
	e := New(nil, nil, nil)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	srv := &http.Server{Handler: e}
	go func() {
		_ = srv.Serve(newSingleConnListener(serverConn))
	}()

	go func() {
		_, _ = clientConn.Write([]byte("CONNECT not-a-host HTTP/1.1\r\nHost: not-a-host\r\n\r\n"))
	}()

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(clientConn), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var sb strings.Builder
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	sb.Write(buf[:n])
	if !strings.HasPrefix(sb.String(), "CONNECT must be to a socket address.") {
		t.Errorf("body = %q, want prefix %q", sb.String(), "CONNECT must be to a socket address.")
	}
}

func TestIsSocketAddress(t *testing.T) {
	cases := map[string]bool{
		"example.test:443": true,
		"not-a-host":        false,
		"":                  false,
		"example.test":      false,
	}
	for in, want := range cases {
		if got := isSocketAddress(in); got != want {
			t.Errorf("isSocketAddress(%q) = %v, want %v", in, got, want)
		}
	}
}
