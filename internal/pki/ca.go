// Package pki provides the certificate authority used to terminate
// client TLS for intercepted connections.
//
// The CA is loaded once at startup from a PEM key pair on disk and
// mints a leaf certificate on demand for every distinct host the
// proxy is asked to CONNECT to; the port of a host[:port] authority
// does not affect the leaf. Leaf certificates are cached by host so
// that repeat connections to the same host reuse the same certificate
// instead of minting a new one every time.
package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nap32/ohm/internal/metrics"
)

// leafValidity is the validity window granted to every minted leaf
// certificate, matching the CA's own long-lived validity assumptions.
const leafValidity = 365 * 24 * time.Hour

// maxCacheEntries bounds the leaf cache. Certificates are cheap to
// re-mint (a handful of milliseconds), so once the cache grows past
// this size the least-recently-used entries are evicted.
const maxCacheEntries = 4096

// CA loads a root key pair once and mints per-authority leaf
// certificates signed by it.
//
// The leaf's public key is deliberately the CA's own public key
// rather than a freshly generated key pair: this mirrors the
// reference implementation this proxy was modeled on and keeps
// Mint a pure function of (CA key pair, authority) with no per-call
// randomness beyond the serial number, which makes certificate
// determinism easy to reason about. It is not a secure pattern for a
// production CA serving untrusted leaves; it is acceptable here
// because every client a leaf is presented to already trusts this
// CA's root certificate.
type CA struct {
	cert *x509.Certificate
	key  crypto.Signer

	cache  *leafCache
	single singleflight.Group
}

// Load reads the CA private key and certificate from the given PEM
// file paths. Any failure here is fatal: the proxy cannot terminate
// any TLS connection without a working CA.
func Load(keyPath, certPath string) (*CA, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, &KeyLoadError{Path: keyPath, Err: err}
	}
	key, err := parsePrivateKey(keyBytes)
	if err != nil {
		return nil, &KeyLoadError{Path: keyPath, Err: err}
	}

	certBytes, err := os.ReadFile(certPath)
	if err != nil {
		return nil, &CertLoadError{Path: certPath, Err: err}
	}
	cert, err := parseCertificate(certBytes)
	if err != nil {
		return nil, &CertLoadError{Path: certPath, Err: err}
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, &KeyLoadError{Path: keyPath, Err: fmt.Errorf("key does not implement crypto.Signer")}
	}

	pub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(signer.Public()) {
		return nil, &KeyLoadError{Path: keyPath, Err: fmt.Errorf("key does not match certificate %s", certPath)}
	}

	return &CA{
		cert:  cert,
		key:   signer,
		cache: newLeafCache(maxCacheEntries),
	}, nil
}

// Mint returns a leaf certificate for the given authority
// (host[:port] or bare host), minting and caching one if none exists
// yet for its host. The cache and the mint coalescing are keyed by
// host, so authorities that differ only in port share one leaf, and
// concurrent calls for the same host are coalesced so that at most
// one mint operation runs per host at a time.
func (ca *CA) Mint(authority string) (*tls.Certificate, error) {
	host, err := hostOf(authority)
	if err != nil {
		return nil, &CertBuildError{Authority: authority, Err: err}
	}

	if cert, ok := ca.cache.get(host); ok {
		metrics.MintTotal.WithLabelValues("hit").Inc()
		return cert, nil
	}

	v, err, _ := ca.single.Do(host, func() (any, error) {
		if cert, ok := ca.cache.get(host); ok {
			return cert, nil
		}
		cert, err := ca.mintLeaf(host)
		if err != nil {
			return nil, err
		}
		ca.cache.put(host, cert)
		return cert, nil
	})
	if err != nil {
		metrics.MintTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MintTotal.WithLabelValues("miss").Inc()
	return v.(*tls.Certificate), nil
}

func (ca *CA) mintLeaf(host string) (*tls.Certificate, error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, &CertBuildError{Authority: host, Err: err}
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Country:            []string{"US"},
			Province:           []string{"CA"},
			Organization:       []string{"OHM"},
			CommonName:         host,
		},
		Issuer:       ca.cert.Subject,
		NotBefore:    now,
		NotAfter:     now.Add(leafValidity),
		DNSNames:     []string{host},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, ca.key.Public(), ca.key)
	if err != nil {
		return nil, &SignError{Authority: host, Err: err}
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, ca.cert.Raw},
		PrivateKey:  ca.key,
		Leaf:        tmpl,
	}, nil
}

// TLSConfig returns a server-side tls.Config that mints (or serves
// from cache) a leaf certificate matching the SNI host name presented
// in the handshake's ClientHello. h2 advertises HTTP/2 ALPN in
// addition to HTTP/1.1; it is opt-in because the proxy engine's
// inner-serve loop only implements HTTP/1.x framing.
func (ca *CA) TLSConfig(authority string, h2 bool) *tls.Config {
	alpn := []string{"http/1.1"}
	if h2 {
		alpn = []string{"h2", "http/1.1"}
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: alpn,
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			host := authority
			if hello.ServerName != "" {
				host = hello.ServerName
			}
			return ca.Mint(host)
		},
	}
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}
