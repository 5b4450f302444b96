package bootstrap

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nap32/ohm/internal/config"
)

func TestBuildFailsWithoutCAFiles(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if _, err := Build(cfg); err == nil {
		t.Fatal("expected Build to fail when the configured CA files do not exist")
	}
}

func TestBuildSucceedsWithMemoryDatastore(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "ohm.key")
	certPath := filepath.Join(dir, "ohm.pem")
	writeTestCA(t, keyPath, certPath)

	configPath := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf(`
[net]
port = 0

[ca]
key_relative_path = %q
pem_relative_path = %q

[db]
db_url = ""
`, keyPath, certPath)
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	app, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(app.listeners) != 1 {
		t.Fatalf("listeners = %d, want 1 (no observability listener configured)", len(app.listeners))
	}
}

// writeTestCA generates a throwaway self-signed CA key pair and
// writes it to the given PEM file paths.
func writeTestCA(t *testing.T, keyPath, certPath string) {
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

	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
}
