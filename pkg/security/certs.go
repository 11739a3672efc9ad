package security

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Bundle is one mTLS endpoint's certificate material on disk: the
// endpoint's identity certificate and private key, plus the root CA
// certificate it verifies the other side against. A serving node and a
// CLI client each keep one bundle directory under ~/.orga/certs; pkg/api
// and pkg/client load bundles, cmd/orga's certs subcommands write them.
type Bundle struct {
	Dir string
}

const (
	bundleRoot = ".orga/certs"

	identityCertFile = "node.crt"
	identityKeyFile  = "node.key"
	caCertFile       = "ca.crt"

	// rotationThreshold is how close to expiry an identity certificate may
	// get before NeedsRotation reports it should be re-issued.
	rotationThreshold = 30 * 24 * time.Hour
)

// NodeBundle returns the bundle for a serving node's identity.
func NodeBundle(nodeID string) (Bundle, error) {
	return bundleAt("node-" + nodeID)
}

// CLIBundle returns the bundle for the local CLI identity.
func CLIBundle() (Bundle, error) {
	return bundleAt("cli")
}

func bundleAt(name string) (Bundle, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Bundle{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return Bundle{Dir: filepath.Join(home, bundleRoot, name)}, nil
}

func (b Bundle) identityCertPath() string { return filepath.Join(b.Dir, identityCertFile) }
func (b Bundle) identityKeyPath() string  { return filepath.Join(b.Dir, identityKeyFile) }
func (b Bundle) caCertPath() string       { return filepath.Join(b.Dir, caCertFile) }

// Exists reports whether the bundle is complete. All three files are
// required before an endpoint can serve or dial mTLS, so a partially
// written bundle counts as absent.
func (b Bundle) Exists() bool {
	for _, p := range []string{b.identityCertPath(), b.identityKeyPath(), b.caCertPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Write persists a freshly issued identity certificate together with the
// root CA it chains to, creating the bundle directory if needed. The
// private key is written 0600; the CA certificate is public material and
// written 0644.
func (b Bundle) Write(identity *tls.Certificate, caDER []byte) error {
	if err := os.MkdirAll(b.Dir, 0700); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}

	key, ok := identity.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("identity key is not RSA")
	}

	files := []struct {
		path  string
		block *pem.Block
		mode  os.FileMode
	}{
		{b.identityCertPath(), &pem.Block{Type: "CERTIFICATE", Bytes: identity.Certificate[0]}, 0600},
		{b.identityKeyPath(), &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}, 0600},
		{b.caCertPath(), &pem.Block{Type: "CERTIFICATE", Bytes: caDER}, 0644},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, pem.EncodeToMemory(f.block), f.mode); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
		}
	}
	return nil
}

// LoadIdentity loads the endpoint's certificate and key, with Leaf parsed
// so callers can check expiry without decoding the chain themselves.
func (b Bundle) LoadIdentity() (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(b.identityCertPath(), b.identityKeyPath())
	if err != nil {
		return nil, fmt.Errorf("load identity certificate: %w", err)
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse identity certificate: %w", err)
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}

// LoadCA loads the bundle's root CA certificate.
func (b Bundle) LoadCA() (*x509.Certificate, error) {
	pemBytes, err := os.ReadFile(b.caCertPath())
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("decode CA certificate PEM")
	}
	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	return ca, nil
}

// Remove deletes the bundle directory and everything in it.
func (b Bundle) Remove() error {
	return os.RemoveAll(b.Dir)
}

// NeedsRotation reports whether cert is close enough to expiry that its
// owner should re-issue it. pkg/api checks this at server start and logs
// a warning; a nil certificate always needs rotation.
func NeedsRotation(cert *x509.Certificate) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) < rotationThreshold
}
