package security

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/turbofish-org/orga/pkg/store"
)

// newTestCA builds an initialized in-memory CA over a throwaway bolt file.
// Issuance needs no cluster encryption key; only SaveToStore/LoadFromStore
// do, and bundle handling never touches the CA's persistence.
func newTestCA(t *testing.T) *CertAuthority {
	t.Helper()
	s, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "ca.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	ca := NewCertAuthority(s)
	require.NoError(t, ca.Initialize())
	return ca
}

func TestBundleLifecycle(t *testing.T) {
	ca := newTestCA(t)
	identity, err := ca.IssueNodeCertificate("node1", "api", []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	b := Bundle{Dir: filepath.Join(t.TempDir(), "bundle")}
	require.False(t, b.Exists(), "a bundle directory that was never written must not exist")

	require.NoError(t, b.Write(identity, ca.GetRootCACert()))
	require.True(t, b.Exists())

	loaded, err := b.LoadIdentity()
	require.NoError(t, err)
	require.NotNil(t, loaded.Leaf, "LoadIdentity must parse the leaf for expiry checks")
	require.Equal(t, "api-node1", loaded.Leaf.Subject.CommonName)

	caCert, err := b.LoadCA()
	require.NoError(t, err)

	// The loaded pair must form the working mTLS contract: the identity
	// chains to the bundled root.
	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	_, err = loaded.Leaf.Verify(x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	require.NoError(t, err, "bundled identity must verify against the bundled CA")

	require.NoError(t, b.Remove())
	require.False(t, b.Exists())
}

func TestBundleExistsRequiresAllThreeFiles(t *testing.T) {
	ca := newTestCA(t)
	identity, err := ca.IssueClientCertificate("ops")
	require.NoError(t, err)

	b := Bundle{Dir: t.TempDir()}
	require.NoError(t, b.Write(identity, ca.GetRootCACert()))
	require.True(t, b.Exists())

	require.NoError(t, os.Remove(filepath.Join(b.Dir, "ca.crt")))
	require.False(t, b.Exists(), "a bundle missing its CA certificate is incomplete")
}

func TestBundleWriteRejectsNonRSAKey(t *testing.T) {
	b := Bundle{Dir: t.TempDir()}
	err := b.Write(&tls.Certificate{Certificate: [][]byte{{0x01}}, PrivateKey: struct{}{}}, nil)
	require.Error(t, err)
}

func TestNodeBundleAndCLIBundleDirs(t *testing.T) {
	nb, err := NodeBundle("node7")
	require.NoError(t, err)
	require.Equal(t, "node-node7", filepath.Base(nb.Dir))

	cb, err := CLIBundle()
	require.NoError(t, err)
	require.Equal(t, "cli", filepath.Base(cb.Dir))
}

func TestNeedsRotation(t *testing.T) {
	cases := []struct {
		name     string
		notAfter time.Time
		want     bool
	}{
		{"expires tomorrow", time.Now().Add(24 * time.Hour), true},
		{"expires in 29 days", time.Now().Add(29 * 24 * time.Hour), true},
		{"expires in 31 days", time.Now().Add(31 * 24 * time.Hour), false},
		{"expires in 90 days", time.Now().Add(90 * 24 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NeedsRotation(&x509.Certificate{NotAfter: tc.notAfter}))
		})
	}
	require.True(t, NeedsRotation(nil))
}
