/*
Package security provides cryptographic services for an engine cluster: a
Certificate Authority (CA) for mutual TLS between a node's gRPC API and its
query clients, certificate lifecycle management, and at-rest encryption of the
CA's own root key.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                    Security Architecture                    │
	└─────┬───────────────────────┬──────────────────┬────────────┘
	      │                       │                  │
	      ▼                       ▼                  ▼
	┌─────────────┐      ┌────────────────┐   ┌──────────────┐
	│  Root Key   │      │       CA       │   │ Certificate  │
	│ Encryption  │      │  (Root only)   │   │  Management  │
	└─────┬───────┘      └────────┬───────┘   └──────┬───────┘
	      │                       │                   │
	      ▼                       ▼                   ▼
	  AES-256-GCM         RSA 4096-bit          90-day rotation
	  Root key at rest    10-year validity      Manual re-issue

## Cluster Encryption Key

All security is rooted in the cluster encryption key, a 32-byte key derived
from the cluster ID during initialization:

	clusterKey = SHA-256(clusterID)

This key encrypts the CA's root private key wherever it is persisted. It is
held only in memory and must be supplied again whenever a node starts or
restores from backup.

# Certificate Authority

## Root CA

The root certificate is self-signed and long-lived:

	Root CA (self-signed)
	├── 10-year validity
	├── RSA 4096-bit key
	├── KeyUsage: CertSign, CRLSign
	└── Subject: CN=Orga Root CA, O=Orga Cluster

The root certificate is stored in plaintext alongside its private key,
which is encrypted with the cluster key (see CAStore).

## Node Certificates

The CA issues a certificate per serving node ('orga certs init' issues
one with role "api"):

	Node Certificate
	├── 90-day validity
	├── RSA 2048-bit key
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ServerAuth, ClientAuth
	├── Subject: CN={role}-{nodeID}, O=Orga Cluster
	├── DNS Names: [node hostname]
	└── IP Addresses: [node IP]

The node's gRPC API server and each client verify the other's
certificate against the shared root CA. Raft traffic between peers goes
over a plain TCP transport and does not use these certificates.

## Client Certificates

Query clients (pkg/client, cmd/orga) receive a ClientAuth-only certificate:

	CLI Certificate
	├── 90-day validity
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ClientAuth
	└── Subject: CN=cli-{clientID}, O=Orga Cluster

# Usage

	clusterKey := security.DeriveKeyFromClusterID(clusterID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		panic(err)
	}

	caStore, err := store.OpenBoltStore(filepath.Join(dataDir, "ca.db"))
	if err != nil {
		panic(err)
	}
	ca := security.NewCertAuthority(caStore)
	if err := ca.Initialize(); err != nil {
		panic(err)
	}
	if err := ca.SaveToStore(); err != nil {
		panic(err)
	}

	tlsCert, err := ca.IssueNodeCertificate(nodeID, "raft", dnsNames, ipAddrs)
	if err != nil {
		panic(err)
	}

On a later start, load the existing CA instead of generating a new one:

	if err := ca.LoadFromStore(); err != nil {
		panic(err)
	}

# gRPC TLS Integration

pkg/api wires CA-issued certificates into gRPC's transport credentials for
mutual authentication on the Query/CheckTx service:

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{nodeCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    certPool, // contains the root CA
	})

# Certificate Bundles

Issued certificates live on disk as a Bundle: one directory per endpoint
holding the identity certificate, its private key, and the root CA
certificate. cmd/orga's certs subcommands write bundles; pkg/api and
pkg/client load them.

# Certificate Rotation

NeedsRotation reports true once less than 30 days remain until expiry;
pkg/api checks it when a server starts and logs a warning so the operator
can re-issue via 'orga certs init'. Automatic rotation is not implemented.

# Threat Model

This package protects against network eavesdropping (TLS), unauthorized
connections (mTLS), and certificate forgery (CA-signed certs only). It
does not protect against a compromised cluster encryption key or a
compromised CA private key - either exposes every certificate this CA has
issued or could issue.
*/
package security
