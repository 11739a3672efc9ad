package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/turbofish-org/orga/pkg/api"
	"github.com/turbofish-org/orga/pkg/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Client is a thin SDK around the orga.Engine gRPC service (pkg/api),
// wrapping an mTLS dial and certificate lookup around the engine's
// Query/CheckTx pair.
type Client struct {
	conn   *grpc.ClientConn
	engine api.EngineClient
}

// NewClient dials addr with an existing CLI certificate bundle
// (security.CLIBundle). Unlike a serving node, the CLI has no
// certificate-request RPC to fall back to: bundles are provisioned out of
// band by whoever administers the cluster's CA ('orga certs issue-client').
func NewClient(addr string) (*Client, error) {
	bundle, err := security.CLIBundle()
	if err != nil {
		return nil, fmt.Errorf("client: cert bundle: %w", err)
	}
	if !bundle.Exists() {
		return nil, fmt.Errorf("client: no certificate bundle at %s; obtain one from the cluster operator", bundle.Dir)
	}

	conn, err := connectWithMTLS(addr, bundle)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}

	return &Client{
		conn:   conn,
		engine: api.NewEngineClient(conn),
	}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Query reads the most recently committed state under path/key. height is
// sent along but the node ignores it.
func (c *Client) Query(path string, key []byte, height uint64) (code uint32, value, proof []byte, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := c.engine.Query(ctx, &api.QueryRequest{Path: path, Key: key, Height: height})
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.Code, resp.Value, resp.Proof, nil
}

// CheckTx submits payload for mempool-only, speculative validation.
func (c *Client) CheckTx(payload []byte) (code uint32, result []byte, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := c.engine.CheckTx(ctx, &api.CheckTxRequest{Payload: payload})
	if err != nil {
		return 0, nil, err
	}
	return resp.Code, resp.Result, nil
}

// Watch opens the event stream, blocking until ctx is cancelled or the
// server closes the stream. Used by cmd/orga's watch subcommand; callers
// driving this programmatically should cancel ctx to stop the stream
// rather than relying on Close.
func (c *Client) Watch(ctx context.Context) (api.WatchClient, error) {
	return c.engine.Watch(ctx)
}

// connectWithMTLS establishes a gRPC connection secured with mTLS, using
// the json content-subtype pkg/api registers its codec under.
func connectWithMTLS(addr string, bundle security.Bundle) (*grpc.ClientConn, error) {
	cert, err := bundle.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	caCert, err := bundle.LoadCA()
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS13,
	}

	creds := credentials.NewTLS(tlsConfig)
	conn, err := grpc.Dial(
		addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return conn, nil
}
