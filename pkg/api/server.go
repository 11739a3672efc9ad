package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/turbofish-org/orga/pkg/driver"
	"github.com/turbofish-org/orga/pkg/log"
	"github.com/turbofish-org/orga/pkg/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Server implements the orga.Engine gRPC service. The mTLS server setup
// carries over unchanged from its original cluster-manager form, wired to a
// *driver.Driver instead and narrowed to the Query/CheckTx/Watch surface
// this driver serves outside of Raft.
type Server struct {
	drv  *driver.Driver
	grpc *grpc.Server
}

// NewServer creates a new API server secured with mTLS. bundle must have
// been written by 'orga certs init' for this node.
func NewServer(drv *driver.Driver, bundle security.Bundle) (*Server, error) {
	if !bundle.Exists() {
		return nil, fmt.Errorf("api: certificate bundle not found at %s", bundle.Dir)
	}

	cert, err := bundle.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("api: load node certificate: %w", err)
	}
	if security.NeedsRotation(cert.Leaf) {
		apiLogger := log.WithComponent("api")
		apiLogger.Warn().
			Time("not_after", cert.Leaf.NotAfter).
			Msg("node certificate expires soon, re-issue with 'orga certs init'")
	}

	caCert, err := bundle.LoadCA()
	if err != nil {
		return nil, fmt.Errorf("api: load CA certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS13,
	}

	creds := credentials.NewTLS(tlsConfig)
	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.UnaryInterceptor(MetricsInterceptor()),
	)

	s := &Server{drv: drv, grpc: grpcServer}
	RegisterEngineServer(grpcServer, s)
	return s, nil
}

// Start starts the gRPC server and blocks until it stops.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen: %w", err)
	}
	apiLogger := log.WithComponent("api")
	apiLogger.Info().Str("addr", addr).Msg("grpc api listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// Query serves the Query RPC directly from the engine's pinned read
// snapshot, bypassing Raft.
func (s *Server) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	code, value, proof, err := s.drv.Query(req.Path, req.Key, req.Height)
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Code: code, Value: value, Proof: proof}, nil
}

// CheckTx serves the CheckTx RPC against the driver's mempool-buffered
// stores, bypassing Raft.
func (s *Server) CheckTx(ctx context.Context, req *CheckTxRequest) (*CheckTxResponse, error) {
	code, result, err := s.drv.CheckTx(req.Payload)
	if err != nil {
		return nil, err
	}
	return &CheckTxResponse{Code: code, Result: result}, nil
}

// Watch streams pkg/events.Event values off the driver's broker to the
// caller until the stream's context is cancelled, used by cmd/orga's watch
// subcommand. Events published while the subscriber's buffer is full are
// dropped (events.Broker.broadcast), so Watch is a best-effort feed, not a
// durable log.
func (s *Server) Watch(req *WatchRequest, stream WatchServerStream) error {
	sub := s.drv.Bus.Subscribe()
	defer s.drv.Bus.Unsubscribe(sub)

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			msg := &EventMessage{
				ID:        ev.ID,
				Type:      string(ev.Type),
				Timestamp: ev.Timestamp.UnixNano(),
				Message:   ev.Message,
				Metadata:  ev.Metadata,
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
