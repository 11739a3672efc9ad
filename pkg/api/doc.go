/*
Package api implements the engine's query/mempool gRPC surface.

It exposes three RPCs to external callers over mutual TLS: Query and
CheckTx both bypass the Raft-ordered Commit path entirely - Query reads
from a pinned snapshot of the committed state, and CheckTx runs against one
of the mempool's buffered stores (pkg/driver/mempool.go), giving callers
fast, speculative feedback ahead of DeliverTx. Watch is a server-streaming
RPC over the driver's in-process pkg/events.Broker, for cmd/orga's watch
subcommand.

# Architecture

	┌──────────────────── CLIENT (pkg/client, cmd/orga) ─────────────┐
	│  gRPC client, mTLS, content-subtype "json"                      │
	└─────────────────────┬────────────────────────────────────────-┘
	                      │ gRPC
	┌─────────────────────▼──────────────── NODE ────────────────────┐
	│  ┌────────────────────────────────────────────────┐            │
	│  │        Server (pkg/api/server.go)               │            │
	│  │  - Query, CheckTx                               │            │
	│  │  - mTLS via pkg/security                        │            │
	│  │  - MetricsInterceptor                           │            │
	│  └──────────────────┬───────────────────────────────┘            │
	│                     │ direct call, no Raft                        │
	│  ┌──────────────────▼───────────────────────────────┐            │
	│  │              driver.Driver / Engine               │            │
	│  └────────────────────────────────────────────────────┘            │
	└──────────────────────────────────────────────────────────────────┘

# Wire codec

The driver's request/response types (QueryRequest, CheckTxResponse, ...)
are plain Go structs, not protoc-generated messages, so the service is
registered with a hand-rolled grpc.ServiceDesc (service.go) against a JSON
encoding.Codec (codec.go) rather than the default protobuf codec. Clients
select it with:

	grpc.Dial(addr, grpc.WithTransportCredentials(creds), grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")))

gRPC's codec is pluggable independently of transport and framing; HTTP/2,
TLS, and flow control are unaffected by the swap.

# RPCs

Query(path string, key []byte, height uint64) (code uint32, value, proof []byte)
  reads the most recently committed state; height is accepted but ignored,
  since only the latest committed snapshot is retained. proof is populated
  only when the backing engine can produce a membership proof; bbolt
  cannot, so it is always nil for the default configuration.

CheckTx(payload []byte) (code uint32, result []byte)
  submits a transition for mempool-only, speculative execution. A
  CheckTx's acceptance does not guarantee the same transition will be
  accepted by DeliverTx once ordered into a block - concurrent CheckTx
  calls see different mempool buffers and so can disagree with the
  eventual committed outcome.

Watch() stream<EventMessage>
  subscribes to the driver's event broker (pkg/events) and streams every
  BlockCommitted/TransitionExecuted/TransitionRescheduled/CacheInvalidated
  event published from then on, best-effort: a slow subscriber drops
  events rather than blocking the broker.

# Health and metrics

pkg/api/health.go serves /health, /ready, and /metrics on a separate plain
HTTP listener (no mTLS - these are operational endpoints, not part of the
query/mempool surface).

# Certificates

Server certificates are node certificates issued by pkg/security's
CertAuthority (role "api"); clients use CLI certificates from the same CA.
See pkg/security's doc comment for the full certificate lifecycle.
*/
package api
