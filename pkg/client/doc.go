/*
Package client provides a thin Go SDK for the engine's Query/CheckTx/Watch
gRPC surface (pkg/api), adapted from pkg/client/client.go.

# Usage

	c, err := client.NewClient("node1:26650")
	if err != nil {
		return err
	}
	defer c.Close()

	code, value, proof, err := c.Query("/account", []byte("alice"), 0)
	if err != nil {
		return err
	}

	code, result, err := c.CheckTx(payload)
	if err != nil {
		return err
	}

NewClient requires a CLI certificate bundle to already exist
(security.CLIBundle); unlike a raft peer, the CLI has no bootstrap RPC
to request one, since Query/CheckTx/Watch are the entire API surface and
none is a certificate-issuance operation.

# Connection

Dialing uses mutual TLS and selects pkg/api's JSON wire codec via
grpc.CallContentSubtype("json") rather than the default protobuf codec,
matching how pkg/api registers its service.

cmd/orga's query and watch subcommands are built on this package. apply
runs embedded against its own driver.Driver instead (see cmd/orga/apply.go)
since BeginBlock/DeliverTx/EndBlock/Commit are not exposed over gRPC at
all - only a running node's Raft log accepts them, and apply is meant to
load an initial batch before a node is serving.
*/
package client
