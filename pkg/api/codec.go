package api

import "encoding/json"

// jsonCodecName is the content-subtype gRPC negotiates this codec under:
// a client dialing with grpc.CallContentSubtype("json") causes the server
// to decode/encode through jsonCodec instead of the default proto codec.
const jsonCodecName = "json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec. The driver's
// Query/CheckTx payloads (QueryRequest, CheckTxResponse, ...) are plain Go
// structs, not protoc-generated messages, so the service is registered
// against this codec rather than the default protobuf one - gRPC's wire
// codec is pluggable independently of the framing and transport, which is
// all the rest of the stack (HTTP/2, TLS, flow control) still provides.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
