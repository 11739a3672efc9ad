package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// serviceName is the gRPC full service name both server and client address
// RPCs under.
const serviceName = "orga.Engine"

// QueryRequest is the Query RPC's request message, mirroring the Engine's
// Query(path string, key []byte, height uint64) signature (pkg/driver).
type QueryRequest struct {
	Path   string `json:"path"`
	Key    []byte `json:"key"`
	Height uint64 `json:"height"`
}

// QueryResponse is the Query RPC's response. Proof carries an optional
// membership proof; it is nil when the engine has none to offer for the
// queried path.
type QueryResponse struct {
	Code  uint32 `json:"code"`
	Value []byte `json:"value,omitempty"`
	Proof []byte `json:"proof,omitempty"`
}

// CheckTxRequest is the CheckTx RPC's request message: a transition
// submitted for mempool admission ahead of DeliverTx.
type CheckTxRequest struct {
	Payload []byte `json:"payload"`
}

// CheckTxResponse is the CheckTx RPC's response.
type CheckTxResponse struct {
	Code   uint32 `json:"code"`
	Result []byte `json:"result,omitempty"`
}

// WatchRequest is the Watch RPC's (empty) request message: a client opens
// the stream and receives every pkg/events.Event published from then on,
// with no filtering.
type WatchRequest struct{}

// EventMessage mirrors one pkg/events.Event over the wire. ID is the
// broker-stamped correlation id a consumer can key deduplication or log
// lines on.
type EventMessage struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp_unix_nano"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// engineServer is what the hand-rolled ServiceDesc below dispatches to; Server
// (server.go) implements it against a *driver.Driver.
type engineServer interface {
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	CheckTx(context.Context, *CheckTxRequest) (*CheckTxResponse, error)
	Watch(*WatchRequest, WatchServerStream) error
}

// WatchServerStream is the server side of the Watch stream: Send pushes one
// event to the subscribed client. Embeds grpc.ServerStream for Context()
// (cancellation) like any hand-rolled streaming handler.
type WatchServerStream interface {
	Send(*EventMessage) error
	grpc.ServerStream
}

type watchServerStream struct {
	grpc.ServerStream
}

func (w *watchServerStream) Send(m *EventMessage) error {
	return w.ServerStream.SendMsg(m)
}

// RegisterEngineServer registers srv's Query/CheckTx methods against s under
// the orga.Engine service name.
func RegisterEngineServer(s *grpc.Server, srv engineServer) {
	s.RegisterService(&engineServiceDesc, srv)
}

var engineServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*engineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: engineQueryHandler},
		{MethodName: "CheckTx", Handler: engineCheckTxHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       engineWatchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pkg/api/service.go",
}

func engineWatchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(engineServer).Watch(in, &watchServerStream{ServerStream: stream})
}

func engineQueryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(engineServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Query"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(engineServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func engineCheckTxHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CheckTxRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(engineServer).CheckTx(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CheckTx"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(engineServer).CheckTx(ctx, req.(*CheckTxRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EngineClient is the client side of the orga.Engine service.
type EngineClient interface {
	Query(ctx context.Context, in *QueryRequest) (*QueryResponse, error)
	CheckTx(ctx context.Context, in *CheckTxRequest) (*CheckTxResponse, error)
	Watch(ctx context.Context) (WatchClient, error)
}

// WatchClient is the client side of the Watch stream: Recv blocks for the
// next event, returning an error (io.EOF on graceful close) once the
// server stops sending.
type WatchClient interface {
	Recv() (*EventMessage, error)
}

type watchClient struct {
	grpc.ClientStream
}

func (c *watchClient) Recv() (*EventMessage, error) {
	m := new(EventMessage)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type engineClient struct {
	cc grpc.ClientConnInterface
}

// NewEngineClient wraps cc for calling the orga.Engine service. cc must have
// been dialed with grpc.CallContentSubtype(jsonCodecName) (see pkg/client)
// so requests and responses are framed with jsonCodec rather than proto.
func NewEngineClient(cc grpc.ClientConnInterface) EngineClient {
	return &engineClient{cc: cc}
}

func (c *engineClient) Query(ctx context.Context, in *QueryRequest) (*QueryResponse, error) {
	out := new(QueryResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Query", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *engineClient) CheckTx(ctx context.Context, in *CheckTxRequest) (*CheckTxResponse, error) {
	out := new(CheckTxResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/CheckTx", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the Watch stream and returns a client that yields one
// EventMessage per Recv call until the server or context ends the stream.
func (c *engineClient) Watch(ctx context.Context) (WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &engineServiceDesc.Streams[0], "/"+serviceName+"/Watch")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &watchClient{ClientStream: stream}, nil
}
