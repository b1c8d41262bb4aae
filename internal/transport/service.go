package transport

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName matches the RPC path grpc routes on both ends.
const serviceName = "ivtree.Transport"

// Handlers is implemented by the engine to serve incoming RPCs from
// peer ranks. A *grpc.Server registers one Handlers per process via
// RegisterServer.
type Handlers interface {
	HandleFetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error)
	HandleUpdate(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error)
	HandleSync(ctx context.Context, req *SyncRequest) (*SyncResponse, error)
	HandleBulkRead(ctx context.Context, req *BulkReadRequest) (*BulkReadResponse, error)
}

// ServiceDesc is hand-written rather than generated by protoc: with
// the gob codec registered in codec.go, grpc's method dispatch needs
// nothing proto-specific, just a handler per method name.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handlers)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: fetchHandler},
		{MethodName: "Update", Handler: updateHandler},
		{MethodName: "Sync", Handler: syncHandler},
		{MethodName: "BulkRead", Handler: bulkReadHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ivtree/transport.proto",
}

// RegisterServer attaches impl to s under ServiceDesc.
func RegisterServer(s *grpc.Server, impl Handlers) {
	s.RegisterService(&ServiceDesc, impl)
}

func fetchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(FetchRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handlers).HandleFetch(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Fetch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Handlers).HandleFetch(ctx, req.(*FetchRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func updateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(UpdateRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handlers).HandleUpdate(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Update"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Handlers).HandleUpdate(ctx, req.(*UpdateRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func syncHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(SyncRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handlers).HandleSync(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Sync"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Handlers).HandleSync(ctx, req.(*SyncRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func bulkReadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(BulkReadRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handlers).HandleBulkRead(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/BulkRead"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Handlers).HandleBulkRead(ctx, req.(*BulkReadRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Client issues the four RPCs against a single peer connection.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an established connection to one peer rank.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Fetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error) {
	resp := new(FetchResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/Fetch", req, resp, grpc.CallContentSubtype(codecName))
	return resp, err
}

func (c *Client) Update(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error) {
	resp := new(UpdateResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/Update", req, resp, grpc.CallContentSubtype(codecName))
	return resp, err
}

func (c *Client) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	resp := new(SyncResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/Sync", req, resp, grpc.CallContentSubtype(codecName))
	return resp, err
}

func (c *Client) BulkRead(ctx context.Context, req *BulkReadRequest) (*BulkReadResponse, error) {
	resp := new(BulkReadResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/BulkRead", req, resp, grpc.CallContentSubtype(codecName))
	return resp, err
}
