package catalog

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "celcat.v1.CatalogService"

// Method names, relative to ServiceName.
const (
	MethodListObjects       = "ListObjects"
	MethodDescribe          = "Describe"
	MethodGetCoverage       = "GetCoverage"
	MethodGetState          = "GetState"
	MethodLoadChildren      = "LoadChildren"
	MethodLoadSolarSystem   = "LoadSolarSystem"
	MethodSetReferenceFrame = "SetReferenceFrame"
	MethodReload            = "Reload"
)

// CatalogServer is the server API of the catalog service. Requests and
// responses are google.protobuf.Struct documents.
type CatalogServer interface {
	ListObjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCoverage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadChildren(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadSolarSystem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetReferenceFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(CatalogServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(CatalogServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the catalog service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListObjects, CatalogServer.ListObjects),
		unary(MethodDescribe, CatalogServer.Describe),
		unary(MethodGetCoverage, CatalogServer.GetCoverage),
		unary(MethodGetState, CatalogServer.GetState),
		unary(MethodLoadChildren, CatalogServer.LoadChildren),
		unary(MethodLoadSolarSystem, CatalogServer.LoadSolarSystem),
		unary(MethodSetReferenceFrame, CatalogServer.SetReferenceFrame),
		unary(MethodReload, CatalogServer.Reload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "celcat/v1/catalog.proto",
}

// RegisterCatalogServer registers srv on s.
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the catalog service over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a client using conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method with req and returns the response document.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CallMap builds the request from fields, which must hold values
// structpb.NewValue accepts.
func (c *Client) CallMap(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, method, req, opts...)
}
