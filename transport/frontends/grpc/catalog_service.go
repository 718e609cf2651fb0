package grpc

import (
	"context"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/transport"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the catalog service
const ServiceName = "tablets.Catalog"

// CatalogServer is the server API for the catalog service
type CatalogServer interface {
	ReplaceTablet(context.Context, *catalogpb.ReplaceTabletRequest) (*catalogpb.ReplaceTabletResponse, error)
	ReplacementStatus(context.Context, *catalogpb.ReplacementStatusRequest) (*catalogpb.ReplacementStatusResponse, error)
	GetTablet(context.Context, *catalogpb.GetTabletRequest) (*catalogpb.GetTabletResponse, error)
	ListTablets(context.Context, *catalogpb.ListTabletsRequest) (*catalogpb.ListTabletsResponse, error)
	ResolveKey(context.Context, *catalogpb.ResolveKeyRequest) (*catalogpb.ResolveKeyResponse, error)
	CreateTable(context.Context, *catalogpb.CreateTableRequest) (*catalogpb.CreateTableResponse, error)
	ListTables(context.Context, *catalogpb.ListTablesRequest) (*catalogpb.ListTablesResponse, error)
	Heartbeat(context.Context, *catalogpb.HeartbeatRequest) (*catalogpb.HeartbeatResponse, error)
}

var _ CatalogServer = (*catalogServer)(nil)

// catalogServer implements the gRPC
// catalog service. It forwards requests
// on to the catalog and translates errors
// into status codes.
type catalogServer struct {
	catalogService transport.CatalogService
}

// NewCatalogServer creates a server for a catalog
func NewCatalogServer(catalogService transport.CatalogService) CatalogServer {
	return &catalogServer{catalogService: catalogService}
}

func (server *catalogServer) ReplaceTablet(ctx context.Context, request *catalogpb.ReplaceTabletRequest) (*catalogpb.ReplaceTabletResponse, error) {
	newTabletID, err := server.catalogService.ReplaceTablet(ctx, request.TabletId)

	if err != nil {
		return nil, transport.ToStatus(err, "tablet", request.TabletId)
	}

	return &catalogpb.ReplaceTabletResponse{NewTabletId: newTabletID}, nil
}

func (server *catalogServer) ReplacementStatus(ctx context.Context, request *catalogpb.ReplacementStatusRequest) (*catalogpb.ReplacementStatusResponse, error) {
	replacement, err := server.catalogService.ReplacementStatus(ctx, request.TabletId)

	if err != nil {
		return nil, transport.ToStatus(err, "tablet", request.TabletId)
	}

	return &catalogpb.ReplacementStatusResponse{Request: replacement}, nil
}

func (server *catalogServer) GetTablet(ctx context.Context, request *catalogpb.GetTabletRequest) (*catalogpb.GetTabletResponse, error) {
	tablet, err := server.catalogService.GetTablet(ctx, request.TabletId)

	if err != nil {
		return nil, transport.ToStatus(err, "tablet", request.TabletId)
	}

	return &catalogpb.GetTabletResponse{Tablet: tablet}, nil
}

func (server *catalogServer) ListTablets(ctx context.Context, request *catalogpb.ListTabletsRequest) (*catalogpb.ListTabletsResponse, error) {
	tablets, err := server.catalogService.ListTablets(ctx, request.TableId, request.IncludeInactive)

	if err != nil {
		return nil, transport.ToStatus(err, "table", request.TableId)
	}

	return &catalogpb.ListTabletsResponse{Tablets: tablets}, nil
}

func (server *catalogServer) ResolveKey(ctx context.Context, request *catalogpb.ResolveKeyRequest) (*catalogpb.ResolveKeyResponse, error) {
	tablet, err := server.catalogService.ResolveKey(ctx, request.TableId, request.Key)

	if err != nil {
		return nil, transport.ToStatus(err, "table", request.TableId)
	}

	return &catalogpb.ResolveKeyResponse{Tablet: tablet}, nil
}

func (server *catalogServer) CreateTable(ctx context.Context, request *catalogpb.CreateTableRequest) (*catalogpb.CreateTableResponse, error) {
	table, tablets, err := server.catalogService.CreateTable(ctx, request.Name, request.SplitPoints, int(request.ReplicationFactor))

	if err != nil {
		return nil, transport.ToStatus(err, "table", request.Name)
	}

	return &catalogpb.CreateTableResponse{Table: table, Tablets: tablets}, nil
}

func (server *catalogServer) ListTables(ctx context.Context, request *catalogpb.ListTablesRequest) (*catalogpb.ListTablesResponse, error) {
	tables, err := server.catalogService.ListTables(ctx)

	if err != nil {
		return nil, transport.ToStatus(err, "", "")
	}

	return &catalogpb.ListTablesResponse{Tables: tables}, nil
}

func (server *catalogServer) Heartbeat(ctx context.Context, request *catalogpb.HeartbeatRequest) (*catalogpb.HeartbeatResponse, error) {
	response, err := server.catalogService.Heartbeat(ctx, request)

	if err != nil {
		return nil, transport.ToStatus(err, "tablet_server", request.ServerId)
	}

	return response, nil
}

// RegisterCatalogServer registers the catalog service with a gRPC server
func RegisterCatalogServer(s *grpc.Server, server CatalogServer) {
	s.RegisterService(&catalogServiceDesc, server)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ReplaceTablet",
			Handler: unaryHandler("ReplaceTablet", func() interface{} { return &catalogpb.ReplaceTabletRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.ReplaceTablet(ctx, request.(*catalogpb.ReplaceTabletRequest))
			}),
		},
		{
			MethodName: "ReplacementStatus",
			Handler: unaryHandler("ReplacementStatus", func() interface{} { return &catalogpb.ReplacementStatusRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.ReplacementStatus(ctx, request.(*catalogpb.ReplacementStatusRequest))
			}),
		},
		{
			MethodName: "GetTablet",
			Handler: unaryHandler("GetTablet", func() interface{} { return &catalogpb.GetTabletRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.GetTablet(ctx, request.(*catalogpb.GetTabletRequest))
			}),
		},
		{
			MethodName: "ListTablets",
			Handler: unaryHandler("ListTablets", func() interface{} { return &catalogpb.ListTabletsRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.ListTablets(ctx, request.(*catalogpb.ListTabletsRequest))
			}),
		},
		{
			MethodName: "ResolveKey",
			Handler: unaryHandler("ResolveKey", func() interface{} { return &catalogpb.ResolveKeyRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.ResolveKey(ctx, request.(*catalogpb.ResolveKeyRequest))
			}),
		},
		{
			MethodName: "CreateTable",
			Handler: unaryHandler("CreateTable", func() interface{} { return &catalogpb.CreateTableRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.CreateTable(ctx, request.(*catalogpb.CreateTableRequest))
			}),
		},
		{
			MethodName: "ListTables",
			Handler: unaryHandler("ListTables", func() interface{} { return &catalogpb.ListTablesRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.ListTables(ctx, request.(*catalogpb.ListTablesRequest))
			}),
		},
		{
			MethodName: "Heartbeat",
			Handler: unaryHandler("Heartbeat", func() interface{} { return &catalogpb.HeartbeatRequest{} }, func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error) {
				return server.Heartbeat(ctx, request.(*catalogpb.HeartbeatRequest))
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog.proto",
}

type unaryCall func(ctx context.Context, server CatalogServer, request interface{}) (interface{}, error)

// unaryHandler builds the method handler that decodes the
// request and runs the call through the server's interceptor
func unaryHandler(method string, newRequest func() interface{}, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ServiceName + "/" + method

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		request := newRequest()

		if err := dec(request); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(ctx, srv.(CatalogServer), request)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(ctx, srv.(CatalogServer), req)
		}

		return interceptor(ctx, request, info, handler)
	}
}
