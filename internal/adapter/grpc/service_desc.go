package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// PortfolioServiceServer is the server API for the PortfolioService service
type PortfolioServiceServer interface {
	RebuildSnapshots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSnapshots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPortfolioSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessSell(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(srv PortfolioServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Struct-in/Struct-out method to grpc's handler signature
func unaryHandler(name string, call structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PortfolioServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(PortfolioServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PortfolioServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("RebuildSnapshots", PortfolioServiceServer.RebuildSnapshots),
		unaryHandler("ListSnapshots", PortfolioServiceServer.ListSnapshots),
		unaryHandler("GetPortfolioSummary", PortfolioServiceServer.GetPortfolioSummary),
		unaryHandler("ProcessSell", PortfolioServiceServer.ProcessSell),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fundfolio/v1/portfolio.proto",
}
