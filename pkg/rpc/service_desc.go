package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/morezero/components/pkg/dispatcher"
)

const (
	ServiceName  = "commandable.Commandable"
	InvokeMethod = "/" + ServiceName + "/invoke"
)

type invoker interface {
	Invoke(ctx context.Context, req *dispatcher.InvokeRequest) (*dispatcher.InvokeResponse, error)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(dispatcher.InvokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(invoker).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(invoker).Invoke(ctx, req.(*dispatcher.InvokeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var commandableServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*invoker)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "commandable.proto",
}
