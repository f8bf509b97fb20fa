package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

/*
 * Service descriptor for lumen.host.v1.ConditionHost.
 *
 * Messages are protobuf well-known types so plugins in any language can
 * call the service with a stock protobuf runtime and no generated stubs:
 *
 *   PublishDataModel(Struct{key, data, events}) returns Empty
 *   RemoveDataModel(Struct{key})                returns Empty
 *   TriggerEvent(Struct{key, event, arguments}) returns Timestamp
 *   GetElementStates(Empty)                     returns Struct{elements}
 *   Describe(Empty)                             returns Struct (catalog)
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "lumen.host.v1.ConditionHost"

const (
	methodPublishDataModel = "/" + ServiceName + "/PublishDataModel"
	methodRemoveDataModel  = "/" + ServiceName + "/RemoveDataModel"
	methodTriggerEvent     = "/" + ServiceName + "/TriggerEvent"
	methodGetElementStates = "/" + ServiceName + "/GetElementStates"
	methodDescribe         = "/" + ServiceName + "/Describe"
)

// ConditionHostServer is the server API for the ConditionHost service.
type ConditionHostServer interface {
	PublishDataModel(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RemoveDataModel(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	TriggerEvent(context.Context, *structpb.Struct) (*timestamppb.Timestamp, error)
	GetElementStates(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Describe(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterConditionHostServer registers srv with s.
func RegisterConditionHostServer(s grpc.ServiceRegistrar, srv ConditionHostServer) {
	s.RegisterService(&conditionHostServiceDesc, srv)
}

var conditionHostServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConditionHostServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PublishDataModel", Handler: unaryHandler(methodPublishDataModel, newStruct, ConditionHostServer.PublishDataModel)},
		{MethodName: "RemoveDataModel", Handler: unaryHandler(methodRemoveDataModel, newStruct, ConditionHostServer.RemoveDataModel)},
		{MethodName: "TriggerEvent", Handler: unaryHandler(methodTriggerEvent, newStruct, ConditionHostServer.TriggerEvent)},
		{MethodName: "GetElementStates", Handler: unaryHandler(methodGetElementStates, newEmpty, ConditionHostServer.GetElementStates)},
		{MethodName: "Describe", Handler: unaryHandler(methodDescribe, newEmpty, ConditionHostServer.Describe)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lumen/host/v1/condition_host.proto",
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

// unaryHandler adapts a typed server method to grpc's method handler shape.
func unaryHandler[Req, Resp any](
	fullMethod string,
	newReq func() Req,
	call func(ConditionHostServer, context.Context, Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConditionHostServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConditionHostServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConditionHostClient calls the ConditionHost service.
type ConditionHostClient struct {
	cc grpc.ClientConnInterface
}

// NewConditionHostClient creates a client over cc.
func NewConditionHostClient(cc grpc.ClientConnInterface) *ConditionHostClient {
	return &ConditionHostClient{cc: cc}
}

// PublishDataModel creates or updates a data model of the caller's extension.
func (c *ConditionHostClient) PublishDataModel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	return out, c.cc.Invoke(ctx, methodPublishDataModel, in, out, opts...)
}

// RemoveDataModel removes a data model of the caller's extension.
func (c *ConditionHostClient) RemoveDataModel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	return out, c.cc.Invoke(ctx, methodRemoveDataModel, in, out, opts...)
}

// TriggerEvent fires an event and returns the trigger time.
func (c *ConditionHostClient) TriggerEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*timestamppb.Timestamp, error) {
	out := new(timestamppb.Timestamp)
	return out, c.cc.Invoke(ctx, methodTriggerEvent, in, out, opts...)
}

// GetElementStates returns the element states after the last tick.
func (c *ConditionHostClient) GetElementStates(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, methodGetElementStates, &emptypb.Empty{}, out, opts...)
}

// Describe returns the data models, operators and script languages.
func (c *ConditionHostClient) Describe(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, methodDescribe, &emptypb.Empty{}, out, opts...)
}
