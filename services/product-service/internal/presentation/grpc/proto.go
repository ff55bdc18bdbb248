package grpc

// proto.go defines the gRPC server interface for bib/product/v1/product.proto.
// It stands in for buf-generated code; messages travel with the JSON codec.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const productServiceName = "bib.product.v1.ProductService"

// Full method names, used for role checks.
const (
	MethodOpenAccount       = "/" + productServiceName + "/OpenAccount"
	MethodGetAccount        = "/" + productServiceName + "/GetAccount"
	MethodSubmitPostings    = "/" + productServiceName + "/SubmitPostings"
	MethodRunScheduledEvent = "/" + productServiceName + "/RunScheduledEvent"
	MethodCloseAccount      = "/" + productServiceName + "/CloseAccount"
	MethodListSchedules     = "/" + productServiceName + "/ListSchedules"
)

// ProductServiceServer is the server API for ProductService.
type ProductServiceServer interface {
	OpenAccount(context.Context, *OpenAccountRequest) (*OpenAccountResponse, error)
	GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error)
	SubmitPostings(context.Context, *SubmitPostingsRequest) (*SubmitPostingsResponse, error)
	RunScheduledEvent(context.Context, *RunScheduledEventRequest) (*RunScheduledEventResponse, error)
	CloseAccount(context.Context, *CloseAccountRequest) (*CloseAccountResponse, error)
	ListSchedules(context.Context, *ListSchedulesRequest) (*ListSchedulesResponse, error)
	mustEmbedUnimplementedProductServiceServer()
}

// UnimplementedProductServiceServer provides forward-compatible default implementations.
type UnimplementedProductServiceServer struct{}

func (UnimplementedProductServiceServer) OpenAccount(context.Context, *OpenAccountRequest) (*OpenAccountResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method OpenAccount not implemented")
}
func (UnimplementedProductServiceServer) GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAccount not implemented")
}
func (UnimplementedProductServiceServer) SubmitPostings(context.Context, *SubmitPostingsRequest) (*SubmitPostingsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SubmitPostings not implemented")
}
func (UnimplementedProductServiceServer) RunScheduledEvent(context.Context, *RunScheduledEventRequest) (*RunScheduledEventResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RunScheduledEvent not implemented")
}
func (UnimplementedProductServiceServer) CloseAccount(context.Context, *CloseAccountRequest) (*CloseAccountResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CloseAccount not implemented")
}
func (UnimplementedProductServiceServer) ListSchedules(context.Context, *ListSchedulesRequest) (*ListSchedulesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListSchedules not implemented")
}
func (UnimplementedProductServiceServer) mustEmbedUnimplementedProductServiceServer() {}

// RegisterProductServiceServer registers the ProductServiceServer with the gRPC server.
func RegisterProductServiceServer(s grpclib.ServiceRegistrar, srv ProductServiceServer) {
	s.RegisterService(&_ProductService_serviceDesc, srv)
}

var _ProductService_serviceDesc = grpclib.ServiceDesc{ //nolint:revive // gRPC handler registration
	ServiceName: productServiceName,
	HandlerType: (*ProductServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "OpenAccount", Handler: _ProductService_OpenAccount_Handler},
		{MethodName: "GetAccount", Handler: _ProductService_GetAccount_Handler},
		{MethodName: "SubmitPostings", Handler: _ProductService_SubmitPostings_Handler},
		{MethodName: "RunScheduledEvent", Handler: _ProductService_RunScheduledEvent_Handler},
		{MethodName: "CloseAccount", Handler: _ProductService_CloseAccount_Handler},
		{MethodName: "ListSchedules", Handler: _ProductService_ListSchedules_Handler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "bib/product/v1/product.proto",
}

func _ProductService_OpenAccount_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // gRPC handler registration
	in := new(OpenAccountRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).OpenAccount(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodOpenAccount,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProductServiceServer).OpenAccount(ctx, req.(*OpenAccountRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProductService_GetAccount_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // gRPC handler registration
	in := new(GetAccountRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).GetAccount(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodGetAccount,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProductServiceServer).GetAccount(ctx, req.(*GetAccountRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProductService_SubmitPostings_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // gRPC handler registration
	in := new(SubmitPostingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).SubmitPostings(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodSubmitPostings,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProductServiceServer).SubmitPostings(ctx, req.(*SubmitPostingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProductService_RunScheduledEvent_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // gRPC handler registration
	in := new(RunScheduledEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).RunScheduledEvent(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodRunScheduledEvent,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProductServiceServer).RunScheduledEvent(ctx, req.(*RunScheduledEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProductService_CloseAccount_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // gRPC handler registration
	in := new(CloseAccountRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).CloseAccount(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodCloseAccount,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProductServiceServer).CloseAccount(ctx, req.(*CloseAccountRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProductService_ListSchedules_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) { //nolint:revive // gRPC handler registration
	in := new(ListSchedulesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductServiceServer).ListSchedules(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodListSchedules,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProductServiceServer).ListSchedules(ctx, req.(*ListSchedulesRequest))
	}
	return interceptor(ctx, in, info, handler)
}
