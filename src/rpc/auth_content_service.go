package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/DiverOfDark/peelbox/src/wire"
)

// AuthServer is dialed by the daemon when a Source op's registry requires
// credentials. This module never configures registry auth (spec.md §1
// "Non-goals of the core"), so Credentials always returns an empty,
// successful response rather than an error — an empty credential set is
// indistinguishable from "no auth configured" to the daemon, whereas an
// RPC error would needlessly fail builds against public registries.
type AuthServer interface {
	Credentials(context.Context, *wire.SolveRequest) (*wire.SolveResponse, error)
}

type authServerImpl struct{}

func NewAuthServer() AuthServer { return authServerImpl{} }

func (authServerImpl) Credentials(context.Context, *wire.SolveRequest) (*wire.SolveResponse, error) {
	return &wire.SolveResponse{}, nil
}

func _Auth_Credentials_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.SolveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Credentials(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peelbox.Auth/Credentials"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthServer).Credentials(ctx, req.(*wire.SolveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: "peelbox.Auth",
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Credentials",
		Handler:    _Auth_Credentials_Handler,
	}},
}

// ContentServer backs the daemon's content-store callback, used to push
// blobs the client already has cached locally. This module has no local
// blob cache of its own (every build starts from a fresh local context,
// spec.md §1 scope), so every request correctly reports the blob as
// absent rather than simulating a cache that doesn't exist.
type ContentServer interface {
	Stat(context.Context, *wire.SolveRequest) (*wire.SolveResponse, error)
}

type contentServerImpl struct{}

func NewContentServer() ContentServer { return contentServerImpl{} }

func (contentServerImpl) Stat(context.Context, *wire.SolveRequest) (*wire.SolveResponse, error) {
	return nil, fmt.Errorf("rpc: content stat: not found (client keeps no local blob cache)")
}

func _Content_Stat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.SolveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContentServer).Stat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/peelbox.Content/Stat"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ContentServer).Stat(ctx, req.(*wire.SolveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ContentServiceDesc = grpc.ServiceDesc{
	ServiceName: "peelbox.Content",
	HandlerType: (*ContentServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Stat",
		Handler:    _Content_Stat_Handler,
	}},
}
