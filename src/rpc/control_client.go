package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/DiverOfDark/peelbox/src/wire"
)

// ControlClient calls the daemon's Solve/Status methods. Unlike
// FileSync/FileSend/Auth/Content, Control is served BY the daemon, so
// this is a hand-written client stub (grpc.ClientConn.Invoke /
// NewStream) rather than a ServiceDesc — the same shape
// protoc-gen-go-grpc emits for a client, just without the generator.
type ControlClient struct {
	cc *grpc.ClientConn
}

func NewControlClient(cc *grpc.ClientConn) *ControlClient {
	return &ControlClient{cc: cc}
}

// Solve submits a compiled Definition for execution.
func (c *ControlClient) Solve(ctx context.Context, req *wire.SolveRequest) (*wire.SolveResponse, error) {
	out := new(wire.SolveResponse)
	if err := c.cc.Invoke(ctx, "/peelbox.Control/Solve", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusClient is the server-streaming handle returned by Status.
type StatusClient interface {
	Recv() (*wire.StatusResponse, error)
}

// Status opens the build-progress stream for req (spec.md §4.5 "Progress Tracker").
func (c *ControlClient) Status(ctx context.Context, req *wire.SolveRequest) (StatusClient, error) {
	desc := &grpc.StreamDesc{StreamName: "Status", ServerStreams: true}
	stream, err := c.cc.NewStream(ctx, desc, "/peelbox.Control/Status")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &statusClient{stream}, nil
}

type statusClient struct {
	grpc.ClientStream
}

func (s *statusClient) Recv() (*wire.StatusResponse, error) {
	m := new(wire.StatusResponse)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
