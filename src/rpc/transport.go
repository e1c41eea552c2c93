package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// rawMsg lets an opaque byte slice ride through grpc's SendMsg/RecvMsg
// using Codec, the same way every other src/wire message does.
type rawMsg []byte

func (m rawMsg) Marshal() ([]byte, error) { return m, nil }

func (m *rawMsg) Unmarshal(b []byte) error {
	*m = append((*m)[:0], b...)
	return nil
}

// ClientTransport adapts a raw bidi-streaming grpc.ClientStream to the
// plain Send([]byte)/Recv([]byte) shape src/session.MessageTransport
// expects — satisfied structurally, without session importing rpc.
type ClientTransport struct {
	Stream grpc.ClientStream
}

func (t *ClientTransport) Send(b []byte) error {
	return t.Stream.SendMsg(rawMsg(b))
}

func (t *ClientTransport) Recv() ([]byte, error) {
	var m rawMsg
	if err := t.Stream.RecvMsg(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenSessionTransport opens the Control service's Session method: the
// single bidirectional byte stream a Session tunnels its hosted gRPC
// server through (spec.md §4.4).
func OpenSessionTransport(ctx context.Context, cc *grpc.ClientConn) (*ClientTransport, error) {
	desc := &grpc.StreamDesc{StreamName: "Session", ServerStreams: true, ClientStreams: true}
	stream, err := cc.NewStream(ctx, desc, "/peelbox.Control/Session")
	if err != nil {
		return nil, err
	}
	return &ClientTransport{Stream: stream}, nil
}
