package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/DiverOfDark/peelbox/src/wire"
)

// contextNameHeader carries the registered local-context name a FileSync
// call is scoped to, since the wire.Packet stream does not carry that
// out-of-band information itself (FileSend uses exportNameHeader instead).
const contextNameHeader = "x-peelbox-context"

// sessionIDHeader correlates a Solve/Status call on the primary
// connection with the Session hosting callbacks for it.
const sessionIDHeader = "x-peelbox-session-id"

// packetStream adapts a generic grpc.ServerStream to filesync.Stream
// (Send(*wire.Packet) error / Recv() (*wire.Packet, error)), the same
// thin wrapping protoc-gen-go-grpc emits for a bidi-streaming method,
// written by hand here since no generator ran.
type packetStream struct {
	grpc.ServerStream
}

func (s *packetStream) Send(p *wire.Packet) error {
	return s.ServerStream.SendMsg(p)
}

func (s *packetStream) Recv() (*wire.Packet, error) {
	p := new(wire.Packet)
	if err := s.ServerStream.RecvMsg(p); err != nil {
		return nil, err
	}
	return p, nil
}

func contextNameFromStream(s grpc.ServerStream) (string, error) {
	md, ok := metadata.FromIncomingContext(s.Context())
	if !ok {
		return "", fmt.Errorf("rpc: no metadata on stream")
	}
	vals := md.Get(contextNameHeader)
	if len(vals) == 0 {
		return "", fmt.Errorf("rpc: missing %s header", contextNameHeader)
	}
	return vals[0], nil
}

// OutgoingContextFor attaches the context-name header a client dialing
// into these services must send, mirroring the header the server side
// reads back out via contextNameFromStream.
func OutgoingContextFor(ctx context.Context, name string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, contextNameHeader, name)
}

// OutgoingContextForSession attaches the session id header a Solve/Status
// call on the primary connection must send.
func OutgoingContextForSession(ctx context.Context, sessionID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, sessionIDHeader, sessionID)
}
