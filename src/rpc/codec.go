// Package rpc hosts the client side of the daemon's gRPC services
// (FileSync, FileSend, Auth, Content, Health) without any protoc-generated
// stubs: since no .proto compiler can run in this environment, every
// grpc.ServiceDesc here is constructed by hand, the way please's own
// src/follow/grpc_server.go registers a generated service except that the
// message types (src/wire) carry their own hand-rolled Marshal/Unmarshal
// instead of generated ones.
package rpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// wireMessage is implemented by every src/wire type this package moves
// across gRPC: the same shape gogo/protobuf generates, so grpc's codec
// abstraction (which only assumes Marshal/Unmarshal-shaped messages, not a
// concrete proto.Message) can carry them unmodified.
type wireMessage interface {
	Marshal() ([]byte, error)
}

type wireUnmarshaler interface {
	Unmarshal([]byte) error
}

// codecName is registered as a content-subtype so the client and the
// hosted server both select this codec instead of grpc's default
// proto-backed one.
const codecName = "peelbox"

// Codec adapts src/wire's hand-rolled Marshal/Unmarshal methods to grpc's
// encoding.Codec interface.
type Codec struct{}

func (Codec) Name() string { return codecName }

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("rpc: %T does not implement Marshal() ([]byte, error)", v)
	}
	return m.Marshal()
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireUnmarshaler)
	if !ok {
		return fmt.Errorf("rpc: %T does not implement Unmarshal([]byte) error", v)
	}
	return m.Unmarshal(data)
}

func init() {
	encoding.RegisterCodec(Codec{})
}

// DialOption forces every call on the resulting ClientConn to use Codec.
func DialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName))
}

// ServerOption forces the hosted gRPC server to use Codec for every call.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}
