package rpc

import (
	"fmt"
	"sync"

	"google.golang.org/grpc"

	"github.com/DiverOfDark/peelbox/src/filesync"
)

// FileSyncServer is implemented by the hosted provider registry; it is
// the handler type grpc.ServiceDesc registration checks ss against.
type FileSyncServer interface {
	DiffCopy(grpc.ServerStream) error
}

func _FileSync_DiffCopy_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FileSyncServer).DiffCopy(stream)
}

// FileSyncServiceDesc is the hand-written equivalent of what
// protoc-gen-go-grpc would emit for a single bidi-streaming DiffCopy
// method (spec.md §4.4 "FileSync").
var FileSyncServiceDesc = grpc.ServiceDesc{
	ServiceName: "peelbox.FileSync",
	HandlerType: (*FileSyncServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "DiffCopy",
		Handler:       _FileSync_DiffCopy_Handler,
		ServerStreams: true,
		ClientStreams: true,
	}},
}

// FileSyncRegistry hosts one filesync.Provider per registered local
// context name (spec.md §3 invariant "local:// source ops require a
// FileSync provider"); a Session registers its context providers here
// before hosting the gRPC server that serves daemon callbacks.
type FileSyncRegistry struct {
	mu        sync.RWMutex
	providers map[string]*filesync.Provider
}

func NewFileSyncRegistry() *FileSyncRegistry {
	return &FileSyncRegistry{providers: map[string]*filesync.Provider{}}
}

func (r *FileSyncRegistry) Register(name string, p *filesync.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *FileSyncRegistry) DiffCopy(stream grpc.ServerStream) error {
	name, err := contextNameFromStream(stream)
	if err != nil {
		return err
	}
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("rpc: no FileSync provider registered for context %q", name)
	}
	return p.Serve(&packetStream{stream})
}
