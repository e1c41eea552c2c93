package rpc

import (
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/DiverOfDark/peelbox/src/filesync"
)

const exportNameHeader = "x-peelbox-export"

// FileSendServer is the handler type for the hosted FileSend service: the
// daemon dials in and the client pushes a single previously-registered
// local file back down the stream (spec.md §4.4 "FileSend", the
// complement of FileSync used to deliver the final build artifact).
type FileSendServer interface {
	DiffCopy(grpc.ServerStream) error
}

func _FileSend_DiffCopy_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FileSendServer).DiffCopy(stream)
}

var FileSendServiceDesc = grpc.ServiceDesc{
	ServiceName: "peelbox.FileSend",
	HandlerType: (*FileSendServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "DiffCopy",
		Handler:       _FileSend_DiffCopy_Handler,
		ServerStreams: true,
		ClientStreams: true,
	}},
}

type export struct {
	localPath string
	relPath   string
}

// FileSendRegistry hosts named local-file exports available for the
// daemon to pull. Exports are added through Session.RegisterExport;
// buildsession.Run registers none.
type FileSendRegistry struct {
	mu      sync.RWMutex
	exports map[string]export
}

func NewFileSendRegistry() *FileSendRegistry {
	return &FileSendRegistry{exports: map[string]export{}}
}

func (r *FileSendRegistry) Register(name, localPath, relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[name] = export{localPath: localPath, relPath: relPath}
}

func (r *FileSendRegistry) DiffCopy(stream grpc.ServerStream) error {
	md, ok := metadata.FromIncomingContext(stream.Context())
	if !ok {
		return fmt.Errorf("rpc: no metadata on FileSend stream")
	}
	vals := md.Get(exportNameHeader)
	if len(vals) == 0 {
		return fmt.Errorf("rpc: missing %s header", exportNameHeader)
	}
	r.mu.RLock()
	e, ok := r.exports[vals[0]]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("rpc: no export registered under %q", vals[0])
	}
	return filesync.PushFile(&packetStream{stream}, e.localPath, e.relPath)
}
