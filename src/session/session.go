package session

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/DiverOfDark/peelbox/src/filesync"
	"github.com/DiverOfDark/peelbox/src/logging"
	"github.com/DiverOfDark/peelbox/src/rpc"
)

var log = logging.MustGetLogger("session")

// Session owns one build's client-hosted services (spec.md §4.4): a
// registry of FileSync providers and FileSend exports, always-on Auth,
// Content and Health stubs, and the gRPC server that hosts all of them
// over a single tunneled stream.
type Session struct {
	ID string

	fileSync *rpc.FileSyncRegistry
	fileSend *rpc.FileSendRegistry
	health   *health.Server

	server   *grpc.Server
	listener *singleConnListener
}

// New creates a Session with a fresh random id (spec.md §4.4 "session id
// generation").
func New() *Session {
	return &Session{
		ID:       uuid.NewString(),
		fileSync: rpc.NewFileSyncRegistry(),
		fileSend: rpc.NewFileSendRegistry(),
		health:   health.NewServer(),
	}
}

// RegisterContext makes a local directory available to the daemon as a
// FileSync-backed local:// source under name.
func (s *Session) RegisterContext(name string, p *filesync.Provider) {
	s.fileSync.Register(name, p)
}

// RegisterExport makes a local file available for the daemon to pull back
// via FileSend under name.
func (s *Session) RegisterExport(name, localPath, relPath string) {
	s.fileSend.Register(name, localPath, relPath)
}

// Serve hosts the session's services over transport until it closes
// (spec.md §4.4 "StreamConn ... hosting an HTTP/2 server"). It blocks; run
// it in its own goroutine alongside the primary Solve/Status calls.
func (s *Session) Serve(transport MessageTransport) error {
	conn := NewStreamConn(transport)
	s.listener = newSingleConnListener(conn)
	s.server = grpc.NewServer(rpc.ServerOption())

	s.server.RegisterService(&rpc.FileSyncServiceDesc, s.fileSync)
	s.server.RegisterService(&rpc.FileSendServiceDesc, s.fileSend)
	s.server.RegisterService(&rpc.AuthServiceDesc, rpc.NewAuthServer())
	s.server.RegisterService(&rpc.ContentServiceDesc, rpc.NewContentServer())
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	log.Debug("session %s: hosting services over tunneled stream", s.ID)
	err := s.server.Serve(s.listener)
	if err != nil {
		return fmt.Errorf("session %s: hosted server exited: %w", s.ID, err)
	}
	return nil
}

// Close tears down the hosted server, if one was started.
func (s *Session) Close() error {
	if s.server != nil {
		s.server.Stop()
	}
	return nil
}

// DialOptions are the dial options a daemon connection must use so that
// RPCs on the primary connection use the same hand-written wire codec
// the hosted services use.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{rpc.DialOption()}
}

// ContextWithSession attaches the session id as outgoing metadata so the
// daemon can correlate Solve/Status calls with callbacks into this
// session's hosted services.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return rpc.OutgoingContextForSession(ctx, sessionID)
}

var _ net.Conn = (*StreamConn)(nil)
