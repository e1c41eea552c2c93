// Package session turns the single bidirectional RPC stream a daemon
// connection opens for a build session into a net.Conn capable of hosting
// an ordinary HTTP/2 gRPC server (spec.md §4.4 "Session transport"). It is
// grounded on please's src/follow/grpc_server.go (listener + grpc.NewServer
// pattern) and src/remote/dialparams.go (dial option assembly), adapted
// from "listen on a TCP port" to "listen on one pre-established stream".
package session

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// MaxFrameSize bounds a single message sent over the underlying RPC
// stream (spec.md §4.4 "StreamConn ... ≤3 MiB frame splitting").
const MaxFrameSize = 3 << 20

// MessageTransport is the bidirectional byte-message stream a daemon
// connection provides for hosting the client's services: typically a
// grpc.ClientStream's SendMsg/RecvMsg narrowed to raw bytes.
type MessageTransport interface {
	Send([]byte) error
	Recv() ([]byte, error)
}

// StreamConn adapts a MessageTransport to net.Conn by splitting writes
// into ≤MaxFrameSize messages and reassembling reads from whatever
// messages Recv produces, in order.
type StreamConn struct {
	t MessageTransport

	mu      sync.Mutex
	readBuf []byte
	closed  bool
	closeCh chan struct{}
}

// NewStreamConn wraps t as a net.Conn.
func NewStreamConn(t MessageTransport) *StreamConn {
	return &StreamConn{t: t, closeCh: make(chan struct{})}
}

func (c *StreamConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.readBuf) == 0 {
		if c.closed {
			return 0, io.EOF
		}
		msg, err := c.t.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.closed = true
				return 0, io.EOF
			}
			return 0, err
		}
		c.readBuf = msg
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *StreamConn) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := len(p)
		if n > MaxFrameSize {
			n = MaxFrameSize
		}
		frame := make([]byte, n)
		copy(frame, p[:n])
		if err := c.t.Send(frame); err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

func (c *StreamConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

func (c *StreamConn) LocalAddr() net.Addr  { return streamAddr{} }
func (c *StreamConn) RemoteAddr() net.Addr { return streamAddr{} }

// Deadlines are not meaningful over a tunneled RPC stream; the underlying
// daemon connection's own timeouts govern liveness instead (spec.md §6
// "Connection resolver" timeouts apply at dial time, not per-frame).
func (c *StreamConn) SetDeadline(time.Time) error      { return nil }
func (c *StreamConn) SetReadDeadline(time.Time) error  { return nil }
func (c *StreamConn) SetWriteDeadline(time.Time) error { return nil }

type streamAddr struct{}

func (streamAddr) Network() string { return "peelbox-session" }
func (streamAddr) String() string  { return "session-stream" }
