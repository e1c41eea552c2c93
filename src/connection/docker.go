package connection

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	dockerclient "github.com/moby/moby/client"

	"github.com/docker/go-connections/sockets"
	"google.golang.org/grpc"
)

// noDeadline clears any deadline previously set on a connection.
var noDeadline time.Time

func deadlineFromNow(d time.Duration) time.Time { return time.Now().Add(d) }

// dockerSocketPath is the default Docker Engine API socket; docker://
// addresses with no host component resolve here, mirroring how the
// Docker CLI itself defaults DOCKER_HOST.
const dockerSocketPath = "/var/run/docker.sock"

// dialDocker performs the POST /grpc HTTP/1.1 Upgrade: h2c handshake
// buildkit's own docker:// transport uses (spec.md §6 "docker:// ...
// HTTP upgrade dance to h2c"): dial the Docker Engine's unix socket, send
// an Upgrade request, require a 101 response, then hand the now-raw
// socket to gRPC as a prior-knowledge h2c connection.
func dialDocker(ctx context.Context, socketPath string) (*grpc.ClientConn, error) {
	if socketPath == "" {
		socketPath = dockerSocketPath
	}
	if err := pingDockerEngine(ctx, socketPath); err != nil {
		return nil, &TransportError{Target: "docker:" + socketPath, Err: err}
	}
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return upgradeToH2C(ctx, socketPath)
	}
	return dial(ctx, "docker:"+socketPath, dialer)
}

// pingDockerEngine uses the real Docker Engine API client for a plain
// /_ping round trip before attempting the raw h2c upgrade: the upgrade
// handshake below fails the same way whether the socket doesn't exist,
// isn't a Docker Engine, or rejects the Upgrade header, so a client.Ping
// first gives a caller a clear "no Docker Engine here" error instead of a
// generic HTTP-upgrade failure.
func pingDockerEngine(ctx context.Context, socketPath string) error {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost("unix://"+socketPath),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return fmt.Errorf("connection: constructing docker engine client: %w", err)
	}
	defer cli.Close()
	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("connection: pinging docker engine at %s: %w", socketPath, err)
	}
	return nil
}

func upgradeToH2C(ctx context.Context, socketPath string) (net.Conn, error) {
	tr := &http.Transport{}
	if err := sockets.ConfigureTransport(tr, "unix", socketPath); err != nil {
		return nil, fmt.Errorf("connection: configuring docker socket transport: %w", err)
	}
	conn, err := tr.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connection: dialing docker socket %s: %w", socketPath, err)
	}

	deadline := deadlineFromNow(UpgradeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	req, err := http.NewRequest(http.MethodPost, "/grpc", nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "h2c")
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connection: sending upgrade request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connection: reading upgrade response: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("connection: docker daemon refused h2c upgrade: status %d", resp.StatusCode)
	}

	conn.SetDeadline(noDeadline)
	return conn, nil
}
