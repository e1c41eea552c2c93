package buildsession

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/DiverOfDark/peelbox/src/connection"
	"github.com/DiverOfDark/peelbox/src/filesync"
	"github.com/DiverOfDark/peelbox/src/fsscan"
	"github.com/DiverOfDark/peelbox/src/llb"
	"github.com/DiverOfDark/peelbox/src/logging"
	"github.com/DiverOfDark/peelbox/src/progress"
	"github.com/DiverOfDark/peelbox/src/rpc"
	"github.com/DiverOfDark/peelbox/src/session"
	"github.com/DiverOfDark/peelbox/src/specfmt"
	"github.com/DiverOfDark/peelbox/src/wire"
)

var log = logging.MustGetLogger("buildsession")

// Result is what a successful Run reports (spec.md §4.6 step 6).
type Result struct {
	ImageID string
	Tracker *progress.Tracker
}

// Options configures one Run.
type Options struct {
	Addr        string // daemon address; empty auto-detects (spec.md §6)
	ContextName string
	ContextPath string
	ProjectName string
	Spec        specfmt.BuildSpec
}

// Run drives one build end to end: dial, compile, open a session, submit
// Solve while draining Status, and report the exported image id
// (spec.md §4.6 "Build Session"). It owns the lifetime of the daemon
// connection and the session it opens on it.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cc, err := connection.Dial(ctx, opts.Addr)
	if err != nil {
		return nil, err // already an *connection.AddressError/TransportError
	}

	b := llb.New(opts.ContextName).SetContextPath(opts.ContextPath).SetProjectName(opts.ProjectName)
	defBytes, err := llb.Compile(b, opts.Spec)
	if err != nil {
		cc.Close()
		return nil, &InternalError{Detail: "compiling build spec", Err: err}
	}

	sess := session.New()
	matcher := fsscan.NewMatcher(opts.ContextPath)
	sess.RegisterContext(opts.ContextName, filesync.NewProvider(opts.ContextPath, matcher))

	callCtx := session.ContextWithSession(ctx, sess.ID)
	transport, err := rpc.OpenSessionTransport(callCtx, cc)
	if err != nil {
		cc.Close()
		return nil, &SessionError{SessionID: sess.ID, Err: err}
	}

	control := rpc.NewControlClient(cc)
	tracker := progress.New()

	g, gctx := errgroup.WithContext(callCtx)
	g.Go(func() error {
		if err := sess.Serve(transport); err != nil {
			return &SessionError{SessionID: sess.ID, Err: err}
		}
		return nil
	})

	g.Go(func() error {
		return drainStatus(gctx, control, sess.ID, defBytes, tracker)
	})

	var resp *wire.SolveResponse
	g.Go(func() error {
		r, err := control.Solve(gctx, &wire.SolveRequest{
			SessionID:    sess.ID,
			Definition:   defBytes,
			ExporterKind: "image",
		})
		if err != nil {
			return classifySolveErr(tracker, err)
		}
		resp = r
		return nil
	})

	runErr := g.Wait()

	var cleanup *multierror.Error
	if cerr := sess.Close(); cerr != nil {
		cleanup = multierror.Append(cleanup, cerr)
	}
	cc.Close()
	if cleanup.ErrorOrNil() != nil {
		log.Warning("buildsession: cleanup errors after run: %s", cleanup)
	}

	if runErr != nil {
		return nil, runErr
	}
	if resp == nil {
		return nil, &InternalError{Detail: "solve completed with no response", Err: fmt.Errorf("nil response")}
	}
	imageID := resp.ExporterResponse["moby.image.id"]
	if imageID == "" {
		return nil, &SolveError{Err: fmt.Errorf("daemon did not report moby.image.id in exporter response")}
	}
	return &Result{ImageID: imageID, Tracker: tracker}, nil
}

func drainStatus(ctx context.Context, control *rpc.ControlClient, sessionID string, defBytes []byte, tracker *progress.Tracker) error {
	status, err := control.Status(ctx, &wire.SolveRequest{SessionID: sessionID, Definition: defBytes})
	if err != nil {
		return &ProtocolError{Detail: "opening status stream", Err: err}
	}
	for {
		sr, err := status.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ProtocolError{Detail: "reading status stream", Err: err}
		}
		tracker.Apply(sr)
	}
}

// classifySolveErr names the first failing vertex, if the tracker has
// already seen one reported, for a more actionable SolveError.
func classifySolveErr(tracker *progress.Tracker, err error) error {
	if failed := tracker.Failed(); len(failed) > 0 {
		return &SolveError{Vertex: failed[0].Name, Err: err}
	}
	return &SolveError{Err: err}
}
