package buildsession

import (
	"errors"
	"fmt"
	"testing"

	"github.com/DiverOfDark/peelbox/src/connection"
)

func TestClassifyErrRecognizesEachKind(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&connection.AddressError{Addr: "x", Reason: "bad"}, KindAddress},
		{&connection.TransportError{Target: "x", Err: errors.New("refused")}, KindTransport},
		{&SessionError{SessionID: "s1", Err: errors.New("closed")}, KindSession},
		{&ProtocolError{Detail: "bad frame"}, KindProtocol},
		{&SolveError{Err: errors.New("nonzero exit")}, KindSolve},
		{&LocalIOError{Path: "/tmp/x", Err: errors.New("denied")}, KindLocalIO},
		{&InternalError{Detail: "invariant", Err: errors.New("oops")}, KindInternal},
		{errors.New("some other error"), KindUnknown},
	}
	for _, c := range cases {
		if got := ClassifyErr(c.err); got != c.want {
			t.Errorf("ClassifyErr(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestClassifyErrSeesThroughWrapping(t *testing.T) {
	inner := &SolveError{Err: errors.New("boom")}
	wrapped := fmt.Errorf("outer context: %w", inner)
	if got := ClassifyErr(wrapped); got != KindSolve {
		t.Fatalf("expected typed error under fmt.Errorf wrapping to classify, got %s", got)
	}
	var err error = &ProtocolError{Detail: "wrapping", Err: inner}
	if got := ClassifyErr(err); got != KindProtocol {
		t.Fatalf("expected outermost typed error to classify, got %s", got)
	}
}

func TestKindStringIsStable(t *testing.T) {
	if KindAddress.String() != "address" || KindUnknown.String() != "unknown" {
		t.Fatal("Kind.String() values changed unexpectedly")
	}
}
