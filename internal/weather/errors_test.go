package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("grid: %w", ErrInvalidURL), KindInvalidURL},
		{&StatusError{Status: 503}, KindServer},
		{fmt.Errorf("daily: %w", &StatusError{Status: 404}), KindServer},
		{fmt.Errorf("%w: eof", ErrDecoding), KindDecoding},
		{ErrLocationNotFound, KindLocationNotFound},
		{ErrGeocoding, KindGeocoding},
		{ErrNotCovered, KindNotCovered},
		{fmt.Errorf("%w: refused", ErrNetwork), KindNetwork},
		{errors.New("anything else"), KindNetwork},
		{fmt.Errorf("hourly: %w", context.DeadlineExceeded), KindTimeout},
		{fmt.Errorf("%w: %w", ErrNetwork, &url.Error{Op: "Get", URL: "x", Err: timeoutErr{}}), KindTimeout},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestFailureUnwraps(t *testing.T) {
	f := &Failure{State: StateResolvingGrid, Kind: KindServer, Err: &StatusError{Status: 500}}
	if !errors.Is(f, ErrServer) {
		t.Fatal("failure should unwrap to the cause")
	}
	if KindOf(f) != KindServer {
		t.Fatalf("unexpected kind %s", KindOf(f))
	}
}

func TestStateNames(t *testing.T) {
	if StateFetchingForecasts.String() != "fetching_forecasts" || State(99).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
	if !StateDone.Terminal() || !StateFailed.Terminal() || StateCached.Terminal() {
		t.Fatal("unexpected terminal states")
	}
	if StateFetchingAlerts.CanFail() || !StateResolvingGrid.CanFail() {
		t.Fatal("alert fetching must never fail a run")
	}
}
