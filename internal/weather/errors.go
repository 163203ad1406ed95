package weather

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrNetwork          = errors.New("network error")
	ErrServer           = errors.New("server error")
	ErrDecoding         = errors.New("decoding error")
	ErrLocationNotFound = errors.New("location not found")
	ErrGeocoding        = errors.New("geocoding error")
	ErrNotCovered       = errors.New("location not covered")
	ErrTimeout          = errors.New("timeout")
)

// StatusError is returned for any non-2xx provider response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: status %d", e.Status)
}

// Is lets errors.Is(err, ErrServer) match any status.
func (e *StatusError) Is(target error) bool {
	return target == ErrServer
}

// ErrorKind is the taxonomy bucket of a pipeline error.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindInvalidURL       ErrorKind = "invalid_url"
	KindNetwork          ErrorKind = "network"
	KindServer           ErrorKind = "server"
	KindDecoding         ErrorKind = "decoding"
	KindLocationNotFound ErrorKind = "location_not_found"
	KindGeocoding        ErrorKind = "geocoding"
	KindNotCovered       ErrorKind = "not_covered"
	KindTimeout          ErrorKind = "timeout"
)

// KindOf classifies err. Deadline and client timeouts win over every other kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if IsTimeout(err) {
		return KindTimeout
	}
	switch {
	case errors.Is(err, ErrInvalidURL):
		return KindInvalidURL
	case errors.Is(err, ErrServer):
		return KindServer
	case errors.Is(err, ErrDecoding):
		return KindDecoding
	case errors.Is(err, ErrLocationNotFound):
		return KindLocationNotFound
	case errors.Is(err, ErrGeocoding):
		return KindGeocoding
	case errors.Is(err, ErrNotCovered):
		return KindNotCovered
	default:
		return KindNetwork
	}
}

// IsTimeout reports whether err stems from a deadline, a cancelled context or a client timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Failure is the terminal Failed(kind) state of a pipeline run.
type Failure struct {
	State State
	Kind  ErrorKind
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("weather pipeline failed in %s (%s): %v", f.State, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ErrCacheMiss is returned by Cache backends when no fresh entry exists.
var ErrCacheMiss = errors.New("cache miss")
