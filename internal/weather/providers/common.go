package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-snapshot/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used when a provider is built without explicit retry settings.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client    *http.Client
	UserAgent string
	Backoff   BackoffConfig
}

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var se *weather.StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return errors.Is(err, weather.ErrNetwork)
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Failures are mapped onto the weather error taxonomy.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := buildRequest()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", weather.ErrInvalidURL, err)
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("%w: %w", ctx.Err(), execErr)
				}
				return nil, fmt.Errorf("%w: %w", weather.ErrNetwork, execErr)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, &weather.StatusError{Status: resp.StatusCode}
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrNetwork)
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit %s: %w", weather.ErrNetwork, cb.Name(), err)
		}

		if !retryable(err) || attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// getJSON issues a GET to rawURL with the provider headers and decodes the JSON body into v.
func getJSON(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, rawURL string, v any) error {
	buildRequest := func() (*http.Request, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("url %q is not absolute", rawURL)
		}
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if cfg.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, cfg, cb, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return fmt.Errorf("%w: %w", weather.ErrDecoding, err)
	}
	return nil
}

// validCoordinate rejects values that cannot be encoded into a provider URL.
func validCoordinate(c weather.Coordinate) error {
	for _, v := range []float64{c.Latitude, c.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinate %v is not finite", weather.ErrInvalidURL, c)
		}
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: coordinate %v out of range", weather.ErrInvalidURL, c)
	}
	return nil
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
