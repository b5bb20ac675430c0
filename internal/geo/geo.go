// Package geo enriches access events with a coarse client location.
//
// Lookups are optional. Any failure yields an empty Location and the caller carries on.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/metrics"
)

const DefaultTimeout = 1500 * time.Millisecond

type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// New returns a breaker-guarded HTTP locator, or Nop when endpoint is empty.
func New(endpoint string, logger *zap.Logger) Locator {
	if endpoint == "" {
		return Nop{}
	}
	return NewBreakerLocator(NewHTTPLocator(endpoint, DefaultTimeout, logger), logger)
}

type Nop struct{}

func (Nop) Locate(context.Context, string) (Location, error) {
	return Location{}, nil
}

// HTTPLocator asks a JSON endpoint at {endpoint}/{ip} for {"country": ..., "city": ...}.
type HTTPLocator struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPLocator(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPLocator {
	return &HTTPLocator{
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Locate skips addresses that cannot be located (private, loopback, malformed) without a request.
func (l *HTTPLocator) Locate(ctx context.Context, ip string) (Location, error) {
	if !routable(ip) {
		metrics.GeoLookupsTotal.WithLabelValues("skipped").Inc()
		return Location{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/"+ip, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geolocation endpoint returned %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Location{}, fmt.Errorf("decode geolocation: %w", err)
	}

	l.logger.Debug("client located", zap.String("ip", ip), zap.String("country", loc.Country))
	return loc, nil
}

func routable(ip string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast())
}

// BreakerLocator stops calling a failing locator for a while.
type BreakerLocator struct {
	next   Locator
	cb     *gobreaker.CircuitBreaker[Location]
	logger *zap.Logger
}

func NewBreakerLocator(next Locator, logger *zap.Logger) *BreakerLocator {
	metrics.GeoBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[Location](gobreaker.Settings{
		Name:        "geolocation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.GeoBreakerState.Set(stateToFloat(to))
		},
	})

	return &BreakerLocator{next: next, cb: cb, logger: logger}
}

func (b *BreakerLocator) Locate(ctx context.Context, ip string) (Location, error) {
	loc, err := b.cb.Execute(func() (Location, error) {
		return b.next.Locate(ctx, ip)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GeoLookupsTotal.WithLabelValues("rejected").Inc()
	case err != nil:
		metrics.GeoLookupsTotal.WithLabelValues("failure").Inc()
	default:
		metrics.GeoLookupsTotal.WithLabelValues("success").Inc()
	}
	return loc, err
}

// State exposes the breaker state for tests and diagnostics.
func (b *BreakerLocator) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
