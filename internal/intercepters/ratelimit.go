package intercepters

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxLimiterKeys bounds the limiter map. Idle keys are pruned past it.
const maxLimiterKeys = 10000

// SlugRequest is a request addressed to one link.
type SlugRequest interface {
	GetSlug() string
}

// RateLimiter allows a burst of calls per caller IP and slug, refilled
// evenly over the window.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	methods  map[string]struct{}
}

// NewRateLimiter limits the given full method names to requests per window.
func NewRateLimiter(requests int, window time.Duration, methods ...string) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(window / time.Duration(requests)),
		burst:    requests,
		methods:  make(map[string]struct{}, len(methods)),
	}
	for _, m := range methods {
		rl.methods[m] = struct{}{}
	}
	return rl
}

// Allow takes one token from the bucket of key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiterKeys {
			rl.prune()
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l.Allow()
}

// prune drops keys whose bucket has refilled. Caller holds mu.
func (rl *RateLimiter) prune() {
	for k, l := range rl.limiters {
		if l.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, k)
		}
	}
}

// Unary rejects calls over the limit with ResourceExhausted. It must run
// after SubnetIPInterceptor.
func (rl *RateLimiter) Unary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if _, ok := rl.methods[info.FullMethod]; !ok {
		return handler(ctx, req)
	}

	key := RealIP(ctx)
	if sr, ok := req.(SlugRequest); ok {
		key += "|" + sr.GetSlug()
	}
	if !rl.Allow(key) {
		return nil, status.Error(codes.ResourceExhausted, "too many attempts, try again later")
	}
	return handler(ctx, req)
}
