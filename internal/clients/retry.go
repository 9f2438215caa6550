package clients

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RetryConfig controls how a platform call is repeated
type RetryConfig struct {
	MaxRetries int

	// Delay before retry n is InitialBackoff * BackoffFactor^n, spread by
	// +/- Jitter and capped at MaxBackoff
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         float64

	RetryableStatus []int
}

// DefaultRetryConfig keeps a single row's worst case short: an import issues
// two calls per row and runs them one after another.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Attempt is the outcome of one try of a retryable call
type Attempt struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

// Succeeded reports a 2xx response without error
func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.StatusCode >= 200 && a.StatusCode < 300
}

// RetryResult is what Do reports back
type RetryResult struct {
	Attempts  int
	LastError error
}

// Retrier repeats platform calls with capped exponential backoff
type Retrier struct {
	config    *RetryConfig
	retryable map[int]bool
}

func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := make(map[int]bool, len(config.RetryableStatus))
	for _, code := range config.RetryableStatus {
		retryable[code] = true
	}
	return &Retrier{config: config, retryable: retryable}
}

// ShouldRetry decides whether an attempt is worth repeating
func (r *Retrier) ShouldRetry(a Attempt) bool {
	switch {
	case errors.Is(a.Err, context.Canceled), errors.Is(a.Err, context.DeadlineExceeded):
		return false
	case errors.Is(a.Err, ErrThrottled):
		return true
	case a.Err != nil && a.StatusCode == 0:
		// transport error, nothing came back
		return true
	}
	return r.retryable[a.StatusCode]
}

// CalculateBackoff returns the wait before retry number attempt. A
// server-provided retryAfter wins over the computed delay.
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	limit := r.config.MaxBackoff
	if retryAfter > 0 {
		return min(retryAfter, limit)
	}

	delay := float64(r.config.InitialBackoff)
	for i := 0; i < attempt && delay < float64(limit); i++ {
		delay *= r.config.BackoffFactor
	}
	if j := r.config.Jitter; j > 0 {
		delay *= 1 + j*(2*rand.Float64()-1)
	}
	return min(time.Duration(delay), limit)
}

// ParseRetryAfter reads Retry-After as seconds or as an HTTP date
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		return time.Until(at)
	}
	return 0
}

// RetryableFunc performs one try of a call
type RetryableFunc func(ctx context.Context) Attempt

// Do executes fn until it succeeds, fails permanently or runs out of retries
func (r *Retrier) Do(ctx context.Context, operation string, fn RetryableFunc) *RetryResult {
	result := &RetryResult{}

	for {
		a := fn(ctx)
		result.Attempts++

		if a.Succeeded() {
			result.LastError = nil
			return result
		}
		result.LastError = a.Err
		if result.LastError == nil {
			result.LastError = fmt.Errorf("%s: unexpected status %d", operation, a.StatusCode)
		}
		if !r.ShouldRetry(a) {
			return result
		}
		if result.Attempts > r.config.MaxRetries {
			result.LastError = fmt.Errorf("max retries exceeded for %s: %w", operation, result.LastError)
			return result
		}

		timer := time.NewTimer(r.CalculateBackoff(result.Attempts-1, a.RetryAfter))
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			return result
		case <-timer.C:
		}
	}
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops calling a platform that keeps failing. After
// threshold consecutive failures it rejects calls for cooldown, then lets
// probes through; probeQuota successful probes close it again.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold  int
	cooldown   time.Duration
	probeQuota int

	state    CircuitState
	failures int
	probes   int
	openedAt time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, probeQuota: 2}
}

// Allow reports whether a call may go out now
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probes = 0
	}
	return cb.state == CircuitClosed || cb.probes < cb.probeQuota
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.probes++
		if cb.probes < cb.probeQuota {
			return
		}
		cb.state = CircuitClosed
	}
	cb.failures = 0
}

// RecordFailure counts a failed call. Any failure while half-open trips the
// breaker again.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
