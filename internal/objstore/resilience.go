package objstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls optional retry behaviour for remote calls. The
// engine's failure policy is fail-per-timestamp, so MaxRetries defaults to
// zero; operators running long windows against flaky links can opt in.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var errCircuitOpen = errors.New("circuit breaker open")

// doWithResilience executes op through the circuit breaker, retrying with
// exponential backoff when cfg allows it. An open circuit propagates
// immediately without consuming retries.
func doWithResilience(ctx context.Context, cfg BackoffConfig, cb *gobreaker.CircuitBreaker, op func() (interface{}, error)) (interface{}, error) {
	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := cb.Execute(op)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= cfg.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.MaxInterval > 0 && delay > cfg.MaxInterval {
			delay = cfg.MaxInterval
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
