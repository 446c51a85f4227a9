package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	logx "github.com/waffles-copilot/server/pkg/logger"
)

const (
	breakerMaxFailures uint32 = 5
	breakerTimeout            = 30 * time.Second
	breakerInterval           = 60 * time.Second
)

// BreakerExecutor wraps an Executor with a circuit breaker. When the target
// service fails repeatedly the circuit opens and calls fail fast instead of
// piling retries onto a struggling endpoint.
type BreakerExecutor struct {
	name    string
	inner   Executor
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerExecutor(name string, inner Executor) *BreakerExecutor {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "action:" + name,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			logx.Warn().
				Str("breaker", cbName).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &BreakerExecutor{name: name, inner: inner, breaker: cb}
}

func (b *BreakerExecutor) Execute(ctx context.Context, endpoint string, payload map[string]string, auth map[string]string) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Execute(ctx, endpoint, payload, auth)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%s circuit open: %w", b.name, err)
	}
	return err
}

// State exposes the breaker state for monitoring.
func (b *BreakerExecutor) State() gobreaker.State {
	return b.breaker.State()
}

var _ Executor = (*BreakerExecutor)(nil)
