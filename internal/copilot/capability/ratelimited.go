package capability

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/waffles-copilot/server/internal/copilot/model"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// RateLimitedModel wraps any chat model and blocks before each call until
// the shared limiter admits it. A nil limiter degrades to a direct call.
type RateLimitedModel struct {
	inner   einomodel.BaseChatModel
	limiter *rate.Limiter
}

// NewRateLimitedModel wraps inner with the configured request limiter.
func NewRateLimitedModel(inner einomodel.BaseChatModel, cfg model.LimiterConfig) *RateLimitedModel {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &RateLimitedModel{inner: inner, limiter: limiter}
}

// Generate implements einomodel.BaseChatModel.
func (m *RateLimitedModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.inner.Generate(ctx, in, opts...)
}

// Stream implements einomodel.BaseChatModel.
func (m *RateLimitedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.inner.Stream(ctx, in, opts...)
}

func (m *RateLimitedModel) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		logx.Debug().Dur("waited", waited).Msg("LLM call throttled by rate limiter")
	}
	return nil
}

var _ einomodel.BaseChatModel = (*RateLimitedModel)(nil)
