package capability

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waffles-copilot/server/internal/copilot/model"
)

type fakeChatModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestRateLimitedModelDelegates(t *testing.T) {
	inner := &fakeChatModel{reply: "hello"}
	m := NewRateLimitedModel(inner, model.LimiterConfig{RequestsPerSecond: 100, Burst: 10})

	out, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedModelZeroConfigBypassesLimiter(t *testing.T) {
	inner := &fakeChatModel{reply: "ok"}
	m := NewRateLimitedModel(inner, model.LimiterConfig{})

	for i := 0; i < 20; i++ {
		_, err := m.Generate(context.Background(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 20, inner.calls)
}

func TestRateLimitedModelPropagatesErrors(t *testing.T) {
	sentinel := errors.New("quota exceeded")
	m := NewRateLimitedModel(&fakeChatModel{err: sentinel}, model.LimiterConfig{RequestsPerSecond: 100, Burst: 1})

	_, err := m.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, sentinel)
}

func TestRateLimitedModelCancelledContext(t *testing.T) {
	// burst 1 at a tiny rate: the second call must wait and should abort
	// when the context is cancelled
	m := NewRateLimitedModel(&fakeChatModel{reply: "ok"}, model.LimiterConfig{RequestsPerSecond: 0.001, Burst: 1})

	_, err := m.Generate(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, nil)
	require.Error(t, err)
}
