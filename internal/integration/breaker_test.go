package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	err   error
	calls int
}

func (f *fakeExecutor) Execute(context.Context, string, map[string]string, map[string]string) error {
	f.calls++
	return f.err
}

func TestBreakerPassesThrough(t *testing.T) {
	inner := &fakeExecutor{}
	b := NewBreakerExecutor("jira", inner)

	err := b.Execute(context.Background(), "https://example.com", map[string]string{"title": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPropagatesInnerError(t *testing.T) {
	sentinel := errors.New("endpoint down")
	b := NewBreakerExecutor("jira", &fakeExecutor{err: sentinel})

	err := b.Execute(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeExecutor{err: errors.New("endpoint down")}
	b := NewBreakerExecutor("gmail", inner)

	for i := 0; i < int(breakerMaxFailures); i++ {
		err := b.Execute(context.Background(), "https://example.com", nil, nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// fails fast without reaching the endpoint
	before := inner.calls
	err := b.Execute(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, before, inner.calls)
}
