package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	name       string
	GenerateFn func(ctx context.Context, model, prompt string, opts Options) (string, error)
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	if f.GenerateFn != nil {
		return f.GenerateFn(ctx, model, prompt, opts)
	}
	return "", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&fakeClient{name: "Gemini"}, &fakeClient{name: "openai"})

	_, ok := r.Get(" GEMINI ")
	assert.True(t, ok)
	_, ok = r.Get("anthropic")
	assert.False(t, ok)
	assert.Equal(t, []string{"gemini", "openai"}, r.Names())
}

func TestInvoker_Invoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("passes model and options through", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{name: "gemini", GenerateFn: func(ctx context.Context, model, prompt string, opts Options) (string, error) {
			assert.Equal(t, "gemini-2.0-flash", model)
			assert.Equal(t, "prompt", prompt)
			assert.InDelta(t, 0.3, opts.Temperature, 1e-9)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return `{"cards":[]}`, nil
		}}
		inv := NewInvoker(NewRegistry(client), InvokerConfig{}, discardLogger())

		text, err := inv.Invoke(ctx, "gemini", "gemini-2.0-flash", "prompt", Options{Temperature: 0.3})
		require.NoError(t, err)
		assert.Equal(t, `{"cards":[]}`, text)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		inv := NewInvoker(NewRegistry(), InvokerConfig{}, discardLogger())
		_, err := inv.Invoke(ctx, "ghost", "m", "p", Options{})
		assert.ErrorIs(t, err, ErrUnknownProvider)
		assert.False(t, IsRetryable(err))
	})

	t.Run("timeout is distinct", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{name: "slow", GenerateFn: func(ctx context.Context, _, _ string, _ Options) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}}
		inv := NewInvoker(NewRegistry(client), InvokerConfig{Timeout: 20 * time.Millisecond}, discardLogger())

		_, err := inv.Invoke(ctx, "slow", "m", "p", Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderTimeout)
		assert.Contains(t, err.Error(), "took too long")
		assert.True(t, IsRetryable(err))
	})

	t.Run("caller cancellation is not a timeout", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{name: "slow", GenerateFn: func(ctx context.Context, _, _ string, _ Options) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}}
		inv := NewInvoker(NewRegistry(client), InvokerConfig{Timeout: time.Minute}, discardLogger())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := inv.Invoke(cctx, "slow", "m", "p", Options{})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrProviderTimeout))
	})

	t.Run("empty text", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{name: "quiet", GenerateFn: func(context.Context, string, string, Options) (string, error) {
			return "  \n", nil
		}}
		inv := NewInvoker(NewRegistry(client), InvokerConfig{}, discardLogger())
		_, err := inv.Invoke(ctx, "quiet", "m", "p", Options{})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("rate limited calls still succeed", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{name: "gemini", GenerateFn: func(context.Context, string, string, Options) (string, error) {
			return "[]", nil
		}}
		inv := NewInvoker(NewRegistry(client), InvokerConfig{RequestsPerMinute: map[string]int{"gemini": 600}}, discardLogger())
		for i := 0; i < 3; i++ {
			_, err := inv.Invoke(ctx, "gemini", "m", "p", Options{})
			require.NoError(t, err)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(ErrTransient))
	assert.True(t, IsRetryable(ErrRateLimited))
	assert.False(t, IsRetryable(ErrQuotaExceeded))
	assert.False(t, IsRetryable(ErrContentBlocked))
	assert.False(t, IsRetryable(errors.New("unclassified")))
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, StatusError(429, false, "slow down"), ErrRateLimited)
	assert.ErrorIs(t, StatusError(429, true, "quota"), ErrQuotaExceeded)
	assert.ErrorIs(t, StatusError(402, false, "pay"), ErrQuotaExceeded)
	assert.ErrorIs(t, StatusError(503, false, "down"), ErrTransient)
	assert.ErrorIs(t, StatusError(408, false, "timeout"), ErrTransient)
	assert.ErrorIs(t, StatusError(400, false, "bad"), ErrInvalidRequest)
}

func TestRateLimiterPool_KeepsOriginalRate(t *testing.T) {
	t.Parallel()

	p := NewRateLimiterPool()
	a := p.GetOrCreate("gemini:flash", 60)
	b := p.GetOrCreate("gemini:flash", 120)
	assert.Same(t, a, b)
	assert.InDelta(t, 1.0, float64(a.Limit()), 1e-9)
}
