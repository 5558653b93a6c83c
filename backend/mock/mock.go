package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/opsmend/llmroute"
)

// Backend is a mock model backend for testing.
type Backend struct {
	name         string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	usage        llmroute.Usage
	responseFunc func(modelID, prompt string) (llmroute.Invocation, error)
}

var _ llmroute.Backend = (*Backend)(nil)

// Option configures a mock Backend.
type Option func(*Backend)

// New creates a mock backend with the given options.
func New(opts ...Option) *Backend {
	b := &Backend{
		name: "mock",
		usage: llmroute.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(b *Backend) { b.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// WithFailAfter makes the backend fail after n successful calls.
func WithFailAfter(n int) Option {
	return func(b *Backend) { b.failAfter = n }
}

// WithError makes the backend always return this error.
func WithError(err error) Option {
	return func(b *Backend) { b.staticErr = err }
}

// WithUsage sets the usage returned by the mock.
func WithUsage(u llmroute.Usage) Option {
	return func(b *Backend) { b.usage = u }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(modelID, prompt string) (llmroute.Invocation, error)) Option {
	return func(b *Backend) { b.responseFunc = fn }
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Invoke(ctx context.Context, modelID, prompt string) (llmroute.Invocation, error) {
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return llmroute.Invocation{}, ctx.Err()
		}
	}

	count := b.callCount.Add(1)

	if b.staticErr != nil {
		return llmroute.Invocation{}, b.staticErr
	}

	if b.failAfter > 0 && int(count) > b.failAfter {
		return llmroute.Invocation{}, llmroute.ErrProviderUnavailable
	}

	if b.responseFunc != nil {
		return b.responseFunc(modelID, prompt)
	}

	return llmroute.Invocation{
		Text:  "Hello from mock backend",
		Usage: b.usage,
	}, nil
}

// CallCount returns the number of calls made to the backend.
func (b *Backend) CallCount() int64 { return b.callCount.Load() }
