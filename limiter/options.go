package limiter

import (
	"context"
	"time"
)

type Option func(*Options)

type Options struct {
	// Requests allowed per Window for one identifier.
	Requests int
	Window   time.Duration
	// Identifiers tracked at once before the least useful bucket is evicted.
	MaxIdentifiers int64
	Context        context.Context
}

func WithRequests(n int) Option {
	return func(o *Options) {
		o.Requests = n
	}
}

func WithWindow(window time.Duration) Option {
	return func(o *Options) {
		o.Window = window
	}
}

func WithMaxIdentifiers(n int64) Option {
	return func(o *Options) {
		o.MaxIdentifiers = n
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Requests:       10,
		Window:         10 * time.Second,
		MaxIdentifiers: 100_000,
		Context:        context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
