package session

import "time"

type Option func(*Options)

type Options struct {
	CheckpointInterval time.Duration
	CleanupTimeout     time.Duration
	Clock              func() time.Time
}

func WithCheckpointInterval(d time.Duration) Option {
	return func(o *Options) {
		o.CheckpointInterval = d
	}
}

func WithCleanupTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CleanupTimeout = d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		CheckpointInterval: time.Second,
		CleanupTimeout:     5 * time.Second,
		Clock:              time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
