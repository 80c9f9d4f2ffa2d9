package sortedset

import "context"

type Option func(*Options)

type Options struct {
	Location string
	Password string
	Database int
	Context  context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithPassword(password string) Option {
	return func(o *Options) {
		o.Password = password
	}
}

func WithDatabase(db int) Option {
	return func(o *Options) {
		o.Database = db
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
