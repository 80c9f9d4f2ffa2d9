package telemetry

import "context"

type Option func(*Options)

type Options struct {
	Name     string
	Version  string
	Endpoint string
	Context  context.Context
}

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}

// WithEndpoint sets the OTLP/HTTP collector URL. Without one nothing is
// exported.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Name:    "companion",
		Version: "dev",
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
