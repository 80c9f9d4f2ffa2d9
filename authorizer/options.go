package authorizer

import "context"

type Option func(*Options)

type Options struct {
	Header   string
	Issuer   string
	ClientId string
	Context  context.Context
}

func WithHeader(header string) Option {
	return func(o *Options) {
		o.Header = header
	}
}

func WithIssuer(issuer string) Option {
	return func(o *Options) {
		o.Issuer = issuer
	}
}

func WithClientId(clientId string) Option {
	return func(o *Options) {
		o.ClientId = clientId
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Header:  "X-User-Id",
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
