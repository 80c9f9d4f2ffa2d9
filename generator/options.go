package generator

import "context"

type Option func(*Options)

type Options struct {
	ApiKey            string
	Model             string
	Location          string
	PromptPrefix      string
	MaxTokens         int
	Temperature       float64
	RepetitionPenalty float64
	Context           context.Context
}

func WithApiKey(apiKey string) Option {
	return func(o *Options) {
		o.ApiKey = apiKey
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithLocation points the client at a compatible endpoint.
func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithPromptPrefix(prefix string) Option {
	return func(o *Options) {
		o.PromptPrefix = prefix
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = t
	}
}

func WithRepetitionPenalty(p float64) Option {
	return func(o *Options) {
		o.RepetitionPenalty = p
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		MaxTokens:         2048,
		Temperature:       0.7,
		RepetitionPenalty: 1.1,
		Context:           context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func (o Options) FullPrompt(prompt string) string {
	if len(o.PromptPrefix) > 0 {
		return o.PromptPrefix + "\n" + prompt
	}
	return prompt
}
