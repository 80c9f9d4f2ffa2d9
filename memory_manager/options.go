package memorymanager

import (
	"time"

	"github.com/w-h-a/companion/memory_manager/providers/embedder"
	"github.com/w-h-a/companion/memory_manager/providers/sortedset"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
)

type Option func(*Options)

type Options struct {
	SortedSet     sortedset.SortedSet
	Storer        storer.Storer
	Embedder      embedder.Embedder
	HistoryLimit  int
	HistoryWindow time.Duration
	RecallLimit   int
	Clock         func() time.Time
}

func WithSortedSet(set sortedset.SortedSet) Option {
	return func(o *Options) {
		o.SortedSet = set
	}
}

func WithStorer(storer storer.Storer) Option {
	return func(o *Options) {
		o.Storer = storer
	}
}

func WithEmbedder(embedder embedder.Embedder) Option {
	return func(o *Options) {
		o.Embedder = embedder
	}
}

func WithHistoryLimit(limit int) Option {
	return func(o *Options) {
		o.HistoryLimit = limit
	}
}

func WithHistoryWindow(window time.Duration) Option {
	return func(o *Options) {
		o.HistoryWindow = window
	}
}

func WithRecallLimit(limit int) Option {
	return func(o *Options) {
		o.RecallLimit = limit
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		HistoryLimit:  30,
		HistoryWindow: 24 * time.Hour,
		RecallLimit:   3,
		Clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
