package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/w-h-a/companion/limiter"
	"golang.org/x/time/rate"
)

// tokenLimiter keeps one token bucket per identifier in a bounded cache.
// Every use pushes a bucket's expiry out, so only buckets idle for longer
// than a window, which are full again anyway, ever expire.
type tokenLimiter struct {
	options limiter.Options
	buckets *ristretto.Cache
	mtx     sync.Mutex
}

func (l *tokenLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	return l.bucket(identifier).Allow(), nil
}

func (l *tokenLimiter) bucket(identifier string) *rate.Limiter {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	ttl := 2 * l.options.Window

	if v, ok := l.buckets.Get(identifier); ok {
		if b, ok := v.(*rate.Limiter); ok {
			l.buckets.SetWithTTL(identifier, b, 1, ttl)
			return b
		}
	}

	b := rate.NewLimiter(rate.Every(l.options.Window/time.Duration(l.options.Requests)), l.options.Requests)

	l.buckets.SetWithTTL(identifier, b, 1, ttl)
	l.buckets.Wait()

	return b
}

func NewLimiter(opts ...limiter.Option) limiter.Limiter {
	options := limiter.NewOptions(opts...)

	if options.Requests < 1 || options.Window <= 0 {
		panic("requests and window must be positive for token limiter")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: options.MaxIdentifiers * 10,
		MaxCost:     options.MaxIdentifiers,
		BufferItems: 64,
	})
	if err != nil {
		detail := "failed to create bucket cache for token limiter"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	l := &tokenLimiter{
		options: options,
		buckets: cache,
	}

	return l
}
