package limiter

import "context"

type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}
