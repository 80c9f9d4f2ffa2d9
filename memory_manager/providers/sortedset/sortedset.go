package sortedset

import "context"

// SortedSet is the subset of sorted-set commands the history store needs.
// Members are unique per key; adding an existing member updates its score.
// Ranks are ascending by score, ties broken by member.
type SortedSet interface {
	Add(ctx context.Context, key string, members ...Member) error
	// AddCapped adds members and drops all but the limit highest ranked in
	// one atomic step.
	AddCapped(ctx context.Context, key string, limit int64, members ...Member) error
	RangeByScore(ctx context.Context, key string, min, max float64) ([]Member, error)
	Card(ctx context.Context, key string) (int64, error)
	RemoveRangeByRank(ctx context.Context, key string, start, stop int64) error
}

type Member struct {
	Score float64
	Value string
}
