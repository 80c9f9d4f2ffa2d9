package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w-h-a/companion/memory_manager/providers/sortedset"
)

type memorySortedSet struct {
	options sortedset.Options
	sets    map[string][]sortedset.Member
	mtx     sync.RWMutex
}

func (s *memorySortedSet) Add(ctx context.Context, key string, members ...sortedset.Member) error {
	if len(members) == 0 {
		return nil
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.add(key, members)

	return nil
}

func (s *memorySortedSet) AddCapped(ctx context.Context, key string, limit int64, members ...sortedset.Member) error {
	if len(members) == 0 {
		return nil
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.add(key, members)
	s.removeRange(key, 0, -(limit + 1))

	return nil
}

func (s *memorySortedSet) add(key string, members []sortedset.Member) {
	set := s.sets[key]

	for _, m := range members {
		replaced := false
		for i := range set {
			if set[i].Value == m.Value {
				set[i].Score = m.Score
				replaced = true
				break
			}
		}
		if !replaced {
			set = append(set, m)
		}
	}

	sort.Slice(set, func(i, j int) bool {
		if set[i].Score == set[j].Score {
			return set[i].Value < set[j].Value
		}
		return set[i].Score < set[j].Score
	})

	s.sets[key] = set
}

func (s *memorySortedSet) RangeByScore(ctx context.Context, key string, min, max float64) ([]sortedset.Member, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var members []sortedset.Member
	for _, m := range s.sets[key] {
		if m.Score >= min && m.Score <= max {
			members = append(members, m)
		}
	}

	return members, nil
}

func (s *memorySortedSet) Card(ctx context.Context, key string) (int64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return int64(len(s.sets[key])), nil
}

func (s *memorySortedSet) RemoveRangeByRank(ctx context.Context, key string, start, stop int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.removeRange(key, start, stop)

	return nil
}

func (s *memorySortedSet) removeRange(key string, start, stop int64) {
	set := s.sets[key]
	n := int64(len(set))

	// negative ranks count from the end, as in redis
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return
	}

	kept := make([]sortedset.Member, 0, n-(stop-start+1))
	kept = append(kept, set[:start]...)
	kept = append(kept, set[stop+1:]...)

	if len(kept) == 0 {
		delete(s.sets, key)
		return
	}

	s.sets[key] = kept
}

func NewSortedSet(opts ...sortedset.Option) sortedset.SortedSet {
	options := sortedset.NewOptions(opts...)

	s := &memorySortedSet{
		options: options,
		sets:    map[string][]sortedset.Member{},
		mtx:     sync.RWMutex{},
	}

	return s
}
