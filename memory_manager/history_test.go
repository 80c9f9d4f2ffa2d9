package memorymanager_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	"github.com/w-h-a/companion/memory_manager/providers/sortedset"
	"github.com/w-h-a/companion/memory_manager/providers/sortedset/memory"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

type spySortedSet struct {
	sortedset.SortedSet
	mtx   sync.Mutex
	calls int
}

func (s *spySortedSet) record() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.calls++
}

func (s *spySortedSet) Calls() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.calls
}

func (s *spySortedSet) Add(ctx context.Context, key string, members ...sortedset.Member) error {
	s.record()
	return s.SortedSet.Add(ctx, key, members...)
}

func (s *spySortedSet) AddCapped(ctx context.Context, key string, limit int64, members ...sortedset.Member) error {
	s.record()
	return s.SortedSet.AddCapped(ctx, key, limit, members...)
}

func (s *spySortedSet) RangeByScore(ctx context.Context, key string, min, max float64) ([]sortedset.Member, error) {
	s.record()
	return s.SortedSet.RangeByScore(ctx, key, min, max)
}

func (s *spySortedSet) Card(ctx context.Context, key string) (int64, error) {
	s.record()
	return s.SortedSet.Card(ctx, key)
}

func (s *spySortedSet) RemoveRangeByRank(ctx context.Context, key string, start, stop int64) error {
	s.record()
	return s.SortedSet.RemoveRangeByRank(ctx, key, start, stop)
}

var key = memorymanager.IdentityKey{PersonaId: "p1", ModelId: "m1", UserId: "u1"}

func newHistory(t *testing.T) (*memorymanager.HistoryStore, *fakeClock, *spySortedSet) {
	t.Helper()
	clock := newFakeClock()
	set := &spySortedSet{SortedSet: memory.NewSortedSet()}
	h := memorymanager.NewHistoryStore(
		memorymanager.WithSortedSet(set),
		memorymanager.WithClock(clock.Now),
	)
	return h, clock, set
}

func texts(w memorymanager.HistoryWindow) []string {
	out := make([]string, 0, len(w.Entries))
	for _, e := range w.Entries {
		out = append(out, e.Text)
	}
	return out
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name  string
		key   memorymanager.IdentityKey
		valid bool
	}{
		{"complete", memorymanager.IdentityKey{PersonaId: "p", ModelId: "m", UserId: "u"}, true},
		{"missing persona", memorymanager.IdentityKey{ModelId: "m", UserId: "u"}, false},
		{"missing model", memorymanager.IdentityKey{PersonaId: "p", UserId: "u"}, false},
		{"missing user", memorymanager.IdentityKey{PersonaId: "p", ModelId: "m"}, false},
		{"blank user", memorymanager.IdentityKey{PersonaId: "p", ModelId: "m", UserId: "  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.key.Valid())
		})
	}

	assert.Equal(t, "chat:p1:m1:u1", key.String())
}

func TestHistoryStore_InvalidKeyTouchesNoStorage(t *testing.T) {
	h, _, set := newHistory(t)
	ctx := context.Background()
	bad := memorymanager.IdentityKey{PersonaId: "p1", ModelId: "", UserId: "u1"}

	require.ErrorIs(t, h.Append(ctx, bad, "hi"), memorymanager.ErrInvalidKey)

	_, err := h.ReadWindow(ctx, bad)
	require.ErrorIs(t, err, memorymanager.ErrInvalidKey)

	require.ErrorIs(t, h.Seed(ctx, bad, "a\n\nb", "\n\n"), memorymanager.ErrInvalidKey)

	_, err = h.Count(ctx, bad)
	require.ErrorIs(t, err, memorymanager.ErrInvalidKey)

	require.ErrorIs(t, h.Trim(ctx, bad), memorymanager.ErrInvalidKey)

	assert.Zero(t, set.Calls())
}

func TestHistoryStore_AppendTrimsToLimit(t *testing.T) {
	h, clock, _ := newHistory(t)
	ctx := context.Background()

	for i := range 35 {
		require.NoError(t, h.Append(ctx, key, fmt.Sprintf("msg %d", i)))
		clock.Advance(time.Second)
	}

	count, err := h.Count(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 30, count)

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	require.Len(t, window.Entries, 30)
	assert.Equal(t, "msg 5", window.Entries[0].Text)
	assert.Equal(t, "msg 34", window.Entries[29].Text)
}

func TestHistoryStore_SameMillisecondKeepsInsertionOrder(t *testing.T) {
	h, _, _ := newHistory(t)
	ctx := context.Background()

	for i := range 35 {
		require.NoError(t, h.Append(ctx, key, fmt.Sprintf("msg %d", i)))
	}

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	require.Len(t, window.Entries, 30)
	assert.Equal(t, "msg 5", window.Entries[0].Text)
	assert.Equal(t, "msg 34", window.Entries[29].Text)
}

func TestHistoryStore_IdenticalUtterancesStayDistinct(t *testing.T) {
	h, clock, _ := newHistory(t)
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, key, "User: hi"))
	clock.Advance(time.Second)
	require.NoError(t, h.Append(ctx, key, "User: hi"))

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"User: hi", "User: hi"}, texts(window))
	assert.Equal(t, "User: hi\nUser: hi", window.Transcript())
}

func TestHistoryStore_SeedIsIdempotent(t *testing.T) {
	h, clock, _ := newHistory(t)
	ctx := context.Background()

	seed := "Human: Hi Ada.\n\n  Ada: Hello there!  \n\n\n\nHuman: How are you?"

	require.NoError(t, h.Seed(ctx, key, seed, "\n\n"))

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"Human: Hi Ada.", "Ada: Hello there!", "Human: How are you?"}, texts(window))

	clock.Advance(time.Second)
	require.NoError(t, h.Seed(ctx, key, "Something else entirely", "\n\n"))

	again, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, texts(window), texts(again))
}

func TestHistoryStore_SeedSkipsPopulatedKey(t *testing.T) {
	h, _, _ := newHistory(t)
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, key, "User: first"))
	require.NoError(t, h.Seed(ctx, key, "a\n\nb", "\n\n"))

	count, err := h.Count(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestHistoryStore_SeedIsOneBatch(t *testing.T) {
	h, _, set := newHistory(t)
	ctx := context.Background()

	require.NoError(t, h.Seed(ctx, key, "a\n\nb\n\nc", "\n\n"))

	// card, then one capped add
	assert.Equal(t, 2, set.Calls())
}

func TestHistoryStore_SeedEntriesAreOrdered(t *testing.T) {
	h, _, _ := newHistory(t)
	ctx := context.Background()

	require.NoError(t, h.Seed(ctx, key, "one\ntwo\nthree", "\n"))

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	require.Len(t, window.Entries, 3)
	assert.True(t, window.Entries[0].Timestamp.Before(window.Entries[1].Timestamp))
	assert.True(t, window.Entries[1].Timestamp.Before(window.Entries[2].Timestamp))
}

func TestHistoryStore_WindowExcludesOldEntries(t *testing.T) {
	h, clock, _ := newHistory(t)
	ctx := context.Background()

	require.NoError(t, h.Append(ctx, key, "yesterday"))
	clock.Advance(25 * time.Hour)
	require.NoError(t, h.Append(ctx, key, "today"))

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"today"}, texts(window))

	for _, e := range window.Entries {
		assert.False(t, e.Timestamp.Before(clock.Now().Add(-24*time.Hour)))
	}
}

func TestHistoryStore_WindowCapsOversizedSet(t *testing.T) {
	clock := newFakeClock()
	set := memory.NewSortedSet()
	h := memorymanager.NewHistoryStore(
		memorymanager.WithSortedSet(set),
		memorymanager.WithClock(clock.Now),
	)
	ctx := context.Background()

	// written by another client without trimming
	for i := range 40 {
		require.NoError(t, set.Add(ctx, key.String(), sortedset.Member{
			Score: float64(clock.Now().Add(time.Duration(i-40) * time.Second).UnixMilli()),
			Value: fmt.Sprintf("line %02d", i),
		}))
	}

	window, err := h.ReadWindow(ctx, key)
	require.NoError(t, err)
	require.Len(t, window.Entries, 30)
	assert.Equal(t, "line 10", window.Entries[0].Text)
	assert.Equal(t, "line 39", window.Entries[29].Text)
}

func TestHistoryStore_KeysAreIsolated(t *testing.T) {
	h, _, _ := newHistory(t)
	ctx := context.Background()
	other := memorymanager.IdentityKey{PersonaId: "p1", ModelId: "m1", UserId: "u2"}

	require.NoError(t, h.Append(ctx, key, "mine"))

	window, err := h.ReadWindow(ctx, other)
	require.NoError(t, err)
	assert.True(t, window.Empty())
}

func TestHistoryStore_TrimKeepsNewest(t *testing.T) {
	clock := newFakeClock()
	set := memory.NewSortedSet()
	h := memorymanager.NewHistoryStore(
		memorymanager.WithSortedSet(set),
		memorymanager.WithClock(clock.Now),
	)
	ctx := context.Background()

	for i := range 35 {
		require.NoError(t, set.Add(ctx, key.String(), sortedset.Member{
			Score: float64(clock.Now().Add(time.Duration(i) * time.Millisecond).UnixMilli()),
			Value: fmt.Sprintf("line %02d", i),
		}))
	}

	require.NoError(t, h.Trim(ctx, key))

	members, err := set.RangeByScore(ctx, key.String(), 0, float64(clock.Now().Add(time.Hour).UnixMilli()))
	require.NoError(t, err)
	require.Len(t, members, 30)
	assert.Equal(t, "line 05", members[0].Value)

	// already within the limit
	require.NoError(t, h.Trim(ctx, key))
	count, err := h.Count(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 30, count)
}

func TestHistoryStore_ConcurrentAppendsNeverOverEvict(t *testing.T) {
	h, clock, _ := newHistory(t)
	ctx := context.Background()

	for i := range 29 {
		require.NoError(t, h.Append(ctx, key, fmt.Sprintf("old %d", i)))
		clock.Advance(time.Millisecond)
	}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Append(ctx, key, fmt.Sprintf("new %d", i)))
		}()
	}
	wg.Wait()

	count, err := h.Count(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 30, count)
}
