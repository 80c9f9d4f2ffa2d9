package memorymanager

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/companion/memory_manager/providers/sortedset"
)

type HistoryEntry struct {
	Text      string
	Timestamp time.Time
}

// HistoryWindow holds the most recent entries in chronological order.
type HistoryWindow struct {
	Entries []HistoryEntry
}

func (w HistoryWindow) Empty() bool {
	return len(w.Entries) == 0
}

func (w HistoryWindow) Transcript() string {
	texts := make([]string, 0, len(w.Entries))
	for _, e := range w.Entries {
		texts = append(texts, e.Text)
	}
	return strings.Join(texts, "\n")
}

// historyMember is the encoded sorted-set member. The id keeps identical
// utterances distinct and, being a v7 uuid, orders same-millisecond
// entries by insertion.
type historyMember struct {
	Id   string `json:"id"`
	Text string `json:"text"`
}

type HistoryStore struct {
	set    sortedset.SortedSet
	limit  int
	window time.Duration
	clock  func() time.Time
}

func (h *HistoryStore) Append(ctx context.Context, key IdentityKey, text string) error {
	if !key.Valid() {
		return ErrInvalidKey
	}

	member, err := h.encode(text, h.clock())
	if err != nil {
		return err
	}

	return h.set.AddCapped(ctx, key.String(), int64(h.limit), member)
}

func (h *HistoryStore) ReadWindow(ctx context.Context, key IdentityKey) (HistoryWindow, error) {
	if !key.Valid() {
		return HistoryWindow{}, ErrInvalidKey
	}

	now := h.clock()

	members, err := h.set.RangeByScore(
		ctx,
		key.String(),
		score(now.Add(-h.window)),
		score(now),
	)
	if err != nil {
		return HistoryWindow{}, err
	}

	if len(members) > h.limit {
		members = members[len(members)-h.limit:]
	}

	entries := make([]HistoryEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, h.decode(m))
	}

	return HistoryWindow{Entries: entries}, nil
}

func (h *HistoryStore) Seed(ctx context.Context, key IdentityKey, seed string, delimiter string) error {
	if !key.Valid() {
		return ErrInvalidKey
	}

	count, err := h.set.Card(ctx, key.String())
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(seed, delimiter) {
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return nil
	}

	now := h.clock()

	// one millisecond apart, ending at now so the seed is never in the future
	members := make([]sortedset.Member, 0, len(lines))
	for i, line := range lines {
		m, err := h.encode(line, now.Add(-time.Duration(len(lines)-1-i)*time.Millisecond))
		if err != nil {
			return err
		}
		members = append(members, m)
	}

	return h.set.AddCapped(ctx, key.String(), int64(h.limit), members...)
}

func (h *HistoryStore) Count(ctx context.Context, key IdentityKey) (int64, error) {
	if !key.Valid() {
		return 0, ErrInvalidKey
	}

	return h.set.Card(ctx, key.String())
}

// Trim evicts the oldest entries until at most limit remain.
func (h *HistoryStore) Trim(ctx context.Context, key IdentityKey) error {
	if !key.Valid() {
		return ErrInvalidKey
	}

	// ranks run oldest first, so this keeps the newest limit entries
	return h.set.RemoveRangeByRank(ctx, key.String(), 0, -int64(h.limit)-1)
}

func (h *HistoryStore) encode(text string, at time.Time) (sortedset.Member, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return sortedset.Member{}, err
	}

	bs, err := json.Marshal(historyMember{Id: id.String(), Text: text})
	if err != nil {
		return sortedset.Member{}, err
	}

	return sortedset.Member{Score: score(at), Value: string(bs)}, nil
}

func (h *HistoryStore) decode(m sortedset.Member) HistoryEntry {
	entry := HistoryEntry{
		Timestamp: time.UnixMilli(int64(m.Score)),
	}

	var hm historyMember
	if err := json.Unmarshal([]byte(m.Value), &hm); err != nil || len(hm.Id) == 0 {
		// plain members written by other clients
		slog.Debug("history member is not encoded", "error", err)
		entry.Text = m.Value
		return entry
	}

	entry.Text = hm.Text

	return entry
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func NewHistoryStore(opts ...Option) *HistoryStore {
	options := NewOptions(opts...)

	if options.SortedSet == nil {
		panic("missing sorted set for history store")
	}

	h := &HistoryStore{
		set:    options.SortedSet,
		limit:  options.HistoryLimit,
		window: options.HistoryWindow,
		clock:  options.Clock,
	}

	return h
}
