package localstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"ttshist/internal/history"
)

const (
	// HistoryKey is the key/value entry holding the serialized history.
	HistoryKey = "tts-history"

	// DefaultMaxSize is the default ceiling on total audio bytes.
	DefaultMaxSize int64 = 20 * 1024 * 1024
)

// Store is the bounded history backend. The whole collection is kept as a
// single JSON array under HistoryKey, with audio bytes inlined.
//
// Store is not safe for concurrent use; the engine serializes access.
type Store struct {
	kv      history.KeyValueStore
	maxSize int64
	logger  history.Logger
}

var _ history.BoundedBackend = (*Store)(nil)

// New creates a bounded store over kv. A non-positive maxSize selects
// DefaultMaxSize.
func New(kv history.KeyValueStore, maxSize int64, logger history.Logger) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = history.NewNopLogger()
	}
	return &Store{kv: kv, maxSize: maxSize, logger: logger}
}

// Ceiling returns the configured maximum total size in bytes.
func (s *Store) Ceiling() int64 {
	return s.maxSize
}

// Load reads the stored collection. A corrupt payload is discarded, the
// key is removed, and an empty history is returned.
func (s *Store) Load(ctx context.Context) ([]*history.Item, error) {
	data, err := s.kv.Get(ctx, HistoryKey)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", HistoryKey, err)
	}

	items, err := decode(data)
	if err != nil {
		s.logger.Warn("discarding corrupt history payload", "key", HistoryKey, "error", err)
		if rerr := s.kv.Remove(ctx, HistoryKey); rerr != nil {
			s.logger.Error("failed to remove corrupt history payload", "error", rerr)
		}
		return nil, nil
	}
	return items, nil
}

// Save replaces the stored collection in one write.
func (s *Store) Save(ctx context.Context, items []*history.Item) error {
	data, err := encode(items)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := s.kv.Set(ctx, HistoryKey, data); err != nil {
		return fmt.Errorf("writing %s: %w", HistoryKey, err)
	}
	return nil
}

// Delete is a no-op. Items live inside the collection, which the caller
// rewrites with Save.
func (s *Store) Delete(context.Context, string) error {
	return nil
}

// Clear removes the stored collection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, HistoryKey); err != nil {
		return fmt.Errorf("removing %s: %w", HistoryKey, err)
	}
	return nil
}

// Reserve plans room for an incoming item of the given size. Items are
// evicted oldest first by CreatedAt; ties go to the item stored later in
// the newest-first order. An item equal to the ceiling fits once
// everything else is evicted.
func (s *Store) Reserve(items []*history.Item, incoming int64) (kept, evicted []*history.Item, err error) {
	if incoming > s.maxSize {
		return nil, nil, fmt.Errorf("%d bytes exceeds the %d byte limit: %w", incoming, s.maxSize, history.ErrItemTooLarge)
	}

	used := history.UsedBytes(items)
	if used+incoming <= s.maxSize {
		return items, nil, nil
	}

	// Oldest-first view of the newest-first input.
	order := make([]int, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		order = append(order, i)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(items[a].CreatedAt.UnixNano(), items[b].CreatedAt.UnixNano())
	})

	drop := make(map[int]bool)
	for _, i := range order {
		if used+incoming <= s.maxSize {
			break
		}
		drop[i] = true
		used -= items[i].SizeBytes
		evicted = append(evicted, items[i])
	}

	kept = make([]*history.Item, 0, len(items)-len(drop))
	for i, it := range items {
		if !drop[i] {
			kept = append(kept, it)
		}
	}
	return kept, evicted, nil
}

// record is the persisted shape of an item.
type record struct {
	ID        string            `json:"id"`
	QueryID   string            `json:"queryId"`
	Text      string            `json:"text"`
	Settings  history.Settings  `json:"settings"`
	Status    history.Status    `json:"status"`
	AudioData byteValues        `json:"audioData,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	SizeBytes int64             `json:"sizeBytes"`
	Metadata  *history.Metadata `json:"metadata,omitempty"`
}

func encode(items []*history.Item) ([]byte, error) {
	recs := make([]record, 0, len(items))
	for _, it := range items {
		recs = append(recs, record{
			ID:        it.ID,
			QueryID:   it.QueryID,
			Text:      it.Text,
			Settings:  it.Settings.Sanitized(),
			Status:    it.Status,
			AudioData: byteValues(it.Audio),
			CreatedAt: it.CreatedAt,
			SizeBytes: it.SizeBytes,
			Metadata:  it.Metadata,
		})
	}
	return json.Marshal(recs)
}

func decode(data []byte) ([]*history.Item, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}

	items := make([]*history.Item, 0, len(recs))
	for i, r := range recs {
		if r.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		items = append(items, &history.Item{
			ID:        r.ID,
			QueryID:   r.QueryID,
			Text:      r.Text,
			Settings:  r.Settings,
			Status:    r.Status,
			Audio:     []byte(r.AudioData),
			CreatedAt: r.CreatedAt,
			SizeBytes: r.SizeBytes,
			Metadata:  r.Metadata,
		})
	}
	return items, nil
}
