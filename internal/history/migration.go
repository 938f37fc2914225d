package history

import (
	"context"
	"fmt"
	"slices"
)

// MigrationResult reports the outcome of a backend-to-backend transfer.
type MigrationResult struct {
	Success bool
	Copied  int
	Evicted []*Item
	Error   string
}

// migrator performs one-shot, one-directional transfers. The source stays
// authoritative until the destination write has completed, so a failure
// never deletes source data.
type migrator struct {
	logger Logger
}

// localToDurable copies the bounded store into an empty directory and then
// clears the bounded store's key.
func (m *migrator) localToDurable(ctx context.Context, src BoundedBackend, dst DurableBackend) ([]*Item, error) {
	items, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading local history: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	m.logger.Info("migrating local history to folder", "count", len(items), "folder", dst.Location())
	if err := dst.Save(ctx, items); err != nil {
		return nil, fmt.Errorf("writing history to folder: %w", err)
	}

	if err := src.Clear(ctx); err != nil {
		m.logger.Warn("migrated history but failed to clear local storage", "error", err)
	}
	return items, nil
}

// durableToLocal copies the directory contents into the bounded store,
// evicting the oldest items that do not fit under its ceiling.
func (m *migrator) durableToLocal(ctx context.Context, src DurableBackend, dst BoundedBackend) (kept, evicted []*Item, err error) {
	items, err := src.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading folder history: %w", err)
	}

	kept, evicted = fitWithin(dst, items)
	if len(evicted) > 0 {
		m.logger.Warn("evicting items that exceed local capacity", "count", len(evicted), "ceiling", dst.Ceiling())
	}

	if err := dst.Save(ctx, kept); err != nil {
		return nil, nil, fmt.Errorf("writing history to local storage: %w", err)
	}
	return kept, evicted, nil
}

// fitWithin replays items oldest to newest through the bounded eviction
// policy and returns the surviving newest-first set.
func fitWithin(dst BoundedBackend, items []*Item) (kept, evicted []*Item) {
	for _, it := range slices.Backward(items) {
		k, ev, err := dst.Reserve(kept, it.SizeBytes)
		if err != nil {
			evicted = append(evicted, it)
			continue
		}
		evicted = append(evicted, ev...)
		kept = append([]*Item{it}, k...)
	}
	return kept, evicted
}
