package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
)

// AddResult is returned by AddToHistory.
type AddResult struct {
	Success  bool
	Item     *Item
	Warnings []string
	Removed  []*Item
	Error    string
}

// EnableResult is returned by EnableDurableStorage.
type EnableResult struct {
	Success bool
	// Cancelled is set when the user dismissed the picker. It is an
	// informational outcome rather than a failure of the storage layer.
	Cancelled bool
	Migrated  int
	Warnings  []string
	Error     string
}

// Options wires an Engine to its collaborators.
type Options struct {
	Local       BoundedBackend
	OpenDurable DurableOpener
	Picker      DirectoryPicker
	// Prefs holds the persisted folder hint. It may be the same store
	// that backs Local; the keys do not overlap.
	Prefs KeyValueStore
	// Supported reports whether the host can grant directories. It is
	// evaluated once. When nil, support is assumed if Picker is set.
	Supported func() bool

	Logger Logger
	Clock  Clock
	IDs    IDGenerator
}

// Engine is the history facade. It routes every operation to whichever
// backend is active and publishes change notifications.
//
// Mutating operations are serialized by a single lock, so overlapping
// calls cannot lose updates. Subscribers are invoked synchronously with
// that lock held: they may call the read accessors but must not call
// mutating methods from inside the callback.
type Engine struct {
	mu       sync.Mutex
	sel      *selector
	migrator *migrator
	logger   Logger
	clock    Clock
	ids      IDGenerator

	history *subject[[]*Item]
	info    *subject[StorageInfo]
	folder  *subject[FolderState]
	prompt  *subject[*ReconnectionPrompt]
}

// NewEngine validates opts and returns an engine in ModeUnconfigured.
// Call Start before use.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Local == nil {
		return nil, fmt.Errorf("local backend is required")
	}
	if opts.Prefs == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	if opts.Logger == nil {
		opts.Logger = NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = TimestampIDGenerator{Clock: opts.Clock}
	}

	supported := opts.Picker != nil && opts.OpenDurable != nil
	if supported && opts.Supported != nil {
		supported = opts.Supported()
	}

	sel := &selector{
		supported: supported,
		local:     opts.Local,
		open:      opts.OpenDurable,
		picker:    opts.Picker,
		prefs:     opts.Prefs,
		logger:    opts.Logger,
	}

	return &Engine{
		sel:      sel,
		migrator: &migrator{logger: opts.Logger},
		logger:   opts.Logger,
		clock:    opts.Clock,
		ids:      opts.IDs,
		history:  newSubject[[]*Item](nil),
		info:     newSubject(BoundedInfo(nil, opts.Local.Ceiling())),
		folder:   newSubject(sel.folderState()),
		prompt:   newSubject[*ReconnectionPrompt](nil),
	}, nil
}

// Start restores the previous session. When a folder was enabled before,
// the engine waits for ResolveReconnectionPrompt instead of loading history.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel.mode != ModeUnconfigured {
		return fmt.Errorf("engine already started")
	}

	if e.sel.start(ctx) {
		e.prompt.publish(e.sel.prompt)
		e.commit(ctx, nil)
		return nil
	}

	return e.reloadLocked(ctx)
}

// Mode returns the current backend selection. It does not take the
// mutation lock and is safe to call from a subscriber.
func (e *Engine) Mode() Mode {
	return Mode(e.sel.current.Load())
}

// GetHistory returns the cached items, newest first.
func (e *Engine) GetHistory() []*Item {
	return slices.Clone(e.history.get())
}

// GetStorageInfo returns the latest capacity snapshot.
func (e *Engine) GetStorageInfo() StorageInfo {
	return e.info.get()
}

// FolderState returns the latest durable backend state.
func (e *Engine) FolderState() FolderState {
	return e.folder.get()
}

// ReconnectionPrompt returns the pending prompt, or nil.
func (e *Engine) ReconnectionPrompt() *ReconnectionPrompt {
	return e.prompt.get()
}

// IsStorageNearFull reports more than 80% use of the bounded backend.
func (e *Engine) IsStorageNearFull() bool {
	return e.GetStorageInfo().NearFull()
}

// IsStorageCritical reports more than 90% use of the bounded backend.
func (e *Engine) IsStorageCritical() bool {
	return e.GetStorageInfo().Critical()
}

// OnHistory subscribes to history changes.
func (e *Engine) OnHistory(fn func([]*Item)) (cancel func()) {
	return e.history.subscribe(func(items []*Item) { fn(slices.Clone(items)) })
}

// OnStorageInfo subscribes to capacity changes.
func (e *Engine) OnStorageInfo(fn func(StorageInfo)) (cancel func()) {
	return e.info.subscribe(fn)
}

// OnFolderState subscribes to durable backend state changes.
func (e *Engine) OnFolderState(fn func(FolderState)) (cancel func()) {
	return e.folder.subscribe(fn)
}

// OnReconnectionPrompt subscribes to the reconnection prompt. A nil value
// means no prompt is pending.
func (e *Engine) OnReconnectionPrompt(fn func(*ReconnectionPrompt)) (cancel func()) {
	return e.prompt.subscribe(fn)
}

// ItemsToBeRemoved previews the items an addition of size bytes would
// evict. It is always empty under the durable backend.
// It reads only published state and is safe to call from a subscriber.
func (e *Engine) ItemsToBeRemoved(size int64) []*Item {
	if e.Mode() != ModeLocal {
		return nil
	}
	_, evicted, err := e.sel.local.Reserve(e.history.get(), size)
	if err != nil {
		return nil
	}
	return evicted
}

// AddToHistory records a completed synthesis. Under the bounded backend
// the oldest items are evicted to make room. Credentials are stripped
// from settings before anything is persisted.
func (e *Engine) AddToHistory(ctx context.Context, text string, settings Settings, result ProviderResult, md *Metadata) AddResult {
	if len(result.Audio) == 0 {
		return AddResult{Error: "no audio data to store"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	backend := e.sel.active()
	if backend == nil {
		return AddResult{Error: e.inactiveError().Error()}
	}

	item := e.newItem(text, settings, result, md)
	current := e.history.get()

	var warnings []string
	kept := current
	var removed []*Item

	if e.sel.mode == ModeLocal {
		ceiling := e.sel.local.Ceiling()
		var err error
		kept, removed, err = e.sel.local.Reserve(current, item.SizeBytes)
		if err != nil {
			if errors.Is(err, ErrItemTooLarge) {
				return AddResult{
					Warnings: []string{fmt.Sprintf("Item too large (%s). Maximum allowed is %s.",
						humanize.IBytes(uint64(item.SizeBytes)), humanize.IBytes(uint64(ceiling)))},
					Error: err.Error(),
				}
			}
			return AddResult{Error: err.Error()}
		}

		projected := float64(UsedBytes(current)+item.SizeBytes) / float64(ceiling)
		switch {
		case projected > CriticalThreshold:
			warnings = append(warnings, fmt.Sprintf("Storage critically full (%.1f%%). Consider removing old items.", projected*100))
		case projected > NearFullThreshold:
			warnings = append(warnings, fmt.Sprintf("Storage %.1f%% full. Approaching limit.", projected*100))
		}
		if len(removed) > 0 {
			warnings = append(warnings, fmt.Sprintf("Removed %d old item(s) to make space.", len(removed)))
			e.logger.Info("evicted history items", "count", len(removed), "freed", humanize.IBytes(uint64(UsedBytes(removed))))
		}
	}

	next := make([]*Item, 0, len(kept)+1)
	next = append(next, item)
	next = append(next, kept...)

	if err := backend.Save(ctx, next); err != nil {
		e.logger.Error("failed to save history", "error", err, "mode", e.sel.mode.String())
		return AddResult{Warnings: []string{"Failed to save history"}, Error: err.Error()}
	}

	e.commit(ctx, next)
	e.logger.Debug("history item added", "id", item.ID, "size", item.SizeBytes)
	return AddResult{Success: true, Item: item, Warnings: warnings, Removed: removed}
}

func (e *Engine) newItem(text string, settings Settings, result ProviderResult, md *Metadata) *Item {
	status := result.Status
	if status == "" {
		status = StatusCompleted
	}

	var meta *Metadata
	if md != nil {
		c := *md
		c.Tags = slices.Clone(md.Tags)
		meta = &c
	}
	if result.Duration > 0 {
		if meta == nil {
			meta = &Metadata{}
		}
		if meta.Duration == 0 {
			meta.Duration = result.Duration
		}
	}

	return &Item{
		ID:        e.ids.New(),
		QueryID:   result.QueryID,
		Text:      text,
		Settings:  settings.Sanitized(),
		Status:    status,
		Audio:     slices.Clone(result.Audio),
		CreatedAt: e.clock.Now(),
		SizeBytes: int64(len(result.Audio)),
		Metadata:  meta,
	}
}

// RemoveFromHistory deletes one item from the active backend. It returns
// false for an unknown id.
func (e *Engine) RemoveFromHistory(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	backend := e.sel.active()
	if backend == nil {
		return false
	}

	current := e.history.get()
	idx := slices.IndexFunc(current, func(it *Item) bool { return it.ID == id })
	if idx < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)

	if err := backend.Delete(ctx, id); err != nil {
		e.logger.Error("failed to remove item from history", "id", id, "error", err)
		return false
	}
	if err := backend.Save(ctx, next); err != nil {
		e.logger.Error("failed to rewrite history after removal", "id", id, "error", err)
		return false
	}

	e.commit(ctx, next)
	return true
}

// ClearHistory wipes the active backend.
func (e *Engine) ClearHistory(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	backend := e.sel.active()
	if backend == nil {
		return false
	}
	if err := backend.Clear(ctx); err != nil {
		e.logger.Error("failed to clear history", "error", err)
		return false
	}
	e.commit(ctx, nil)
	return true
}

// Refresh reloads the cache from the active backend, picking up changes
// made outside the engine.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel.active() == nil {
		return e.inactiveError()
	}
	return e.reloadLocked(ctx)
}

// EnableDurableStorage asks for a directory grant and switches to it.
// A fresh grant of an empty directory receives the local history.
func (e *Engine) EnableDurableStorage(ctx context.Context, isReconnection bool) EnableResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enableLocked(ctx, isReconnection)
}

func (e *Engine) enableLocked(ctx context.Context, reconnection bool) EnableResult {
	store, err := e.sel.grant(ctx, reconnection)
	if err != nil {
		res := EnableResult{Error: grantMessage(err)}
		if errors.Is(err, ErrPickerCancelled) {
			res.Cancelled = true
			e.logger.Info("folder selection cancelled")
		} else {
			e.logger.Error("failed to enable file system storage", "error", err)
		}
		if e.sel.mode != ModeAwaitingDecision {
			if rerr := e.reloadLocked(ctx); rerr != nil {
				e.logger.Error("failed to reload history", "error", rerr)
			}
		}
		return res
	}

	items, err := store.Load(ctx)
	if err != nil {
		e.logger.Error("failed to read folder history", "folder", store.Location(), "error", err)
		return EnableResult{Error: fmt.Sprintf("Failed to read history from folder: %v", err)}
	}

	e.sel.activateDurable(ctx, store)
	if e.prompt.get() != nil {
		e.prompt.publish(nil)
	}
	res := EnableResult{Success: true}

	if !reconnection && len(items) == 0 {
		e.logger.Info("new empty folder selected, migrating local history", "folder", store.Location())
		migrated, err := e.migrator.localToDurable(ctx, e.sel.local, store)
		if err != nil {
			e.logger.Error("failed to migrate local history", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("Local history was not migrated: %v", err))
		} else {
			items = migrated
			res.Migrated = len(migrated)
		}
	}

	e.commit(ctx, items)
	e.logger.Info("file system storage enabled", "folder", store.Location(), "items", len(items))
	return res
}

// grantMessage maps grant failures to user-facing text.
func grantMessage(err error) string {
	switch {
	case errors.Is(err, ErrPickerCancelled):
		return "Folder selection was cancelled"
	case errors.Is(err, ErrNotWritable):
		return "Write permission denied for selected folder. Please choose a folder you have write access to."
	case errors.Is(err, ErrPermissionDenied):
		return "Permission denied to access file system"
	case errors.Is(err, ErrSecurity):
		return "Security restrictions prevent file system access"
	case errors.Is(err, ErrUnsupported):
		return "File system access is not supported on this platform"
	default:
		return err.Error()
	}
}

// DisableDurableStorage reverts to the local backend. The directory's
// files are left on disk.
func (e *Engine) DisableDurableStorage(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel.mode == ModeAwaitingDecision {
		e.sel.takePrompt()
		e.prompt.publish(nil)
	}
	e.sel.activateLocal(ctx)
	if err := e.reloadLocked(ctx); err != nil {
		e.logger.Error("failed to disable file system storage", "error", err)
		return false
	}
	return true
}

// ResolveReconnectionPrompt consumes the pending prompt. Accepting re-runs
// the grant for the previous folder; declining, or any failure, clears the
// persisted hint and falls back to the local backend.
func (e *Engine) ResolveReconnectionPrompt(ctx context.Context, accept bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel.takePrompt() == nil {
		return
	}
	e.prompt.publish(nil)

	if accept {
		res := e.enableLocked(ctx, true)
		if res.Success {
			return
		}
		e.logger.Warn("failed to reconnect to previous folder, falling back to local storage", "reason", res.Error)
	} else {
		e.logger.Info("folder reconnection declined")
	}

	e.sel.activateLocal(ctx)
	if err := e.reloadLocked(ctx); err != nil {
		e.logger.Error("failed to load local history", "error", err)
	}
}

// MigrateDurableToLocal copies the folder history into the bounded store,
// evicting the oldest items beyond its ceiling, and switches to it. The
// folder's files are kept.
func (e *Engine) MigrateDurableToLocal(ctx context.Context) MigrationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sel.mode != ModeDurable {
		return MigrationResult{Error: "file system storage is not active"}
	}

	kept, evicted, err := e.migrator.durableToLocal(ctx, e.sel.durable, e.sel.local)
	if err != nil {
		e.logger.Error("migration to local storage failed", "error", err)
		return MigrationResult{Error: err.Error()}
	}

	e.sel.activateLocal(ctx)
	e.commit(ctx, kept)
	return MigrationResult{Success: true, Copied: len(kept), Evicted: evicted}
}

func (e *Engine) inactiveError() error {
	if e.sel.mode == ModeAwaitingDecision {
		return ErrAwaitingDecision
	}
	return fmt.Errorf("history engine not started")
}

// reloadLocked replaces the cache with the active backend's contents. A
// failed read leaves an empty history.
func (e *Engine) reloadLocked(ctx context.Context) error {
	backend := e.sel.active()
	if backend == nil {
		e.commit(ctx, nil)
		return nil
	}

	items, err := backend.Load(ctx)
	if err != nil {
		e.commit(ctx, nil)
		return fmt.Errorf("loading %s history: %w", e.sel.mode, err)
	}
	e.commit(ctx, items)
	e.logger.Debug("history loaded", "mode", e.sel.mode.String(), "count", len(items))
	return nil
}

// commit publishes a new item set together with its derived state.
func (e *Engine) commit(ctx context.Context, items []*Item) {
	e.history.publish(items)
	e.info.publish(e.computeInfo(ctx, items))
	e.folder.publish(e.sel.folderState())
}

func (e *Engine) computeInfo(ctx context.Context, items []*Item) StorageInfo {
	if e.sel.mode != ModeDurable {
		return BoundedInfo(items, e.sel.local.Ceiling())
	}

	info := StorageInfo{
		UsedBytes:      UsedBytes(items),
		AvailableBytes: Unlimited,
		TotalBytes:     Unlimited,
		ItemCount:      len(items),
	}
	if q, err := e.sel.durable.Estimate(ctx); err == nil {
		info.TotalBytes = q.TotalBytes
		info.AvailableBytes = q.FreeBytes
	}
	return info
}
