package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"ttshist/internal/config"
	"ttshist/internal/dirstore"
	"ttshist/internal/folder"
	"ttshist/internal/history"
	"ttshist/internal/kv"
	"ttshist/internal/localstore"
)

// WatchDebounce is how long the folder watcher waits for a burst of
// changes to settle before reloading.
const WatchDebounce = 500 * time.Millisecond

// ReconnectMode selects how a pending reconnection prompt is answered.
type ReconnectMode string

const (
	ReconnectAsk ReconnectMode = "ask"
	ReconnectYes ReconnectMode = "yes"
	ReconnectNo  ReconnectMode = "no"
)

// ParseReconnectMode validates a --reconnect flag value.
func ParseReconnectMode(s string) (ReconnectMode, error) {
	switch m := ReconnectMode(s); m {
	case ReconnectAsk, ReconnectYes, ReconnectNo:
		return m, nil
	default:
		return "", fmt.Errorf("invalid reconnect mode %q: want ask, yes or no", s)
	}
}

// ErrDecisionRequired is returned when a reconnection prompt is pending and
// no answer can be obtained.
var ErrDecisionRequired = errors.New("a history folder from a previous session is awaiting reconnection: rerun with --reconnect=yes or --reconnect=no")

// Terminal describes the interactive session the app runs in.
type Terminal struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool
}

// HistoryApp is the application layer between the CLI and the history
// engine. It constructs all dependencies from config, exposes high-level
// operations and manages the store lifecycle on Close.
type HistoryApp struct {
	store   kv.Store
	engine  *history.Engine
	picker  *overridePicker
	prompt  *folder.PromptPicker
	ask     bool
	logger  history.Logger
	clock   history.Clock
	op      *Operation
	logFile *os.File
}

// NewHistoryApp creates a fully wired HistoryApp from the given config,
// attached to the process's standard streams.
// operation identifies the CLI command being run (e.g. "List", "EnableFolder").
// The caller must call Close when done.
func NewHistoryApp(cfg *config.Config, operation string) (*HistoryApp, error) {
	return newHistoryApp(cfg, operation, Terminal{
		In:          os.Stdin,
		Out:         os.Stderr,
		Interactive: folder.IsTerminal(os.Stdin),
	})
}

func newHistoryApp(cfg *config.Config, operation string, term Terminal) (*HistoryApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := history.RealClock{}
	op := NewOperation(operation, "", clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.Log.ConsoleLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := kv.NewStoreFromConfig(cfg.Store, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	a := &HistoryApp{
		store:   store,
		logger:  logger,
		clock:   clock,
		op:      op,
		logFile: logFile,
	}

	var base history.DirectoryPicker
	supported := true
	switch cfg.Folder.Picker {
	case "prompt":
		a.prompt = folder.NewPromptPicker(term.In, term.Out)
		a.ask = term.Interactive
		base = a.prompt
	case "static":
		base = folder.StaticPicker{Path: cfg.Folder.Path}
	case "none":
		supported = false
	}
	a.picker = &overridePicker{base: base}

	engine, err := history.NewEngine(history.Options{
		Local:       localstore.New(store, cfg.History.MaxSize, logger),
		OpenDurable: dirstore.Opener(logger),
		Picker:      a.picker,
		Prefs:       store,
		Supported:   func() bool { return supported },
		Logger:      logger,
		Clock:       clock,
	})
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.engine = engine

	op.logStart(logger)
	if err := engine.Start(context.Background()); err != nil {
		op.Fail()
		a.Close()
		return nil, fmt.Errorf("starting history: %w", err)
	}

	return a, nil
}

// SetParameters records the operation's arguments for the log.
func (a *HistoryApp) SetParameters(params string) {
	a.op.Parameters = params
}

// Fail marks the current operation as failed.
func (a *HistoryApp) Fail() {
	a.op.Fail()
}

// ResolveReconnection answers a pending reconnection prompt according to
// mode. With ReconnectAsk the user is asked on an interactive prompt
// picker; otherwise ErrDecisionRequired is returned.
func (a *HistoryApp) ResolveReconnection(ctx context.Context, mode ReconnectMode) error {
	p := a.engine.ReconnectionPrompt()
	if p == nil {
		return nil
	}

	var accept bool
	switch mode {
	case ReconnectYes:
		accept = true
	case ReconnectNo:
		accept = false
	default:
		if !a.ask {
			return ErrDecisionRequired
		}
		ok, err := a.prompt.Confirm(fmt.Sprintf("History folder %s was enabled in a previous session. Reconnect?", p.PreviousPath))
		if err != nil {
			if errors.Is(err, history.ErrPickerCancelled) {
				return ErrDecisionRequired
			}
			return err
		}
		accept = ok
	}

	a.engine.ResolveReconnectionPrompt(ctx, accept)
	return nil
}

// List returns the current history, newest first.
func (a *HistoryApp) List() ([]*history.Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.engine.GetHistory(), nil
}

// Add stores audioPath's contents as a new history entry for text.
func (a *HistoryApp) Add(ctx context.Context, text string, settings history.Settings, audioPath string, md *history.Metadata) (history.AddResult, error) {
	if err := a.ready(); err != nil {
		return history.AddResult{}, err
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return history.AddResult{}, fmt.Errorf("reading audio: %w", err)
	}
	now := a.clock.Now()
	result := history.ProviderResult{
		Status:    history.StatusCompleted,
		Audio:     audio,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if md != nil {
		result.Duration = md.Duration
	}
	return a.engine.AddToHistory(ctx, text, settings, result, md), nil
}

// Preview returns the items an addition of size bytes would evict.
func (a *HistoryApp) Preview(size int64) []*history.Item {
	return a.engine.ItemsToBeRemoved(size)
}

// Remove deletes one entry by id.
func (a *HistoryApp) Remove(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if !a.engine.RemoveFromHistory(ctx, id) {
		return fmt.Errorf("no history entry with id %s", id)
	}
	return nil
}

// Clear deletes every entry from the active backend.
func (a *HistoryApp) Clear(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	if !a.engine.ClearHistory(ctx) {
		return fmt.Errorf("clearing history failed")
	}
	return nil
}

// Info returns the capacity snapshot and the folder state.
func (a *HistoryApp) Info() (history.StorageInfo, history.FolderState, history.Mode) {
	return a.engine.GetStorageInfo(), a.engine.FolderState(), a.engine.Mode()
}

// Export writes an entry's audio to outPath.
func (a *HistoryApp) Export(id, outPath string) error {
	if err := a.ready(); err != nil {
		return err
	}
	items := a.engine.GetHistory()
	i := slices.IndexFunc(items, func(it *history.Item) bool { return it.ID == id })
	if i < 0 {
		return fmt.Errorf("no history entry with id %s", id)
	}
	if !items[i].HasAudio() {
		return fmt.Errorf("history entry %s has no audio", id)
	}
	if err := os.WriteFile(outPath, items[i].Audio, 0644); err != nil {
		return fmt.Errorf("writing audio: %w", err)
	}
	return nil
}

// EnableFolder switches to durable storage. A non-empty path bypasses the
// configured picker.
func (a *HistoryApp) EnableFolder(ctx context.Context, path string) history.EnableResult {
	a.picker.path = path
	defer func() { a.picker.path = "" }()
	return a.engine.EnableDurableStorage(ctx, false)
}

// DisableFolder reverts to the bounded local store.
func (a *HistoryApp) DisableFolder(ctx context.Context) error {
	if !a.engine.DisableDurableStorage(ctx) {
		return fmt.Errorf("disabling folder storage failed")
	}
	return nil
}

// MigrateToLocal copies the folder history into the bounded store and
// switches to it.
func (a *HistoryApp) MigrateToLocal(ctx context.Context) history.MigrationResult {
	return a.engine.MigrateDurableToLocal(ctx)
}

// Watch reloads history whenever history files in the active folder change
// until ctx is done. onReload receives each reloaded history.
func (a *HistoryApp) Watch(ctx context.Context, onReload func([]*history.Item)) error {
	st := a.engine.FolderState()
	if !st.Enabled {
		return fmt.Errorf("folder storage is not enabled")
	}

	if onReload != nil {
		first := true
		cancel := a.engine.OnHistory(func(items []*history.Item) {
			if first {
				first = false
				return
			}
			onReload(items)
		})
		defer cancel()
	}

	return folder.Watch(ctx, st.SelectedPath, dirstore.IsHistoryFile, WatchDebounce, a.logger, func() {
		if err := a.engine.Refresh(ctx); err != nil {
			a.logger.Error("failed to reload history", "error", err)
		}
	})
}

func (a *HistoryApp) ready() error {
	if a.engine.Mode() == history.ModeAwaitingDecision {
		return ErrDecisionRequired
	}
	return nil
}

// Close finishes the operation log entry and closes all resources.
func (a *HistoryApp) Close() error {
	a.op.logFinish(a.logger, a.clock.Now())
	return a.closeResources()
}

func (a *HistoryApp) closeResources() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// overridePicker grants a fixed path when one is set and defers to the
// configured picker otherwise.
type overridePicker struct {
	base history.DirectoryPicker
	path string
}

func (p *overridePicker) Pick(ctx context.Context, opts history.PickOptions) (history.Directory, error) {
	if p.path != "" {
		return folder.StaticPicker{Path: p.path}.Pick(ctx, opts)
	}
	if p.base == nil {
		return nil, history.ErrUnsupported
	}
	return p.base.Pick(ctx, opts)
}
