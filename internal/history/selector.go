package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

// Mode identifies which backend the engine routes reads and writes to.
type Mode int

const (
	ModeUnconfigured Mode = iota
	ModeLocal
	ModeDurable
	ModeAwaitingDecision
)

func (m Mode) String() string {
	switch m {
	case ModeUnconfigured:
		return "unconfigured"
	case ModeLocal:
		return "local"
	case ModeDurable:
		return "durable"
	case ModeAwaitingDecision:
		return "awaiting-reconnection"
	default:
		return "unknown"
	}
}

// FolderStateKey is the key/value entry holding the reconnection hint.
const FolderStateKey = "tts-folder-state"

// folderHint is the persisted half of FolderState. Directory handles are
// scoped to one session, so only the display name survives.
type folderHint struct {
	WasEnabled   bool   `json:"wasEnabled"`
	SelectedPath string `json:"selectedPath"`
}

// selector is the single source of truth for the active backend. It also
// owns the persisted folder hint and the pending reconnection prompt.
// Callers serialize access through the engine's mutation lock, except for
// current, which may be read at any time.
type selector struct {
	mode      Mode
	current   atomic.Int32
	supported bool
	local     BoundedBackend
	durable   DurableBackend
	open      DurableOpener
	picker    DirectoryPicker
	prefs     KeyValueStore
	prompt    *ReconnectionPrompt
	logger    Logger
}

func (s *selector) setMode(m Mode) {
	s.mode = m
	s.current.Store(int32(m))
}

// active returns the backend to query, or nil when none is selected.
func (s *selector) active() Backend {
	switch s.mode {
	case ModeLocal:
		return s.local
	case ModeDurable:
		return s.durable
	default:
		return nil
	}
}

func (s *selector) folderState() FolderState {
	st := FolderState{
		Supported: s.supported,
		Enabled:   s.mode == ModeDurable,
	}
	switch {
	case s.mode == ModeDurable && s.durable != nil:
		st.SelectedPath = s.durable.Location()
	case s.prompt != nil:
		st.SelectedPath = s.prompt.PreviousPath
	}
	return st
}

// start picks the initial state. It reports true when a reconnection
// prompt must be answered before any history is loaded.
func (s *selector) start(ctx context.Context) bool {
	path, ok := s.loadHint(ctx)
	if ok && s.supported {
		s.setMode(ModeAwaitingDecision)
		s.prompt = &ReconnectionPrompt{PreviousPath: path}
		s.logger.Info("previous folder found, awaiting reconnection decision", "path", path)
		return true
	}
	if ok {
		s.logger.Warn("discarding folder hint, durable storage unsupported", "path", path)
		s.clearHint(ctx)
	}
	s.setMode(ModeLocal)
	return false
}

// grant asks the picker for a directory and verifies it accepts writes.
func (s *selector) grant(ctx context.Context, reconnection bool) (DurableBackend, error) {
	if !s.supported || s.picker == nil || s.open == nil {
		return nil, fmt.Errorf("durable storage: %w", ErrUnsupported)
	}

	opts := PickOptions{Reconnection: reconnection}
	if reconnection {
		if path, ok := s.loadHint(ctx); ok {
			opts.Hint = path
			s.logger.Info("suggesting previous folder", "path", path)
		}
	}

	dir, err := s.picker.Pick(ctx, opts)
	if err != nil {
		return nil, err
	}

	store := s.open(dir)
	if err := store.Probe(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *selector) activateDurable(ctx context.Context, store DurableBackend) {
	s.durable = store
	s.setMode(ModeDurable)
	s.prompt = nil
	if err := s.saveHint(ctx, store.Location()); err != nil {
		s.logger.Warn("failed to persist folder hint", "error", err)
	}
}

// activateLocal drops the directory grant and the persisted hint. Files in
// the directory are left untouched.
func (s *selector) activateLocal(ctx context.Context) {
	s.durable = nil
	s.setMode(ModeLocal)
	s.prompt = nil
	s.clearHint(ctx)
}

func (s *selector) takePrompt() *ReconnectionPrompt {
	p := s.prompt
	s.prompt = nil
	return p
}

func (s *selector) loadHint(ctx context.Context) (string, bool) {
	data, err := s.prefs.Get(ctx, FolderStateKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to load previous folder state", "error", err)
		}
		return "", false
	}

	var h folderHint
	if err := json.Unmarshal(data, &h); err != nil {
		s.logger.Warn("ignoring corrupt folder state", "error", err)
		return "", false
	}
	if !h.WasEnabled || h.SelectedPath == "" {
		return "", false
	}
	return h.SelectedPath, true
}

func (s *selector) saveHint(ctx context.Context, path string) error {
	data, err := json.Marshal(folderHint{WasEnabled: true, SelectedPath: path})
	if err != nil {
		return fmt.Errorf("encoding folder state: %w", err)
	}
	if err := s.prefs.Set(ctx, FolderStateKey, data); err != nil {
		return fmt.Errorf("saving folder state: %w", err)
	}
	return nil
}

func (s *selector) clearHint(ctx context.Context) {
	if err := s.prefs.Remove(ctx, FolderStateKey); err != nil {
		s.logger.Error("failed to clear previous folder state", "error", err)
	}
}
