package testutil

import (
	"bytes"
	"testing"
	"time"

	"ttshist/internal/dirstore"
	"ttshist/internal/history"
	"ttshist/internal/kv"
	"ttshist/internal/localstore"
)

// Harness bundles an engine with inspectable in-memory collaborators.
// Start is left to the test so persisted state can be seeded first.
type Harness struct {
	Engine *history.Engine
	KV     *kv.MemoryStore
	Store  *FaultyStore // wraps KV; shared by the bounded backend and the folder hint
	Local  *localstore.Store
	Picker *ScriptedPicker
	Clock  *StubClock
	Logger *RecordingLogger
}

// NewHarness creates an engine with a bounded ceiling of maxSize bytes and
// durable storage supported.
func NewHarness(t *testing.T, maxSize int64) *Harness {
	t.Helper()

	mem := kv.NewMemoryStore(0)
	store := NewFaultyStore(mem)
	logger := NewRecordingLogger()
	local := localstore.New(store, maxSize, logger)
	picker := NewScriptedPicker()
	clock := SteppingClock(time.Second)

	engine, err := history.NewEngine(history.Options{
		Local:       local,
		OpenDurable: dirstore.Opener(logger),
		Picker:      picker,
		Prefs:       store,
		Supported:   func() bool { return true },
		Logger:      logger,
		Clock:       clock,
		IDs:         NewStubIDGenerator(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	return &Harness{
		Engine: engine,
		KV:     mem,
		Store:  store,
		Local:  local,
		Picker: picker,
		Clock:  clock,
		Logger: logger,
	}
}

// Audio returns n bytes of deterministic audio data.
func Audio(n int) []byte {
	return bytes.Repeat([]byte{0xAB}, n)
}

// Result returns a completed provider result carrying n bytes of audio.
func Result(n int) history.ProviderResult {
	return history.ProviderResult{
		QueryID: "query",
		Status:  history.StatusCompleted,
		Audio:   Audio(n),
	}
}

// Settings returns provider settings carrying credentials that must never
// be persisted.
func Settings() history.Settings {
	return history.Settings{
		Provider: "openai",
		Model:    "tts-1",
		Voice:    "alloy",
		APIKey:   "sk-secret",
		Options:  map[string]string{"speed": "1.0", "access_token": "tok"},
	}
}

// NewItem builds an item of size bytes created at the given time.
func NewItem(id string, size int, created time.Time) *history.Item {
	return &history.Item{
		ID:        id,
		QueryID:   "q-" + id,
		Text:      "text " + id,
		Settings:  history.Settings{Provider: "openai", Model: "tts-1", Voice: "alloy"},
		Status:    history.StatusCompleted,
		Audio:     Audio(size),
		CreatedAt: created,
		SizeBytes: int64(size),
	}
}

// IDs returns the ids of items in order.
func IDs(items []*history.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
