package dirstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"ttshist/internal/history"
)

const (
	// IndexFile holds metadata for every item, newest first.
	IndexFile = "history-metadata.json"

	// ProbeFile is written and removed to verify write access.
	ProbeFile = "tts-permission-test.tmp"

	// AudioExt is appended to an item id to name its binary file.
	AudioExt = ".mp3"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store is the durable history backend. It keeps a JSON metadata index plus
// one binary file per item in a granted directory:
//
//	<dir>/
//	  history-metadata.json
//	  <id>.mp3
//
// Store is not safe for concurrent use; the engine serializes access.
type Store struct {
	dir    history.Directory
	logger history.Logger
}

var _ history.DurableBackend = (*Store)(nil)

// New wraps a granted directory.
func New(dir history.Directory, logger history.Logger) *Store {
	if logger == nil {
		logger = history.NewNopLogger()
	}
	return &Store{dir: dir, logger: logger}
}

// Opener returns a DurableOpener producing stores that log to logger.
func Opener(logger history.Logger) history.DurableOpener {
	return func(dir history.Directory) history.DurableBackend {
		return New(dir, logger)
	}
}

// AudioFile returns the binary file name for id.
func AudioFile(id string) string {
	return id + AudioExt
}

// Location returns the directory's display name.
func (s *Store) Location() string {
	return s.dir.Name()
}

// Probe writes and removes a small file to confirm the directory is writable.
func (s *Store) Probe(ctx context.Context) error {
	if err := s.dir.WriteFile(ctx, ProbeFile, []byte("test")); err != nil {
		return fmt.Errorf("%w: %w", history.ErrNotWritable, err)
	}
	if err := s.dir.Remove(ctx, ProbeFile); err != nil {
		return fmt.Errorf("%w: removing probe file: %w", history.ErrNotWritable, err)
	}
	return nil
}

// Estimate reports real capacity figures when the directory can provide them.
func (s *Store) Estimate(ctx context.Context) (history.Quota, error) {
	if q, ok := s.dir.(history.QuotaEstimator); ok {
		return q.Estimate(ctx)
	}
	return history.Quota{}, history.ErrUnsupported
}

// Load reads the index and each item's binary. A missing or corrupt index
// yields an empty history. Entries that fail validation and items whose
// binary cannot be read are skipped; a missing binary yields the item
// without audio.
func (s *Store) Load(ctx context.Context) ([]*history.Item, error) {
	data, err := s.dir.ReadFile(ctx, IndexFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", IndexFile, err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		s.logger.Warn("ignoring corrupt history index", "folder", s.Location(), "error", err)
		return nil, nil
	}

	items := make([]*history.Item, 0, len(raws))
	for i, raw := range raws {
		if err := validateEntry(raw); err != nil {
			s.logger.Warn("skipping invalid index entry", "index", i, "error", err)
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.logger.Warn("skipping invalid index entry", "index", i, "error", err)
			continue
		}
		it, err := e.item()
		if err != nil {
			s.logger.Warn("skipping invalid index entry", "index", i, "id", e.ID, "error", err)
			continue
		}

		audio, err := s.dir.ReadFile(ctx, AudioFile(it.ID))
		switch {
		case err == nil:
			it.Audio = audio
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("audio file missing", "id", it.ID)
		default:
			s.logger.Error("failed to read audio file, skipping item", "id", it.ID, "error", err)
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Save writes every item's binary, replacing any existing file, and then
// rewrites the index. A binary write failure aborts before the index is
// touched.
func (s *Store) Save(ctx context.Context, items []*history.Item) error {
	entries := make([]entry, 0, len(items))
	for _, it := range items {
		if !validID.MatchString(it.ID) {
			return fmt.Errorf("item id %q is not a valid file name", it.ID)
		}
		if it.HasAudio() {
			if err := s.dir.WriteFile(ctx, AudioFile(it.ID), it.Audio); err != nil {
				return fmt.Errorf("writing audio for %s: %w", it.ID, err)
			}
		}
		entries = append(entries, newEntry(it))
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := s.dir.WriteFile(ctx, IndexFile, data); err != nil {
		return fmt.Errorf("writing %s: %w", IndexFile, err)
	}
	return nil
}

// Delete removes the binary for id. A binary that is already gone is fine.
func (s *Store) Delete(ctx context.Context, id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("item id %q is not a valid file name", id)
	}
	if err := s.dir.Remove(ctx, AudioFile(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing audio for %s: %w", id, err)
	}
	return nil
}

// Clear removes the index, every item binary and any probe leftover. Other
// files in the directory are left alone.
func (s *Store) Clear(ctx context.Context) error {
	names, err := s.dir.List(ctx)
	if err != nil {
		return fmt.Errorf("listing folder: %w", err)
	}

	var errs []error
	for _, n := range names {
		if !s.owns(n) {
			continue
		}
		if err := s.dir.Remove(ctx, n); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// IsHistoryFile reports whether name is one of the files the store manages.
func IsHistoryFile(name string) bool {
	if name == IndexFile {
		return true
	}
	stem, ok := strings.CutSuffix(name, AudioExt)
	return ok && validID.MatchString(stem)
}

func (s *Store) owns(name string) bool {
	return name == ProbeFile || IsHistoryFile(name)
}

// entry is the persisted shape of an item in the index.
type entry struct {
	ID        string            `json:"id"`
	QueryID   string            `json:"queryId"`
	Text      string            `json:"text"`
	Settings  history.Settings  `json:"settings"`
	CreatedAt string            `json:"createdAt"`
	SizeBytes int64             `json:"sizeBytes"`
	Status    history.Status    `json:"status"`
	Metadata  *history.Metadata `json:"metadata,omitempty"`
}

func newEntry(it *history.Item) entry {
	return entry{
		ID:        it.ID,
		QueryID:   it.QueryID,
		Text:      it.Text,
		Settings:  it.Settings.Sanitized(),
		CreatedAt: it.CreatedAt.UTC().Format(time.RFC3339Nano),
		SizeBytes: it.SizeBytes,
		Status:    it.Status,
		Metadata:  it.Metadata,
	}
}

func (e entry) item() (*history.Item, error) {
	created, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing createdAt: %w", err)
	}
	return &history.Item{
		ID:        e.ID,
		QueryID:   e.QueryID,
		Text:      e.Text,
		Settings:  e.Settings,
		Status:    e.Status,
		CreatedAt: created,
		SizeBytes: e.SizeBytes,
		Metadata:  e.Metadata,
	}, nil
}
