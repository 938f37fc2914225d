package history

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Status mirrors the lifecycle of a provider synthesis result.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Settings is the provider/model/voice selection used for a synthesis.
type Settings struct {
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Voice    string            `json:"voice"`
	APIKey   string            `json:"apiKey,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// credentialMarkers are matched against normalized option keys.
var credentialMarkers = []string{
	"apikey", "secret", "token", "password", "credential", "accesskey", "subscriptionkey",
}

// Sanitized returns a copy of s with all credential material removed.
func (s Settings) Sanitized() Settings {
	out := s
	out.APIKey = ""
	out.Options = nil
	for k, v := range s.Options {
		if isCredentialKey(k) {
			continue
		}
		if out.Options == nil {
			out.Options = make(map[string]string, len(s.Options))
		}
		out.Options[k] = v
	}
	return out
}

func isCredentialKey(key string) bool {
	norm := strings.NewReplacer("_", "", "-", "", ".", "").Replace(strings.ToLower(key))
	for _, m := range credentialMarkers {
		if strings.Contains(norm, m) {
			return true
		}
	}
	return false
}

// Metadata holds optional free-form annotations for an item.
type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Duration float64  `json:"duration,omitempty"` // seconds
}

// Item is one durable record of a synthesis result.
//
// Items handed out by the Engine are shared snapshots and must be treated
// as read-only.
type Item struct {
	ID        string
	QueryID   string
	Text      string
	Settings  Settings
	Status    Status
	Audio     []byte // nil when absent
	CreatedAt time.Time
	SizeBytes int64
	Metadata  *Metadata
}

// HasAudio reports whether the item currently carries its audio payload.
func (it *Item) HasAudio() bool {
	return len(it.Audio) > 0
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	c.Audio = slices.Clone(it.Audio)
	c.Settings.Options = maps.Clone(it.Settings.Options)
	if it.Metadata != nil {
		md := *it.Metadata
		md.Tags = slices.Clone(it.Metadata.Tags)
		c.Metadata = &md
	}
	return &c
}

// ProviderResult is the shape produced by the TTS provider clients.
type ProviderResult struct {
	QueryID   string
	Status    Status
	Audio     []byte
	Duration  float64 // seconds, zero when unknown
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsedBytes returns the sum of SizeBytes over items.
func UsedBytes(items []*Item) int64 {
	var total int64
	for _, it := range items {
		total += it.SizeBytes
	}
	return total
}

// Unlimited marks a capacity figure the engine does not bound.
const Unlimited int64 = -1

const (
	NearFullThreshold = 0.8
	CriticalThreshold = 0.9
)

// StorageInfo is a capacity snapshot derived from the current item set.
// It is recomputed after every mutation and never persisted.
type StorageInfo struct {
	UsedBytes      int64
	AvailableBytes int64 // Unlimited when unknown
	TotalBytes     int64 // Unlimited when unknown
	UsedFraction   float64
	ItemCount      int
	Bounded        bool
}

// NearFull reports more than 80% of a bounded store in use.
func (i StorageInfo) NearFull() bool {
	return i.Bounded && i.UsedFraction > NearFullThreshold
}

// Critical reports more than 90% of a bounded store in use.
func (i StorageInfo) Critical() bool {
	return i.Bounded && i.UsedFraction > CriticalThreshold
}

// BoundedInfo computes the snapshot for a store with a hard ceiling.
// AvailableBytes is zero when usage exceeds a lowered ceiling.
func BoundedInfo(items []*Item, ceiling int64) StorageInfo {
	used := UsedBytes(items)
	info := StorageInfo{
		UsedBytes:      used,
		TotalBytes:     ceiling,
		AvailableBytes: max(ceiling-used, 0),
		ItemCount:      len(items),
		Bounded:        true,
	}
	if ceiling > 0 {
		info.UsedFraction = float64(used) / float64(ceiling)
	}
	return info
}

// FolderState describes the durable backend as seen by collaborators.
// The directory itself is never exposed.
type FolderState struct {
	Supported    bool
	Enabled      bool
	SelectedPath string
}

// ReconnectionPrompt asks the user whether to re-grant a folder that was
// enabled in a previous session.
type ReconnectionPrompt struct {
	PreviousPath string
}
