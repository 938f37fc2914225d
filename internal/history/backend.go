package history

import "context"

// Backend is the storage capability shared by both history backends.
// Items are exchanged newest-first.
type Backend interface {
	// Load returns every stored item. An absent or corrupt store yields an
	// empty slice; only I/O failures of the underlying primitive are errors.
	Load(ctx context.Context) ([]*Item, error)

	// Save replaces the stored item set with items.
	Save(ctx context.Context, items []*Item) error

	// Delete drops per-item storage for id. The caller rewrites the
	// collection with Save afterwards.
	Delete(ctx context.Context, id string) error

	// Clear removes everything this backend owns.
	Clear(ctx context.Context) error
}

// BoundedBackend is a Backend with a hard byte ceiling.
type BoundedBackend interface {
	Backend

	// Ceiling returns the maximum total SizeBytes the backend holds.
	Ceiling() int64

	// Reserve computes which items must be evicted, oldest first, so that
	// an incoming item of the given size fits under the ceiling. It does
	// not write. An incoming size above the ceiling fails with
	// ErrItemTooLarge before anything is evicted.
	Reserve(items []*Item, incoming int64) (kept, evicted []*Item, err error)
}

// Quota is a platform storage estimate.
type Quota struct {
	TotalBytes int64
	FreeBytes  int64
}

// DurableBackend is a Backend stored in a user-granted directory.
type DurableBackend interface {
	Backend

	// Probe verifies the directory accepts writes. It wraps ErrNotWritable
	// on failure.
	Probe(ctx context.Context) error

	// Location returns the display name of the granted directory.
	Location() string

	// Estimate queries the platform for real capacity figures. It returns
	// ErrUnsupported when the platform cannot tell.
	Estimate(ctx context.Context) (Quota, error)
}

// DurableOpener wraps a freshly granted directory in a DurableBackend.
type DurableOpener func(dir Directory) DurableBackend

// KeyValueStore is the small quota-limited key/value primitive behind the
// bounded backend and the persisted folder hint.
type KeyValueStore interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key in a single step.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Directory is a granted directory handle. Names are plain file names,
// never paths. Missing files are reported with fs.ErrNotExist.
type Directory interface {
	Name() string
	ReadFile(ctx context.Context, name string) ([]byte, error)
	// WriteFile creates or replaces name; readers never observe a partial file.
	WriteFile(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	// List returns the names of regular files in the directory.
	List(ctx context.Context) ([]string, error)
}

// QuotaEstimator is implemented by directories that can report capacity.
type QuotaEstimator interface {
	Estimate(ctx context.Context) (Quota, error)
}

// PickOptions tune a directory picker invocation.
type PickOptions struct {
	// Hint is the display name of a previously granted directory.
	Hint string
	// Reconnection is set when re-granting a directory lost across sessions.
	Reconnection bool
}

// DirectoryPicker asks the user for a directory grant. A dismissed picker
// returns ErrPickerCancelled.
type DirectoryPicker interface {
	Pick(ctx context.Context, opts PickOptions) (Directory, error)
}
