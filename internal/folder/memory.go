package folder

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sync"

	"ttshist/internal/history"
)

// Op names a MemoryDirectory operation for fault injection.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpList   Op = "list"
)

// MemoryDirectory is an in-memory Directory for tests. Failures can be
// injected per operation and file name.
// This implementation is safe for concurrent use.
type MemoryDirectory struct {
	name   string
	mu     sync.RWMutex
	files  map[string][]byte
	faults map[fault]error
	quota  *history.Quota
}

type fault struct {
	op   Op
	name string // empty matches every file
}

var (
	_ history.Directory      = (*MemoryDirectory)(nil)
	_ history.QuotaEstimator = (*MemoryDirectory)(nil)
)

// NewMemoryDirectory creates an empty directory with the given display name.
func NewMemoryDirectory(name string) *MemoryDirectory {
	return &MemoryDirectory{
		name:   name,
		files:  make(map[string][]byte),
		faults: make(map[fault]error),
	}
}

// Fail makes op on name return err until cleared. An empty name applies to
// every file.
func (d *MemoryDirectory) Fail(op Op, name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[fault{op, name}] = err
}

// ClearFaults removes all injected failures.
func (d *MemoryDirectory) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.faults)
}

// SetQuota makes Estimate report q.
func (d *MemoryDirectory) SetQuota(q history.Quota) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quota = &q
}

// Files returns a snapshot of the stored files.
func (d *MemoryDirectory) Files() map[string][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]byte, len(d.files))
	for k, v := range d.files {
		out[k] = slices.Clone(v)
	}
	return out
}

func (d *MemoryDirectory) Name() string {
	return d.name
}

func (d *MemoryDirectory) ReadFile(_ context.Context, name string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.faultLocked(OpRead, name); err != nil {
		return nil, err
	}
	data, ok := d.files[name]
	if !ok {
		return nil, fmt.Errorf("reading %s: %w", name, fs.ErrNotExist)
	}
	return slices.Clone(data), nil
}

func (d *MemoryDirectory) WriteFile(_ context.Context, name string, data []byte) error {
	if err := ValidName(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.faultLocked(OpWrite, name); err != nil {
		return err
	}
	d.files[name] = slices.Clone(data)
	return nil
}

func (d *MemoryDirectory) Remove(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.faultLocked(OpRemove, name); err != nil {
		return err
	}
	if _, ok := d.files[name]; !ok {
		return fmt.Errorf("removing %s: %w", name, fs.ErrNotExist)
	}
	delete(d.files, name)
	return nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.faultLocked(OpList, ""); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(d.files)), nil
}

func (d *MemoryDirectory) Estimate(context.Context) (history.Quota, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.quota == nil {
		return history.Quota{}, history.ErrUnsupported
	}
	return *d.quota, nil
}

func (d *MemoryDirectory) faultLocked(op Op, name string) error {
	if err, ok := d.faults[fault{op, name}]; ok {
		return err
	}
	if err, ok := d.faults[fault{op, ""}]; ok {
		return err
	}
	return nil
}
