package folder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ttshist/internal/history"
)

// OSDirectory is a granted directory on the local filesystem.
type OSDirectory struct {
	path string
}

var (
	_ history.Directory      = (*OSDirectory)(nil)
	_ history.QuotaEstimator = (*OSDirectory)(nil)
)

// OpenOSDirectory resolves path and verifies it is an accessible directory.
func OpenOSDirectory(path string) (*OSDirectory, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("opening %s: %w", absPath, history.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absPath)
	}

	return &OSDirectory{path: absPath}, nil
}

// Name returns the absolute path, which doubles as the display name.
func (d *OSDirectory) Name() string {
	return d.path
}

// ReadFile returns the contents of name.
func (d *OSDirectory) ReadFile(_ context.Context, name string) ([]byte, error) {
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

// WriteFile writes data to name using atomic write (temp file + rename).
func (d *OSDirectory) WriteFile(_ context.Context, name string, data []byte) error {
	destPath, err := d.resolve(name)
	if err != nil {
		return err
	}

	// Temp file lives in the same directory so the rename is atomic.
	tmpFile, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", mapErr(err))
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", mapErr(err))
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", mapErr(err))
	}

	success = true
	return nil
}

// Remove deletes name.
func (d *OSDirectory) Remove(_ context.Context, name string) error {
	p, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return mapErr(err)
	}
	return nil
}

// List returns the names of regular files, skipping hidden temp files.
func (d *OSDirectory) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.path, mapErr(err))
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Estimate reports the capacity of the filesystem holding the directory.
func (d *OSDirectory) Estimate(_ context.Context) (history.Quota, error) {
	return statQuota(d.path)
}

func (d *OSDirectory) resolve(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.path, name), nil
}

// ValidName rejects anything that is not a plain file name.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// mapErr translates permission failures to the history sentinel while
// keeping fs.ErrNotExist intact.
func mapErr(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %w", history.ErrPermissionDenied, err)
	}
	return err
}
