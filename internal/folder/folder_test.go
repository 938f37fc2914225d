package folder

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"ttshist/internal/history"
)

func TestOSDirectory_ReadWriteRemove(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir, err := OpenOSDirectory(root)
	if err != nil {
		t.Fatalf("OpenOSDirectory() error = %v", err)
	}

	if dir.Name() != root {
		t.Errorf("Name() = %q, want %q", dir.Name(), root)
	}

	if err := dir.WriteFile(ctx, "a.mp3", []byte("one")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := dir.WriteFile(ctx, "a.mp3", []byte("two")); err != nil {
		t.Fatalf("WriteFile() replace error = %v", err)
	}

	got, err := dir.ReadFile(ctx, "a.mp3")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "two" {
		t.Errorf("ReadFile() = %q, want %q", got, "two")
	}

	info, err := os.Stat(filepath.Join(root, "a.mp3"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("file mode = %v, want 0644", info.Mode().Perm())
	}

	if err := dir.Remove(ctx, "a.mp3"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := dir.ReadFile(ctx, "a.mp3"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile() after Remove error = %v, want fs.ErrNotExist", err)
	}
	if err := dir.Remove(ctx, "a.mp3"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove() of missing file error = %v, want fs.ErrNotExist", err)
	}
}

func TestOSDirectory_List(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "b.mp3"), []byte("b"), 0644)
	os.WriteFile(filepath.Join(root, "a.json"), []byte("{}"), 0644)
	os.WriteFile(filepath.Join(root, ".tmp-123"), []byte("partial"), 0644)
	os.Mkdir(filepath.Join(root, "sub"), 0755)

	dir, err := OpenOSDirectory(root)
	if err != nil {
		t.Fatalf("OpenOSDirectory() error = %v", err)
	}

	names, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	slices.Sort(names)
	if want := []string{"a.json", "b.mp3"}; !slices.Equal(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}
}

func TestOSDirectory_RejectsPaths(t *testing.T) {
	ctx := context.Background()
	dir, err := OpenOSDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenOSDirectory() error = %v", err)
	}

	for _, name := range []string{"", ".", "..", "../x", "sub/x", `a\b`} {
		t.Run(name, func(t *testing.T) {
			if err := dir.WriteFile(ctx, name, []byte("x")); err == nil {
				t.Errorf("WriteFile(%q) expected error", name)
			}
			if _, err := dir.ReadFile(ctx, name); err == nil {
				t.Errorf("ReadFile(%q) expected error", name)
			}
		})
	}
}

func TestOpenOSDirectory_Errors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	os.WriteFile(file, []byte("x"), 0644)

	if _, err := OpenOSDirectory(filepath.Join(root, "missing")); err == nil {
		t.Error("OpenOSDirectory(missing) expected error")
	}
	if _, err := OpenOSDirectory(file); err == nil {
		t.Error("OpenOSDirectory(file) expected error")
	}
}

func TestOSDirectory_Estimate(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("statfs not available")
	}
	dir, err := OpenOSDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenOSDirectory() error = %v", err)
	}

	q, err := dir.Estimate(context.Background())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if q.TotalBytes <= 0 || q.FreeBytes < 0 || q.FreeBytes > q.TotalBytes {
		t.Errorf("Estimate() = %+v", q)
	}
}

func TestMemoryDirectory_Faults(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory("mem")
	boom := errors.New("boom")

	dir.WriteFile(ctx, "a", []byte("a"))
	dir.Fail(OpRead, "a", boom)
	if _, err := dir.ReadFile(ctx, "a"); !errors.Is(err, boom) {
		t.Errorf("ReadFile() error = %v, want injected", err)
	}

	dir.Fail(OpWrite, "", boom)
	if err := dir.WriteFile(ctx, "b", []byte("b")); !errors.Is(err, boom) {
		t.Errorf("WriteFile() error = %v, want injected", err)
	}

	dir.ClearFaults()
	if _, err := dir.ReadFile(ctx, "a"); err != nil {
		t.Errorf("ReadFile() after ClearFaults error = %v", err)
	}
	if _, err := dir.ReadFile(ctx, "missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestStaticPicker(t *testing.T) {
	ctx := context.Background()

	if _, err := (StaticPicker{}).Pick(ctx, history.PickOptions{}); !errors.Is(err, history.ErrPickerCancelled) {
		t.Errorf("Pick() with empty path error = %v, want ErrPickerCancelled", err)
	}

	root := t.TempDir()
	dir, err := StaticPicker{Path: root}.Pick(ctx, history.PickOptions{})
	if err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	if dir.Name() != root {
		t.Errorf("Name() = %q, want %q", dir.Name(), root)
	}
}

func TestPromptPicker(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	tests := []struct {
		name       string
		input      string
		opts       history.PickOptions
		wantDir    string
		wantErr    error
		wantPrompt string
	}{
		{
			name:       "typed path",
			input:      root + "\n",
			wantDir:    root,
			wantPrompt: "empty to cancel",
		},
		{
			name:    "empty answer cancels",
			input:   "\n",
			wantErr: history.ErrPickerCancelled,
		},
		{
			name:    "end of input cancels",
			input:   "",
			wantErr: history.ErrPickerCancelled,
		},
		{
			name:       "empty answer accepts hint",
			input:      "\n",
			opts:       history.PickOptions{Hint: root, Reconnection: true},
			wantDir:    root,
			wantPrompt: "Reconnect history folder",
		},
		{
			name:    "path without newline",
			input:   root,
			wantDir: root,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPromptPicker(strings.NewReader(tt.input), &out)

			dir, err := p.Pick(ctx, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Pick() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && dir.Name() != tt.wantDir {
				t.Errorf("Name() = %q, want %q", dir.Name(), tt.wantDir)
			}
			if !strings.Contains(out.String(), tt.wantPrompt) {
				t.Errorf("prompt = %q, want containing %q", out.String(), tt.wantPrompt)
			}
		})
	}
}

func TestPromptPicker_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p := NewPromptPicker(strings.NewReader(tt.input), &bytes.Buffer{})
			got, err := p.Confirm("Reconnect?")
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	done := make(chan error, 1)
	filter := func(name string) bool { return strings.HasSuffix(name, ".mp3") }

	go func() {
		done <- Watch(ctx, root, filter, 50*time.Millisecond, history.NewNopLogger(), func() {
			changed <- struct{}{}
		})
	}()

	// Give the watcher time to register before touching files.
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "a.mp3"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(root, "b.mp3"), []byte("b"), 0644)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange not called")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}
