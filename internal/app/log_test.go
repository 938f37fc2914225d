package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "history saved",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\thistory saved\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "loading index",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tloading index\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "evicted",
			attrs:   []slog.Attr{slog.String("id", "1705314600000-a"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tWARN\top-789\tevicted\tid=1705314600000-a\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &fileHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestFileHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &fileHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "dirstore")}).(*fileHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "save", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "component=dirstore", "key=abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %s", got, want)
		}
	}
}

func TestFanoutHandler(t *testing.T) {
	var file, console bytes.Buffer
	consoleHandler, err := newConsoleHandler(&console, "warn")
	if err != nil {
		t.Fatalf("newConsoleHandler() error = %v", err)
	}
	logger := slog.New(fanoutHandler{&fileHandler{w: &file, opID: "op"}, consoleHandler})

	logger.Info("routine")
	logger.Warn("corrupt payload discarded", "key", "tts-history")

	if !strings.Contains(file.String(), "routine") || !strings.Contains(file.String(), "corrupt payload") {
		t.Errorf("file output = %q, want both records", file.String())
	}
	if strings.Contains(console.String(), "routine") {
		t.Errorf("console output %q contains an info record below warn", console.String())
	}
	if !strings.Contains(console.String(), "corrupt payload discarded") {
		t.Errorf("console output %q missing warn record", console.String())
	}
}

func TestNewConsoleHandler_InvalidLevel(t *testing.T) {
	if _, err := newConsoleHandler(&bytes.Buffer{}, "loud"); err == nil {
		t.Error("newConsoleHandler(loud) expected error")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op", "error")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello") {
		t.Errorf("log file = %q", data)
	}
}
