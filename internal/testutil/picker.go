package testutil

import (
	"context"
	"fmt"
	"sync"

	"ttshist/internal/history"
)

// PickResult is one scripted picker answer.
type PickResult struct {
	Dir history.Directory
	Err error
}

// ScriptedPicker replays queued answers and records the options it was
// called with. An exhausted script behaves like a dismissed picker.
type ScriptedPicker struct {
	mu      sync.Mutex
	answers []PickResult
	calls   []history.PickOptions
}

var _ history.DirectoryPicker = (*ScriptedPicker)(nil)

func NewScriptedPicker(answers ...PickResult) *ScriptedPicker {
	return &ScriptedPicker{answers: answers}
}

// Grant queues a successful pick of dir.
func (p *ScriptedPicker) Grant(dir history.Directory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, PickResult{Dir: dir})
}

// Refuse queues a failed pick.
func (p *ScriptedPicker) Refuse(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, PickResult{Err: err})
}

func (p *ScriptedPicker) Pick(_ context.Context, opts history.PickOptions) (history.Directory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, opts)
	if len(p.answers) == 0 {
		return nil, fmt.Errorf("no scripted answer: %w", history.ErrPickerCancelled)
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a.Dir, a.Err
}

// Calls returns the options of every Pick call so far.
func (p *ScriptedPicker) Calls() []history.PickOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]history.PickOptions(nil), p.calls...)
}
