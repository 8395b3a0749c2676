// Package view renders session connectivity for the user.
package view

import (
	"sync"

	"github.com/pterm/pterm"
)

// Phase is the user-facing connectivity state of a session.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseConnected
	PhaseDisconnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectionStateView is the presentation sink. It only ever receives phase
// values and must not block.
type ConnectionStateView interface {
	Render(Phase)
}

// Terminal renders phases with a pterm spinner.
type Terminal struct {
	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter

	// held is set while a prompt owns the terminal; phases rendered
	// meanwhile are replayed when it ends.
	held    bool
	pending bool
	last    Phase
}

func (t *Terminal) Render(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = p
	if t.held {
		t.pending = true
		return
	}
	t.render(p)
}

func (t *Terminal) render(p Phase) {
	switch p {
	case PhaseConnecting:
		if t.spinner != nil {
			t.spinner.UpdateText("Connecting...")
			return
		}
		t.spinner, _ = pterm.DefaultSpinner.WithRemoveWhenDone(false).Start("Connecting...")
	case PhaseConnected:
		if t.spinner != nil {
			t.spinner.Success("Connected — receiving media")
			t.spinner = nil
			return
		}
		pterm.Success.Println("Connected — receiving media")
	case PhaseDisconnected:
		if t.spinner != nil {
			t.spinner.Fail("Disconnected")
			t.spinner = nil
			return
		}
		pterm.Warning.Println("Disconnected")
	}
}

// Hold stops the spinner while f runs, then redraws the latest phase.
// Render does not block in the meantime.
func (t *Terminal) Hold(f func()) {
	t.mu.Lock()
	t.held = true
	if t.spinner != nil {
		_ = t.spinner.Stop()
		t.spinner = nil
		t.pending = true
	}
	t.mu.Unlock()

	f()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.held = false
	if t.pending {
		t.pending = false
		t.render(t.last)
	}
}

// Recorder keeps every rendered phase. Useful headless and in tests.
type Recorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *Recorder) Render(p Phase) {
	r.mu.Lock()
	r.phases = append(r.phases, p)
	r.mu.Unlock()
}

// Phases returns a copy of the rendered history.
func (r *Recorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

// Last returns the most recent phase and whether any was rendered.
func (r *Recorder) Last() (Phase, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.phases) == 0 {
		return 0, false
	}
	return r.phases[len(r.phases)-1], true
}
