// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"
	"testing"

	"beatclock/internal/clock"
	"beatclock/internal/effects"
	"beatclock/internal/params"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel() (Model, *params.Store) {
	store := params.NewStore(48000, -20, -40, 100, 4)
	return NewClockModel(store, &clock.Telemetry{}, 48000, "test input"), store
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runeMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestSelectionMoves(t *testing.T) {
	m, _ := newTestModel()

	if m.selected != 0 {
		t.Fatalf("initial selection = %d, want 0", m.selected)
	}

	m = update(m, keyMsg(tea.KeyDown))
	if m.selected != 1 {
		t.Errorf("selection after down = %d, want 1", m.selected)
	}

	for i := 0; i < 10; i++ {
		m = update(m, keyMsg(tea.KeyDown))
	}
	if m.selected != len(m.rows)-1 {
		t.Errorf("selection clamped at %d, want %d", m.selected, len(m.rows)-1)
	}

	for i := 0; i < 10; i++ {
		m = update(m, keyMsg(tea.KeyUp))
	}
	if m.selected != 0 {
		t.Errorf("selection clamped at %d, want 0", m.selected)
	}
}

func TestCoarseAdjustRouting(t *testing.T) {
	m, store := newTestModel()

	m = update(m, keyMsg(tea.KeyRight))
	if got := store.RisingDB(); math.Abs(got-(-19)) > 1e-9 {
		t.Errorf("RisingDB after right = %g, want -19", got)
	}

	m = update(m, keyMsg(tea.KeyLeft))
	m = update(m, keyMsg(tea.KeyLeft))
	if got := store.RisingDB(); math.Abs(got-(-21)) > 1e-9 {
		t.Errorf("RisingDB after two lefts = %g, want -21", got)
	}

	// Second row tunes the falling threshold.
	m = update(m, keyMsg(tea.KeyDown))
	m = update(m, keyMsg(tea.KeyRight))
	if got := store.FallingDB(); math.Abs(got-(-39)) > 1e-9 {
		t.Errorf("FallingDB after right = %g, want -39", got)
	}
}

func TestFineAdjustRouting(t *testing.T) {
	m, store := newTestModel()

	m = update(m, keyMsg(tea.KeyShiftRight))
	if got := store.RisingDB(); math.Abs(got-(-19.9)) > 1e-9 {
		t.Errorf("RisingDB after shift+right = %g, want -19.9", got)
	}

	m = update(m, runeMsg('_'))
	m = update(m, runeMsg('_'))
	if got := store.RisingDB(); math.Abs(got-(-20.1)) > 1e-9 {
		t.Errorf("RisingDB after two underscores = %g, want -20.1", got)
	}
}

func TestPlusMinusKeysAdjust(t *testing.T) {
	m, store := newTestModel()

	// refractory row: coarse 10ms, fine 1ms
	m = update(m, keyMsg(tea.KeyDown))
	m = update(m, keyMsg(tea.KeyDown))

	m = update(m, runeMsg('='))
	if got := store.RefractoryMS(); math.Abs(got-110) > 1e-9 {
		t.Errorf("RefractoryMS after '=' = %g, want 110", got)
	}
	m = update(m, runeMsg('-'))
	m = update(m, runeMsg('+'))
	if got := store.RefractoryMS(); math.Abs(got-101) > 1e-9 {
		t.Errorf("RefractoryMS after -/+ = %g, want 101", got)
	}
}

func TestWarmupRowSteps(t *testing.T) {
	m, store := newTestModel()

	m = update(m, keyMsg(tea.KeyDown))
	m = update(m, keyMsg(tea.KeyDown))
	m = update(m, keyMsg(tea.KeyDown))

	m = update(m, keyMsg(tea.KeyRight))
	if got := store.WarmupBeats(); got != 5 {
		t.Errorf("WarmupBeats after right = %d, want 5", got)
	}
	for i := 0; i < 10; i++ {
		m = update(m, keyMsg(tea.KeyLeft))
	}
	if got := store.WarmupBeats(); got != 0 {
		t.Errorf("WarmupBeats floors at %d, want 0", got)
	}
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel()

	for _, msg := range []tea.KeyMsg{runeMsg('q'), keyMsg(tea.KeyCtrlC)} {
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("%s did not produce a command", msg)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s produced %T, want tea.QuitMsg", msg, cmd())
		}
	}
}

func TestTickContinues(t *testing.T) {
	m, _ := newTestModel()

	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Fatal("tick did not schedule the next tick")
	}
	if _, ok := next.(Model); !ok {
		t.Fatalf("Update returned %T", next)
	}
}

func TestClockViewShowsStatus(t *testing.T) {
	m, _ := newTestModel()
	m.width = 80
	m.status = clock.Status{Beats: 4, Pulses: 23, BPM: 120, Active: true}

	view := m.View()
	for _, want := range []string{"120.0", "beats: 4", "pulses: 23", "rising threshold", "warm-up beats", "test input"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEffectModelRoutesToChain(t *testing.T) {
	fx := effects.NewChain(effects.NewDefaultStore())
	m := NewEffectModel(fx, &clock.Telemetry{}, 48000, "test input")

	// ratio row, coarse step 0.1
	m = update(m, keyMsg(tea.KeyDown))
	m = update(m, keyMsg(tea.KeyRight))
	if got := fx.Store().Ratio(); math.Abs(got-1.1) > 1e-9 {
		t.Errorf("Ratio after right = %g, want 1.1", got)
	}

	view := m.View()
	for _, want := range []string{"low-pass filter steepness", "compressor ratio", "output amplitude"} {
		if !strings.Contains(view, want) {
			t.Errorf("effect view missing %q", want)
		}
	}
}
