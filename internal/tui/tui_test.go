package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/handiism/tubealbum/internal/download"
	"github.com/handiism/tubealbum/internal/model"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_Toggles(t *testing.T) {
	m := NewModel(Options{})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("v")})
	if !m.playlist || !m.verbose {
		t.Errorf("playlist=%v verbose=%v, want both on", m.playlist, m.verbose)
	}
	if m.textInput.Value() != "" {
		t.Errorf("toggle keys leaked into the input: %q", m.textInput.Value())
	}
}

func TestModel_ProgressMessages(t *testing.T) {
	m := NewModel(Options{})
	m.state = StateDownloading

	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "Downloaded: A.mp3", Level: download.LevelVerbose, Done: 1, Total: 3}})
	if m.done != 1 || m.total != 3 {
		t.Errorf("progress = %d/%d, want 1/3", m.done, m.total)
	}
	if len(m.logs) != 0 {
		t.Error("verbose events should be hidden unless verbose is on")
	}

	for i := 0; i < maxLogLines+5; i++ {
		m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "boom", Level: download.LevelError}})
	}
	if len(m.logs) != maxLogLines {
		t.Errorf("kept %d log lines, want %d", len(m.logs), maxLogLines)
	}
}

func TestModel_DownloadDone(t *testing.T) {
	summary := download.NewSummary([]model.ItemOutcome{
		{Ref: model.ItemRef{ID: "a", Index: 1}, Status: model.StatusSuccess, Path: "A.mp3"},
		{Ref: model.ItemRef{ID: "b", Index: 2}, Status: model.StatusFailed, Stage: model.StageTag, Err: errors.New("no cover")},
	})

	m := NewModel(Options{})
	m.state = StateDownloading
	m = update(t, m, DownloadDoneMsg{Summary: summary})
	if m.state != StateComplete {
		t.Fatalf("state = %v, want StateComplete", m.state)
	}
	view := m.View()
	if !strings.Contains(view, "Succeeded: 1") || !strings.Contains(view, "no cover") {
		t.Errorf("view missing summary:\n%s", view)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.state != StateInput || m.summary.Total != 0 {
		t.Error("r should reset to the input screen")
	}
}

func TestModel_InitError(t *testing.T) {
	m := NewModel(Options{})
	m.state = StateInitializing
	m = update(t, m, InitDoneMsg{Err: errors.New("extract failed")})
	if m.state != StateError || !strings.Contains(m.View(), "extract failed") {
		t.Errorf("state = %v, view:\n%s", m.state, m.View())
	}
}
