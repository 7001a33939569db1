// Package tui provides a Bubble Tea terminal user interface for tubealbum.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/tubealbum/internal/config"
	"github.com/handiism/tubealbum/internal/download"
	"github.com/handiism/tubealbum/internal/history"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF4E45")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	albumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// errCancelled is shown when the user aborts a run.
var errCancelled = errors.New("cancelled by user")

// maxLogLines bounds the log pane.
const maxLogLines = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Options configures the TUI.
type Options struct {
	Settings *config.Settings
	History  *history.Store
	Logger   *slog.Logger
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	opts      Options
	logs      []LogEntry
	album     string
	summary   download.Summary
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager
	events  chan download.ProgressEvent

	done  int
	total int

	// Options toggled from the input screen
	playlist bool
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model. A nil Settings uses the defaults.
func NewModel(opts Options) Model {
	if opts.Settings == nil {
		opts.Settings = config.DefaultSettings()
	}

	ti := textinput.New()
	ti.Placeholder = "https://music.youtube.com/playlist?list=OLAK5uy_..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4E45"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		opts:      opts,
		playlist:  opts.Settings.CreatePlaylist,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one manager progress event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// InitDoneMsg is sent when playlist extraction completes.
	InitDoneMsg struct {
		Album   string
		Manager *download.Manager
		Err     error
	}

	// DownloadDoneMsg is sent when every item has an outcome.
	DownloadDoneMsg struct {
		Summary download.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateInitializing {
				// The running command finishes the cancelled items and
				// reports back with DownloadDoneMsg.
				m.cancel()
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateInitializing
				m.events = make(chan download.ProgressEvent, 64)
				return m, tea.Batch(m.initializeDownload(), m.waitForEvent(), m.spinner.Tick)
			}

		case "p":
			if m.state == StateInput {
				m.playlist = !m.playlist
				return m, nil
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m = m.reset()
				return m, textinput.Blink
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if msg.Event.Total > 0 {
			m.done, m.total = msg.Event.Done, msg.Event.Total
		}
		if msg.Event.Level != download.LevelVerbose || m.verbose {
			m.logs = append(m.logs, LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})
			if len(m.logs) > maxLogLines {
				m.logs = m.logs[len(m.logs)-maxLogLines:]
			}
		}
		cmds = append(cmds, m.waitForEvent())

	case InitDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			if m.ctx.Err() != nil {
				m.err = errCancelled
			}
			break
		}
		m.album = msg.Album
		m.manager = msg.Manager
		m.state = StateDownloading
		cmds = append(cmds, m.startDownload(), m.tickProgress())

	case DownloadDoneMsg:
		m.summary = msg.Summary
		m.done = msg.Summary.Total
		switch {
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.done, m.total = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.album = ""
	m.summary = download.Summary{}
	m.err = nil
	m.done, m.total = 0, 0
	m.manager = nil
	m.events = nil
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent delivers the next manager event as a ProgressMsg.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return ProgressMsg{Event: event}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♫ tubealbum"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download YouTube albums as tagged audio files"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter YouTube playlist URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s Create playlist (p)\n", checkbox(m.playlist))
	fmt.Fprintf(&b, "  %s Verbose output (v)\n", checkbox(m.verbose))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output path: %s", m.opts.Settings.OutputPath)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Format: %s • Workers: %d", m.opts.Settings.TargetFormat, m.opts.Settings.Concurrency)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Fetching playlist info..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if m.album != "" {
		b.WriteString(albumStyle.Render("  ♪ " + m.album))
		b.WriteString("\n\n")
	}

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Tracks: %d/%d", m.done, m.total)))
	if m.ctx.Err() != nil {
		b.WriteString(warningStyle.Render("  cancelling..."))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	s := m.summary
	text := fmt.Sprintf("✨ Download Complete!\n\nTracks: %d\nSucceeded: %d\nFailed: %d", s.Total, s.Succeeded, s.Failed)
	if s.PlaylistPath != "" {
		text += "\nPlaylist: " + s.PlaylistPath
	}
	b.WriteString(boxStyle.Render(text))
	b.WriteString("\n")

	for _, f := range s.Failures {
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ #%d %s (%s): %s", f.Ref.Index, f.Ref, f.Stage, f.Reason)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		fmt.Fprintf(&b, "  %s", m.err.Error())
	}
	if m.summary.Total > 0 {
		fmt.Fprintf(&b, "\n\n  %d of %d tracks finished before stopping", m.summary.Succeeded, m.summary.Total)
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • p: playlist • v: verbose • esc: quit"
	case StateInitializing, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// initializeDownload extracts the playlist and creates the manager.
func (m Model) initializeDownload() tea.Cmd {
	url := strings.TrimSpace(m.textInput.Value())
	settings := *m.opts.Settings
	settings.CreatePlaylist = m.playlist
	events := m.events
	ctx := m.ctx
	opts := m.opts

	return func() tea.Msg {
		managerOpts := []download.Option{download.WithLogger(opts.Logger)}
		if opts.History != nil {
			managerOpts = append(managerOpts, download.WithHistory(opts.History))
		}
		manager := download.NewManager(&settings, func(event download.ProgressEvent) {
			select {
			case events <- event:
			default:
				// The log pane is lossy; progress counts come from GetProgress.
			}
		}, managerOpts...)

		if err := manager.Initialize(ctx, url); err != nil {
			close(events)
			return InitDoneMsg{Err: err}
		}
		return InitDoneMsg{Album: manager.AlbumName(), Manager: manager}
	}
}

// startDownload runs the pool in the background.
func (m Model) startDownload() tea.Cmd {
	manager := m.manager
	ctx := m.ctx
	events := m.events
	return func() tea.Msg {
		if manager == nil {
			return DownloadDoneMsg{Err: errors.New("no manager")}
		}
		summary, err := manager.StartDownloads(ctx)
		close(events)
		return DownloadDoneMsg{Summary: summary, Err: err}
	}
}

// Run starts the TUI application.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
