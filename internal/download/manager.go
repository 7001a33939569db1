package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/handiism/tubealbum/internal/audio"
	"github.com/handiism/tubealbum/internal/config"
	"github.com/handiism/tubealbum/internal/history"
	"github.com/handiism/tubealbum/internal/http"
	ioutils "github.com/handiism/tubealbum/internal/io"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
	"github.com/handiism/tubealbum/internal/transcode"
	"github.com/handiism/tubealbum/internal/youtube"
)

// LockFileName is the advisory lock held in the output directory while a
// run writes to it.
const LockFileName = ".tubealbum.lock"

// ErrNotInitialized is returned by StartDownloads before a successful
// Initialize.
var ErrNotInitialized = errors.New("manager not initialized")

// ErrLocked is returned when another run holds the output directory lock.
var ErrLocked = errors.New("output directory is locked by another run")

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel

	// Done and Total are set on per-item events.
	Done  int
	Total int
}

// Option overrides a collaborator NewManager would otherwise build from
// settings.
type Option func(*Manager)

// WithExtractor replaces the YouTube playlist extractor.
func WithExtractor(e pipeline.Extractor) Option {
	return func(m *Manager) { m.extractor = e }
}

// WithSource replaces the media source.
func WithSource(s pipeline.MediaSource) Option {
	return func(m *Manager) { m.source = s }
}

// WithTranscoder replaces the ffmpeg transcoder.
func WithTranscoder(t pipeline.Transcoder) Option {
	return func(m *Manager) { m.transcoder = t }
}

// WithTagger replaces the ID3 tagger.
func WithTagger(t pipeline.Tagger) Option {
	return func(m *Manager) { m.tagger = t }
}

// WithHistory records every run in store.
func WithHistory(store *history.Store) Option {
	return func(m *Manager) { m.history = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager coordinates one album download: extraction, the worker pool,
// the playlist file and the history record.
type Manager struct {
	settings   *config.Settings
	extractor  pipeline.Extractor
	source     pipeline.MediaSource
	transcoder pipeline.Transcoder
	tagger     pipeline.Tagger
	history    *history.Store
	playlist   *audio.PlaylistCreator
	pool       *Pool
	logger     *slog.Logger

	onProgress func(ProgressEvent)

	mu          sync.RWMutex
	playlistURL string
	album       model.AlbumContext
	refs        []model.ItemRef
	ready       bool
}

// NewManager creates a new download Manager. Collaborators not supplied via
// options are built from settings.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), opts ...Option) *Manager {
	m := &Manager{
		settings:   settings,
		playlist:   audio.NewPlaylistCreator(settings.ToPathConfig().PlaylistFormat, settings.M3UExtended),
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}
	base := m.logger
	m.logger = logging.NewComponentLogger(base, "manager")

	client := http.NewClient(http.WithTimeout(settings.HTTPTimeoutDuration()))
	if m.extractor == nil {
		m.extractor = youtube.NewExtractor(client, base)
	}
	if m.source == nil {
		if settings.Source == config.SourceYTDLP {
			m.source = youtube.NewYTDLPSource(settings.YTDLPPath, base)
		} else {
			m.source = youtube.NewSource(client, base)
		}
	}
	if m.transcoder == nil {
		m.transcoder = transcode.NewFFmpeg(settings.FFmpegPath, settings.AudioBitrate, base)
	}
	if m.tagger == nil {
		m.tagger = audio.NewTagger(client, settings.ToTagConfig(), base)
	}

	p := pipeline.New(m.source, m.transcoder, m.tagger, settings.ToPipelineOptions(), base)
	m.pool = NewPool(p, base)
	m.pool.OnProgress = m.itemFinished
	return m
}

// Initialize extracts album metadata and items from playlistURL. Its error
// is fatal to the run.
func (m *Manager) Initialize(ctx context.Context, playlistURL string) error {
	start := time.Now()
	m.progress(ProgressEvent{Message: fmt.Sprintf("Fetching playlist info: %s", playlistURL), Level: LevelVerbose})

	ext, err := m.extractor.Extract(ctx, playlistURL)
	if err == nil && len(ext.Items) == 0 {
		err = &pipeline.ExtractionError{URL: playlistURL, Err: errors.New("playlist has no items")}
	}
	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error getting album from %s: %v", playlistURL, err), Level: LevelError})
		m.record(ctx, history.Run{
			PlaylistURL: playlistURL,
			StartedAt:   start,
			FinishedAt:  time.Now(),
			FatalError:  err.Error(),
		}, nil)
		return err
	}

	album := model.NewAlbumContext(ext.Artist, ext.Album, ext.CoverURL, m.settings.ToPathConfig())

	m.mu.Lock()
	m.playlistURL = playlistURL
	m.album = album
	m.refs = ext.Items
	m.ready = true
	m.mu.Unlock()

	m.progress(ProgressEvent{Message: fmt.Sprintf("Found album: %s", m.AlbumName()), Level: LevelInfo})
	return nil
}

// Album returns the album context computed by Initialize.
func (m *Manager) Album() model.AlbumContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.album
}

// Items returns the item references found by Initialize.
func (m *Manager) Items() []model.ItemRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ItemRef(nil), m.refs...)
}

// AlbumName returns "Artist - Album (N tracks)".
func (m *Manager) AlbumName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("%s - %s (%d tracks)", m.album.Artist, m.album.Title, len(m.refs))
}

// GetProgress returns how many items have finished out of the total.
func (m *Manager) GetProgress() (done, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool.Completed(), len(m.refs)
}

// StartDownloads processes every item of the initialized playlist.
//
// A returned error is fatal (missing output directory, held lock or bad
// concurrency) and means no item was processed. Item failures are reported
// through the Summary only.
func (m *Manager) StartDownloads(ctx context.Context) (Summary, error) {
	m.mu.RLock()
	ready, album, refs, playlistURL := m.ready, m.album, m.refs, m.playlistURL
	m.mu.RUnlock()
	if !ready {
		return Summary{}, ErrNotInitialized
	}

	start := time.Now()
	fatal := func(err error) (Summary, error) {
		m.progress(ProgressEvent{Message: err.Error(), Level: LevelError})
		m.record(ctx, history.Run{
			PlaylistURL: playlistURL,
			Artist:      album.Artist,
			Album:       album.Title,
			OutputDir:   album.OutputDir,
			StartedAt:   start,
			FinishedAt:  time.Now(),
			FatalError:  err.Error(),
		}, nil)
		return Summary{}, err
	}

	if err := ioutils.EnsureDir(album.OutputDir); err != nil {
		return fatal(fmt.Errorf("create output directory: %w", err))
	}

	lock := flock.New(filepath.Join(album.OutputDir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fatal(fmt.Errorf("lock output directory: %w", err))
	}
	if !locked {
		return fatal(fmt.Errorf("%w: %s", ErrLocked, album.OutputDir))
	}
	defer func() {
		_ = lock.Unlock()
		_ = ioutils.RemoveIfExists(lock.Path())
	}()

	outcomes, err := m.pool.RunAll(ctx, refs, album, m.settings.Concurrency)
	if err != nil {
		return fatal(err)
	}

	summary := NewSummary(outcomes)
	summary.Elapsed = time.Since(start)

	if m.settings.CreatePlaylist && summary.Succeeded > 0 {
		content := m.playlist.CreatePlaylist(album, audio.EntriesFromOutcomes(outcomes))
		if err := ioutils.WriteFile(album.PlaylistPath, []byte(content)); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error creating playlist: %v", err), Level: LevelWarning})
		} else {
			summary.PlaylistPath = album.PlaylistPath
			m.progress(ProgressEvent{Message: fmt.Sprintf("Created playlist for %s", album.Title), Level: LevelSuccess})
		}
	}

	summary.RunID = m.record(ctx, history.Run{
		PlaylistURL: playlistURL,
		Artist:      album.Artist,
		Album:       album.Title,
		OutputDir:   album.OutputDir,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Total:       summary.Total,
		Succeeded:   summary.Succeeded,
		Failed:      summary.Failed,
	}, outcomes)

	switch {
	case summary.Failed == 0:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Successfully downloaded album: %s", album.Title), Level: LevelSuccess})
	case summary.AllFailed():
		m.progress(ProgressEvent{Message: fmt.Sprintf("Every track of %s failed", album.Title), Level: LevelError})
	default:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Finished %s, %d of %d tracks failed", album.Title, summary.Failed, summary.Total), Level: LevelWarning})
	}
	return summary, nil
}

func (m *Manager) itemFinished(pr Progress) {
	o := pr.Outcome
	event := ProgressEvent{Done: pr.Done, Total: pr.Total}
	switch {
	case o.Succeeded():
		event.Level = LevelVerbose
		event.Message = fmt.Sprintf("Downloaded: %s", filepath.Base(o.Path))
	case o.Cancelled():
		event.Level = LevelWarning
		event.Message = fmt.Sprintf("Cancelled: %s", o.Ref)
	default:
		event.Level = LevelError
		event.Message = fmt.Sprintf("Error downloading %s (%s): %s", o.Ref, o.Stage, o.Reason())
	}
	m.progress(event)
}

// record stores a run when history is enabled and returns its id.
// History failures only warn.
func (m *Manager) record(ctx context.Context, run history.Run, outcomes []model.ItemOutcome) string {
	if m.history == nil {
		return ""
	}
	// The run's own ctx may already be cancelled; the record must still land.
	id, err := m.history.RecordRun(context.WithoutCancel(ctx), run, outcomes)
	if err != nil {
		m.logger.Warn("history record failed", logging.Error(err))
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error recording history: %v", err), Level: LevelWarning})
		return ""
	}
	return id
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
