package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"github.com/handiism/tubealbum/internal/config"
	"github.com/handiism/tubealbum/internal/history"
	"github.com/handiism/tubealbum/internal/pipeline"
	"github.com/handiism/tubealbum/internal/pipeline/pipelinetest"
)

const testPlaylistURL = "https://www.youtube.com/playlist?list=OLAK5uy_test"

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) add(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(level ProgressLevel) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings := config.DefaultSettings()
	settings.OutputPath = filepath.Join(t.TempDir(), "{artist}", "{album}")
	settings.Concurrency = 2
	settings.CreatePlaylist = true
	settings.DownloadRetryCooldown = 0.001
	return settings
}

func testExtractor() *pipelinetest.Extractor {
	return &pipelinetest.Extractor{Result: pipeline.Extraction{
		Artist: "The Band",
		Album:  "Night Drive",
		Items:  pipelinetest.Refs("a", "b", "c"),
	}}
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestManager_Download(t *testing.T) {
	settings := testSettings(t)
	store := openHistory(t)
	events := &eventLog{}

	m := NewManager(settings, events.add,
		WithExtractor(testExtractor()),
		WithSource(&pipelinetest.Source{Titles: map[string]string{
			"a": "The Band - Intro (Official Audio)",
			"b": "Broken",
			"c": "Outro [HD]",
		}}),
		WithTranscoder(&pipelinetest.Transcoder{FailTitles: map[string]bool{"Broken": true}}),
		WithTagger(&pipelinetest.Tagger{}),
		WithHistory(store),
	)

	ctx := context.Background()
	if err := m.Initialize(ctx, testPlaylistURL); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := m.AlbumName(); got != "The Band - Night Drive (3 tracks)" {
		t.Errorf("AlbumName = %q", got)
	}

	summary, err := m.StartDownloads(ctx)
	if err != nil {
		t.Fatalf("StartDownloads: %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 || summary.AllFailed() {
		t.Errorf("summary = %+v", summary)
	}
	if done, total := m.GetProgress(); done != 3 || total != 3 {
		t.Errorf("GetProgress = %d/%d, want 3/3", done, total)
	}

	album := m.Album()
	for _, name := range []string{"Intro.mp3", "Outro.mp3"} {
		if _, err := os.Stat(filepath.Join(album.OutputDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(album.OutputDir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be removed after the run")
	}

	playlist, err := os.ReadFile(album.PlaylistPath)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	content := string(playlist)
	intro, outro := strings.Index(content, "Intro.mp3"), strings.Index(content, "Outro.mp3")
	if intro < 0 || outro < 0 || intro > outro {
		t.Errorf("playlist should list Intro before Outro:\n%s", content)
	}
	if strings.Contains(content, "Broken") {
		t.Error("failed items must not appear in the playlist")
	}
	if summary.PlaylistPath != album.PlaylistPath {
		t.Errorf("PlaylistPath = %q, want %q", summary.PlaylistPath, album.PlaylistPath)
	}

	if events.count(LevelError) != 1 {
		t.Errorf("got %d error events, want 1", events.count(LevelError))
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns = %d, %v", len(runs), err)
	}
	if runs[0].ID != summary.RunID || runs[0].Succeeded != 2 || runs[0].Album != "Night Drive" {
		t.Errorf("run = %+v", runs[0])
	}
	items, err := store.Items(ctx, summary.RunID)
	if err != nil || len(items) != 3 {
		t.Errorf("Items = %d, %v", len(items), err)
	}
}

func TestManager_ExtractionFailureIsFatal(t *testing.T) {
	store := openHistory(t)
	m := NewManager(testSettings(t), nil,
		WithExtractor(&pipelinetest.Extractor{Err: errors.New("page gone")}),
		WithSource(&pipelinetest.Source{}),
		WithTranscoder(&pipelinetest.Transcoder{}),
		WithTagger(&pipelinetest.Tagger{}),
		WithHistory(store),
	)

	err := m.Initialize(context.Background(), testPlaylistURL)
	if !pipeline.IsFatal(err) {
		t.Fatalf("Initialize error = %v, want fatal", err)
	}
	if _, err := m.StartDownloads(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("StartDownloads error = %v, want ErrNotInitialized", err)
	}

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 || runs[0].FatalError == "" {
		t.Errorf("expected one fatal run, got %+v (%v)", runs, err)
	}
}

func TestManager_EmptyPlaylistIsFatal(t *testing.T) {
	m := NewManager(testSettings(t), nil,
		WithExtractor(&pipelinetest.Extractor{Result: pipeline.Extraction{Artist: "X", Album: "Y"}}),
		WithSource(&pipelinetest.Source{}),
		WithTranscoder(&pipelinetest.Transcoder{}),
		WithTagger(&pipelinetest.Tagger{}),
	)
	var extErr *pipeline.ExtractionError
	if err := m.Initialize(context.Background(), testPlaylistURL); !errors.As(err, &extErr) {
		t.Errorf("Initialize error = %v, want *pipeline.ExtractionError", err)
	}
}

func TestManager_FatalBeforeWork(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, settings *config.Settings) func()
		check func(t *testing.T, err error)
	}{
		{
			name: "invalid concurrency",
			setup: func(_ *testing.T, s *config.Settings) func() {
				s.Concurrency = 0
				return func() {}
			},
			check: func(t *testing.T, err error) {
				var cfgErr *pipeline.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error = %v, want *pipeline.ConfigError", err)
				}
			},
		},
		{
			name: "output dir is a file",
			setup: func(t *testing.T, s *config.Settings) func() {
				root := t.TempDir()
				if err := os.WriteFile(filepath.Join(root, "blocker"), []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				s.OutputPath = filepath.Join(root, "blocker", "{album}")
				return func() {}
			},
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected an error")
				}
			},
		},
		{
			name: "locked by another run",
			setup: func(t *testing.T, s *config.Settings) func() {
				dir := filepath.Join(t.TempDir(), "album")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					t.Fatal(err)
				}
				s.OutputPath = dir
				lock := flock.New(filepath.Join(dir, LockFileName))
				if ok, err := lock.TryLock(); !ok || err != nil {
					t.Fatalf("TryLock = %v, %v", ok, err)
				}
				return func() { _ = lock.Unlock() }
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrLocked) {
					t.Errorf("error = %v, want ErrLocked", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings(t)
			release := tt.setup(t, settings)
			defer release()

			source := &pipelinetest.Source{}
			m := NewManager(settings, nil,
				WithExtractor(testExtractor()),
				WithSource(source),
				WithTranscoder(&pipelinetest.Transcoder{}),
				WithTagger(&pipelinetest.Tagger{}),
			)
			if err := m.Initialize(context.Background(), testPlaylistURL); err != nil {
				t.Fatal(err)
			}
			_, err := m.StartDownloads(context.Background())
			tt.check(t, err)
			if source.Saves("a") != 0 {
				t.Error("no item should be processed after a fatal error")
			}
		})
	}
}
