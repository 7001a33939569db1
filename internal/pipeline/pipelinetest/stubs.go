// Package pipelinetest provides deterministic in-memory collaborators for
// exercising pipelines and pools without network access or ffmpeg.
package pipelinetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
)

// ErrStub is the cause every stub failure wraps.
var ErrStub = errors.New("stub failure")

// Source resolves refs to titles taken from Titles (keyed by ItemRef.ID).
// Unknown ids use the id itself as title.
type Source struct {
	Titles map[string]string

	// FailResolve and FailSave name ids whose resolve or save step fails.
	FailResolve map[string]bool
	FailSave    map[string]bool

	// PanicIDs make Resolve panic.
	PanicIDs map[string]bool

	// Delay is slept (or cut short by ctx) before every Save.
	Delay time.Duration

	mu    sync.Mutex
	saves map[string]int
}

func (s *Source) Resolve(_ context.Context, ref model.ItemRef) (pipeline.Media, error) {
	if s.PanicIDs[ref.ID] {
		panic("stub source panic for " + ref.ID)
	}
	if s.FailResolve[ref.ID] {
		return nil, fmt.Errorf("resolve %s: %w", ref.ID, ErrStub)
	}
	title, ok := s.Titles[ref.ID]
	if !ok {
		title = ref.ID
	}
	return &media{src: s, id: ref.ID, title: title}, nil
}

// Saves returns how many times Save was called for id.
func (s *Source) Saves(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[id]
}

type media struct {
	src   *Source
	id    string
	title string
}

func (m *media) Title() string           { return m.title }
func (m *media) Container() string       { return "mp4" }
func (m *media) Duration() time.Duration { return 3 * time.Minute }

func (m *media) Save(ctx context.Context, path string) error {
	m.src.mu.Lock()
	if m.src.saves == nil {
		m.src.saves = map[string]int{}
	}
	m.src.saves[m.id]++
	m.src.mu.Unlock()

	if m.src.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.src.Delay):
		}
	}
	if m.src.FailSave[m.id] {
		// Leave a partial file behind like an interrupted download would.
		_ = os.WriteFile(path, []byte("partial"), 0o644)
		return fmt.Errorf("save %s: %w", m.id, ErrStub)
	}
	return os.WriteFile(path, []byte("raw:"+m.id), 0o644)
}

// Transcoder copies the raw file to dst. Titles listed in FailTitles fail
// after writing a partial destination file.
type Transcoder struct {
	FailTitles map[string]bool
}

func (t *Transcoder) Convert(ctx context.Context, src model.RawMedia, dst, format string) (model.AudioArtifact, error) {
	if err := ctx.Err(); err != nil {
		return model.AudioArtifact{}, err
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return model.AudioArtifact{}, err
	}
	if t.FailTitles[src.Title] {
		_ = os.WriteFile(dst, data[:len(data)/2], 0o644)
		return model.AudioArtifact{}, fmt.Errorf("convert %s: %w", src.Title, ErrStub)
	}
	if err := os.WriteFile(dst, append([]byte(format+":"), data...), 0o644); err != nil {
		return model.AudioArtifact{}, err
	}
	return model.AudioArtifact{Path: dst, Title: src.Title, Format: format, Duration: src.Duration}, nil
}

// Tagger records applied titles. Titles listed in FailTitles fail.
type Tagger struct {
	FailTitles map[string]bool

	mu      sync.Mutex
	applied map[string]int
}

func (t *Tagger) Apply(ctx context.Context, artifact model.AudioArtifact, _ model.AlbumContext, title string, track int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.FailTitles[title] {
		return fmt.Errorf("tag %s: %w", title, ErrStub)
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.applied == nil {
		t.applied = map[string]int{}
	}
	t.applied[title] = track
	return nil
}

// Track returns the track number applied for title and whether it was tagged.
func (t *Tagger) Track(title string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.applied[title]
	return n, ok
}

// Extractor returns a fixed Extraction, or Err when set.
type Extractor struct {
	Result pipeline.Extraction
	Err    error
}

func (e *Extractor) Extract(_ context.Context, playlistURL string) (pipeline.Extraction, error) {
	if e.Err != nil {
		return pipeline.Extraction{}, &pipeline.ExtractionError{URL: playlistURL, Err: e.Err}
	}
	return e.Result, nil
}

// Refs builds refs with ids, urls and 1-based indexes for ids.
func Refs(ids ...string) []model.ItemRef {
	refs := make([]model.ItemRef, len(ids))
	for i, id := range ids {
		refs[i] = model.ItemRef{ID: id, URL: "https://www.youtube.com/watch?v=" + id, Index: i + 1}
	}
	return refs
}
