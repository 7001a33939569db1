package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bogem/id3v2"

	tahttp "github.com/handiism/tubealbum/internal/http"
	"github.com/handiism/tubealbum/internal/model"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func coverServer(t *testing.T, body []byte) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeAudio(t *testing.T, dir, name string) model.AudioArtifact {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really mpeg audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return model.AudioArtifact{Path: path, Title: name, Format: "mp3"}
}

func TestTagger_Apply(t *testing.T) {
	srv, _ := coverServer(t, pngBytes(t, 1200, 1200))
	artifact := writeAudio(t, t.TempDir(), "Song.mp3")
	album := model.AlbumContext{Artist: "The Band", Title: "First Album", CoverURL: srv.URL + "/cover.png"}

	tagger := NewTagger(tahttp.NewClient(), nil, nil)
	if err := tagger.Apply(context.Background(), artifact, album, "Song", 7); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	tag, err := id3v2.Open(artifact.Path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tag.Close()

	if tag.Artist() != "The Band" {
		t.Errorf("artist = %q", tag.Artist())
	}
	if tag.Album() != "First Album" {
		t.Errorf("album = %q", tag.Album())
	}
	if tag.Title() != "Song" {
		t.Errorf("title = %q", tag.Title())
	}
	if got := tag.GetTextFrame("TPE2").Text; got != "The Band" {
		t.Errorf("album artist = %q", got)
	}
	if got := tag.GetTextFrame("TRCK").Text; got != "7" {
		t.Errorf("track = %q", got)
	}

	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pictures) != 1 {
		t.Fatalf("got %d pictures, want 1", len(pictures))
	}
	pic, ok := pictures[0].(id3v2.PictureFrame)
	if !ok {
		t.Fatalf("unexpected frame type %T", pictures[0])
	}
	if pic.PictureType != id3v2.PTFrontCover || pic.MimeType != "image/jpeg" {
		t.Errorf("picture type=%d mime=%q, want front cover jpeg", pic.PictureType, pic.MimeType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pic.Picture))
	if err != nil {
		t.Fatalf("decode embedded cover: %v", err)
	}
	if cfg.Width != 1000 || cfg.Height != 1000 {
		t.Errorf("cover %dx%d, want 1000x1000", cfg.Width, cfg.Height)
	}
}

func TestTagger_CoverFetchedOnce(t *testing.T) {
	srv, hits := coverServer(t, pngBytes(t, 10, 10))
	dir := t.TempDir()
	album := model.AlbumContext{Artist: "A", Title: "B", CoverURL: srv.URL + "/cover.png"}
	tagger := NewTagger(tahttp.NewClient(), nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		artifact := writeAudio(t, dir, fmt.Sprintf("song-%d.mp3", i))
		wg.Add(1)
		go func(track int) {
			defer wg.Done()
			errs <- tagger.Apply(context.Background(), artifact, album, artifact.Title, track)
		}(i + 1)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("cover downloaded %d times, want 1", got)
	}
}

func TestTagger_CoverFailure(t *testing.T) {
	srv, _ := coverServer(t, nil)
	artifact := writeAudio(t, t.TempDir(), "Song.mp3")
	album := model.AlbumContext{Artist: "A", Title: "B", CoverURL: srv.URL + "/missing.jpg"}

	err := NewTagger(tahttp.NewClient(), nil, nil).Apply(context.Background(), artifact, album, "Song", 1)
	if err == nil {
		t.Fatal("expected cover-art error")
	}

	data, readErr := os.ReadFile(artifact.Path)
	if readErr != nil {
		t.Fatalf("audio file should still exist: %v", readErr)
	}
	if string(data) != "not really mpeg audio" {
		t.Error("file should be untouched when the cover cannot be fetched")
	}
}

func TestTagger_NoCoverConfigured(t *testing.T) {
	artifact := writeAudio(t, t.TempDir(), "Song.mp3")
	album := model.AlbumContext{Artist: "A", Title: "B"}

	if err := NewTagger(nil, nil, nil).Apply(context.Background(), artifact, album, "Song", 1); err != nil {
		t.Fatalf("Apply without cover: %v", err)
	}
}

func TestTagger_UnsupportedFormat(t *testing.T) {
	artifact := writeAudio(t, t.TempDir(), "Song.opus")
	artifact.Format = "opus"

	err := NewTagger(nil, nil, nil).Apply(context.Background(), artifact, model.AlbumContext{}, "Song", 1)
	if err == nil {
		t.Fatal("expected error for non-mp3 artifact")
	}
}

func TestTagger_UntaggedFormatSkipped(t *testing.T) {
	artifact := writeAudio(t, t.TempDir(), "Song.flac")
	artifact.Format = "flac"

	cfg := DefaultTagConfig()
	cfg.Artist, cfg.AlbumArtist, cfg.Album = TagDoNotModify, TagDoNotModify, TagDoNotModify
	cfg.TrackNumber, cfg.TrackTitle, cfg.Comments = TagDoNotModify, TagDoNotModify, TagDoNotModify
	cfg.EmbedCover = false

	album := model.AlbumContext{Artist: "A", Title: "B", CoverURL: "http://127.0.0.1:1/cover.jpg"}
	if err := NewTagger(nil, cfg, nil).Apply(context.Background(), artifact, album, "Song", 1); err != nil {
		t.Fatalf("Apply with nothing to write: %v", err)
	}
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "not really mpeg audio" {
		t.Error("file should be left untouched")
	}
}

func TestTagger_CancelledCallerDoesNotFailOthers(t *testing.T) {
	body := pngBytes(t, 10, 10)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		once.Do(func() { close(started) })
		<-release
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	album := model.AlbumContext{Artist: "A", Title: "B", CoverURL: srv.URL + "/cover.png"}
	tagger := NewTagger(tahttp.NewClient(), nil, nil)
	one := writeAudio(t, dir, "One.mp3")
	two := writeAudio(t, dir, "Two.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- tagger.Apply(ctx, one, album, "One", 1)
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- tagger.Apply(context.Background(), two, album, "Two", 2)
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-secondErr; err != nil {
		t.Fatalf("second caller should get the cover, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("cover fetched %d times, want 1", n)
	}
}
