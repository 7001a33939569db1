package transcode

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/handiism/tubealbum/internal/model"
)

func TestBuildArgs(t *testing.T) {
	ff := NewFFmpeg("", "", nil)

	args, err := ff.BuildArgs("in.mp4", "out.mp3", "MP3")
	if err != nil {
		t.Fatalf("BuildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-i in.mp4", "-vn", "-c:a libmp3lame", "-b:a 192k", "-f mp3 out.mp3"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "out.mp3" {
		t.Errorf("output must be the last argument, got %q", args[len(args)-1])
	}

	flac, err := ff.BuildArgs("in.webm", "out.flac", "flac")
	if err != nil {
		t.Fatalf("BuildArgs flac: %v", err)
	}
	if slices.Contains(flac, "-b:a") {
		t.Error("lossless formats should not set a bitrate")
	}

	if _, err := ff.BuildArgs("in", "out", "xyz"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSupported(t *testing.T) {
	if !Supported("mp3") || !Supported("Opus") || Supported("avi") {
		t.Error("unexpected Supported results")
	}
}

// fakeFFmpeg writes a shell script standing in for ffmpeg. It copies the
// input (the argument after -i) to the last argument, or fails after writing
// a partial output when fail is set.
func fakeFFmpeg(t *testing.T, fail bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	body := `#!/bin/sh
in=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  out="$a"
done
`
	if fail {
		body += "printf partial > \"$out\"\necho 'Invalid data found when processing input' >&2\nexit 1\n"
	} else {
		body += "cp \"$in\" \"$out\"\n"
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.mp3")

	ff := NewFFmpeg(fakeFFmpeg(t, false), "128k", nil)
	if err := ff.Available(); err != nil {
		t.Fatalf("Available: %v", err)
	}
	artifact, err := ff.Convert(context.Background(), model.RawMedia{Path: src, Title: "Song"}, dst, "mp3")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if artifact.Path != dst || artifact.Title != "Song" || artifact.Format != "mp3" {
		t.Errorf("unexpected artifact %+v", artifact)
	}
}

func TestConvert_FailureRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.mp3")

	ff := NewFFmpeg(fakeFFmpeg(t, true), "", nil)
	_, err := ff.Convert(context.Background(), model.RawMedia{Path: src, Title: "Song"}, dst, "mp3")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("error should quote ffmpeg output, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("partial output should be removed")
	}
}

func TestAvailable_Missing(t *testing.T) {
	ff := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"), "", nil)
	if err := ff.Available(); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
