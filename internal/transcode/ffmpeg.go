package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	ioutils "github.com/handiism/tubealbum/internal/io"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
)

// FFmpeg defaults
const (
	FFmpegCommand  = "ffmpeg"
	DefaultBitrate = "192k"

	// stderrTailBytes bounds how much ffmpeg output is quoted in errors.
	stderrTailBytes = 2048
)

// codec describes how ffmpeg encodes one output format.
type codec struct {
	encoder  string
	muxer    string
	lossless bool
}

var codecs = map[string]codec{
	"mp3":  {encoder: "libmp3lame", muxer: "mp3"},
	"m4a":  {encoder: "aac", muxer: "ipod"},
	"aac":  {encoder: "aac", muxer: "adts"},
	"opus": {encoder: "libopus", muxer: "opus"},
	"ogg":  {encoder: "libvorbis", muxer: "ogg"},
	"flac": {encoder: "flac", muxer: "flac", lossless: true},
	"wav":  {encoder: "pcm_s16le", muxer: "wav", lossless: true},
}

// Supported reports whether format can be produced.
func Supported(format string) bool {
	_, ok := codecs[strings.ToLower(format)]
	return ok
}

// FFmpeg converts media files by running the ffmpeg binary.
type FFmpeg struct {
	binary  string
	bitrate string
	logger  *slog.Logger
}

// NewFFmpeg creates a transcoder. Empty binary and bitrate fall back to
// "ffmpeg" on PATH and 192k.
func NewFFmpeg(binary, bitrate string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = FFmpegCommand
	}
	if strings.TrimSpace(bitrate) == "" {
		bitrate = DefaultBitrate
	}
	return &FFmpeg{
		binary:  binary,
		bitrate: bitrate,
		logger:  logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Available returns an error when the ffmpeg binary cannot be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.binary); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): %w", f.binary, err)
	}
	return nil
}

// BuildArgs builds the ffmpeg command arguments.
func (f *FFmpeg) BuildArgs(src, dst, format string) ([]string, error) {
	c, ok := codecs[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", src,
		"-vn",                 // drop video and cover streams
		"-map_metadata", "-1", // tags are written separately
		"-c:a", c.encoder,
	}
	if !c.lossless {
		args = append(args, "-b:a", f.bitrate)
	}
	return append(args, "-f", c.muxer, dst), nil
}

// Convert transcodes src into dst. A failed or cancelled run removes dst.
func (f *FFmpeg) Convert(ctx context.Context, src model.RawMedia, dst, outputFormat string) (model.AudioArtifact, error) {
	args, err := f.BuildArgs(src.Path, dst, outputFormat)
	if err != nil {
		return model.AudioArtifact{}, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stderr = &stderr

	f.logger.Debug("ffmpeg started",
		logging.String("input", src.Path),
		logging.String("output", dst),
		logging.String("format", outputFormat),
	)

	if err := cmd.Run(); err != nil {
		if rmErr := ioutils.RemoveIfExists(dst); rmErr != nil {
			f.logger.Warn("remove partial output", logging.String("path", dst), logging.Error(rmErr))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.AudioArtifact{}, fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return model.AudioArtifact{}, fmt.Errorf("ffmpeg exited with code %d: %s", exitErr.ExitCode(), tail(stderr.String()))
		}
		return model.AudioArtifact{}, fmt.Errorf("run ffmpeg: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return model.AudioArtifact{}, fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		_ = ioutils.RemoveIfExists(dst)
		return model.AudioArtifact{}, errors.New("ffmpeg produced an empty file")
	}

	return model.AudioArtifact{
		Path:     dst,
		Title:    src.Title,
		Format:   strings.ToLower(outputFormat),
		Duration: src.Duration,
	}, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailBytes {
		s = "…" + s[len(s)-stderrTailBytes:]
	}
	if s == "" {
		return "no output"
	}
	return s
}
