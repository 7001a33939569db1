package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	tahttp "github.com/handiism/tubealbum/internal/http"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
)

// ErrRestricted is returned for private, age-gated or otherwise
// unplayable videos.
var ErrRestricted = errors.New("video is restricted")

// ErrNoAudio is returned when a video offers no format carrying audio.
var ErrNoAudio = errors.New("no audio format available")

// Source resolves videos through github.com/kkdai/youtube.
type Source struct {
	client *youtube.Client
	logger *slog.Logger
}

// NewSource creates a Source sharing client's underlying *http.Client.
func NewSource(client *tahttp.Client, logger *slog.Logger) *Source {
	if client == nil {
		client = tahttp.NewClient()
	}
	return &Source{
		client: &youtube.Client{HTTPClient: client.HTTPClient()},
		logger: logging.NewComponentLogger(logger, "source"),
	}
}

// Resolve implements pipeline.MediaSource.
func (s *Source) Resolve(ctx context.Context, ref model.ItemRef) (pipeline.Media, error) {
	target := ref.URL
	if target == "" {
		target = ref.ID
	}
	video, err := s.client.GetVideoContext(ctx, ConvertMusicURL(target))
	if err != nil {
		return nil, classify(err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return nil, ErrNoAudio
	}
	s.logger.Debug("format selected",
		logging.String(logging.FieldItemID, video.ID),
		logging.String("mime", format.MimeType),
		logging.Int("bitrate", bitrate(format)),
	)
	return &media{client: s.client, video: video, format: format}, nil
}

type media struct {
	client *youtube.Client
	video  *youtube.Video
	format *youtube.Format
}

func (m *media) Title() string           { return m.video.Title }
func (m *media) Container() string       { return containerFor(m.format.MimeType) }
func (m *media) Duration() time.Duration { return m.video.Duration }

// Save streams the selected format to path.
func (m *media) Save(ctx context.Context, path string) error {
	stream, size, err := m.client.GetStreamContext(ctx, m.video, m.format)
	if err != nil {
		return fmt.Errorf("start stream: %w", classify(err))
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	pw := &tahttp.ProgressWriter{Writer: file, Total: size}
	written, copyErr := copyWithContext(ctx, pw, stream)
	closeErr := file.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}
	if size > 0 && written != size {
		return fmt.Errorf("stream truncated: got %d of %d bytes", written, size)
	}
	if written == 0 {
		return errors.New("stream was empty")
	}
	return nil
}

// bestAudioFormat prefers audio-only formats and picks the highest bitrate.
// Muxed formats are used only when no audio-only format exists.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var audioOnly, muxed *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 && !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if f.Width == 0 && f.Height == 0 {
			if audioOnly == nil || bitrate(f) > bitrate(audioOnly) {
				audioOnly = f
			}
			continue
		}
		if muxed == nil || bitrate(f) > bitrate(muxed) {
			muxed = f
		}
	}
	if audioOnly != nil {
		return audioOnly
	}
	return muxed
}

func bitrate(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

// containerFor maps a MIME type such as `audio/webm; codecs="opus"` to a
// file extension.
func containerFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok || sub == "" {
		return "bin"
	}
	switch sub {
	case "3gpp":
		return "3gp"
	case "mp4":
		if strings.HasPrefix(base, "audio/") {
			return "m4a"
		}
	}
	return sub
}

func classify(err error) error {
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("%w: %v", ErrRestricted, err)
	}
	return err
}

// copyWithContext copies src to dst, stopping between chunks once ctx is done.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
