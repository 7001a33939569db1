package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
)

// ytdlpFormat selects the best audio-only stream, falling back to the best
// muxed one.
const ytdlpFormat = "bestaudio/best"

// YTDLPSource resolves and downloads videos by shelling out to yt-dlp via
// github.com/lrstanley/go-ytdlp. It copes with signature and throttling
// changes faster than the native client.
type YTDLPSource struct {
	executable string
	logger     *slog.Logger
}

// NewYTDLPSource creates a YTDLPSource. An empty executable uses yt-dlp from
// PATH or the copy installed by EnsureYTDLP.
func NewYTDLPSource(executable string, logger *slog.Logger) *YTDLPSource {
	return &YTDLPSource{
		executable: executable,
		logger:     logging.NewComponentLogger(logger, "ytdlp"),
	}
}

// EnsureYTDLP downloads a yt-dlp binary into the user cache when none is
// available.
func EnsureYTDLP(ctx context.Context) error {
	_, err := ytdlp.Install(ctx, nil)
	return err
}

func (s *YTDLPSource) command() *ytdlp.Command {
	cmd := ytdlp.New().NoPlaylist().NoWarnings()
	if s.executable != "" {
		cmd.SetExecutable(s.executable)
	}
	return cmd
}

// Resolve implements pipeline.MediaSource. Only metadata is fetched.
func (s *YTDLPSource) Resolve(ctx context.Context, ref model.ItemRef) (pipeline.Media, error) {
	target := ref.URL
	if target == "" {
		target = WatchURL(ref.ID)
	}
	result, err := s.command().SkipDownload().PrintJSON().Run(ctx, ConvertMusicURL(target))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	infos, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	if len(infos) == 0 {
		return nil, errors.New("yt-dlp returned no metadata")
	}

	info := infos[0]
	m := &ytdlpMedia{source: s, url: target}
	if info.Title != nil {
		m.title = *info.Title
	}
	if info.Duration != nil {
		m.duration = time.Duration(*info.Duration * float64(time.Second))
	}
	return m, nil
}

type ytdlpMedia struct {
	source   *YTDLPSource
	url      string
	title    string
	duration time.Duration
}

func (m *ytdlpMedia) Title() string           { return m.title }
func (m *ytdlpMedia) Duration() time.Duration { return m.duration }

// Container is unknown until yt-dlp picks a format; ffmpeg probes the
// contents, so a neutral extension is enough.
func (m *ytdlpMedia) Container() string { return "media" }

func (m *ytdlpMedia) Save(ctx context.Context, path string) error {
	cmd := m.source.command().
		Format(ytdlpFormat).
		ForceOverwrites().
		NoPart().
		Output(path).
		ProgressFunc(time.Second, func(update ytdlp.ProgressUpdate) {
			m.source.logger.Debug("download progress",
				logging.String(logging.FieldURL, m.url),
				logging.Int("percent", int(update.Percent())),
			)
		})

	if _, err := cmd.Run(ctx, m.url); err != nil {
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("yt-dlp output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("yt-dlp wrote an empty file")
	}
	return nil
}
