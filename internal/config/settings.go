package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/handiism/tubealbum/internal/audio"
	ioutils "github.com/handiism/tubealbum/internal/io"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
	"github.com/handiism/tubealbum/internal/transcode"
)

// Media source backends.
const (
	SourceNative = "native"
	SourceYTDLP  = "ytdlp"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	OutputPath            string  `json:"output_path" toml:"output_path"`
	Concurrency           int     `json:"concurrency" toml:"concurrency"`
	Source                string  `json:"source" toml:"source"` // native, ytdlp
	YTDLPPath             string  `json:"ytdlp_path" toml:"ytdlp_path"`
	DownloadMaxRetries    int     `json:"download_max_retries" toml:"download_max_retries"`
	DownloadRetryCooldown float64 `json:"download_retry_cooldown" toml:"download_retry_cooldown"`
	DownloadRetryExponent float64 `json:"download_retry_exponent" toml:"download_retry_exponent"`
	HTTPTimeout           int     `json:"http_timeout" toml:"http_timeout"` // seconds
	OverwriteExisting     bool    `json:"overwrite_existing" toml:"overwrite_existing"`

	// Transcoding
	TargetFormat string `json:"target_format" toml:"target_format"`
	AudioBitrate string `json:"audio_bitrate" toml:"audio_bitrate"`
	FFmpegPath   string `json:"ffmpeg_path" toml:"ffmpeg_path"`

	// Cover art settings
	SaveCoverArtInTags    bool `json:"save_cover_art_in_tags" toml:"save_cover_art_in_tags"`
	CoverArtInTagsResize  bool `json:"cover_art_in_tags_resize" toml:"cover_art_in_tags_resize"`
	CoverArtInTagsMaxSize int  `json:"cover_art_in_tags_max_size" toml:"cover_art_in_tags_max_size"`
	ConvertCoverArtToJPG  bool `json:"convert_cover_art_to_jpg" toml:"convert_cover_art_to_jpg"`

	// Playlist settings
	CreatePlaylist         bool   `json:"create_playlist" toml:"create_playlist"`
	PlaylistFormat         string `json:"playlist_format" toml:"playlist_format"` // m3u, pls, wpl, zpl
	PlaylistFileNameFormat string `json:"playlist_file_name_format" toml:"playlist_file_name_format"`
	M3UExtended            bool   `json:"m3u_extended" toml:"m3u_extended"`

	// Tag settings
	ModifyTags bool `json:"modify_tags" toml:"modify_tags"`

	// HistoryPath is the SQLite run ledger. Empty disables history.
	HistoryPath string `json:"history_path" toml:"history_path"`

	// Logging
	LogLevel  string `json:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" toml:"log_format"` // console, json
	LogFile   string `json:"log_file" toml:"log_file"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		OutputPath:            filepath.Join(homeDir, "Music", "YouTube", "{artist}", "{album}"),
		Concurrency:           4,
		Source:                SourceNative,
		DownloadMaxRetries:    3,
		DownloadRetryCooldown: 0.2,
		DownloadRetryExponent: 4.0,
		HTTPTimeout:           60,

		TargetFormat: "mp3",
		AudioBitrate: transcode.DefaultBitrate,
		FFmpegPath:   transcode.FFmpegCommand,

		SaveCoverArtInTags:    true,
		CoverArtInTagsResize:  true,
		CoverArtInTagsMaxSize: 1000,
		ConvertCoverArtToJPG:  true,

		CreatePlaylist:         false,
		PlaylistFormat:         "m3u",
		PlaylistFileNameFormat: "{album}",
		M3UExtended:            true,

		ModifyTags: true,

		HistoryPath: filepath.Join(homeDir, ".local", "share", "tubealbum", "history.db"),

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// DefaultConfigPath returns ~/.config/tubealbum/config.toml.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/tubealbum/config.toml")
}

// Load reads settings from path. Files ending in .json are decoded as JSON,
// anything else as TOML. A missing file yields the defaults. The result is
// normalized and validated.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, settings); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := settings.normalize(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func decode(path string, data []byte, settings *Settings) error {
	if isJSON(path) {
		return json.Unmarshal(data, settings)
	}
	return toml.Unmarshal(data, settings)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Save writes settings to path in the format its extension selects.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = toml.Marshal(s)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Settings) normalize() error {
	s.Source = strings.ToLower(strings.TrimSpace(s.Source))
	s.TargetFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s.TargetFormat), "."))
	s.PlaylistFormat = strings.ToLower(strings.TrimSpace(s.PlaylistFormat))
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))

	for _, p := range []*string{&s.OutputPath, &s.HistoryPath, &s.LogFile, &s.YTDLPPath} {
		expanded, err := ExpandPath(strings.TrimSpace(*p))
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate reports the first unusable setting as a *pipeline.ConfigError.
func (s *Settings) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &pipeline.ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	switch {
	case strings.TrimSpace(s.OutputPath) == "":
		return invalid("output_path", "must be set")
	case s.Concurrency <= 0:
		return invalid("concurrency", "must be at least 1, got %d", s.Concurrency)
	case s.Source != SourceNative && s.Source != SourceYTDLP:
		return invalid("source", "must be %q or %q, got %q", SourceNative, SourceYTDLP, s.Source)
	case !transcode.Supported(s.TargetFormat):
		return invalid("target_format", "unsupported format %q", s.TargetFormat)
	case !s.ToTagConfig().CanTag(s.TargetFormat):
		return invalid("target_format", "tags can only be written to mp3; set modify_tags and save_cover_art_in_tags to false to keep %q", s.TargetFormat)
	case s.DownloadMaxRetries < 1:
		return invalid("download_max_retries", "must be at least 1")
	case s.DownloadRetryCooldown < 0:
		return invalid("download_retry_cooldown", "must not be negative")
	case s.DownloadRetryExponent < 1:
		return invalid("download_retry_exponent", "must be at least 1")
	case s.HTTPTimeout < 0:
		return invalid("http_timeout", "must not be negative")
	case s.CoverArtInTagsMaxSize < 0:
		return invalid("cover_art_in_tags_max_size", "must not be negative")
	case !logging.ValidLevel(s.LogLevel):
		return invalid("log_level", "unknown level %q", s.LogLevel)
	case s.LogFormat != "" && s.LogFormat != "console" && s.LogFormat != "json":
		return invalid("log_format", "must be console or json, got %q", s.LogFormat)
	}
	if _, ok := model.ParsePlaylistFormat(s.PlaylistFormat); !ok {
		return invalid("playlist_format", "unknown format %q", s.PlaylistFormat)
	}
	return nil
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	pf, _ := model.ParsePlaylistFormat(s.PlaylistFormat)
	return &model.PathConfig{
		OutputPath:             s.OutputPath,
		PlaylistFileNameFormat: s.PlaylistFileNameFormat,
		PlaylistFormat:         pf,
	}
}

// ToPipelineOptions converts settings to pipeline.Options.
func (s *Settings) ToPipelineOptions() pipeline.Options {
	return pipeline.Options{
		TargetFormat:  s.TargetFormat,
		FetchAttempts: s.DownloadMaxRetries,
		RetryCooldown: time.Duration(s.DownloadRetryCooldown * float64(time.Second)),
		RetryExponent: s.DownloadRetryExponent,

		OverwriteExisting: s.OverwriteExisting,
	}
}

// ToTagConfig converts settings to audio.TagConfig.
func (s *Settings) ToTagConfig() *audio.TagConfig {
	cfg := audio.DefaultTagConfig()
	if !s.ModifyTags {
		cfg.Artist = audio.TagDoNotModify
		cfg.AlbumArtist = audio.TagDoNotModify
		cfg.Album = audio.TagDoNotModify
		cfg.TrackNumber = audio.TagDoNotModify
		cfg.TrackTitle = audio.TagDoNotModify
		cfg.Comments = audio.TagDoNotModify
	}
	cfg.EmbedCover = s.SaveCoverArtInTags
	cfg.Cover = ioutils.CoverOptions{ForceJPEG: s.ConvertCoverArtToJPG}
	if s.CoverArtInTagsResize {
		cfg.Cover.MaxSize = s.CoverArtInTagsMaxSize
	}
	return cfg
}

// ToLoggingOptions converts settings to logging.Options.
func (s *Settings) ToLoggingOptions() logging.Options {
	opts := logging.Options{Level: s.LogLevel, Format: s.LogFormat}
	if s.LogFile != "" {
		opts.OutputPaths = []string{s.LogFile}
	}
	return opts
}

// HTTPTimeoutDuration returns HTTPTimeout as a time.Duration.
func (s *Settings) HTTPTimeoutDuration() time.Duration {
	return time.Duration(s.HTTPTimeout) * time.Second
}

// ExpandPath replaces a leading "~" with the home directory and cleans the
// result.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}
