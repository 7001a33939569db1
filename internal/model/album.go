package model

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxFolderPathLen keeps computed album folders under the Windows MAX_PATH
// directory limit.
const maxFolderPathLen = 248

var (
	invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	multiSpace       = regexp.MustCompile(`\s+`)
	lower            = cases.Lower(language.Und)
)

// AlbumContext is the album-wide metadata shared by every item of a run.
//
// It is created once from the extractor's result and handed read-only to all
// workers, so it must never be mutated after NewAlbumContext returns.
//
// Example:
//
//	cfg := &PathConfig{OutputPath: "~/Music/{artist}/{album}"}
//	album := NewAlbumContext("The Band", "First Album", coverURL, cfg)
//	// album.OutputDir = "~/Music/The Band/First Album"
type AlbumContext struct {
	// Artist is the album artist name.
	Artist string

	// Title is the album title.
	Title string

	// CoverURL is where the cover art is downloaded from.
	// Empty means the album has no cover.
	CoverURL string

	// OutputDir is the directory every audio file of the run is written to.
	OutputDir string

	// PlaylistPath is the computed playlist file path.
	PlaylistPath string
}

// NewAlbumContext creates an AlbumContext with paths computed from cfg.
//
// cfg.OutputPath supports the {artist} and {album} placeholders; substituted
// values are sanitized so that neither can introduce a path separator.
func NewAlbumContext(artist, title, coverURL string, cfg *PathConfig) AlbumContext {
	album := AlbumContext{
		Artist:   artist,
		Title:    title,
		CoverURL: coverURL,
	}
	album.OutputDir = album.folderPath(cfg)
	album.PlaylistPath = album.playlistPath(cfg)
	return album
}

// HasCover reports whether the album has cover art to embed.
func (a AlbumContext) HasCover() bool {
	return a.CoverURL != ""
}

// ArtistTokens returns the lower-cased words of the artist name.
func (a AlbumContext) ArtistTokens() []string {
	return strings.Fields(lower.String(a.Artist))
}

// PathConfig holds path formatting settings for an album run.
//
//	cfg := &PathConfig{
//	    OutputPath:             "/home/user/Music/{artist}/{album}",
//	    PlaylistFileNameFormat: "{album}",
//	    PlaylistFormat:         PlaylistFormatM3U,
//	}
type PathConfig struct {
	// OutputPath is the directory template for the album.
	OutputPath string

	// PlaylistFileNameFormat is the playlist filename template (without extension).
	PlaylistFileNameFormat string

	// PlaylistFormat determines the playlist file type and extension.
	PlaylistFormat PlaylistFormat
}

// PlaylistFormat represents supported playlist file formats.
type PlaylistFormat int

const (
	// PlaylistFormatM3U creates .m3u playlist files (most widely supported).
	PlaylistFormatM3U PlaylistFormat = iota

	// PlaylistFormatPLS creates .pls playlist files (used by Winamp).
	PlaylistFormatPLS

	// PlaylistFormatWPL creates .wpl playlist files (Windows Media Player).
	PlaylistFormatWPL

	// PlaylistFormatZPL creates .zpl playlist files (Zune Media Player).
	PlaylistFormatZPL
)

// ParsePlaylistFormat maps a name such as "m3u" to a PlaylistFormat.
func ParsePlaylistFormat(name string) (PlaylistFormat, bool) {
	switch lower.String(strings.TrimSpace(name)) {
	case "m3u", "":
		return PlaylistFormatM3U, true
	case "pls":
		return PlaylistFormatPLS, true
	case "wpl":
		return PlaylistFormatWPL, true
	case "zpl":
		return PlaylistFormatZPL, true
	default:
		return PlaylistFormatM3U, false
	}
}

// Extension returns the file extension for the playlist format, including the dot.
func (pf PlaylistFormat) Extension() string {
	switch pf {
	case PlaylistFormatPLS:
		return ".pls"
	case PlaylistFormatWPL:
		return ".wpl"
	case PlaylistFormatZPL:
		return ".zpl"
	default:
		return ".m3u"
	}
}

func (pf PlaylistFormat) String() string {
	return strings.TrimPrefix(pf.Extension(), ".")
}

func (a AlbumContext) folderPath(cfg *PathConfig) string {
	path := cfg.OutputPath
	path = strings.ReplaceAll(path, "{artist}", sanitizePathElement(a.Artist))
	path = strings.ReplaceAll(path, "{album}", sanitizePathElement(a.Title))

	if len(path) >= maxFolderPathLen {
		path = path[:maxFolderPathLen-1]
	}
	return filepath.Clean(path)
}

func (a AlbumContext) playlistPath(cfg *PathConfig) string {
	name := cfg.PlaylistFileNameFormat
	if name == "" {
		name = "{album}"
	}
	name = strings.ReplaceAll(name, "{album}", a.Title)
	name = strings.ReplaceAll(name, "{artist}", a.Artist)
	name = sanitizePathElement(name)
	if name == "" {
		name = "playlist"
	}
	return filepath.Join(a.OutputDir, name+cfg.PlaylistFormat.Extension())
}

// sanitizePathElement replaces characters that are invalid in a single
// file or folder name.
func sanitizePathElement(name string) string {
	name = invalidPathChars.ReplaceAllString(name, "_")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	return strings.TrimSpace(trailingDots.ReplaceAllString(name, ""))
}
