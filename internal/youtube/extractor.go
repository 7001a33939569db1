package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	tahttp "github.com/handiism/tubealbum/internal/http"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
	"github.com/handiism/tubealbum/internal/pipeline"
)

var initialDataPattern = regexp.MustCompile(`(?s)var\s+ytInitialData\s*=\s*(\{.*?\});\s*</script>`)

// JSON paths into ytInitialData.
const (
	pathSubtitle     = "header.playlistHeaderRenderer.subtitle.simpleText"
	pathOwner        = "header.playlistHeaderRenderer.ownerText.runs.0.text"
	pathAlbumName    = "metadata.playlistMetadataRenderer.albumName"
	pathPlaylistName = "metadata.playlistMetadataRenderer.title"
	pathHeaderTitle  = "header.playlistHeaderRenderer.title.simpleText"
	pathThumbnails   = "sidebar.playlistSidebarRenderer.items.0.playlistSidebarPrimaryInfoRenderer.thumbnailRenderer.playlistCustomThumbnailRenderer.thumbnail.thumbnails"
	pathVideoList    = "contents.twoColumnBrowseResultsRenderer.tabs.0.tabRenderer.content.sectionListRenderer.contents.0.itemSectionRenderer.contents.0.playlistVideoListRenderer.contents"
)

// ErrNoInitialData is returned when a page has no parsable ytInitialData.
var ErrNoInitialData = errors.New("ytInitialData not found")

// Extractor reads album metadata and item references from a YouTube
// playlist page. When the page cannot be parsed it falls back to the
// playlist API of github.com/kkdai/youtube.
type Extractor struct {
	client  *tahttp.Client
	yt      *youtube.Client
	logger  *slog.Logger
	pageURL func(id string) string
}

// NewExtractor creates an Extractor. The kkdai fallback shares client's
// underlying *http.Client.
func NewExtractor(client *tahttp.Client, logger *slog.Logger) *Extractor {
	if client == nil {
		client = tahttp.NewClient()
	}
	return &Extractor{
		client:  client,
		yt:      &youtube.Client{HTTPClient: client.HTTPClient()},
		logger:  logging.NewComponentLogger(logger, "extractor"),
		pageURL: PlaylistURL,
	}
}

// Extract implements pipeline.Extractor. Every error is an
// *pipeline.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, playlistURL string) (pipeline.Extraction, error) {
	fail := func(err error) (pipeline.Extraction, error) {
		return pipeline.Extraction{}, &pipeline.ExtractionError{URL: playlistURL, Err: err}
	}

	id, err := PlaylistID(playlistURL)
	if err != nil {
		return fail(err)
	}

	page, pageErr := e.client.GetString(ctx, e.pageURL(id))
	if pageErr == nil {
		var ext pipeline.Extraction
		ext, pageErr = ParsePage(page)
		if pageErr == nil && len(ext.Items) > 0 {
			e.logger.Info("playlist extracted",
				logging.String("playlist_id", id),
				logging.String("artist", ext.Artist),
				logging.String("album", ext.Album),
				logging.Int("items", len(ext.Items)),
			)
			return ext, nil
		}
		if pageErr == nil {
			pageErr = errors.New("page lists no videos")
		}
	}
	if ctx.Err() != nil {
		return fail(ctx.Err())
	}
	if e.yt == nil {
		return fail(pageErr)
	}

	e.logger.Warn("playlist page unusable, falling back to playlist API",
		logging.String("playlist_id", id),
		logging.Error(pageErr),
	)
	ext, err := e.fromAPI(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("%w (page: %v)", err, pageErr))
	}
	return ext, nil
}

func (e *Extractor) fromAPI(ctx context.Context, id string) (pipeline.Extraction, error) {
	playlist, err := e.yt.GetPlaylistContext(ctx, PlaylistURL(id))
	if err != nil {
		return pipeline.Extraction{}, fmt.Errorf("fetch playlist: %w", err)
	}

	entries := lo.Filter(playlist.Videos, func(v *youtube.PlaylistEntry, _ int) bool {
		return v != nil && v.ID != ""
	})
	if len(entries) == 0 {
		return pipeline.Extraction{}, errors.New("playlist has no videos")
	}

	ext := pipeline.Extraction{
		Artist: strings.TrimSuffix(strings.TrimSpace(playlist.Author), " - Topic"),
		Album:  strings.TrimPrefix(strings.TrimSpace(playlist.Title), "Album - "),
		// Playlists without a custom thumbnail use their first video's.
		CoverURL: "https://i.ytimg.com/vi/" + entries[0].ID + "/hqdefault.jpg",
		Items: lo.Map(entries, func(v *youtube.PlaylistEntry, i int) model.ItemRef {
			return model.ItemRef{ID: v.ID, URL: WatchURL(v.ID), Index: i + 1}
		}),
	}
	return ext, nil
}

// ParsePage extracts album metadata and items from the HTML of a playlist
// page. The artist, album and cover are best-effort; the item list is not.
func ParsePage(html string) (pipeline.Extraction, error) {
	match := initialDataPattern.FindStringSubmatch(html)
	if match == nil {
		return pipeline.Extraction{}, ErrNoInitialData
	}
	data := match[1]
	if !gjson.Valid(data) {
		return pipeline.Extraction{}, fmt.Errorf("%w: invalid JSON", ErrNoInitialData)
	}

	ext := pipeline.Extraction{
		Artist:   artistName(data),
		Album:    firstString(data, pathAlbumName, pathPlaylistName, pathHeaderTitle),
		CoverURL: largestThumbnail(gjson.Get(data, pathThumbnails)),
	}

	gjson.Get(data, pathVideoList).ForEach(func(_, entry gjson.Result) bool {
		renderer := entry.Get("playlistVideoRenderer")
		id := renderer.Get("videoId").String()
		if id == "" {
			// continuation items and removed videos
			return true
		}
		ext.Items = append(ext.Items, model.ItemRef{
			ID:    id,
			URL:   WatchURL(id),
			Index: len(ext.Items) + 1,
		})
		return true
	})

	if len(ext.Items) == 0 {
		return ext, errors.New("no playlist videos in ytInitialData")
	}
	return ext, nil
}

// artistName reads the "Artist • Album • 2020" subtitle of album playlists,
// falling back to the playlist owner.
func artistName(data string) string {
	if subtitle := gjson.Get(data, pathSubtitle).String(); subtitle != "" {
		artist, _, _ := strings.Cut(subtitle, " • ")
		if artist = strings.TrimSpace(artist); artist != "" {
			return artist
		}
	}
	return strings.TrimSuffix(strings.TrimSpace(gjson.Get(data, pathOwner).String()), " - Topic")
}

func firstString(data string, paths ...string) string {
	for _, p := range paths {
		if r := gjson.Get(data, p); r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
			return strings.TrimSpace(r.String())
		}
	}
	return ""
}

// largestThumbnail returns the url of the last (largest) thumbnail.
func largestThumbnail(thumbnails gjson.Result) string {
	list := thumbnails.Array()
	if len(list) == 0 {
		return ""
	}
	u := list[len(list)-1].Get("url").String()
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}
