package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bogem/id3v2"
	"golang.org/x/sync/singleflight"

	"github.com/handiism/tubealbum/internal/http"
	ioutils "github.com/handiism/tubealbum/internal/io"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
type TagEditAction int

const (
	// TagEmpty removes the frame.
	TagEmpty TagEditAction = iota

	// TagModify writes the value from the playlist.
	TagModify

	// TagDoNotModify leaves the existing frame unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
type TagConfig struct {
	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// AlbumArtist controls the TPE2 (Album artist) frame.
	AlbumArtist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// TrackNumber controls the TRCK (Track number) frame.
	TrackNumber TagEditAction

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction

	// EmbedCover embeds the album cover as the front-cover APIC frame.
	EmbedCover bool

	// Cover controls resizing and re-encoding of the embedded picture.
	Cover ioutils.CoverOptions
}

// DefaultTagConfig writes every field, clears comments and embeds a cover of
// at most 1000x1000 pixels as JPEG.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		Artist:      TagModify,
		AlbumArtist: TagModify,
		Album:       TagModify,
		TrackNumber: TagModify,
		TrackTitle:  TagModify,
		Comments:    TagEmpty,
		EmbedCover:  true,
		Cover:       ioutils.CoverOptions{MaxSize: 1000, ForceJPEG: true},
	}
}

// Writes reports whether applying the config changes anything in a file.
func (c *TagConfig) Writes() bool {
	for _, action := range []TagEditAction{c.Artist, c.AlbumArtist, c.Album, c.TrackNumber, c.TrackTitle, c.Comments} {
		if action != TagDoNotModify {
			return true
		}
	}
	return c.EmbedCover
}

// CanTag reports whether files of the given format can carry the configured
// tags. Any format passes when nothing is written.
func (c *TagConfig) CanTag(format string) bool {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	return f == "" || f == "mp3" || !c.Writes()
}

type cover struct {
	data []byte
	mime string
}

// Tagger writes ID3 tags to MP3 files.
//
// Cover art is downloaded once per URL no matter how many workers tag
// concurrently; later calls are served from memory.
//
//	tagger := audio.NewTagger(httpClient, audio.DefaultTagConfig(), logger)
//	err := tagger.Apply(ctx, artifact, album, "Song", 3)
type Tagger struct {
	config *TagConfig
	client *http.Client
	images *ioutils.ImageService
	logger *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	covers map[string]cover
}

// NewTagger creates a new Tagger. If config is nil, DefaultTagConfig() is used.
func NewTagger(client *http.Client, config *TagConfig, logger *slog.Logger) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	if client == nil {
		client = http.NewClient()
	}
	return &Tagger{
		config: config,
		client: client,
		images: ioutils.NewImageService(),
		logger: logging.NewComponentLogger(logger, "tagger"),
		covers: make(map[string]cover),
	}
}

// Apply writes the album metadata, title, track number and cover art into
// the artifact's file. A cover that cannot be downloaded fails the call and
// leaves the file untouched. When the config writes nothing the file is not
// opened at all.
func (t *Tagger) Apply(ctx context.Context, artifact model.AudioArtifact, album model.AlbumContext, title string, track int) error {
	if !t.config.Writes() {
		return ctx.Err()
	}
	if !t.config.CanTag(artifact.Format) {
		return fmt.Errorf("ID3 tagging does not support %q files", artifact.Format)
	}

	var pic *cover
	if t.config.EmbedCover && album.HasCover() {
		c, err := t.cover(ctx, album.CoverURL)
		if err != nil {
			return fmt.Errorf("cover art: %w", err)
		}
		pic = &c
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tag, err := id3v2.Open(artifact.Path, id3v2.Options{Parse: true})
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		tag = id3v2.NewEmptyTag()
	}
	defer tag.Close()

	t.updateStringTags(tag, album, title, track)
	if pic != nil {
		t.updateArtwork(tag, *pic)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	t.logger.Debug("tags written",
		logging.String("path", artifact.Path),
		logging.Int("track", track),
		logging.Bool("cover", pic != nil),
	)
	return nil
}

func (t *Tagger) cover(ctx context.Context, url string) (cover, error) {
	t.mu.RLock()
	c, ok := t.covers[url]
	t.mu.RUnlock()
	if ok {
		return c, nil
	}

	// One download serves every waiting caller and outlives the caller that
	// started it; each caller stops waiting when its own ctx is done.
	fetchCtx := context.WithoutCancel(ctx)
	ch := t.group.DoChan(url, func() (any, error) {
		t.mu.RLock()
		c, ok := t.covers[url]
		t.mu.RUnlock()
		if ok {
			return c, nil
		}

		raw, err := t.client.DownloadBytes(fetchCtx, url)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, errors.New("empty response")
		}
		data, mime, err := t.images.PrepareCover(fetchCtx, raw, t.config.Cover)
		if err != nil {
			return nil, err
		}
		c = cover{data: data, mime: mime}
		t.mu.Lock()
		t.covers[url] = c
		t.mu.Unlock()
		t.logger.Debug("cover art cached", logging.String("url", url), logging.Int("bytes", len(data)))
		return c, nil
	})

	select {
	case <-ctx.Done():
		return cover{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return cover{}, res.Err
		}
		return res.Val.(cover), nil
	}
}

// updateStringTags updates text-based ID3 frames based on configuration.
func (t *Tagger) updateStringTags(tag *id3v2.Tag, album model.AlbumContext, title string, track int) {
	switch t.config.Artist {
	case TagEmpty:
		tag.DeleteFrames("TPE1")
	case TagModify:
		tag.SetArtist(album.Artist)
	}

	switch t.config.AlbumArtist {
	case TagEmpty:
		tag.DeleteFrames("TPE2")
	case TagModify:
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, album.Artist)
	}

	switch t.config.Album {
	case TagEmpty:
		tag.DeleteFrames("TALB")
	case TagModify:
		tag.SetAlbum(album.Title)
	}

	switch t.config.TrackTitle {
	case TagEmpty:
		tag.DeleteFrames("TIT2")
	case TagModify:
		tag.SetTitle(title)
	}

	switch t.config.TrackNumber {
	case TagEmpty:
		tag.DeleteFrames("TRCK")
	case TagModify:
		if track > 0 {
			tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(track))
		}
	}

	if t.config.Comments == TagEmpty {
		tag.DeleteFrames(tag.CommonID("Comments"))
	}
}

// updateArtwork replaces any attached pictures with the front cover.
func (t *Tagger) updateArtwork(tag *id3v2.Tag, c cover) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    c.mime,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     c.data,
	})
}
