package pipeline

import (
	"context"
	"time"

	"github.com/handiism/tubealbum/internal/model"
)

// Media is a resolved, not yet downloaded, media stream.
type Media interface {
	// Title is the host's display title, before sanitization.
	Title() string

	// Container is the file extension of the stream, e.g. "mp4" or "webm".
	Container() string

	Duration() time.Duration

	// Save writes the stream to path. Implementations may leave a partial
	// file behind on error; the pipeline removes it.
	Save(ctx context.Context, path string) error
}

// MediaSource resolves item references into downloadable media. It must pick
// the highest-quality audio-bearing stream available.
type MediaSource interface {
	Resolve(ctx context.Context, ref model.ItemRef) (Media, error)
}

// Transcoder converts a raw media file into an audio file at dst.
type Transcoder interface {
	Convert(ctx context.Context, src model.RawMedia, dst, outputFormat string) (model.AudioArtifact, error)
}

// Tagger embeds album metadata and cover art into an audio file.
type Tagger interface {
	Apply(ctx context.Context, artifact model.AudioArtifact, album model.AlbumContext, title string, track int) error
}

// Extraction is what an Extractor learns about a playlist.
type Extraction struct {
	Artist   string
	Album    string
	CoverURL string
	Items    []model.ItemRef
}

// Extractor turns a playlist URL into album metadata and item references.
// Any error it returns is fatal to the run.
type Extractor interface {
	Extract(ctx context.Context, playlistURL string) (Extraction, error)
}
