package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ioutils "github.com/handiism/tubealbum/internal/io"
	"github.com/handiism/tubealbum/internal/logging"
	"github.com/handiism/tubealbum/internal/model"
)

// Options tunes a Pipeline.
type Options struct {
	// TargetFormat is the audio container the transcoder produces, e.g. "mp3".
	TargetFormat string

	// FetchAttempts is how many times saving a stream is tried. Values below
	// one are treated as one.
	FetchAttempts int

	// RetryCooldown is the wait before the first retry; every further retry
	// waits RetryExponent times longer.
	RetryCooldown time.Duration
	RetryExponent float64

	// OverwriteExisting replaces files left by earlier runs instead of
	// writing "<title> (2).<ext>". Items of the same run still never share
	// a file.
	OverwriteExisting bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		TargetFormat:  "mp3",
		FetchAttempts: 3,
		RetryCooldown: 200 * time.Millisecond,
		RetryExponent: 4,
	}
}

// Pipeline runs the fetch, transcode and tag stages for one item at a time.
// A single Pipeline is safe for concurrent use by many workers.
type Pipeline struct {
	source     MediaSource
	transcoder Transcoder
	tagger     Tagger
	opts       Options
	logger     *slog.Logger

	mu      sync.Mutex
	claimed map[string]bool
}

// New creates a Pipeline. A nil logger discards log output.
func New(source MediaSource, transcoder Transcoder, tagger Tagger, opts Options, logger *slog.Logger) *Pipeline {
	if strings.TrimSpace(opts.TargetFormat) == "" {
		opts.TargetFormat = DefaultOptions().TargetFormat
	}
	if opts.FetchAttempts < 1 {
		opts.FetchAttempts = 1
	}
	if opts.RetryExponent <= 0 {
		opts.RetryExponent = 1
	}
	return &Pipeline{
		source:     source,
		transcoder: transcoder,
		tagger:     tagger,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		claimed:    make(map[string]bool),
	}
}

// Run processes ref and always returns an outcome. Failures, including
// panics raised by collaborators, are reported through the outcome.
func (p *Pipeline) Run(ctx context.Context, ref model.ItemRef, album model.AlbumContext) (outcome model.ItemOutcome) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Cancelled(ref, err)
	}

	r := &itemRun{
		p:     p,
		ref:   ref,
		album: album,
		runID: ioutils.NewRunID(),
		stage: model.StageFetch,
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = r.fail(fmt.Errorf("panic: %v", rec))
		}
		r.cleanup()
		outcome.Elapsed = time.Since(start)
		if outcome.Title == "" {
			outcome.Title = r.title
		}
		p.logOutcome(outcome, r.runID)
	}()

	return r.execute(ctx)
}

func (p *Pipeline) logOutcome(outcome model.ItemOutcome, runID string) {
	attrs := []logging.Attr{
		logging.String(logging.FieldItemID, outcome.Ref.ID),
		logging.String(logging.FieldURL, outcome.Ref.URL),
		logging.String(logging.FieldRunID, runID),
		logging.Duration("elapsed", outcome.Elapsed),
	}
	if outcome.Succeeded() {
		p.logger.Info("item finished", logging.Args(append(attrs, logging.String("path", outcome.Path))...)...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldStage, string(outcome.Stage)), logging.Error(outcome.Err))
	p.logger.Warn("item failed", logging.Args(attrs...)...)
}

// itemRun carries the state of one Run call. The temp paths it records are
// removed by cleanup on every exit path.
type itemRun struct {
	p     *Pipeline
	ref   model.ItemRef
	album model.AlbumContext
	runID string
	stage model.Stage
	title string

	rawPath      string
	partialPath  string
	reservedPath string
}

func (r *itemRun) execute(ctx context.Context) model.ItemOutcome {
	raw, err := r.fetch(ctx)
	if err != nil {
		return r.fail(err)
	}

	r.stage = model.StageTranscode
	artifact, err := r.transcode(ctx, raw)
	if err != nil {
		return r.fail(err)
	}

	r.stage = model.StageTag
	if err := r.p.tagger.Apply(ctx, artifact, r.album, r.title, r.ref.Index); err != nil {
		out := r.fail(err)
		out.Path = artifact.Path
		out.Duration = artifact.Duration
		return out
	}

	return model.ItemOutcome{
		Ref:      r.ref,
		Status:   model.StatusSuccess,
		Path:     artifact.Path,
		Title:    r.title,
		Duration: artifact.Duration,
	}
}

func (r *itemRun) fail(err error) model.ItemOutcome {
	out := failed(r.ref, r.stage, err)
	out.Title = r.title
	return out
}

func (r *itemRun) fetch(ctx context.Context) (model.RawMedia, error) {
	media, err := r.p.source.Resolve(ctx, r.ref)
	if err != nil {
		return model.RawMedia{}, fmt.Errorf("resolve %s: %w", r.ref, err)
	}

	r.title = ioutils.SanitizeTitle(media.Title(), r.album.ArtistTokens())
	if strings.TrimSpace(r.title) == "" {
		return model.RawMedia{}, fmt.Errorf("%w: %q", ErrEmptyTitle, media.Title())
	}

	container := strings.TrimPrefix(strings.TrimSpace(media.Container()), ".")
	if container == "" {
		container = "media"
	}
	r.rawPath = ioutils.TempPath(r.album.OutputDir, ioutils.FileStem(r.title), r.runID, container)

	attempts := r.p.opts.FetchAttempts
	for tries := 0; tries < attempts; tries++ {
		err = media.Save(ctx, r.rawPath)
		if err == nil {
			break
		}
		if rmErr := ioutils.RemoveIfExists(r.rawPath); rmErr != nil {
			r.p.logger.Warn("remove partial download", logging.String("path", r.rawPath), logging.Error(rmErr))
		}
		if ctx.Err() != nil || tries == attempts-1 {
			break
		}
		r.p.logger.Debug("retrying download",
			logging.String(logging.FieldItemID, r.ref.ID),
			logging.Int("attempt", tries+2),
			logging.Int("attempts", attempts),
			logging.Error(err),
		)
		r.p.waitForRetry(ctx, tries)
	}
	if err != nil {
		return model.RawMedia{}, fmt.Errorf("download: %w", err)
	}

	return model.RawMedia{
		Path:      r.rawPath,
		Title:     r.title,
		Container: container,
		Duration:  media.Duration(),
	}, nil
}

func (r *itemRun) transcode(ctx context.Context, raw model.RawMedia) (model.AudioArtifact, error) {
	format := r.p.opts.TargetFormat
	stem := ioutils.FileStem(r.title)

	finalPath, reserved, err := r.p.outputPath(r.album.OutputDir, stem, format)
	if err != nil {
		return model.AudioArtifact{}, fmt.Errorf("reserve output file: %w", err)
	}
	if reserved {
		r.reservedPath = finalPath
	}
	r.partialPath = ioutils.TempPath(r.album.OutputDir, stem, r.runID, "partial."+format)

	artifact, err := r.p.transcoder.Convert(ctx, raw, r.partialPath, format)
	if err != nil {
		return model.AudioArtifact{}, err
	}
	if artifact.Path == "" {
		artifact.Path = r.partialPath
	}
	if err := os.Rename(artifact.Path, finalPath); err != nil {
		return model.AudioArtifact{}, fmt.Errorf("move %s into place: %w", filepath.Base(artifact.Path), err)
	}

	// The final file now belongs to the caller.
	r.partialPath = ""
	r.reservedPath = ""

	if err := ioutils.RemoveIfExists(raw.Path); err != nil {
		r.p.logger.Warn("remove downloaded media",
			logging.String(logging.FieldItemID, r.ref.ID),
			logging.String("path", raw.Path),
			logging.Error(err),
		)
	}
	r.rawPath = ""

	artifact.Path = finalPath
	if artifact.Title == "" {
		artifact.Title = r.title
	}
	if artifact.Format == "" {
		artifact.Format = format
	}
	if artifact.Duration == 0 {
		artifact.Duration = raw.Duration
	}
	return artifact, nil
}

// outputPath picks the final file for stem. In overwrite mode the plain name
// is used unless another item of this pipeline already claimed it; otherwise
// a fresh name is reserved on disk and reserved is true.
func (p *Pipeline) outputPath(dir, stem, format string) (path string, reserved bool, err error) {
	if p.opts.OverwriteExisting {
		path = filepath.Join(dir, stem+"."+strings.TrimPrefix(format, "."))
		p.mu.Lock()
		taken := p.claimed[path]
		p.claimed[path] = true
		p.mu.Unlock()
		if !taken {
			return path, false, nil
		}
	}
	path, err = ioutils.ReservePath(dir, stem, format)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

func (r *itemRun) cleanup() {
	for _, path := range []string{r.rawPath, r.partialPath, r.reservedPath} {
		if err := ioutils.RemoveIfExists(path); err != nil {
			r.p.logger.Warn("remove intermediate file",
				logging.String(logging.FieldItemID, r.ref.ID),
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}
	r.rawPath, r.partialPath, r.reservedPath = "", "", ""
}

func (p *Pipeline) waitForRetry(ctx context.Context, tries int) {
	cooldown := float64(p.opts.RetryCooldown) * math.Pow(p.opts.RetryExponent, float64(tries))
	timer := time.NewTimer(time.Duration(cooldown))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// IsCancellation reports whether err stems from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
