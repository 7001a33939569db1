package model

import (
	"context"
	"errors"
	"time"
)

// ItemRef locates one playlist entry. It is created by the extractor and
// consumed exactly once by the pipeline.
type ItemRef struct {
	// ID is the host's identifier for the item, e.g. a YouTube video id.
	ID string

	// URL is the watch URL the media source resolves.
	URL string

	// Index is the 1-based position in the playlist. It becomes the track
	// number and orders the playlist file.
	Index int
}

// String returns the most specific human-readable locator for the item.
func (r ItemRef) String() string {
	if r.URL != "" {
		return r.URL
	}
	return r.ID
}

// RawMedia is a downloaded media file waiting to be transcoded.
// It belongs to a single pipeline run and never outlives it.
type RawMedia struct {
	Path      string
	Title     string
	Container string
	Duration  time.Duration
}

// AudioArtifact is a transcoded audio file. Tagging mutates the file in
// place; the artifact is the final output of a successful run.
type AudioArtifact struct {
	Path     string
	Title    string
	Format   string
	Duration time.Duration
}

// Status is the terminal state of an item.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

// Stage names the pipeline step an item failed in.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTranscode Stage = "transcode"
	StageTag       Stage = "tag"
	StageCancelled Stage = "cancelled"
)

// ItemOutcome is the result of processing one ItemRef. Every submitted ref
// yields exactly one outcome.
type ItemOutcome struct {
	Ref    ItemRef
	Status Status

	// Stage is set for failed outcomes only.
	Stage Stage

	// Err is the failure cause. It is nil on success.
	Err error

	// Path is the produced audio file. Failed tag-stage outcomes keep the
	// path because the untagged audio stays on disk.
	Path string

	// Title is the sanitized track title, when one was derived.
	Title string

	// Duration is the media length reported by the source, if known.
	Duration time.Duration

	Elapsed time.Duration
}

// Succeeded reports whether the item was fully processed.
func (o ItemOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Reason returns a one-line failure description, or "" on success.
func (o ItemOutcome) Reason() string {
	if o.Succeeded() {
		return ""
	}
	if o.Err == nil {
		return string(o.Stage)
	}
	return o.Err.Error()
}

// Cancelled reports whether the item failed because the run was cancelled.
func (o ItemOutcome) Cancelled() bool {
	if o.Succeeded() {
		return false
	}
	return o.Stage == StageCancelled || errors.Is(o.Err, context.Canceled)
}
