// Package pipeline turns one playlist item into a tagged audio file.
//
// Every item goes through three fixed stages:
//
//  1. fetch: MediaSource resolves the item, the title is sanitized and the
//     stream is saved to a hidden, run-scoped temp file
//  2. transcode: the Transcoder writes a partial audio file which is renamed
//     onto an atomically reserved final name
//  3. tag: the Tagger embeds album metadata and cover art
//
// Run never panics and never returns an error; every failure becomes an
// ItemOutcome carrying a *StageError. Intermediate files are removed on every
// exit path. Only the final audio file outlives a run, and it is kept even when
// tagging fails.
//
//	p := pipeline.New(source, transcoder, tagger, pipeline.DefaultOptions(), logger)
//	outcome := p.Run(ctx, ref, album)
//	if !outcome.Succeeded() {
//	    fmt.Printf("%s failed during %s: %v\n", outcome.Ref, outcome.Stage, outcome.Err)
//	}
//
// The pipelinetest subpackage provides stub collaborators for tests.
package pipeline
