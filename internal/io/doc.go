// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Filename and track-title sanitization
//   - Collision-safe temp and output file naming
//   - Directory creation and best-effort removal
//   - Cover art resizing and format conversion
//
// # Title Sanitization
//
// SanitizeTitle turns a video title into a filesystem-safe track title,
// dropping noise such as "(Official Video)" and the artist's name:
//
//	title := ioutils.SanitizeTitle("The Band - Song (Official Video) [HD]", ioutils.ArtistTokens("The Band"))
//	// title == "Song"
//
// # File Naming
//
// Intermediate files carry a per-run identifier so concurrent items with
// identical titles never share a path:
//
//	runID := ioutils.NewRunID()
//	raw := ioutils.TempPath(dir, "Song", runID, "mp4") // <dir>/.Song.<runID>.mp4
//	final, err := ioutils.ReservePath(dir, "Song", "mp3") // <dir>/Song.mp3 or <dir>/Song (2).mp3
//
// # Image Processing
//
//	svc := ioutils.NewImageService()
//	cover, mime, err := svc.PrepareCover(ctx, thumbnail, ioutils.CoverOptions{MaxSize: 1000, ForceJPEG: true})
package ioutils
