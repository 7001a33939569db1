// Package youtube adapts YouTube to tubealbum's pipeline.
//
// Extractor reads an album playlist page (falling back to the playlist API
// of github.com/kkdai/youtube) and yields the artist, album title, cover URL
// and ordered item references. Source and YTDLPSource implement
// pipeline.MediaSource: the former streams formats natively, the latter
// drives an external yt-dlp binary.
//
//	ext, err := youtube.NewExtractor(client, logger).Extract(ctx, "https://music.youtube.com/playlist?list=OLAK5uy_...")
//	src := youtube.NewSource(client, logger)
package youtube
