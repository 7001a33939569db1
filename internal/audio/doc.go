// Package audio writes ID3 metadata into transcoded files and renders
// album playlists.
//
// # ID3 Tagging
//
//	tagger := audio.NewTagger(httpClient, audio.DefaultTagConfig(), logger)
//	err := tagger.Apply(ctx, artifact, album, "Song Title", 3)
//
// The tagger writes:
//   - Artist and Album Artist
//   - Album Title and Track Title
//   - Track Number
//   - Cover Art as a single front-cover picture
//
// Cover art is downloaded once per URL and shared by all concurrent calls.
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(model.PlaylistFormatM3U, true)
//	content := creator.CreatePlaylist(album, audio.EntriesFromOutcomes(outcomes))
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
