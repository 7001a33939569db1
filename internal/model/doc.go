// Package model defines the core data structures shared by the extractor,
// the per-item pipeline and the work pool.
//
// # Album
//
// AlbumContext holds the album-wide metadata and computed output paths:
//
//	album := model.NewAlbumContext("Artist", "Title", coverURL, pathConfig)
//	fmt.Println(album.OutputDir)    // Where audio files are written
//	fmt.Println(album.PlaylistPath) // Where the playlist file goes
//
// # Items
//
// ItemRef identifies one playlist entry; ItemOutcome is its terminal result:
//
//	for _, o := range outcomes {
//	    if !o.Succeeded() {
//	        fmt.Printf("%s failed in %s: %s\n", o.Ref, o.Stage, o.Reason())
//	    }
//	}
//
// RawMedia and AudioArtifact describe the intermediate and final files of a
// single pipeline run.
//
// # Path Configuration
//
// PathConfig controls how album paths are computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    OutputPath:             "/music/{artist}/{album}",
//	    PlaylistFileNameFormat: "{album}",
//	    PlaylistFormat:         model.PlaylistFormatM3U,
//	}
//
// Available placeholders: {artist}, {album}
package model
