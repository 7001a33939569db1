// Package download orchestrates an album download from a YouTube playlist.
//
// # Manager
//
// The Manager coordinates the entire process:
//
//  1. Extract album metadata and items from the playlist
//  2. Create and lock the album folder
//  3. Run every item through the fetch, transcode and tag pipeline
//  4. Write a playlist of the successful tracks (optional)
//  5. Record the run in the history database (optional)
//
// # Basic Usage
//
//	manager := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	if err := manager.Initialize(ctx, "https://music.youtube.com/playlist?list=OLAK5uy_..."); err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := manager.StartDownloads(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Pool
//
// Pool runs items with a fixed number of workers. It returns exactly one
// outcome per submitted item, in completion order, and one item's failure
// never affects another. Progress is reported from a single goroutine with a
// strictly increasing Done count.
//
// # Retry Logic
//
// Failed stream downloads are retried with exponential backoff, configurable
// via settings.DownloadMaxRetries and settings.DownloadRetryCooldown.
package download
