// Package http provides the HTTP client used to fetch playlist pages and
// cover art.
//
//	client := http.NewClient(http.WithTimeout(30 * time.Second))
//	page, err := client.GetString(ctx, playlistURL)
//	cover, err := client.DownloadBytes(ctx, coverURL)
//
// The underlying *http.Client is shared with the YouTube library through
// HTTPClient so all traffic honours the same timeout.
//
// ProgressWriter wraps any io.Writer to report bytes written.
package http
