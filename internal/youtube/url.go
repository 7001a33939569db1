package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrNotYouTube is returned for URLs outside the YouTube hosts.
	ErrNotYouTube = errors.New("not a YouTube URL")

	// ErrNoPlaylist is returned when a URL carries no playlist id.
	ErrNoPlaylist = errors.New("URL has no playlist id")

	playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// ConvertMusicURL rewrites music.youtube.com links to www.youtube.com and
// drops the share-tracking "si" parameter. Other URLs are returned unchanged.
func ConvertMusicURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host != "music.youtube.com" {
		return u
	}
	parsed.Host = "www.youtube.com"
	query := parsed.Query()
	query.Del("si")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// PlaylistID extracts the playlist id from a YouTube or YouTube Music URL.
// A bare playlist id is accepted as well.
func PlaylistID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if playlistIDPattern.MatchString(raw) {
		return raw, nil
	}

	parsed, err := url.Parse(ConvertMusicURL(raw))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if !youtubeHosts[strings.ToLower(parsed.Hostname())] {
		return "", fmt.Errorf("%w: %s", ErrNotYouTube, parsed.Host)
	}
	id := parsed.Query().Get("list")
	if !playlistIDPattern.MatchString(id) {
		return "", ErrNoPlaylist
	}
	return id, nil
}

// PlaylistURL returns the canonical playlist page URL for id.
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + url.QueryEscape(id)
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
