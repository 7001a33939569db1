package audio

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/handiism/tubealbum/internal/model"
)

// PlaylistEntry is one line of a playlist.
type PlaylistEntry struct {
	// Index orders entries; it is the playlist position of the source item.
	Index    int
	Path     string
	Title    string
	Duration time.Duration
}

// EntriesFromOutcomes returns the successful outcomes as playlist entries in
// playlist order, regardless of the order they finished in.
func EntriesFromOutcomes(outcomes []model.ItemOutcome) []PlaylistEntry {
	entries := lo.FilterMap(outcomes, func(o model.ItemOutcome, _ int) (PlaylistEntry, bool) {
		return PlaylistEntry{
			Index:    o.Ref.Index,
			Path:     o.Path,
			Title:    o.Title,
			Duration: o.Duration,
		}, o.Succeeded() && o.Path != ""
	})
	slices.SortStableFunc(entries, func(a, b PlaylistEntry) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return entries
}

// PlaylistCreator renders playlist files in M3U, PLS, WPL or ZPL format.
// Entry paths are written relative to the album folder.
//
//	creator := NewPlaylistCreator(model.PlaylistFormatM3U, true)
//	content := creator.CreatePlaylist(album, audio.EntriesFromOutcomes(outcomes))
//
//	// #EXTM3U
//	// #EXTINF:180,Artist - Song Title
//	// Song Title.mp3
type PlaylistCreator struct {
	format   model.PlaylistFormat
	extended bool // M3U only: include EXTINF lines
}

// NewPlaylistCreator creates a new PlaylistCreator.
func NewPlaylistCreator(format model.PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{format: format, extended: extended}
}

// CreatePlaylist renders entries as playlist file content.
func (p *PlaylistCreator) CreatePlaylist(album model.AlbumContext, entries []PlaylistEntry) string {
	switch p.format {
	case model.PlaylistFormatPLS:
		return p.createPLS(entries)
	case model.PlaylistFormatWPL:
		return p.createSMIL(album, entries, false)
	case model.PlaylistFormatZPL:
		return p.createSMIL(album, entries, true)
	default:
		return p.createM3U(album, entries)
	}
}

func (p *PlaylistCreator) createM3U(album model.AlbumContext, entries []PlaylistEntry) string {
	var sb strings.Builder
	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}
	for _, e := range entries {
		if p.extended {
			fmt.Fprintf(&sb, "#EXTINF:%d,%s - %s\n", seconds(e.Duration), album.Artist, e.Title)
		}
		sb.WriteString(filepath.Base(e.Path) + "\n")
	}
	return sb.String()
}

// createPLS renders the INI-style format used by Winamp.
func (p *PlaylistCreator) createPLS(entries []PlaylistEntry) string {
	var sb strings.Builder
	sb.WriteString("[playlist]\n")
	for i, e := range entries {
		n := i + 1
		fmt.Fprintf(&sb, "File%d=%s\n", n, filepath.Base(e.Path))
		fmt.Fprintf(&sb, "Title%d=%s\n", n, e.Title)
		fmt.Fprintf(&sb, "Length%d=%d\n", n, seconds(e.Duration))
	}
	fmt.Fprintf(&sb, "NumberOfEntries=%d\n", len(entries))
	sb.WriteString("Version=2\n")
	return sb.String()
}

// createSMIL renders the XML formats of Windows Media Player (WPL) and
// Zune (ZPL). ZPL adds per-track metadata attributes.
func (p *PlaylistCreator) createSMIL(album model.AlbumContext, entries []PlaylistEntry, zune bool) string {
	var sb strings.Builder
	if zune {
		sb.WriteString("<?zpl version=\"2.0\"?>\n")
	} else {
		sb.WriteString("<?wpl version=\"1.0\"?>\n")
	}
	sb.WriteString("<smil>\n  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", escapeXML(album.Title))
	if zune {
		sb.WriteString("    <meta name=\"Generator\" content=\"tubealbum\"/>\n")
		fmt.Fprintf(&sb, "    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(entries))
	}
	sb.WriteString("  </head>\n  <body>\n    <seq>\n")
	for _, e := range entries {
		src := escapeXML(filepath.Base(e.Path))
		if !zune {
			fmt.Fprintf(&sb, "      <media src=\"%s\"/>\n", src)
			continue
		}
		fmt.Fprintf(&sb, "      <media src=\"%s\" albumTitle=\"%s\" albumArtist=\"%s\" trackTitle=\"%s\" trackArtist=\"%s\" duration=\"%d\"/>\n",
			src,
			escapeXML(album.Title),
			escapeXML(album.Artist),
			escapeXML(e.Title),
			escapeXML(album.Artist),
			e.Duration.Milliseconds())
	}
	sb.WriteString("    </seq>\n  </body>\n</smil>\n")
	return sb.String()
}

// seconds returns d in whole seconds, or -1 when unknown.
func seconds(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	return int(d.Round(time.Second) / time.Second)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
