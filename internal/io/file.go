package ioutils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	invalidChars     = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	multiSpace       = regexp.MustCompile(`\s+`)
	emptyBrackets    = regexp.MustCompile(`\(\s*\)|\[\s*\]|\{\s*\}`)
	edgeSeparators   = " -_|~.,:;"
	lowerCaser       = cases.Lower(language.Und)
	maxFileStemBytes = 180
)

// noiseKeywords are phrases video titles commonly carry that do not belong
// in a track title. Longer phrases come first so they win over their parts.
var noiseKeywords = []string{
	"official music video",
	"official lyric video",
	"official audio",
	"official video",
	"lyric video",
	"music video",
	"visualizer",
	"lyrics",
	"audio",
	"remastered",
	"hd",
	"hq",
	"4k",
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")     // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")           // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = trailingDots.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// SanitizeTitle turns a video title into a track title.
//
// Noise phrases such as "Official Video" or "[HD]" are dropped, the artist's
// name is removed wherever it appears as a phrase, and leftover artist tokens
// are stripped from either end of the title (the "Artist - Song" layout).
// Interior words are kept even when they match an artist token, so
// "Over the Rainbow" by "The Band" stays intact. The result contains no
// filesystem-reserved characters. An empty string means nothing usable was left.
func SanitizeTitle(title string, artistTokens []string) string {
	cleaned := " " + multiSpace.ReplaceAllString(title, " ") + " "

	for _, keyword := range noiseKeywords {
		cleaned = removeWord(cleaned, keyword)
	}

	tokens := make([]string, 0, len(artistTokens))
	for _, token := range artistTokens {
		token = strings.TrimSpace(lowerCaser.String(token))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) > 0 {
		cleaned = removeWord(cleaned, strings.Join(tokens, " "))
	}

	cleaned = emptyBrackets.ReplaceAllString(cleaned, " ")
	cleaned = SanitizeFileName(cleaned)
	cleaned = trimTokens(cleaned, tokens)
	cleaned = strings.Trim(cleaned, edgeSeparators)
	cleaned = emptyBrackets.ReplaceAllString(cleaned, "")

	return SanitizeFileName(cleaned)
}

// ArtistTokens splits an artist name into lower-cased words.
func ArtistTokens(artist string) []string {
	return strings.Fields(lowerCaser.String(artist))
}

// removeWord deletes every case-insensitive, whole-word occurrence of phrase.
func removeWord(s, phrase string) string {
	if strings.TrimSpace(phrase) == "" {
		return s
	}
	re, err := regexp.Compile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(phrase) + `($|[^\p{L}\p{N}])`)
	if err != nil {
		return s
	}
	for {
		next := re.ReplaceAllString(s, "$1 $2")
		if next == s {
			return next
		}
		s = next
	}
}

// trimTokens strips artist tokens (and the separators around them) from both
// ends of s until neither end starts or finishes with one.
func trimTokens(s string, tokens []string) string {
	for {
		before := s
		s = strings.Trim(s, edgeSeparators)
		words := strings.Fields(s)
		if len(words) <= 1 {
			return s
		}
		first := lowerCaser.String(strings.Trim(words[0], edgeSeparators))
		last := lowerCaser.String(strings.Trim(words[len(words)-1], edgeSeparators))
		for _, token := range tokens {
			if first == token {
				words = words[1:]
				break
			}
		}
		for _, token := range tokens {
			if len(words) > 1 && last == token {
				words = words[:len(words)-1]
				break
			}
		}
		s = strings.Join(words, " ")
		if s == before {
			return s
		}
	}
}

// FileStem truncates a sanitized name so that derived temp names stay well
// below common filesystem limits.
func FileStem(name string) string {
	if len(name) <= maxFileStemBytes {
		return name
	}
	cut := maxFileStemBytes
	for cut > 0 && !isRuneStart(name[cut]) {
		cut--
	}
	return strings.TrimSpace(name[:cut])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// NewRunID returns a short identifier unique to one pipeline run.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// TempPath returns a hidden, run-scoped path inside dir, e.g.
// "<dir>/.<stem>.<runID>.<suffix>".
func TempPath(dir, stem, runID, suffix string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.%s", stem, runID, strings.TrimPrefix(suffix, ".")))
}

// ReservePath atomically claims "<dir>/<stem>.<ext>" by creating an empty
// file. When that name is taken it tries "<stem> (2).<ext>", "<stem> (3).<ext>"
// and so on. The caller owns the returned path.
func ReservePath(dir, stem, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	for i := 1; i < 1000; i++ {
		name := stem
		if i > 1 {
			name = fmt.Sprintf("%s (%d)", stem, i)
		}
		path := filepath.Join(dir, name+"."+ext)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %q in %s", stem, dir)
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// WriteFile writes data to a file, creating it with mode 0644 if necessary.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
