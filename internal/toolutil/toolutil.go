// Package toolutil provides shared helper functions for go_transcript MCP tools.
package toolutil

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Error is a string-const error type.
type Error string

func (e Error) Error() string { return string(e) }

// ErrInvalidVideoID is returned when input is neither an 11-character video ID
// nor a recognised YouTube URL.
const ErrInvalidVideoID = Error("invalid YouTube video ID or URL")

var (
	bareIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

	// Supported URL shapes, any scheme, with or without www./m./music.:
	//   youtube.com/watch?v=ID (v may follow other params)
	//   youtu.be/ID
	//   youtube.com/embed/ID, /v/ID, /shorts/ID, /live/ID
	//   youtube-nocookie.com/embed/ID
	videoURLRes = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|[/.])youtube\.com/watch\?(?:[^#]*&)?v=([a-zA-Z0-9_-]{11})(?:[^a-zA-Z0-9_-]|$)`),
		regexp.MustCompile(`(?:^|[/.])youtu\.be/([a-zA-Z0-9_-]{11})(?:[^a-zA-Z0-9_-]|$)`),
		regexp.MustCompile(`(?:^|[/.])youtube(?:-nocookie)?\.com/(?:embed|v|shorts|live)/([a-zA-Z0-9_-]{11})(?:[^a-zA-Z0-9_-]|$)`),
	}
)

// VideoID normalises a video ID or YouTube URL to the bare 11-character ID.
func VideoID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if bareIDRe.MatchString(s) {
		return s, nil
	}
	for _, re := range videoURLRes {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1], nil
		}
	}
	return "", ErrInvalidVideoID
}

// NormLang normalises a language field: trimmed, empty → configured default.
func NormLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return engine.Cfg.DefaultLanguage
	}
	return lang
}
