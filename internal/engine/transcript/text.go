package transcript

import (
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// FullText joins segment texts with single spaces, or renders one
// "[MM:SS] text" line per segment when withTimestamps is set.
func FullText(segments []engine.Segment, withTimestamps bool) string {
	var sb strings.Builder
	for i, seg := range segments {
		if withTimestamps {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("[" + engine.FormatTime(seg.Start) + "] ")
		} else if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// Search returns the segments whose text contains query. Matching is plain
// substring; caseSensitive=false folds case on both sides.
func Search(segments []engine.Segment, query string, caseSensitive bool) []engine.Segment {
	if !caseSensitive {
		query = strings.ToLower(query)
	}
	var out []engine.Segment
	for _, seg := range segments {
		text := seg.Text
		if !caseSensitive {
			text = strings.ToLower(text)
		}
		if strings.Contains(text, query) {
			out = append(out, seg)
		}
	}
	return out
}
