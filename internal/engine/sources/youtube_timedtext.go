package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// timedtext format 1: <transcript><text start="1.2" dur="3.4">...</text></transcript>
// srv3 format:        <timedtext><body><p t="1200" d="3400">...</p></body></timedtext>
type ytTimedtextDoc struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
	Body struct {
		Paras []struct {
			T     string `xml:"t,attr"`
			D     string `xml:"d,attr"`
			Inner string `xml:",innerxml"`
		} `xml:"p"`
	} `xml:"body"`
}

// TranscriptViaTimedtext fetches a caption track's baseUrl and parses the XML.
// HTTP failures are returned; empty or invalid XML and documents without usable
// elements yield (nil, nil).
func (y *YouTube) TranscriptViaTimedtext(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	headers := map[string]string{
		"User-Agent": engine.UserAgentChrome,
		"Accept":     "text/xml,application/xml;q=0.9,*/*;q=0.8",
	}
	data, err := y.do(ctx, "GET", baseURL, nil, headers, nil, maxXMLBody)
	if err != nil {
		return nil, err
	}
	segs := parseTimedtext(data)
	if len(segs) == 0 {
		return nil, nil
	}
	return segs, nil
}

func parseTimedtext(data []byte) []engine.Segment {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var doc ytTimedtextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		slog.Debug("youtube: invalid timedtext xml", slog.Any("error", err))
		return nil
	}

	var segs []engine.Segment
	add := func(start, dur float64, raw string) {
		text := engine.CleanText(raw)
		if text == "" {
			return
		}
		segs = append(segs, engine.Segment{
			Index:    len(segs),
			Start:    start,
			End:      start + dur,
			Duration: dur,
			Text:     text,
		})
	}

	if len(doc.Texts) > 0 {
		for _, t := range doc.Texts {
			start, ok := parseSeconds(t.Start)
			if !ok {
				continue
			}
			dur, ok := parseSeconds(t.Dur)
			if !ok {
				dur = 0
			}
			add(start, dur, t.Text)
		}
		return segs
	}

	for _, p := range doc.Body.Paras {
		startMs, ok := parseSeconds(p.T)
		if !ok {
			continue
		}
		durMs, ok := parseSeconds(p.D)
		if !ok {
			durMs = 0
		}
		add(startMs/1000, durMs/1000, p.Inner)
	}
	return segs
}

// parseSeconds parses a finite, non-negative decimal attribute.
func parseSeconds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) || v < 0 {
		return 0, false
	}
	return v, true
}

// finite reports whether v is neither NaN nor an infinity. ParseFloat
// accepts both spellings.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ExtractBaseURL picks the track whose languageCode or vssId matches lang
// (vssId may carry a leading "."), falling back to the first track.
// It returns "" when tracks is empty.
func ExtractBaseURL(tracks []engine.CaptionTrack, lang string) string {
	if len(tracks) == 0 {
		return ""
	}
	for _, t := range tracks {
		if t.LanguageCode == lang || t.VssID == lang || t.VssID == "."+lang {
			return t.BaseURL
		}
	}
	return tracks[0].BaseURL
}
