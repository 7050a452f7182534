package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_transcript/internal/engine"
)

var (
	playerResponseRE = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*`)
	initialDataRE    = regexp.MustCompile(`ytInitialData"?\]?\s*=\s*`)
	consentFormRE    = regexp.MustCompile(`action="https://consent\.youtube\.com/s`)
	consentValueRE   = regexp.MustCompile(`name="v" value="(.*?)"`)
)

// WatchData is what the watch page yields for the fallback chain.
// Fields are empty when the page or the embedded JSON could not be read.
type WatchData struct {
	Title       string
	Playability string // playabilityStatus.reason, when the video is not playable
	Tracks      []engine.CaptionTrack
	Params      string // transcript params token from ytInitialData, if any
}

// --- ytInitialPlayerResponse ---

type ytPlayerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []ytCaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
}

type ytCaptionTrack struct {
	BaseURL string `json:"baseUrl"`
	Name    struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
	VssID        string  `json:"vssId"`
	LanguageCode string  `json:"languageCode"`
	Kind         *string `json:"kind"`
}

func (t ytCaptionTrack) toTrack() engine.CaptionTrack {
	name := t.Name.SimpleText
	if name == "" && len(t.Name.Runs) > 0 {
		name = t.Name.Runs[0].Text
	}
	return engine.CaptionTrack{
		Language:     name,
		LanguageCode: t.LanguageCode,
		VssID:        t.VssID,
		Kind:         t.Kind,
		BaseURL:      t.BaseURL,
	}
}

// WatchPage scrapes the watch page for caption tracks and a transcript params
// token. It never fails: problems are logged and an empty WatchData returned.
func (y *YouTube) WatchPage(ctx context.Context, videoID string) *WatchData {
	wd := &WatchData{}

	body, err := y.fetchWatchHTML(ctx, videoID)
	if err != nil {
		slog.Warn("youtube: watch page fetch failed", slog.String("id", videoID), slog.Any("error", err))
		return wd
	}

	playerJSON, dataJSON := findInitialJSON(body)

	if playerJSON != nil {
		var pr ytPlayerResponse
		if err := json.Unmarshal(playerJSON, &pr); err != nil {
			slog.Warn("youtube: decode ytInitialPlayerResponse", slog.String("id", videoID), slog.Any("error", err))
		} else {
			if pr.VideoDetails != nil {
				wd.Title = pr.VideoDetails.Title
			}
			if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Status != "OK" {
				wd.Playability = pr.PlayabilityStatus.Reason
			}
			if pr.Captions != nil {
				for _, t := range pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks {
					if t.BaseURL == "" {
						continue
					}
					wd.Tracks = append(wd.Tracks, t.toTrack())
				}
			}
		}
	} else {
		slog.Debug("youtube: ytInitialPlayerResponse not found", slog.String("id", videoID))
	}

	src := dataJSON
	if src == nil {
		src = body
	}
	if token, err := extractTranscriptToken(src); err == nil {
		wd.Params = token
	}

	slog.Debug("youtube: watch page scraped",
		slog.String("id", videoID),
		slog.String("title", wd.Title),
		slog.Int("tracks", len(wd.Tracks)),
		slog.Bool("params", wd.Params != ""))
	return wd
}

// fetchWatchHTML downloads the watch page, retrying once with a consent
// cookie when YouTube serves the EU consent interstitial.
func (y *YouTube) fetchWatchHTML(ctx context.Context, videoID string) ([]byte, error) {
	watchURL := y.endpoint(ytWatchPath) + "?v=" + url.QueryEscape(videoID)

	body, err := y.getHTML(ctx, watchURL, nil)
	if err != nil {
		return nil, err
	}
	if !consentFormRE.Match(body) {
		return body, nil
	}

	m := consentValueRE.FindSubmatch(body)
	if len(m) < 2 {
		return nil, errors.New("consent page without consent value")
	}
	cookie := &http.Cookie{Name: "CONSENT", Value: "YES+" + string(m[1])}
	if u, err := url.Parse(watchURL); err == nil && y.HTTP.Jar != nil {
		y.HTTP.Jar.SetCookies(u, []*http.Cookie{cookie})
	}
	slog.Debug("youtube: consent required, retrying with cookie", slog.String("id", videoID))

	body, err = y.getHTML(ctx, watchURL, cookie)
	if err != nil {
		return nil, fmt.Errorf("after consent: %w", err)
	}
	return body, nil
}

// getHTML fetches a page with browser headers, through the stealth client when
// one is configured.
func (y *YouTube) getHTML(ctx context.Context, pageURL string, cookie *http.Cookie) ([]byte, error) {
	if y.Browser != nil {
		if y.Limiter != nil {
			if err := y.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
		headers := engine.ChromeHeaders()
		headers["accept-language"] = "en-US,en;q=0.9"
		if cookie != nil {
			headers["cookie"] = cookie.String()
		}
		data, _, status, err := y.Browser.Do("GET", pageURL, headers, nil)
		if err != nil {
			return nil, fmt.Errorf("browser fetch: %w", err)
		}
		if status != http.StatusOK {
			return nil, &engine.StatusError{StatusCode: status}
		}
		return data, nil
	}

	headers := map[string]string{
		"User-Agent":      engine.RandomUserAgent(),
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	var cookies []*http.Cookie
	if cookie != nil {
		cookies = []*http.Cookie{cookie}
	}
	return y.do(ctx, "GET", pageURL, nil, headers, cookies, maxWatchBody)
}

// findInitialJSON returns the ytInitialPlayerResponse and ytInitialData JSON
// blobs embedded in the page's inline scripts; either may be nil.
func findInitialJSON(body []byte) (player, data []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if player == nil && strings.Contains(text, "ytInitialPlayerResponse") {
				player = jsonAfter([]byte(text), playerResponseRE)
			}
			if data == nil && strings.Contains(text, "ytInitialData") {
				data = jsonAfter([]byte(text), initialDataRE)
			}
			return player == nil || data == nil
		})
	}
	// Inline scripts are occasionally split oddly; fall back to the raw bytes.
	if player == nil {
		player = jsonAfter(body, playerResponseRE)
	}
	if data == nil {
		data = jsonAfter(body, initialDataRE)
	}
	return player, data
}

// jsonAfter extracts the balanced JSON object following the first match of re.
func jsonAfter(b []byte, re *regexp.Regexp) []byte {
	for _, loc := range re.FindAllIndex(b, -1) {
		if obj := extractJSON(b[loc[1]:]); obj != nil {
			return obj
		}
	}
	return nil
}

// extractJSON returns the leading balanced {...} object of b, honouring
// string literals and escapes.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
