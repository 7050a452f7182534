package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// YouTube Innertube API: low-level constants, types, and the WEB POST helper.

const (
	ytNextPath          = "/youtubei/v1/next"
	ytGetTranscriptPath = "/youtubei/v1/get_transcript"
	ytWatchPath         = "/watch"
	ytClientName        = "WEB"
	ytHeaderClientName  = "1"
	ytHeaderClientVer   = "2.0"
	ytLocaleHL          = "en"
	ytLocaleGL          = "US"
)

// --- WEB client request context ---

type ytClientCtx struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	Hl            string `json:"hl"`
	Gl            string `json:"gl"`
}

type ytRequestCtx struct {
	Client ytClientCtx `json:"client"`
}

// requestContext builds the client context with a fresh random version.
func (y *YouTube) requestContext() ytRequestCtx {
	return ytRequestCtx{Client: ytClientCtx{
		ClientName:    ytClientName,
		ClientVersion: GenerateRandomClientVersion(y.Now(), y.IntN),
		Hl:            ytLocaleHL,
		Gl:            ytLocaleGL,
	}}
}

// --- /get_transcript response ---

type ytGetTranscriptResp struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []ytInitialSegment `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

type ytInitialSegment struct {
	TranscriptSegmentRenderer *struct {
		StartMs string `json:"startMs"`
		EndMs   string `json:"endMs"`
		Snippet struct {
			SimpleText string `json:"simpleText"`
			Runs       []struct {
				Text string `json:"text"`
			} `json:"runs"`
		} `json:"snippet"`
	} `json:"transcriptSegmentRenderer"`
}

// postInnerTube POSTs payload as JSON with WEB client identification headers.
func (y *YouTube) postInnerTube(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"Content-Type":             "application/json",
		"Accept":                   "*/*",
		"User-Agent":               engine.UserAgentChrome,
		"X-YouTube-Client-Name":    ytHeaderClientName,
		"X-YouTube-Client-Version": ytHeaderClientVer,
		"Origin":                   y.BaseURL,
		"Referer":                  y.BaseURL + "/",
	}
	data, err := y.do(ctx, "POST", y.endpoint(path)+"?prettyPrint=false", body, headers, nil, maxJSONBody)
	if err != nil {
		return nil, fmt.Errorf("innertube [%s]: %w", path, err)
	}
	return data, nil
}
