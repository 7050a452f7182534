package sources

import (
	"context"
	"errors"
	"net/url"
	"regexp"
)

// getTranscriptRE extracts the transcript params token from raw Innertube or
// watch-page JSON.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\s*\{\s*"params":\s*"([^"]+)"`)

// ErrNoTranscriptToken means the engagement panels carry no transcript entry.
// The request itself succeeded; the video simply has no transcript panel.
var ErrNoTranscriptToken = errors.New("getTranscriptEndpoint not found in engagement panels")

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value is URL-encoded in /next responses;
		// /get_transcript expects the decoded (raw base64) form.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", ErrNoTranscriptToken
}

// ParamsViaNextAPI asks /next for the video's engagement panels and returns the
// opaque params token /get_transcript needs. Every failure is returned.
func (y *YouTube) ParamsViaNextAPI(ctx context.Context, videoID string) (string, error) {
	data, err := y.postInnerTube(ctx, ytNextPath, map[string]any{
		"videoId": videoID,
		"context": y.requestContext(),
	})
	if err != nil {
		return "", err
	}
	return extractTranscriptToken(data)
}
