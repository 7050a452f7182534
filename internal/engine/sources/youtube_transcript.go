package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// TranscriptViaInternalAPI posts the params token to /get_transcript and parses
// the JSON action tree. Transport and HTTP failures are returned as errors; an
// empty, malformed or segment-less response yields (nil, nil).
func (y *YouTube) TranscriptViaInternalAPI(ctx context.Context, videoID, params string) ([]engine.Segment, error) {
	data, err := y.postInnerTube(ctx, ytGetTranscriptPath, map[string]any{
		"context": y.requestContext(),
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var resp ytGetTranscriptResp
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Debug("youtube: malformed get_transcript response",
			slog.String("id", videoID), slog.Any("error", err))
		return nil, nil
	}
	segs := parseTranscriptSegments(resp)
	if len(segs) == 0 {
		return nil, nil
	}
	return segs, nil
}

// parseTranscriptSegments reads initialSegments of the first action. Entries
// without startMs, endMs or text, with non-finite times, or with end before
// start are dropped.
func parseTranscriptSegments(resp ytGetTranscriptResp) []engine.Segment {
	if len(resp.Actions) == 0 || resp.Actions[0].UpdateEngagementPanelAction == nil {
		return nil
	}
	initial := resp.Actions[0].UpdateEngagementPanelAction.Content.
		TranscriptRenderer.Content.
		TranscriptSearchPanelRenderer.Body.
		TranscriptSegmentListRenderer.InitialSegments

	segs := make([]engine.Segment, 0, len(initial))
	for _, entry := range initial {
		r := entry.TranscriptSegmentRenderer
		if r == nil || r.StartMs == "" || r.EndMs == "" {
			continue
		}
		startMs, err1 := strconv.ParseFloat(r.StartMs, 64)
		endMs, err2 := strconv.ParseFloat(r.EndMs, 64)
		if err1 != nil || err2 != nil || !finite(startMs) || !finite(endMs) || endMs < startMs {
			continue
		}

		raw := r.Snippet.SimpleText
		if len(r.Snippet.Runs) > 0 {
			raw = r.Snippet.Runs[0].Text
		}
		text := engine.CleanText(raw)
		if text == "" {
			continue
		}

		start, end := startMs/1000, endMs/1000
		segs = append(segs, engine.Segment{
			Index:    len(segs),
			Start:    start,
			End:      end,
			Duration: end - start,
			Text:     text,
		})
	}
	return segs
}
