package transcriptserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
	"github.com/anatolykoptev/go_transcript/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transcripts is the orchestrator surface the tools call.
// *transcript.Service implements it.
type Transcripts interface {
	Get(ctx context.Context, videoID string, opts transcript.Options) (*transcript.Result, error)
	ClearCache(ctx context.Context, videoID string) (int, error)
}

// RegisterTools registers the transcript tools on the given MCP server:
// youtube_transcript, youtube_transcript_search, youtube_transcript_clear_cache.
func RegisterTools(server *mcp.Server, svc Transcripts) {
	registerTranscript(server, svc)
	registerTranscriptSearch(server, svc)
	registerCacheClear(server, svc)
}

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 3

func registerTranscript(server *mcp.Server, svc Transcripts) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Fetch the transcript (captions) of a YouTube video. Tries the internal transcript API, then the watch page, then legacy timedtext captions. Returns timed segments, plain text, or [MM:SS]-prefixed lines, plus the method that produced them and the caption languages available. Results are cached per video.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.TranscriptInput) (*mcp.CallToolResult, engine.TranscriptOutput, error) {
		out, err := getTranscript(ctx, svc, input)
		return nil, out, err
	})
}

func registerTranscriptSearch(server *mcp.Server, svc Transcripts) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript_search",
		Description: "Find where something is said in a YouTube video. Substring search over the transcript segments; returns each matching line with its timestamp.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.TranscriptSearchInput) (*mcp.CallToolResult, engine.TranscriptSearchOutput, error) {
		out, err := searchTranscript(ctx, svc, input)
		return nil, out, err
	})
}

func registerCacheClear(server *mcp.Server, svc Transcripts) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript_clear_cache",
		Description: "Evict cached transcripts. With a video ID or URL removes that video's entry; without one removes every cached transcript.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CacheClearInput) (*mcp.CallToolResult, engine.CacheClearOutput, error) {
		out, err := clearCache(ctx, svc, input)
		return nil, out, err
	})
}

func fetch(ctx context.Context, svc Transcripts, video, language string, useCache bool) (*transcript.Result, error) {
	id, err := toolutil.VideoID(video)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, video)
	}
	r, err := svc.Get(ctx, id, transcript.Options{
		PreferredLanguage: toolutil.NormLang(language),
		UseCache:          &useCache,
	})
	if errors.Is(err, transcript.ErrAllMethodsExhausted) {
		return nil, fmt.Errorf("no transcript available for %s: %w", id, err)
	}
	return r, err
}

func getTranscript(ctx context.Context, svc Transcripts, input engine.TranscriptInput) (engine.TranscriptOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	switch format {
	case "", "segments", "text", "timestamped":
	default:
		return engine.TranscriptOutput{}, fmt.Errorf("unknown format %q: use segments, text or timestamped", input.Format)
	}

	r, err := fetch(ctx, svc, input.Video, input.Language, !input.NoCache)
	if err != nil {
		return engine.TranscriptOutput{}, err
	}

	out := engine.TranscriptOutput{
		VideoID:            r.VideoID,
		Method:             r.Method,
		TotalSegments:      r.TotalSegments,
		FetchedAt:          r.FetchedAt,
		AvailableLanguages: r.AvailableLanguages,
	}
	if format == "" || format == "segments" {
		out.Segments = r.Segments
		return out, nil
	}

	text := transcript.FullText(r.Segments, format == "timestamped")
	limit := input.MaxLength
	if limit <= 0 {
		limit = engine.Cfg.MaxOutputChars
	}
	if limit > 0 && utf8.RuneCountInString(text) > limit {
		text = engine.TruncateRunes(text, limit, "...")
		out.Truncated = true
	}
	out.Text = text
	return out, nil
}

func searchTranscript(ctx context.Context, svc Transcripts, input engine.TranscriptSearchInput) (engine.TranscriptSearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return engine.TranscriptSearchOutput{}, errors.New("query is required")
	}
	r, err := fetch(ctx, svc, input.Video, input.Language, true)
	if err != nil {
		return engine.TranscriptSearchOutput{}, err
	}

	hits := transcript.Search(r.Segments, input.Query, input.CaseSensitive)
	out := engine.TranscriptSearchOutput{
		VideoID: r.VideoID,
		Query:   input.Query,
		Total:   len(hits),
		Matches: make([]engine.TranscriptSearchMatch, 0, len(hits)),
	}
	for _, s := range hits {
		out.Matches = append(out.Matches, engine.TranscriptSearchMatch{
			Timestamp: engine.FormatTime(s.Start),
			Start:     s.Start,
			Text:      s.Text,
		})
	}
	return out, nil
}

func clearCache(ctx context.Context, svc Transcripts, input engine.CacheClearInput) (engine.CacheClearOutput, error) {
	id := ""
	if strings.TrimSpace(input.Video) != "" {
		var err error
		if id, err = toolutil.VideoID(input.Video); err != nil {
			return engine.CacheClearOutput{}, fmt.Errorf("%w: %q", err, input.Video)
		}
	}
	n, err := svc.ClearCache(ctx, id)
	if err != nil {
		return engine.CacheClearOutput{}, fmt.Errorf("clear cache: %w", err)
	}
	msg := fmt.Sprintf("cleared %d cached transcripts", n)
	if id != "" {
		msg = fmt.Sprintf("cleared %d cached transcript for %s", n, id)
	}
	return engine.CacheClearOutput{Cleared: n, Message: msg}, nil
}
