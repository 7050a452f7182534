package engine

// --- Transcript data ---

// Segment is one caption line. Start <= End and Text is non-empty and
// entity-decoded for every segment a fetcher emits.
type Segment struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`    // seconds
	End      float64 `json:"end"`      // seconds
	Duration float64 `json:"duration"` // seconds
	Text     string  `json:"text"`
}

// CaptionTrack describes one subtitle language/style listed on the watch page.
type CaptionTrack struct {
	Language     string  `json:"language"`
	LanguageCode string  `json:"languageCode"`
	VssID        string  `json:"vssId"`
	Kind         *string `json:"kind"` // "asr" = auto-generated, nil = manual
	BaseURL      string  `json:"baseUrl"`
}

// CaptionTrackMeta is the public view of a CaptionTrack; BaseURL carries
// signed query parameters and is never exposed.
type CaptionTrackMeta struct {
	Language     string  `json:"language"`
	LanguageCode string  `json:"languageCode"`
	VssID        string  `json:"vssId"`
	Kind         *string `json:"kind"`
}

// Meta strips the base URL.
func (t CaptionTrack) Meta() CaptionTrackMeta {
	return CaptionTrackMeta{
		Language:     t.Language,
		LanguageCode: t.LanguageCode,
		VssID:        t.VssID,
		Kind:         t.Kind,
	}
}

// Method names the acquisition path that produced a transcript.
type Method string

const (
	MethodInternalAPI     Method = "internal_api"
	MethodInternalAPIHTML Method = "internal_api_html"
	MethodTimedtext       Method = "timedtext"
)

// TranscriptResult is what callers and the cache see, whichever method ran.
type TranscriptResult struct {
	VideoID            string             `json:"videoId"`
	Method             Method             `json:"method"`
	Segments           []Segment          `json:"segments"`
	TotalSegments      int                `json:"totalSegments"`
	AvailableLanguages []CaptionTrackMeta `json:"availableLanguages"`
	FetchedAt          string             `json:"fetchedAt"` // RFC 3339, UTC
}

// --- MCP tool inputs/outputs ---

type TranscriptInput struct {
	Video     string `json:"video" jsonschema:"YouTube video ID or URL (watch, youtu.be, shorts, embed, live)"`
	Language  string `json:"language,omitempty" jsonschema:"Preferred caption language code (default: en). Transcripts are cached per video, so set no_cache to get another language for a video already cached"`
	Format    string `json:"format,omitempty" jsonschema:"Output shape: segments (default), text (plain), timestamped ([MM:SS] per line)"`
	NoCache   bool   `json:"no_cache,omitempty" jsonschema:"Bypass the cache lookup and refetch (result replaces the cached one); needed to switch language on a cached video"`
	MaxLength int    `json:"max_length,omitempty" jsonschema:"Max characters for text/timestamped output (default: server limit)"`
}

type TranscriptOutput struct {
	VideoID            string             `json:"video_id"`
	Method             Method             `json:"method"`
	TotalSegments      int                `json:"total_segments"`
	FetchedAt          string             `json:"fetched_at"`
	AvailableLanguages []CaptionTrackMeta `json:"available_languages,omitempty"`
	Segments           []Segment          `json:"segments,omitempty"`
	Text               string             `json:"text,omitempty"`
	Truncated          bool               `json:"truncated,omitempty"`
}

type TranscriptSearchInput struct {
	Video         string `json:"video" jsonschema:"YouTube video ID or URL"`
	Query         string `json:"query" jsonschema:"Substring to look for in caption text"`
	Language      string `json:"language,omitempty" jsonschema:"Preferred caption language code (default: en); ignored when the video is already cached"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" jsonschema:"Match case exactly (default: false)"`
}

type TranscriptSearchMatch struct {
	Timestamp string  `json:"timestamp"`
	Start     float64 `json:"start"`
	Text      string  `json:"text"`
}

type TranscriptSearchOutput struct {
	VideoID string                  `json:"video_id"`
	Query   string                  `json:"query"`
	Total   int                     `json:"total"`
	Matches []TranscriptSearchMatch `json:"matches"`
}

type CacheClearInput struct {
	Video string `json:"video,omitempty" jsonschema:"Video ID or URL to evict; empty clears every cached transcript"`
}

type CacheClearOutput struct {
	Cleared int    `json:"cleared"`
	Message string `json:"message"`
}
