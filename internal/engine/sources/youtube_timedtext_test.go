package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

func TestTranscriptViaTimedtext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8" ?><transcript>`+
			`<text start="0.5" dur="2.1">Hello &amp;amp; goodbye</text>`+
			`<text start="2.6" dur="1">   </text>`+
			`<text start="3.6" dur="1.4">it&amp;#39;s   a &lt;i&gt;test&lt;/i&gt;</text>`+
			`<text dur="1">no start</text>`+
			`</transcript>`)
	}))
	defer srv.Close()

	segs, err := newTestYouTube(t, srv).TranscriptViaTimedtext(context.Background(), srv.URL+"/api/timedtext?v=x&lang=en")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, engine.Segment{Index: 0, Start: 0.5, End: 2.6, Duration: 2.1, Text: "Hello & goodbye"}, segs[0])
	assert.Equal(t, 1, segs[1].Index)
	assert.Equal(t, "it's a test", segs[1].Text)
	assert.InDelta(t, 5.0, segs[1].End, 1e-9)
}

func TestParseTimedtext_Srv3(t *testing.T) {
	segs := parseTimedtext([]byte(`<timedtext format="3"><body>` +
		`<p t="1000" d="500">first <s>line</s></p>` +
		`<p t="2000">no duration</p>` +
		`<p d="10">no start</p>` +
		`</body></timedtext>`))
	require.Len(t, segs, 2)
	assert.Equal(t, engine.Segment{Index: 0, Start: 1, End: 1.5, Duration: 0.5, Text: "first line"}, segs[0])
	assert.Equal(t, engine.Segment{Index: 1, Start: 2, End: 2, Duration: 0, Text: "no duration"}, segs[1])
}

func TestParseTimedtext_NonFiniteTimes(t *testing.T) {
	segs := parseTimedtext([]byte(`<transcript>` +
		`<text start="NaN" dur="1">nan start</text>` +
		`<text start="+Inf" dur="1">inf start</text>` +
		`<text start="1" dur="Inf">inf dur</text>` +
		`<text start="2" dur="NaN">nan dur</text>` +
		`</transcript>`))
	require.Len(t, segs, 2)
	assert.Equal(t, engine.Segment{Index: 0, Start: 1, End: 1, Duration: 0, Text: "inf dur"}, segs[0])
	assert.Equal(t, engine.Segment{Index: 1, Start: 2, End: 2, Duration: 0, Text: "nan dur"}, segs[1])
	for _, s := range segs {
		assert.LessOrEqual(t, s.Start, s.End)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5", 1.5, true},
		{" 2 ", 2, true},
		{"0", 0, true},
		{"", 0, false},
		{"-1", 0, false},
		{"NaN", 0, false},
		{"nan", 0, false},
		{"Inf", 0, false},
		{"+Infinity", 0, false},
		{"-inf", 0, false},
		{"1e400", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseSeconds(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseSeconds(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTranscriptViaTimedtext_NullResults(t *testing.T) {
	for name, body := range map[string]string{
		"empty":       "",
		"invalid xml": "<transcript><text start=",
		"no elements": "<transcript></transcript>",
		"html page":   "<html><body>blocked</body></html>",
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			segs, err := newTestYouTube(t, srv).TranscriptViaTimedtext(context.Background(), srv.URL)
			assert.NoError(t, err)
			assert.Nil(t, segs)
		})
	}
}

func TestExtractBaseURL(t *testing.T) {
	tracks := []engine.CaptionTrack{
		{LanguageCode: "en", VssID: ".en", BaseURL: "u-en"},
		{LanguageCode: "ru", VssID: "a.ru", BaseURL: "u-ru"},
		{LanguageCode: "pt-BR", VssID: ".pt", BaseURL: "u-pt"},
	}
	tests := []struct {
		lang string
		want string
	}{
		{"ru", "u-ru"},
		{"en", "u-en"},
		{"fr", "u-en"},
		{"pt", "u-pt"},
		{".en", "u-en"},
		{"a.ru", "u-ru"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractBaseURL(tracks, tt.lang), "lang %q", tt.lang)
	}
	assert.Empty(t, ExtractBaseURL(nil, "en"))
}
