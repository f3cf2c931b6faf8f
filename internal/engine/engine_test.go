package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInfo = `{
	"title": "Example Video",
	"thumbnail": "https://i.ytimg.com/vi/abc/hq.jpg",
	"uploader": "Example Channel",
	"duration": 3725.0,
	"view_count": 1234567,
	"description": "short",
	"formats": [
		{"format_id": "140", "ext": "m4a", "vcodec": "none", "height": null},
		{"format_id": "160", "ext": "mp4", "vcodec": "avc1", "height": 144, "format_note": "144p"},
		{"format_id": "137", "ext": "mp4", "vcodec": "avc1", "height": 1080, "format_note": null},
		{"format_id": "248", "ext": "webm", "vcodec": "vp9", "height": 1080, "format_note": "1080p60"},
		{"format_id": "136", "ext": "mp4", "vcodec": "avc1", "height": 720, "format_note": "720p"},
		{"format_id": "sb0", "ext": "mhtml", "vcodec": "images", "height": 0}
	]
}`

func Test_ParseMetadata(t *testing.T) {
	t.Parallel()
	meta, err := parseMetadata("https://example.com/v", []byte(sampleInfo))
	require.NoError(t, err)

	assert.Equal(t, "Example Video", meta.Title)
	assert.Equal(t, "Example Channel", meta.Uploader)
	assert.Equal(t, 3725, meta.Duration)
	assert.Equal(t, "01:02:05", meta.DurationString)
	assert.Equal(t, int64(1234567), meta.Views)
	assert.Equal(t, "short...", meta.Description)
	assert.Equal(t, "https://example.com/v", meta.URL)

	assert.Equal(t, []Resolution{
		{ID: "137", Ext: "mp4", Height: 1080, Note: "1080p"},
		{ID: "136", Ext: "mp4", Height: 720, Note: "720p"},
		{ID: "160", Ext: "mp4", Height: 144, Note: "144p"},
	}, meta.Formats, "one entry per height, first seen wins, tallest first")
}

func Test_ParseMetadata_MissingFields(t *testing.T) {
	t.Parallel()
	meta, err := parseMetadata("https://example.com/v", []byte(`{"title": null, "duration": null, "formats": null}`))
	require.NoError(t, err)

	assert.Empty(t, meta.Title)
	assert.Equal(t, "00:00:00", meta.DurationString)
	assert.Equal(t, "...", meta.Description)
	assert.NotNil(t, meta.Formats)
	assert.Empty(t, meta.Formats)
}

func Test_ParseMetadata_Malformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "{not json", "[1,2]"} {
		meta, err := parseMetadata("https://example.com/v", []byte(raw))
		assert.Error(t, err, "input %q", raw)
		assert.Nil(t, meta)
	}
}

func Test_TruncateDescription(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("é", 250)
	truncated := truncateDescription(long)

	assert.Equal(t, strings.Repeat("é", 200)+"...", truncated, "truncation must count characters, not bytes")
	assert.Equal(t, strings.Repeat("a", 200)+"...", truncateDescription(strings.Repeat("a", 200)))
}

func Test_NewProgressEvent(t *testing.T) {
	t.Parallel()
	now := time.Now()

	event := newProgressEvent(PhaseDownloading, 512*1024, 1024*1024, now.Add(-2*time.Second), 90*time.Second, now)
	assert.Equal(t, ProgressEvent{Phase: PhaseDownloading, Percent: "50.0%", Speed: "256.00KiB/s", ETA: "01:30"}, event)

	event = newProgressEvent(PhaseDownloading, 100, 0, time.Time{}, 0, now)
	assert.Equal(t, ProgressEvent{Phase: PhaseDownloading, Percent: "0.0%", Speed: "N/A", ETA: "N/A"}, event)

	event = newProgressEvent(PhaseFinished, 10, 20, time.Time{}, 0, now)
	assert.Equal(t, "100.0%", event.Percent)
}

func Test_FormatETA(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "00:05", formatETA(5*time.Second))
	assert.Equal(t, "59:59", formatETA(59*time.Minute+59*time.Second))
	assert.Equal(t, "01:00:01", formatETA(time.Hour+time.Second))
}

func Test_CheckURL(t *testing.T) {
	t.Parallel()
	assert.NoError(t, CheckURL("https://www.youtube.com/watch?v=abc"))
	assert.NoError(t, CheckURL(" http://vimeo.com/123 "))

	for _, bad := range []string{"not a url", "ftp://example.com/file", "https://", "/local/path", ""} {
		assert.ErrorIs(t, CheckURL(bad), ErrUnsupportedURL, "input %q", bad)
	}
}

func Test_Probe_RejectsUnsupportedURLWithoutSpawning(t *testing.T) {
	t.Parallel()
	engine := NewYtdlp(Config{BinaryPath: "/nonexistent/yt-dlp"})

	meta, err := engine.Probe(context.Background(), "definitely not a url")
	assert.Nil(t, meta)

	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Equal(t, "definitely not a url", probeErr.URL)
	assert.True(t, strings.HasPrefix(probeErr.Error(), "failed to extract media info"))
	assert.True(t, errors.Is(err, ErrUnsupportedURL))
}
