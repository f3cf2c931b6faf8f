package download_test

import (
	"path/filepath"
	"testing"

	"github.com/hbomb79/mediaload/internal/download"
	"github.com/hbomb79/mediaload/internal/engine"
	"github.com/stretchr/testify/assert"
)

func Test_SelectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		request  download.FormatRequest
		expected engine.Options
	}{
		{
			name:    "NumericQualityCapsHeight",
			request: download.FormatRequest{Kind: download.Video, Quality: "720", Container: "mkv"},
			expected: engine.Options{
				Format:      "bestvideo[height<=720]+bestaudio/best[height<=720]",
				MergeFormat: "mkv",
			},
		},
		{
			name:     "BestQualityIsUncapped",
			request:  download.FormatRequest{Kind: download.Video, Quality: "best", Container: "mp4"},
			expected: engine.Options{Format: "bestvideo+bestaudio/best", MergeFormat: "mp4"},
		},
		{
			name:     "NonNumericQualityIsUncapped",
			request:  download.FormatRequest{Kind: download.Video, Quality: "720p"},
			expected: engine.Options{Format: "bestvideo+bestaudio/best", MergeFormat: "mp4"},
		},
		{
			name:    "AudioExtractsWithDefaults",
			request: download.FormatRequest{Kind: download.Audio, Quality: "1080"},
			expected: engine.Options{
				Format:         "bestaudio/best",
				ExtractAudio:   true,
				AudioCodec:     "mp3",
				AudioQuality:   "192",
				EmbedThumbnail: true,
				EmbedMetadata:  true,
			},
		},
		{
			name:    "AudioRespectsContainer",
			request: download.FormatRequest{Kind: download.Audio, Container: "opus"},
			expected: engine.Options{
				Format:         "bestaudio/best",
				ExtractAudio:   true,
				AudioCodec:     "opus",
				AudioQuality:   "192",
				EmbedThumbnail: true,
				EmbedMetadata:  true,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, download.SelectFormat(tt.request))
			assert.Equal(t, download.SelectFormat(tt.request), download.SelectFormat(tt.request), "selection must be deterministic")
		})
	}
}

func Test_OutputTemplate(t *testing.T) {
	t.Parallel()
	root := filepath.Join("home", "user", "MediaLoad")

	assert.Equal(t, filepath.Join(root, "videos", "%(uploader)s", "%(title)s.%(ext)s"), download.OutputTemplate(root, download.Video))
	assert.Equal(t, filepath.Join(root, "audios", "%(uploader)s", "%(title)s.%(ext)s"), download.OutputTemplate(root, download.Audio))
}
