package download

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hbomb79/mediaload/internal/engine"
)

const (
	BestQuality         = "best"
	DefaultVideoFormat  = "mp4"
	DefaultAudioFormat  = "mp3"
	audioBitrateQuality = "192"

	outputFileTemplate = "%(uploader)s/%(title)s.%(ext)s"
)

// FormatRequest is the user's description of what they want downloaded.
// It is consumed once by SelectFormat and never stored.
type FormatRequest struct {
	Kind      MediaKind
	Quality   string
	Container string
}

// SelectFormat maps a FormatRequest in to the engine options required to satisfy it.
// This function is pure and deterministic: identical requests always produce identical
// options. The output template is not populated; see OutputTemplate.
//
//   - audio: best audio-only stream, extracted to the requested codec (default mp3)
//     at a fixed 192kbps target, with thumbnail and metadata embedded.
//   - video with a numeric quality N: best video stream no taller than N merged with the
//     best audio stream, falling back to the best combined stream no taller than N.
//   - video with any other quality: best video merged with best audio, no height cap.
func SelectFormat(request FormatRequest) engine.Options {
	if request.Kind == Audio {
		codec := request.Container
		if codec == "" {
			codec = DefaultAudioFormat
		}

		return engine.Options{
			Format:         "bestaudio/best",
			ExtractAudio:   true,
			AudioCodec:     codec,
			AudioQuality:   audioBitrateQuality,
			EmbedThumbnail: true,
			EmbedMetadata:  true,
		}
	}

	container := request.Container
	if container == "" {
		container = DefaultVideoFormat
	}

	format := "bestvideo+bestaudio/best"
	if height, ok := parseHeight(request.Quality); ok {
		format = fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height)
	}

	return engine.Options{Format: format, MergeFormat: container}
}

// OutputTemplate returns the engine output template for downloads of the given
// kind: <root>/<kind>s/<uploader>/<title>.<ext>. Name conflicts are left to the engine.
func OutputTemplate(root string, kind MediaKind) string {
	return filepath.Join(root, kind.Directory(), outputFileTemplate)
}

// pickHeight applies the height-cap policy used by SelectFormat to a concrete list of
// available heights. For a numeric quality, the tallest height not exceeding the cap is
// chosen; if none satisfy the cap (or the quality is not numeric), the tallest overall is
// chosen. The boolean is false only when no heights are available.
func pickHeight(available []int, quality string) (int, bool) {
	if len(available) == 0 {
		return 0, false
	}

	tallest := available[0]
	for _, h := range available {
		if h > tallest {
			tallest = h
		}
	}

	heightCap, ok := parseHeight(quality)
	if !ok {
		return tallest, true
	}

	best, found := 0, false
	for _, h := range available {
		if h <= heightCap && (!found || h > best) {
			best, found = h, true
		}
	}

	if !found {
		return tallest, true
	}

	return best, true
}

// parseHeight interprets a quality string as a vertical resolution cap. Only
// strings made entirely of digits with a positive value are considered valid.
func parseHeight(quality string) (int, bool) {
	quality = strings.TrimSpace(quality)
	if quality == "" {
		return 0, false
	}

	for _, r := range quality {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	height, err := strconv.Atoi(quality)
	if err != nil || height <= 0 {
		return 0, false
	}

	return height, true
}
