package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	descriptionLimit  = 200
	descriptionSuffix = "..."
)

// extractedInfo is the subset of yt-dlp's info JSON that MediaLoad cares about. Optional
// fields are pointers as yt-dlp emits explicit nulls for unknown values.
type (
	extractedInfo struct {
		Title       *string           `json:"title"`
		Thumbnail   *string           `json:"thumbnail"`
		Uploader    *string           `json:"uploader"`
		Duration    *float64          `json:"duration"`
		ViewCount   *float64          `json:"view_count"`
		Description *string           `json:"description"`
		Formats     []extractedFormat `json:"formats"`
	}

	extractedFormat struct {
		FormatID   string   `json:"format_id"`
		Ext        string   `json:"ext"`
		Height     *float64 `json:"height"`
		VCodec     string   `json:"vcodec"`
		FormatNote *string  `json:"format_note"`
	}
)

// parseMetadata decodes the JSON document produced by yt-dlp's --dump-single-json
// and simplifies it in to Metadata. No partial result is returned on error.
func parseMetadata(url string, raw []byte) (*Metadata, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("extraction engine returned no data")
	}

	var info extractedInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("malformed engine output: %w", err)
	}

	duration := 0
	if info.Duration != nil && *info.Duration > 0 {
		duration = int(*info.Duration)
	}

	var views int64
	if info.ViewCount != nil {
		views = int64(*info.ViewCount)
	}

	return &Metadata{
		Title:          deref(info.Title),
		Thumbnail:      deref(info.Thumbnail),
		Uploader:       deref(info.Uploader),
		Duration:       duration,
		DurationString: formatDuration(duration),
		Views:          views,
		Description:    truncateDescription(deref(info.Description)),
		Formats:        distinctResolutions(info.Formats),
		URL:            url,
	}, nil
}

// distinctResolutions keeps the first video format seen for each height, ordered
// from the highest height to the lowest. Audio-only formats, and formats
// without a known height, are skipped.
func distinctResolutions(formats []extractedFormat) []Resolution {
	seen := make(map[int]struct{})
	out := make([]Resolution, 0)
	for _, f := range formats {
		if f.VCodec == "none" || f.Height == nil || *f.Height <= 0 {
			continue
		}

		height := int(*f.Height)
		if _, ok := seen[height]; ok {
			continue
		}
		seen[height] = struct{}{}

		note := deref(f.FormatNote)
		if note == "" {
			note = fmt.Sprintf("%dp", height)
		}

		out = append(out, Resolution{ID: f.FormatID, Ext: f.Ext, Height: height, Note: note})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Height > out[j].Height })
	return out
}

// truncateDescription keeps the first 200 characters of the description and
// appends an ellipsis marker.
func truncateDescription(description string) string {
	if utf8.RuneCountInString(description) > descriptionLimit {
		description = string([]rune(description)[:descriptionLimit])
	}

	return description + descriptionSuffix
}

// formatDuration renders seconds as HH:MM:SS. Durations of a day or longer wrap.
func formatDuration(seconds int) string {
	seconds %= 24 * 60 * 60
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
