package medias

import (
	"github.com/hbomb79/mediaload/internal/api/util"
	"github.com/hbomb79/mediaload/internal/engine"
)

type (
	InfoRequest struct {
		URL string `json:"url"`
	}

	InfoDto struct {
		Title          string          `json:"title"`
		Thumbnail      string          `json:"thumbnail"`
		Uploader       string          `json:"uploader"`
		Duration       int             `json:"duration"`
		DurationString string          `json:"duration_string"`
		Views          int64           `json:"views"`
		Description    string          `json:"description"`
		Formats        []ResolutionDto `json:"formats"`
		URL            string          `json:"url"`
	}

	ResolutionDto struct {
		ID     string `json:"id"`
		Ext    string `json:"ext"`
		Height int    `json:"height"`
		Note   string `json:"note"`
	}
)

func NewInfoDto(metadata *engine.Metadata) InfoDto {
	return InfoDto{
		Title:          metadata.Title,
		Thumbnail:      metadata.Thumbnail,
		Uploader:       metadata.Uploader,
		Duration:       metadata.Duration,
		DurationString: metadata.DurationString,
		Views:          metadata.Views,
		Description:    metadata.Description,
		Formats:        util.ApplyConversion(metadata.Formats, NewResolutionDto),
		URL:            metadata.URL,
	}
}

func NewResolutionDto(resolution engine.Resolution) ResolutionDto {
	return ResolutionDto{ID: resolution.ID, Ext: resolution.Ext, Height: resolution.Height, Note: resolution.Note}
}
