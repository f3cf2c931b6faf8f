// Package engine adapts the external media-extraction tool (yt-dlp) to the
// narrow interface the rest of MediaLoad depends on: a metadata probe and a
// blocking fetch which reports progress through a callback.
package engine

import (
	"context"
	"fmt"
)

type (
	// Engine is implemented by anything capable of inspecting and downloading
	// remote media. Implementations must be safe for concurrent use; every
	// download job calls Fetch from its own goroutine.
	Engine interface {
		// Probe looks up the metadata for the URL without downloading anything.
		// Any failure is reported as a *ProbeError.
		Probe(ctx context.Context, url string) (*Metadata, error)

		// Fetch performs the transfer (and any post-processing) described by opts,
		// blocking until complete. onProgress is called zero or more times while
		// Fetch is running, possibly from a goroutine owned by the implementation.
		// It must not block.
		Fetch(ctx context.Context, url string, opts Options, onProgress ProgressFunc) error
	}

	Phase string

	// ProgressEvent is a single progress report from a running fetch. The
	// Percent/Speed/ETA values are display strings and are advisory only.
	ProgressEvent struct {
		Phase   Phase
		Percent string
		Speed   string
		ETA     string
	}

	ProgressFunc func(ProgressEvent)

	// Options is the set of engine parameters for a single fetch. It is produced
	// by the format selector and consumed once by Fetch.
	Options struct {
		Format         string
		MergeFormat    string
		ExtractAudio   bool
		AudioCodec     string
		AudioQuality   string
		EmbedThumbnail bool
		EmbedMetadata  bool
		OutputTemplate string
	}

	// Metadata is the simplified view of a remote media item returned by Probe.
	Metadata struct {
		Title          string       `json:"title"`
		Thumbnail      string       `json:"thumbnail"`
		Uploader       string       `json:"uploader"`
		Duration       int          `json:"duration"`
		DurationString string       `json:"duration_string"`
		Views          int64        `json:"views"`
		Description    string       `json:"description"`
		Formats        []Resolution `json:"formats"`
		URL            string       `json:"url"`
	}

	// Resolution describes one distinct video height available for a media item.
	Resolution struct {
		ID     string `json:"id"`
		Ext    string `json:"ext"`
		Height int    `json:"height"`
		Note   string `json:"note"`
	}

	// ProbeError is returned by Probe for any failure. The message is intended
	// to be shown to the user as-is.
	ProbeError struct {
		URL     string
		Message string
		Err     error
	}
)

const (
	PhaseDownloading Phase = "downloading"
	PhaseFinished    Phase = "finished"
)

func (err *ProbeError) Error() string {
	return err.Message
}

func (err *ProbeError) Unwrap() error { return err.Err }

func newProbeError(url string, cause error) *ProbeError {
	return &ProbeError{URL: url, Message: fmt.Sprintf("failed to extract media info: %v", cause), Err: cause}
}
