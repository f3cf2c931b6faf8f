package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/lrstanley/go-ytdlp"
)

var log = logger.Get("Engine")

const progressInterval = 500 * time.Millisecond

var ErrUnsupportedURL = errors.New("unsupported URL")

// Config controls how the yt-dlp executable is located.
type Config struct {
	// Path to the yt-dlp executable. When empty, yt-dlp is resolved
	// from $PATH (or the go-ytdlp cache if installed there).
	BinaryPath string `yaml:"binary_path" env:"YTDLP_BINARY_PATH"`
}

// ytdlpEngine is the Engine implementation backed by the yt-dlp CLI,
// driven through go-ytdlp.
type ytdlpEngine struct {
	config Config
}

func NewYtdlp(config Config) *ytdlpEngine {
	return &ytdlpEngine{config: config}
}

// Probe runs yt-dlp in simulate mode and simplifies the resulting info JSON.
func (engine *ytdlpEngine) Probe(ctx context.Context, rawURL string) (*Metadata, error) {
	if err := CheckURL(rawURL); err != nil {
		return nil, newProbeError(rawURL, err)
	}

	log.Emit(logger.DEBUG, "Probing %s\n", rawURL)
	result, err := engine.command().
		SkipDownload().
		DumpSingleJSON().
		NoWarnings().
		Run(ctx, rawURL)
	if err != nil {
		return nil, newProbeError(rawURL, describeFailure(result, err))
	}

	meta, err := parseMetadata(rawURL, []byte(result.Stdout))
	if err != nil {
		return nil, newProbeError(rawURL, err)
	}

	return meta, nil
}

// Fetch downloads the media at the URL using the options provided. Progress reported
// by yt-dlp is translated to ProgressEvents and delivered to onProgress from the
// command's output parser, which runs for the duration of this call.
func (engine *ytdlpEngine) Fetch(ctx context.Context, rawURL string, opts Options, onProgress ProgressFunc) error {
	if err := CheckURL(rawURL); err != nil {
		return err
	}

	cmd := engine.command().
		Output(opts.OutputTemplate).
		Format(opts.Format)

	if opts.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(opts.MergeFormat)
	}
	if opts.ExtractAudio {
		cmd = cmd.ExtractAudio().AudioFormat(opts.AudioCodec).AudioQuality(opts.AudioQuality)
	}
	if opts.EmbedThumbnail {
		cmd = cmd.EmbedThumbnail()
	}
	if opts.EmbedMetadata {
		cmd = cmd.EmbedMetadata()
	}

	cmd = cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if onProgress == nil {
			return
		}

		var phase Phase
		switch update.Status {
		case ytdlp.ProgressStatusDownloading:
			phase = PhaseDownloading
		case ytdlp.ProgressStatusFinished:
			phase = PhaseFinished
		default:
			return
		}

		onProgress(newProgressEvent(phase, update.DownloadedBytes, update.TotalBytes, update.Started, update.ETA(), time.Now()))
	})

	log.Emit(logger.DEBUG, "Fetching %s (format=%q, output=%q)\n", rawURL, opts.Format, opts.OutputTemplate)
	result, err := cmd.Run(ctx, rawURL)
	if err != nil {
		return describeFailure(result, err)
	}

	return nil
}

func (engine *ytdlpEngine) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if engine.config.BinaryPath != "" {
		cmd = cmd.SetExecutable(engine.config.BinaryPath)
	}

	return cmd
}

// newProgressEvent renders raw byte counters in to the display strings
// carried by a ProgressEvent.
func newProgressEvent(phase Phase, downloaded int, total int, started time.Time, eta time.Duration, now time.Time) ProgressEvent {
	event := ProgressEvent{Phase: phase, Percent: "0.0%", Speed: "N/A", ETA: "N/A"}
	if phase == PhaseFinished {
		event.Percent = "100.0%"
	} else if total > 0 {
		event.Percent = fmt.Sprintf("%.1f%%", float64(downloaded)/float64(total)*100)
	}

	if !started.IsZero() {
		if elapsed := now.Sub(started).Seconds(); elapsed > 0 {
			event.Speed = formatRate(float64(downloaded) / elapsed)
		}
	}

	if eta > 0 {
		event.ETA = formatETA(eta)
	}

	return event
}

func formatRate(bytesPerSecond float64) string {
	units := []string{"B/s", "KiB/s", "MiB/s", "GiB/s"}
	unit := 0
	for bytesPerSecond >= 1024 && unit < len(units)-1 {
		bytesPerSecond /= 1024
		unit++
	}

	return fmt.Sprintf("%.2f%s", bytesPerSecond, units[unit])
}

func formatETA(eta time.Duration) string {
	seconds := int(eta.Round(time.Second).Seconds())
	if seconds >= 3600 {
		return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
	}

	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// CheckURL rejects input which cannot possibly be a remote media URL before
// spending a process spawn on it.
func CheckURL(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	return nil
}

// describeFailure extracts the most useful human-readable message from a failed run.
// yt-dlp prefixes fatal problems with "ERROR:" on stderr.
func describeFailure(result *ytdlp.Result, err error) error {
	if result == nil {
		return err
	}

	lines := strings.Split(strings.TrimSpace(result.Stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if msg, ok := strings.CutPrefix(line, "ERROR:"); ok {
			return errors.New(strings.TrimSpace(msg))
		}
	}

	return err
}
