package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/internal/engine"
	"github.com/hbomb79/mediaload/internal/event"
	"github.com/hbomb79/mediaload/pkg/logger"
)

var log = logger.Get("Downloads")

type (
	// Config controls the lifetime of jobs held by the download service.
	Config struct {
		// How long a completed/failed job is retained before being evicted
		// from the registry. Zero disables eviction entirely.
		Retention time.Duration `yaml:"job_retention" env:"JOB_RETENTION" env-default:"0s"`

		// How often the registry is swept for expired jobs. Only used when
		// Retention is non-zero.
		SweepInterval time.Duration `yaml:"job_sweep_interval" env:"JOB_SWEEP_INTERVAL" env-default:"5m"`
	}

	// Service is MediaLoad's job runner. Each accepted request is assigned a new Job
	// in the registry, and a dedicated goroutine drives the extraction engine for
	// that job, feeding engine progress back in to the registry.
	//
	// There is deliberately no bound on the number of concurrent downloads, and no
	// way to cancel an individual job once submitted.
	Service struct {
		config   Config
		registry *Registry
		engine   engine.Engine
		defaults DefaultsProvider
		eventBus event.EventDispatcher
		validate *validator.Validate

		ctxMutex sync.Mutex
		ctx      context.Context
		closed   bool
		jobWg    sync.WaitGroup
	}
)

// ErrServiceClosed is returned by Submit once the service has begun shutting down.
var ErrServiceClosed = errors.New("download service is shutting down")

func New(config Config, registry *Registry, eng engine.Engine, defaults DefaultsProvider, eventBus event.EventDispatcher) *Service {
	return &Service{
		config:   config,
		registry: registry,
		engine:   eng,
		defaults: defaults,
		eventBus: eventBus,
		validate: newValidator(),
		ctx:      context.Background(),
	}
}

// Run binds the lifetime of all future jobs to the context provided, and blocks
// until it is cancelled. When retention is configured, expired jobs are swept
// from the registry periodically.
// Note: once the context is cancelled, this method waits for all running jobs
// to conclude before returning.
func (service *Service) Run(ctx context.Context) error {
	service.ctxMutex.Lock()
	service.ctx = ctx
	service.ctxMutex.Unlock()

	var sweep <-chan time.Time
	if service.config.Retention > 0 {
		interval := service.config.SweepInterval
		if interval <= 0 {
			interval = service.config.Retention
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sweep = ticker.C
		log.Emit(logger.INFO, "Jobs will be evicted %s after concluding\n", service.config.Retention)
	}

	for {
		select {
		case <-sweep:
			if evicted := service.registry.Evict(time.Now().Add(-service.config.Retention)); evicted > 0 {
				log.Emit(logger.REMOVE, "Evicted %d expired job(s), %d remaining\n", evicted, service.registry.Len())
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Shutting down (context cancelled). Waiting for running jobs to conclude.\n")
			service.ctxMutex.Lock()
			service.closed = true
			service.ctxMutex.Unlock()

			service.jobWg.Wait()
			return nil
		}
	}
}

// Submit validates the request, creates a new Job for it and starts the download
// in the background. The job is queryable via Job as soon as this method returns;
// the returned error is only ever a *ValidationError, ErrServiceClosed or a registry
// failure, as download failures are recorded on the job itself.
func (service *Service) Submit(request Request) (uuid.UUID, error) {
	if err := validateRequest(service.validate, &request); err != nil {
		return uuid.Nil, err
	}

	defaults := service.defaults.Defaults()
	applyDefaults(&request, defaults)

	opts := SelectFormat(FormatRequest{Kind: request.Kind, Quality: request.Quality, Container: request.Container})
	opts.OutputTemplate = OutputTemplate(defaults.DownloadRoot, request.Kind)

	service.ctxMutex.Lock()
	defer service.ctxMutex.Unlock()
	if service.closed {
		return uuid.Nil, ErrServiceClosed
	}

	job := Job{
		ID:        uuid.New(),
		SourceURL: request.URL,
		Title:     request.Title,
		Kind:      request.Kind,
		Quality:   request.Quality,
		Container: request.Container,
		Status:    Starting,
		CreatedAt: time.Now(),
	}
	if err := service.registry.Create(job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to register job: %w", err)
	}

	log.Emit(logger.NEW, "Accepted %s for %s (format=%q)\n", job, job.SourceURL, opts.Format)
	service.eventBus.Dispatch(event.DownloadUpdateEvent, job.ID)

	outputDir := filepath.Join(defaults.DownloadRoot, request.Kind.Directory())
	service.jobWg.Add(1)
	go service.runJob(service.ctx, job.ID, request.URL, outputDir, opts)

	return job.ID, nil
}

// Job returns a snapshot of the job with the ID provided.
func (service *Service) Job(id uuid.UUID) (Job, bool) { return service.registry.Get(id) }

// Jobs returns a snapshot of all jobs known to the service, newest first.
func (service *Service) Jobs() []Job { return service.registry.All() }

// Probe looks up the metadata for the URL provided using the extraction engine. This
// method blocks for as long as the engine takes, and does not involve any job.
func (service *Service) Probe(ctx context.Context, url string) (*engine.Metadata, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &ValidationError{Problems: []string{"url is required"}}
	}

	return service.engine.Probe(ctx, url)
}

// runJob drives a single job from Starting to a terminal status. Any error or panic
// is recorded on the job and never escapes this goroutine.
func (service *Service) runJob(ctx context.Context, id uuid.UUID, url string, outputDir string, opts engine.Options) {
	defer service.jobWg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Emit(logger.ERROR, "Job %s panicked: %v\n", id, r)
			service.fail(id, fmt.Errorf("internal error: %v", r))
		}
	}()

	// Unusable URLs fail while the job is still starting
	if err := engine.CheckURL(url); err != nil {
		service.fail(id, err)
		return
	}

	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		service.fail(id, fmt.Errorf("failed to prepare output directory: %w", err))
		return
	}

	if err := service.registry.Mutate(id, func(job *Job) { job.Status = Downloading }); err != nil {
		log.Emit(logger.ERROR, "Failed to start job %s: %v\n", id, err)
		return
	}
	service.eventBus.Dispatch(event.DownloadUpdateEvent, id)

	if err := service.engine.Fetch(ctx, url, opts, service.progressBridge(id)); err != nil {
		service.fail(id, err)
		return
	}

	if err := service.registry.Mutate(id, func(job *Job) { job.Status = Completed }); err != nil {
		log.Emit(logger.ERROR, "Failed to complete job %s: %v\n", id, err)
		return
	}

	log.Emit(logger.SUCCESS, "Job %s completed\n", id)
	service.eventBus.Dispatch(event.DownloadUpdateEvent, id)
	service.eventBus.Dispatch(event.DownloadCompleteEvent, id)
}

// progressBridge returns the engine progress callback for the job provided. The
// callback runs within the job's Fetch call, so it only performs a registry
// mutation and a non-blocking event dispatch.
func (service *Service) progressBridge(id uuid.UUID) engine.ProgressFunc {
	return func(progress engine.ProgressEvent) {
		err := service.registry.Mutate(id, func(job *Job) {
			if job.Status != Downloading {
				return
			}

			switch progress.Phase {
			case engine.PhaseFinished:
				job.Progress = 100
				job.PostProcessing = true
			case engine.PhaseDownloading:
				if pct, ok := parsePercent(progress.Percent); ok && pct > job.Progress {
					job.Progress = pct
				}
				job.Speed = progress.Speed
				job.ETA = progress.ETA
			}
		})
		if err != nil {
			log.Emit(logger.WARNING, "Dropping progress update for job %s: %v\n", id, err)
			return
		}

		service.eventBus.Dispatch(event.DownloadProgressEvent, id)
	}
}

func (service *Service) fail(id uuid.UUID, cause error) {
	message := cause.Error()
	if message == "" {
		message = "download failed"
	}

	if err := service.registry.Mutate(id, func(job *Job) {
		job.Status = Failed
		job.Error = message
	}); err != nil {
		log.Emit(logger.ERROR, "Failed to record failure of job %s (%s): %v\n", id, message, err)
		return
	}

	log.Emit(logger.WARNING, "Job %s failed: %s\n", id, message)
	service.eventBus.Dispatch(event.DownloadUpdateEvent, id)
	service.eventBus.Dispatch(event.DownloadCompleteEvent, id)
}

// parsePercent converts an engine percentage string such as " 42.1%" to a float
// clamped to the range [0, 100].
func parsePercent(raw string) (float64, bool) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	pct, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}

	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}

	return pct, true
}
