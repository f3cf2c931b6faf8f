package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/mediaload/internal/api"
	"github.com/hbomb79/mediaload/internal/download"
	"github.com/hbomb79/mediaload/internal/engine"
	"github.com/hbomb79/mediaload/internal/event"
	"github.com/hbomb79/mediaload/internal/library"
	"github.com/hbomb79/mediaload/internal/settings"
	"github.com/hbomb79/mediaload/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// settingsDefaults adapts the settings store to the download service's
	// view of the user's preferences. The settings file is consulted for every
	// request, so edits apply to the next download without a restart.
	settingsDefaults struct {
		store *settings.Store
	}

	// mediaLoadImpl represents the top-level object for the server, and is responsible
	// for initialising the services, event handling, and the REST gateway.
	mediaLoadImpl struct {
		eventBus        event.EventCoordinator
		config          MediaLoadConfig
		settings        *settings.Store
		downloadService *download.Service
		library         *library.Library
		restGateway     *api.RestGateway
		activityService *activityService
	}
)

func (d settingsDefaults) Defaults() download.Defaults {
	current := d.store.Current()
	return download.Defaults{
		DownloadRoot: current.DownloadDir,
		VideoQuality: current.DefaultVideoQuality,
		VideoFormat:  current.DefaultVideoFormat,
		AudioFormat:  current.DefaultAudioFormat,
	}
}

func New(config MediaLoadConfig) (*mediaLoadImpl, error) {
	log.Emit(logger.DEBUG, "Bootstrapping MediaLoad services using config: %#v\n", config)

	settingsPath, err := config.resolveSettingsPath()
	if err != nil {
		return nil, err
	}

	defaults, err := settings.Defaults()
	if err != nil {
		return nil, err
	}

	store := settings.NewStore(settingsPath, defaults)
	initial, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	log.Emit(logger.INFO, "Using settings from %s (downloads saved to %s)\n", settingsPath, initial.DownloadDir)

	eventBus := event.New()
	downloadService := download.New(
		config.Downloads,
		download.NewRegistry(),
		engine.NewYtdlp(config.Engine),
		settingsDefaults{store: store},
		eventBus,
	)

	// The library root is fixed at startup as the filesystem watcher cannot follow
	// a change of DOWNLOAD_DIR; new downloads always honour the current setting.
	lib := library.New(config.Library, initial.DownloadDir, eventBus)
	gateway := api.NewRestGateway(&config.RestConfig, downloadService, lib)

	return &mediaLoadImpl{
		eventBus:        eventBus,
		config:          config,
		settings:        store,
		downloadService: downloadService,
		library:         lib,
		restGateway:     gateway,
		activityService: newActivityService(gateway, eventBus),
	}, nil
}

// Run will start all of MediaLoad by bringing up all required services. This function will
// not return until MediaLoad is stopped. To stop MediaLoad, the provided context must be
// cancelled. Errors from which a service cannot recover will also cause MediaLoad to stop.
func (mediaLoad *mediaLoadImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var crashErr error
	crashOnce := sync.Once{}
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %v\n", label, err)
		crashOnce.Do(func() { crashErr = fmt.Errorf("service %s crashed: %w", label, err) })
		cancel()
	}

	wg := &sync.WaitGroup{}
	mediaLoad.spawnAsyncService(ctx, wg, mediaLoad.downloadService, "download-service", crashHandler)
	mediaLoad.spawnAsyncService(ctx, wg, mediaLoad.library, "library-service", crashHandler)
	mediaLoad.spawnAsyncService(ctx, wg, mediaLoad.activityService, "activity-service", crashHandler)
	mediaLoad.spawnAsyncService(ctx, wg, mediaLoad.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "MediaLoad services spawned!\n")

	wg.Wait()
	return crashErr
}

// spawnAsyncService will run the provided service as it's own
// go-routine, ensuring that the MediaLoad service waitgroup is updated correctly
func (mediaLoad *mediaLoadImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
