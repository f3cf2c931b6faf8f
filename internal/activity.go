package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/internal/event"
	"github.com/hbomb79/mediaload/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	DebounceDuration time.Duration = time.Millisecond * 750
	MaxTimerDuration time.Duration = time.Second * 3

	// Progress broadcasts for a single download are limited to this rate. Progress
	// arriving faster is coalesced, and the latest state is sent once the limiter allows.
	ProgressBroadcastRate  rate.Limit = 4
	ProgressBroadcastBurst int        = 1
)

type (
	broadcastHandler func(uuid.UUID) error

	broadcaster interface {
		BroadcastDownloadUpdate(uuid.UUID) error
		BroadcastDownloadProgress(uuid.UUID) error
		BroadcastLibraryUpdate(uuid.UUID) error
	}

	eventKey struct {
		ev event.Event
		id uuid.UUID
	}

	// activityService listens for events on the event bus and forwards the relevant
	// state to the broadcaster (which pushes it to websocket clients). Status changes are
	// forwarded immediately, progress is throttled per download, and library changes
	// are debounced.
	activityService struct {
		sync.Mutex
		broadcaster
		eventBus       event.EventHandler
		limiters       map[uuid.UUID]*rate.Limiter
		progressTimers map[uuid.UUID]*time.Timer
		debounceTimers map[eventKey]*time.Timer
		maxTimers      map[eventKey]*time.Timer
		progressLimit  rate.Limit
		progressBurst  int
	}
)

func newActivityService(broadcaster broadcaster, eventBus event.EventHandler) *activityService {
	return &activityService{
		broadcaster:    broadcaster,
		eventBus:       eventBus,
		limiters:       make(map[uuid.UUID]*rate.Limiter),
		progressTimers: make(map[uuid.UUID]*time.Timer),
		debounceTimers: make(map[eventKey]*time.Timer),
		maxTimers:      make(map[eventKey]*time.Timer),
		progressLimit:  ProgressBroadcastRate,
		progressBurst:  ProgressBroadcastBurst,
	}
}

func (service *activityService) Run(ctx context.Context) error {
	messageChan := make(chan event.HandlerEvent, 100)
	service.eventBus.RegisterHandlerChannel(messageChan,
		event.DownloadUpdateEvent, event.DownloadProgressEvent,
		event.DownloadCompleteEvent, event.LibraryUpdateEvent)

	defer service.stopAllTimers()

	log.Emit(logger.NEW, "Activity service started\n")
	for {
		select {
		case ev := <-messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	if ev.Event == event.LibraryUpdateEvent {
		service.scheduleEventBroadcast(eventKey{ev: ev.Event, id: uuid.Nil}, service.BroadcastLibraryUpdate)
		return nil
	}

	resourceID, ok := ev.Payload.(uuid.UUID)
	if !ok {
		return errors.New("illegal payload (expected UUID)")
	}

	switch ev.Event {
	case event.DownloadUpdateEvent:
		return service.BroadcastDownloadUpdate(resourceID)
	case event.DownloadProgressEvent:
		service.scheduleProgressBroadcast(resourceID)
	case event.DownloadCompleteEvent:
		service.forgetDownload(resourceID)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

// scheduleProgressBroadcast broadcasts the progress of the download immediately if
// its limiter allows. Otherwise, a single trailing broadcast is scheduled for when the
// limiter next permits one, so the final progress of a burst is never lost.
func (service *activityService) scheduleProgressBroadcast(id uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	limiter, ok := service.limiters[id]
	if !ok {
		limiter = rate.NewLimiter(service.progressLimit, service.progressBurst)
		service.limiters[id] = limiter
	}

	if _, pending := service.progressTimers[id]; pending {
		return
	}

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		go service.broadcastProgress(id)
		return
	}

	service.progressTimers[id] = time.AfterFunc(delay, func() {
		service.Lock()
		delete(service.progressTimers, id)
		service.Unlock()

		service.broadcastProgress(id)
	})
}

func (service *activityService) broadcastProgress(id uuid.UUID) {
	if err := service.BroadcastDownloadProgress(id); err != nil {
		log.Emit(logger.WARNING, "Progress broadcast for download %s failed: %v\n", id, err)
	}
}

// forgetDownload releases the throttling state held for a download which has
// completed or failed.
func (service *activityService) forgetDownload(id uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	if t, ok := service.progressTimers[id]; ok {
		t.Stop()
		delete(service.progressTimers, id)
	}
	delete(service.limiters, id)
}

func (service *activityService) scheduleEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	defer service.Unlock()

	broadcaster := func() { service.broadcast(resourceKey, handler) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
	}
	service.debounceTimers[resourceKey] = time.AfterFunc(DebounceDuration, broadcaster)

	// Set a max timer if not already set
	if _, ok := service.maxTimers[resourceKey]; !ok {
		service.maxTimers[resourceKey] = time.AfterFunc(MaxTimerDuration, broadcaster)
	}
}

func (service *activityService) broadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
		delete(service.debounceTimers, resourceKey)
	}

	if t, ok := service.maxTimers[resourceKey]; ok {
		t.Stop()
		delete(service.maxTimers, resourceKey)
	}
	service.Unlock()

	if err := handler(resourceKey.id); err != nil {
		log.Emit(logger.WARNING, "Broadcast of %s failed: %v\n", resourceKey.ev, err)
	}
}

func (service *activityService) stopAllTimers() {
	service.Lock()
	defer service.Unlock()

	for id, t := range service.progressTimers {
		t.Stop()
		delete(service.progressTimers, id)
	}
	for key, t := range service.debounceTimers {
		t.Stop()
		delete(service.debounceTimers, key)
	}
	for key, t := range service.maxTimers {
		t.Stop()
		delete(service.maxTimers, key)
	}
}
