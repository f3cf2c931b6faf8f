package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/internal/event"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

type recordingBroadcaster struct {
	sync.Mutex
	updates  []uuid.UUID
	progress []uuid.UUID
	library  int
}

func (b *recordingBroadcaster) BroadcastDownloadUpdate(id uuid.UUID) error {
	b.Lock()
	defer b.Unlock()
	b.updates = append(b.updates, id)
	return nil
}

func (b *recordingBroadcaster) BroadcastDownloadProgress(id uuid.UUID) error {
	b.Lock()
	defer b.Unlock()
	b.progress = append(b.progress, id)
	return nil
}

func (b *recordingBroadcaster) BroadcastLibraryUpdate(uuid.UUID) error {
	b.Lock()
	defer b.Unlock()
	b.library++
	return nil
}

func (b *recordingBroadcaster) counts() (int, int, int) {
	b.Lock()
	defer b.Unlock()
	return len(b.updates), len(b.progress), b.library
}

func startActivityService(t *testing.T, limit rate.Limit) (*recordingBroadcaster, event.EventCoordinator) {
	bus := event.New()
	recorder := &recordingBroadcaster{}
	service := newActivityService(recorder, bus)
	service.progressLimit = limit

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, service.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	// Wait for the service to subscribe to the bus before dispatching anything
	time.Sleep(50 * time.Millisecond)
	return recorder, bus
}

func Test_Activity_UpdatesAreForwardedImmediately(t *testing.T) {
	t.Parallel()
	recorder, bus := startActivityService(t, ProgressBroadcastRate)

	id := uuid.New()
	bus.Dispatch(event.DownloadUpdateEvent, id)
	bus.Dispatch(event.DownloadUpdateEvent, id)

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		updates, _, _ := recorder.counts()
		assert.Equal(c, 2, updates)
	}, time.Second, 10*time.Millisecond)
}

func Test_Activity_ProgressIsThrottledButNotLost(t *testing.T) {
	t.Parallel()
	recorder, bus := startActivityService(t, rate.Every(200*time.Millisecond))

	id := uuid.New()
	for i := 0; i < 20; i++ {
		bus.Dispatch(event.DownloadProgressEvent, id)
	}

	// The first progress event is broadcast immediately, the burst is then
	// coalesced in to a single trailing broadcast.
	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		_, progress, _ := recorder.counts()
		assert.Equal(c, 2, progress)
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	_, progress, _ := recorder.counts()
	assert.Equal(t, 2, progress)
}

func Test_Activity_LibraryUpdatesAreDebounced(t *testing.T) {
	t.Parallel()
	recorder, bus := startActivityService(t, ProgressBroadcastRate)

	for i := 0; i < 10; i++ {
		bus.Dispatch(event.LibraryUpdateEvent, nil)
	}

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		_, _, library := recorder.counts()
		assert.Equal(c, 1, library)
	}, 2*DebounceDuration, 20*time.Millisecond)
}

func Test_Activity_ConcludedDownloadReleasesThrottle(t *testing.T) {
	t.Parallel()
	bus := event.New()
	recorder := &recordingBroadcaster{}
	service := newActivityService(recorder, bus)
	service.progressLimit = rate.Every(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, service.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	time.Sleep(50 * time.Millisecond)

	// The second progress event schedules a trailing broadcast an hour away, which
	// must be discarded when the download concludes (whether completed or failed).
	id := uuid.New()
	bus.Dispatch(event.DownloadProgressEvent, id)
	bus.Dispatch(event.DownloadProgressEvent, id)
	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		service.Lock()
		defer service.Unlock()
		assert.Contains(c, service.limiters, id)
		assert.Contains(c, service.progressTimers, id)
	}, time.Second, 10*time.Millisecond)

	bus.Dispatch(event.DownloadUpdateEvent, id)
	bus.Dispatch(event.DownloadCompleteEvent, id)
	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		service.Lock()
		defer service.Unlock()
		assert.Empty(c, service.limiters)
		assert.Empty(c, service.progressTimers)
	}, time.Second, 10*time.Millisecond)

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		updates, progress, _ := recorder.counts()
		assert.Equal(c, 1, updates)
		assert.Equal(c, 1, progress, "only the leading progress broadcast is sent")
	}, time.Second, 10*time.Millisecond)
}
