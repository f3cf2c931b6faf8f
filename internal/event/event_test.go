package event_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Dispatch_DeliversToRegisteredChannels(t *testing.T) {
	t.Parallel()
	bus := event.New()
	downloads := make(event.HandlerChannel, 4)
	library := make(event.HandlerChannel, 4)
	bus.RegisterHandlerChannel(downloads, event.DownloadUpdateEvent, event.DownloadCompleteEvent)
	bus.RegisterHandlerChannel(library, event.LibraryUpdateEvent)

	id := uuid.New()
	bus.Dispatch(event.DownloadUpdateEvent, id)
	bus.Dispatch(event.LibraryUpdateEvent, nil)
	bus.Dispatch(event.DownloadCompleteEvent, id)

	require.Len(t, downloads, 2)
	assert.Equal(t, event.HandlerEvent{Event: event.DownloadUpdateEvent, Payload: id}, <-downloads)
	assert.Equal(t, event.HandlerEvent{Event: event.DownloadCompleteEvent, Payload: id}, <-downloads)

	require.Len(t, library, 1)
	assert.Equal(t, event.LibraryUpdateEvent, (<-library).Event)
}

func Test_Dispatch_DropsEventsForFullChannels(t *testing.T) {
	t.Parallel()
	bus := event.New()
	ch := make(event.HandlerChannel, 1)
	bus.RegisterHandlerChannel(ch, event.DownloadProgressEvent)

	first, second := uuid.New(), uuid.New()
	bus.Dispatch(event.DownloadProgressEvent, first)
	bus.Dispatch(event.DownloadProgressEvent, second)

	require.Len(t, ch, 1)
	assert.Equal(t, first, (<-ch).Payload)
}

func Test_Dispatch_RejectsIllegalPayloads(t *testing.T) {
	t.Parallel()
	bus := event.New()
	ch := make(event.HandlerChannel, 4)
	bus.RegisterHandlerChannel(ch, event.DownloadUpdateEvent, event.LibraryUpdateEvent)

	bus.Dispatch(event.DownloadUpdateEvent, "not-a-uuid")
	bus.Dispatch(event.DownloadUpdateEvent, nil)
	bus.Dispatch(event.LibraryUpdateEvent, uuid.New())

	assert.Empty(t, ch)
}
