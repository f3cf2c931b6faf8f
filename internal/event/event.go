// A collection of event names and the bus used to deliver them to interested services
// via buffered handler channels.
package event

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/pkg/logger"
)

var log = logger.Get("EventBus")

// Events emitted by various parts of MediaLoad that should be handled by another, silo'd part
// of the architecture (e.g. the download service emits progress, the activity broadcaster
// forwards it to connected websocket clients).
type (
	Event   string
	Payload any

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		sync.RWMutex
		chanHandlers map[Event][]HandlerChannel
	}
)

const (
	DownloadUpdateEvent   Event = "download:update"
	DownloadProgressEvent Event = "download:update:progress"
	DownloadCompleteEvent Event = "download:complete" // job concluded, successfully or not
	LibraryUpdateEvent    Event = "library:update"
)

func New() EventCoordinator {
	return &eventHandler{chanHandlers: make(map[Event][]HandlerChannel)}
}

// RegisterHandlerChannel takes an event type and a channel and will send Event messages on
// the channel any time a Dispatch for the provided event occurs.
// This method can be used multiple times for different events on the same channel.
//
// Delivery to channels is non-blocking: if the channel buffer is full when the event
// is dispatched, the event is dropped for that channel and a warning is logged. Handler
// channels should be buffered appropriately.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	handler.Lock()
	defer handler.Unlock()

	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// Dispatch takes an event type and a payload and dispatches the payload to the handlers
// registered for the event type provided. This method never blocks.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	if err := handler.validatePayload(event, payload); err != nil {
		log.Emit(logger.ERROR, "Dispatch for event %v FAILED validation: %v\n", event, err)
		return
	}

	handler.RLock()
	chanHandles := handler.chanHandlers[event]
	handler.RUnlock()

	message := HandlerEvent{event, payload}
	for _, handle := range chanHandles {
		select {
		case handle <- message:
		default:
			log.Emit(logger.WARNING, "Handler channel for %s is full, dropping event\n", event)
		}
	}
}

// validatePayload ensures that the payload provided is valid for the event specified. An error
// will be returned if the payload is not valid, and the event should not be sent to the registered
// handlers in this case.
func (handler *eventHandler) validatePayload(event Event, payload Payload) error {
	var payloadTypeName string
	if t := reflect.TypeOf(payload); t != nil {
		payloadTypeName = t.Name()
	} else {
		payloadTypeName = "Nil"
	}

	switch event {
	case DownloadUpdateEvent, DownloadProgressEvent, DownloadCompleteEvent:
		if _, ok := payload.(uuid.UUID); !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event. Expected uuid.UUID payload", payloadTypeName, event)
		}

		return nil
	case LibraryUpdateEvent:
		if payload != nil {
			return fmt.Errorf("illegal payload (type %s) for %s event. Expected nil payload", payloadTypeName, event)
		}

		return nil
	}

	return errors.New("event type not recognized for validation")
}
