package core

import (
	"sync"

	"github.com/yumekawa-dev/kanade/engine/containers"
)

type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data is *KeyEvent.
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data is *KeyEvent.
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Window resized/resolution changed. Data is *ResizeEvent.
	EVENT_CODE_RESIZED EventCode = 0x04
	// A watched asset changed on disk. Data is *AssetChangedEvent.
	EVENT_CODE_ASSET_CHANGED EventCode = 0x05
)

type KeyEvent struct {
	KeyCode KeyCode
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

type AssetChangedEvent struct {
	Path string
}

type EventContext struct {
	Type EventCode
	Data interface{}
}

// FnOnEvent should return true if the event was handled and must not be
// passed on to further listeners.
type FnOnEvent func(context EventContext) bool

const maxQueuedEvents = 512

type eventSystemState struct {
	mu         sync.Mutex
	registered map[EventCode][]FnOnEvent
	queued     *containers.RingQueue[EventContext]
}

var eventState *eventSystemState

func EventSystemInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[EventCode][]FnOnEvent),
		queued:     containers.NewRingQueue[EventContext](maxQueuedEvents),
	}
	return true
}

func EventSystemShutdown() {
	eventState = nil
}

// EventRegister subscribes a callback to the given event code.
func EventRegister(code EventCode, onEvent FnOnEvent) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventFire invokes listeners of the given code immediately, stopping at the
// first listener that reports the event handled.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	listeners := eventState.registered[context.Type]
	eventState.mu.Unlock()

	for _, cb := range listeners {
		if cb(context) {
			return true
		}
	}
	return false
}

// EventEnqueue defers an event for delivery on the next EventPump call. Used
// by callers living outside the frame loop, such as the asset watcher.
func EventEnqueue(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	err := eventState.queued.Enqueue(context)
	eventState.mu.Unlock()
	if err != nil {
		LogWarn("event queue full, dropping event code %d", context.Type)
		return false
	}
	return true
}

// EventPump delivers all queued events. Called once per frame from the loop.
func EventPump() {
	if eventState == nil {
		return
	}
	for {
		eventState.mu.Lock()
		context, err := eventState.queued.Dequeue()
		eventState.mu.Unlock()
		if err != nil {
			return
		}
		EventFire(context)
	}
}
