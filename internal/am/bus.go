package am

import (
	"context"
	"sync"
	"time"
)

// LayerEvent is the unit of traffic on the event bus. One of the five
// observability layers publishes an event; the health monitor and any other
// subscriber receive it in publication order relative to that publisher.
type LayerEvent struct {
	Type      string                 `json:"type"`
	Layer     int                    `json:"layer"`
	TabID     string                 `json:"tabId,omitempty"`
	ConvID    string                 `json:"convId,omitempty"`
	Provider  string                 `json:"provider,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Recognized LayerEvent.Type values.
const (
	EventHeartbeat     = "HEARTBEAT"
	EventLLMStart      = "LLM_START"
	EventLLMEnd        = "LLM_END"
	EventFSCreate      = "FS_CREATE"
	EventFSWrite       = "FS_WRITE"
	EventFSRemove      = "FS_REMOVE"
	EventHookInstalled = "HOOK_INSTALLED"
)

// Bus is a single in-process broadcast channel for LayerEvents. Publish never
// blocks: a subscriber that falls behind simply misses events rather than
// stalling the publisher. Subscribers are plain function callbacks invoked
// synchronously from a per-subscriber delivery goroutine, preserving
// publication order per publisher.
type Bus struct {
	mu        sync.RWMutex
	subs      []*subscription
	shutdown  bool
}

type subscription struct {
	events  chan *LayerEvent
	handler func(*LayerEvent)
	done    chan struct{}
}

// EventBus is the process-wide bus shared by every layer and the health
// monitor. It is safe to publish to and subscribe from multiple goroutines.
var EventBus = NewBus()

// NewBus creates an empty bus. Exposed mainly for tests that want isolation
// from the process-wide EventBus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler invoked for every event published after this
// call. Each subscriber gets its own buffered delivery queue so one slow
// handler cannot delay another.
func (b *Bus) Subscribe(handler func(*LayerEvent)) {
	if b == nil || handler == nil {
		return
	}

	sub := &subscription{
		events:  make(chan *LayerEvent, 256),
		handler: handler,
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case evt := <-sub.events:
				sub.handler(evt)
			case <-sub.done:
				return
			}
		}
	}()
}

// Publish broadcasts an event to every subscriber. It never blocks: if a
// subscriber's queue is full, the event is dropped for that subscriber only.
// Publishing after Shutdown is a silent no-op.
func (b *Bus) Publish(event *LayerEvent) {
	if b == nil || event == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.shutdown {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.events <- event:
		default:
			// Subscriber queue full; drop rather than block the publisher.
		}
	}
}

// Shutdown stops delivery to all subscribers. Subsequent Publish calls are
// silent no-ops.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return
	}
	b.shutdown = true
	for _, sub := range b.subs {
		close(sub.done)
	}
}

// SubscriberCount reports the number of registered subscribers. Used by tests.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// publishHeartbeat is shorthand for the HEARTBEAT event every layer without
// its own richer telemetry (shell hooks, process scan, fs watch) emits on
// every tick.
func publishHeartbeat(layer int) {
	EventBus.Publish(&LayerEvent{Type: EventHeartbeat, Layer: layer, Timestamp: time.Now()})
}

// runHeartbeatLoop drives a layer whose only periodic work is "do one tick of
// work, then announce I'm alive". It fires an immediate heartbeat, then calls
// onTick and re-announces on every interval until ctx is cancelled. Layers
// that must also watch other channels alongside the ticker (fs_watcher's
// fsnotify events) drive their own select loop instead and call
// publishHeartbeat directly.
func runHeartbeatLoop(ctx context.Context, layer int, interval time.Duration, onTick func()) {
	publishHeartbeat(layer)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if onTick != nil {
				onTick()
			}
			publishHeartbeat(layer)
		}
	}
}
