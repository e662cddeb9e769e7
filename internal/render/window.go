package render

import (
	"sync"

	"github.com/talgya/bountyhunter/internal/event"
)

// Window delivers pending window signals.
type Window interface {
	// PollEvents publishes every queued signal on bus and empties the queue.
	PollEvents(bus *event.Bus)
}

// Headless is a Window without a display. Signals are queued by Resize,
// Minimize, Restore and Close, which may be called from any goroutine, and
// delivered on the next PollEvents.
type Headless struct {
	mu      sync.Mutex
	pending []event.Event
}

// NewHeadless creates an empty headless window.
func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) push(ev event.Event) {
	h.mu.Lock()
	h.pending = append(h.pending, ev)
	h.mu.Unlock()
}

// Resize queues a resize signal.
func (h *Headless) Resize(width, height int) { h.push(event.WindowResized{Width: width, Height: height}) }

// Minimize queues a minimize signal.
func (h *Headless) Minimize() { h.push(event.WindowMinimized{}) }

// Restore queues a restore signal.
func (h *Headless) Restore() { h.push(event.WindowRestored{}) }

// Close queues a close signal.
func (h *Headless) Close() { h.push(event.WindowClosed{}) }

// PollEvents implements Window.
func (h *Headless) PollEvents(bus *event.Bus) {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, ev := range pending {
		bus.Publish(ev)
	}
}
