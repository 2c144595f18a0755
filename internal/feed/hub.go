package feed

import (
	"sync"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"
)

// Hub owns one Buffer per stage instance.
type Hub struct {
	mu        sync.Mutex
	size      int
	buffers   map[string]*Buffer
	listeners []func(Update)
}

func NewHub(size int) *Hub {
	return &Hub{size: size, buffers: map[string]*Buffer{}}
}

func (h *Hub) Buffer(key stage.Key) *Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key.String()
	buf := h.buffers[k]
	if buf == nil {
		buf = NewBuffer(h.size)
		h.buffers[k] = buf
	}
	return buf
}

// OnPublish registers fn to run synchronously for every accepted update.
// A stale publish that carries events is still handed to fn, since those
// events were committed and subscribers never see them. fn must not block.
func (h *Hub) OnPublish(fn func(Update)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *Hub) Publish(key stage.Key, pd chip.PublicData, events []chip.Event) (Update, bool) {
	u, ok := h.Buffer(key).Append(key.String(), pd, events)
	if !ok {
		if len(events) > 0 {
			h.notify(newUpdate(key.String(), pd, events))
		}
		return u, false
	}
	h.notify(u)
	return u, true
}

func (h *Hub) notify(u Update) {
	h.mu.Lock()
	listeners := append([]func(Update){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(u)
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, buf := range h.buffers {
		buf.Close()
		delete(h.buffers, k)
	}
}
