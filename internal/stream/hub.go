// Package stream fans settlement summaries out to live subscribers (audit
// sinks, dashboard widgets).
package stream

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Hub struct {
	mu      sync.RWMutex
	subs    map[chan any]struct{}
	logger  *zap.Logger
	dropped uint64
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[chan any]struct{}{},
		logger: logger,
	}
}

// Subscribe registers a buffered channel fed by Publish. Callers must drain
// it and call Unsubscribe when done.
func (h *Hub) Subscribe(buf int) chan any {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan any, buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan any) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers to every subscriber without blocking; slow consumers
// lose events rather than stalling settlement.
func (h *Hub) Publish(event any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			atomic.AddUint64(&h.dropped, 1)
			if h.logger != nil {
				h.logger.Warn("stream subscriber too slow, dropping event")
			}
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
