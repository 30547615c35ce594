// Package realtime fans Postgres notifications out to in-process subscribers.
package realtime

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-report-api/pkg/config"
)

// ErrHubClosed is returned by Subscribe once the hub has been closed.
var ErrHubClosed = errors.New("realtime hub closed")

const defaultBufferSize = 64

// Hub owns a single LISTEN connection and copies every payload it receives to
// each subscriber. A subscriber whose buffer is full misses the message.
type Hub struct {
	logger     *zap.Logger
	bufferSize int

	mu     sync.RWMutex
	subs   map[uint64]chan []byte
	nextID uint64
	closed bool

	connected atomic.Bool
	listener  *pq.Listener
	done      chan struct{}
}

// NewHub creates a hub without a transport. Payloads reach subscribers only
// through Publish; Listen attaches a Postgres listener.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		logger:     logger,
		bufferSize: bufferSize,
		subs:       make(map[uint64]chan []byte),
		done:       make(chan struct{}),
	}
}

// Listen opens a pq.Listener on channel and starts forwarding its
// notifications. The listener reconnects on its own between MinReconnect and
// MaxReconnect.
func Listen(dsn, channel string, cfg config.FeedConfig, logger *zap.Logger) (*Hub, error) {
	h := NewHub(cfg.BufferSize, logger)
	h.listener = pq.NewListener(dsn, cfg.MinReconnect, cfg.MaxReconnect, h.handleEvent)
	if err := h.listener.Listen(channel); err != nil {
		_ = h.listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", channel, err)
	}
	go h.forward(h.listener.Notify)
	h.logger.Info("change feed listening", zap.String("channel", channel))
	return h, nil
}

func (h *Hub) forward(notifications <-chan *pq.Notification) {
	for {
		select {
		case <-h.done:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			// pq delivers nil after a reconnect; anything sent meanwhile is lost.
			if n == nil {
				h.logger.Warn("change feed reconnected, notifications may have been missed")
				continue
			}
			h.Publish([]byte(n.Extra))
		}
	}
}

func (h *Hub) handleEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		h.SetConnected(true)
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		h.SetConnected(false)
		if err != nil {
			h.logger.Warn("change feed connection lost", zap.Error(err))
		}
	}
}

// SetConnected records the transport state reported by the listener.
func (h *Hub) SetConnected(connected bool) {
	h.connected.Store(connected)
}

// Connected reports whether the transport is currently connected.
func (h *Hub) Connected() bool {
	return h.connected.Load()
}

// Publish delivers payload to every subscriber without blocking.
func (h *Hub) Publish(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("dropping change for slow subscriber", zap.Uint64("subscriber", id))
		}
	}
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	C <-chan []byte

	hub  *Hub
	id   uint64
	once sync.Once
}

// Subscribe registers a new consumer.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.nextID++
	ch := make(chan []byte, h.bufferSize)
	h.subs[h.nextID] = ch
	return &Subscription{C: ch, hub: h, id: h.nextID}, nil
}

// Close unregisters the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if ch, ok := s.hub.subs[s.id]; ok {
			delete(s.hub.subs, s.id)
			close(ch)
		}
	})
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close stops the listener and closes every subscription channel.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	close(h.done)
	h.mu.Unlock()

	h.SetConnected(false)
	if h.listener != nil {
		return h.listener.Close()
	}
	return nil
}
