package store

import (
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe
// mechanism for real-time updates. Device views are keyed by device ID,
// with new views replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber to prevent blocking the update
// loop.
type MemoryStore struct {
	mu          sync.RWMutex
	views       map[string]DeviceView
	subscribers map[chan DeviceView]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		views:       make(map[string]DeviceView),
		subscribers: make(map[chan DeviceView]struct{}),
	}
}

// Update stores a [DeviceView] and notifies all subscribers.
//
// The view is stored using its ID as the key. Subsequent updates with the
// same ID replace the previous value.
func (m *MemoryStore) Update(view DeviceView) {
	m.mu.Lock()
	m.views[view.ID] = view
	m.mu.Unlock()

	m.notifySubscribers(view)
}

// GetAll returns a snapshot of all currently stored device views.
//
// The returned slice is a copy; modifications do not affect the store.
// Order is not guaranteed.
func (m *MemoryStore) GetAll() []DeviceView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	views := make([]DeviceView, 0, len(m.views))
	for _, view := range m.views {
		views = append(views, view)
	}
	return views
}

// Subscribe creates a new subscription and returns a channel for receiving
// updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource
// leaks.
func (m *MemoryStore) Subscribe() <-chan DeviceView {
	ch := make(chan DeviceView, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown
// channel.
func (m *MemoryStore) Unsubscribe(ch <-chan DeviceView) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the view to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the
// message is dropped for that subscriber rather than blocking the update
// path.
func (m *MemoryStore) notifySubscribers(view DeviceView) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- view:
		default:
			// subscriber is slow, drop the message
		}
	}
}
