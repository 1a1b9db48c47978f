// Package status tracks the connection status reported to the host.
package status

import (
	"sync"
	"time"
)

// Status is the connection state surfaced in the host UI.
type Status string

const (
	StatusConnecting        Status = "connecting"
	StatusOK                Status = "ok"
	StatusConnectionFailure Status = "connectionFailure"
)

// Snapshot is a point-in-time copy of the tracked status.
type Snapshot struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Offline   bool      `json:"offline"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Callback is called when the status changes.
type Callback func(snapshot Snapshot)

// Tracker holds the current connection status with thread safety.
type Tracker struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	callbacks []Callback
}

// NewTracker creates a tracker in the connecting state.
func NewTracker() *Tracker {
	return &Tracker{
		snapshot: Snapshot{
			Status:    StatusConnecting,
			UpdatedAt: time.Now(),
		},
		callbacks: make([]Callback, 0),
	}
}

// Subscribe adds a callback for status changes. Returns an unsubscribe function.
func (t *Tracker) Subscribe(callback Callback) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callbacks = append(t.callbacks, callback)
	idx := len(t.callbacks) - 1

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// Mark as nil instead of removing to preserve indices
		if idx < len(t.callbacks) {
			t.callbacks[idx] = nil
		}
	}
}

// Get returns a copy of the current status.
func (t *Tracker) Get() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Set records a new status. Subscribers are only notified when the status or
// message actually changed.
func (t *Tracker) Set(s Status, message string) {
	t.mu.Lock()
	if t.snapshot.Status == s && t.snapshot.Message == message {
		t.mu.Unlock()
		return
	}
	t.snapshot.Status = s
	t.snapshot.Message = message
	t.snapshot.UpdatedAt = time.Now()
	t.mu.Unlock()

	t.notify()
}

// SetOffline records whether the catalog is running on stale data.
func (t *Tracker) SetOffline(offline bool) {
	t.mu.Lock()
	if t.snapshot.Offline == offline {
		t.mu.Unlock()
		return
	}
	t.snapshot.Offline = offline
	t.snapshot.UpdatedAt = time.Now()
	t.mu.Unlock()

	t.notify()
}

func (t *Tracker) notify() {
	// Copy under the lock, call without it
	t.mu.RLock()
	snapshot := t.snapshot
	callbacks := make([]Callback, len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(snapshot)
		}
	}
}
