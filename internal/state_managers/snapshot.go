package state_managers

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
)

// Listener receives every published snapshot. Listeners run synchronously on
// the publishing goroutine and must not call Update.
type Listener func(models.Snapshot)

// SnapshotReader is the read side handed to presentation collaborators.
type SnapshotReader interface {
	Current() models.Snapshot
	Subscribe(listener Listener) (unsubscribe func())
}

// SnapshotManager holds the current snapshot and fans every update out to listeners.
type SnapshotManager struct {
	// publishMu serializes Update so listeners observe snapshots in sequence order.
	publishMu sync.Mutex

	mu        sync.RWMutex
	current   models.Snapshot
	listeners []*subscription
	nextID    uint64

	logger zerolog.Logger
}

type subscription struct {
	id       uint64
	listener Listener
}

var _ SnapshotReader = (*SnapshotManager)(nil)

// NewSnapshotManager creates a manager holding the startup snapshot.
func NewSnapshotManager(logger zerolog.Logger) *SnapshotManager {
	return &SnapshotManager{
		current: models.NewSnapshot(),
		logger:  logger,
	}
}

// Current returns the latest published snapshot.
func (sm *SnapshotManager) Current() models.Snapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Subscribe registers listener and returns a handle removing it. The handle is
// safe to call more than once.
func (sm *SnapshotManager) Subscribe(listener Listener) func() {
	sm.mu.Lock()
	sm.nextID++
	id := sm.nextID
	sm.listeners = append(sm.listeners, &subscription{id: id, listener: listener})
	sm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { sm.unsubscribe(id) })
	}
}

func (sm *SnapshotManager) unsubscribe(id uint64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for i, sub := range sm.listeners {
		if sub.id == id {
			sm.listeners = append(sm.listeners[:i:i], sm.listeners[i+1:]...)
			return
		}
	}
}

// Update derives the next snapshot from the current one, stores it with the
// next sequence number and notifies every listener in subscription order.
func (sm *SnapshotManager) Update(fn func(models.Snapshot) models.Snapshot) models.Snapshot {
	sm.publishMu.Lock()
	defer sm.publishMu.Unlock()

	sm.mu.Lock()
	next := fn(sm.current)
	next.Sequence = sm.current.Sequence + 1
	sm.current = next
	listeners := make([]*subscription, len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	for _, sub := range listeners {
		sm.notify(sub, next)
	}
	return next
}

// ListenerCount returns the number of registered listeners.
func (sm *SnapshotManager) ListenerCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.listeners)
}

func (sm *SnapshotManager) notify(sub *subscription, snap models.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error().
				Err(fmt.Errorf("listener panic: %v", r)).
				Uint64("listener", sub.id).
				Uint64("sequence", snap.Sequence).
				Msg("Snapshot listener failed")
		}
	}()
	sub.listener(snap)
}
