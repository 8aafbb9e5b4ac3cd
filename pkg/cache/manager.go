package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// EventType describes what happened to a cached key.
type EventType string

const (
	// EventUpdated is sent after a fresh value was stored.
	EventUpdated EventType = "updated"

	// EventInvalidated is sent after the value was dropped by tag invalidation.
	EventInvalidated EventType = "invalidated"
)

// Event is delivered to subscribers.
type Event struct {
	Type EventType
	Key  string
	Tag  string // set for EventInvalidated
}

// Listener receives cache events. It runs on the goroutine that caused the
// event and must not block. Work that reads or writes the cache again belongs
// on another goroutine.
type Listener func(Event)

// Manager fronts a Store with metrics, logging and subscriptions.
// Construct one per application instance.
type Manager struct {
	store  Store
	logger zerolog.Logger

	mu      sync.RWMutex
	nextID  uint64
	keySubs map[string]map[uint64]Listener
	tagSubs map[string]map[uint64]Listener
}

// NewManager creates a new cache manager over store.
func NewManager(store Store, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Manager{
		store:   store,
		logger:  logger.With().Str("cache_layer", store.Name()).Logger(),
		keySubs: make(map[string]map[uint64]Listener),
		tagSubs: make(map[string]map[uint64]Listener),
	}
}

// Store returns the underlying backend.
func (m *Manager) Store() Store {
	return m.store
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	entry, err := m.store.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	CacheHits.WithLabelValues(m.store.Name()).Inc()
	return entry, nil
}

// Set stores a cache entry and notifies subscribers of the key.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	k := key.String()
	if err := m.store.Set(ctx, k, entry); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	m.logger.Debug().
		Str("key", k).
		Strs("tags", entry.Tags).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")

	m.notify(Event{Type: EventUpdated, Key: k}, entry.Tags)
	return nil
}

// Delete removes a cache entry without notifying subscribers.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.store.Delete(ctx, key.String()); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Invalidate drops every entry tagged with tag and returns how many were
// removed. Key subscribers of the removed entries and tag subscribers are
// notified, even when nothing was cached.
func (m *Manager) Invalidate(ctx context.Context, tag string) (int, error) {
	keys, err := m.store.InvalidateTag(ctx, tag)
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, err
	}

	CacheInvalidations.WithLabelValues(tag).Add(float64(len(keys)))
	m.logger.Debug().
		Str("tag", tag).
		Int("entries", len(keys)).
		Msg("Invalidated tag")

	for _, k := range keys {
		m.notifyKey(Event{Type: EventInvalidated, Key: k, Tag: tag})
	}
	m.notifyTag(tag, Event{Type: EventInvalidated, Tag: tag})

	return len(keys), nil
}

// Subscribe registers l for events on key. The returned func removes it.
func (m *Manager) Subscribe(key CacheKey, l Listener) func() {
	return m.subscribe(m.keySubs, key.String(), l)
}

// SubscribeTag registers l for invalidations of tag and for updates of any
// entry carrying tag.
func (m *Manager) SubscribeTag(tag string, l Listener) func() {
	return m.subscribe(m.tagSubs, tag, l)
}

func (m *Manager) subscribe(subs map[string]map[uint64]Listener, name string, l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	if subs[name] == nil {
		subs[name] = make(map[uint64]Listener)
	}
	subs[name][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(subs[name], id)
			if len(subs[name]) == 0 {
				delete(subs, name)
			}
		})
	}
}

func (m *Manager) notify(ev Event, tags []string) {
	m.notifyKey(ev)
	for _, tag := range tags {
		tagEv := ev
		tagEv.Tag = tag
		m.notifyTag(tag, tagEv)
	}
}

func (m *Manager) notifyKey(ev Event) {
	for _, l := range m.listeners(m.keySubs, ev.Key) {
		l(ev)
	}
}

func (m *Manager) notifyTag(tag string, ev Event) {
	for _, l := range m.listeners(m.tagSubs, tag) {
		l(ev)
	}
}

// listeners copies the current listeners so they run without m.mu held.
func (m *Manager) listeners(subs map[string]map[uint64]Listener, name string) []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Listener, 0, len(subs[name]))
	for _, l := range subs[name] {
		out = append(out, l)
	}
	return out
}
