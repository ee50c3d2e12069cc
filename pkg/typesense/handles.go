package typesense

import "sync"

// handles caches child handles by key, creating each on first use.
type handles[T any] struct {
	mutex   sync.RWMutex
	entries map[string]T
	create  func(key string) T
}

func newHandles[T any](create func(key string) T) *handles[T] {
	return &handles[T]{
		entries: make(map[string]T),
		create:  create,
	}
}

func (h *handles[T]) get(key string) T {
	h.mutex.RLock()
	entry, exists := h.entries[key]
	h.mutex.RUnlock()

	if exists {
		return entry
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	// Another goroutine may have created it meanwhile.
	if entry, exists = h.entries[key]; exists {
		return entry
	}

	entry = h.create(key)
	h.entries[key] = entry
	return entry
}
