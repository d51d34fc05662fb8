// internal/services/registry.go
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/javajoker/marketflow/internal/metrics"
)

var errEntryNotFound = errors.New("entry not found")

type registryEntry[T any] struct {
	mu      sync.Mutex
	value   T
	touched time.Time
}

// registry holds per-client state in memory. Each entry has its own lock so
// one slow backend call never blocks other clients, and a janitor evicts
// entries idle for longer than idleTTL.
type registry[T any] struct {
	kind    string
	mu      sync.Mutex
	entries map[string]*registryEntry[T]
	idleTTL time.Duration
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newRegistry[T any](kind string, idleTTL time.Duration) *registry[T] {
	r := &registry[T]{
		kind:    kind,
		entries: make(map[string]*registryEntry[T]),
		idleTTL: idleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if idleTTL > 0 {
		go r.janitor()
	} else {
		close(r.done)
	}
	return r
}

func (r *registry[T]) janitor() {
	defer close(r.done)

	interval := r.idleTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

// sweep removes idle entries and reports how many were evicted. Entries
// that are locked by an in-flight request are skipped.
func (r *registry[T]) sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, entry := range r.entries {
		if !entry.mu.TryLock() {
			continue
		}
		if entry.touched.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
		entry.mu.Unlock()
	}
	r.report()
	return evicted
}

func (r *registry[T]) put(id string, value T) {
	r.mu.Lock()
	r.entries[id] = &registryEntry[T]{value: value, touched: r.now()}
	r.report()
	r.mu.Unlock()
}

func (r *registry[T]) lookup(id string, create func() T) *registryEntry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		if create == nil {
			return nil
		}
		entry = &registryEntry[T]{value: create(), touched: r.now()}
		r.entries[id] = entry
		r.report()
	}
	return entry
}

// with runs fn on the entry under its lock.
func (r *registry[T]) with(id string, fn func(value *T) error) error {
	return r.withEntry(id, nil, fn)
}

// withOrCreate is like with but creates the entry when it is missing.
func (r *registry[T]) withOrCreate(id string, create func() T, fn func(value *T) error) error {
	return r.withEntry(id, create, fn)
}

func (r *registry[T]) withEntry(id string, create func() T, fn func(value *T) error) error {
	for {
		entry := r.lookup(id, create)
		if entry == nil {
			return errEntryNotFound
		}

		entry.mu.Lock()
		// the entry may have been evicted or replaced while we waited for it
		if !r.holds(id, entry) {
			entry.mu.Unlock()
			continue
		}

		err := fn(&entry.value)
		entry.touched = r.now()
		entry.mu.Unlock()
		return err
	}
}

func (r *registry[T]) holds(id string, entry *registryEntry[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id] == entry
}

func (r *registry[T]) remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.report()
	r.mu.Unlock()
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// report must be called with mu held.
func (r *registry[T]) report() {
	metrics.ActiveEntries.WithLabelValues(r.kind).Set(float64(len(r.entries)))
}

// close stops the janitor and waits for it to exit.
func (r *registry[T]) close() {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}
