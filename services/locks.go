package services

import (
	"sort"
	"sync"
)

// keyedMutex serializes work per key (battle id, user id, tournament id)
// without a global lock. Entries are dropped once no goroutine holds them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is held and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll acquires several keys in sorted order so concurrent callers cannot deadlock.
func (k *keyedMutex) LockAll(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	unlocks := make([]func(), 0, len(sorted))
	var prev string
	for i, key := range sorted {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
