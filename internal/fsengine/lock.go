package fsengine

import "sync"

// lockEntry pairs a reader/writer lock with a reference count of the
// goroutines currently holding or waiting on it, mirroring the original
// service's GHashTable-of-locks-with-refcount design in file_locking.c.
type lockEntry struct {
	rw       sync.RWMutex
	refCount int
}

// lockTable is a process-wide, path-keyed table of per-file reader/writer
// locks. Entries are created lazily on first access and removed once no
// goroutine holds or is waiting on them, so the table never grows
// unbounded with file churn.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// getOrCreate returns the entry for path, creating it if absent, and
// increments its reference count. Callers must pair this with release.
func (t *lockTable) getOrCreate(path string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		e = &lockEntry{}
		t.entries[path] = e
	}
	e.refCount++
	return e
}

// release decrements path's reference count and removes the entry from
// the table once no one else references it.
func (t *lockTable) release(path string, e *lockEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.refCount--
	if e.refCount <= 0 {
		delete(t.entries, path)
	}
}

// RLock acquires a shared (reader) lock on path and returns a function
// that releases it. Multiple readers may hold the lock concurrently.
func (t *lockTable) RLock(path string) func() {
	e := t.getOrCreate(path)
	e.rw.RLock()
	return func() {
		e.rw.RUnlock()
		t.release(path, e)
	}
}

// Lock acquires an exclusive (writer) lock on path and returns a function
// that releases it. Used for WRITE-COMMIT, UNDO, REVERT, and DELETE so
// DELETE naturally waits for any in-flight readers or writers to finish
// before it removes the file, matching file_lock_remove's
// wait-for-refcount-zero behavior.
func (t *lockTable) Lock(path string) func() {
	e := t.getOrCreate(path)
	e.rw.Lock()
	return func() {
		e.rw.Unlock()
		t.release(path, e)
	}
}

// entryCount reports how many distinct paths currently have live lock
// entries; used by tests to confirm entries are cleaned up after release.
func (t *lockTable) entryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
