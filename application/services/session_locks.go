package services

import "sync"

// lockEntry is one session's mutex plus a reference count so idle entries
// can be dropped from the registry.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks serializes turn processing per session. The design assumes
// at most one in-flight turn per session from a well-behaved client; the
// registry enforces it for racing clients so sequence numbers and question
// counts never see lost updates.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the session's lock is held and returns the release
// function. The entry is removed once the last holder releases.
func (l *sessionLocks) acquire(sessionID string) (release func()) {
	l.mu.Lock()
	entry, ok := l.entries[sessionID]
	if !ok {
		entry = &lockEntry{}
		l.entries[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, sessionID)
		}
		l.mu.Unlock()
	}
}
