package services

import (
	"sync"
	"time"
)

type undoEntry struct {
	userID  uint
	eventID uint
	at      time.Time
}

// UndoLedger remembers, per login session, the last event that session recorded.
// It lives in process memory: the app runs as a single process.
type UndoLedger struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]undoEntry
}

func NewUndoLedger(window time.Duration) *UndoLedger {
	return &UndoLedger{window: window, entries: make(map[string]undoEntry)}
}

func (l *UndoLedger) Window() time.Duration { return l.window }

// Remember replaces the session's undo entry.
func (l *UndoLedger) Remember(sessionID string, userID, eventID uint, at time.Time) {
	if sessionID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[sessionID] = undoEntry{userID: userID, eventID: eventID, at: at}
	l.gcLocked(at)
}

// Take consumes the session's entry and returns the event it points at. The entry
// is removed whatever the outcome, so a failed undo cannot be retried.
func (l *UndoLedger) Take(sessionID string, userID uint, now time.Time) (uint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[sessionID]
	if !ok || sessionID == "" {
		return 0, ErrNothingToUndo
	}
	delete(l.entries, sessionID)

	if e.userID != userID {
		return 0, ErrForbidden
	}
	if now.Sub(e.at) > l.window {
		return 0, ErrUndoExpired
	}
	return e.eventID, nil
}

// Forget drops any entry pointing at eventID, e.g. after the event was deleted by hand.
func (l *UndoLedger) Forget(eventID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sid, e := range l.entries {
		if e.eventID == eventID {
			delete(l.entries, sid)
		}
	}
}

// gcLocked drops entries that can no longer be undone.
func (l *UndoLedger) gcLocked(now time.Time) {
	for sid, e := range l.entries {
		if now.Sub(e.at) > l.window {
			delete(l.entries, sid)
		}
	}
}
