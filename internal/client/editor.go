package client

import (
	"strings"
	"sync"

	"github.com/zhouzirui/collabpad/backend/internal/model/message"
	"github.com/zhouzirui/collabpad/backend/internal/model/session"
)

// Status is the local view of the transport.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Editor is a headless replica of the browser editor: it projects server
// events onto local state and decides which local actions are transmitted.
type Editor struct {
	mu         sync.Mutex
	cache      Cache
	status     Status
	text       string
	userID     string
	users      []session.UserInfo
	cursors    map[string]session.Cursor
	selections map[string]session.Selection
	restore    *string
}

// NewEditor builds an editor backed by cache. A nil cache keeps nothing.
func NewEditor(cache Cache) *Editor {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Editor{
		cache:      cache,
		cursors:    make(map[string]session.Cursor),
		selections: make(map[string]session.Selection),
	}
}

// IsBoundary reports whether text ends with a character that triggers an
// update: a space or a newline. Anything typed mid-word waits for the next
// boundary, and deletions only transmit when they leave one at the end.
func IsBoundary(text string) bool {
	return strings.HasSuffix(text, " ") || strings.HasSuffix(text, "\n")
}

// Connected marks the transport open and stages any cached offline text
// for replay once init arrives.
func (e *Editor) Connected() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status = StatusConnected
	if cached, ok := e.cache.Load(); ok && cached != "" {
		e.restore = &cached
	}
}

// Disconnected marks the transport lost. Local text is kept and cached.
func (e *Editor) Disconnected() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status = StatusDisconnected
	e.restore = nil
	return e.cache.Save(e.text)
}

// Apply projects one server event. It returns messages that must be sent
// in response, which only happens when init completes an offline replay.
func (e *Editor) Apply(ev message.Event) []any {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Type {
	case message.TypeInit:
		return e.applyInit(ev)
	case message.TypeUpdate:
		// Wholesale overwrite. Local caret/selection are not preserved.
		if ev.Content != nil {
			e.text = *ev.Content
		}
	case message.TypeCursor:
		if ev.Cursor != nil && ev.UserID != "" && ev.UserID != e.userID {
			e.cursors[ev.UserID] = *ev.Cursor
		}
	case message.TypeSelection:
		if ev.Selection != nil && ev.UserID != "" && ev.UserID != e.userID {
			e.selections[ev.UserID] = *ev.Selection
		}
	case message.TypeUserDisconnect:
		delete(e.cursors, ev.UserID)
		delete(e.selections, ev.UserID)
		e.users = copyUsers(ev.Users)
	}
	return nil
}

func (e *Editor) applyInit(ev message.Event) []any {
	e.userID = ev.UserID
	e.users = copyUsers(ev.Users)

	if e.restore == nil {
		if ev.Content != nil {
			e.text = *ev.Content
		}
		return nil
	}

	cached := *e.restore
	e.restore = nil
	e.text = cached
	_ = e.cache.Clear()
	return []any{message.NewUpdate(cached)}
}

// Edit records the full local text after an input event. The text is
// always cached; an update is returned only while connected and when the
// text ends on a boundary character.
func (e *Editor) Edit(text string) (message.Update, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.text = text
	_ = e.cache.Save(text)
	if e.status != StatusConnected || !IsBoundary(text) {
		return message.Update{}, false
	}
	return message.NewUpdate(text), true
}

// PointerMove returns a cursor event for every move inside the editable
// width×height region. Moves are not throttled.
func (e *Editor) PointerMove(x, y, width, height float64) (message.CursorEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusConnected {
		return message.CursorEvent{}, false
	}
	if x < 0 || y < 0 || x > width || y > height {
		return message.CursorEvent{}, false
	}
	return message.NewCursor("", session.Cursor{X: x, Y: y}), true
}

// Release returns a selection event when a pointer release leaves a
// non-empty selection.
func (e *Editor) Release(start, end int) (message.SelectionEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel := session.Selection{Start: start, End: end}
	if e.status != StatusConnected || sel.Empty() {
		return message.SelectionEvent{}, false
	}
	return message.NewSelection("", sel), true
}

// Text returns the local document text.
func (e *Editor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

// UserID returns the id assigned by the server, empty before init.
func (e *Editor) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Status returns the transport status.
func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Users returns the last user list received.
func (e *Editor) Users() []session.UserInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyUsers(e.users)
}

// Cursor returns the overlay for a remote session.
func (e *Editor) Cursor(userID string) (session.Cursor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cursors[userID]
	return c, ok
}

// Selection returns the highlighted range of a remote session.
func (e *Editor) Selection(userID string) (session.Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.selections[userID]
	return s, ok
}

func copyUsers(users []session.UserInfo) []session.UserInfo {
	return append([]session.UserInfo(nil), users...)
}
