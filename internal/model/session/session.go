package session

import "time"

// Cursor is a pointer coordinate relative to the editable region.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Selection is a character range inside the shared document.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty reports whether the range selects nothing.
func (s Selection) Empty() bool {
	return s.Start == s.End
}

// Session captures one live connection and its ephemeral state.
type Session struct {
	ID             string
	CursorPosition *Cursor
	ConnectedAt    time.Time
}

// Info returns the public view shared with clients.
func (s Session) Info() UserInfo {
	info := UserInfo{ID: s.ID}
	if s.CursorPosition != nil {
		c := *s.CursorPosition
		info.CursorPosition = &c
	}
	return info
}

// UserInfo is the user list entry sent in init and user_disconnect events.
type UserInfo struct {
	ID             string  `json:"id"`
	CursorPosition *Cursor `json:"cursorPosition"`
}
