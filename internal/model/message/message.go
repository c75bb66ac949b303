package message

import "github.com/zhouzirui/collabpad/backend/internal/model/session"

// Message type discriminators shared by server and clients.
const (
	TypeInit           = "init"
	TypeUpdate         = "update"
	TypeCursor         = "cursor"
	TypeSelection      = "selection"
	TypeUserDisconnect = "user_disconnect"
)

// Init seeds a freshly opened session.
type Init struct {
	Type    string             `json:"type"`
	Content string             `json:"content"`
	UserID  string             `json:"userId"`
	Users   []session.UserInfo `json:"users"`
}

// NewInit builds the init event for userID.
func NewInit(content, userID string, users []session.UserInfo) Init {
	return Init{Type: TypeInit, Content: content, UserID: userID, Users: nonNilUsers(users)}
}

// Update carries the full document content.
type Update struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewUpdate builds an update event. Used in both directions.
func NewUpdate(content string) Update {
	return Update{Type: TypeUpdate, Content: content}
}

// CursorEvent relays a pointer position. UserID is empty on the client→server leg.
type CursorEvent struct {
	Type   string         `json:"type"`
	UserID string         `json:"userId,omitempty"`
	Cursor session.Cursor `json:"cursor"`
}

// NewCursor builds a cursor event attributed to userID.
func NewCursor(userID string, cursor session.Cursor) CursorEvent {
	return CursorEvent{Type: TypeCursor, UserID: userID, Cursor: cursor}
}

// SelectionEvent relays a selected range. UserID is empty on the client→server leg.
type SelectionEvent struct {
	Type      string            `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	Selection session.Selection `json:"selection"`
}

// NewSelection builds a selection event attributed to userID.
func NewSelection(userID string, selection session.Selection) SelectionEvent {
	return SelectionEvent{Type: TypeSelection, UserID: userID, Selection: selection}
}

// UserDisconnect announces a departed session and the remaining user list.
type UserDisconnect struct {
	Type   string             `json:"type"`
	UserID string             `json:"userId"`
	Users  []session.UserInfo `json:"users"`
}

// NewUserDisconnect builds the departure notice for userID.
func NewUserDisconnect(userID string, users []session.UserInfo) UserDisconnect {
	return UserDisconnect{Type: TypeUserDisconnect, UserID: userID, Users: nonNilUsers(users)}
}

func nonNilUsers(users []session.UserInfo) []session.UserInfo {
	if users == nil {
		return []session.UserInfo{}
	}
	return users
}
