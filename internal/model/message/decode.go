package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zhouzirui/collabpad/backend/internal/model/session"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
)

// Inbound is a validated client→server message.
type Inbound struct {
	Type      string
	Content   string
	Cursor    session.Cursor
	Selection session.Selection
}

type envelope struct {
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	Content   json.RawMessage `json:"content"`
	Cursor    json.RawMessage `json:"cursor"`
	Selection json.RawMessage `json:"selection"`
}

type cursorFields struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type selectionFields struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

// Decode parses one inbound frame. Payload fields are only inspected for
// the type that needs them; unknown fields are ignored.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msgType := env.Type
	if msgType == "" {
		msgType = env.Action
	}
	if msgType == "" {
		return Inbound{}, fmt.Errorf("%w: type", ErrMissingField)
	}

	in := Inbound{Type: msgType}
	switch msgType {
	case TypeUpdate:
		if absent(env.Content) {
			return Inbound{}, fmt.Errorf("%w: content", ErrMissingField)
		}
		if err := json.Unmarshal(env.Content, &in.Content); err != nil {
			return Inbound{}, fmt.Errorf("%w: content: %v", ErrMalformed, err)
		}
	case TypeCursor:
		if absent(env.Cursor) {
			return Inbound{}, fmt.Errorf("%w: cursor", ErrMissingField)
		}
		var c cursorFields
		if err := json.Unmarshal(env.Cursor, &c); err != nil {
			return Inbound{}, fmt.Errorf("%w: cursor: %v", ErrMalformed, err)
		}
		if c.X == nil || c.Y == nil {
			return Inbound{}, fmt.Errorf("%w: cursor.x/cursor.y", ErrMissingField)
		}
		in.Cursor = session.Cursor{X: *c.X, Y: *c.Y}
	case TypeSelection:
		if absent(env.Selection) {
			return Inbound{}, fmt.Errorf("%w: selection", ErrMissingField)
		}
		var s selectionFields
		if err := json.Unmarshal(env.Selection, &s); err != nil {
			return Inbound{}, fmt.Errorf("%w: selection: %v", ErrMalformed, err)
		}
		if s.Start == nil || s.End == nil {
			return Inbound{}, fmt.Errorf("%w: selection.start/selection.end", ErrMissingField)
		}
		in.Selection = session.Selection{Start: *s.Start, End: *s.End}
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, msgType)
	}
	return in, nil
}

func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Event is the union of every server→client message, used by clients to
// dispatch on Type before looking at the payload.
type Event struct {
	Type      string             `json:"type"`
	Content   *string            `json:"content,omitempty"`
	UserID    string             `json:"userId,omitempty"`
	Users     []session.UserInfo `json:"users,omitempty"`
	Cursor    *session.Cursor    `json:"cursor,omitempty"`
	Selection *session.Selection `json:"selection,omitempty"`
}

// ParseEvent decodes a server→client frame.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("%w: type", ErrMissingField)
	}
	return ev, nil
}
