package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/collabpad/backend/internal/model/message"
)

const writeTimeout = 10 * time.Second

// Conn connects an Editor to a collaboration server.
type Conn struct {
	ws      *websocket.Conn
	editor  *Editor
	writeMu sync.Mutex
	closing atomic.Bool
}

// Dial opens a websocket to url and marks editor connected.
func Dial(ctx context.Context, url string, editor *Editor) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	editor.Connected()
	return &Conn{ws: ws, editor: editor}, nil
}

// Editor returns the editor fed by this connection.
func (c *Conn) Editor() *Editor {
	return c.editor
}

// Run applies server events to the editor until the connection ends. The
// editor is marked disconnected on return. onEvent, if set, observes each
// event after it has been applied.
func (c *Conn) Run(ctx context.Context, onEvent func(message.Event)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	defer func() {
		if err := c.editor.Disconnected(); err != nil {
			log.Printf("[client] cache save failed: %v", err)
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		ev, err := message.ParseEvent(data)
		if err != nil {
			log.Printf("[client] dropped event: %v", err)
			continue
		}

		for _, reply := range c.editor.Apply(ev) {
			if err := c.write(reply); err != nil {
				return err
			}
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
}

// Edit records local text and transmits it when it ends on a boundary.
// It reports whether an update was sent.
func (c *Conn) Edit(text string) (bool, error) {
	msg, ok := c.editor.Edit(text)
	if !ok {
		return false, nil
	}
	return true, c.write(msg)
}

// Publish replaces the local text and transmits it unconditionally, the
// way cached offline text is replayed.
func (c *Conn) Publish(content string) error {
	c.editor.Edit(content)
	return c.write(message.NewUpdate(content))
}

// MovePointer transmits a pointer position inside a width×height region.
func (c *Conn) MovePointer(x, y, width, height float64) error {
	msg, ok := c.editor.PointerMove(x, y, width, height)
	if !ok {
		return nil
	}
	return c.write(msg)
}

// Select transmits a released selection when it is non-empty.
func (c *Conn) Select(start, end int) error {
	msg, ok := c.editor.Release(start, end)
	if !ok {
		return nil
	}
	return c.write(msg)
}

// Close sends a normal close frame and tears down the socket.
func (c *Conn) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

func (c *Conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
