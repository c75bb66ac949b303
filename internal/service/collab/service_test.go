package collab_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/zhouzirui/collabpad/backend/internal/model/message"
	"github.com/zhouzirui/collabpad/backend/internal/service/collab"
	"github.com/zhouzirui/collabpad/backend/internal/service/registry/registrytest"
)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("u%d", n)
	}
}

type client struct {
	peer *registrytest.Peer
	conn *collab.Conn
	id   string
}

func connect(t *testing.T, svc *collab.Service) *client {
	t.Helper()
	peer := registrytest.NewPeer()
	conn := svc.Attach(peer)
	id, err := conn.Open(context.Background())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	return &client{peer: peer, conn: conn, id: id}
}

func (c *client) send(t *testing.T, raw string) {
	t.Helper()
	if err := c.conn.Receive(context.Background(), []byte(raw)); err != nil {
		t.Fatalf("Receive(%s) err: %v", raw, err)
	}
}

func TestOpenSendsInitWithCurrentState(t *testing.T) {
	svc := collab.NewService(collab.WithIDGenerator(sequentialIDs()), collab.WithInitialContent("seed"))
	a := connect(t, svc)

	inits := a.peer.EventsOfType(message.TypeInit)
	if len(inits) != 1 {
		t.Fatalf("expected one init, got %d", len(inits))
	}
	ev := inits[0]
	if ev.Content == nil || *ev.Content != "seed" {
		t.Fatalf("unexpected init content: %v", ev.Content)
	}
	if ev.UserID != "u1" || a.id != "u1" {
		t.Fatalf("unexpected user id: event=%s conn=%s", ev.UserID, a.id)
	}
	if len(ev.Users) != 1 || ev.Users[0].ID != "u1" {
		t.Fatalf("unexpected users: %+v", ev.Users)
	}

	a.send(t, `{"type":"update","content":"changed"}`)
	b := connect(t, svc)
	ev = b.peer.EventsOfType(message.TypeInit)[0]
	if *ev.Content != "changed" {
		t.Fatalf("late joiner saw stale content %q", *ev.Content)
	}
	if len(ev.Users) != 2 {
		t.Fatalf("expected two users in snapshot, got %d", len(ev.Users))
	}
}

func TestScenarioUpdateThenDisconnect(t *testing.T) {
	svc := collab.NewService(collab.WithIDGenerator(sequentialIDs()))
	b := connect(t, svc)
	a := connect(t, svc)

	if ev := a.peer.EventsOfType(message.TypeInit)[0]; *ev.Content != "" || ev.UserID != a.id {
		t.Fatalf("unexpected init for A: %+v", ev)
	}

	a.send(t, `{"type":"update","content":"hello "}`)

	updates := b.peer.EventsOfType(message.TypeUpdate)
	if len(updates) != 1 || *updates[0].Content != "hello " {
		t.Fatalf("B expected update 'hello ', got %+v", updates)
	}
	if len(a.peer.EventsOfType(message.TypeUpdate)) != 0 {
		t.Fatal("sender received its own update")
	}

	b.conn.Close(context.Background())

	notices := a.peer.EventsOfType(message.TypeUserDisconnect)
	if len(notices) != 1 || notices[0].UserID != b.id {
		t.Fatalf("A expected one user_disconnect for %s, got %+v", b.id, notices)
	}
	if len(notices[0].Users) != 1 || notices[0].Users[0].ID != a.id {
		t.Fatalf("unexpected remaining users: %+v", notices[0].Users)
	}
	if svc.Sessions() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.Sessions())
	}
}

func TestLastUpdateWins(t *testing.T) {
	svc := collab.NewService()
	clients := []*client{connect(t, svc), connect(t, svc), connect(t, svc)}

	contents := []string{"one ", "two ", "three ", "four "}
	for i, content := range contents {
		clients[i%len(clients)].send(t, fmt.Sprintf(`{"type":"update","content":%q}`, content))
	}

	if got := svc.Document().Content; got != "four " {
		t.Fatalf("expected last update to win, got %q", got)
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	svc := collab.NewService()
	clients := []*client{connect(t, svc), connect(t, svc), connect(t, svc), connect(t, svc)}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *client) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.conn.Receive(context.Background(), []byte(fmt.Sprintf(`{"type":"update","content":"c%d-%d "}`, i, j)))
			}
		}(i, c)
	}
	wg.Wait()

	// Each peer's last received update must be the final document unless it
	// was the sender of that last write.
	final := svc.Document().Content
	for _, c := range clients {
		updates := c.peer.EventsOfType(message.TypeUpdate)
		if len(updates) == 0 {
			continue
		}
		last := *updates[len(updates)-1].Content
		if last != final {
			own := fmt.Sprintf("c%d-49 ", indexOf(clients, c))
			if final != own {
				t.Fatalf("peer last saw %q but document is %q", last, final)
			}
		}
	}
}

func indexOf(clients []*client, target *client) int {
	for i, c := range clients {
		if c == target {
			return i
		}
	}
	return -1
}

func TestDuplicateUpdateStillBroadcasts(t *testing.T) {
	svc := collab.NewService()
	a, b := connect(t, svc), connect(t, svc)

	a.send(t, `{"type":"update","content":"same "}`)
	a.send(t, `{"type":"update","content":"same "}`)

	if got := svc.Document().Content; got != "same " {
		t.Fatalf("unexpected content %q", got)
	}
	if n := len(b.peer.EventsOfType(message.TypeUpdate)); n != 2 {
		t.Fatalf("expected two broadcasts, got %d", n)
	}
}

func TestCursorRelayCarriesOriginAndUpdatesRegistry(t *testing.T) {
	svc := collab.NewService(collab.WithIDGenerator(sequentialIDs()))
	a, b := connect(t, svc), connect(t, svc)

	a.send(t, `{"type":"cursor","cursor":{"x":10,"y":20}}`)
	b.send(t, `{"type":"cursor","cursor":{"x":30,"y":40}}`)

	gotA := a.peer.EventsOfType(message.TypeCursor)
	gotB := b.peer.EventsOfType(message.TypeCursor)
	if len(gotA) != 1 || gotA[0].UserID != b.id || gotA[0].Cursor.X != 30 {
		t.Fatalf("A expected B's cursor, got %+v", gotA)
	}
	if len(gotB) != 1 || gotB[0].UserID != a.id || gotB[0].Cursor.Y != 20 {
		t.Fatalf("B expected A's cursor, got %+v", gotB)
	}

	users := svc.Users()
	if users[0].CursorPosition == nil || users[0].CursorPosition.X != 10 {
		t.Fatalf("registry did not record A's cursor: %+v", users[0])
	}
}

func TestSelectionIsRelayedNotStored(t *testing.T) {
	svc := collab.NewService()
	a, b := connect(t, svc), connect(t, svc)

	a.send(t, `{"type":"selection","selection":{"start":2,"end":7}}`)

	got := b.peer.EventsOfType(message.TypeSelection)
	if len(got) != 1 || got[0].UserID != a.id || got[0].Selection.Start != 2 || got[0].Selection.End != 7 {
		t.Fatalf("unexpected selection relay: %+v", got)
	}
	if len(a.peer.EventsOfType(message.TypeSelection)) != 0 {
		t.Fatal("sender received its own selection")
	}
	if svc.Document().Content != "" {
		t.Fatal("selection must not touch the document")
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	svc := collab.NewService(collab.WithInitialContent("keep"))
	a, b := connect(t, svc), connect(t, svc)
	b.peer.Reset()

	for _, raw := range []string{
		`not json`,
		`{"type":"update"}`,
		`{"type":"rename","content":"x"}`,
		`{"action":"highlight","start":0,"end":1}`,
	} {
		if err := a.conn.Receive(context.Background(), []byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}

	if len(b.peer.Payloads()) != 0 {
		t.Fatal("dropped messages must not broadcast")
	}
	if svc.Document().Content != "keep" {
		t.Fatal("dropped messages must not change the document")
	}

	a.send(t, `{"type":"update","content":"still open "}`)
	if len(b.peer.EventsOfType(message.TypeUpdate)) != 1 {
		t.Fatal("connection should keep working after a dropped message")
	}
}

func TestCloseIsIdempotentAndNotifiesOnce(t *testing.T) {
	svc := collab.NewService()
	a, b, c := connect(t, svc), connect(t, svc), connect(t, svc)

	ctx := context.Background()
	a.conn.Close(ctx)
	a.conn.Close(ctx)

	for _, other := range []*client{b, c} {
		notices := other.peer.EventsOfType(message.TypeUserDisconnect)
		if len(notices) != 1 || notices[0].UserID != a.id {
			t.Fatalf("expected exactly one notice for %s, got %+v", a.id, notices)
		}
	}
	if a.conn.State() != collab.StateClosed {
		t.Fatalf("expected closed, got %s", a.conn.State())
	}
	if err := a.conn.Receive(ctx, []byte(`{"type":"update","content":"late"}`)); !errors.Is(err, collab.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen after close, got %v", err)
	}
}

func TestStateMachine(t *testing.T) {
	svc := collab.NewService()
	peer := registrytest.NewPeer()
	conn := svc.Attach(peer)
	ctx := context.Background()

	if conn.State() != collab.StateConnecting {
		t.Fatalf("expected connecting, got %s", conn.State())
	}
	if err := conn.Receive(ctx, []byte(`{"type":"update","content":"x"}`)); !errors.Is(err, collab.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen before open, got %v", err)
	}
	if _, err := conn.Open(ctx); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if _, err := conn.Open(ctx); !errors.Is(err, collab.ErrAlreadyOpened) {
		t.Fatalf("expected ErrAlreadyOpened, got %v", err)
	}
	if conn.State() != collab.StateOpen {
		t.Fatalf("expected open, got %s", conn.State())
	}
}

func TestCloseBeforeOpenDoesNotBroadcast(t *testing.T) {
	svc := collab.NewService()
	a := connect(t, svc)
	a.peer.Reset()

	pending := svc.Attach(registrytest.NewPeer())
	pending.Close(context.Background())

	if len(a.peer.Payloads()) != 0 {
		t.Fatal("a never-opened connection must not announce a disconnect")
	}
	if _, err := pending.Open(context.Background()); !errors.Is(err, collab.ErrAlreadyOpened) {
		t.Fatalf("expected closed connection to refuse Open, got %v", err)
	}
}

func TestUpdateAsFirstMessageAfterInit(t *testing.T) {
	svc := collab.NewService(collab.WithInitialContent("server copy"))
	a := connect(t, svc)
	b := connect(t, svc)

	b.send(t, `{"type":"update","content":"cached offline text\n"}`)

	if got := svc.Document().Content; got != "cached offline text\n" {
		t.Fatalf("expected cached content to win, got %q", got)
	}
	if len(a.peer.EventsOfType(message.TypeUpdate)) != 1 {
		t.Fatal("replayed update should reach other sessions")
	}
}
