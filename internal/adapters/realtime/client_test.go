package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// recordingHandler collects dispatched events for assertions.
type recordingHandler struct {
	mu           sync.Mutex
	votesAdded   []domain.VoteEvent
	votesChanged []domain.VoteEvent
	votesRemoved []domain.VoteRemovedEvent
	likesAdded   []domain.LikeAddedEvent
	likesRemoved []domain.LikeRemovedEvent
	updated      []domain.PollUpdatedEvent
	deleted      []domain.PollDeletedEvent
}

func (h *recordingHandler) HandlePollUpdated(ev domain.PollUpdatedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updated = append(h.updated, ev)
}
func (h *recordingHandler) HandleVoteAdded(ev domain.VoteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.votesAdded = append(h.votesAdded, ev)
}
func (h *recordingHandler) HandleVoteChanged(ev domain.VoteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.votesChanged = append(h.votesChanged, ev)
}
func (h *recordingHandler) HandleVoteRemoved(ev domain.VoteRemovedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.votesRemoved = append(h.votesRemoved, ev)
}
func (h *recordingHandler) HandleLikeAdded(ev domain.LikeAddedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.likesAdded = append(h.likesAdded, ev)
}
func (h *recordingHandler) HandleLikeRemoved(ev domain.LikeRemovedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.likesRemoved = append(h.likesRemoved, ev)
}
func (h *recordingHandler) HandlePollDeleted(ev domain.PollDeletedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, ev)
}

func (h *recordingHandler) voteAddedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.votesAdded)
}

// wsServer is a minimal stand-in for the backend's event stream.
type wsServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader
	frames   chan frame

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	s := &wsServer{t: t, frames: make(chan frame, 32)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		s.frames <- f
	}
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsServer) send(event string, data any) {
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	require.NoError(s.t, conn.WriteJSON(outFrame{Event: event, Data: data}))
}

func (s *wsServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func newTestClient(s *wsServer, handler ports.EventHandler) *Client {
	c := NewClient(s.url(), handler, testLogger())
	c.newBackoff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(10 * time.Millisecond)
	}
	return c
}

func waitFrame(t *testing.T, s *wsServer, event string) roomRef {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-s.frames:
			if f.Event == event {
				var ref roomRef
				require.NoError(t, json.Unmarshal(f.Data, &ref))
				return ref
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", event)
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	server := newWSServer(t)
	client := newTestClient(server, &recordingHandler{})
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Connect(context.Background()), "second connect is a no-op")
	assert.Equal(t, ports.Connected, client.State())

	assert.Eventually(t, func() bool { return server.connCount() == 1 },
		time.Second, 10*time.Millisecond, "exactly one connection must be live")
}

func TestSubscribeEmitsJoinAndConfirms(t *testing.T) {
	server := newWSServer(t)
	client := newTestClient(server, &recordingHandler{})
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	client.Subscribe("P1")

	ref := waitFrame(t, server, domain.EventJoinPoll)
	assert.Equal(t, "P1", ref.PollID)
	assert.False(t, client.Joined("P1"), "join is pending until the server confirms")

	server.send(domain.EventJoinedPoll, domain.JoinedPollEvent{PollID: "P1"})
	assert.Eventually(t, func() bool { return client.Joined("P1") },
		time.Second, 10*time.Millisecond)

	// Subscribing a joined poll sends nothing further.
	client.Subscribe("P1")
	select {
	case f := <-server.frames:
		t.Fatalf("unexpected frame %q after re-subscribe", f.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeBeforeConnectIsReplayed(t *testing.T) {
	server := newWSServer(t)
	client := newTestClient(server, &recordingHandler{})
	defer client.Close()

	client.Subscribe("P1")
	require.NoError(t, client.Connect(context.Background()))

	ref := waitFrame(t, server, domain.EventJoinPoll)
	assert.Equal(t, "P1", ref.PollID)
}

func TestReconnectReplaysPendingJoins(t *testing.T) {
	server := newWSServer(t)
	client := newTestClient(server, &recordingHandler{})
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	client.Subscribe("P1")
	ref := waitFrame(t, server, domain.EventJoinPoll)
	require.Equal(t, "P1", ref.PollID)
	server.send(domain.EventJoinedPoll, domain.JoinedPollEvent{PollID: "P1"})
	require.Eventually(t, func() bool { return client.Joined("P1") },
		time.Second, 10*time.Millisecond)

	// Drop the transport; the client must redial on its own and replay the
	// join, since confirmed membership died with the connection.
	server.dropConnections()
	ref = waitFrame(t, server, domain.EventJoinPoll)
	assert.Equal(t, "P1", ref.PollID)
	assert.False(t, client.Joined("P1"))

	// Exactly one replay per subscribed poll.
	select {
	case f := <-server.frames:
		t.Fatalf("unexpected extra frame %q after reconnect", f.Event)
	case <-time.After(150 * time.Millisecond):
	}

	server.send(domain.EventJoinedPoll, domain.JoinedPollEvent{PollID: "P1"})
	assert.Eventually(t, func() bool { return client.Joined("P1") },
		time.Second, 10*time.Millisecond)
}

func TestUnsubscribeEmitsLeave(t *testing.T) {
	server := newWSServer(t)
	client := newTestClient(server, &recordingHandler{})
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))
	client.Subscribe("P1")
	waitFrame(t, server, domain.EventJoinPoll)
	server.send(domain.EventJoinedPoll, domain.JoinedPollEvent{PollID: "P1"})
	require.Eventually(t, func() bool { return client.Joined("P1") },
		time.Second, 10*time.Millisecond)

	client.Unsubscribe("P1")
	ref := waitFrame(t, server, domain.EventLeavePoll)
	assert.Equal(t, "P1", ref.PollID)
	assert.False(t, client.Joined("P1"))
}

func TestEventsAreDispatched(t *testing.T) {
	server := newWSServer(t)
	handler := &recordingHandler{}
	client := newTestClient(server, handler)
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))

	server.send(domain.EventVoteAdded, domain.VoteEvent{
		PollID:        "P1",
		Vote:          domain.Vote{OptionID: "A", SessionID: "S1"},
		UpdatedCounts: map[string]int{"A": 1},
	})
	require.Eventually(t, func() bool { return handler.voteAddedCount() == 1 },
		time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	ev := handler.votesAdded[0]
	handler.mu.Unlock()
	assert.Equal(t, "P1", ev.PollID)
	assert.Equal(t, map[string]int{"A": 1}, ev.UpdatedCounts)
}

func TestMalformedEventIsDropped(t *testing.T) {
	server := newWSServer(t)
	handler := &recordingHandler{}
	client := newTestClient(server, handler)
	defer client.Close()

	require.NoError(t, client.Connect(context.Background()))

	server.send(domain.EventVoteAdded, "not an object")
	server.send("someday_maybe", nil)
	server.send(domain.EventVoteAdded, domain.VoteEvent{PollID: "P1", UpdatedCounts: map[string]int{}})

	// The pump survives both the malformed payload and the unknown event.
	require.Eventually(t, func() bool { return handler.voteAddedCount() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, ports.Connected, client.State())
}

func TestCloseStopsReconnecting(t *testing.T) {
	server := newWSServer(t)
	client := newTestClient(server, &recordingHandler{})

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Close())
	assert.Equal(t, ports.Disconnected, client.State())

	assert.ErrorIs(t, client.Connect(context.Background()), domain.ErrSocketClosed)
}
