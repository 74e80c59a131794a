package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

// frame is one message on the wire, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type roomRef struct {
	PollID string `json:"pollId"`
}

// Client owns the single websocket connection to the event stream. Wanted
// subscriptions sit in pending until the server confirms them with a
// joined_poll notice; every transition into Connected replays a join_poll for
// each pending id, which is the only recovery mechanism for events missed
// while disconnected. Duplicate joins are possible and rely on the server's
// join being idempotent.
type Client struct {
	url     string
	handler ports.EventHandler
	log     *logrus.Logger
	dialer  *websocket.Dialer

	// newBackoff builds the redial policy; swappable in tests.
	newBackoff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	conn    *websocket.Conn
	state   ports.ConnState
	pending map[string]struct{}
	joined  map[string]struct{}
	closed  bool
}

func NewClient(socketURL string, handler ports.EventHandler, log *logrus.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:     socketURL,
		handler: handler,
		log:     log,
		dialer:  websocket.DefaultDialer,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		},
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]struct{}),
		joined:  make(map[string]struct{}),
	}
}

var _ ports.RealtimeClient = (*Client)(nil)

// Connect dials the stream and starts the read pump. Calling it while a
// connection is live or being established is a no-op. The context bounds the
// initial dial only; later redials are owned by the client and stop at Close.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSocketClosed
	}
	if c.state != ports.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = ports.Connecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = ports.Disconnected
		c.mu.Unlock()
		return err
	}

	c.attach(conn)
	c.wg.Add(1)
	go c.readPump(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, _, err = c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.WithError(err).WithField("url", c.url).Warn("realtime dial failed")
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(c.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

// attach installs the connection and replays a join for every pending poll.
func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.state = ports.Connected
	for id := range c.pending {
		c.writeLocked(domain.EventJoinPoll, roomRef{PollID: id})
	}
	c.log.WithField("pending", len(c.pending)).Info("realtime connected")
}

func (c *Client) readPump(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			conn.Close()
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			// Joined membership died with the connection; those rooms must
			// be replayed once we are back.
			for id := range c.joined {
				c.pending[id] = struct{}{}
				delete(c.joined, id)
			}
			c.conn = nil
			c.state = ports.Connecting
			c.mu.Unlock()

			c.log.WithError(err).Warn("realtime connection lost, reconnecting")
			next, redialErr := c.dial(c.ctx)
			if redialErr != nil {
				c.mu.Lock()
				c.state = ports.Disconnected
				c.mu.Unlock()
				return
			}
			c.attach(next)
			conn = next
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	log := c.log.WithField("event", f.Event)

	decode := func(out any) bool {
		if err := json.Unmarshal(f.Data, out); err != nil {
			log.WithError(err).Warn("dropping malformed realtime event")
			return false
		}
		return true
	}

	switch f.Event {
	case domain.EventJoinedPoll:
		var ev domain.JoinedPollEvent
		if decode(&ev) {
			c.confirmJoin(ev.PollID)
		}
	case domain.EventPollUpdated:
		var ev domain.PollUpdatedEvent
		if decode(&ev) {
			c.handler.HandlePollUpdated(ev)
		}
	case domain.EventVoteAdded:
		var ev domain.VoteEvent
		if decode(&ev) {
			c.handler.HandleVoteAdded(ev)
		}
	case domain.EventVoteChanged:
		var ev domain.VoteEvent
		if decode(&ev) {
			c.handler.HandleVoteChanged(ev)
		}
	case domain.EventVoteRemoved:
		var ev domain.VoteRemovedEvent
		if decode(&ev) {
			c.handler.HandleVoteRemoved(ev)
		}
	case domain.EventLikeAdded:
		var ev domain.LikeAddedEvent
		if decode(&ev) {
			c.handler.HandleLikeAdded(ev)
		}
	case domain.EventLikeRemoved:
		var ev domain.LikeRemovedEvent
		if decode(&ev) {
			c.handler.HandleLikeRemoved(ev)
		}
	case domain.EventPollDeleted:
		var ev domain.PollDeletedEvent
		if decode(&ev) {
			c.handler.HandlePollDeleted(ev)
		}
	case domain.EventError:
		var ev domain.ErrorEvent
		if decode(&ev) {
			log.WithField("message", ev.Message).Warn("server reported realtime error")
		}
	default:
		log.Debug("ignoring unknown realtime event")
	}
}

func (c *Client) confirmJoin(pollID string) {
	c.mu.Lock()
	delete(c.pending, pollID)
	c.joined[pollID] = struct{}{}
	c.mu.Unlock()
	c.log.WithField("pollId", pollID).Debug("poll room joined")
}

// Subscribe marks the poll as wanted and, when connected, requests the join
// immediately. Already-joined polls are a no-op.
func (c *Client) Subscribe(pollID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.joined[pollID]; ok {
		return
	}
	c.pending[pollID] = struct{}{}
	if c.state == ports.Connected {
		c.writeLocked(domain.EventJoinPoll, roomRef{PollID: pollID})
	}
}

// Unsubscribe drops the poll from both sets and notifies the server when
// connected.
func (c *Client) Unsubscribe(pollID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, pollID)
	delete(c.joined, pollID)
	if c.state == ports.Connected {
		c.writeLocked(domain.EventLeavePoll, roomRef{PollID: pollID})
	}
}

func (c *Client) Joined(pollID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[pollID]
	return ok
}

func (c *Client) State() ports.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the connection down for good; the client cannot be reused.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = ports.Disconnected
	conn := c.conn
	c.conn = nil
	c.pending = make(map[string]struct{})
	c.joined = make(map[string]struct{})
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

// writeLocked sends a frame on the current connection. Callers hold c.mu; a
// write failure is logged and left to the read pump, which will observe the
// broken connection and reconnect.
func (c *Client) writeLocked(event string, data any) {
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteJSON(outFrame{Event: event, Data: data}); err != nil {
		c.log.WithError(err).WithField("event", event).Warn("realtime write failed")
	}
}
