package ports

import (
	"context"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
)

// ConnState is the realtime connection lifecycle. A transport-level drop
// moves the client to Connecting while it redials on its own; Disconnected
// means no connection is live and none is being established.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// RealtimeClient owns exactly one persistent connection to the event stream.
// Subscriptions are tracked as pending (wanted) vs joined (server-confirmed);
// pending subscriptions are replayed on every transition into Connected.
type RealtimeClient interface {
	Connect(ctx context.Context) error
	Close() error
	State() ConnState
	Subscribe(pollID string)
	Unsubscribe(pollID string)
	Joined(pollID string) bool
}

// EventHandler receives decoded server-pushed events. Handlers are invoked
// sequentially from the connection's read pump and must not block on it.
type EventHandler interface {
	HandlePollUpdated(ev domain.PollUpdatedEvent)
	HandleVoteAdded(ev domain.VoteEvent)
	HandleVoteChanged(ev domain.VoteEvent)
	HandleVoteRemoved(ev domain.VoteRemovedEvent)
	HandleLikeAdded(ev domain.LikeAddedEvent)
	HandleLikeRemoved(ev domain.LikeRemovedEvent)
	HandlePollDeleted(ev domain.PollDeletedEvent)
}
