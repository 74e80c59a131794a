package domain

// Event names on the realtime stream, shared by both directions.
const (
	EventJoinPoll    = "join_poll"
	EventLeavePoll   = "leave_poll"
	EventJoinedPoll  = "joined_poll"
	EventPollUpdated = "poll_updated"
	EventVoteAdded   = "vote_added"
	EventVoteChanged = "vote_changed"
	EventVoteRemoved = "vote_removed"
	EventLikeAdded   = "like_added"
	EventLikeRemoved = "like_removed"
	EventPollDeleted = "poll_deleted"
	EventError       = "error"
)

// PollUpdatedEvent carries a full replacement record.
type PollUpdatedEvent struct {
	PollID string `json:"pollId"`
	Poll   Poll   `json:"poll"`
}

// VoteEvent is the payload of vote_added and vote_changed. UpdatedCounts is
// the authoritative per-option count map, keyed by optionId.
type VoteEvent struct {
	PollID        string         `json:"pollId"`
	Vote          Vote           `json:"vote"`
	UpdatedCounts map[string]int `json:"updatedCounts"`
}

type VoteRemovedEvent struct {
	PollID        string         `json:"pollId"`
	SessionID     string         `json:"sessionId"`
	UpdatedCounts map[string]int `json:"updatedCounts"`
}

// LikeAddedEvent carries the authoritative like total, not a delta.
type LikeAddedEvent struct {
	PollID     string `json:"pollId"`
	Like       Like   `json:"like"`
	TotalLikes int    `json:"totalLikes"`
}

type LikeRemovedEvent struct {
	PollID     string `json:"pollId"`
	SessionID  string `json:"sessionId"`
	TotalLikes int    `json:"totalLikes"`
}

type PollDeletedEvent struct {
	PollID string `json:"pollId"`
}

type JoinedPollEvent struct {
	PollID string `json:"pollId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
