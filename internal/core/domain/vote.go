package domain

import "time"

// Vote ties a session to exactly one option of a poll. A session holds at
// most one vote per poll; voting another option replaces it, re-voting the
// same option removes it.
type Vote struct {
	VoteID    string    `json:"voteId"`
	PollID    string    `json:"pollId"`
	OptionID  string    `json:"optionId"`
	SessionID string    `json:"sessionId"`
	VotedAt   time.Time `json:"votedAt"`
}

// Like is a boolean relation between a session and a poll.
type Like struct {
	LikeID    string    `json:"likeId"`
	PollID    string    `json:"pollId"`
	SessionID string    `json:"sessionId"`
	LikedAt   time.Time `json:"likedAt"`
}
