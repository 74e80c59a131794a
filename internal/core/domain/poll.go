package domain

import "time"

// Poll is the full poll record as served by the backend. SessionVote and
// SessionLiked are relative to the session id the request carried.
type Poll struct {
	PollID             string     `json:"pollId"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	CreatedBy          string     `json:"createdBy"`
	CategoryID         string     `json:"categoryId,omitempty"`
	AllowMultipleVotes bool       `json:"allowMultipleVotes"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	IsActive           bool       `json:"isActive"`
	TotalVotes         int        `json:"totalVotes"`
	TotalLikes         int        `json:"totalLikes"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Options            []Option   `json:"options,omitempty"`
	SessionVote        *Vote      `json:"sessionVote,omitempty"`
	SessionLiked       bool       `json:"sessionLiked,omitempty"`
	Tags               []Tag      `json:"tags,omitempty"`
}

// Option identity and order are fixed once fetched; only VoteCount changes.
type Option struct {
	OptionID     string    `json:"optionId"`
	PollID       string    `json:"pollId"`
	OptionText   string    `json:"optionText"`
	VoteCount    int       `json:"voteCount"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Tag struct {
	TagID     string    `json:"tagId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy that shares no mutable state with the receiver, so
// cached records can be handed out without aliasing the cache's own copy.
func (p Poll) Clone() Poll {
	out := p
	if p.Options != nil {
		out.Options = make([]Option, len(p.Options))
		copy(out.Options, p.Options)
	}
	if p.Tags != nil {
		out.Tags = make([]Tag, len(p.Tags))
		copy(out.Tags, p.Tags)
	}
	if p.SessionVote != nil {
		v := *p.SessionVote
		out.SessionVote = &v
	}
	return out
}

// Option looks up an option by id; returns nil when the poll has no such option.
func (p *Poll) Option(optionID string) *Option {
	for i := range p.Options {
		if p.Options[i].OptionID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}
