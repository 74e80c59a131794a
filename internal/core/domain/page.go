package domain

import "time"

// Pagination mirrors the metadata block the API returns alongside lists.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PollPage is one cached page of poll summaries for a particular filter key.
// UpdatedAt is refreshed whenever a push event touches an entry, so views can
// tell the page changed without diffing it.
type PollPage struct {
	Polls      []Poll     `json:"data"`
	Pagination Pagination `json:"pagination"`
	UpdatedAt  time.Time  `json:"-"`
}

func (p PollPage) Clone() PollPage {
	out := p
	if p.Polls != nil {
		out.Polls = make([]Poll, len(p.Polls))
		for i := range p.Polls {
			out.Polls[i] = p.Polls[i].Clone()
		}
	}
	return out
}
