package ports

import "github.com/quickpoll/quickpoll-go/internal/core/domain"

// PollCache holds poll detail records keyed by poll id and collection pages
// keyed by filter key. Implementations must be safe for use from the fetch
// path and the realtime pump concurrently; update closures run under the
// cache's lock so each event is applied as one serialized pass.
type PollCache interface {
	GetPoll(pollID string) (domain.Poll, bool)
	SetPoll(poll domain.Poll)
	RemovePoll(pollID string)
	// UpdatePoll applies fn to the cached record, if present, and reports
	// whether a record was found.
	UpdatePoll(pollID string, fn func(*domain.Poll)) bool

	GetPage(key string) (domain.PollPage, bool)
	SetPage(key string, page domain.PollPage)
	// UpdatePages applies fn to every cached page. A page whose fn call
	// returns true gets its UpdatedAt marker refreshed.
	UpdatePages(fn func(key string, page *domain.PollPage) bool)

	Clear()
}
