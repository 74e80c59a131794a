package services

import (
	"github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

// Reconciler merges server-pushed events into the shared cache. Each event
// names a poll id; events for polls the cache does not hold are dropped
// silently, since this client may simply not be observing that poll.
//
// Vote events carry an authoritative per-option count map that overwrites
// local counts; only the poll-level total is adjusted incrementally, mirroring
// what the protocol provides. Like events carry an authoritative total that is
// adopted as-is. Reconciliation never fails: a count missing from the pushed
// map leaves that option at zero until the next full refetch.
type Reconciler struct {
	cache ports.PollCache
	log   *logrus.Logger

	// OnApply, when set, is invoked with the poll id after an event mutated
	// cached state. Views use it to re-render.
	OnApply func(pollID string)
	// OnPollDeleted, when set, is invoked after a poll_deleted eviction so a
	// view dedicated to that poll can navigate away.
	OnPollDeleted func(pollID string)
}

func NewReconciler(cache ports.PollCache, log *logrus.Logger) *Reconciler {
	return &Reconciler{cache: cache, log: log}
}

var _ ports.EventHandler = (*Reconciler)(nil)

func (r *Reconciler) HandlePollUpdated(ev domain.PollUpdatedEvent) {
	touched := r.cache.UpdatePoll(ev.PollID, func(p *domain.Poll) {
		*p = ev.Poll.Clone()
	})
	r.eachPageEntry(ev.PollID, func(entry *domain.Poll) {
		*entry = ev.Poll.Clone()
	})
	r.applied("poll_updated", ev.PollID, touched)
}

func (r *Reconciler) HandleVoteAdded(ev domain.VoteEvent) {
	touched := r.cache.UpdatePoll(ev.PollID, func(p *domain.Poll) {
		p.TotalVotes++
		overwriteCounts(p, ev.UpdatedCounts)
		vote := ev.Vote
		p.SessionVote = &vote
	})
	r.eachPageEntry(ev.PollID, func(entry *domain.Poll) {
		entry.TotalVotes++
		overwriteCounts(entry, ev.UpdatedCounts)
	})
	r.applied("vote_added", ev.PollID, touched)
}

func (r *Reconciler) HandleVoteChanged(ev domain.VoteEvent) {
	touched := r.cache.UpdatePoll(ev.PollID, func(p *domain.Poll) {
		overwriteCounts(p, ev.UpdatedCounts)
		vote := ev.Vote
		p.SessionVote = &vote
	})
	r.eachPageEntry(ev.PollID, func(entry *domain.Poll) {
		overwriteCounts(entry, ev.UpdatedCounts)
	})
	r.applied("vote_changed", ev.PollID, touched)
}

func (r *Reconciler) HandleVoteRemoved(ev domain.VoteRemovedEvent) {
	touched := r.cache.UpdatePoll(ev.PollID, func(p *domain.Poll) {
		if p.TotalVotes > 0 {
			p.TotalVotes--
		}
		overwriteCounts(p, ev.UpdatedCounts)
		p.SessionVote = nil
	})
	r.eachPageEntry(ev.PollID, func(entry *domain.Poll) {
		if entry.TotalVotes > 0 {
			entry.TotalVotes--
		}
		overwriteCounts(entry, ev.UpdatedCounts)
	})
	r.applied("vote_removed", ev.PollID, touched)
}

func (r *Reconciler) HandleLikeAdded(ev domain.LikeAddedEvent) {
	touched := r.cache.UpdatePoll(ev.PollID, func(p *domain.Poll) {
		p.TotalLikes = ev.TotalLikes
		p.SessionLiked = true
	})
	r.eachPageEntry(ev.PollID, func(entry *domain.Poll) {
		entry.TotalLikes = ev.TotalLikes
	})
	r.applied("like_added", ev.PollID, touched)
}

func (r *Reconciler) HandleLikeRemoved(ev domain.LikeRemovedEvent) {
	touched := r.cache.UpdatePoll(ev.PollID, func(p *domain.Poll) {
		p.TotalLikes = ev.TotalLikes
		p.SessionLiked = false
	})
	r.eachPageEntry(ev.PollID, func(entry *domain.Poll) {
		entry.TotalLikes = ev.TotalLikes
	})
	r.applied("like_removed", ev.PollID, touched)
}

func (r *Reconciler) HandlePollDeleted(ev domain.PollDeletedEvent) {
	r.cache.RemovePoll(ev.PollID)
	r.log.WithField("pollId", ev.PollID).Info("poll deleted, evicted from cache")
	if r.OnPollDeleted != nil {
		r.OnPollDeleted(ev.PollID)
	}
	if r.OnApply != nil {
		r.OnApply(ev.PollID)
	}
}

// eachPageEntry applies fn to the matching entry of every cached page. The
// same poll can sit in several filtered views at once, so all pages are
// scanned; pages without the poll are left untouched.
func (r *Reconciler) eachPageEntry(pollID string, fn func(entry *domain.Poll)) {
	r.cache.UpdatePages(func(key string, page *domain.PollPage) bool {
		changed := false
		for i := range page.Polls {
			if page.Polls[i].PollID == pollID {
				fn(&page.Polls[i])
				changed = true
			}
		}
		return changed
	})
}

func (r *Reconciler) applied(event, pollID string, touched bool) {
	if !touched {
		r.log.WithFields(logrus.Fields{"event": event, "pollId": pollID}).
			Debug("event for poll not in detail cache")
	}
	if r.OnApply != nil {
		r.OnApply(pollID)
	}
}

// overwriteCounts replaces every option's count from the pushed map. An
// option missing from the map goes to zero rather than keeping a stale count.
func overwriteCounts(p *domain.Poll, counts map[string]int) {
	for i := range p.Options {
		p.Options[i].VoteCount = counts[p.Options[i].OptionID]
	}
}
