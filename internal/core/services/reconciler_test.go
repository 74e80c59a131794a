package services_test

import (
	"io"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickpoll/quickpoll-go/internal/adapters/cache"
	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/services"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func makePoll(pollID string, counts map[string]int, totalLikes int) domain.Poll {
	poll := domain.Poll{
		PollID:     pollID,
		Title:      "poll " + pollID,
		IsActive:   true,
		TotalLikes: totalLikes,
	}
	order := 0
	for _, optionID := range sortedKeys(counts) {
		poll.Options = append(poll.Options, domain.Option{
			OptionID:     optionID,
			PollID:       pollID,
			OptionText:   "option " + optionID,
			VoteCount:    counts[optionID],
			DisplayOrder: order,
		})
		poll.TotalVotes += counts[optionID]
		order++
	}
	return poll
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sumCounts(p domain.Poll) int {
	total := 0
	for _, opt := range p.Options {
		total += opt.VoteCount
	}
	return total
}

func TestVoteAddedMergesAuthoritativeCounts(t *testing.T) {
	// P1 holds A=3, B=2, totalVotes=5; another session's vote lands on B.
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 3, "B": 2}, 0))

	rec := services.NewReconciler(store, testLogger())
	rec.HandleVoteAdded(domain.VoteEvent{
		PollID:        "P1",
		Vote:          domain.Vote{VoteID: "v1", PollID: "P1", OptionID: "B", SessionID: "S1"},
		UpdatedCounts: map[string]int{"A": 3, "B": 3},
	})

	poll, ok := store.GetPoll("P1")
	require.True(t, ok)
	assert.Equal(t, 6, poll.TotalVotes)
	assert.Equal(t, 3, poll.Option("A").VoteCount)
	assert.Equal(t, 3, poll.Option("B").VoteCount)
	require.NotNil(t, poll.SessionVote)
	assert.Equal(t, "B", poll.SessionVote.OptionID)
	assert.Equal(t, poll.TotalVotes, sumCounts(poll))
}

func TestVoteLifecycleKeepsTotalsConsistent(t *testing.T) {
	// Replaying add, change, remove in server order must keep
	// sum(option counts) == totalVotes after every step.
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 1, "B": 1}, 0))

	rec := services.NewReconciler(store, testLogger())

	rec.HandleVoteAdded(domain.VoteEvent{
		PollID:        "P1",
		Vote:          domain.Vote{VoteID: "v1", OptionID: "A", SessionID: "S1"},
		UpdatedCounts: map[string]int{"A": 2, "B": 1},
	})
	poll, _ := store.GetPoll("P1")
	assert.Equal(t, 3, poll.TotalVotes)
	assert.Equal(t, poll.TotalVotes, sumCounts(poll))

	rec.HandleVoteChanged(domain.VoteEvent{
		PollID:        "P1",
		Vote:          domain.Vote{VoteID: "v2", OptionID: "B", SessionID: "S1"},
		UpdatedCounts: map[string]int{"A": 1, "B": 2},
	})
	poll, _ = store.GetPoll("P1")
	assert.Equal(t, 3, poll.TotalVotes, "vote_changed must not move the total")
	assert.Equal(t, poll.TotalVotes, sumCounts(poll))
	require.NotNil(t, poll.SessionVote)
	assert.Equal(t, "B", poll.SessionVote.OptionID)

	rec.HandleVoteRemoved(domain.VoteRemovedEvent{
		PollID:        "P1",
		SessionID:     "S1",
		UpdatedCounts: map[string]int{"A": 1, "B": 1},
	})
	poll, _ = store.GetPoll("P1")
	assert.Equal(t, 2, poll.TotalVotes)
	assert.Equal(t, poll.TotalVotes, sumCounts(poll))
	assert.Nil(t, poll.SessionVote)
}

func TestVoteRemovedFloorsTotalAtZero(t *testing.T) {
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 0}, 0))

	rec := services.NewReconciler(store, testLogger())
	rec.HandleVoteRemoved(domain.VoteRemovedEvent{
		PollID:        "P1",
		SessionID:     "S1",
		UpdatedCounts: map[string]int{"A": 0},
	})

	poll, _ := store.GetPoll("P1")
	assert.Equal(t, 0, poll.TotalVotes)
}

func TestMissingCountDefaultsToZero(t *testing.T) {
	// A partial updatedCounts map must never panic; unmentioned options
	// drop to zero until the next refetch.
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 3, "B": 2}, 0))

	rec := services.NewReconciler(store, testLogger())
	rec.HandleVoteChanged(domain.VoteEvent{
		PollID:        "P1",
		Vote:          domain.Vote{OptionID: "A", SessionID: "S1"},
		UpdatedCounts: map[string]int{"A": 4},
	})

	poll, _ := store.GetPoll("P1")
	assert.Equal(t, 4, poll.Option("A").VoteCount)
	assert.Equal(t, 0, poll.Option("B").VoteCount)
}

func TestLikeRoundTripRestoresState(t *testing.T) {
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 1}, 4))

	rec := services.NewReconciler(store, testLogger())

	rec.HandleLikeAdded(domain.LikeAddedEvent{
		PollID:     "P1",
		Like:       domain.Like{LikeID: "l1", PollID: "P1", SessionID: "S1"},
		TotalLikes: 5,
	})
	poll, _ := store.GetPoll("P1")
	assert.Equal(t, 5, poll.TotalLikes)
	assert.True(t, poll.SessionLiked)

	rec.HandleLikeRemoved(domain.LikeRemovedEvent{
		PollID:     "P1",
		SessionID:  "S1",
		TotalLikes: 4,
	})
	poll, _ = store.GetPoll("P1")
	assert.Equal(t, 4, poll.TotalLikes)
	assert.False(t, poll.SessionLiked)
}

func TestEventForUncachedPollIsIgnored(t *testing.T) {
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 1}, 0))

	rec := services.NewReconciler(store, testLogger())
	rec.HandleVoteAdded(domain.VoteEvent{
		PollID:        "P9",
		Vote:          domain.Vote{OptionID: "X", SessionID: "S1"},
		UpdatedCounts: map[string]int{"X": 1},
	})

	poll, ok := store.GetPoll("P1")
	require.True(t, ok)
	assert.Equal(t, 1, poll.TotalVotes, "unrelated poll must be untouched")
	_, ok = store.GetPoll("P9")
	assert.False(t, ok, "unknown poll must not be created")
}

func TestPollUpdatedReplacesRecord(t *testing.T) {
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 1}, 0))

	replacement := makePoll("P1", map[string]int{"A": 7, "B": 1}, 2)
	replacement.Title = "renamed"

	rec := services.NewReconciler(store, testLogger())
	rec.HandlePollUpdated(domain.PollUpdatedEvent{PollID: "P1", Poll: replacement})

	poll, _ := store.GetPoll("P1")
	assert.Equal(t, "renamed", poll.Title)
	assert.Equal(t, 8, poll.TotalVotes)
	assert.Len(t, poll.Options, 2)
}

func TestPollDeletedEvictsAndNotifies(t *testing.T) {
	store := cache.NewMemory()
	store.SetPoll(makePoll("P1", map[string]int{"A": 1}, 0))

	var deleted []string
	rec := services.NewReconciler(store, testLogger())
	rec.OnPollDeleted = func(pollID string) { deleted = append(deleted, pollID) }

	rec.HandlePollDeleted(domain.PollDeletedEvent{PollID: "P1"})

	_, ok := store.GetPoll("P1")
	assert.False(t, ok)
	assert.Equal(t, []string{"P1"}, deleted)
}

func TestLikeEventUpdatesEveryCachedPage(t *testing.T) {
	// The same poll can sit in several filtered pages at once; all of them
	// must converge, untouched entries must stay untouched.
	store := cache.NewMemory()

	p2 := makePoll("P2", map[string]int{"A": 1}, 3)
	other := makePoll("P3", map[string]int{"X": 2}, 1)

	newest := domain.PollFilters{SortBy: domain.SortNewest, Page: 1}
	mostLiked := domain.PollFilters{SortBy: domain.SortMostLiked, Page: 2}
	store.SetPage(newest.Key(), domain.PollPage{Polls: []domain.Poll{p2, other}})
	store.SetPage(mostLiked.Key(), domain.PollPage{Polls: []domain.Poll{p2}})

	rec := services.NewReconciler(store, testLogger())
	rec.HandleLikeAdded(domain.LikeAddedEvent{PollID: "P2", TotalLikes: 10})

	first, ok := store.GetPage(newest.Key())
	require.True(t, ok)
	assert.Equal(t, 10, first.Polls[0].TotalLikes)
	assert.Equal(t, 1, first.Polls[1].TotalLikes, "other entries must be untouched")
	assert.False(t, first.UpdatedAt.IsZero(), "touched page must be stamped")

	second, ok := store.GetPage(mostLiked.Key())
	require.True(t, ok)
	assert.Equal(t, 10, second.Polls[0].TotalLikes)
}

func TestVoteEventUpdatesPagesWithoutSessionVote(t *testing.T) {
	store := cache.NewMemory()
	page := domain.PollFilters{}.Key()
	store.SetPage(page, domain.PollPage{Polls: []domain.Poll{makePoll("P1", map[string]int{"A": 3, "B": 2}, 0)}})

	rec := services.NewReconciler(store, testLogger())
	rec.HandleVoteAdded(domain.VoteEvent{
		PollID:        "P1",
		Vote:          domain.Vote{OptionID: "B", SessionID: "S1"},
		UpdatedCounts: map[string]int{"A": 3, "B": 3},
	})

	got, ok := store.GetPage(page)
	require.True(t, ok)
	entry := got.Polls[0]
	assert.Equal(t, 6, entry.TotalVotes)
	assert.Equal(t, 3, entry.Option("B").VoteCount)
	assert.Nil(t, entry.SessionVote, "collection entries do not track the session vote")
}

func TestUntouchedPageKeepsItsStamp(t *testing.T) {
	store := cache.NewMemory()
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetPage("a", domain.PollPage{Polls: []domain.Poll{makePoll("P1", map[string]int{"A": 1}, 0)}, UpdatedAt: stamp})
	store.SetPage("b", domain.PollPage{Polls: []domain.Poll{makePoll("P2", map[string]int{"A": 1}, 0)}, UpdatedAt: stamp})

	rec := services.NewReconciler(store, testLogger())
	rec.HandleLikeAdded(domain.LikeAddedEvent{PollID: "P1", TotalLikes: 1})

	touched, _ := store.GetPage("a")
	untouched, _ := store.GetPage("b")
	assert.True(t, touched.UpdatedAt.After(stamp))
	assert.Equal(t, stamp, untouched.UpdatedAt)
}
