package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

type pollService struct {
	transport ports.Transport
	cache     ports.PollCache
	log       *logrus.Logger
}

// NewPollService wraps the backend's HTTP surface. Fetched polls and pages
// land in the cache; mutations re-fetch the affected poll so the response
// path converges the cache independently of the push path.
func NewPollService(transport ports.Transport, cache ports.PollCache, log *logrus.Logger) ports.PollService {
	return &pollService{
		transport: transport,
		cache:     cache,
		log:       log,
	}
}

func (s *pollService) ListPolls(ctx context.Context, filters domain.PollFilters) (*domain.PollPage, error) {
	var polls []domain.Poll
	pagination, err := s.transport.Get(ctx, "/polls", filters.Values(), &polls)
	if err != nil {
		return nil, err
	}

	page := domain.PollPage{Polls: polls, UpdatedAt: time.Now()}
	if pagination != nil {
		page.Pagination = *pagination
	}
	s.cache.SetPage(filters.Key(), page)
	return &page, nil
}

func (s *pollService) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	var poll domain.Poll
	if _, err := s.transport.Get(ctx, "/polls/"+pollID, nil, &poll); err != nil {
		return nil, err
	}
	s.cache.SetPoll(poll)
	return &poll, nil
}

func (s *pollService) CreatePoll(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	if len(input.Options) < 2 {
		return nil, domain.ErrTooFewOptions
	}
	if len(input.Options) > 10 {
		return nil, domain.ErrTooManyOptions
	}

	var poll domain.Poll
	if _, err := s.transport.Post(ctx, "/polls", input, &poll); err != nil {
		return nil, err
	}
	s.cache.SetPoll(poll)
	s.log.WithField("pollId", poll.PollID).Info("poll created")
	return &poll, nil
}

func (s *pollService) UpdatePoll(ctx context.Context, pollID string, input ports.UpdatePollInput) (*domain.Poll, error) {
	var poll domain.Poll
	if _, err := s.transport.Put(ctx, "/polls/"+pollID, input, &poll); err != nil {
		return nil, err
	}
	s.cache.SetPoll(poll)
	return &poll, nil
}

func (s *pollService) DeletePoll(ctx context.Context, pollID string) error {
	if _, err := s.transport.Delete(ctx, "/polls/"+pollID, nil); err != nil {
		return err
	}
	s.cache.RemovePoll(pollID)
	return nil
}

func (s *pollService) Vote(ctx context.Context, pollID, optionID string) (*domain.Poll, error) {
	body := map[string]string{"optionId": optionID}
	if _, err := s.transport.Post(ctx, fmt.Sprintf("/polls/%s/vote", pollID), body, nil); err != nil {
		return nil, err
	}
	return s.GetPoll(ctx, pollID)
}

func (s *pollService) RemoveVote(ctx context.Context, pollID string) (*domain.Poll, error) {
	if _, err := s.transport.Delete(ctx, fmt.Sprintf("/polls/%s/vote", pollID), nil); err != nil {
		return nil, err
	}
	return s.GetPoll(ctx, pollID)
}

func (s *pollService) Like(ctx context.Context, pollID string) (*domain.Poll, error) {
	if _, err := s.transport.Post(ctx, fmt.Sprintf("/polls/%s/like", pollID), nil, nil); err != nil {
		return nil, err
	}
	return s.GetPoll(ctx, pollID)
}

func (s *pollService) Unlike(ctx context.Context, pollID string) (*domain.Poll, error) {
	if _, err := s.transport.Delete(ctx, fmt.Sprintf("/polls/%s/like", pollID), nil); err != nil {
		return nil, err
	}
	return s.GetPoll(ctx, pollID)
}

func (s *pollService) SessionPolls(ctx context.Context, page, limit int) (*domain.PollPage, error) {
	var polls []domain.Poll
	pagination, err := s.transport.Get(ctx, "/session/polls", pageQuery(page, limit), &polls)
	if err != nil {
		return nil, err
	}
	result := domain.PollPage{Polls: polls, UpdatedAt: time.Now()}
	if pagination != nil {
		result.Pagination = *pagination
	}
	return &result, nil
}

func (s *pollService) SessionVotes(ctx context.Context, page, limit int) ([]domain.Vote, *domain.Pagination, error) {
	var votes []domain.Vote
	pagination, err := s.transport.Get(ctx, "/session/votes", pageQuery(page, limit), &votes)
	if err != nil {
		return nil, nil, err
	}
	return votes, pagination, nil
}

func pageQuery(page, limit int) url.Values {
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}
