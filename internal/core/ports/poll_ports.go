package ports

import (
	"context"
	"time"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
)

type CreatePollInput struct {
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	CategoryID         string     `json:"categoryId,omitempty"`
	Options            []string   `json:"options"`
	Tags               []string   `json:"tags,omitempty"`
	AllowMultipleVotes bool       `json:"allowMultipleVotes,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

type UpdatePollInput struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	CategoryID  *string  `json:"categoryId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PollService is every operation the backend's HTTP surface offers. Fetches
// populate the shared cache; mutations refresh the affected detail entry so
// the response path converges the cache even when the matching push event is
// lost or arrives first.
type PollService interface {
	ListPolls(ctx context.Context, filters domain.PollFilters) (*domain.PollPage, error)
	GetPoll(ctx context.Context, pollID string) (*domain.Poll, error)
	CreatePoll(ctx context.Context, input CreatePollInput) (*domain.Poll, error)
	UpdatePoll(ctx context.Context, pollID string, input UpdatePollInput) (*domain.Poll, error)
	DeletePoll(ctx context.Context, pollID string) error
	Vote(ctx context.Context, pollID, optionID string) (*domain.Poll, error)
	RemoveVote(ctx context.Context, pollID string) (*domain.Poll, error)
	Like(ctx context.Context, pollID string) (*domain.Poll, error)
	Unlike(ctx context.Context, pollID string) (*domain.Poll, error)
	SessionPolls(ctx context.Context, page, limit int) (*domain.PollPage, error)
	SessionVotes(ctx context.Context, page, limit int) ([]domain.Vote, *domain.Pagination, error)
}
