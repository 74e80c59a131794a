package ports

import (
	"context"
	"net/url"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
)

// Transport is the single HTTP request facade. Every call carries the session
// id (once known) as a header; a session id returned by the server is adopted
// when the client does not have one yet. Errors propagate uninterpreted and
// no retries are performed.
type Transport interface {
	SetSessionID(id string)
	SessionID() string

	Get(ctx context.Context, path string, query url.Values, out any) (*domain.Pagination, error)
	Post(ctx context.Context, path string, body, out any) (*domain.Pagination, error)
	Put(ctx context.Context, path string, body, out any) (*domain.Pagination, error)
	Delete(ctx context.Context, path string, out any) (*domain.Pagination, error)
}
