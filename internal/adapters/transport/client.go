package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

// SessionHeader carries the session id on requests and responses.
const SessionHeader = "X-Session-Id"

// envelope is the wrapper every API response uses.
type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data,omitempty"`
	Error      string             `json:"error,omitempty"`
	Code       string             `json:"code,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

// Client is the HTTP transport for the poll API. It injects the session id
// header on every call, adopts one returned by the server when the client has
// none yet, and performs no retries.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logrus.Logger

	mu        sync.RWMutex
	sessionID string
}

func NewClient(baseURL string, httpClient *http.Client, log *logrus.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, http: httpClient, log: log}, nil
}

var _ ports.Transport = (*Client)(nil)

func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (*domain.Pagination, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) (*domain.Pagination, error) {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) (*domain.Pagination, error) {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) (*domain.Pagination, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (*domain.Pagination, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if id := c.SessionID(); id != "" {
		req.Header.Set(SessionHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	c.adoptSession(resp)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response for %s %s", method, path)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, errors.Wrapf(err, "decode response for %s %s", method, path)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (len(raw) > 0 && !env.Success) {
		apiErr := &domain.APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Error}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, errors.Wrapf(err, "decode data for %s %s", method, path)
		}
	}
	return env.Pagination, nil
}

// adoptSession picks up a server-seeded session id from the response when we
// do not have one yet.
func (c *Client) adoptSession(resp *http.Response) {
	id := resp.Header.Get(SessionHeader)
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		c.sessionID = id
		c.log.WithField("sessionId", id).Debug("adopted server-seeded session id")
	}
}
