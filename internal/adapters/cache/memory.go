package cache

import (
	"sync"
	"time"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

// Memory is the tab-scoped shared cache: poll detail records keyed by poll id
// and collection pages keyed by filter key. All mutation goes through the
// mutex, so the HTTP response path and the realtime pump each apply their
// updates as one serialized pass. Reads and writes copy, so callers never
// alias cache-owned state.
type Memory struct {
	mu    sync.RWMutex
	polls map[string]domain.Poll
	pages map[string]domain.PollPage

	// now is swappable for tests that assert UpdatedAt refreshes.
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		polls: make(map[string]domain.Poll),
		pages: make(map[string]domain.PollPage),
		now:   time.Now,
	}
}

var _ ports.PollCache = (*Memory)(nil)

func (m *Memory) GetPoll(pollID string) (domain.Poll, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.polls[pollID]
	if !ok {
		return domain.Poll{}, false
	}
	return p.Clone(), true
}

func (m *Memory) SetPoll(poll domain.Poll) {
	m.mu.Lock()
	m.polls[poll.PollID] = poll.Clone()
	m.mu.Unlock()
}

func (m *Memory) RemovePoll(pollID string) {
	m.mu.Lock()
	delete(m.polls, pollID)
	m.mu.Unlock()
}

func (m *Memory) UpdatePoll(pollID string, fn func(*domain.Poll)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[pollID]
	if !ok {
		return false
	}
	fn(&p)
	m.polls[pollID] = p
	return true
}

func (m *Memory) GetPage(key string) (domain.PollPage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[key]
	if !ok {
		return domain.PollPage{}, false
	}
	return page.Clone(), true
}

func (m *Memory) SetPage(key string, page domain.PollPage) {
	m.mu.Lock()
	m.pages[key] = page.Clone()
	m.mu.Unlock()
}

func (m *Memory) UpdatePages(fn func(key string, page *domain.PollPage) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, page := range m.pages {
		if fn(key, &page) {
			page.UpdatedAt = m.now()
		}
		m.pages[key] = page
	}
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.polls = make(map[string]domain.Poll)
	m.pages = make(map[string]domain.PollPage)
	m.mu.Unlock()
}
