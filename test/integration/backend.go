package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quickpoll/quickpoll-go/internal/adapters/transport"
	"github.com/quickpoll/quickpoll-go/internal/core/domain"
)

// backend is an in-process stand-in for the remote poll service: the HTTP API
// under /api plus the /ws event stream, with vote toggle/replace semantics and
// per-room broadcasts matching the real service's contract.
type backend struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	polls map[string]*domain.Poll
	votes map[string]map[string]*domain.Vote // pollID -> sessionID -> vote
	likes map[string]map[string]bool         // pollID -> sessionID
	rooms map[string]map[*websocket.Conn]bool
}

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newBackend() *backend {
	b := &backend{
		polls: make(map[string]*domain.Poll),
		votes: make(map[string]map[string]*domain.Vote),
		likes: make(map[string]map[string]bool),
		rooms: make(map[string]map[*websocket.Conn]bool),
	}

	r := chi.NewRouter()
	r.Use(b.sessionMiddleware)
	r.Route("/api", func(r chi.Router) {
		r.Route("/polls", func(r chi.Router) {
			r.Get("/", b.listPolls)
			r.Post("/", b.createPoll)
			r.Route("/{pollID}", func(r chi.Router) {
				r.Get("/", b.getPoll)
				r.Put("/", b.updatePoll)
				r.Delete("/", b.deletePoll)
				r.Post("/vote", b.vote)
				r.Delete("/vote", b.removeVote)
				r.Post("/like", b.like)
				r.Delete("/like", b.unlike)
			})
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/polls", b.sessionPolls)
			r.Get("/votes", b.sessionVotes)
		})
	})
	r.Get("/ws", b.serveWS)

	b.server = httptest.NewServer(r)
	return b
}

func (b *backend) close() {
	b.mu.Lock()
	for _, room := range b.rooms {
		for conn := range room {
			conn.Close()
		}
	}
	b.mu.Unlock()
	b.server.Close()
}

// sessionMiddleware seeds a session id for clients that do not present one
// and always echoes the id back, the way the real backend does.
func (b *backend) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(transport.SessionHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(transport.SessionHeader, id)
		next.ServeHTTP(w, r)
	})
}

func sessionID(r *http.Request) string {
	return r.Header.Get(transport.SessionHeader)
}

func writeData(w http.ResponseWriter, status int, data any, pagination *domain.Pagination) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"data":       data,
		"pagination": pagination,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// viewFor copies a poll with the session-relative fields filled in.
func (b *backend) viewFor(p *domain.Poll, session string) domain.Poll {
	out := p.Clone()
	if vote, ok := b.votes[p.PollID][session]; ok {
		v := *vote
		out.SessionVote = &v
	}
	out.SessionLiked = b.likes[p.PollID][session]
	out.TotalLikes = len(b.likes[p.PollID])
	return out
}

func (b *backend) listPolls(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	all := make([]domain.Poll, 0, len(b.polls))
	for _, p := range b.polls {
		all = append(all, b.viewFor(p, session))
	}

	switch r.URL.Query().Get("sortBy") {
	case domain.SortMostLiked:
		sort.Slice(all, func(i, j int) bool { return all[i].TotalLikes > all[j].TotalLikes })
	case domain.SortMostVoted:
		sort.Slice(all, func(i, j int) bool { return all[i].TotalVotes > all[j].TotalVotes })
	default:
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	}

	page, limit := 1, 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	writeData(w, http.StatusOK, all[start:end], &domain.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	})
}

func (b *backend) getPoll(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	poll, ok := b.polls[chi.URLParam(r, "pollID")]
	if !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	writeData(w, http.StatusOK, b.viewFor(poll, sessionID(r)), nil)
}

type createPollRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Options            []string `json:"options"`
	Tags               []string `json:"tags"`
	AllowMultipleVotes bool     `json:"allowMultipleVotes"`
}

func (b *backend) createPoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Title == "" || len(req.Options) < 2 || len(req.Options) > 10 {
		writeError(w, http.StatusBadRequest, "VALIDATION", "title and 2..10 options required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	poll := &domain.Poll{
		PollID:             uuid.NewString(),
		Title:              req.Title,
		Description:        req.Description,
		CreatedBy:          sessionID(r),
		AllowMultipleVotes: req.AllowMultipleVotes,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for i, text := range req.Options {
		poll.Options = append(poll.Options, domain.Option{
			OptionID:     uuid.NewString(),
			PollID:       poll.PollID,
			OptionText:   text,
			DisplayOrder: i,
			CreatedAt:    now,
		})
	}
	b.polls[poll.PollID] = poll
	b.votes[poll.PollID] = make(map[string]*domain.Vote)
	b.likes[poll.PollID] = make(map[string]bool)

	writeData(w, http.StatusCreated, b.viewFor(poll, sessionID(r)), nil)
}

type updatePollRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (b *backend) updatePoll(w http.ResponseWriter, r *http.Request) {
	var req updatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	poll, ok := b.polls[chi.URLParam(r, "pollID")]
	if !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	if req.Title != nil {
		poll.Title = *req.Title
	}
	if req.Description != nil {
		poll.Description = *req.Description
	}
	poll.UpdatedAt = time.Now()

	b.broadcast(poll.PollID, domain.EventPollUpdated, domain.PollUpdatedEvent{
		PollID: poll.PollID,
		Poll:   b.viewFor(poll, ""),
	})
	writeData(w, http.StatusOK, b.viewFor(poll, sessionID(r)), nil)
}

func (b *backend) deletePoll(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pollID := chi.URLParam(r, "pollID")
	if _, ok := b.polls[pollID]; !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	delete(b.polls, pollID)
	delete(b.votes, pollID)
	delete(b.likes, pollID)

	b.broadcast(pollID, domain.EventPollDeleted, domain.PollDeletedEvent{PollID: pollID})
	writeData(w, http.StatusOK, nil, nil)
}

func (b *backend) counts(poll *domain.Poll) map[string]int {
	counts := make(map[string]int, len(poll.Options))
	for _, opt := range poll.Options {
		counts[opt.OptionID] = opt.VoteCount
	}
	return counts
}

type voteRequest struct {
	OptionID string `json:"optionId"`
}

// vote implements single-choice semantics: a new option replaces the previous
// vote, re-voting the same option removes it.
func (b *backend) vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	poll, ok := b.polls[chi.URLParam(r, "pollID")]
	if !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	option := poll.Option(req.OptionID)
	if option == nil {
		writeError(w, http.StatusBadRequest, "INVALID_OPTION", "option does not belong to this poll")
		return
	}

	previous := b.votes[poll.PollID][session]
	switch {
	case previous != nil && previous.OptionID == req.OptionID:
		// Toggle off.
		delete(b.votes[poll.PollID], session)
		option.VoteCount--
		poll.TotalVotes--
		b.broadcast(poll.PollID, domain.EventVoteRemoved, domain.VoteRemovedEvent{
			PollID:        poll.PollID,
			SessionID:     session,
			UpdatedCounts: b.counts(poll),
		})
	case previous != nil:
		// Replace.
		if prevOpt := poll.Option(previous.OptionID); prevOpt != nil {
			prevOpt.VoteCount--
		}
		option.VoteCount++
		vote := &domain.Vote{
			VoteID:    uuid.NewString(),
			PollID:    poll.PollID,
			OptionID:  req.OptionID,
			SessionID: session,
			VotedAt:   time.Now(),
		}
		b.votes[poll.PollID][session] = vote
		b.broadcast(poll.PollID, domain.EventVoteChanged, domain.VoteEvent{
			PollID:        poll.PollID,
			Vote:          *vote,
			UpdatedCounts: b.counts(poll),
		})
	default:
		option.VoteCount++
		poll.TotalVotes++
		vote := &domain.Vote{
			VoteID:    uuid.NewString(),
			PollID:    poll.PollID,
			OptionID:  req.OptionID,
			SessionID: session,
			VotedAt:   time.Now(),
		}
		b.votes[poll.PollID][session] = vote
		b.broadcast(poll.PollID, domain.EventVoteAdded, domain.VoteEvent{
			PollID:        poll.PollID,
			Vote:          *vote,
			UpdatedCounts: b.counts(poll),
		})
	}

	writeData(w, http.StatusOK, b.viewFor(poll, session), nil)
}

func (b *backend) removeVote(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	poll, ok := b.polls[chi.URLParam(r, "pollID")]
	if !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	vote := b.votes[poll.PollID][session]
	if vote == nil {
		writeError(w, http.StatusNotFound, "VOTE_NOT_FOUND", "no vote for this session")
		return
	}
	if opt := poll.Option(vote.OptionID); opt != nil {
		opt.VoteCount--
	}
	poll.TotalVotes--
	delete(b.votes[poll.PollID], session)

	b.broadcast(poll.PollID, domain.EventVoteRemoved, domain.VoteRemovedEvent{
		PollID:        poll.PollID,
		SessionID:     session,
		UpdatedCounts: b.counts(poll),
	})
	writeData(w, http.StatusOK, b.viewFor(poll, session), nil)
}

func (b *backend) like(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	poll, ok := b.polls[chi.URLParam(r, "pollID")]
	if !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	if !b.likes[poll.PollID][session] {
		b.likes[poll.PollID][session] = true
		b.broadcast(poll.PollID, domain.EventLikeAdded, domain.LikeAddedEvent{
			PollID:     poll.PollID,
			Like:       domain.Like{LikeID: uuid.NewString(), PollID: poll.PollID, SessionID: session, LikedAt: time.Now()},
			TotalLikes: len(b.likes[poll.PollID]),
		})
	}
	writeData(w, http.StatusOK, b.viewFor(poll, session), nil)
}

func (b *backend) unlike(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	poll, ok := b.polls[chi.URLParam(r, "pollID")]
	if !ok {
		writeError(w, http.StatusNotFound, "POLL_NOT_FOUND", "poll not found")
		return
	}
	if b.likes[poll.PollID][session] {
		delete(b.likes[poll.PollID], session)
		b.broadcast(poll.PollID, domain.EventLikeRemoved, domain.LikeRemovedEvent{
			PollID:     poll.PollID,
			SessionID:  session,
			TotalLikes: len(b.likes[poll.PollID]),
		})
	}
	writeData(w, http.StatusOK, b.viewFor(poll, session), nil)
}

func (b *backend) sessionPolls(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	var mine []domain.Poll
	for _, p := range b.polls {
		if p.CreatedBy == session {
			mine = append(mine, b.viewFor(p, session))
		}
	}
	writeData(w, http.StatusOK, mine, &domain.Pagination{
		Page: 1, Limit: 20, Total: len(mine), TotalPages: 1,
	})
}

func (b *backend) sessionVotes(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	session := sessionID(r)
	var mine []domain.Vote
	for _, perSession := range b.votes {
		if vote, ok := perSession[session]; ok {
			mine = append(mine, *vote)
		}
	}
	writeData(w, http.StatusOK, mine, &domain.Pagination{
		Page: 1, Limit: 20, Total: len(mine), TotalPages: 1,
	})
}

func (b *backend) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer b.leaveAll(conn)

	for {
		var f wireFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		var ref struct {
			PollID string `json:"pollId"`
		}
		if err := json.Unmarshal(f.Data, &ref); err != nil {
			continue
		}

		b.mu.Lock()
		switch f.Event {
		case domain.EventJoinPoll:
			if b.rooms[ref.PollID] == nil {
				b.rooms[ref.PollID] = make(map[*websocket.Conn]bool)
			}
			b.rooms[ref.PollID][conn] = true
			b.send(conn, domain.EventJoinedPoll, domain.JoinedPollEvent{PollID: ref.PollID})
		case domain.EventLeavePoll:
			delete(b.rooms[ref.PollID], conn)
		}
		b.mu.Unlock()
	}
}

func (b *backend) leaveAll(conn *websocket.Conn) {
	b.mu.Lock()
	for _, room := range b.rooms {
		delete(room, conn)
	}
	b.mu.Unlock()
	conn.Close()
}

// broadcast fans an event out to every subscriber of the poll's room. Callers
// hold b.mu.
func (b *backend) broadcast(pollID, event string, data any) {
	for conn := range b.rooms[pollID] {
		b.send(conn, event, data)
	}
}

func (b *backend) send(conn *websocket.Conn, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	conn.WriteJSON(wireFrame{Event: event, Data: payload})
}
