package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

type sessionService struct {
	store     ports.SessionStore
	transport ports.Transport
	log       *logrus.Logger

	mu sync.Mutex
	id string
}

// NewSessionService resolves the per-installation session identity. The store
// may be nil (no durable storage available), in which case the id is
// ephemeral for this process.
func NewSessionService(store ports.SessionStore, transport ports.Transport, log *logrus.Logger) ports.SessionService {
	return &sessionService{
		store:     store,
		transport: transport,
		log:       log,
	}
}

func (s *sessionService) GetOrCreate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		return s.id
	}

	if s.store != nil {
		id, err := s.store.Load()
		if err != nil {
			s.log.WithError(err).Warn("session store unreadable, using ephemeral session")
		} else if id != "" {
			s.id = id
		}
	}

	if s.id == "" {
		s.id = uuid.NewString()
		if s.store != nil {
			if err := s.store.Save(s.id); err != nil {
				s.log.WithError(err).Warn("session store unwritable, session will not survive restart")
			}
		}
	}

	s.transport.SetSessionID(s.id)
	return s.id
}
