package ports

// SessionStore persists the per-installation session identifier.
type SessionStore interface {
	Load() (string, error)
	Save(id string) error
}

// SessionService resolves the session identity exactly once per process and
// registers it with the transport. It never fails: when the store is unusable
// the id is ephemeral for this execution.
type SessionService interface {
	GetOrCreate() string
}
