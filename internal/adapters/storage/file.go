package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/quickpoll/quickpoll-go/internal/core/ports"
)

const sessionFile = "session"

// FileStore keeps the session id in the user's config directory, the durable
// storage a CLI installation has. Callers treat any error as "no durable
// storage" and fall back to an ephemeral id.
type FileStore struct {
	path string
}

func NewFileStore(appName string) (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve config dir")
	}
	return &FileStore{path: filepath.Join(dir, appName, sessionFile)}, nil
}

// NewFileStoreAt uses an explicit path, mainly for tests.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

var _ ports.SessionStore = (*FileStore)(nil)

func (s *FileStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read session file")
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *FileStore) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "write session file")
	}
	return nil
}
