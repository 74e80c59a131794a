package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	defaultAPIBaseURL = "http://localhost:8787/api"
	defaultSocketURL  = "ws://localhost:8787/ws"
)

// Config holds the two externally supplied endpoints. Everything else the
// client persists is the session id, which lives in the session store.
type Config struct {
	APIBaseURL string
	SocketURL  string
}

// Load reads QUICKPOLL_API_URL and QUICKPOLL_SOCKET_URL, falling back to the
// local development defaults. A .env file is honored when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIBaseURL: envOr("QUICKPOLL_API_URL", defaultAPIBaseURL),
		SocketURL:  envOr("QUICKPOLL_SOCKET_URL", defaultSocketURL),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
