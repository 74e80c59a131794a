package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/quickpoll/quickpoll-go/internal/adapters/cache"
	"github.com/quickpoll/quickpoll-go/internal/adapters/realtime"
	"github.com/quickpoll/quickpoll-go/internal/adapters/storage"
	"github.com/quickpoll/quickpoll-go/internal/adapters/transport"
	"github.com/quickpoll/quickpoll-go/internal/core/ports"
	"github.com/quickpoll/quickpoll-go/internal/core/services"
)

// TestApp wires the full client stack against an in-process backend.
type TestApp struct {
	Backend    *backend
	Cache      *cache.Memory
	API        *transport.Client
	SessionID  string
	Polls      ports.PollService
	Reconciler *services.Reconciler
	Realtime   *realtime.Client
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupTestApp(t *testing.T) *TestApp {
	log := testLogger()
	backend := newBackend()

	api, err := transport.NewClient(backend.server.URL+"/api", backend.server.Client(), log)
	require.NoError(t, err)

	store := storage.NewFileStoreAt(filepath.Join(t.TempDir(), "session"))
	session := services.NewSessionService(store, api, log).GetOrCreate()

	memory := cache.NewMemory()
	app := &TestApp{
		Backend:   backend,
		Cache:     memory,
		API:       api,
		SessionID: session,
		Polls:     services.NewPollService(api, memory, log),
	}
	t.Cleanup(backend.close)
	return app
}

// ConnectRealtime attaches a reconciler-backed realtime client to the backend
// event stream.
func (app *TestApp) ConnectRealtime(t *testing.T) {
	app.Reconciler = services.NewReconciler(app.Cache, testLogger())
	app.Realtime = realtime.NewClient(
		"ws"+strings.TrimPrefix(app.Backend.server.URL, "http")+"/ws",
		app.Reconciler,
		testLogger(),
	)
	require.NoError(t, app.Realtime.Connect(context.Background()))
	t.Cleanup(func() { app.Realtime.Close() })
}

// SubscribeAndAwait joins a poll room and waits for the confirmation, so a
// following mutation is guaranteed to be broadcast to us.
func (app *TestApp) SubscribeAndAwait(t *testing.T, pollID string) {
	app.Realtime.Subscribe(pollID)
	require.Eventually(t, func() bool { return app.Realtime.Joined(pollID) },
		2*time.Second, 10*time.Millisecond, "join was never confirmed")
}

// do sends a raw API request under an arbitrary session id, bypassing the
// client under test; used to act as another browser.
func (app *TestApp) do(t *testing.T, method, path, session string, body any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, app.Backend.server.URL+"/api"+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(transport.SessionHeader, session)

	resp, err := app.Backend.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300, "request %s %s failed", method, path)
}
