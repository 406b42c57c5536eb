package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/demoreel/internal/config"
	"github.com/stwalsh4118/demoreel/internal/db"
	"github.com/stwalsh4118/demoreel/internal/models"
	"github.com/stwalsh4118/demoreel/internal/playback"
	"github.com/stwalsh4118/demoreel/internal/script"
	"github.com/stwalsh4118/demoreel/internal/session"
)

// mockScriptGetter is a test helper that implements scriptGetter
type mockScriptGetter struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*models.Script, error)
}

func (m *mockScriptGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.Script, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, db.ErrNotFound
}

func sessionTimeline(t *testing.T) *script.Timeline {
	t.Helper()
	first, err := script.NewSegment("first", "First", time.Minute,
		script.Step{ID: "title", Kind: script.KindReveal})
	require.NoError(t, err)
	second, err := script.NewSegment("second", "Second", time.Minute)
	require.NoError(t, err)
	tl, err := script.NewTimeline("api-test", first, second)
	require.NoError(t, err)
	return tl
}

// setupSessionTest creates a router backed by a real session manager
func setupSessionTest(t *testing.T, scripts scriptGetter, maxSessions int) (*gin.Engine, *session.Manager) {
	t.Helper()

	manager := session.NewManager(
		config.SessionsConfig{
			MaxSessions:     maxSessions,
			IdleTimeout:     time.Hour,
			CleanupInterval: time.Hour,
			EventBuffer:     32,
		},
		config.PlayerConfig{ProgressInterval: -1},
	)
	t.Cleanup(manager.Stop)

	if scripts == nil {
		scripts = &mockScriptGetter{}
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupSessionRoutes(router.Group("/api"), manager, scripts, DefaultScript{
		Name:     "default",
		Timeline: sessionTimeline(t),
	})
	return router, manager
}

func createSession(t *testing.T, router http.Handler) session.Info {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	return info
}

func command(t *testing.T, router http.Handler, id uuid.UUID, path string) (*httptest.ResponseRecorder, CommandResponse) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id.String()+"/"+path, nil)
	var resp CommandResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestCreateSession_Default(t *testing.T) {
	router, manager := setupSessionTest(t, nil, 4)

	info := createSession(t, router)

	assert.NotEqual(t, uuid.Nil, info.ID)
	assert.Equal(t, "default", info.ScriptName)
	assert.Empty(t, info.ScriptID)
	assert.Equal(t, playback.StatusIdle, info.State.Status)
	assert.Equal(t, 2, info.State.SegmentCount)
	assert.Equal(t, 1, manager.Count())
}

func TestCreateSession_FromStoredScript(t *testing.T) {
	stored, err := models.NewScript("stored", script.DefinitionOf("stored", sessionTimeline(t)))
	require.NoError(t, err)

	scripts := &mockScriptGetter{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*models.Script, error) {
			if id == stored.ID {
				return stored, nil
			}
			return nil, db.ErrNotFound
		},
	}
	router, _ := setupSessionTest(t, scripts, 4)

	w := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{ScriptID: stored.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, stored.ID.String(), info.ScriptID)
	assert.Equal(t, "stored", info.ScriptName)

	w = doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{ScriptID: uuid.New().String()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{ScriptID: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_TooMany(t *testing.T) {
	router, _ := setupSessionTest(t, nil, 1)
	createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "too_many_sessions", resp.Error)
}

func TestSessionCommands(t *testing.T) {
	router, _ := setupSessionTest(t, nil, 4)
	info := createSession(t, router)

	w, resp := command(t, router, info.ID, "play")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, playback.StatusPlaying, resp.State.Status)
	assert.Equal(t, "play", resp.Command)

	_, resp = command(t, router, info.ID, "next")
	assert.Equal(t, 1, resp.State.SegmentIndex)

	_, resp = command(t, router, info.ID, "next")
	assert.Equal(t, 0, resp.State.SegmentIndex, "next wraps")

	_, resp = command(t, router, info.ID, "previous")
	assert.Equal(t, 1, resp.State.SegmentIndex)

	_, resp = command(t, router, info.ID, "jump/0")
	assert.Equal(t, 0, resp.State.SegmentIndex)

	_, resp = command(t, router, info.ID, "pause")
	assert.Equal(t, playback.StatusPaused, resp.State.Status)

	_, resp = command(t, router, info.ID, "restart")
	assert.Equal(t, playback.StatusPlaying, resp.State.Status)
	assert.Equal(t, 0, resp.State.SegmentIndex)
}

func TestSessionJump_Errors(t *testing.T) {
	router, _ := setupSessionTest(t, nil, 4)
	info := createSession(t, router)

	w, _ := command(t, router, info.ID, "jump/9")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_segment", resp.Error)

	w, _ = command(t, router, info.ID, "jump/-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = command(t, router, info.ID, "jump/two")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_index", resp.Error)
}

func TestSessionLookupErrors(t *testing.T) {
	router, _ := setupSessionTest(t, nil, 4)

	w := doJSON(t, router, http.MethodGet, "/api/sessions/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = command(t, router, uuid.New(), "play")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndDeleteSessions(t *testing.T) {
	router, manager := setupSessionTest(t, nil, 4)
	first := createSession(t, router)
	createSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list SessionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Sessions, 2)

	w = doJSON(t, router, http.MethodDelete, "/api/sessions/"+first.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, manager.Count())

	w = doJSON(t, router, http.MethodDelete, "/api/sessions/"+first.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamEvents(t *testing.T) {
	router, _ := setupSessionTest(t, nil, 4)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	info := createSession(t, router)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/sessions/"+info.ID.String()+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan string, 32)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if name, ok := strings.CutPrefix(line, "event:"); ok {
				events <- strings.TrimSpace(name)
			}
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case name, ok := <-events:
				require.True(t, ok, "stream ended before %q", want)
				if name == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q event", want)
			}
		}
	}

	waitFor("state")

	w, _ := command(t, router, info.ID, "play")
	require.Equal(t, http.StatusOK, w.Code)

	waitFor("segment")
	waitFor("step")
}
