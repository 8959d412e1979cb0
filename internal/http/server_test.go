package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/servedeck/internal/engine"
	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/project"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

type testServer struct {
	*Server
	engine *engine.Engine
	bus    *transport.Bus
	logs   *logging.TestLogger
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	tl := logging.NewTestLogger()
	bus := transport.NewBus(nil)
	reg := prometheus.NewRegistry()

	eng, err := engine.New(engine.Options{Transport: bus.Host(), Registerer: reg})
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	server, err := NewServer(eng, tl.Logger, &Config{Gatherer: reg, Registerer: reg})
	require.NoError(t, err)
	return &testServer{Server: server, engine: eng, bus: bus, logs: tl}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	eng, err := engine.New(engine.Options{Transport: transport.NewBus(nil).Host()})
	require.NoError(t, err)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(eng, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 7420, server.config.Port)
		assert.Equal(t, 10*time.Second, server.config.ShutdownTimeout)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(eng, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when backend is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)
	_, err := s.engine.AddProject(context.Background(), "site", "/p")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Counts.Projects)
	assert.Equal(t, map[string]int{"unknown": 1}, resp.Counts.ByStatus)
}

func TestProjectsAPI(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/projects", CreateProjectRequest{Name: "site", Path: "/p"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created project.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "site", created.Name)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 3, s.bus.Pending(), "adding a project requests its state")

	t.Run("duplicate path conflicts", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/projects", CreateProjectRequest{Name: "again", Path: "/p"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing name is rejected", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/projects", CreateProjectRequest{Name: "  ", Path: "/q"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/projects", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ProjectsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Projects, 1)
		assert.Equal(t, created.ID, resp.Projects[0].ID)
	})

	t.Run("get reflects merged replies", func(t *testing.T) {
		reply := envelope.Encode(envelope.StatusReply{ProjectID: created.ID, Value: "running"})
		s.bus.Peer().Send(context.Background(), reply.Channel, reply)
		s.bus.Drain()

		rec := s.do(t, http.MethodGet, "/api/v1/projects/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got project.Project
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, project.StatusRunning, got.Status)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/projects/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.do(t, http.MethodDelete, "/api/v1/projects/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodDelete, "/api/v1/projects/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleMessages(t *testing.T) {
	s := setupTestServer(t)
	s.engine.Notifications().Append(notify.Notification{Type: notify.TypeError, ProjectID: "1", Text: "bad config"})

	rec := s.do(t, http.MethodGet, "/api/v1/messages", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "bad config", resp.Messages[0].Text)
}

func TestHandleFocus(t *testing.T) {
	s := setupTestServer(t)
	_, err := s.engine.AddProject(context.Background(), "a", "/a")
	require.NoError(t, err)
	_, err = s.engine.AddProject(context.Background(), "b", "/b")
	require.NoError(t, err)
	s.bus.Drain()

	rec := s.do(t, http.MethodPost, "/api/v1/focus", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp FocusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Requests)
	assert.Equal(t, 6, s.bus.Pending())
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.do(t, http.MethodGet, "/health", nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "servedeck_http_requests_total")
}

func TestRequestLogging(t *testing.T) {
	s := setupTestServer(t)

	s.do(t, http.MethodGet, "/api/v1/projects/nope", nil)

	s.logs.AssertLogged(t, zapcore.InfoLevel, "http request")
	entries := s.logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusNotFound), entries[0].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request.id"])
}

func TestStart_GracefulShutdown(t *testing.T) {
	eng, err := engine.New(engine.Options{Transport: transport.NewBus(nil).Host()})
	require.NoError(t, err)
	server, err := NewServer(eng, logging.NewNop(), &Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
