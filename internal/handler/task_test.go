package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/live"
	"github.com/BuzzLyutic/task-list/internal/metrics"
	"github.com/BuzzLyutic/task-list/internal/model"
	"github.com/BuzzLyutic/task-list/internal/service"
	"github.com/BuzzLyutic/task-list/internal/storage"
	"github.com/BuzzLyutic/task-list/internal/theme"
	"github.com/BuzzLyutic/task-list/pkg/respond"
)

type testServer struct {
	*httptest.Server
	service *service.TaskService
	hub     *live.Hub
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	st := storage.NewMemoryStorage()
	taskService := service.NewTaskService(st, logger)
	themes := theme.NewManager(st, logger, theme.DefaultKey, time.Second)
	hub := live.NewHub(logger, "")
	collector := metrics.NewCollector()

	taskService.Subscribe(hub.Observe)
	taskService.Subscribe(collector.Observe)
	taskService.LoadTasks()

	srv := httptest.NewServer(NewRouter(Routes{
		Tasks:   NewTaskHandler(taskService, logger),
		Theme:   NewThemeHandler(themes, "light", logger),
		Live:    hub.ServeWS,
		Metrics: collector.Handler(),
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})

	return &testServer{Server: srv, service: taskService, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *http.Response {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestTaskHandler_Create(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name          string
		body          interface{}
		wantCode      int
		checkResponse func(*testing.T, *http.Response)
	}{
		{
			name:     "successful creation",
			body:     model.TaskInput{Text: "Buy milk", Priority: "high", DueDate: "2024-06-01"},
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				task := decode[model.Task](t, resp)
				assert.NotEmpty(t, task.ID)
				assert.Equal(t, "Buy milk", task.Text)
				assert.Equal(t, model.PriorityHigh, task.Priority)
				assert.Equal(t, "/api/tasks/"+task.ID, resp.Header.Get("Location"))
			},
		},
		{
			name:     "empty body",
			body:     nil,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "blank text",
			body:     model.TaskInput{Text: "   "},
			wantCode: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp *http.Response) {
				body := decode[respond.ErrorBody](t, resp)
				assert.Contains(t, body.Error, "validation error")
				assert.NotEmpty(t, body.RequestID)
			},
		},
		{
			name:     "invalid json",
			body:     "not an object",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(t, http.MethodPost, "/api/tasks", tt.body)

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}

	assert.Equal(t, 1, srv.service.GetStats().Total)
}

func TestTaskHandler_ListAndFilter(t *testing.T) {
	srv := setupServer(t)
	milk, _ := srv.service.AddTask(model.TaskInput{Text: "Buy milk"})
	srv.service.AddTask(model.TaskInput{Text: "Walk dog"})
	srv.service.ToggleTask(milk.ID)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"Walk dog", "Buy milk"}},
		{query: "?filter=all", want: []string{"Walk dog", "Buy milk"}},
		{query: "?filter=pending", want: []string{"Walk dog"}},
		{query: "?filter=completed", want: []string{"Buy milk"}},
		{query: "?filter=whatever", want: []string{"Walk dog", "Buy milk"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := srv.do(t, http.MethodGet, "/api/tasks"+tt.query, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			tasks := decode[[]model.Task](t, resp)
			got := make([]string, len(tasks))
			for i, task := range tasks {
				got[i] = task.Text
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskHandler_GetToggleDelete(t *testing.T) {
	srv := setupServer(t)
	task, err := srv.service.AddTask(model.TaskInput{Text: "Buy milk"})
	require.NoError(t, err)

	resp := srv.do(t, http.MethodGet, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled := decode[model.Task](t, resp)
	assert.True(t, toggled.Completed)
	assert.NotNil(t, toggled.CompletedAt)

	resp = srv.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled = decode[model.Task](t, resp)
	assert.Equal(t, task.ID, toggled.ID)
	assert.False(t, toggled.Completed)
	assert.Nil(t, toggled.CompletedAt)

	resp = srv.do(t, http.MethodPost, "/api/tasks/nope/toggle", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskHandler_Reorder(t *testing.T) {
	srv := setupServer(t)
	a, _ := srv.service.AddTask(model.TaskInput{Text: "a"})
	b, _ := srv.service.AddTask(model.TaskInput{Text: "b"})
	c, _ := srv.service.AddTask(model.TaskInput{Text: "c"})
	// [c b a]

	resp := srv.do(t, http.MethodPost, "/api/tasks/reorder", reorderRequest{DraggedID: c.ID, TargetID: a.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[reorderResponse](t, resp)
	assert.True(t, out.Moved)
	require.Len(t, out.Tasks, 3)
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, []string{out.Tasks[0].ID, out.Tasks[1].ID, out.Tasks[2].ID})

	// не применённая перестановка - всё равно 200, moved=false, порядок прежний
	for _, req := range []reorderRequest{
		{DraggedID: c.ID, TargetID: c.ID},
		{DraggedID: "nope", TargetID: a.ID},
	} {
		resp = srv.do(t, http.MethodPost, "/api/tasks/reorder", req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out = decode[reorderResponse](t, resp)
		assert.False(t, out.Moved)
		require.Len(t, out.Tasks, 3)
		assert.Equal(t, []string{b.ID, a.ID, c.ID}, []string{out.Tasks[0].ID, out.Tasks[1].ID, out.Tasks[2].ID})
	}

	resp = srv.do(t, http.MethodPost, "/api/tasks/reorder", "bad")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskHandler_StatsAndClearCompleted(t *testing.T) {
	srv := setupServer(t)
	milk, _ := srv.service.AddTask(model.TaskInput{Text: "Buy milk"})
	srv.service.AddTask(model.TaskInput{Text: "Walk dog"})
	srv.service.ToggleTask(milk.ID)

	resp := srv.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.Stats{Total: 2, Completed: 1, Pending: 1}, decode[model.Stats](t, resp))

	resp = srv.do(t, http.MethodDelete, "/api/tasks/completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"removed": 1}, decode[map[string]int](t, resp))
	assert.Equal(t, model.Stats{Total: 1, Pending: 1}, srv.service.GetStats())
}

func TestThemeHandler(t *testing.T) {
	srv := setupServer(t)

	resp := srv.do(t, http.MethodGet, "/api/theme", nil)
	got := decode[themeResponse](t, resp)
	assert.Equal(t, theme.Light, got.Theme, "config default")
	assert.False(t, got.Stored)

	resp = srv.do(t, http.MethodGet, "/api/theme", nil, colorSchemeHeader, `"dark"`)
	got = decode[themeResponse](t, resp)
	assert.Equal(t, theme.Dark, got.Theme, "client hint wins when nothing stored")

	resp = srv.do(t, http.MethodPut, "/api/theme", map[string]string{"theme": "purple"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/api/theme", map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/theme", nil, colorSchemeHeader, "light")
	got = decode[themeResponse](t, resp)
	assert.Equal(t, theme.Dark, got.Theme, "stored preference wins over system")
	assert.True(t, got.Stored)

	resp = srv.do(t, http.MethodPost, "/api/theme/toggle", nil)
	got = decode[themeResponse](t, resp)
	assert.Equal(t, theme.Light, got.Theme)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := setupServer(t)
	srv.service.AddTask(model.TaskInput{Text: "Buy milk"})

	resp := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `tasks{state="total"} 1`)
}

func TestE2E_LiveUpdates(t *testing.T) {
	srv := setupServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() live.Message {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg live.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	initial := read()
	assert.Empty(t, initial.Tasks)

	resp := srv.do(t, http.MethodPost, "/api/tasks", model.TaskInput{Text: "Buy milk"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := read()
	require.Len(t, msg.Tasks, 1)
	assert.Equal(t, "Buy milk", msg.Tasks[0].Text)
	assert.Equal(t, model.Stats{Total: 1, Pending: 1}, msg.Stats)
}
