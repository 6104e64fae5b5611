package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"todoapp/internal/config"
	"todoapp/internal/handlers/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `tasks:
  - id: 6f1c1a52-0d3e-4b7a-9a51-3d2c7f0e8a11
    title: Купить молоко
  - title: Позвонить маме
    description: вечером
    completed: true
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "tasks.yml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o600))

	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
			CORSOrigins:     "http://localhost:3000",
		},
		Repository: config.RepositoryConfig{Type: config.RepoInMemory, SeedFile: seed},
		Worker:     config.WorkerConfig{StatsInterval: time.Hour},
	}
}

func TestApp_InitServesSeededTasks(t *testing.T) {
	a := New(testConfig(t))
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(a.Shutdown)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tasks?filter=active")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list dto.TaskListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, "active", list.Filter)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "Купить молоко", list.Tasks[0].Title)

	resp, err = http.Get(srv.URL + "/statistics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats dto.StatisticsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 50.0, stats.ActiveTasksPercent)
	assert.Equal(t, 50.0, stats.CompletedTasksPercent)
}

func TestApp_MetricsEndpoint(t *testing.T) {
	a := New(testConfig(t))
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(a.Shutdown)

	// сначала обычный запрос, чтобы появились HTTP-метрики
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, "go_goroutines"))
	assert.True(t, strings.Contains(body, `route="/health"`))
}

func TestApp_CORSPreflight(t *testing.T) {
	a := New(testConfig(t))
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(a.Shutdown)

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestApp_InitErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{
			name:   "error - unknown repository type",
			mutate: func(cfg *config.Config) { cfg.Repository.Type = "mongo" },
		},
		{
			name:   "error - missing seed file",
			mutate: func(cfg *config.Config) { cfg.Repository.SeedFile = "/nonexistent/tasks.yml" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			a := New(cfg)
			assert.Error(t, a.Init(context.Background()))
			assert.Empty(t, a.shutdowns)
		})
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"

	a := New(cfg)
	require.NoError(t, a.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}
