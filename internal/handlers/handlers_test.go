package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"todoapp/internal/handlers"
	"todoapp/internal/handlers/dto"
	"todoapp/internal/models/task"
	"todoapp/internal/observe"
	"todoapp/internal/repository"
	"todoapp/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskService - мок сервиса
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskService) ListTasks(ctx context.Context, filter task.FilterType, forceUpdate bool) ([]*task.Task, error) {
	args := m.Called(ctx, filter, forceUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskService) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) CreateTask(ctx context.Context, title, description string) (*task.Task, error) {
	args := m.Called(ctx, title, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) UpdateTask(ctx context.Context, id uuid.UUID, options ...task.Option) (*task.Task, error) {
	args := m.Called(ctx, id, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) CompleteTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) ActivateTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskService) ClearCompletedTasks(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskService) DeleteAllTasks(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskService) Statistics(ctx context.Context, forceUpdate bool) service.StatisticsView {
	args := m.Called(ctx, forceUpdate)
	return args.Get(0).(service.StatisticsView)
}

func (m *MockTaskService) ObserveTasks(ctx context.Context, filter task.FilterType, observer observe.Observer[[]*task.Task]) func() {
	args := m.Called(ctx, filter, observer)
	return args.Get(0).(func())
}

var _ handlers.Service = (*MockTaskService)(nil)

func newRouter(svc handlers.Service) http.Handler {
	r := chi.NewRouter()
	handlers.NewTaskHandler(svc).Register(r, 5*time.Second)
	return r
}

func doRequest(h http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// TestTaskHandler_HealthCheck тестирует HealthCheck
func TestTaskHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name: "success - healthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error - unhealthy",
			setupMock: func(m *MockTaskService) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("service unavailable"))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodGet, "/health", nil, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), "todoapp")

			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_GetTasks тестирует список с фильтром
func TestTaskHandler_GetTasks(t *testing.T) {
	done := task.New("done", "", task.WithCompleted(true))

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedCount  int
	}{
		{
			name:   "success - default filter",
			target: "/tasks",
			setupMock: func(m *MockTaskService) {
				m.On("ListTasks", mock.Anything, task.AllTasks, false).
					Return([]*task.Task{task.New("a", ""), done}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:   "success - completed with refresh",
			target: "/tasks?filter=completed&refresh=true",
			setupMock: func(m *MockTaskService) {
				m.On("ListTasks", mock.Anything, task.CompletedTasks, true).
					Return([]*task.Task{done}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "error - unknown filter",
			target:         "/tasks?filter=overdue",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - bad refresh",
			target:         "/tasks?refresh=maybe",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "error - store unavailable",
			target: "/tasks",
			setupMock: func(m *MockTaskService) {
				m.On("ListTasks", mock.Anything, task.AllTasks, false).
					Return(nil, service.NewStoreError("получение задач", repository.ErrStoreUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodGet, tt.target, nil, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp dto.TaskListResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedCount, resp.Count)
				assert.Len(t, resp.Tasks, tt.expectedCount)
			}
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_PostTask тестирует создание задачи
func TestTaskHandler_PostTask(t *testing.T) {
	created := task.New("Test Task", "Test Description")

	tests := []struct {
		name           string
		body           string
		contentType    string
		setupMock      func(*MockTaskService)
		expectedStatus int
		expectedError  string
	}{
		{
			name:        "success - valid request",
			body:        `{"title":"Test Task","description":"Test Description"}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "Test Task", "Test Description").Return(created, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "success - content type with charset",
			body:        `{"title":"Test Task"}`,
			contentType: "application/json; charset=utf-8",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "Test Task", "").Return(created, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "error - wrong content type",
			body:           `title=x`,
			contentType:    "text/plain",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:           "error - invalid json",
			body:           `{"title":`,
			contentType:    "application/json",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "error - empty task",
			body:        `{}`,
			contentType: "application/json",
			setupMock: func(m *MockTaskService) {
				m.On("CreateTask", mock.Anything, "", "").
					Return(nil, service.NewValidationError("title", "задача не может быть пустой"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  service.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodPost, "/tasks", []byte(tt.body), tt.contentType)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusCreated {
				var resp dto.TaskResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, created.ID, resp.ID)
				assert.Equal(t, "Test Task", resp.TitleForList)
			}
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, w)["error"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_GetTaskByID тестирует получение задачи
func TestTaskHandler_GetTaskByID(t *testing.T) {
	existing := task.New("Test Task", "")

	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockTaskService)
		expectedStatus int
	}{
		{
			name: "success - found",
			id:   existing.ID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("GetTask", mock.Anything, existing.ID).Return(existing, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error - not found",
			id:   existing.ID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("GetTask", mock.Anything, existing.ID).
					Return(nil, service.NewNotFound("задача", existing.ID.String()))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "error - invalid id",
			id:             "not-a-uuid",
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - nil id",
			id:             uuid.Nil.String(),
			setupMock:      func(m *MockTaskService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "error - unexpected service error",
			id:   existing.ID.String(),
			setupMock: func(m *MockTaskService) {
				m.On("GetTask", mock.Anything, existing.ID).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			tt.setupMock(mockService)

			w := doRequest(newRouter(mockService), http.MethodGet, "/tasks/"+tt.id, nil, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_UpdateTaskByID тестирует обновление задачи
func TestTaskHandler_UpdateTaskByID(t *testing.T) {
	existing := task.New("Old", "")
	updated := existing.Apply(task.WithTitle("New"), task.WithCompleted(true))

	t.Run("success - partial update", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("UpdateTask", mock.Anything, existing.ID, mock.MatchedBy(func(opts []task.Option) bool {
			// опции применяются к копии исходной задачи
			res := existing.Apply(opts...)
			return len(opts) == 2 && res.Title == "New" && res.IsCompleted && res.Description == ""
		})).Return(updated, nil)

		w := doRequest(newRouter(mockService), http.MethodPut, "/tasks/"+existing.ID.String(),
			[]byte(`{"title":"New","is_completed":true}`), "application/json")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.TaskResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "New", resp.Title)
		assert.True(t, resp.IsCompleted)
		mockService.AssertExpectations(t)
	})

	t.Run("error - no fields", func(t *testing.T) {
		mockService := new(MockTaskService)

		w := doRequest(newRouter(mockService), http.MethodPut, "/tasks/"+existing.ID.String(),
			[]byte(`{}`), "application/json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("error - not found", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("UpdateTask", mock.Anything, existing.ID, mock.Anything).
			Return(nil, service.NewNotFound("задача", existing.ID.String()))

		w := doRequest(newRouter(mockService), http.MethodPut, "/tasks/"+existing.ID.String(),
			[]byte(`{"title":"New"}`), "application/json")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, service.CodeNotFound, decodeError(t, w)["error"])
		mockService.AssertExpectations(t)
	})
}

// TestTaskHandler_CompleteActivate тестирует смену статуса
func TestTaskHandler_CompleteActivate(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name           string
		path           string
		method         string
		result         *task.Task
		err            error
		expectedStatus int
	}{
		{
			name:           "success - complete",
			path:           "/complete",
			method:         "CompleteTask",
			result:         task.New("t", "", task.WithID(id), task.WithCompleted(true)),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "success - activate",
			path:           "/activate",
			method:         "ActivateTask",
			result:         task.New("t", "", task.WithID(id)),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "error - complete missing",
			path:           "/complete",
			method:         "CompleteTask",
			err:            service.NewNotFound("задача", id.String()),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			if tt.err != nil {
				mockService.On(tt.method, mock.Anything, id).Return(nil, tt.err)
			} else {
				mockService.On(tt.method, mock.Anything, id).Return(tt.result, nil)
			}

			w := doRequest(newRouter(mockService), http.MethodPost, "/tasks/"+id.String()+tt.path, nil, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.result != nil {
				var resp dto.TaskResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.result.IsCompleted, resp.IsCompleted)
			}
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_Deletes тестирует удаление
func TestTaskHandler_Deletes(t *testing.T) {
	id := uuid.New()
	storeErr := service.NewStoreError("удаление", repository.ErrStoreUnavailable)

	tests := []struct {
		name           string
		target         string
		method         string
		args           []any
		err            error
		expectedStatus int
	}{
		{name: "success - delete task", target: "/tasks/" + id.String(), method: "DeleteTask", args: []any{mock.Anything, id}, expectedStatus: http.StatusNoContent},
		{name: "success - clear completed", target: "/tasks/completed", method: "ClearCompletedTasks", args: []any{mock.Anything}, expectedStatus: http.StatusNoContent},
		{name: "success - delete all", target: "/tasks", method: "DeleteAllTasks", args: []any{mock.Anything}, expectedStatus: http.StatusNoContent},
		{name: "error - delete all store failure", target: "/tasks", method: "DeleteAllTasks", args: []any{mock.Anything}, err: storeErr, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockTaskService)
			mockService.On(tt.method, tt.args...).Return(tt.err)

			w := doRequest(newRouter(mockService), http.MethodDelete, tt.target, nil, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

// TestTaskHandler_GetStatistics тестирует статистику
func TestTaskHandler_GetStatistics(t *testing.T) {
	t.Run("success - statistics with refresh", func(t *testing.T) {
		mockService := new(MockTaskService)
		view := service.StatisticsView{}
		view.Total, view.Active, view.Completed = 5, 3, 2
		view.ActiveTasksPercent, view.CompletedTasksPercent = 60, 40
		mockService.On("Statistics", mock.Anything, true).Return(view)

		w := doRequest(newRouter(mockService), http.MethodGet, "/statistics?refresh=true", nil, "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.StatisticsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 60.0, resp.ActiveTasksPercent)
		assert.Equal(t, 40.0, resp.CompletedTasksPercent)
		assert.Equal(t, 5, resp.Total)
		assert.False(t, resp.Error)
		mockService.AssertExpectations(t)
	})

	t.Run("success - load error reported in body", func(t *testing.T) {
		mockService := new(MockTaskService)
		mockService.On("Statistics", mock.Anything, false).Return(service.StatisticsView{Empty: true, Error: true})

		w := doRequest(newRouter(mockService), http.MethodGet, "/statistics", nil, "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.StatisticsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Empty)
		assert.True(t, resp.Error)
		mockService.AssertExpectations(t)
	})
}

// TestTaskHandler_StreamTasks тестирует поток событий
func TestTaskHandler_StreamTasks(t *testing.T) {
	mockService := new(MockTaskService)
	tk := task.New("streamed", "")

	var (
		mtx      sync.Mutex
		observer observe.Observer[[]*task.Task]
	)
	unsubscribed := make(chan struct{})
	mockService.On("ObserveTasks", mock.Anything, task.ActiveTasks, mock.Anything).
		Run(func(args mock.Arguments) {
			obs := args.Get(2).(observe.Observer[[]*task.Task])
			mtx.Lock()
			observer = obs
			mtx.Unlock()
			// первое состояние приходит сразу при подписке
			obs(observe.Success([]*task.Task{tk}))
		}).
		Return(func() { close(unsubscribed) })

	server := httptest.NewServer(newRouter(mockService))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/tasks/events?filter=active", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				if event != "" {
					return event, data
				}
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "tasks", event)
	assert.Contains(t, data, tk.ID.String())

	mtx.Lock()
	obs := observer
	mtx.Unlock()
	obs(observe.Failure[[]*task.Task](service.NewStoreError("получение задач", repository.ErrStoreUnavailable)))

	event, data = readEvent()
	assert.Equal(t, "error", event)
	assert.Contains(t, data, service.CodeStore)

	cancel()
	select {
	case <-unsubscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("подписка не отменена после отключения клиента")
	}
	mockService.AssertExpectations(t)
}

// TestTaskHandler_ConcurrentRequests тестирует конкурентные запросы
func TestTaskHandler_ConcurrentRequests(t *testing.T) {
	mockService := new(MockTaskService)
	router := newRouter(mockService)

	existing := task.New("Test Task", "")
	mockService.On("GetTask", mock.Anything, existing.ID).Return(existing, nil).Times(10)

	var wg sync.WaitGroup
	codes := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := doRequest(router, http.MethodGet, "/tasks/"+existing.ID.String(), nil, "")
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	mockService.AssertExpectations(t)
}
