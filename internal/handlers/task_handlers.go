package handlers

import (
	"encoding/json"
	"net/http"
	"time"
	"todoapp/internal/handlers/dto"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"

	"go.uber.org/zap"
)

const serviceName = "todoapp"

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Warn("HTTP: Сервис недоступен", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", serviceName),
		)
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", serviceName),
	)
}

// GetTasks: GET /tasks?filter=all|active|completed&refresh=true
func (s *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, err := task.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		logger.Warn("HTTP: Неверное значение параметра",
			zap.String("query", "filter"),
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	refresh, err := queryBool(r, "refresh")
	if err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное значение refresh")
		return
	}

	tasks, err := s.TaskService.ListTasks(r.Context(), filter, refresh)
	if err != nil {
		handleServiceError(w, r, err, "list_tasks")
		return
	}

	logger.Debug("HTTP_OUT: Задачи получены",
		zap.String("filter", string(filter)),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, dto.TaskListResponse{
		Filter: string(filter),
		Count:  len(tasks),
		Tasks:  dto.FromTaskList(tasks),
	})
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !requireJSON(w, r) {
		return
	}

	var request dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	created, err := s.TaskService.CreateTask(r.Context(), request.Title, request.Description)
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithData(w, http.StatusCreated, dto.FromTask(created))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	found, err := s.TaskService.GetTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}
	responseWithData(w, http.StatusOK, dto.FromTask(found))
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}

	var request dto.UpdateTaskRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}
	if request.IsEmpty() {
		responseWithError(w, http.StatusBadRequest, "нет полей для обновления")
		return
	}

	updated, err := s.TaskService.UpdateTask(r.Context(), id, request.Options()...)
	if err != nil {
		handleServiceError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, dto.FromTask(updated))
}

func (s *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	completed, err := s.TaskService.CompleteTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "complete_task")
		return
	}
	responseWithData(w, http.StatusOK, dto.FromTask(completed))
}

func (s *TaskHandler) ActivateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	activated, err := s.TaskService.ActivateTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "activate_task")
		return
	}
	responseWithData(w, http.StatusOK, dto.FromTask(activated))
}

func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.TaskService.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id.String()),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	if err := s.TaskService.ClearCompletedTasks(r.Context()); err != nil {
		handleServiceError(w, r, err, "clear_completed")
		return
	}
	logger.Info("HTTP_OUT: Выполненные задачи удалены")
	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) DeleteAllTasks(w http.ResponseWriter, r *http.Request) {
	if err := s.TaskService.DeleteAllTasks(r.Context()); err != nil {
		handleServiceError(w, r, err, "delete_all")
		return
	}
	logger.Info("HTTP_OUT: Все задачи удалены")
	w.WriteHeader(http.StatusNoContent)
}

// GetStatistics всегда отвечает 200: ошибка загрузки передаётся флагом error
func (s *TaskHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	refresh, err := queryBool(r, "refresh")
	if err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное значение refresh")
		return
	}

	view := s.TaskService.Statistics(r.Context(), refresh)
	responseWithData(w, http.StatusOK, dto.StatisticsResponse{
		ActiveTasksPercent:    view.ActiveTasksPercent,
		CompletedTasksPercent: view.CompletedTasksPercent,
		Total:                 view.Total,
		Active:                view.Active,
		Completed:             view.Completed,
		Empty:                 view.Empty,
		Error:                 view.Error,
	})
}
