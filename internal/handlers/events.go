package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"todoapp/internal/handlers/dto"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"
	"todoapp/internal/observe"
	"todoapp/internal/service"

	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

// StreamTasks: GET /tasks/events - Server-Sent Events.
// Первое событие - текущий список, дальше список после каждого изменения.
func (s *TaskHandler) StreamTasks(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		responseWithError(w, http.StatusInternalServerError, "потоковая передача не поддерживается")
		return
	}

	filter, err := task.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// канал на одно значение: медленный клиент получает только последнее состояние
	updates := make(chan observe.Result[[]*task.Task], 1)
	unsubscribe := s.TaskService.ObserveTasks(r.Context(), filter, func(res observe.Result[[]*task.Task]) {
		for {
			select {
			case updates <- res:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	logger.Info("HTTP: Подписка на события задач", zap.String("filter", string(filter)), zap.String("client_ip", r.RemoteAddr))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info("HTTP: Подписка на события завершена", zap.String("client_ip", r.RemoteAddr))
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case res := <-updates:
			if err := writeEvent(w, res); err != nil {
				logger.Warn("HTTP: Ошибка отправки события", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, res observe.Result[[]*task.Task]) error {
	event := "tasks"
	var data any
	if res.Succeeded() {
		data = dto.FromTaskList(res.Data)
	} else {
		event = "error"
		code := service.CodeOf(res.Err)
		if code == "" {
			code = service.CodeStore
		}
		data = map[string]string{"error": code, "message": res.Err.Error()}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
