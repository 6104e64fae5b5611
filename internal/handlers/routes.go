package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Register вешает маршруты задач на роутер.
// Поток событий живёт дольше таймаута запроса, поэтому он вне группы с Timeout.
func (s *TaskHandler) Register(r chi.Router, requestTimeout time.Duration) {
	r.Get("/tasks/events", s.StreamTasks) // GET /tasks/events

	r.Group(func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(chimw.Timeout(requestTimeout))
		}

		r.Get("/tasks", s.GetTasks)                    // GET /tasks?filter=&refresh=
		r.Post("/tasks", s.PostTask)                   // POST /tasks
		r.Delete("/tasks", s.DeleteAllTasks)           // DELETE /tasks
		r.Delete("/tasks/completed", s.ClearCompleted) // DELETE /tasks/completed

		r.Get("/tasks/{id}", s.GetTaskByID)       // GET /tasks/{id}
		r.Put("/tasks/{id}", s.UpdateTaskByID)    // PUT /tasks/{id}
		r.Delete("/tasks/{id}", s.DeleteTaskByID) // DELETE /tasks/{id}

		r.Post("/tasks/{id}/complete", s.CompleteTask) // POST /tasks/{id}/complete
		r.Post("/tasks/{id}/activate", s.ActivateTask) // POST /tasks/{id}/activate

		r.Get("/statistics", s.GetStatistics) // GET /statistics?refresh=
		r.Get("/health", s.HealthCheck)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responseWithError(w, http.StatusNotFound, "маршрут не найден")
	})
}
