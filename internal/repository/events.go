package repository

import (
	"context"
	"time"
	"todoapp/internal/models/task"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTaskSaved        EventType = "task.saved"
	EventTaskDeleted      EventType = "task.deleted"
	EventCompletedCleared EventType = "tasks.completed_cleared"
	EventAllDeleted       EventType = "tasks.deleted_all"
)

type Event struct {
	Type      EventType  `json:"type"`
	TaskID    uuid.UUID  `json:"task_id"`
	Timestamp time.Time  `json:"timestamp"`
	Task      *task.Task `json:"task,omitempty"`
}

// EventPublisher получает события после успешной записи в хранилище.
// Ошибки доставки не влияют на результат операции репозитория.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func newEvent(eventType EventType, id uuid.UUID, t *task.Task) Event {
	return Event{
		Type:      eventType,
		TaskID:    id,
		Timestamp: time.Now().UTC(),
		Task:      t,
	}
}
