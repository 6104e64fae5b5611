package repository

import (
	"context"
	"todoapp/internal/models/task"

	"github.com/google/uuid"
)

// Store - постоянное хранилище задач.
// GetByID возвращает ErrNotFound, если задачи нет; DeleteByID для отсутствующей задачи не ошибка.
type Store interface {
	InsertOrReplace(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	GetAll(ctx context.Context) ([]*task.Task, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteCompleted(ctx context.Context) error
	DeleteAll(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}
