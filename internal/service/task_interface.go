package service

import (
	"context"
	"todoapp/internal/models/task"
	"todoapp/internal/observe"

	"github.com/google/uuid"
)

// TaskRepository - то, что сервису нужно от repository.TasksRepository
type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	GetTasks(ctx context.Context, forceUpdate bool) ([]*task.Task, error)
	GetTask(ctx context.Context, id uuid.UUID, forceUpdate bool) (*task.Task, error)
	SaveTask(ctx context.Context, t *task.Task) error
	CompleteTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	ActivateTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ClearCompletedTasks(ctx context.Context) error
	DeleteAllTasks(ctx context.Context) error
	RefreshTasks(ctx context.Context) error
	ObserveTasks(ctx context.Context, observer observe.Observer[[]*task.Task]) (unsubscribe func())
}
