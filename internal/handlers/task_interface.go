package handlers

import (
	"context"
	"todoapp/internal/models/task"
	"todoapp/internal/observe"
	"todoapp/internal/service"

	"github.com/google/uuid"
)

type Service interface {
	HealthCheck(ctx context.Context) error
	ListTasks(ctx context.Context, filter task.FilterType, forceUpdate bool) ([]*task.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	CreateTask(ctx context.Context, title, description string) (*task.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, options ...task.Option) (*task.Task, error)
	CompleteTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	ActivateTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ClearCompletedTasks(ctx context.Context) error
	DeleteAllTasks(ctx context.Context) error
	Statistics(ctx context.Context, forceUpdate bool) service.StatisticsView
	ObserveTasks(ctx context.Context, filter task.FilterType, observer observe.Observer[[]*task.Task]) (unsubscribe func())
}

var _ Service = (*service.TaskService)(nil)
