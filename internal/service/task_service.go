package service

import (
	"context"
	"errors"
	"fmt"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"
	"todoapp/internal/observe"
	rep "todoapp/internal/repository"
	"todoapp/internal/statistics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

const resourceTask = "задача"

type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
	}
}

// StatisticsView - данные экрана статистики.
// Empty выставляется и для пустого списка, и при ошибке загрузки.
type StatisticsView struct {
	statistics.Summary
	Empty bool `json:"empty"`
	Error bool `json:"error"`
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		logger.Error("Service: Проверка здоровья не пройдена", err)
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, filter task.FilterType, forceUpdate bool) ([]*task.Task, error) {
	tasks, err := s.repo.GetTasks(ctx, forceUpdate)
	if err != nil {
		return nil, s.mapError("получение задач", uuid.Nil, err)
	}
	return task.Filter(tasks, filter), nil
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetTask(ctx, id, false)
	if err != nil {
		return nil, s.mapError("получение задачи", id, err)
	}
	return t, nil
}

// CreateTask отклоняет задачу без названия и без описания
func (s *TaskService) CreateTask(ctx context.Context, title, description string) (*task.Task, error) {
	newTask := task.New(title, description)
	if newTask.IsEmpty() {
		logger.Info("Service: Попытка создать пустую задачу")
		return nil, NewValidationError("title", "задача не может быть пустой")
	}

	if err := s.repo.SaveTask(ctx, newTask); err != nil {
		return nil, s.mapError("создание задачи", newTask.ID, err)
	}
	logger.Info("Service: Задача создана", zap.String("task_id", newTask.ID.String()))
	return newTask, nil
}

// UpdateTask перезаписывает задачу целиком после применения опций. Идентификатор не меняется.
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, options ...task.Option) (*task.Task, error) {
	existing, err := s.repo.GetTask(ctx, id, false)
	if err != nil {
		return nil, s.mapError("получение задачи", id, err)
	}

	updated := existing.Apply(options...)
	updated.ID = id
	if updated.IsEmpty() {
		return nil, NewValidationError("title", "задача не может быть пустой")
	}

	if err := s.repo.SaveTask(ctx, updated); err != nil {
		return nil, s.mapError("обновление задачи", id, err)
	}
	return updated, nil
}

func (s *TaskService) CompleteTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.CompleteTaskByID(ctx, id)
	if err != nil {
		return nil, s.mapError("завершение задачи", id, err)
	}
	return t, nil
}

func (s *TaskService) ActivateTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.ActivateTaskByID(ctx, id)
	if err != nil {
		return nil, s.mapError("активация задачи", id, err)
	}
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return s.mapError("удаление задачи", id, err)
	}
	return nil
}

func (s *TaskService) ClearCompletedTasks(ctx context.Context) error {
	if err := s.repo.ClearCompletedTasks(ctx); err != nil {
		return s.mapError("удаление выполненных задач", uuid.Nil, err)
	}
	return nil
}

func (s *TaskService) DeleteAllTasks(ctx context.Context) error {
	if err := s.repo.DeleteAllTasks(ctx); err != nil {
		return s.mapError("удаление всех задач", uuid.Nil, err)
	}
	return nil
}

func (s *TaskService) Refresh(ctx context.Context) error {
	if err := s.repo.RefreshTasks(ctx); err != nil {
		return s.mapError("обновление задач", uuid.Nil, err)
	}
	return nil
}

// Statistics не возвращает ошибку: сбой загрузки отражается флагами Empty и Error
func (s *TaskService) Statistics(ctx context.Context, forceUpdate bool) StatisticsView {
	tasks, err := s.repo.GetTasks(ctx, forceUpdate)
	if err != nil {
		logger.Warn("Service: Статистика недоступна", zap.Error(err))
		return StatisticsView{Empty: true, Error: true}
	}
	return StatisticsView{
		Summary: statistics.Summarize(tasks),
		Empty:   len(tasks) == 0,
	}
}

// ObserveTasks подписывает на список задач с учётом фильтра
func (s *TaskService) ObserveTasks(ctx context.Context, filter task.FilterType, observer observe.Observer[[]*task.Task]) (unsubscribe func()) {
	return s.repo.ObserveTasks(ctx, func(res observe.Result[[]*task.Task]) {
		if !res.Succeeded() {
			observer(observe.Failure[[]*task.Task](s.mapError("наблюдение за задачами", uuid.Nil, res.Err)))
			return
		}
		observer(observe.Success(task.Filter(res.Data, filter)))
	})
}

func (s *TaskService) mapError(op string, id uuid.UUID, err error) error {
	if errors.Is(err, rep.ErrNotFound) {
		logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
		notFound := NewNotFound(resourceTask, id.String())
		notFound.Err = err
		return notFound
	}
	logger.Error("Service: Ошибка операции", err, zap.String("op", op))
	return NewStoreError(op, err)
}
