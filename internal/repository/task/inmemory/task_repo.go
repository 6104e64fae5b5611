package inmemory

import (
	"context"
	"fmt"
	"sync"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"
	repo "todoapp/internal/repository"

	"github.com/google/uuid"
)

// TaskStorage - хранилище в памяти. Используется по умолчанию и как подделка в тестах:
// SetReturnError заставляет все операции возвращать ошибку.
type TaskStorage struct {
	storage     map[uuid.UUID]*task.Task
	mtx         *sync.RWMutex
	ids         []uuid.UUID
	returnError bool
}

var _ repo.Store = (*TaskStorage)(nil)

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
	}
}

func (s *TaskStorage) SetReturnError(value bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.returnError = value
}

// AddTasks кладёт задачи напрямую в хранилище, минуя репозиторий
func (s *TaskStorage) AddTasks(tasks ...*task.Task) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, t := range tasks {
		s.put(t.Copy())
	}
}

func (s *TaskStorage) failure(op string) error {
	if s.returnError {
		return fmt.Errorf("%s: %w", op, repo.ErrStoreUnavailable)
	}
	return nil
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if err := s.failure("проверка соединения"); err != nil {
		return err
	}
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

func (s *TaskStorage) InsertOrReplace(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.failure("сохранение задачи"); err != nil {
		return err
	}
	s.put(t.Copy())
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.failure("получение задачи"); err != nil {
		return nil, err
	}
	taskToGet, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return taskToGet.Copy(), nil
}

func (s *TaskStorage) GetAll(ctx context.Context) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := s.failure("получение задач"); err != nil {
		return nil, err
	}
	res := make([]*task.Task, 0, len(s.ids))
	for _, id := range s.ids {
		res = append(res, s.storage[id].Copy())
	}
	return res, nil
}

func (s *TaskStorage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.failure("удаление задачи"); err != nil {
		return err
	}
	s.remove(id)
	return nil
}

func (s *TaskStorage) DeleteCompleted(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.failure("удаление выполненных задач"); err != nil {
		return err
	}
	for _, id := range append([]uuid.UUID(nil), s.ids...) {
		if s.storage[id].IsCompleted {
			s.remove(id)
		}
	}
	return nil
}

func (s *TaskStorage) DeleteAll(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := s.failure("удаление всех задач"); err != nil {
		return err
	}
	s.storage = make(map[uuid.UUID]*task.Task)
	s.ids = []uuid.UUID{}
	return nil
}

func (s *TaskStorage) put(t *task.Task) {
	if _, ok := s.storage[t.ID]; !ok {
		s.ids = append(s.ids, t.ID)
	}
	s.storage[t.ID] = t
}

func (s *TaskStorage) remove(id uuid.UUID) {
	if _, ok := s.storage[id]; !ok {
		return
	}
	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
}
