package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"todoapp/internal/logger"
	"todoapp/internal/metrics"
	"todoapp/internal/models/task"
	"todoapp/internal/observe"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TasksRepository - единственный источник данных о задачах: хранилище плюс кэш в памяти.
// Любая запись сначала уходит в хранилище и только после успеха попадает в кэш.
type TasksRepository struct {
	store     Store
	publisher EventPublisher
	metrics   *metrics.Repository

	// mtx сериализует операции с хранилищем вместе с обновлением кэша
	mtx    sync.Mutex
	cache  map[uuid.UUID]*task.Task
	ids    []uuid.UUID
	loaded bool

	// notifyMtx держится от снимка состояния до конца рассылки,
	// поэтому подписчик не получит старый снимок после нового
	notifyMtx    sync.Mutex
	tasksSubject *observe.Subject[[]*task.Task]

	subjMtx      sync.Mutex
	taskSubjects map[uuid.UUID]*observe.Subject[*task.Task]
}

type Option func(*TasksRepository)

func WithPublisher(p EventPublisher) Option {
	return func(r *TasksRepository) {
		if p != nil {
			r.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Repository) Option {
	return func(r *TasksRepository) {
		r.metrics = m
	}
}

func NewTasksRepository(store Store, options ...Option) *TasksRepository {
	r := &TasksRepository{
		store:        store,
		publisher:    nopPublisher{},
		cache:        make(map[uuid.UUID]*task.Task),
		ids:          []uuid.UUID{},
		tasksSubject: observe.NewSubject[[]*task.Task](),
		taskSubjects: make(map[uuid.UUID]*observe.Subject[*task.Task]),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *TasksRepository) HealthCheck(ctx context.Context) error {
	if err := r.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка хранилища: %w", err)
	}
	return nil
}

// GetTasks возвращает задачи из кэша. Холодный кэш или forceUpdate приводят к полному
// чтению хранилища, кэш при этом заменяется целиком. При ошибке кэш не меняется.
func (r *TasksRepository) GetTasks(ctx context.Context, forceUpdate bool) ([]*task.Task, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.getTasksLocked(ctx, forceUpdate)
}

func (r *TasksRepository) getTasksLocked(ctx context.Context, forceUpdate bool) ([]*task.Task, error) {
	if r.loaded && !forceUpdate {
		r.metrics.CacheHit("get_tasks")
		return r.snapshotLocked(), nil
	}
	r.metrics.CacheMiss("get_tasks")

	start := time.Now()
	tasks, err := r.store.GetAll(ctx)
	r.metrics.ObserveStore("get_all", start, err)
	if err != nil {
		logger.Warn("Repository: Не удалось загрузить задачи, кэш не изменён",
			zap.Bool("force", forceUpdate), zap.Error(err))
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	r.replaceLocked(tasks)
	logger.Debug("Repository: Кэш задач обновлён", zap.Int("count", len(tasks)))
	return r.snapshotLocked(), nil
}

// GetTask ищет задачу в кэше, иначе читает одну задачу из хранилища
// и обновляет в кэше только её.
func (r *TasksRepository) GetTask(ctx context.Context, id uuid.UUID, forceUpdate bool) (*task.Task, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.getTaskLocked(ctx, id, forceUpdate)
}

func (r *TasksRepository) getTaskLocked(ctx context.Context, id uuid.UUID, forceUpdate bool) (*task.Task, error) {
	if !forceUpdate {
		if cached, ok := r.cache[id]; ok {
			r.metrics.CacheHit("get_task")
			return cached.Copy(), nil
		}
	}
	r.metrics.CacheMiss("get_task")

	start := time.Now()
	t, err := r.store.GetByID(ctx, id)
	r.metrics.ObserveStore("get_by_id", start, err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// хранилище главнее кэша
			r.removeLocked(id)
			return nil, fmt.Errorf("задача %s: %w", id, err)
		}
		logger.Warn("Repository: Не удалось загрузить задачу",
			zap.String("task_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("получение задачи %s: %w", id, err)
	}

	r.upsertLocked(t.Copy())
	return t.Copy(), nil
}

func (r *TasksRepository) SaveTask(ctx context.Context, t *task.Task) error {
	if t == nil {
		return errors.New("сохранение задачи: задача не передана")
	}
	toSave := t.Copy()

	r.mtx.Lock()
	start := time.Now()
	err := r.store.InsertOrReplace(ctx, toSave)
	r.metrics.ObserveStore("insert_or_replace", start, err)
	if err != nil {
		r.mtx.Unlock()
		logger.Error("Repository: Не удалось сохранить задачу", err, zap.String("task_id", toSave.ID.String()))
		return fmt.Errorf("сохранение задачи: %w", err)
	}
	r.upsertLocked(toSave)
	r.mtx.Unlock()

	r.publisher.Publish(ctx, newEvent(EventTaskSaved, toSave.ID, toSave.Copy()))
	r.notify(ctx)
	return nil
}

func (r *TasksRepository) CompleteTask(ctx context.Context, t *task.Task) error {
	if t == nil {
		return errors.New("завершение задачи: задача не передана")
	}
	return r.SaveTask(ctx, t.Apply(task.WithCompleted(true)))
}

func (r *TasksRepository) ActivateTask(ctx context.Context, t *task.Task) error {
	if t == nil {
		return errors.New("активация задачи: задача не передана")
	}
	return r.SaveTask(ctx, t.Apply(task.WithCompleted(false)))
}

func (r *TasksRepository) CompleteTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return r.setCompletedByID(ctx, id, true)
}

func (r *TasksRepository) ActivateTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return r.setCompletedByID(ctx, id, false)
}

func (r *TasksRepository) setCompletedByID(ctx context.Context, id uuid.UUID, completed bool) (*task.Task, error) {
	t, err := r.GetTask(ctx, id, false)
	if err != nil {
		return nil, err
	}
	updated := t.Apply(task.WithCompleted(completed))
	if err := r.SaveTask(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *TasksRepository) ClearCompletedTasks(ctx context.Context) error {
	r.mtx.Lock()
	start := time.Now()
	err := r.store.DeleteCompleted(ctx)
	r.metrics.ObserveStore("delete_completed", start, err)
	if err != nil {
		r.mtx.Unlock()
		logger.Error("Repository: Не удалось удалить выполненные задачи", err)
		return fmt.Errorf("удаление выполненных задач: %w", err)
	}
	for _, id := range append([]uuid.UUID(nil), r.ids...) {
		if r.cache[id].IsCompleted {
			r.removeLocked(id)
		}
	}
	r.mtx.Unlock()

	r.publisher.Publish(ctx, newEvent(EventCompletedCleared, uuid.Nil, nil))
	r.notify(ctx)
	return nil
}

func (r *TasksRepository) DeleteTask(ctx context.Context, id uuid.UUID) error {
	r.mtx.Lock()
	start := time.Now()
	err := r.store.DeleteByID(ctx, id)
	r.metrics.ObserveStore("delete_by_id", start, err)
	if err != nil {
		r.mtx.Unlock()
		logger.Error("Repository: Не удалось удалить задачу", err, zap.String("task_id", id.String()))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	r.removeLocked(id)
	r.mtx.Unlock()

	r.publisher.Publish(ctx, newEvent(EventTaskDeleted, id, nil))
	r.notify(ctx)
	return nil
}

func (r *TasksRepository) DeleteAllTasks(ctx context.Context) error {
	r.mtx.Lock()
	start := time.Now()
	err := r.store.DeleteAll(ctx)
	r.metrics.ObserveStore("delete_all", start, err)
	if err != nil {
		r.mtx.Unlock()
		logger.Error("Repository: Не удалось удалить все задачи", err)
		return fmt.Errorf("удаление всех задач: %w", err)
	}
	// хранилище пусто, значит пустой кэш ему соответствует
	r.replaceLocked(nil)
	r.mtx.Unlock()

	r.publisher.Publish(ctx, newEvent(EventAllDeleted, uuid.Nil, nil))
	r.notify(ctx)
	return nil
}

// RefreshTasks перечитывает хранилище и рассылает результат подписчикам, в том числе ошибку
func (r *TasksRepository) RefreshTasks(ctx context.Context) error {
	tasks, err := r.GetTasks(ctx, true)
	if err != nil {
		r.tasksSubject.Publish(observe.Failure[[]*task.Task](err))
		return err
	}
	r.tasksSubject.Publish(observe.Success(tasks))
	r.notifyTasks(context.WithoutCancel(ctx))
	return nil
}

func (r *TasksRepository) RefreshTask(ctx context.Context, id uuid.UUID) error {
	t, err := r.GetTask(ctx, id, true)
	if subject := r.taskSubject(id); subject != nil {
		if err != nil {
			subject.Publish(observe.Failure[*task.Task](err))
		} else {
			subject.Publish(observe.Success(t))
		}
	}
	if err != nil {
		return err
	}
	r.notifyList(context.WithoutCancel(ctx))
	return nil
}

// ObserveTasks сразу отдаёт наблюдателю текущее состояние списка,
// затем - новое состояние после каждой успешной операции.
func (r *TasksRepository) ObserveTasks(ctx context.Context, observer observe.Observer[[]*task.Task]) (unsubscribe func()) {
	r.notifyMtx.Lock()
	defer r.notifyMtx.Unlock()

	r.mtx.Lock()
	tasks, err := r.getTasksLocked(ctx, false)
	unsubscribe = r.tasksSubject.Subscribe(observer)
	r.mtx.Unlock()

	if err != nil {
		observer(observe.Failure[[]*task.Task](err))
	} else {
		observer(observe.Success(tasks))
	}
	return unsubscribe
}

func (r *TasksRepository) ObserveTask(ctx context.Context, id uuid.UUID, observer observe.Observer[*task.Task]) (unsubscribe func()) {
	r.notifyMtx.Lock()
	defer r.notifyMtx.Unlock()

	r.mtx.Lock()
	t, err := r.getTaskLocked(ctx, id, false)

	r.subjMtx.Lock()
	subject, ok := r.taskSubjects[id]
	if !ok {
		subject = observe.NewSubject[*task.Task]()
		r.taskSubjects[id] = subject
	}
	unsubscribeSubject := subject.Subscribe(observer)
	r.subjMtx.Unlock()
	r.mtx.Unlock()

	if err != nil {
		observer(observe.Failure[*task.Task](err))
	} else {
		observer(observe.Success(t))
	}

	return func() {
		unsubscribeSubject()
		r.subjMtx.Lock()
		if s, ok := r.taskSubjects[id]; ok && s.Len() == 0 {
			delete(r.taskSubjects, id)
		}
		r.subjMtx.Unlock()
	}
}

func (r *TasksRepository) notify(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	r.notifyList(ctx)
	r.notifyTasks(ctx)
}

// Наблюдатели не должны синхронно вызывать изменяющие методы репозитория:
// рассылка идёт под notifyMtx.
func (r *TasksRepository) notifyList(ctx context.Context) {
	r.notifyMtx.Lock()
	defer r.notifyMtx.Unlock()

	if r.tasksSubject.Len() == 0 {
		return
	}
	tasks, err := r.GetTasks(ctx, false)
	if err != nil {
		r.tasksSubject.Publish(observe.Failure[[]*task.Task](err))
		return
	}
	r.tasksSubject.Publish(observe.Success(tasks))
}

func (r *TasksRepository) notifyTasks(ctx context.Context) {
	r.notifyMtx.Lock()
	defer r.notifyMtx.Unlock()

	r.subjMtx.Lock()
	subjects := make(map[uuid.UUID]*observe.Subject[*task.Task], len(r.taskSubjects))
	for id, s := range r.taskSubjects {
		subjects[id] = s
	}
	r.subjMtx.Unlock()

	for id, subject := range subjects {
		t, err := r.GetTask(ctx, id, false)
		if err != nil {
			subject.Publish(observe.Failure[*task.Task](err))
			continue
		}
		subject.Publish(observe.Success(t))
	}
}

func (r *TasksRepository) taskSubject(id uuid.UUID) *observe.Subject[*task.Task] {
	r.subjMtx.Lock()
	defer r.subjMtx.Unlock()
	return r.taskSubjects[id]
}

// дальше - работа с кэшем, вызывается под r.mtx

func (r *TasksRepository) snapshotLocked() []*task.Task {
	res := make([]*task.Task, 0, len(r.ids))
	for _, id := range r.ids {
		res = append(res, r.cache[id].Copy())
	}
	return res
}

func (r *TasksRepository) replaceLocked(tasks []*task.Task) {
	r.cache = make(map[uuid.UUID]*task.Task, len(tasks))
	r.ids = make([]uuid.UUID, 0, len(tasks))
	for _, t := range task.CopyAll(tasks) {
		r.upsertLocked(t)
	}
	r.loaded = true
}

func (r *TasksRepository) upsertLocked(t *task.Task) {
	if _, ok := r.cache[t.ID]; !ok {
		r.ids = append(r.ids, t.ID)
	}
	r.cache[t.ID] = t
}

func (r *TasksRepository) removeLocked(id uuid.UUID) {
	if _, ok := r.cache[id]; !ok {
		return
	}
	delete(r.cache, id)
	for ind, val := range r.ids {
		if val == id {
			r.ids = append(r.ids[:ind], r.ids[ind+1:]...)
			break
		}
	}
}
