package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"
	repo "todoapp/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = time.Millisecond * 100

// PoolConfig - настройки пула. Нулевые значения заменяются значениями по умолчанию.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

var _ repo.Store = (*Storage)(nil)

func New(ctx context.Context, connString string, poolCfg PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if poolCfg.MaxConns > 0 {
		config.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 && poolCfg.MinConns <= config.MaxConns {
		config.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

// InsertOrReplace вставляет задачу или перезаписывает все поля существующей.
// Позиция задачи (seq) при перезаписи не меняется.
func (s *Storage) InsertOrReplace(ctx context.Context, t *task.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks (id, title, description, completed)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE
				SET title = EXCLUDED.title,
					description = EXCLUDED.description,
					completed = EXCLUDED.completed,
					updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, t.ID, t.Title, t.Description, t.IsCompleted)
	if err != nil {
		logger.Error("Repository: Не удалось сохранить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("сохранение задачи: %w", err)
	}

	warnSlow(start, slowQuery)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT id, title, description, completed
				FROM tasks
				WHERE id = $1`

	t := &task.Task{}
	err := s.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Title, &t.Description, &t.IsCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	warnSlow(start, slowQuery)
	return t, nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT id, title, description, completed
				FROM tasks
				ORDER BY seq`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t := &task.Task{}
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.IsCompleted); err != nil {
			logger.Error("Repository: Ошибка сканирования задачи", err)
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	warnSlow(start, slowQuery+time.Millisecond*time.Duration(len(tasks)))
	return tasks, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "удаление задачи", `DELETE FROM tasks WHERE id = $1`, id)
}

func (s *Storage) DeleteCompleted(ctx context.Context) error {
	return s.exec(ctx, "удаление выполненных задач", `DELETE FROM tasks WHERE completed`)
}

func (s *Storage) DeleteAll(ctx context.Context) error {
	return s.exec(ctx, "удаление всех задач", `DELETE FROM tasks`)
}

func (s *Storage) exec(ctx context.Context, op, query string, args ...any) error {
	start := time.Now()

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Ошибка запроса", err, zap.String("op", op), zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Repository: Удалено строк", zap.String("op", op), zap.Int64("rows", tag.RowsAffected()))
	warnSlow(start, slowQuery)
	return nil
}

func warnSlow(start time.Time, limit time.Duration) {
	if elapsed := time.Since(start); elapsed > limit {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", elapsed))
	}
}
