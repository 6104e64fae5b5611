// Package redis хранит задачи в Redis: хэш с JSON задач и упорядоченное множество с порядком вставки.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"
	repo "todoapp/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultPrefix = "todoapp:"

// сколько раз повторять транзакцию при конкурентном изменении ключей
const maxTxRetries = 5

type Storage struct {
	client *redis.Client
	prefix string
}

var _ repo.Store = (*Storage)(nil)

// Open подключается по URL вида redis://host:6379/0
func Open(ctx context.Context, redisURL, prefix string) (*Storage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("Repository: Ошибка разбора адреса Redis", err)
		return nil, fmt.Errorf("разбор адреса redis: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error("Repository: Неудачная проверка ping Redis", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Info("Repository: Успешное подключение к Redis", zap.String("addr", opts.Addr))
	return New(client, prefix), nil
}

func New(client *redis.Client, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) Close() error {
	logger.Info("Repository: Закрытие соединения Redis")
	return s.client.Close()
}

func (s *Storage) tasksKey() string { return s.prefix + "tasks" }
func (s *Storage) orderKey() string { return s.prefix + "tasks:order" }
func (s *Storage) seqKey() string   { return s.prefix + "tasks:seq" }

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		logger.Error("Repository: Неудачная проверка ping Redis", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) InsertOrReplace(ctx context.Context, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("сериализация задачи: %w", err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("сохранение задачи: %w", err)
	}

	id := t.ID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tasksKey(), id, data)
		// NX: у существующей задачи позиция не меняется
		pipe.ZAddNX(ctx, s.orderKey(), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		logger.Error("Repository: Не удалось сохранить задачу", err, zap.String("task_id", id))
		return fmt.Errorf("сохранение задачи: %w", err)
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	data, err := s.client.HGet(ctx, s.tasksKey(), id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return decode(data)
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	if len(ids) == 0 {
		return []*task.Task{}, nil
	}

	values, err := s.client.HMGet(ctx, s.tasksKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	tasks := make([]*task.Task, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// порядок пережил удаление задачи, запись уже не нужна
			logger.Debug("Repository: Задача отсутствует в хэше", zap.String("task_id", ids[i]))
			continue
		}
		t, err := decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("получение задач: запись %s: %w", ids[i], err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.tasksKey(), id.String())
		pipe.ZRem(ctx, s.orderKey(), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	return nil
}

// DeleteCompleted читает хэш под WATCH и удаляет выполненные задачи одной транзакцией
func (s *Storage) DeleteCompleted(ctx context.Context) error {
	txf := func(tx *redis.Tx) error {
		all, err := tx.HGetAll(ctx, s.tasksKey()).Result()
		if err != nil {
			return err
		}

		var completed []string
		for id, raw := range all {
			t, err := decode([]byte(raw))
			if err != nil {
				return fmt.Errorf("запись %s: %w", id, err)
			}
			if t.IsCompleted {
				completed = append(completed, id)
			}
		}
		if len(completed) == 0 {
			return nil
		}

		members := make([]any, len(completed))
		for i, id := range completed {
			members[i] = id
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.tasksKey(), completed...)
			pipe.ZRem(ctx, s.orderKey(), members...)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.tasksKey())
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("удаление выполненных задач: %w", err)
		}
		logger.Debug("Repository: Повтор транзакции Redis", zap.Int("attempt", i+1))
	}
	return fmt.Errorf("удаление выполненных задач: %w", redis.TxFailedErr)
}

func (s *Storage) DeleteAll(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tasksKey(), s.orderKey(), s.seqKey()).Err(); err != nil {
		return fmt.Errorf("удаление всех задач: %w", err)
	}
	return nil
}

func decode(data []byte) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("разбор задачи: %w", err)
	}
	return &t, nil
}
