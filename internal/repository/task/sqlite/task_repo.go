// Package sqlite - локальная база задач на GORM + SQLite.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"
	repo "todoapp/internal/repository"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// taskEntity - строка таблицы tasks
type taskEntity struct {
	ID          string `gorm:"primarykey;size:36"`
	Title       string `gorm:"not null;default:''"`
	Description string `gorm:"not null;default:''"`
	Completed   bool   `gorm:"not null;default:false;index"`
	// порядок вставки, чтобы GetAll возвращал задачи стабильно
	Seq int64 `gorm:"autoIncrement:false;index"`
}

func (taskEntity) TableName() string {
	return "tasks"
}

func toEntity(t *task.Task) *taskEntity {
	return &taskEntity{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.IsCompleted,
	}
}

func (e *taskEntity) toTask() (*task.Task, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, fmt.Errorf("разбор идентификатора %q: %w", e.ID, err)
	}
	return &task.Task{
		ID:          id,
		Title:       e.Title,
		Description: e.Description,
		IsCompleted: e.Completed,
	}, nil
}

type Storage struct {
	db *gorm.DB
}

var _ repo.Store = (*Storage)(nil)

// Open открывает (или создаёт) файл базы. ":memory:" - база в памяти.
func Open(path string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err)
		return nil, fmt.Errorf("открытие базы: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("открытие базы: %w", err)
	}
	// SQLite пишет в один поток, а база ":memory:" живёт только внутри одного соединения
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New использует готовое соединение и создаёт таблицу при необходимости
func New(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&taskEntity{}); err != nil {
		logger.Error("Repository: Ошибка миграции SQLite", err)
		return nil, fmt.Errorf("миграция: %w", err)
	}
	logger.Info("Repository: Локальная база SQLite готова")
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	logger.Info("Repository: Закрытие базы SQLite")
	return sqlDB.Close()
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("проверка соединения: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) InsertOrReplace(ctx context.Context, t *task.Task) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity := toEntity(t)

		var existing taskEntity
		err := tx.Select("seq").Where("id = ?", entity.ID).Take(&existing).Error
		switch {
		case err == nil:
			entity.Seq = existing.Seq
		case errors.Is(err, gorm.ErrRecordNotFound):
			var maxSeq int64
			if err := tx.Model(&taskEntity{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
				return fmt.Errorf("сохранение задачи: %w", err)
			}
			entity.Seq = maxSeq + 1
		default:
			return fmt.Errorf("сохранение задачи: %w", err)
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description", "completed"}),
		}).Create(entity).Error
		if err != nil {
			return fmt.Errorf("сохранение задачи: %w", err)
		}
		return nil
	})
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	var entity taskEntity
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).Take(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return entity.toTask()
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	var entities []taskEntity
	if err := s.db.WithContext(ctx).Order("seq").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	tasks := make([]*task.Task, 0, len(entities))
	for i := range entities {
		t, err := entities[i].toTask()
		if err != nil {
			return nil, fmt.Errorf("получение задач: запись %q: %w", entities[i].ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&taskEntity{}).Error; err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	return nil
}

func (s *Storage) DeleteCompleted(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("completed = ?", true).Delete(&taskEntity{}).Error; err != nil {
		return fmt.Errorf("удаление выполненных задач: %w", err)
	}
	return nil
}

func (s *Storage) DeleteAll(ctx context.Context) error {
	// без условия GORM откажется удалять, поэтому явно разрешаем глобальное удаление
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&taskEntity{}).Error
	if err != nil {
		return fmt.Errorf("удаление всех задач: %w", err)
	}
	return nil
}
