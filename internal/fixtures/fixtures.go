// Package fixtures загружает начальный набор задач из YAML.
package fixtures

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"todoapp/internal/logger"
	"todoapp/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Completed   bool   `yaml:"completed"`
}

// TaskSaver - запись задачи через репозиторий
type TaskSaver interface {
	SaveTask(ctx context.Context, t *task.Task) error
}

func LoadFile(path string) ([]*task.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла задач: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load разбирает YAML. Задачи без id получают новый идентификатор, пустые задачи отклоняются.
func Load(r io.Reader) ([]*task.Task, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return []*task.Task{}, nil
		}
		return nil, fmt.Errorf("разбор файла задач: %w", err)
	}

	tasks := make([]*task.Task, 0, len(file.Tasks))
	seen := make(map[uuid.UUID]struct{}, len(file.Tasks))
	for i, st := range file.Tasks {
		opts := []task.Option{task.WithCompleted(st.Completed)}
		if id := strings.TrimSpace(st.ID); id != "" {
			parsed, err := uuid.Parse(id)
			if err != nil {
				return nil, fmt.Errorf("задача #%d: неверный id %q: %w", i+1, st.ID, err)
			}
			opts = append(opts, task.WithID(parsed))
		}

		t := task.New(st.Title, st.Description, opts...)
		if t.IsEmpty() {
			return nil, fmt.Errorf("задача #%d: нет ни названия, ни описания", i+1)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("задача #%d: повторный id %s", i+1, t.ID)
		}
		seen[t.ID] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Seed сохраняет задачи по одной и останавливается на первой ошибке
func Seed(ctx context.Context, saver TaskSaver, tasks []*task.Task) error {
	for _, t := range tasks {
		if err := saver.SaveTask(ctx, t); err != nil {
			return fmt.Errorf("сохранение задачи %s: %w", t.ID, err)
		}
	}
	logger.Info("Fixtures: Начальные задачи загружены", zap.Int("count", len(tasks)))
	return nil
}
