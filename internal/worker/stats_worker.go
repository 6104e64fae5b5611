package worker

import (
	"context"
	"fmt"
	"time"
	"todoapp/internal/logger"
	"todoapp/internal/metrics"
	"todoapp/internal/models/task"
	"todoapp/internal/statistics"

	"go.uber.org/zap"
)

const defaultInterval = 30 * time.Second

// TaskSource - чтение списка задач через репозиторий
type TaskSource interface {
	GetTasks(ctx context.Context, forceUpdate bool) ([]*task.Task, error)
}

// StatsWorker периодически публикует статистику задач в метрики.
// Список читается из кэша репозитория, хранилище опрашивается только при холодном кэше.
type StatsWorker struct {
	repo     TaskSource
	gauges   *metrics.Tasks
	interval time.Duration
}

func NewStatsWorker(repo TaskSource, gauges *metrics.Tasks, interval time.Duration) *StatsWorker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &StatsWorker{
		repo:     repo,
		gauges:   gauges,
		interval: interval,
	}
}

// Start блокируется до отмены контекста
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: Сбор статистики запущен", zap.Duration("interval", w.interval))
	if _, err := w.Check(ctx); err != nil {
		logger.Warn("Worker: Ошибка сбора статистики", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil {
				logger.Warn("Worker: Ошибка сбора статистики", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("Worker: Сбор статистики останавливается")
			return
		}
	}
}

// Check считает статистику один раз. При ошибке метрики не меняются.
func (w *StatsWorker) Check(ctx context.Context) (statistics.Summary, error) {
	start := time.Now()

	tasks, err := w.repo.GetTasks(ctx, false)
	if err != nil {
		return statistics.Summary{}, fmt.Errorf("получение задач: %w", err)
	}

	summary := statistics.Summarize(tasks)
	w.gauges.Set(summary.Total, summary.ActiveTasksPercent, summary.CompletedTasksPercent)

	logger.Debug(
		"Worker: Статистика обновлена",
		zap.Duration("ms", time.Since(start)),
		zap.Int("total", summary.Total),
		zap.Float64("active_percent", summary.ActiveTasksPercent),
		zap.Float64("completed_percent", summary.CompletedTasksPercent),
	)
	return summary, nil
}
