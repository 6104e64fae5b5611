// Package statistics считает доли активных и выполненных задач.
package statistics

import "todoapp/internal/models/task"

type Result struct {
	ActiveTasksPercent    float64 `json:"active_tasks_percent"`
	CompletedTasksPercent float64 `json:"completed_tasks_percent"`
}

// Compute возвращает проценты активных и выполненных задач.
// Для nil или пустого списка оба значения равны нулю.
func Compute(tasks []*task.Task) Result {
	if len(tasks) == 0 {
		return Result{}
	}

	total := len(tasks)
	completed := countCompleted(tasks)

	return Result{
		ActiveTasksPercent:    100.0 * float64(total-completed) / float64(total),
		CompletedTasksPercent: 100.0 * float64(completed) / float64(total),
	}
}

type Summary struct {
	Result
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

func Summarize(tasks []*task.Task) Summary {
	completed := countCompleted(tasks)
	return Summary{
		Result:    Compute(tasks),
		Total:     len(tasks),
		Active:    len(tasks) - completed,
		Completed: completed,
	}
}

func countCompleted(tasks []*task.Task) int {
	n := 0
	for _, t := range tasks {
		if t.IsCompleted {
			n++
		}
	}
	return n
}
