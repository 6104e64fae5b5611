package task

import (
	"errors"
	"fmt"
	"strings"
)

type FilterType string

const (
	AllTasks       FilterType = "all"
	ActiveTasks    FilterType = "active"
	CompletedTasks FilterType = "completed"
)

var ErrUnknownFilter = errors.New("неизвестный фильтр")

func ParseFilter(s string) (FilterType, error) {
	switch FilterType(strings.ToLower(strings.TrimSpace(s))) {
	case "", AllTasks:
		return AllTasks, nil
	case ActiveTasks:
		return ActiveTasks, nil
	case CompletedTasks:
		return CompletedTasks, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
}

// Filter возвращает представление списка задач, порядок сохраняется
func Filter(tasks []*Task, filter FilterType) []*Task {
	res := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		switch filter {
		case ActiveTasks:
			if !t.IsActive() {
				continue
			}
		case CompletedTasks:
			if !t.IsCompleted {
				continue
			}
		}
		res = append(res, t)
	}
	return res
}
