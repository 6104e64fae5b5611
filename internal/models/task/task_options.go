package task

import (
	"github.com/google/uuid"
)

type Option func(*Task)

func WithID(id uuid.UUID) Option {
	if id == uuid.Nil {
		return nil
	}
	return func(task *Task) {
		task.ID = id
	}
}

func WithTitle(title string) Option {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) Option {
	return func(task *Task) {
		task.Description = description
	}
}

func WithCompleted(completed bool) Option {
	return func(task *Task) {
		task.IsCompleted = completed
	}
}

// Apply применяет опции к копии задачи, исходная задача не меняется
func (t *Task) Apply(options ...Option) *Task {
	res := t.Copy()
	for _, opt := range options {
		if opt != nil {
			opt(res)
		}
	}
	return res
}
