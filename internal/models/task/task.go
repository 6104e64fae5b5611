package task

import (
	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	IsCompleted bool      `json:"is_completed" db:"completed"`
}

// New создаёт задачу с новым идентификатором
func New(title, description string, options ...Option) *Task {
	t := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
	}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// TitleForList - заголовок для списка: название, а если его нет - описание
func (t *Task) TitleForList() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Description
}

func (t *Task) IsActive() bool {
	return !t.IsCompleted
}

func (t *Task) IsEmpty() bool {
	return t.Title == "" && t.Description == ""
}

func (t *Task) Copy() *Task {
	c := *t
	return &c
}

func CopyAll(tasks []*Task) []*Task {
	res := make([]*Task, len(tasks))
	for i, t := range tasks {
		res[i] = t.Copy()
	}
	return res
}
