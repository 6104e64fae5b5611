package dto

import (
	"todoapp/internal/models/task"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTaskRequest - частичное обновление: nil означает "не менять"
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

func (r UpdateTaskRequest) Options() []task.Option {
	var opts []task.Option
	if r.Title != nil {
		opts = append(opts, task.WithTitle(*r.Title))
	}
	if r.Description != nil {
		opts = append(opts, task.WithDescription(*r.Description))
	}
	if r.IsCompleted != nil {
		opts = append(opts, task.WithCompleted(*r.IsCompleted))
	}
	return opts
}

func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.IsCompleted == nil
}

type TaskResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	IsCompleted  bool      `json:"is_completed"`
	TitleForList string    `json:"title_for_list"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		IsCompleted:  t.IsCompleted,
		TitleForList: t.TitleForList(),
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type TaskListResponse struct {
	Filter string         `json:"filter"`
	Count  int            `json:"count"`
	Tasks  []TaskResponse `json:"tasks"`
}

type StatisticsResponse struct {
	ActiveTasksPercent    float64 `json:"active_tasks_percent"`
	CompletedTasksPercent float64 `json:"completed_tasks_percent"`
	Total                 int     `json:"total"`
	Active                int     `json:"active"`
	Completed             int     `json:"completed"`
	Empty                 bool    `json:"empty"`
	Error                 bool    `json:"error"`
}
