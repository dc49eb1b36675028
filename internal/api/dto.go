package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
)

// Task DTOs

// SubmitTaskRequest — запрос на постановку задачи.
// Поле схемы на проводе называется "qc".
type SubmitTaskRequest struct {
	Circuit string `json:"qc"`
}

// TaskResponse — ответ с задачей.
type TaskResponse struct {
	ID        uuid.UUID         `json:"id"`
	Status    domain.TaskStatus `json:"status"`
	Circuit   string            `json:"circuit,omitempty"`
	Result    domain.Histogram  `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Status:    t.Status,
		Circuit:   t.Circuit,
		Result:    t.Result,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// TaskListItem — элемент списка задач (без текста схемы).
type TaskListItem struct {
	ID        uuid.UUID         `json:"id"`
	Status    domain.TaskStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TaskListItemFromDomain конвертирует domain.Task в TaskListItem.
func TaskListItemFromDomain(t domain.Task) TaskListItem {
	return TaskListItem{
		ID:        t.ID,
		Status:    t.Status,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
