package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Quanta/internal/domain"
	"github.com/shaiso/Quanta/internal/repo"
	"github.com/shaiso/Quanta/internal/telemetry"
)

// maxCircuitBytes — предельный размер текста схемы.
const maxCircuitBytes = 64 * 1024

// SubmitTask принимает схему и ставит задачу на исполнение.
// POST /api/v1/tasks
//
// Каждый вызов создаёт новую задачу с новым ID — дедупликации нет,
// один и тот же текст схемы можно исполнять параллельно.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Circuit) == "" {
		BadRequest(w, "circuit must not be empty")
		return
	}
	if len(req.Circuit) > maxCircuitBytes {
		BadRequest(w, "circuit exceeds size limit")
		return
	}

	task := domain.NewTask(req.Circuit)
	logger := telemetry.WithTaskID(telemetry.FromContext(r.Context()), task.ID.String())

	if err := h.tasks.Create(r.Context(), task); err != nil {
		InternalError(w, logger, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishTaskSubmitted(r.Context(), task.ID); err != nil {
			logger.Error("failed to publish task.submitted", "error", err)
			// Откатываем запись в FAILED, чтобы клиент не остался с
			// вечным PENDING: условно — воркер мог уже подхватить
			// задачу через polling fallback.
			rollbackErr := h.tasks.UpdateStatus(r.Context(), task.ID, repo.StatusUpdate{
				To:    domain.StatusFailed,
				From:  []domain.TaskStatus{domain.StatusPending},
				Error: "orchestration unavailable",
			})
			if rollbackErr != nil && !errors.Is(rollbackErr, repo.ErrConflict) {
				logger.Error("failed to roll back task", "error", rollbackErr)
			}
			Unavailable(w, "task queue unavailable, try again later")
			return
		}
	}

	telemetry.TasksSubmitted.Inc()
	logger.Info("task submitted")
	Created(w, TaskFromDomain(*task))
}

// GetTask возвращает задачу по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(*task))
}

// ListTasks возвращает страницу задач.
// GET /api/v1/tasks?status=...&limit=...&offset=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := repo.TaskFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.TaskStatus(status)
		if !s.IsValid() {
			BadRequest(w, "invalid status filter")
			return
		}
		filter.Status = s
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	tasks, total, err := h.tasks.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskListItem, len(tasks))
	for i, task := range tasks {
		result[i] = TaskListItemFromDomain(task)
	}

	List(w, result, total)
}

// DeleteTask отменяет и удаляет задачу.
// DELETE /api/v1/tasks/{id}
//
// Протокол cancel-then-delete: сначала условный перевод в CANCELLED
// (чтобы воркер прекратил исполнение и не воскресил запись поздней
// записью результата), затем рассылка сигнала отмены, затем удаление
// записи вместе с историей и lease.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	logger := telemetry.WithTaskID(telemetry.FromContext(r.Context()), id.String())

	err = h.tasks.UpdateStatus(r.Context(), id, repo.StatusUpdate{
		To:   domain.StatusCancelled,
		From: []domain.TaskStatus{domain.StatusPending, domain.StatusRunning},
	})
	switch {
	case err == nil:
		if h.publisher != nil {
			if err := h.publisher.PublishTaskCancel(r.Context(), id); err != nil {
				// Сигнал best-effort: воркер увидит CANCELLED при
				// ближайшей условной записи и так.
				logger.Warn("failed to publish task.cancel", "error", err)
			}
		}
	case errors.Is(err, repo.ErrConflict):
		// уже терминальна — удаляем как есть
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, "task not found")
		return
	default:
		InternalError(w, logger, err)
		return
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, logger, err, "task not found") {
			return
		}
	}

	telemetry.TasksDeleted.Inc()
	logger.Info("task deleted")
	NoContent(w)
}
