package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType — тип события в durable-истории workflow-инстанса.
type EventType string

// Типы событий.
const (
	// EventWorkflowStarted — инстанс начал выполнение.
	EventWorkflowStarted EventType = "workflow.started"

	// EventActivityFailed — попытка выполнения activity завершилась ошибкой.
	EventActivityFailed EventType = "activity.failed"

	// EventActivityCompleted — activity успешно вернула результат.
	// Записывается в историю ДО записи результата в Task Store: после
	// этого события activity никогда не выполняется повторно.
	EventActivityCompleted EventType = "activity.completed"

	// EventWorkflowCancelled — инстанс получил сигнал отмены.
	EventWorkflowCancelled EventType = "workflow.cancelled"

	// EventWorkflowFinished — терминальный статус записан в Task Store.
	EventWorkflowFinished EventType = "workflow.finished"
)

// HistoryEvent — запись в append-only истории workflow-инстанса.
//
// История — источник истины для replay: воркер, подхвативший инстанс
// после падения предыдущего владельца, восстанавливает состояние из
// событий и доделывает только незавершённые side effects.
type HistoryEvent struct {
	// WorkflowID — инстанс, которому принадлежит событие.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Seq — порядковый номер события внутри инстанса (с 1).
	Seq int `json:"seq"`

	// Type — тип события.
	Type EventType `json:"type"`

	// Attempt — номер попытки activity (для activity.* событий).
	Attempt int `json:"attempt,omitempty"`

	// Payload — данные события (результат, ошибка, статус).
	Payload json.RawMessage `json:"payload,omitempty"`

	// RecordedAt — время записи события.
	RecordedAt time.Time `json:"recorded_at"`
}

// ActivityCompletedPayload — payload события activity.completed.
type ActivityCompletedPayload struct {
	Result Histogram `json:"result"`
}

// ActivityFailedPayload — payload события activity.failed.
type ActivityFailedPayload struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// WorkflowFinishedPayload — payload события workflow.finished.
type WorkflowFinishedPayload struct {
	Status TaskStatus `json:"status"`
}

// NewHistoryEvent создаёт событие с маршализованным payload.
// Ошибка возможна только при немаршализуемом payload (ошибка
// программиста).
func NewHistoryEvent(workflowID uuid.UUID, seq int, eventType EventType, attempt int, payload any) (*HistoryEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return &HistoryEvent{
		WorkflowID: workflowID,
		Seq:        seq,
		Type:       eventType,
		Attempt:    attempt,
		Payload:    raw,
		RecordedAt: time.Now().UTC(),
	}, nil
}

// DecodePayload декодирует payload события в указанный тип.
func DecodePayload[T any](e *HistoryEvent) (T, error) {
	var result T
	if len(e.Payload) == 0 {
		return result, nil
	}
	err := json.Unmarshal(e.Payload, &result)
	return result, err
}
