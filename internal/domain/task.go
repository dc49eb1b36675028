package domain

import (
	"time"

	"github.com/google/uuid"
)

// Histogram — результат выполнения схемы: распределение измеренных
// битовых строк по количеству попаданий. Сумма значений равна числу
// shots, с которым выполнялась схема.
type Histogram map[string]int

// Shots возвращает суммарное количество измерений в гистограмме.
func (h Histogram) Shots() int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}

// Task — единица работы: квантовая схема и запись о её жизненном цикле.
//
// Task создаётся Gateway'ем при submission (status=PENDING) и дальше
// мутируется только воркером, владеющим lease на workflow-инстанс,
// либо сигналом отмены.
type Task struct {
	// ID — уникальный идентификатор задачи. Генерируется при submission,
	// неизменяем. WorkflowID инстанса равен ID задачи (1:1), поэтому
	// повторный submit той же схемы всегда создаёт новый инстанс.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус задачи.
	Status TaskStatus `json:"status"`

	// Circuit — текст схемы в формате QASM3. Неизменяем после приёма.
	Circuit string `json:"circuit"`

	// Result — гистограмма измерений. Заполняется только при COMPLETED.
	Result Histogram `json:"result,omitempty"`

	// Error — текст ошибки. Заполняется только при FAILED.
	// Result и Error взаимоисключающие.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания задачи.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего перехода статуса. Монотонно не убывает.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask создаёт новую задачу в статусе PENDING.
func NewTask(circuit string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.New(),
		Status:    StatusPending,
		Circuit:   circuit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WorkflowID возвращает идентификатор workflow-инстанса задачи.
// Он детерминированно совпадает с ID задачи.
func (t *Task) WorkflowID() uuid.UUID {
	return t.ID
}

// IsFinished возвращает true, если задача в терминальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит задачу в статус RUNNING.
func (t *Task) MarkRunning() {
	t.Status = StatusRunning
	t.UpdatedAt = time.Now().UTC()
}

// MarkCompleted переводит задачу в статус COMPLETED с результатом.
func (t *Task) MarkCompleted(result Histogram) {
	t.Status = StatusCompleted
	t.Result = result
	t.Error = ""
	t.UpdatedAt = time.Now().UTC()
}

// MarkFailed переводит задачу в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	t.Status = StatusFailed
	t.Result = nil
	t.Error = err
	t.UpdatedAt = time.Now().UTC()
}

// MarkCancelled переводит задачу в статус CANCELLED.
func (t *Task) MarkCancelled() {
	t.Status = StatusCancelled
	t.Result = nil
	t.Error = ""
	t.UpdatedAt = time.Now().UTC()
}
