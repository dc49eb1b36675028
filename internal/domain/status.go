package domain

// TaskStatus — статус выполнения задачи.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type TaskStatus string

const (
	// StatusPending — задача создана, но ещё не подхвачена воркером.
	StatusPending TaskStatus = "PENDING"

	// StatusRunning — задача выполняется (включая паузы между retry).
	StatusRunning TaskStatus = "RUNNING"

	// StatusCompleted — схема успешно выполнена, результат записан.
	StatusCompleted TaskStatus = "COMPLETED"

	// StatusFailed — выполнение завершилось ошибкой (после всех retry
	// или сразу при невалидной схеме).
	StatusFailed TaskStatus = "FAILED"

	// StatusCancelled — задача отменена пользователем.
	StatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (задача завершена).
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что строка — известный статус.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода s → to.
//
// Допустимые переходы:
//   - PENDING → RUNNING, CANCELLED
//   - RUNNING → COMPLETED, FAILED, CANCELLED
//
// Из терминальных статусов переходов нет.
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}
