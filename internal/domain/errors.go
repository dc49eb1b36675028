package domain

import "errors"

// Классификация ошибок выполнения схемы.
//
// Retry-политика workflow различает два вида ошибок activity:
//   - ErrValidation — детерминированная ошибка (невалидная схема,
//     неподдерживаемый гейт). Повторять бессмысленно: задача сразу
//     переходит в FAILED.
//   - ErrTransient — временная ошибка (таймаут, нехватка ресурсов
//     симулятора). Повторяется с экспоненциальным backoff.
var (
	// ErrValidation — схема не прошла валидацию. Не retryable.
	ErrValidation = errors.New("circuit validation failed")

	// ErrTransient — временная ошибка выполнения. Retryable.
	ErrTransient = errors.New("transient execution error")
)

// IsRetryable возвращает true, если ошибку имеет смысл повторить.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient)
}
