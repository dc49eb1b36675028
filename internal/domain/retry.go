package domain

import "time"

// RetryPolicy — политика повторов activity внутри workflow-инстанса.
//
// Повторяются только retryable-ошибки (ErrTransient); ошибки валидации
// приводят к FAILED с первой попытки.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int

	// InitialDelay — задержка перед второй попыткой.
	InitialDelay time.Duration

	// MaxDelay — верхняя граница задержки между попытками.
	MaxDelay time.Duration

	// MaxElapsed — бюджет суммарного времени на все попытки.
	// 0 — без ограничения.
	MaxElapsed time.Duration
}

// DefaultRetryPolicy — значения по умолчанию: 3 попытки,
// 1s → 2s → 4s... с потолком 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		MaxElapsed:   10 * time.Minute,
	}
}

// Backoff вычисляет задержку перед попыткой attempt+1.
// delay = InitialDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// CanRetry проверяет, допустима ли ещё одна попытка после attempt
// попыток и elapsed прошедшего времени.
func (p RetryPolicy) CanRetry(attempt int, elapsed time.Duration) bool {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if attempt >= maxAttempts {
		return false
	}
	if p.MaxElapsed > 0 && elapsed >= p.MaxElapsed {
		return false
	}
	return true
}
